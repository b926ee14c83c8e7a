/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command shardstore-shell is an interactive REPL for issuing Get, Rget,
// Set, Delete, IncrDecr, and AppendPrepend requests against the shard
// stores named in a local manifest, without going through any wire
// protocol (this engine carries none of its own).
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"shardstore/internal/manifest"
	"shardstore/router"
)

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func getHistoryFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".shardstore_shell_history")
}

var replCommands = []string{
	"get", "rget", "set", "delete", "incr", "decr", "append", "prepend",
	"metainfo", "shards", "\\q", "\\quit", "\\h", "\\help",
}

func createCompleter() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(replCommands))
	for _, c := range replCommands {
		items = append(items, readline.PcItem(c))
	}
	return readline.NewPrefixCompleter(items...)
}

func createReadlineInstance(prompt string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:              prompt,
		HistoryFile:         getHistoryFilePath(),
		AutoComplete:        createCompleter(),
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
}

func filterInput(r rune) (rune, bool) {
	if r == readline.CharCtrlZ {
		return r, false
	}
	return r, true
}

func printHelp() {
	fmt.Println(`Commands:
  get <key>                          fetch a value
  rget <startkey> <endkey>           scan a half-open key range
  set <key> <value> [flags] [exp]    store a value
  delete <key>                       tombstone a key
  incr <key> <amount>                add to a numeric value
  decr <key> <amount>                subtract from a numeric value
  append <key> <value>               append bytes to a value
  prepend <key> <value>              prepend bytes to a value
  metainfo                           dump every shard's metainfo map
  shards                             list shards and their key ranges
  \h, \help                          show this text
  \q, \quit                          exit`)
}

func main() {
	dataDir := flag.String("data-dir", "./data", "directory holding shard store files and the manifest")
	noColor := flag.Bool("no-color", false, "disable ANSI colors")
	flag.Parse()
	_ = noColor

	if _, err := os.Stat(*dataDir); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "shardstore-shell: data directory %s does not exist\n", *dataDir)
		os.Exit(1)
	}

	m, err := manifest.Load(filepath.Join(*dataDir, "manifest.json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "shardstore-shell: %v\n", err)
		os.Exit(1)
	}

	r := router.New()
	sess, err := newSession(r, *dataDir, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shardstore-shell: %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()

	if !isTerminal() {
		runBatch(sess, os.Stdin)
		return
	}

	rl, err := createReadlineInstance("shardstore> ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "shardstore-shell: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Println("shardstore-shell — type \\h for help, \\q to quit")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "\\q" || line == "\\quit" {
			return
		}
		if line == "\\h" || line == "\\help" {
			printHelp()
			continue
		}
		if out, err := sess.Dispatch(line); err != nil {
			fmt.Printf("error: %v\n", err)
		} else if out != "" {
			fmt.Println(out)
		}
	}
}

func runBatch(sess *session, r io.Reader) {
	data, err := io.ReadAll(r)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "\\") {
			continue
		}
		out, err := sess.Dispatch(line)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		if out != "" {
			fmt.Println(out)
		}
	}
}
