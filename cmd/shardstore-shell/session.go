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

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"shardstore/internal/btreeslice"
	"shardstore/internal/keyrange"
	"shardstore/internal/manifest"
	"shardstore/router"
	"shardstore/shard"
)

// session wires a Router to every shard store named in a manifest and
// dispatches parsed REPL lines against it.
type session struct {
	router *router.Router
	stores []*shard.Store
}

func newSession(r *router.Router, dataDir string, m manifest.Manifest) (*session, error) {
	s := &session{router: r}
	for _, entry := range m.Shards {
		kr, err := entry.Range()
		if err != nil {
			s.Close()
			return nil, err
		}
		store, err := openStore(entry.Path)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("shard %q: %w", entry.ID, err)
		}
		if err := r.Assign(router.ShardID(entry.ID), kr, store); err != nil {
			s.Close()
			return nil, err
		}
		s.stores = append(s.stores, store)
	}
	return s, nil
}

func openStore(path string) (*shard.Store, error) {
	if _, err := os.Stat(path); err == nil {
		return shard.Open(path)
	}
	return shard.Create(path)
}

func (s *session) Close() {
	for _, st := range s.stores {
		_ = st.Close()
	}
}

// Dispatch parses and executes one REPL line, returning text to print.
func (s *session) Dispatch(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]
	ctx := context.Background()
	now := time.Now()

	switch cmd {
	case "get":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: get <key>")
		}
		resp, err := router.ExecuteRead(ctx, s.router, shard.GetRead{Key: keyrange.Key(args[0]), EffTime: now.Unix()})
		if err != nil {
			return "", err
		}
		g := resp.(shard.GetResponse)
		if !g.Found {
			return "(not found)", nil
		}
		return fmt.Sprintf("%s [flags=%d cas=%d]", g.Value.Bytes(), g.Flags, g.Cas), nil

	case "rget":
		if len(args) != 2 {
			return "", fmt.Errorf("usage: rget <startkey> <endkey>")
		}
		kr := keyrange.KeyRange{
			LeftMode: keyrange.Closed, LeftKey: keyrange.Key(args[0]),
			RightMode: keyrange.Open, RightKey: keyrange.Key(args[1]),
		}
		resp, err := router.ExecuteRead(ctx, s.router, shard.RgetRead{Range: kr, EffTime: now.Unix()})
		if err != nil {
			return "", err
		}
		rg := resp.(shard.RgetResponse)
		if len(rg.Elements) == 0 {
			return "(empty)", nil
		}
		var b strings.Builder
		for _, e := range rg.Elements {
			fmt.Fprintf(&b, "%s = %s [flags=%d cas=%d]\n", e.Key, e.Value.Bytes(), e.Flags, e.Cas)
		}
		return strings.TrimRight(b.String(), "\n"), nil

	case "set":
		if len(args) < 2 {
			return "", fmt.Errorf("usage: set <key> <value> [flags] [exptime]")
		}
		var flags uint64
		var exptime int64
		if len(args) >= 3 {
			flags, _ = strconv.ParseUint(args[2], 10, 32)
		}
		if len(args) >= 4 {
			exptime, _ = strconv.ParseInt(args[3], 10, 64)
		}
		w := shard.SetWrite{
			Key_: keyrange.Key(args[0]), Data: []byte(args[1]), Flags: uint32(flags), Exptime: exptime,
			AddPolicy: true, ReplacePolicy: true, OldCas: btreeslice.InvalidCas, EffTime: now.Unix(), Ts: now,
		}
		resp, err := router.ExecuteWrite(ctx, s.router, w, nil, shard.DefaultExpectedChangeCount)
		if err != nil {
			return "", err
		}
		res := resp.(btreeslice.SetResult)
		return fmt.Sprintf("%s (cas=%d)", outcomeName(res.Outcome), res.NewCas), nil

	case "delete":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: delete <key>")
		}
		w := shard.DeleteWrite{Key_: keyrange.Key(args[0]), EffTime: now.Unix(), Ts: now}
		resp, err := router.ExecuteWrite(ctx, s.router, w, nil, shard.DefaultExpectedChangeCount)
		if err != nil {
			return "", err
		}
		if resp.(btreeslice.DeleteOutcome) == btreeslice.Deleted {
			return "DELETED", nil
		}
		return "NOT_FOUND", nil

	case "incr", "decr":
		if len(args) != 2 {
			return "", fmt.Errorf("usage: %s <key> <amount>", cmd)
		}
		amount, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid amount %q: %w", args[1], err)
		}
		kind := btreeslice.Incr
		if cmd == "decr" {
			kind = btreeslice.Decr
		}
		w := shard.IncrDecrWrite{Key_: keyrange.Key(args[0]), Kind: kind, Amount: amount, EffTime: now.Unix(), Ts: now}
		resp, err := router.ExecuteWrite(ctx, s.router, w, nil, shard.DefaultExpectedChangeCount)
		if err != nil {
			return "", err
		}
		res := resp.(btreeslice.IncrDecrResult)
		switch res.Outcome {
		case btreeslice.IncrDecrOk:
			return strconv.FormatUint(res.Value, 10), nil
		case btreeslice.IncrDecrNotFound:
			return "NOT_FOUND", nil
		default:
			return "NOT_NUMERIC", nil
		}

	case "append", "prepend":
		if len(args) != 2 {
			return "", fmt.Errorf("usage: %s <key> <value>", cmd)
		}
		kind := btreeslice.Append
		if cmd == "prepend" {
			kind = btreeslice.Prepend
		}
		w := shard.AppendPrependWrite{Key_: keyrange.Key(args[0]), Data: []byte(args[1]), Kind: kind, EffTime: now.Unix(), Ts: now}
		resp, err := router.ExecuteWrite(ctx, s.router, w, nil, shard.DefaultExpectedChangeCount)
		if err != nil {
			return "", err
		}
		return outcomeName(resp.(btreeslice.SetResult).Outcome), nil

	case "shards":
		var b strings.Builder
		pieces, err := s.router.Pieces(keyrange.Universe())
		if err != nil {
			return "", err
		}
		for _, p := range pieces {
			fmt.Fprintf(&b, "%s: %s\n", p.Shard, p.Range)
		}
		return strings.TrimRight(b.String(), "\n"), nil

	case "metainfo":
		var b strings.Builder
		pieces, err := s.router.Pieces(keyrange.Universe())
		if err != nil {
			return "", err
		}
		seen := map[string]bool{}
		for _, p := range pieces {
			if seen[string(p.Shard)] {
				continue
			}
			seen[string(p.Shard)] = true
			m, err := p.Store.GetMetainfo()
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "%s: %s\n", p.Shard, m.String())
		}
		return strings.TrimRight(b.String(), "\n"), nil

	default:
		return "", fmt.Errorf("unrecognized command %q, try \\h for help", cmd)
	}
}

func outcomeName(o btreeslice.StoreOutcome) string {
	switch o {
	case btreeslice.Stored:
		return "STORED"
	case btreeslice.NotStored:
		return "NOT_STORED"
	case btreeslice.ExistsCasMismatch:
		return "EXISTS"
	case btreeslice.NotFoundForCas:
		return "NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}
