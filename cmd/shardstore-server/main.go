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

// Command shardstore-server hosts a set of shard stores described by a
// manifest file, keeps them open for backfill and administrative use, and
// exposes their operational metrics over HTTP. It carries no client wire
// protocol of its own: that binding is left to whatever transport a
// deployment chooses to put in front of the engine.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"shardstore/internal/config"
	"shardstore/internal/errors"
	"shardstore/internal/logging"
)

var (
	cfgFile string
	v       = viper.New()
	log     = logging.NewLogger("cmd.shardstore-server")
)

var rootCmd = &cobra.Command{
	Use:   "shardstore-server",
	Short: "Host and administer per-shard storage engine instances",
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (default: none, defaults + env only)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding shard store files and the manifest")
	rootCmd.PersistentFlags().String("metrics-listen", "", "address the /metrics endpoint binds")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn, or error")
	rootCmd.PersistentFlags().Bool("log-json", false, "emit log lines as JSON")

	_ = v.BindPFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dumpMetainfoCmd)
	rootCmd.AddCommand(resetCmd)
}

func initConfig() {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			fmt.Fprintln(os.Stderr, errors.Config(fmt.Sprintf("reading config file %s: %v", cfgFile, err)).UserMessage())
			os.Exit(1)
		}
	}
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

func loadConfig() config.Config {
	cfg, err := config.Load(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, errors.Config(err.Error()).UserMessage())
		os.Exit(1)
	}
	logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	logging.SetJSONMode(cfg.LogJSON)
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errors.Format(err))
		os.Exit(1)
	}
}
