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

// Package config loads cmd/shardstore-server's configuration through
// viper, from (in ascending precedence) defaults, a config file, the
// SHARDSTORE_-prefixed environment, and command-line flags bound by the
// caller.
//
// Example config file (YAML, TOML, or JSON, per viper's usual
// auto-detection by extension):
//
//	data-dir: /var/lib/shardstore
//	listen: 0.0.0.0:11311
//	metrics-listen: 0.0.0.0:9090
//	log-level: info
//	log-json: false
//	pagecache-size-bytes: 1073741824
//	pagecache-max-dirty-bytes: 536870912
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix viper strips from SHARDSTORE_-namespaced
// environment variables (SHARDSTORE_DATA_DIR maps to data-dir).
const EnvPrefix = "shardstore"

// Config holds cmd/shardstore-server's resolved settings.
type Config struct {
	// DataDir holds the manifest file and, by default, the shard store
	// files it names.
	DataDir string

	// Listen is the address reserved for a future wire-protocol adapter;
	// the engine itself is transport-agnostic per its scope, so nothing
	// binds this yet.
	Listen string

	// MetricsListen is the address the Prometheus /metrics handler binds.
	MetricsListen string

	LogLevel string
	LogJSON  bool

	// PageCacheSizeBytes is loaded and validated but not passed to the
	// stores: every shard's page cache is sized by
	// pagecache.CalculateDefaultPoolSize regardless of this value.
	PageCacheSizeBytes int64

	// PageCacheMaxDirtyBytes is loaded and validated but not passed to the
	// stores; the page cache has no dirty-page limit and flushes only on
	// eviction and FlushAll.
	PageCacheMaxDirtyBytes int64
}

// Defaults returns the configuration used when no file, environment
// variable, or flag overrides a field.
func Defaults() Config {
	return Config{
		DataDir:                "./data",
		Listen:                 "0.0.0.0:11311",
		MetricsListen:          "0.0.0.0:9090",
		LogLevel:               "info",
		LogJSON:                false,
		PageCacheSizeBytes:     1 << 30, // 1 GiB, the default pool sizing budget
		PageCacheMaxDirtyBytes: 512 << 20,
	}
}

// Load reads a Config out of v, which the caller has already had viper
// populate from a config file, SHARDSTORE_ environment variables, and
// bound cobra flags, in that ascending order of precedence.
func Load(v *viper.Viper) (Config, error) {
	cfg := Defaults()

	if s := v.GetString("data-dir"); s != "" {
		cfg.DataDir = s
	}
	if s := v.GetString("listen"); s != "" {
		cfg.Listen = s
	}
	if s := v.GetString("metrics-listen"); s != "" {
		cfg.MetricsListen = s
	}
	if s := v.GetString("log-level"); s != "" {
		cfg.LogLevel = s
	}
	cfg.LogJSON = v.GetBool("log-json")
	if n := v.GetInt64("pagecache-size-bytes"); n != 0 {
		cfg.PageCacheSizeBytes = n
	}
	if n := v.GetInt64("pagecache-max-dirty-bytes"); n != 0 {
		cfg.PageCacheMaxDirtyBytes = n
	}

	return cfg, cfg.Validate()
}

// Validate rejects settings that would leave the server unable to start.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data-dir must not be empty")
	}
	if c.PageCacheSizeBytes < 0 {
		return fmt.Errorf("config: pagecache-size-bytes must not be negative")
	}
	if c.PageCacheMaxDirtyBytes < 0 {
		return fmt.Errorf("config: pagecache-max-dirty-bytes must not be negative")
	}
	if c.PageCacheMaxDirtyBytes > c.PageCacheSizeBytes && c.PageCacheSizeBytes != 0 {
		return fmt.Errorf("config: pagecache-max-dirty-bytes (%d) exceeds pagecache-size-bytes (%d)", c.PageCacheMaxDirtyBytes, c.PageCacheSizeBytes)
	}
	return nil
}
