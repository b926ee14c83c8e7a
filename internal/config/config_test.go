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

package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.DataDir != "./data" {
		t.Errorf("expected default data-dir './data', got %q", cfg.DataDir)
	}
	if cfg.MetricsListen != "0.0.0.0:9090" {
		t.Errorf("expected default metrics-listen '0.0.0.0:9090', got %q", cfg.MetricsListen)
	}
	if cfg.PageCacheSizeBytes != 1<<30 {
		t.Errorf("expected default pagecache-size-bytes %d, got %d", int64(1<<30), cfg.PageCacheSizeBytes)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate cleanly: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	v := viper.New()
	v.Set("data-dir", "/var/lib/shardstore")
	v.Set("log-level", "debug")
	v.Set("log-json", true)
	v.Set("pagecache-size-bytes", int64(2<<30))

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/var/lib/shardstore" {
		t.Errorf("expected overridden data-dir, got %q", cfg.DataDir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected overridden log-level, got %q", cfg.LogLevel)
	}
	if !cfg.LogJSON {
		t.Errorf("expected log-json true")
	}
	if cfg.PageCacheSizeBytes != 2<<30 {
		t.Errorf("expected overridden pagecache-size-bytes, got %d", cfg.PageCacheSizeBytes)
	}
	// MetricsListen was left unset, so the default should survive.
	if cfg.MetricsListen != "0.0.0.0:9090" {
		t.Errorf("expected default metrics-listen to survive, got %q", cfg.MetricsListen)
	}
}

func TestValidateRejectsEmptyDataDir(t *testing.T) {
	cfg := Defaults()
	cfg.DataDir = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for empty data-dir")
	}
}

func TestValidateRejectsOversizedDirtyBudget(t *testing.T) {
	cfg := Defaults()
	cfg.PageCacheSizeBytes = 100
	cfg.PageCacheMaxDirtyBytes = 200
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error when max-dirty-bytes exceeds size-bytes")
	}
}
