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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"shardstore/internal/manifest"
	"shardstore/router"
	"shardstore/shard"
)

// fleet is every shard store a command has opened, plus the router index
// built from their manifest entries.
type fleet struct {
	router *router.Router
	stores []*shard.Store
}

// openFleet loads (or synthesizes) a manifest under dataDir, opens or
// creates each shard's backing store, and assigns them into a fresh
// Router.
func openFleet(dataDir string) (*fleet, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("shardstore-server: create data dir %s: %w", dataDir, err)
	}

	manifestPath := filepath.Join(dataDir, "manifest.json")
	m, err := manifest.Load(manifestPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		m = manifest.SingleShard(dataDir)
		if err := manifest.Save(manifestPath, m); err != nil {
			return nil, err
		}
		log.Info("wrote a new single-shard manifest", "path", manifestPath)
	}

	f := &fleet{router: router.New()}
	for _, entry := range m.Shards {
		kr, err := entry.Range()
		if err != nil {
			f.Close()
			return nil, err
		}

		store, err := openOrCreateStore(entry.Path)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("shardstore-server: shard %q: %w", entry.ID, err)
		}
		if err := f.router.Assign(router.ShardID(entry.ID), kr, store); err != nil {
			f.Close()
			return nil, err
		}
		f.stores = append(f.stores, store)
		log.Info("shard online", "shard_id", entry.ID, "path", entry.Path, "range", kr.String())
	}
	return f, nil
}

func openOrCreateStore(path string) (*shard.Store, error) {
	if _, err := os.Stat(path); err == nil {
		return shard.Open(path)
	}
	return shard.Create(path)
}

// Close releases every store the fleet opened.
func (f *fleet) Close() {
	for _, s := range f.stores {
		if err := s.Close(); err != nil {
			log.Warn("error closing shard store", "error", err)
		}
	}
}

// ReportCacheMetrics polls every store's page cache utilization once.
func (f *fleet) ReportCacheMetrics() {
	for _, s := range f.stores {
		s.ReportCacheMetrics()
	}
}
