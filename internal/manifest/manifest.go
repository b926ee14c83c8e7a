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

// Package manifest describes, in a small JSON file, which shard stores a
// deployment consists of and which piece of the key space each one owns.
// cmd/shardstore-server and cmd/shardstore-shell both load one to build a
// router.Router without requiring a cluster-coordination service, which
// is explicitly out of scope for this engine.
package manifest

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"shardstore/internal/keyrange"
)

// Entry describes one shard: its backing file and the key range it owns.
// Bounds are hex-encoded so arbitrary binary keys round-trip through
// JSON; an empty Left/Right with mode "none" means unbounded.
type Entry struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	LeftMode  string `json:"left_mode"`
	Left      string `json:"left,omitempty"`
	RightMode string `json:"right_mode"`
	Right     string `json:"right,omitempty"`
}

// Manifest is the top-level shape of the manifest file.
type Manifest struct {
	Shards []Entry `json:"shards"`
}

// Load reads and parses the manifest file at path.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("manifest: parse %s: %w", path, err)
	}
	return m, nil
}

// Save writes m to path as indented JSON.
func Save(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("manifest: write %s: %w", path, err)
	}
	return nil
}

// SingleShard returns a one-entry manifest covering the entire key space,
// backed by a file named "shard.db" under dataDir. This is the manifest
// cmd/shardstore-server synthesizes when none is found on disk.
func SingleShard(dataDir string) Manifest {
	return Manifest{Shards: []Entry{{
		ID:        "shard-0",
		Path:      filepath.Join(dataDir, "shard.db"),
		LeftMode:  "none",
		RightMode: "none",
	}}}
}

// Range decodes e's hex-encoded bounds into a keyrange.KeyRange.
func (e Entry) Range() (keyrange.KeyRange, error) {
	var kr keyrange.KeyRange
	mode, key, err := decodeBound(e.LeftMode, e.Left)
	if err != nil {
		return kr, fmt.Errorf("manifest: shard %q: left bound: %w", e.ID, err)
	}
	kr.LeftMode, kr.LeftKey = mode, key

	mode, key, err = decodeBound(e.RightMode, e.Right)
	if err != nil {
		return kr, fmt.Errorf("manifest: shard %q: right bound: %w", e.ID, err)
	}
	kr.RightMode, kr.RightKey = mode, key
	return kr, nil
}

func decodeBound(mode, hexKey string) (keyrange.BoundMode, keyrange.Key, error) {
	switch mode {
	case "", "none":
		return keyrange.None, nil, nil
	case "open":
		key, err := hex.DecodeString(hexKey)
		return keyrange.Open, keyrange.Key(key), err
	case "closed":
		key, err := hex.DecodeString(hexKey)
		return keyrange.Closed, keyrange.Key(key), err
	default:
		return keyrange.None, nil, fmt.Errorf("unrecognized bound mode %q", mode)
	}
}
