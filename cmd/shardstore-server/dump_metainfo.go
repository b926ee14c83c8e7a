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
	"fmt"

	"github.com/spf13/cobra"

	"shardstore/internal/keyrange"
)

func fullDomain() keyrange.KeyRange { return keyrange.Universe() }

var dumpMetainfoCmd = &cobra.Command{
	Use:   "dump-metainfo",
	Short: "Print every shard's current metainfo map",
	RunE:  runDumpMetainfo,
}

func runDumpMetainfo(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	f, err := openFleet(cfg.DataDir)
	if err != nil {
		return err
	}
	defer f.Close()

	pieces, err := f.router.Pieces(fullDomain())
	if err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, p := range pieces {
		if seen[string(p.Shard)] {
			continue
		}
		seen[string(p.Shard)] = true

		m, err := p.Store.GetMetainfo()
		if err != nil {
			return fmt.Errorf("shard %q: %w", p.Shard, err)
		}
		fmt.Printf("shard %s (owns %s):\n", p.Shard, p.Range)
		for _, part := range m.Partitions() {
			fmt.Printf("  %s -> %d bytes\n", part.Range, len(part.Value))
		}
	}
	return nil
}
