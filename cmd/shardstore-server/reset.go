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

	"github.com/spf13/cobra"

	"shardstore/internal/keyrange"
	"shardstore/shard"
)

var resetShardID string

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe one shard's entire key range and reinitialize its metainfo",
	Long: "Reset erases every key owned by the named shard and replaces its metainfo\n" +
		"with an empty map, the same operation a peer runs on itself before accepting\n" +
		"a full backfill from scratch.",
	RunE: runReset,
}

func init() {
	resetCmd.Flags().StringVar(&resetShardID, "shard", "", "shard id from the manifest to reset (required)")
	_ = resetCmd.MarkFlagRequired("shard")
}

func runReset(cmd *cobra.Command, args []string) error {
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
	var target *shard.Store
	var targetRange keyrange.KeyRange
	for _, p := range pieces {
		if string(p.Shard) == resetShardID {
			target = p.Store
			targetRange = p.Range
			break
		}
	}
	if target == nil {
		return fmt.Errorf("shardstore-server: no shard named %q in the manifest", resetShardID)
	}

	empty := keyrange.NewRegionMap[[]byte](keyrange.Universe(), nil)
	if err := target.ResetData(context.Background(), targetRange, empty); err != nil {
		return err
	}
	log.Info("shard reset", "shard_id", resetShardID, "range", targetRange.String())
	return nil
}
