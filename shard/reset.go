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

package shard

import (
	"context"

	"shardstore/internal/keyrange"
)

// ResetData overlays newMetainfo onto the existing map and erases every
// key in subregion, both inside one write transaction with
// expected_change_count = 2, per spec §4.8.
func (s *Store) ResetData(ctx context.Context, subregion keyrange.KeyRange, newMetainfo Metainfo) error {
	release, err := s.acquireWrite(ctx, s.NewWriteToken(), DefaultExpectedChangeCount)
	if err != nil {
		return err
	}
	defer release()

	if err := s.UpdateMetainfo(newMetainfo); err != nil {
		return err
	}
	_, err = s.slice.EraseRange(subregion, nil)
	return err
}
