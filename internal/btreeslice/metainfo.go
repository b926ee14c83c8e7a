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

package btreeslice

import (
	"errors"
	"fmt"

	"shardstore/internal/framing"
	"shardstore/internal/keyrange"
	"shardstore/internal/pager"
)

// ErrDecode is returned when the superblock's metainfo slot fails to
// decode, wrapping the underlying framing error. shard.Store translates
// this into shard.ErrDecode at the package boundary.
var ErrDecode = errors.New("btreeslice: metainfo decode error")

// writeMetainfoPage overwrites the superblock page's metainfo slot with
// the flat (serialized-region, bytes) pair sequence.
func writeMetainfoPage(page *pager.Page, m keyrange.RegionMap[[]byte]) error {
	fresh := pager.NewPage(superblockPageID, pager.PageTypeMeta)
	*page = *fresh
	for _, p := range m.Partitions() {
		if _, err := page.InsertRecord(framing.EncodeKeyRange(p.Range)); err != nil {
			return err
		}
		if _, err := page.InsertRecord(p.Value); err != nil {
			return err
		}
	}
	return nil
}

func readMetainfoPage(page *pager.Page) (keyrange.RegionMap[[]byte], error) {
	recs := page.Records()
	var parts []keyrange.Partition[[]byte]
	for i := 0; i+1 < len(recs); i += 2 {
		r, err := framing.DecodeKeyRange(recs[i])
		if err != nil {
			return keyrange.RegionMap[[]byte]{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		parts = append(parts, keyrange.Partition[[]byte]{Range: r, Value: recs[i+1]})
	}
	return keyrange.FromPartitions(keyrange.Universe(), parts), nil
}

// GetMetainfo returns the current metainfo map. Its domain is always
// universe.
func (s *Slice) GetMetainfo() (keyrange.RegionMap[[]byte], error) {
	page, err := s.cache.FetchPage(superblockPageID)
	if err != nil {
		return keyrange.RegionMap[[]byte]{}, err
	}
	defer s.cache.UnpinPage(superblockPageID, false)
	return readMetainfoPage(page)
}

// SetMetainfo overwrites the metainfo map wholesale. Callers (the shard
// layer's metainfo codec) are responsible for ensuring the domain
// invariant (== universe) before calling this.
func (s *Slice) SetMetainfo(m keyrange.RegionMap[[]byte]) error {
	page, err := s.cache.FetchPage(superblockPageID)
	if err != nil {
		return err
	}
	if err := writeMetainfoPage(page, m); err != nil {
		s.cache.UnpinPage(superblockPageID, false)
		return err
	}
	if err := s.cache.UnpinPage(superblockPageID, true); err != nil {
		return err
	}
	return s.cache.FlushPage(superblockPageID)
}
