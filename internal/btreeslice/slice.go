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

// Package btreeslice implements the BTreeSlice contract: ordered
// key/value operations under a transaction, backed by a page cache. It
// is the one piece of the engine that actually knows what a key and a
// value are; everything below it (pagecache, pager) only knows about
// pages.
package btreeslice

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/btree"

	"shardstore/internal/keyrange"
	"shardstore/internal/pagecache"
	"shardstore/internal/pager"
)

// Recency is the B-tree's coarser notion of time: Unix seconds. Backfill
// converts the shard layer's time.Time state_timestamp down to this
// quantum, floored to the second; see SPEC_FULL.md §9 decision 3.
type Recency int64

// RecencyFromTime floors t to the Recency quantum.
func RecencyFromTime(t time.Time) Recency {
	return Recency(t.Unix())
}

// InvalidRecency marks a value with no meaningful timestamp, mirroring
// the original's invalid replication timestamp sentinel.
const InvalidRecency Recency = -1

// InvalidCas is the sentinel CAS value meaning "no CAS constraint" /
// "never assigned."
const InvalidCas uint64 = 0

const superblockPageID = pager.PageID(1)

// item adapts a record into google/btree's classic ordered-item
// interface, keyed by its record's key.
type item struct {
	rec *record
}

func (i *item) Less(than btree.Item) bool {
	return keyrange.Compare(i.rec.key, than.(*item).rec.key) < 0
}

// Slice is one B-tree slice: an ordered in-memory key index whose
// mutations are durably logged through a Cache, plus a reserved
// superblock page holding the metainfo map.
type Slice struct {
	cache *pagecache.Cache

	mu             sync.Mutex
	index          *btree.BTree
	nextSeq        uint64
	currentLogPage pager.PageID // page new records are appended to until full
}

// Create initializes a brand new backing file and an empty slice whose
// superblock page is the very first page allocated.
func Create(path string) (*Slice, error) {
	ser, err := pager.Create(path)
	if err != nil {
		return nil, err
	}
	cache := pagecache.New(ser, 0)
	s := &Slice{cache: cache, index: btree.New(32)}

	page, id, err := cache.NewPage(pager.PageTypeMeta)
	if err != nil {
		cache.Close()
		return nil, err
	}
	if id != superblockPageID {
		cache.Close()
		return nil, fmt.Errorf("btreeslice: expected superblock at page %d, got %d", superblockPageID, id)
	}
	if err := writeMetainfoPage(page, keyrange.NewRegionMap(keyrange.Universe(), []byte(nil))); err != nil {
		cache.Close()
		return nil, err
	}
	if err := cache.UnpinPage(id, true); err != nil {
		cache.Close()
		return nil, err
	}
	if err := cache.FlushAll(); err != nil {
		cache.Close()
		return nil, err
	}
	return s, nil
}

// Open reopens an existing backing file and replays its log pages to
// rebuild the in-memory index.
func Open(path string) (*Slice, error) {
	ser, err := pager.Open(path)
	if err != nil {
		return nil, err
	}
	cache := pagecache.New(ser, 0)
	s := &Slice{cache: cache, index: btree.New(32)}

	for _, id := range ser.AllPageIDs() {
		if id == superblockPageID {
			continue
		}
		page, err := cache.FetchPage(id)
		if err != nil {
			cache.Close()
			return nil, err
		}
		for _, raw := range page.Records() {
			rec, err := decodeRecord(raw)
			if err != nil {
				cache.UnpinPage(id, false)
				cache.Close()
				return nil, err
			}
			s.applyReplayed(rec)
		}
		cache.UnpinPage(id, false)
	}
	return s, nil
}

func (s *Slice) applyReplayed(rec *record) {
	if rec.seq >= s.nextSeq {
		s.nextSeq = rec.seq + 1
	}
	existing := s.index.Get(&item{rec: rec})
	if existing != nil && existing.(*item).rec.seq > rec.seq {
		return
	}
	s.index.ReplaceOrInsert(&item{rec: rec})
}

// Close flushes and closes the underlying cache/serializer.
func (s *Slice) Close() error {
	return s.cache.Close()
}

// lookup returns the live record for key, or nil.
func (s *Slice) lookup(key keyrange.Key) *record {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := s.index.Get(&item{rec: &record{key: key}})
	if found == nil {
		return nil
	}
	return found.(*item).rec
}

// persist assigns the next seq, appends the record to the current log
// page (allocating a fresh one if it's full, the heap file's own
// first-page-with-space policy), and installs it in the in-memory index.
// Holding s.mu across the page append keeps the in-memory index and
// on-disk log consistent even if two writers race (the shard layer's
// FIFO enforcer normally prevents that, but btreeslice does not assume
// it).
func (s *Slice) persist(rec *record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.seq = s.nextSeq
	s.nextSeq++

	enc := encodeRecord(rec)
	id, err := s.appendToLogLocked(enc)
	if err != nil {
		return err
	}
	if err := s.cache.FlushPage(id); err != nil {
		return err
	}
	s.index.ReplaceOrInsert(&item{rec: rec})
	return nil
}

// appendToLogLocked inserts enc into the current log page, rolling over
// to a freshly allocated page when the current one has no room.
func (s *Slice) appendToLogLocked(enc []byte) (pager.PageID, error) {
	if s.currentLogPage != pager.InvalidPageID {
		page, err := s.cache.FetchPage(s.currentLogPage)
		if err != nil {
			return pager.InvalidPageID, err
		}
		if _, err := page.InsertRecord(enc); err == nil {
			id := s.currentLogPage
			if err := s.cache.UnpinPage(id, true); err != nil {
				return pager.InvalidPageID, err
			}
			return id, nil
		}
		s.cache.UnpinPage(s.currentLogPage, false)
	}

	page, id, err := s.cache.NewPage(pager.PageTypeData)
	if err != nil {
		return pager.InvalidPageID, err
	}
	if _, err := page.InsertRecord(enc); err != nil {
		s.cache.UnpinPage(id, false)
		return pager.InvalidPageID, err
	}
	if err := s.cache.UnpinPage(id, true); err != nil {
		return pager.InvalidPageID, err
	}
	s.currentLogPage = id
	return id, nil
}

// ascend visits every record, tombstones included, whose key lies in kr, in ascending key
// order, stopping early if visit returns false.
func (s *Slice) ascend(kr keyrange.KeyRange, visit func(*record) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pivot btree.Item
	if kr.LeftMode != keyrange.None {
		pivot = &item{rec: &record{key: kr.LeftKey}}
	}

	iter := func(bi btree.Item) bool {
		rec := bi.(*item).rec
		if !kr.Contains(rec.key) {
			if kr.RightMode != keyrange.None && keyrange.Compare(rec.key, kr.RightKey) > 0 {
				return false
			}
			return true
		}
		return visit(rec)
	}

	if pivot != nil {
		s.index.AscendGreaterOrEqual(pivot, iter)
	} else {
		s.index.Ascend(iter)
	}
}

// isExpired reports whether rec has an exptime set and effectiveTime has
// reached it.
func isExpired(rec *record, effectiveTime int64) bool {
	return rec.exptime != 0 && effectiveTime >= rec.exptime
}

// Cache exposes the underlying Cache for metrics/inspection.
func (s *Slice) Cache() *pagecache.Cache { return s.cache }
