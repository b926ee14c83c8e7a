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

// Package pagecache implements the Cache contract: buffered transactions
// over a block device. It pins and unpins pages from an
// internal/pager.Serializer through an LRU-K buffer pool, so the
// B-tree slice above it never touches the file directly.
package pagecache

import (
	"container/list"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"shardstore/internal/pager"
)

// lruKValue is the K in LRU-K: a page's eviction priority is its K-th
// most recent access, not merely its most recent one, so a page touched
// once a long time ago doesn't outrank one touched twice recently.
const lruKValue = 2

// DefaultMaxSize / DefaultMaxDirtySize mirror the external Cache
// collaborator's documented defaults.
const (
	DefaultMaxSize      = 1 << 30 // 1 GiB
	DefaultMaxDirtySize = 512 << 20
)

var (
	ErrCacheFull    = errors.New("pagecache: no unpinned frame available to evict")
	ErrPageNotFound = errors.New("pagecache: page not resident")
)

// Frame is one buffer-pool slot holding a single page in memory.
type Frame struct {
	page          *pager.Page
	pageID        pager.PageID
	pinCount      int
	dirty         bool
	lruElement    *list.Element
	accessHistory []time.Time
}

// Stats is a point-in-time snapshot of pool utilization, exposed through
// internal/metrics.
type Stats struct {
	PoolSize    int
	UsedFrames  int
	DirtyPages  int
	PinnedPages int
	Hits        int64
	Misses      int64
	HitRate     float64
}

// Cache is an LRU-K buffer pool fronting a Serializer.
type Cache struct {
	serializer *pager.Serializer
	poolSize   int

	mu         sync.Mutex
	pageTable  map[pager.PageID]*Frame
	lruList    *list.List
	freeFrames []*Frame

	hits   atomic.Int64
	misses atomic.Int64
}

// CalculateDefaultPoolSize auto-sizes the pool to a quarter of the memory
// the Go runtime has obtained from the OS (runtime.MemStats.Sys), in
// pages, clamped to between 256 and 131072 pages.
func CalculateDefaultPoolSize() int {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	pages := int(mem.Sys/4) / pager.PageSize
	if pages < 256 {
		return 256
	}
	if pages > 131072 {
		return 131072
	}
	return pages
}

// New builds a Cache of poolSize frames over serializer. A poolSize of 0
// auto-sizes via CalculateDefaultPoolSize.
func New(serializer *pager.Serializer, poolSize int) *Cache {
	if poolSize <= 0 {
		poolSize = CalculateDefaultPoolSize()
	}
	c := &Cache{
		serializer: serializer,
		poolSize:   poolSize,
		pageTable:  make(map[pager.PageID]*Frame, poolSize),
		lruList:    list.New(),
	}
	for i := 0; i < poolSize; i++ {
		c.freeFrames = append(c.freeFrames, &Frame{})
	}
	return c
}

// FetchPage pins id in memory, reading it from the serializer on a miss,
// and returns the page for in-place mutation.
func (c *Cache) FetchPage(id pager.PageID) (*pager.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if frame, ok := c.pageTable[id]; ok {
		c.hits.Add(1)
		frame.pinCount++
		c.updateAccessHistory(frame)
		if frame.lruElement != nil {
			c.lruList.Remove(frame.lruElement)
			frame.lruElement = nil
		}
		return frame.page, nil
	}

	c.misses.Add(1)
	page, err := c.serializer.ReadPage(id)
	if err != nil {
		return nil, err
	}
	frame, err := c.getFrame()
	if err != nil {
		return nil, err
	}
	frame.page = page
	frame.pageID = id
	frame.pinCount = 1
	frame.dirty = false
	frame.lruElement = nil
	frame.accessHistory = frame.accessHistory[:0]
	c.updateAccessHistory(frame)
	c.pageTable[id] = frame
	return page, nil
}

// NewPage allocates a fresh page via the serializer and pins it.
func (c *Cache) NewPage(pageType byte) (*pager.Page, pager.PageID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := c.serializer.AllocatePage(pageType)
	if err != nil {
		return nil, pager.InvalidPageID, err
	}
	frame, err := c.getFrame()
	if err != nil {
		return nil, pager.InvalidPageID, err
	}
	page, err := c.serializer.ReadPage(id)
	if err != nil {
		return nil, pager.InvalidPageID, err
	}
	frame.page = page
	frame.pageID = id
	frame.pinCount = 1
	frame.dirty = true
	frame.lruElement = nil
	frame.accessHistory = frame.accessHistory[:0]
	c.updateAccessHistory(frame)
	c.pageTable[id] = frame
	return page, id, nil
}

func (c *Cache) updateAccessHistory(frame *Frame) {
	now := time.Now()
	if len(frame.accessHistory) >= lruKValue {
		copy(frame.accessHistory, frame.accessHistory[1:])
		frame.accessHistory[lruKValue-1] = now
	} else {
		frame.accessHistory = append(frame.accessHistory, now)
	}
}

func (c *Cache) getFrame() (*Frame, error) {
	if len(c.freeFrames) > 0 {
		frame := c.freeFrames[len(c.freeFrames)-1]
		c.freeFrames = c.freeFrames[:len(c.freeFrames)-1]
		return frame, nil
	}

	var victim *list.Element
	var oldestKth time.Time
	for e := c.lruList.Back(); e != nil; e = e.Prev() {
		frame := e.Value.(*Frame)
		if frame.pinCount != 0 {
			continue
		}
		var kth time.Time
		if len(frame.accessHistory) > 0 {
			kth = frame.accessHistory[0]
		}
		if victim == nil || kth.Before(oldestKth) {
			victim = e
			oldestKth = kth
		}
	}
	if victim == nil {
		return nil, ErrCacheFull
	}
	frame := victim.Value.(*Frame)
	if frame.dirty {
		if err := c.serializer.WritePage(frame.page); err != nil {
			return nil, err
		}
	}
	delete(c.pageTable, frame.pageID)
	c.lruList.Remove(victim)
	frame.lruElement = nil
	frame.accessHistory = frame.accessHistory[:0]
	return frame, nil
}

// UnpinPage releases one pin on id, optionally marking it dirty so it is
// written back before eviction.
func (c *Cache) UnpinPage(id pager.PageID, dirty bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	frame, ok := c.pageTable[id]
	if !ok {
		return ErrPageNotFound
	}
	if frame.pinCount <= 0 {
		return nil
	}
	frame.pinCount--
	if dirty {
		frame.dirty = true
	}
	if frame.pinCount == 0 && frame.lruElement == nil {
		frame.lruElement = c.lruList.PushFront(frame)
	}
	return nil
}

// FlushPage writes id back to the serializer if dirty.
func (c *Cache) FlushPage(id pager.PageID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	frame, ok := c.pageTable[id]
	if !ok || !frame.dirty {
		return nil
	}
	if err := c.serializer.WritePage(frame.page); err != nil {
		return err
	}
	frame.dirty = false
	return nil
}

// FlushAll writes every dirty resident page back to the serializer.
func (c *Cache) FlushAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, frame := range c.pageTable {
		if frame.dirty {
			if err := c.serializer.WritePage(frame.page); err != nil {
				return err
			}
			frame.dirty = false
		}
	}
	return nil
}

// Stats reports current utilization.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Stats{
		PoolSize:   c.poolSize,
		UsedFrames: len(c.pageTable),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
	}
	for _, frame := range c.pageTable {
		if frame.dirty {
			st.DirtyPages++
		}
		if frame.pinCount > 0 {
			st.PinnedPages++
		}
	}
	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total)
	}
	return st
}

// Serializer returns the backing Serializer, for callers (the B-tree
// slice's startup scan) that need to enumerate pages directly.
func (c *Cache) Serializer() *pager.Serializer { return c.serializer }

// Close flushes every dirty page and closes the underlying serializer.
func (c *Cache) Close() error {
	if err := c.FlushAll(); err != nil {
		return err
	}
	return c.serializer.Close()
}
