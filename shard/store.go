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

// Package shard implements the per-shard storage engine adapter: the
// request algebra (Read/Write), the transactional store handle, the
// metainfo codec, read/write dispatch, and streaming backfill, all bound
// to a single contiguous key range.
package shard

import (
	"context"
	"fmt"
	"time"

	"shardstore/internal/btreeslice"
	"shardstore/internal/fifo"
	"shardstore/internal/logging"
	"shardstore/internal/metrics"
)

// DefaultExpectedChangeCount is the conservative sizing hint passed to
// write transactions that don't have a more specific estimate: one data
// page plus one metainfo page. Per SPEC_FULL.md §9 decision 2, this is a
// cache-eviction hint only; oversizing it is always safe.
const DefaultExpectedChangeCount = 2

// Store owns a BTreeSlice exclusively, a FIFO token enforcer, and an
// order-checkpoint pair used to detect reordering bugs across superblock
// acquisitions. It is the transactional adapter between the request
// algebra and the underlying storage engine for one shard's key range.
type Store struct {
	slice *btreeslice.Slice
	path  string

	enforcer        *fifo.Enforcer
	orderSource     *fifo.OrderSource
	orderCheckpoint *fifo.OrderCheckpoint

	log *logging.Logger
}

// Create initializes a brand new store backed by a fresh file at path.
func Create(path string) (*Store, error) {
	slice, err := btreeslice.Create(path)
	if err != nil {
		return nil, fmt.Errorf("shard: create store: %w", err)
	}
	s := newStore(slice, path)
	s.log.Info("store created", "path", path)
	return s, nil
}

// Open reopens an existing store, replaying its log to rebuild state.
func Open(path string) (*Store, error) {
	slice, err := btreeslice.Open(path)
	if err != nil {
		return nil, fmt.Errorf("shard: open store: %w", err)
	}
	s := newStore(slice, path)
	s.log.Info("store opened", "path", path)
	return s, nil
}

func newStore(slice *btreeslice.Slice, path string) *Store {
	return &Store{
		slice:           slice,
		path:            path,
		enforcer:        fifo.NewEnforcer(),
		orderSource:     &fifo.OrderSource{},
		orderCheckpoint: &fifo.OrderCheckpoint{},
		log:             logging.NewLogger("shard"),
	}
}

// ID identifies this store for logging and metrics labeling: its backing
// file path.
func (s *Store) ID() string { return s.path }

// ReportCacheMetrics publishes a point-in-time snapshot of this store's
// page cache utilization to internal/metrics, labeled under s.ID(). It
// takes no lock beyond what Cache.Stats() already holds and is safe to
// call periodically from a background poller.
func (s *Store) ReportCacheMetrics() {
	stats := s.slice.Cache().Stats()
	metrics.SetPageCacheStats(s.ID(), stats.UsedFrames, stats.DirtyPages, stats.PoolSize)
}

// Close releases the underlying store and all its sub-resources.
func (s *Store) Close() error {
	return s.slice.Close()
}

// NewReadToken mints a read token ordered after every token minted so far
// on this store.
func (s *Store) NewReadToken() fifo.Token { return s.enforcer.NewReadToken() }

// NewWriteToken mints a write token ordered after every token minted so
// far on this store.
func (s *Store) NewWriteToken() fifo.Token { return s.enforcer.NewWriteToken() }

// acquire implements the common shape of all three superblock-acquisition
// flavors: swap the token into a local holder, await the enforcer
// (interruptible), check an order token in and through the order
// checkpoint, then hand back a release function. On interruption it fails
// with ErrInterrupted and leaves no partial state observable (the
// enforcer's own Acquire already releases the token's queue slot before
// returning an error).
func (s *Store) acquire(ctx context.Context, token fifo.Token) (func(), error) {
	waitStart := time.Now()
	if err := s.enforcer.Acquire(ctx, token); err != nil {
		s.log.Warn("superblock acquisition interrupted", "token_id", token.ID, "token_kind", token.Kind)
		return nil, fmt.Errorf("%w: %v", ErrInterrupted, err)
	}
	metrics.ObserveEnforcerWait(fmt.Sprint(token.Kind), time.Since(waitStart))
	order := s.orderSource.CheckIn()
	s.orderCheckpoint.CheckThrough(order)
	return func() { s.enforcer.Release(token) }, nil
}

// acquireRead obtains a shared read transaction under token, which the
// caller must have minted with NewReadToken — possibly well before this
// call, to pin the operation's place in FIFO order ahead of time.
func (s *Store) acquireRead(ctx context.Context, token fifo.Token) (func(), error) {
	return s.acquire(ctx, token)
}

// acquireBackfill obtains a backfill transaction under token. Per spec
// §4.3 this is "like read" in its ordering: it commutes with other
// readers and with other backfills, and serializes only against writers
// minted before it, so token must come from NewReadToken.
func (s *Store) acquireBackfill(ctx context.Context, token fifo.Token) (func(), error) {
	return s.acquire(ctx, token)
}

// acquireWrite obtains an exclusive write transaction under token, which
// the caller must have minted with NewWriteToken. expectedChangeCount is
// accepted as a sizing hint but is not passed on to the page cache; see
// DefaultExpectedChangeCount.
func (s *Store) acquireWrite(ctx context.Context, token fifo.Token, expectedChangeCount int) (func(), error) {
	_ = expectedChangeCount
	return s.acquire(ctx, token)
}
