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

// Package router is an in-process, in-memory index of which shard store
// owns which piece of the key space. It is explicitly not a distributed
// discovery service: membership is whatever Assign/Unassign calls have
// told it, with no cluster-wide coordination, gossip, or persistence of
// its own (cluster-wide routing is a spec Non-goal).
package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/puzpuzpuz/xsync/v3"

	"shardstore/internal/fifo"
	"shardstore/internal/keyrange"
	"shardstore/internal/metrics"
	"shardstore/shard"
)

// ShardID names one shard store within a Router.
type ShardID string

// ownedRange is one entry of the Router's ordered region index.
type ownedRange struct {
	Range keyrange.KeyRange
	Shard ShardID
}

// Less orders entries by left bound, treating an unbounded left (None)
// as preceding every bounded left.
func (r *ownedRange) Less(than btree.Item) bool {
	o := than.(*ownedRange)
	if r.Range.LeftMode == keyrange.None {
		return o.Range.LeftMode != keyrange.None
	}
	if o.Range.LeftMode == keyrange.None {
		return false
	}
	return keyrange.Compare(r.Range.LeftKey, o.Range.LeftKey) < 0
}

// Router maps regions to the shard.Store that owns them.
type Router struct {
	mu     sync.RWMutex
	ranges *btree.BTree // of *ownedRange, ordered by left bound

	stores *xsync.MapOf[ShardID, *shard.Store]
}

// New returns an empty Router.
func New() *Router {
	return &Router{
		ranges: btree.New(32),
		stores: xsync.NewMapOf[ShardID, *shard.Store](),
	}
}

// Assign registers store as the owner of rng under id. rng must not
// overlap any range already assigned to a different shard.
func (r *Router) Assign(id ShardID, rng keyrange.KeyRange, store *shard.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var overlapErr error
	r.ranges.Ascend(func(item btree.Item) bool {
		existing := item.(*ownedRange)
		if existing.Shard == id {
			return true
		}
		if _, ok := existing.Range.Intersect(rng); ok {
			overlapErr = fmt.Errorf("router: range %s for shard %q overlaps %s owned by shard %q", rng, id, existing.Range, existing.Shard)
			return false
		}
		return true
	})
	if overlapErr != nil {
		return overlapErr
	}

	r.ranges.ReplaceOrInsert(&ownedRange{Range: rng, Shard: id})
	r.stores.Store(id, store)
	return nil
}

// Unassign removes a shard from the index and returns its Store, if it
// was present. The caller is responsible for closing the returned store.
func (r *Router) Unassign(id ShardID) (*shard.Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stale []btree.Item
	r.ranges.Ascend(func(item btree.Item) bool {
		if item.(*ownedRange).Shard == id {
			stale = append(stale, item)
		}
		return true
	})
	for _, item := range stale {
		r.ranges.Delete(item)
	}
	return r.stores.LoadAndDelete(id)
}

// Locate returns the shard owning key, if any range has been assigned
// to cover it.
func (r *Router) Locate(key keyrange.Key) (ShardID, *shard.Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pivot := &ownedRange{Range: keyrange.Point(key)}
	var candidate *ownedRange
	r.ranges.DescendLessOrEqual(pivot, func(item btree.Item) bool {
		candidate = item.(*ownedRange)
		return false
	})
	if candidate == nil || !candidate.Range.Contains(key) {
		return "", nil, false
	}
	store, ok := r.stores.Load(candidate.Shard)
	if !ok {
		return "", nil, false
	}
	return candidate.Shard, store, true
}

// Piece is one sub-range of a sharded request, paired with the store
// that owns it.
type Piece struct {
	Range keyrange.KeyRange
	Shard ShardID
	Store *shard.Store
}

// Pieces returns the sub-ranges of region owned by distinct shards, in
// ascending left-bound order. A region that straddles an unassigned gap
// yields pieces covering only the assigned parts; callers that require
// full coverage should check the pieces' union against region
// themselves.
func (r *Router) Pieces(region keyrange.KeyRange) ([]Piece, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Piece
	var missing error
	r.ranges.Ascend(func(item btree.Item) bool {
		owned := item.(*ownedRange)
		inter, ok := owned.Range.Intersect(region)
		if !ok {
			return true
		}
		store, found := r.stores.Load(owned.Shard)
		if !found {
			missing = fmt.Errorf("router: shard %q has an assigned range but no store", owned.Shard)
			return false
		}
		out = append(out, Piece{Range: inter, Shard: owned.Shard, Store: store})
		return true
	})
	if missing != nil {
		return nil, missing
	}
	return out, nil
}

// ExecuteRead locates every shard overlapping r's region, mints a read
// token against each owning store up front (pinning this request's place
// in that store's FIFO order before any of them actually acquires), then
// narrows r to each owned sub-range via Read.Shard, executes the narrowed
// query against the owning store, and recombines the per-shard responses
// via Read.Unshard.
func ExecuteRead(ctx context.Context, r *Router, read shard.Read) (resp shard.ReadResponse, err error) {
	kind := readKind(read)
	start := time.Now()
	defer func() { metrics.ObserveOperation(kind, err, time.Since(start)) }()

	pieces, err := r.Pieces(read.Region())
	if err != nil {
		return nil, err
	}
	if len(pieces) == 0 {
		return nil, fmt.Errorf("router: no shard owns any part of %s", read.Region())
	}

	tokens := make([]fifo.Token, len(pieces))
	for i, p := range pieces {
		tokens[i] = p.Store.NewReadToken()
	}

	responses := make([]shard.ReadResponse, 0, len(pieces))
	for i, p := range pieces {
		sub, err := read.Shard(p.Range)
		if err != nil {
			return nil, err
		}
		pieceResp, err := p.Store.ExecuteReadToken(ctx, tokens[i], sub)
		if err != nil {
			return nil, err
		}
		responses = append(responses, pieceResp)
	}
	return read.Unshard(responses)
}

// readKind names a Read implementation for metrics labeling.
func readKind(r shard.Read) string {
	switch r.(type) {
	case shard.GetRead:
		return "get"
	case shard.RgetRead:
		return "rget"
	default:
		return "read_unknown"
	}
}

// writeKind names a Write implementation for metrics labeling.
func writeKind(w shard.Write) string {
	switch w.(type) {
	case shard.GetCasWrite:
		return "get_cas"
	case shard.SetWrite:
		return "set"
	case shard.IncrDecrWrite:
		return "incr_decr"
	case shard.AppendPrependWrite:
		return "append_prepend"
	case shard.DeleteWrite:
		return "delete"
	default:
		return "write_unknown"
	}
}

// ExecuteWrite locates the single shard owning w's key, mints a write
// token against it up front to pin this write's place in that store's
// FIFO order, and executes the write. Writes are always point mutations,
// so exactly one shard is ever involved; meta and expectedChangeCount
// pass straight through to shard.Store.ExecuteWriteToken.
func ExecuteWrite(ctx context.Context, r *Router, w shard.Write, meta *shard.MetainfoOp, expectedChangeCount int) (resp shard.WriteResponse, err error) {
	kind := writeKind(w)
	start := time.Now()
	defer func() { metrics.ObserveOperation(kind, err, time.Since(start)) }()

	id, store, ok := r.Locate(w.Key())
	if !ok {
		return nil, fmt.Errorf("router: no shard owns key %q", w.Key())
	}
	token := store.NewWriteToken()
	sub, err := w.Shard(w.Region())
	if err != nil {
		return nil, err
	}
	resp, err = store.ExecuteWriteToken(ctx, token, sub, meta, expectedChangeCount)
	if err != nil {
		return nil, fmt.Errorf("router: write on shard %q: %w", id, err)
	}
	return resp, nil
}
