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
	"fmt"

	"shardstore/internal/databuf"
	"shardstore/internal/keyrange"
)

// ReadResponse is the result of executing a Read: GetResponse for a Get,
// RgetResponse for an Rget.
type ReadResponse interface{}

// GetResponse is the response to a Get.
type GetResponse struct {
	Found bool
	Value *databuf.Buffer
	Flags uint32
	Cas   uint64
}

// RgetElement is one (key, value) pair of an Rget response, in ascending
// key order.
type RgetElement struct {
	Key   keyrange.Key
	Value *databuf.Buffer
	Flags uint32
	Cas   uint64
}

// RgetResponse is the response to an Rget: a finite, already-materialized
// sequence (the lazy borrow-the-transaction shape described in the design
// notes is collapsed to an eagerly materialized slice, which
// btreeslice.RgetSlice builds before the transaction is released).
type RgetResponse struct {
	Elements []RgetElement
}

// Read is a read query: Get or Rget. Implementations are finite and
// package-private in spirit; dispatch.go type-switches over them.
type Read interface {
	// Region is the smallest key range the query touches.
	Region() keyrange.KeyRange
	// Shard narrows the query to sub, which must lie within Region().
	Shard(sub keyrange.KeyRange) (Read, error)
	// Unshard combines per-sub-range responses into one.
	Unshard(responses []ReadResponse) (ReadResponse, error)
	// EffectiveTime is the expiration frame of reference.
	EffectiveTime() int64
}

// GetRead is a point lookup.
type GetRead struct {
	Key     keyrange.Key
	EffTime int64
}

func (g GetRead) Region() keyrange.KeyRange { return keyrange.Point(g.Key) }
func (g GetRead) EffectiveTime() int64      { return g.EffTime }

func (g GetRead) Shard(sub keyrange.KeyRange) (Read, error) {
	if !sub.Equal(g.Region()) {
		return nil, fmt.Errorf("shard: Get.Shard requires sub == point region %s, got %s", g.Region(), sub)
	}
	return g, nil
}

func (g GetRead) Unshard(responses []ReadResponse) (ReadResponse, error) {
	if len(responses) != 1 {
		return nil, fmt.Errorf("%w: Get.Unshard expects exactly 1 response, got %d", ErrDomainViolation, len(responses))
	}
	return responses[0], nil
}

// RgetRead is a range scan over Range.
type RgetRead struct {
	Range   keyrange.KeyRange
	EffTime int64
}

func (g RgetRead) Region() keyrange.KeyRange { return g.Range }
func (g RgetRead) EffectiveTime() int64      { return g.EffTime }

// Shard narrows an Rget to sub, adopting sub's left bound as a closed
// lower bound and keeping sub's upper bound with its own mode (none, open
// or closed), so the pieces of a partition such as [a,c) and [c,d]
// concatenate without overlap and without dropping the closed end key.
func (g RgetRead) Shard(sub keyrange.KeyRange) (Read, error) {
	if !sub.SubsetOf(g.Range) {
		return nil, fmt.Errorf("shard: Rget.Shard requires sub ⊆ %s, got %s", g.Range, sub)
	}
	out := keyrange.KeyRange{}
	if sub.LeftMode != keyrange.None {
		out.LeftMode, out.LeftKey = keyrange.Closed, sub.LeftKey
	}
	if sub.RightMode != keyrange.None {
		out.RightMode, out.RightKey = sub.RightMode, sub.RightKey
	}
	return RgetRead{Range: out, EffTime: g.EffTime}, nil
}

// Unshard merges per-sub-range RgetResponses into one ascending-key
// stream. Ties are impossible because shards partition the key space.
func (g RgetRead) Unshard(responses []ReadResponse) (ReadResponse, error) {
	perRange := make([][]RgetElement, 0, len(responses))
	for _, r := range responses {
		rg, ok := r.(RgetResponse)
		if !ok {
			return nil, fmt.Errorf("%w: Rget.Unshard received a non-RgetResponse %T", ErrDomainViolation, r)
		}
		perRange = append(perRange, rg.Elements)
	}
	return RgetResponse{Elements: mergeRanges(perRange)}, nil
}

// mergeRanges performs an ordered k-way merge of already-ascending
// per-sub-range element slices, keyed by key ascending. This is the
// "result merger" component: sub-ranges partition the key space, so no
// two input slices can contain the same key.
func mergeRanges(ranges [][]RgetElement) []RgetElement {
	idx := make([]int, len(ranges))
	var total int
	for _, r := range ranges {
		total += len(r)
	}
	out := make([]RgetElement, 0, total)
	for {
		best := -1
		for i, r := range ranges {
			if idx[i] >= len(r) {
				continue
			}
			if best == -1 || keyrange.Compare(r[idx[i]].Key, ranges[best][idx[best]].Key) < 0 {
				best = i
			}
		}
		if best == -1 {
			return out
		}
		out = append(out, ranges[best][idx[best]])
		idx[best]++
	}
}
