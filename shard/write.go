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
	"time"

	"shardstore/internal/btreeslice"
	"shardstore/internal/keyrange"
)

// WriteResponse is the mutation-specific result of executing a Write: one
// of the btreeslice result types (GetResult, SetResult, IncrDecrResult,
// DeleteOutcome).
type WriteResponse interface{}

// Write is a mutation against a single key. Every variant's region is the
// point range of its key; shard/unshard are therefore identical across
// variants (kept on each concrete type rather than factored through
// embedding, so each variant stays a small, self-contained value per the
// "variants over inheritance" design note).
type Write interface {
	Key() keyrange.Key
	Region() keyrange.KeyRange
	Shard(region keyrange.KeyRange) (Write, error)
	Unshard(responses []WriteResponse) (WriteResponse, error)
	EffectiveTime() int64
	Timestamp() time.Time
	ProposedCas() uint64
}

func shardPoint(w Write, region keyrange.KeyRange) error {
	if !region.Equal(w.Region()) {
		return fmt.Errorf("shard: Write.Shard requires region == %s, got %s", w.Region(), region)
	}
	return nil
}

func unshardSingle(responses []WriteResponse) (WriteResponse, error) {
	if len(responses) != 1 {
		return nil, fmt.Errorf("%w: Write.Unshard expects exactly 1 response, got %d", ErrDomainViolation, len(responses))
	}
	return responses[0], nil
}

// GetCasWrite promotes a value, assigning it a CAS if it has none yet.
type GetCasWrite struct {
	Key_    keyrange.Key
	EffTime int64
	Ts      time.Time
}

func (w GetCasWrite) Key() keyrange.Key          { return w.Key_ }
func (w GetCasWrite) Region() keyrange.KeyRange  { return keyrange.Point(w.Key_) }
func (w GetCasWrite) EffectiveTime() int64       { return w.EffTime }
func (w GetCasWrite) Timestamp() time.Time       { return w.Ts }
func (w GetCasWrite) ProposedCas() uint64        { return btreeslice.InvalidCas }
func (w GetCasWrite) Shard(r keyrange.KeyRange) (Write, error) {
	if err := shardPoint(w, r); err != nil {
		return nil, err
	}
	return w, nil
}
func (w GetCasWrite) Unshard(rs []WriteResponse) (WriteResponse, error) { return unshardSingle(rs) }

// SetWrite stores data under a key, subject to add/replace policy and an
// optional CAS precondition.
type SetWrite struct {
	Key_          keyrange.Key
	Data          []byte
	Flags         uint32
	Exptime       int64
	AddPolicy     bool
	ReplacePolicy bool
	OldCas        uint64
	Proposed      uint64
	EffTime       int64
	Ts            time.Time
}

func (w SetWrite) Key() keyrange.Key         { return w.Key_ }
func (w SetWrite) Region() keyrange.KeyRange { return keyrange.Point(w.Key_) }
func (w SetWrite) EffectiveTime() int64      { return w.EffTime }
func (w SetWrite) Timestamp() time.Time      { return w.Ts }
func (w SetWrite) ProposedCas() uint64       { return w.Proposed }
func (w SetWrite) Shard(r keyrange.KeyRange) (Write, error) {
	if err := shardPoint(w, r); err != nil {
		return nil, err
	}
	return w, nil
}
func (w SetWrite) Unshard(rs []WriteResponse) (WriteResponse, error) { return unshardSingle(rs) }

// IncrDecrWrite applies a numeric delta to a key's decimal-string value.
type IncrDecrWrite struct {
	Key_    keyrange.Key
	Kind    btreeslice.IncrDecrKind
	Amount  uint64
	EffTime int64
	Ts      time.Time
}

func (w IncrDecrWrite) Key() keyrange.Key         { return w.Key_ }
func (w IncrDecrWrite) Region() keyrange.KeyRange { return keyrange.Point(w.Key_) }
func (w IncrDecrWrite) EffectiveTime() int64      { return w.EffTime }
func (w IncrDecrWrite) Timestamp() time.Time      { return w.Ts }
func (w IncrDecrWrite) ProposedCas() uint64       { return btreeslice.InvalidCas }
func (w IncrDecrWrite) Shard(r keyrange.KeyRange) (Write, error) {
	if err := shardPoint(w, r); err != nil {
		return nil, err
	}
	return w, nil
}
func (w IncrDecrWrite) Unshard(rs []WriteResponse) (WriteResponse, error) { return unshardSingle(rs) }

// AppendPrependWrite concatenates data onto (or before) a key's existing
// value.
type AppendPrependWrite struct {
	Key_    keyrange.Key
	Data    []byte
	Kind    btreeslice.AppendPrependKind
	EffTime int64
	Ts      time.Time
}

func (w AppendPrependWrite) Key() keyrange.Key         { return w.Key_ }
func (w AppendPrependWrite) Region() keyrange.KeyRange { return keyrange.Point(w.Key_) }
func (w AppendPrependWrite) EffectiveTime() int64      { return w.EffTime }
func (w AppendPrependWrite) Timestamp() time.Time      { return w.Ts }
func (w AppendPrependWrite) ProposedCas() uint64       { return btreeslice.InvalidCas }
func (w AppendPrependWrite) Shard(r keyrange.KeyRange) (Write, error) {
	if err := shardPoint(w, r); err != nil {
		return nil, err
	}
	return w, nil
}
func (w AppendPrependWrite) Unshard(rs []WriteResponse) (WriteResponse, error) {
	return unshardSingle(rs)
}

// DeleteWrite tombstones a key. ProposedCas must be the invalid sentinel;
// dispatch rejects the call otherwise, per spec §4.5.
type DeleteWrite struct {
	Key_                 keyrange.Key
	DontPutInDeleteQueue bool
	EffTime              int64
	Ts                   time.Time
}

func (w DeleteWrite) Key() keyrange.Key         { return w.Key_ }
func (w DeleteWrite) Region() keyrange.KeyRange { return keyrange.Point(w.Key_) }
func (w DeleteWrite) EffectiveTime() int64      { return w.EffTime }
func (w DeleteWrite) Timestamp() time.Time      { return w.Ts }
func (w DeleteWrite) ProposedCas() uint64       { return btreeslice.InvalidCas }
func (w DeleteWrite) Shard(r keyrange.KeyRange) (Write, error) {
	if err := shardPoint(w, r); err != nil {
		return nil, err
	}
	return w, nil
}
func (w DeleteWrite) Unshard(rs []WriteResponse) (WriteResponse, error) { return unshardSingle(rs) }
