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
	"context"
	"fmt"
	"strconv"

	"shardstore/internal/databuf"
	"shardstore/internal/keyrange"
)

// GetResult is the outcome of Get or GetCas.
type GetResult struct {
	Found bool
	Value *databuf.Buffer
	Flags uint32
	Cas   uint64
}

// RgetElement is one element of a materialized range scan.
type RgetElement struct {
	Key   keyrange.Key
	Value *databuf.Buffer
	Flags uint32
	Cas   uint64
}

// StoreOutcome mirrors the original's set_result_t enum: a Set can
// succeed, be refused by policy, or lose a CAS race.
type StoreOutcome int

const (
	Stored StoreOutcome = iota
	NotStored
	ExistsCasMismatch
	NotFoundForCas
)

// SetResult is the outcome of Set or AppendPrepend.
type SetResult struct {
	Outcome StoreOutcome
	NewCas  uint64
}

// IncrDecrKind selects increment or decrement.
type IncrDecrKind int

const (
	Incr IncrDecrKind = iota
	Decr
)

// IncrDecrOutcome mirrors the original's incr/decr result shape.
type IncrDecrOutcome int

const (
	IncrDecrOk IncrDecrOutcome = iota
	IncrDecrNotFound
	IncrDecrNotNumeric
)

// IncrDecrResult is the outcome of IncrDecr.
type IncrDecrResult struct {
	Outcome IncrDecrOutcome
	Value   uint64
}

// AppendPrependKind selects append or prepend.
type AppendPrependKind int

const (
	Append AppendPrependKind = iota
	Prepend
)

// DeleteOutcome is the outcome of Delete.
type DeleteOutcome int

const (
	Deleted DeleteOutcome = iota
	DeleteNotFound
)

// Get performs a point lookup, honoring exptime against effectiveTime.
func (s *Slice) Get(key keyrange.Key, effectiveTime int64) GetResult {
	rec := s.lookup(key)
	if rec == nil || rec.tombstone || isExpired(rec, effectiveTime) {
		return GetResult{}
	}
	return GetResult{Found: true, Value: databuf.New(rec.value), Flags: rec.flags, Cas: rec.cas}
}

// GetCas performs a point lookup like Get, but assigns a CAS to the
// record if it has never had one, so a follow-up Set(old_cas=...) has
// something to compare against.
func (s *Slice) GetCas(key keyrange.Key, effectiveTime int64, recency Recency) (GetResult, error) {
	rec := s.lookup(key)
	if rec == nil || rec.tombstone || isExpired(rec, effectiveTime) {
		return GetResult{}, nil
	}
	if rec.cas != InvalidCas {
		return GetResult{Found: true, Value: databuf.New(rec.value), Flags: rec.flags, Cas: rec.cas}, nil
	}
	updated := *rec
	updated.cas = s.mintCas()
	updated.recency = recency
	if err := s.persist(&updated); err != nil {
		return GetResult{}, err
	}
	return GetResult{Found: true, Value: databuf.New(updated.value), Flags: updated.flags, Cas: updated.cas}, nil
}

// mintCas allocates a fresh, never-invalid CAS value from the same
// sequence counter used for log ordering, shifted so it never collides
// with InvalidCas.
func (s *Slice) mintCas() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	return s.nextSeq
}

// RgetSlice materializes every live, unexpired key/value pair in kr in
// ascending key order. Per the design note on lazy range iterators
// across transactions, the result is fully materialized here rather than
// kept borrowing the slice after the call returns.
func (s *Slice) RgetSlice(ctx context.Context, kr keyrange.KeyRange, effectiveTime int64) ([]RgetElement, error) {
	var out []RgetElement
	var cancelled bool
	s.ascend(kr, func(rec *record) bool {
		if ctx.Err() != nil {
			cancelled = true
			return false
		}
		if rec.tombstone || isExpired(rec, effectiveTime) {
			return true
		}
		out = append(out, RgetElement{Key: rec.key.Clone(), Value: databuf.New(rec.value), Flags: rec.flags, Cas: rec.cas})
		return true
	})
	if cancelled {
		return nil, ctx.Err()
	}
	return out, nil
}

// Set stores data under key, honoring add/replace policy and an optional
// CAS precondition. oldCas == InvalidCas means "no CAS precondition."
func (s *Slice) Set(key keyrange.Key, value []byte, flags uint32, exptime int64, addPolicy, replacePolicy bool, oldCas uint64, proposedCas uint64, recency Recency) (SetResult, error) {
	existing := s.lookup(key)
	exists := existing != nil && !existing.tombstone

	if exists && !replacePolicy {
		return SetResult{Outcome: NotStored}, nil
	}
	if !exists && !addPolicy {
		return SetResult{Outcome: NotStored}, nil
	}
	if oldCas != InvalidCas {
		if !exists {
			return SetResult{Outcome: NotFoundForCas}, nil
		}
		if existing.cas != oldCas {
			return SetResult{Outcome: ExistsCasMismatch}, nil
		}
	}

	newCas := proposedCas
	if newCas == InvalidCas {
		newCas = s.mintCas()
	}
	rec := &record{key: key.Clone(), value: append([]byte{}, value...), flags: flags, exptime: exptime, cas: newCas, recency: recency}
	if err := s.persist(rec); err != nil {
		return SetResult{}, err
	}
	return SetResult{Outcome: Stored, NewCas: newCas}, nil
}

// IncrDecr applies a numeric delta to a key's decimal-string value.
func (s *Slice) IncrDecr(key keyrange.Key, kind IncrDecrKind, amount uint64, recency Recency) (IncrDecrResult, error) {
	existing := s.lookup(key)
	if existing == nil || existing.tombstone {
		return IncrDecrResult{Outcome: IncrDecrNotFound}, nil
	}
	cur, err := strconv.ParseUint(string(existing.value), 10, 64)
	if err != nil {
		return IncrDecrResult{Outcome: IncrDecrNotNumeric}, nil
	}
	var next uint64
	switch kind {
	case Incr:
		next = cur + amount
	case Decr:
		if amount > cur {
			next = 0
		} else {
			next = cur - amount
		}
	default:
		return IncrDecrResult{}, fmt.Errorf("btreeslice: invalid IncrDecrKind %d", kind)
	}
	rec := &record{
		key: key.Clone(), value: []byte(strconv.FormatUint(next, 10)),
		flags: existing.flags, exptime: existing.exptime, cas: s.mintCas(), recency: recency,
	}
	if err := s.persist(rec); err != nil {
		return IncrDecrResult{}, err
	}
	return IncrDecrResult{Outcome: IncrDecrOk, Value: next}, nil
}

// AppendPrepend concatenates data onto (or before) a key's existing
// value. Requires the key to already exist.
func (s *Slice) AppendPrepend(key keyrange.Key, data []byte, kind AppendPrependKind, recency Recency) (SetResult, error) {
	existing := s.lookup(key)
	if existing == nil || existing.tombstone {
		return SetResult{Outcome: NotStored}, nil
	}
	var newVal []byte
	switch kind {
	case Append:
		newVal = append(append([]byte{}, existing.value...), data...)
	case Prepend:
		newVal = append(append([]byte{}, data...), existing.value...)
	default:
		return SetResult{}, fmt.Errorf("btreeslice: invalid AppendPrependKind %d", kind)
	}
	rec := &record{key: key.Clone(), value: newVal, flags: existing.flags, exptime: existing.exptime, cas: s.mintCas(), recency: recency}
	if err := s.persist(rec); err != nil {
		return SetResult{}, err
	}
	return SetResult{Outcome: Stored, NewCas: rec.cas}, nil
}

// Delete tombstones key. dontPutInDeleteQueue is accepted and ignored: it
// exists for historical hash-routing replication compatibility in the
// original engine, and there is no delete queue here since secondary
// replica routing is out of scope.
func (s *Slice) Delete(key keyrange.Key, dontPutInDeleteQueue bool, recency Recency) (DeleteOutcome, error) {
	existing := s.lookup(key)
	if existing == nil || existing.tombstone {
		return DeleteNotFound, nil
	}
	rec := &record{key: key.Clone(), tombstone: true, recency: recency}
	if err := s.persist(rec); err != nil {
		return DeleteNotFound, err
	}
	return Deleted, nil
}

// KeyTester optionally filters which keys within a range EraseRange
// actually removes, kept for historical hash-routing compatibility with
// the original's key_tester_t.
type KeyTester func(key keyrange.Key) bool

// EraseRange removes every live key in kr for which tester (if non-nil)
// returns true, and returns the number of keys removed.
func (s *Slice) EraseRange(kr keyrange.KeyRange, tester KeyTester) (int, error) {
	var toDelete []keyrange.Key
	s.ascend(kr, func(rec *record) bool {
		if rec.tombstone {
			return true
		}
		if tester != nil && !tester(rec.key) {
			return true
		}
		toDelete = append(toDelete, rec.key.Clone())
		return true
	})
	for _, k := range toDelete {
		if _, err := s.Delete(k, true, InvalidRecency); err != nil {
			return 0, err
		}
	}
	return len(toDelete), nil
}
