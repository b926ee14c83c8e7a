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

	"shardstore/internal/keyrange"
)

// ChunkKind distinguishes the three backfill chunk shapes.
type ChunkKind int

const (
	DeleteRangeChunk ChunkKind = iota
	DeleteKeyChunk
	SetKeyChunk
)

func (k ChunkKind) String() string {
	switch k {
	case DeleteRangeChunk:
		return "delete_range"
	case DeleteKeyChunk:
		return "delete_key"
	case SetKeyChunk:
		return "set_key"
	default:
		return "unknown"
	}
}

// Atom is a backfill-atom: the live value carried by a SetKey chunk.
type Atom struct {
	Key     keyrange.Key
	Value   []byte
	Flags   uint32
	Exptime int64
	Recency Recency
	Cas     uint64
}

// Chunk is one step of a backfill stream.
type Chunk struct {
	Kind    ChunkKind
	Range   keyrange.KeyRange // DeleteRangeChunk
	Key     keyrange.Key      // DeleteKeyChunk
	Recency Recency           // DeleteKeyChunk
	Atom    Atom              // SetKeyChunk
}

// TraverseForBackfill walks every record in kr, live value or tombstone,
// whose recency is strictly after since, emitting one chunk per key. Ordering within kr is
// ascending by key; emit is called synchronously so the caller can apply
// backpressure or cancel via ctx between chunks, the backfill producer's
// one suspension point per spec §5.
func (s *Slice) TraverseForBackfill(ctx context.Context, kr keyrange.KeyRange, since Recency, emit func(Chunk) error) error {
	var emitErr error
	s.ascend(kr, func(rec *record) bool {
		if ctx.Err() != nil {
			emitErr = ctx.Err()
			return false
		}
		if rec.recency <= since {
			return true
		}
		var chunk Chunk
		if rec.tombstone {
			chunk = Chunk{Kind: DeleteKeyChunk, Key: rec.key.Clone(), Recency: rec.recency}
		} else {
			chunk = Chunk{Kind: SetKeyChunk, Atom: Atom{
				Key: rec.key.Clone(), Value: append([]byte{}, rec.value...),
				Flags: rec.flags, Exptime: rec.exptime, Recency: rec.recency, Cas: rec.cas,
			}}
		}
		if err := emit(chunk); err != nil {
			emitErr = err
			return false
		}
		return true
	})
	return emitErr
}

// ApplyChunk applies one backfill chunk idempotently, per spec §4.7. It
// does not consult metainfo; sequencing a metainfo update when the
// backfill window closes is the caller's responsibility.
func (s *Slice) ApplyChunk(ctx context.Context, chunk Chunk) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	switch chunk.Kind {
	case DeleteRangeChunk:
		_, err := s.EraseRange(chunk.Range, func(k keyrange.Key) bool { return chunk.Range.Contains(k) })
		return err
	case DeleteKeyChunk:
		// The receiver ignores chunk.Recency and uses InvalidRecency, the
		// same simplification the original engine's receive_backfill_visitor
		// makes (it never threaded delete_key.recency through either).
		_, err := s.Delete(chunk.Key, true, InvalidRecency)
		return err
	case SetKeyChunk:
		a := chunk.Atom
		_, err := s.Set(a.Key, a.Value, a.Flags, a.Exptime, true, true, InvalidCas, a.Cas, InvalidRecency)
		return err
	default:
		return fmt.Errorf("btreeslice: invalid chunk kind %d", chunk.Kind)
	}
}
