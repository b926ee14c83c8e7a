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
	"fmt"

	"shardstore/internal/btreeslice"
	"shardstore/internal/fifo"
	"shardstore/internal/logging"
)

// ExecuteRead mints a fresh read token and dispatches r against it. Most
// callers have no reason to pin a place in FIFO order ahead of the call
// and want this shorthand; a caller that does (the router, fanning a
// request out across several stores under concurrent dispatch) should
// mint with NewReadToken up front and call ExecuteReadToken instead.
func (s *Store) ExecuteRead(ctx context.Context, r Read) (ReadResponse, error) {
	return s.ExecuteReadToken(ctx, s.NewReadToken(), r)
}

// ExecuteReadToken acquires a read transaction under a token the caller
// minted earlier via NewReadToken, then dispatches r to the underlying
// B-tree operation.
func (s *Store) ExecuteReadToken(ctx context.Context, token fifo.Token, r Read) (ReadResponse, error) {
	tracker := logging.NewOperationTracker(s.ID(), readKind(r))
	release, err := s.acquireRead(ctx, token)
	if err != nil {
		tracker.LogError(s.log, err)
		return nil, err
	}
	defer release()
	resp, err := s.dispatchRead(ctx, r)
	if err != nil {
		tracker.LogError(s.log, err)
		return nil, err
	}
	tracker.LogComplete(s.log)
	return resp, nil
}

// readKind names a Read implementation for logging.
func readKind(r Read) string {
	switch r.(type) {
	case GetRead:
		return "get"
	case RgetRead:
		return "rget"
	default:
		return "read_unknown"
	}
}

// writeKind names a Write implementation for logging.
func writeKind(w Write) string {
	switch w.(type) {
	case GetCasWrite:
		return "get_cas"
	case SetWrite:
		return "set"
	case IncrDecrWrite:
		return "incr_decr"
	case AppendPrependWrite:
		return "append_prepend"
	case DeleteWrite:
		return "delete"
	default:
		return "write_unknown"
	}
}

func (s *Store) dispatchRead(ctx context.Context, r Read) (ReadResponse, error) {
	switch q := r.(type) {
	case GetRead:
		res := s.slice.Get(q.Key, q.EffTime)
		return GetResponse{Found: res.Found, Value: res.Value, Flags: res.Flags, Cas: res.Cas}, nil
	case RgetRead:
		elems, err := s.slice.RgetSlice(ctx, q.Range, q.EffTime)
		if err != nil {
			return nil, err
		}
		out := make([]RgetElement, len(elems))
		for i, e := range elems {
			out[i] = RgetElement{Key: e.Key, Value: e.Value, Flags: e.Flags, Cas: e.Cas}
		}
		return streamRgetResponse(RgetResponse{Elements: out})
	default:
		return nil, fmt.Errorf("shard: unknown read query type %T", q)
	}
}

// ExecuteWrite mints a fresh write token and dispatches w against it. A
// caller that needs to pin its place in FIFO order before the transaction
// is actually acquired should mint with NewWriteToken up front and call
// ExecuteWriteToken instead.
func (s *Store) ExecuteWrite(ctx context.Context, w Write, meta *MetainfoOp, expectedChangeCount int) (WriteResponse, error) {
	return s.ExecuteWriteToken(ctx, s.NewWriteToken(), w, meta, expectedChangeCount)
}

// ExecuteWriteToken acquires a write transaction under a token the caller
// minted earlier via NewWriteToken, with expectedChangeCount, atomically
// checks and bumps metainfo per meta (nil skips that step entirely), and
// dispatches w to the underlying B-tree operation. The metainfo bump is
// persisted before w is dispatched, within the same acquisition, so a
// mutation is never applied without its bump; if dispatching w then
// fails, the bump is not rolled back.
func (s *Store) ExecuteWriteToken(ctx context.Context, token fifo.Token, w Write, meta *MetainfoOp, expectedChangeCount int) (WriteResponse, error) {
	tracker := logging.NewOperationTracker(s.ID(), writeKind(w))
	release, err := s.acquireWrite(ctx, token, expectedChangeCount)
	if err != nil {
		tracker.LogError(s.log, err)
		return nil, err
	}
	defer release()

	if err := s.checkAndUpdateMetainfo(meta); err != nil {
		tracker.LogError(s.log, err)
		return nil, err
	}
	resp, err := s.dispatchWrite(w)
	if err != nil {
		tracker.LogError(s.log, err)
		return nil, err
	}
	tracker.LogComplete(s.log)
	return resp, nil
}

func (s *Store) dispatchWrite(w Write) (WriteResponse, error) {
	recency := btreeslice.RecencyFromTime(w.Timestamp())

	switch m := w.(type) {
	case GetCasWrite:
		res, err := s.slice.GetCas(m.Key_, m.EffTime, recency)
		return res, err
	case SetWrite:
		res, err := s.slice.Set(m.Key_, m.Data, m.Flags, m.Exptime, m.AddPolicy, m.ReplacePolicy, m.OldCas, m.Proposed, recency)
		return res, err
	case IncrDecrWrite:
		res, err := s.slice.IncrDecr(m.Key_, m.Kind, m.Amount, recency)
		return res, err
	case AppendPrependWrite:
		res, err := s.slice.AppendPrepend(m.Key_, m.Data, m.Kind, recency)
		return res, err
	case DeleteWrite:
		if m.ProposedCas() != btreeslice.InvalidCas {
			return nil, fmt.Errorf("%w: Delete requires proposed_cas to be the invalid sentinel", ErrDomainViolation)
		}
		res, err := s.slice.Delete(m.Key_, m.DontPutInDeleteQueue, recency)
		return res, err
	default:
		return nil, fmt.Errorf("shard: unknown write mutation type %T", m)
	}
}
