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
	"path/filepath"
	"testing"
	"time"

	"shardstore/internal/btreeslice"
	"shardstore/internal/keyrange"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shard.dat")
	s, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Scenario 1: set then get.
func TestSetThenGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w := SetWrite{Key_: keyrange.Key("a"), Data: []byte("hello"), AddPolicy: true, ReplacePolicy: true, OldCas: btreeslice.InvalidCas, EffTime: 0, Ts: time.Unix(1, 0)}
	resp, err := s.ExecuteWrite(ctx, w, nil, DefaultExpectedChangeCount)
	if err != nil {
		t.Fatalf("ExecuteWrite: %v", err)
	}
	setRes := resp.(btreeslice.SetResult)
	if setRes.Outcome != btreeslice.Stored {
		t.Fatalf("expected Stored, got %v", setRes.Outcome)
	}

	rresp, err := s.ExecuteRead(ctx, GetRead{Key: keyrange.Key("a"), EffTime: 0})
	if err != nil {
		t.Fatalf("ExecuteRead: %v", err)
	}
	got := rresp.(GetResponse)
	if !got.Found || string(got.Value.Bytes()) != "hello" || got.Flags != 0 || got.Cas == btreeslice.InvalidCas {
		t.Fatalf("unexpected Get response: %+v", got)
	}
}

// Scenario 2: CAS mismatch leaves value unchanged.
func TestCasMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.ExecuteWrite(ctx, SetWrite{Key_: keyrange.Key("a"), Data: []byte("hello"), AddPolicy: true, ReplacePolicy: true, Ts: time.Unix(1, 0)}, nil, DefaultExpectedChangeCount)

	// 999 stands in for a stale CAS the caller previously observed: 0 is
	// InvalidCas, the sentinel for "no CAS precondition," so it can't be
	// used to exercise a mismatch.
	resp, err := s.ExecuteWrite(ctx, SetWrite{Key_: keyrange.Key("a"), Data: []byte("x"), AddPolicy: false, ReplacePolicy: true, OldCas: 999, Ts: time.Unix(2, 0)}, nil, DefaultExpectedChangeCount)
	if err != nil {
		t.Fatalf("ExecuteWrite: %v", err)
	}
	if resp.(btreeslice.SetResult).Outcome != btreeslice.ExistsCasMismatch {
		t.Fatalf("expected ExistsCasMismatch, got %+v", resp)
	}

	rresp, _ := s.ExecuteRead(ctx, GetRead{Key: keyrange.Key("a")})
	if string(rresp.(GetResponse).Value.Bytes()) != "hello" {
		t.Fatalf("expected value unchanged after CAS mismatch")
	}
}

// Scenario 3: rget shard-merge.
func TestRgetShardMerge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, kv := range []struct{ k, v string }{{"a", "1"}, {"b", "2"}, {"c", "3"}, {"d", "4"}} {
		s.ExecuteWrite(ctx, SetWrite{Key_: keyrange.Key(kv.k), Data: []byte(kv.v), AddPolicy: true, ReplacePolicy: true, Ts: time.Unix(1, 0)}, nil, DefaultExpectedChangeCount)
	}

	full := RgetRead{Range: keyrange.KeyRange{LeftMode: keyrange.Closed, LeftKey: keyrange.Key("a"), RightMode: keyrange.Closed, RightKey: keyrange.Key("d")}}

	left, err := full.Shard(keyrange.KeyRange{LeftMode: keyrange.Closed, LeftKey: keyrange.Key("a"), RightMode: keyrange.Open, RightKey: keyrange.Key("c")})
	if err != nil {
		t.Fatalf("Shard left: %v", err)
	}
	right, err := full.Shard(keyrange.KeyRange{LeftMode: keyrange.Closed, LeftKey: keyrange.Key("c"), RightMode: keyrange.Closed, RightKey: keyrange.Key("d")})
	if err != nil {
		t.Fatalf("Shard right: %v", err)
	}

	leftResp, err := s.ExecuteRead(ctx, left)
	if err != nil {
		t.Fatalf("ExecuteRead left: %v", err)
	}
	rightResp, err := s.ExecuteRead(ctx, right)
	if err != nil {
		t.Fatalf("ExecuteRead right: %v", err)
	}

	merged, err := full.Unshard([]ReadResponse{leftResp, rightResp})
	if err != nil {
		t.Fatalf("Unshard: %v", err)
	}
	elems := merged.(RgetResponse).Elements
	if len(elems) != 4 {
		t.Fatalf("expected 4 merged elements, got %d", len(elems))
	}
	for i, want := range []string{"a", "b", "c", "d"} {
		if string(elems[i].Key) != want {
			t.Fatalf("element %d: expected %q, got %q", i, want, elems[i].Key)
		}
	}
}

// Scenario 4: delete + metainfo atomicity.
func TestDeleteMetainfoAtomicity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.ExecuteWrite(ctx, SetWrite{Key_: keyrange.Key("a"), Data: []byte("hello"), AddPolicy: true, ReplacePolicy: true, Ts: time.Unix(1, 0)}, nil, DefaultExpectedChangeCount)

	current, err := s.GetMetainfo()
	if err != nil {
		t.Fatalf("GetMetainfo: %v", err)
	}

	blobRange := keyrange.KeyRange{LeftMode: keyrange.Closed, LeftKey: keyrange.Key("a"), RightMode: keyrange.Open, RightKey: keyrange.Key("b")}
	newMeta := keyrange.NewRegionMap(blobRange, []byte("B"))

	resp, err := s.ExecuteWrite(ctx, DeleteWrite{Key_: keyrange.Key("a"), Ts: time.Unix(2, 0)}, &MetainfoOp{Expected: current, New: newMeta}, DefaultExpectedChangeCount)
	if err != nil {
		t.Fatalf("ExecuteWrite: %v", err)
	}
	if resp.(btreeslice.DeleteOutcome) != btreeslice.Deleted {
		t.Fatalf("expected Deleted, got %v", resp)
	}

	rresp, _ := s.ExecuteRead(ctx, GetRead{Key: keyrange.Key("a")})
	if rresp.(GetResponse).Found {
		t.Fatalf("expected key gone after delete")
	}

	updated, err := s.GetMetainfo()
	if err != nil {
		t.Fatalf("GetMetainfo: %v", err)
	}
	masked := updated.Mask(blobRange)
	v, ok := masked.Get(keyrange.Key("a"))
	if !ok || string(v) != "B" {
		t.Fatalf("expected blob B on %s, got %q, %v", blobRange, v, ok)
	}
}

// Scenario 5: backfill round-trip.
func TestBackfillRoundTrip(t *testing.T) {
	s1 := newTestStore(t)
	s2 := newTestStore(t)
	ctx := context.Background()

	s1.ExecuteWrite(ctx, SetWrite{Key_: keyrange.Key("k"), Data: []byte("v"), AddPolicy: true, ReplacePolicy: true, Ts: time.Unix(5, 0)}, nil, DefaultExpectedChangeCount)

	startPoint := keyrange.NewRegionMap(keyrange.Universe(), time.Unix(0, 0))
	progress := NewProgress()
	var chunks []BackfillChunk
	ok, err := s1.SendBackfill(ctx, startPoint, func(Metainfo) bool { return true }, func(c BackfillChunk) error {
		chunks = append(chunks, c)
		return nil
	}, progress)
	if err != nil {
		t.Fatalf("SendBackfill: %v", err)
	}
	if !ok {
		t.Fatalf("expected SendBackfill to run")
	}
	if progress.Fraction() != 1 {
		t.Fatalf("expected progress complete, got %f", progress.Fraction())
	}

	for _, c := range chunks {
		if err := s2.ReceiveBackfillChunk(ctx, c); err != nil {
			t.Fatalf("ReceiveBackfillChunk: %v", err)
		}
	}

	rresp, err := s2.ExecuteRead(ctx, GetRead{Key: keyrange.Key("k")})
	if err != nil {
		t.Fatalf("ExecuteRead: %v", err)
	}
	got := rresp.(GetResponse)
	if !got.Found || string(got.Value.Bytes()) != "v" {
		t.Fatalf("expected backfilled value \"v\", got %+v", got)
	}
}

// Scenario 6: reset erases and rewrites metainfo.
func TestResetData(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.ExecuteWrite(ctx, SetWrite{Key_: keyrange.Key("a"), Data: []byte("1"), AddPolicy: true, ReplacePolicy: true, Ts: time.Unix(1, 0)}, nil, DefaultExpectedChangeCount)
	s.ExecuteWrite(ctx, SetWrite{Key_: keyrange.Key("b"), Data: []byte("2"), AddPolicy: true, ReplacePolicy: true, Ts: time.Unix(1, 0)}, nil, DefaultExpectedChangeCount)

	newMeta := keyrange.NewRegionMap(keyrange.Universe(), []byte("Z"))
	if err := s.ResetData(ctx, keyrange.Universe(), newMeta); err != nil {
		t.Fatalf("ResetData: %v", err)
	}

	rresp, err := s.ExecuteRead(ctx, RgetRead{Range: keyrange.Universe()})
	if err != nil {
		t.Fatalf("ExecuteRead: %v", err)
	}
	if len(rresp.(RgetResponse).Elements) != 0 {
		t.Fatalf("expected no elements after reset, got %+v", rresp)
	}

	got, err := s.GetMetainfo()
	if err != nil {
		t.Fatalf("GetMetainfo: %v", err)
	}
	v, ok := got.Get(keyrange.Key("anything"))
	if !ok || string(v) != "Z" {
		t.Fatalf("expected metainfo universe->Z, got %q, %v", v, ok)
	}
}

// Invariant: metainfo domain is always universe.
func TestMetainfoDomainAlwaysUniverse(t *testing.T) {
	s := newTestStore(t)
	m, err := s.GetMetainfo()
	if err != nil {
		t.Fatalf("GetMetainfo: %v", err)
	}
	if !m.GetDomain().IsUniverse() {
		t.Fatalf("expected universe domain at quiescence, got %s", m.GetDomain())
	}
}

// Boundary: empty range rget returns no elements (terminator only, at the
// framing layer; at this layer an empty slice).
func TestEmptyRangeRget(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	resp, err := s.ExecuteRead(ctx, RgetRead{Range: keyrange.Universe()})
	if err != nil {
		t.Fatalf("ExecuteRead: %v", err)
	}
	if len(resp.(RgetResponse).Elements) != 0 {
		t.Fatalf("expected empty result on empty store")
	}
}

// Invariant: FIFO ordering — operations observe the effects of every
// operation minted before them once at least one side is a write.
func TestFIFOOrderingAcrossStoreOps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.ExecuteWrite(ctx, SetWrite{Key_: keyrange.Key("x"), Data: []byte("1"), AddPolicy: true, ReplacePolicy: true, Ts: time.Unix(1, 0)}, nil, DefaultExpectedChangeCount); err != nil {
		t.Fatalf("ExecuteWrite 1: %v", err)
	}
	if _, err := s.ExecuteWrite(ctx, SetWrite{Key_: keyrange.Key("x"), Data: []byte("2"), AddPolicy: true, ReplacePolicy: true, Ts: time.Unix(2, 0)}, nil, DefaultExpectedChangeCount); err != nil {
		t.Fatalf("ExecuteWrite 2: %v", err)
	}
	rresp, err := s.ExecuteRead(ctx, GetRead{Key: keyrange.Key("x")})
	if err != nil {
		t.Fatalf("ExecuteRead: %v", err)
	}
	if got := string(rresp.(GetResponse).Value.Bytes()); got != "2" {
		t.Fatalf("expected a read minted after both writes to see the later write's value, got %q", got)
	}
}

// Invariant: FIFO ordering under concurrency — a read token minted after a
// write token must wait for that write to release before it can proceed,
// even when the two run on separate goroutines. This requires minting to
// be a step the caller can take well before the transaction is acquired,
// which is exactly what NewWriteToken/NewReadToken plus
// ExecuteWriteToken/ExecuteReadToken give a caller like router.Router.
func TestFIFOOrderingUnderConcurrentGoroutines(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	writeToken := s.NewWriteToken()
	readToken := s.NewReadToken()

	writeStarted := make(chan struct{})
	releaseWrite := make(chan struct{})
	writeDone := make(chan struct{})
	go func() {
		close(writeStarted)
		<-releaseWrite
		if _, err := s.ExecuteWriteToken(ctx, writeToken, SetWrite{Key_: keyrange.Key("x"), Data: []byte("late"), AddPolicy: true, ReplacePolicy: true, Ts: time.Unix(1, 0)}, nil, DefaultExpectedChangeCount); err != nil {
			t.Errorf("ExecuteWriteToken: %v", err)
		}
		close(writeDone)
	}()
	<-writeStarted

	readDone := make(chan ReadResponse, 1)
	go func() {
		resp, err := s.ExecuteReadToken(ctx, readToken, GetRead{Key: keyrange.Key("x")})
		if err != nil {
			t.Errorf("ExecuteReadToken: %v", err)
			return
		}
		readDone <- resp
	}()

	select {
	case <-readDone:
		t.Fatalf("read minted after the write token completed before the write released")
	case <-time.After(50 * time.Millisecond):
	}

	close(releaseWrite)
	<-writeDone

	select {
	case resp := <-readDone:
		if got := string(resp.(GetResponse).Value.Bytes()); got != "late" {
			t.Fatalf("expected the read to observe the write's effect, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("read never unblocked after the write it was ordered behind released")
	}
}
