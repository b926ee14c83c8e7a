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
	"errors"
	"path/filepath"
	"testing"

	"shardstore/internal/keyrange"
	"shardstore/internal/pager"
)

func newTestSlice(t *testing.T) *Slice {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shard.dat")
	s, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetThenGet(t *testing.T) {
	s := newTestSlice(t)
	res, err := s.Set(keyrange.Key("a"), []byte("hello"), 0, 0, true, true, InvalidCas, InvalidCas, 1)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if res.Outcome != Stored {
		t.Fatalf("expected Stored, got %v", res.Outcome)
	}

	got := s.Get(keyrange.Key("a"), 0)
	if !got.Found || string(got.Value.Bytes()) != "hello" || got.Cas == InvalidCas {
		t.Fatalf("unexpected Get result: %+v", got)
	}
}

func TestCasMismatchLeavesValueUnchanged(t *testing.T) {
	s := newTestSlice(t)
	if _, err := s.Set(keyrange.Key("a"), []byte("hello"), 0, 0, true, true, InvalidCas, InvalidCas, 1); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// 999 stands in for "some CAS the caller previously observed that no
	// longer matches" — 0 is InvalidCas (no precondition at all), so it
	// can't be used to exercise a mismatch.
	res, err := s.Set(keyrange.Key("a"), []byte("x"), 0, 0, false, true, 999, InvalidCas, 2)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if res.Outcome != ExistsCasMismatch {
		t.Fatalf("expected ExistsCasMismatch, got %v", res.Outcome)
	}

	got := s.Get(keyrange.Key("a"), 0)
	if string(got.Value.Bytes()) != "hello" {
		t.Fatalf("expected value unchanged after CAS mismatch, got %q", got.Value.Bytes())
	}
}

func TestRgetSliceOrdering(t *testing.T) {
	s := newTestSlice(t)
	for _, kv := range []struct{ k, v string }{{"a", "1"}, {"b", "2"}, {"c", "3"}, {"d", "4"}} {
		if _, err := s.Set(keyrange.Key(kv.k), []byte(kv.v), 0, 0, true, true, InvalidCas, InvalidCas, 1); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	kr := keyrange.KeyRange{LeftMode: keyrange.Closed, LeftKey: keyrange.Key("a"), RightMode: keyrange.Closed, RightKey: keyrange.Key("d")}
	elems, err := s.RgetSlice(context.Background(), kr, 0)
	if err != nil {
		t.Fatalf("RgetSlice: %v", err)
	}
	if len(elems) != 4 {
		t.Fatalf("expected 4 elements, got %d", len(elems))
	}
	for i, want := range []string{"a", "b", "c", "d"} {
		if string(elems[i].Key) != want {
			t.Fatalf("element %d: expected key %q, got %q", i, want, elems[i].Key)
		}
	}
}

func TestDeleteThenGetMissing(t *testing.T) {
	s := newTestSlice(t)
	s.Set(keyrange.Key("a"), []byte("hello"), 0, 0, true, true, InvalidCas, InvalidCas, 1)
	outcome, err := s.Delete(keyrange.Key("a"), false, 2)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if outcome != Deleted {
		t.Fatalf("expected Deleted, got %v", outcome)
	}
	if got := s.Get(keyrange.Key("a"), 0); got.Found {
		t.Fatalf("expected key to be gone after delete")
	}
}

func TestExpiryHonored(t *testing.T) {
	s := newTestSlice(t)
	s.Set(keyrange.Key("a"), []byte("hello"), 0, 100, true, true, InvalidCas, InvalidCas, 1)
	if got := s.Get(keyrange.Key("a"), 50); !got.Found {
		t.Fatalf("expected key to still be live before exptime")
	}
	if got := s.Get(keyrange.Key("a"), 100); got.Found {
		t.Fatalf("expected key to be expired at exptime")
	}
}

func TestIncrDecr(t *testing.T) {
	s := newTestSlice(t)
	s.Set(keyrange.Key("n"), []byte("10"), 0, 0, true, true, InvalidCas, InvalidCas, 1)
	res, err := s.IncrDecr(keyrange.Key("n"), Incr, 5, 2)
	if err != nil {
		t.Fatalf("IncrDecr: %v", err)
	}
	if res.Outcome != IncrDecrOk || res.Value != 15 {
		t.Fatalf("unexpected incr result: %+v", res)
	}
	res, err = s.IncrDecr(keyrange.Key("n"), Decr, 100, 3)
	if err != nil {
		t.Fatalf("IncrDecr: %v", err)
	}
	if res.Value != 0 {
		t.Fatalf("expected decr floor at 0, got %d", res.Value)
	}
}

func TestAppendPrepend(t *testing.T) {
	s := newTestSlice(t)
	s.Set(keyrange.Key("a"), []byte("bc"), 0, 0, true, true, InvalidCas, InvalidCas, 1)
	if _, err := s.AppendPrepend(keyrange.Key("a"), []byte("d"), Append, 2); err != nil {
		t.Fatalf("AppendPrepend: %v", err)
	}
	if _, err := s.AppendPrepend(keyrange.Key("a"), []byte("a"), Prepend, 3); err != nil {
		t.Fatalf("AppendPrepend: %v", err)
	}
	got := s.Get(keyrange.Key("a"), 0)
	if string(got.Value.Bytes()) != "abcd" {
		t.Fatalf("expected \"abcd\", got %q", got.Value.Bytes())
	}
}

func TestBackfillProducerConsumerRoundTrip(t *testing.T) {
	s1 := newTestSlice(t)
	s1.Set(keyrange.Key("k"), []byte("v"), 0, 0, true, true, InvalidCas, InvalidCas, 5)

	s2 := newTestSlice(t)

	var chunks []Chunk
	err := s1.TraverseForBackfill(context.Background(), keyrange.Universe(), 0, func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("TraverseForBackfill: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Kind != SetKeyChunk {
		t.Fatalf("expected a single SetKey chunk, got %+v", chunks)
	}

	for _, c := range chunks {
		if err := s2.ApplyChunk(context.Background(), c); err != nil {
			t.Fatalf("ApplyChunk: %v", err)
		}
	}
	got := s2.Get(keyrange.Key("k"), 0)
	if !got.Found || string(got.Value.Bytes()) != "v" {
		t.Fatalf("expected backfilled value \"v\", got %+v", got)
	}
}

func TestReopenReplaysLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shard.dat")
	s, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.Set(keyrange.Key("a"), []byte("1"), 0, 0, true, true, InvalidCas, InvalidCas, 1)
	s.Set(keyrange.Key("a"), []byte("2"), 0, 0, true, true, InvalidCas, InvalidCas, 2)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()
	got := reopened.Get(keyrange.Key("a"), 0)
	if !got.Found || string(got.Value.Bytes()) != "2" {
		t.Fatalf("expected latest write \"2\" to survive reopen, got %+v", got)
	}
}

func TestMetainfoRoundTrip(t *testing.T) {
	s := newTestSlice(t)
	m := keyrange.NewRegionMap(keyrange.Universe(), []byte("blob"))
	if err := s.SetMetainfo(m); err != nil {
		t.Fatalf("SetMetainfo: %v", err)
	}
	got, err := s.GetMetainfo()
	if err != nil {
		t.Fatalf("GetMetainfo: %v", err)
	}
	if !got.GetDomain().IsUniverse() {
		t.Fatalf("expected universe domain, got %s", got.GetDomain())
	}
	v, ok := got.Get(keyrange.Key("x"))
	if !ok || string(v) != "blob" {
		t.Fatalf("expected blob, got %q, %v", v, ok)
	}
}

func TestReadMetainfoPageWrapsCorruptRegionInErrDecode(t *testing.T) {
	page := pager.NewPage(superblockPageID, pager.PageTypeMeta)
	if _, err := page.InsertRecord([]byte{0}); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	if _, err := page.InsertRecord([]byte("blob")); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}

	_, err := readMetainfoPage(page)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for a truncated key_range record, got %v", err)
	}
}
