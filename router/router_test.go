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

package router

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"shardstore/internal/keyrange"
	"shardstore/shard"
)

func newTestStore(t *testing.T) *shard.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shard.dat")
	s, err := shard.Create(path)
	if err != nil {
		t.Fatalf("shard.Create: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func rangeUpTo(k string) keyrange.KeyRange {
	return keyrange.KeyRange{RightMode: keyrange.Open, RightKey: keyrange.Key(k)}
}

func rangeFrom(k string) keyrange.KeyRange {
	return keyrange.KeyRange{LeftMode: keyrange.Closed, LeftKey: keyrange.Key(k)}
}

func TestAssignOverlapRejected(t *testing.T) {
	r := New()
	s1, s2 := newTestStore(t), newTestStore(t)

	if err := r.Assign("a", rangeUpTo("m"), s1); err != nil {
		t.Fatalf("Assign a: %v", err)
	}
	if err := r.Assign("b", keyrange.Universe(), s2); err == nil {
		t.Fatalf("expected overlap error assigning universe over an existing range")
	}
}

func TestLocateRoutesToOwningShard(t *testing.T) {
	r := New()
	low, high := newTestStore(t), newTestStore(t)

	if err := r.Assign("low", rangeUpTo("m"), low); err != nil {
		t.Fatalf("Assign low: %v", err)
	}
	if err := r.Assign("high", rangeFrom("m"), high); err != nil {
		t.Fatalf("Assign high: %v", err)
	}

	id, store, ok := r.Locate(keyrange.Key("apple"))
	if !ok || id != "low" || store != low {
		t.Fatalf("expected apple routed to low, got id=%s ok=%v", id, ok)
	}
	id, store, ok = r.Locate(keyrange.Key("zebra"))
	if !ok || id != "high" || store != high {
		t.Fatalf("expected zebra routed to high, got id=%s ok=%v", id, ok)
	}
}

func TestUnassignRemovesRoute(t *testing.T) {
	r := New()
	s := newTestStore(t)
	if err := r.Assign("only", keyrange.Universe(), s); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	got, ok := r.Unassign("only")
	if !ok || got != s {
		t.Fatalf("expected Unassign to return the assigned store")
	}
	if _, _, ok := r.Locate(keyrange.Key("anything")); ok {
		t.Fatalf("expected no route after unassign")
	}
}

func TestExecuteWriteThenReadAcrossRouter(t *testing.T) {
	r := New()
	s := newTestStore(t)
	if err := r.Assign("only", keyrange.Universe(), s); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	w := shard.SetWrite{
		Key_:          keyrange.Key("k"),
		Data:          []byte("v"),
		AddPolicy:     true,
		ReplacePolicy: true,
		OldCas:        0,
		Ts:            time.Now(),
	}
	if _, err := ExecuteWrite(context.Background(), r, w, nil, shard.DefaultExpectedChangeCount); err != nil {
		t.Fatalf("ExecuteWrite: %v", err)
	}

	resp, err := ExecuteRead(context.Background(), r, shard.GetRead{Key: keyrange.Key("k")})
	if err != nil {
		t.Fatalf("ExecuteRead: %v", err)
	}
	got, ok := resp.(shard.GetResponse)
	if !ok || !got.Found || string(got.Value.Bytes()) != "v" {
		t.Fatalf("unexpected read response: %+v", resp)
	}
}

func TestExecuteReadFansOutAndMerges(t *testing.T) {
	r := New()
	low, high := newTestStore(t), newTestStore(t)
	if err := r.Assign("low", rangeUpTo("m"), low); err != nil {
		t.Fatalf("Assign low: %v", err)
	}
	if err := r.Assign("high", rangeFrom("m"), high); err != nil {
		t.Fatalf("Assign high: %v", err)
	}

	for shardID, key := range map[ShardID]string{"low": "a", "high": "z"} {
		_, store, _ := r.Locate(keyrange.Key(key))
		w := shard.SetWrite{
			Key_:          keyrange.Key(key),
			Data:          []byte(string(shardID)),
			AddPolicy:     true,
			ReplacePolicy: true,
			Ts:            time.Now(),
		}
		if _, err := store.ExecuteWrite(context.Background(), w, nil, shard.DefaultExpectedChangeCount); err != nil {
			t.Fatalf("ExecuteWrite on %s: %v", shardID, err)
		}
	}

	resp, err := ExecuteRead(context.Background(), r, shard.RgetRead{Range: keyrange.Universe()})
	if err != nil {
		t.Fatalf("ExecuteRead: %v", err)
	}
	rg, ok := resp.(shard.RgetResponse)
	if !ok || len(rg.Elements) != 2 {
		t.Fatalf("expected 2 merged elements spanning both shards, got %+v", resp)
	}
	if string(rg.Elements[0].Key) != "a" || string(rg.Elements[1].Key) != "z" {
		t.Fatalf("expected ascending a,z order, got %s,%s", rg.Elements[0].Key, rg.Elements[1].Key)
	}
}
