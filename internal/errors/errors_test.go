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

package errors

import (
	"errors"
	"strings"
	"testing"

	"shardstore/shard"
)

func TestClassifyMapsKnownSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want Category
	}{
		{shard.ErrInterrupted, CategoryInterrupted},
		{shard.ErrMetainfoMismatch, CategoryMetainfo},
		{shard.ErrDecode, CategoryDecode},
		{shard.ErrDomainViolation, CategoryDomain},
	}
	for _, c := range cases {
		ee := Classify(c.err)
		if ee.Category != c.want {
			t.Errorf("Classify(%v).Category = %s, want %s", c.err, ee.Category, c.want)
		}
		if !errors.Is(ee, c.err) {
			t.Errorf("Classify(%v) should unwrap back to the original sentinel", c.err)
		}
	}
}

func TestClassifyDefaultsToStorage(t *testing.T) {
	ee := Classify(errors.New("disk on fire"))
	if ee.Category != CategoryStorage {
		t.Errorf("expected CategoryStorage for an unrecognized error, got %s", ee.Category)
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	first := Classify(shard.ErrDecode)
	second := Classify(first)
	if second != first {
		t.Error("Classify should return an already-classified EngineError unchanged")
	}
}

func TestFormatIncludesHint(t *testing.T) {
	msg := Format(shard.ErrMetainfoMismatch)
	if msg == "" {
		t.Fatal("expected a non-empty message")
	}
	if !strings.Contains(msg, "hint:") {
		t.Errorf("expected Format to include a hint line, got %q", msg)
	}
}
