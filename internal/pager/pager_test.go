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

package pager

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateAllocateWriteReadPage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.dat")
	s, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Close()

	id, err := s.AllocatePage(PageTypeData)
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	page, err := s.ReadPage(id)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	slot, err := page.InsertRecord([]byte("hello"))
	if err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	if err := s.WritePage(page); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	reread, err := s.ReadPage(id)
	if err != nil {
		t.Fatalf("ReadPage 2: %v", err)
	}
	rec, err := reread.GetRecord(slot)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if string(rec) != "hello" {
		t.Fatalf("got %q", rec)
	}
}

func TestReopenRestoresAllocationState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.dat")
	s, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id1, _ := s.AllocatePage(PageTypeData)
	id2, _ := s.AllocatePage(PageTypeData)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()
	if reopened.PageCount() != 2 {
		t.Fatalf("expected 2 pages, got %d", reopened.PageCount())
	}
	if _, err := reopened.ReadPage(id1); err != nil {
		t.Fatalf("ReadPage id1: %v", err)
	}
	if _, err := reopened.ReadPage(id2); err != nil {
		t.Fatalf("ReadPage id2: %v", err)
	}
}

func TestFreePageIsRecycled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.dat")
	s, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Close()

	id, _ := s.AllocatePage(PageTypeData)
	if err := s.FreePage(id); err != nil {
		t.Fatalf("FreePage: %v", err)
	}
	next, err := s.AllocatePage(PageTypeData)
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if next != id {
		t.Fatalf("expected freed page %d to be recycled, got %d", id, next)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.dat")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
