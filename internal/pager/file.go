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
	"encoding/binary"
	"errors"
	"os"
	"sync"
)

// fileMagic/fileVersion identify a store's backing file.
const (
	fileMagic      uint32 = 0x53484452 // "SHDR"
	fileVersion    uint32 = 1
	fileHeaderSize int64  = PageSize
)

var (
	ErrInvalidFile     = errors.New("pager: not a shardstore file")
	ErrVersionMismatch = errors.New("pager: file version mismatch")
	ErrPageNotFound    = errors.New("pager: page not found")
)

// Serializer is the file-backed block I/O layer: fixed-size pages
// addressed by PageID, with free-list reuse of deleted pages. It has no
// knowledge of what a page's records mean.
type Serializer struct {
	mu           sync.RWMutex
	file         *os.File
	path         string
	pageCount    uint32
	freeListHead PageID
}

// Create makes a new, empty backing file at path.
func Create(path string) (*Serializer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, err
	}
	s := &Serializer{file: f, path: path, freeListHead: InvalidPageID}
	if err := s.writeHeader(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return s, nil
}

// Open reopens an existing backing file, restoring allocation state from
// its header.
func Open(path string) (*Serializer, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	s := &Serializer{file: f, path: path}
	if err := s.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *Serializer) writeHeader() error {
	var hdr [fileHeaderSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], fileMagic)
	binary.BigEndian.PutUint32(hdr[4:8], fileVersion)
	binary.BigEndian.PutUint32(hdr[8:12], s.pageCount)
	binary.BigEndian.PutUint32(hdr[12:16], uint32(s.freeListHead))
	_, err := s.file.WriteAt(hdr[:], 0)
	return err
}

func (s *Serializer) readHeader() error {
	var hdr [fileHeaderSize]byte
	if _, err := s.file.ReadAt(hdr[:], 0); err != nil {
		return err
	}
	if binary.BigEndian.Uint32(hdr[0:4]) != fileMagic {
		return ErrInvalidFile
	}
	if binary.BigEndian.Uint32(hdr[4:8]) != fileVersion {
		return ErrVersionMismatch
	}
	s.pageCount = binary.BigEndian.Uint32(hdr[8:12])
	s.freeListHead = PageID(binary.BigEndian.Uint32(hdr[12:16]))
	return nil
}

// AllocatePage returns a fresh or recycled PageID, formatted as pageType.
func (s *Serializer) AllocatePage(pageType byte) (PageID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.freeListHead != InvalidPageID {
		id := s.freeListHead
		page, err := s.readPageLocked(id)
		if err != nil {
			return InvalidPageID, err
		}
		s.freeListHead = page.NextPageID()
		page = NewPage(id, pageType)
		if err := s.writePageLocked(page); err != nil {
			return InvalidPageID, err
		}
		return id, s.writeHeader()
	}

	s.pageCount++
	id := PageID(s.pageCount)
	page := NewPage(id, pageType)
	if err := s.writePageLocked(page); err != nil {
		s.pageCount--
		return InvalidPageID, err
	}
	return id, s.writeHeader()
}

// FreePage returns id to the free list.
func (s *Serializer) FreePage(id PageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := NewPage(id, PageTypeFree)
	page.SetNextPageID(s.freeListHead)
	if err := s.writePageLocked(page); err != nil {
		return err
	}
	s.freeListHead = id
	return s.writeHeader()
}

func (s *Serializer) readPageLocked(id PageID) (*Page, error) {
	if id == InvalidPageID || uint32(id) > s.pageCount {
		return nil, ErrPageNotFound
	}
	data := make([]byte, PageSize)
	if _, err := s.file.ReadAt(data, s.offset(id)); err != nil {
		return nil, err
	}
	p := &Page{}
	p.SetData(data)
	return p, nil
}

// ReadPage reads one page from disk.
func (s *Serializer) ReadPage(id PageID) (*Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readPageLocked(id)
}

func (s *Serializer) writePageLocked(p *Page) error {
	id := p.PageID()
	if id == InvalidPageID {
		return ErrPageNotFound
	}
	_, err := s.file.WriteAt(p.Data(), s.offset(id))
	return err
}

// WritePage writes p to disk at its own PageID.
func (s *Serializer) WritePage(p *Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writePageLocked(p)
}

func (s *Serializer) offset(id PageID) int64 {
	return fileHeaderSize + int64(id-1)*int64(PageSize)
}

// PageCount returns the number of pages ever allocated (including freed
// ones still occupying file space).
func (s *Serializer) PageCount() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pageCount
}

// AllPageIDs returns every allocated page id in ascending order, for
// rebuilding an in-memory index at open time.
func (s *Serializer) AllPageIDs() []PageID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PageID, 0, s.pageCount)
	for i := uint32(1); i <= s.pageCount; i++ {
		out = append(out, PageID(i))
	}
	return out
}

// Sync flushes the OS buffer cache to stable storage.
func (s *Serializer) Sync() error {
	return s.file.Sync()
}

// Close flushes the header and closes the backing file.
func (s *Serializer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeHeader(); err != nil {
		return err
	}
	return s.file.Close()
}

// Path returns the backing file path.
func (s *Serializer) Path() string { return s.path }
