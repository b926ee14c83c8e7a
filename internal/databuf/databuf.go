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

// Package databuf implements the shared-ownership data buffer the engine
// hands back to callers of range reads and point reads: a byte blob that
// may be referenced by any number of concurrent holders and lives as long
// as the longest-lived of them.
package databuf

import "sync/atomic"

// Buffer is a reference-counted, read-only-after-production byte blob.
// Buffers carry no back-pointers, so ownership can never cycle.
type Buffer struct {
	bytes []byte
	refs  *atomic.Int32
}

// New wraps b (not copied) in a Buffer with one reference.
func New(b []byte) *Buffer {
	refs := &atomic.Int32{}
	refs.Store(1)
	return &Buffer{bytes: b, refs: refs}
}

// Bytes returns the underlying byte slice. Callers must not mutate it.
func (b *Buffer) Bytes() []byte {
	return b.bytes
}

// Len returns the buffer length.
func (b *Buffer) Len() int {
	return len(b.bytes)
}

// Acquire adds a reference and returns the same buffer, for callers that
// want to hold onto it independently of the caller that produced it.
func (b *Buffer) Acquire() *Buffer {
	b.refs.Add(1)
	return b
}

// Release drops a reference. The zero-reference case is a no-op beyond
// accounting: Go's GC reclaims the backing array once every Buffer value
// referencing it is unreachable, so Release exists to make holder
// lifetime explicit and assertable in tests, not to free memory by hand.
func (b *Buffer) Release() {
	b.refs.Add(-1)
}

// RefCount reports the current number of holders, for tests.
func (b *Buffer) RefCount() int32 {
	return b.refs.Load()
}
