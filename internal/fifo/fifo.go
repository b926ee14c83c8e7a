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

// Package fifo implements the per-store token enforcer: an ordered
// mint-then-acquire discipline where readers commute with each other but
// any writer serializes relative to every operation minted before it.
package fifo

import (
	"context"
	"errors"
	"sync"
)

// ErrInterrupted is returned by Acquire when ctx is cancelled before the
// token becomes acquirable.
var ErrInterrupted = errors.New("fifo: interrupted while waiting for token")

// Kind distinguishes reader tokens from writer tokens.
type Kind int

const (
	Read Kind = iota
	Write
)

func (k Kind) String() string {
	if k == Write {
		return "write"
	}
	return "read"
}

// Token is an ordered ticket minted by an Enforcer. Tokens are comparable
// and totally ordered by mint time via ID.
type Token struct {
	ID   int64
	Kind Kind
}

type entry struct {
	id        int64
	kind      Kind
	completed bool
}

// Enforcer mints and serializes tokens for a single store. It plays the
// role of both the token source (minting) and the token sink
// (serializing acquisition) described in the component design.
type Enforcer struct {
	mu      sync.Mutex
	cond    *sync.Cond
	nextID  int64
	entries []*entry
}

// NewEnforcer returns a ready-to-use, empty Enforcer.
func NewEnforcer() *Enforcer {
	e := &Enforcer{}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// NewReadToken mints a read token ordered after every token minted so far.
func (e *Enforcer) NewReadToken() Token {
	return e.mint(Read)
}

// NewWriteToken mints a write token ordered after every token minted so far.
func (e *Enforcer) NewWriteToken() Token {
	return e.mint(Write)
}

func (e *Enforcer) mint(kind Kind) Token {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.entries = append(e.entries, &entry{id: id, kind: kind})
	return Token{ID: id, Kind: kind}
}

// Acquire blocks until t is allowed to proceed: a read token waits for
// every write token minted before it to release; a write token waits for
// every token (read or write) minted before it to release. If ctx is
// cancelled first, Acquire unblocks and releases t's slot without
// advancing any other waiter's view of the queue.
func (e *Enforcer) Acquire(ctx context.Context, t Token) error {
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			e.cond.Broadcast()
			e.mu.Unlock()
		case <-watchDone:
		}
	}()
	defer close(watchDone)

	e.mu.Lock()
	defer e.mu.Unlock()
	for !e.readyLocked(t) {
		if ctx.Err() != nil {
			e.releaseLocked(t)
			return ErrInterrupted
		}
		e.cond.Wait()
	}
	if ctx.Err() != nil {
		e.releaseLocked(t)
		return ErrInterrupted
	}
	return nil
}

func (e *Enforcer) readyLocked(t Token) bool {
	for _, ent := range e.entries {
		if ent.id >= t.ID {
			break
		}
		if ent.completed {
			continue
		}
		if t.Kind == Write {
			return false
		}
		if ent.kind == Write {
			return false
		}
	}
	return true
}

// Release marks t's operation as finished, unblocking any later token
// whose readiness depended on it.
func (e *Enforcer) Release(t Token) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.releaseLocked(t)
	e.cond.Broadcast()
}

func (e *Enforcer) releaseLocked(t Token) {
	for _, ent := range e.entries {
		if ent.id == t.ID {
			ent.completed = true
			break
		}
	}
	for len(e.entries) > 0 && e.entries[0].completed {
		e.entries = e.entries[1:]
	}
}

// OrderToken is a causal debug tag threaded through superblock
// acquisitions to detect reordering bugs; it carries no semantic weight
// beyond strict monotonicity.
type OrderToken struct {
	seq int64
}

// OrderSource mints monotonically increasing OrderTokens.
type OrderSource struct {
	mu   sync.Mutex
	next int64
}

// CheckIn mints the next OrderToken.
func (s *OrderSource) CheckIn() OrderToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return OrderToken{seq: s.next}
}

// OrderCheckpoint asserts that tokens passed to CheckThrough arrive in
// non-decreasing sequence order, the same role the B-tree's order
// checkpoint plays for the original engine.
type OrderCheckpoint struct {
	mu   sync.Mutex
	last int64
}

// CheckThrough validates t against the last token seen and records it.
// It panics on a detected reordering, mirroring a debug-build assertion.
func (c *OrderCheckpoint) CheckThrough(t OrderToken) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.seq < c.last {
		panic("fifo: order token arrived out of sequence")
	}
	c.last = t.seq
}
