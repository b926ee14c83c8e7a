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

import "sync"

// Progress tracks fractional completion of a backfill: one constituent is
// registered per sub-range being traversed, and marked done as each
// sub-range's traversal finishes.
type Progress struct {
	mu           sync.Mutex
	constituents int
	completed    int
}

// NewProgress returns an empty progress accumulator.
func NewProgress() *Progress {
	return &Progress{}
}

func (p *Progress) register(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.constituents += n
}

func (p *Progress) completeOne() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed++
}

// Fraction returns completed/total constituents, 1.0 if nothing was ever
// registered.
func (p *Progress) Fraction() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.constituents == 0 {
		return 1
	}
	return float64(p.completed) / float64(p.constituents)
}
