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
	"errors"
	"fmt"

	"shardstore/internal/btreeslice"
	"shardstore/internal/keyrange"
)

// Metainfo is the region→blob map persisted on the superblock. Its domain
// is always universe.
type Metainfo = keyrange.RegionMap[[]byte]

// GetMetainfo reads and reconstructs the current metainfo map, asserting
// its domain equals universe.
func (s *Store) GetMetainfo() (Metainfo, error) {
	m, err := s.slice.GetMetainfo()
	if err != nil {
		if errors.Is(err, btreeslice.ErrDecode) {
			return Metainfo{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return Metainfo{}, err
	}
	if !m.GetDomain().IsUniverse() {
		return Metainfo{}, fmt.Errorf("%w: metainfo domain is %s, not universe", ErrDomainViolation, m.GetDomain())
	}
	return m, nil
}

// SetMetainfo overwrites the metainfo map wholesale. m's domain must be
// universe.
func (s *Store) SetMetainfo(m Metainfo) error {
	if !m.GetDomain().IsUniverse() {
		return fmt.Errorf("%w: SetMetainfo requires a universe domain, got %s", ErrDomainViolation, m.GetDomain())
	}
	return s.slice.SetMetainfo(m)
}

// CheckMetainfo reads the current metainfo and asserts that it agrees
// with expected everywhere within expected's domain.
func (s *Store) CheckMetainfo(expected Metainfo) error {
	current, err := s.GetMetainfo()
	if err != nil {
		return err
	}
	masked := current.Mask(expected.GetDomain())
	if !regionMapsEqual(masked, expected) {
		return fmt.Errorf("%w: current %s disagrees with expected %s", ErrMetainfoMismatch, masked, expected)
	}
	return nil
}

// UpdateMetainfo overlays next onto the current metainfo (next's domain
// must lie within the current domain, which is always universe) and
// persists the result. The post-condition domain is always universe.
func (s *Store) UpdateMetainfo(next Metainfo) error {
	current, err := s.GetMetainfo()
	if err != nil {
		return err
	}
	updated, err := current.Update(next)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDomainViolation, err)
	}
	return s.SetMetainfo(updated)
}

// checkAndUpdateMetainfo runs CheckMetainfo(expected) then UpdateMetainfo(new)
// — the atomic bump accompanying a write, per spec §4.5. op == nil means
// the caller has no metainfo concern for this write and skips both steps
// entirely.
func (s *Store) checkAndUpdateMetainfo(op *MetainfoOp) error {
	if op == nil {
		return nil
	}
	if err := s.CheckMetainfo(op.Expected); err != nil {
		return err
	}
	return s.UpdateMetainfo(op.New)
}

// MetainfoOp bundles the expected/new metainfo views a write atomically
// checks and bumps alongside its mutation.
type MetainfoOp struct {
	Expected Metainfo
	New      Metainfo
}

// regionMapsEqual compares two RegionMaps partition-by-partition. Masking
// to the same domain and comparing partition lists is sufficient because
// FromPartitions always sorts by left bound, so structurally equal maps
// produce identical slices.
func regionMapsEqual(a, b Metainfo) bool {
	if !a.GetDomain().Equal(b.GetDomain()) {
		return false
	}
	pa, pb := a.Partitions(), b.Partitions()
	if len(pa) != len(pb) {
		return false
	}
	for i := range pa {
		if !pa[i].Range.Equal(pb[i].Range) {
			return false
		}
		if string(pa[i].Value) != string(pb[i].Value) {
			return false
		}
	}
	return true
}
