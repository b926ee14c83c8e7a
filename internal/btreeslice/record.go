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
	"encoding/binary"
	"fmt"

	"shardstore/internal/keyrange"
)

// record is the durable representation of one key's latest known state.
// Records are appended to log pages in increasing seq order; replaying
// every page in seq order at open time reconstructs the live index.
type record struct {
	seq       uint64
	tombstone bool
	key       keyrange.Key
	value     []byte
	flags     uint32
	exptime   int64
	cas       uint64
	recency   Recency
}

func encodeRecord(r *record) []byte {
	buf := make([]byte, 0, 40+len(r.key)+len(r.value))
	var tmp [8]byte

	binary.BigEndian.PutUint64(tmp[:], r.seq)
	buf = append(buf, tmp[:]...)

	if r.tombstone {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	binary.BigEndian.PutUint32(tmp[:4], r.flags)
	buf = append(buf, tmp[:4]...)

	binary.BigEndian.PutUint64(tmp[:], uint64(r.exptime))
	buf = append(buf, tmp[:]...)

	binary.BigEndian.PutUint64(tmp[:], r.cas)
	buf = append(buf, tmp[:]...)

	binary.BigEndian.PutUint64(tmp[:], uint64(r.recency))
	buf = append(buf, tmp[:]...)

	binary.BigEndian.PutUint32(tmp[:4], uint32(len(r.key)))
	buf = append(buf, tmp[:4]...)
	buf = append(buf, r.key...)

	binary.BigEndian.PutUint32(tmp[:4], uint32(len(r.value)))
	buf = append(buf, tmp[:4]...)
	buf = append(buf, r.value...)

	return buf
}

func decodeRecord(b []byte) (*record, error) {
	const minLen = 8 + 1 + 4 + 8 + 8 + 8 + 4 + 4
	if len(b) < minLen {
		return nil, fmt.Errorf("btreeslice: record too short (%d bytes)", len(b))
	}
	r := &record{}
	r.seq = binary.BigEndian.Uint64(b[0:8])
	r.tombstone = b[8] != 0
	r.flags = binary.BigEndian.Uint32(b[9:13])
	r.exptime = int64(binary.BigEndian.Uint64(b[13:21]))
	r.cas = binary.BigEndian.Uint64(b[21:29])
	r.recency = Recency(binary.BigEndian.Uint64(b[29:37]))
	klen := binary.BigEndian.Uint32(b[37:41])
	off := 41
	if off+int(klen) > len(b) {
		return nil, fmt.Errorf("btreeslice: truncated key in record")
	}
	r.key = keyrange.Key(append([]byte{}, b[off:off+int(klen)]...))
	off += int(klen)
	if off+4 > len(b) {
		return nil, fmt.Errorf("btreeslice: truncated value length in record")
	}
	vlen := binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	if off+int(vlen) > len(b) {
		return nil, fmt.Errorf("btreeslice: truncated value in record")
	}
	r.value = append([]byte{}, b[off:off+int(vlen)]...)
	return r, nil
}
