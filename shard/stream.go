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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"shardstore/internal/databuf"
	"shardstore/internal/framing"
)

// EncodeTo writes r as the lazy (key, data_buffer) stream the range-read
// streaming contract mandates: a next=true marker precedes every element,
// and a final next=false marker closes the sequence — an empty response
// writes the terminator alone. Flags and cas ride along as a fixed-size
// prefix on each element's data buffer, ahead of the raw value bytes.
func (r RgetResponse) EncodeTo(w io.Writer) error {
	for _, e := range r.Elements {
		if err := framing.WriteElement(w, e.Key, packRgetElement(e)); err != nil {
			return err
		}
	}
	return framing.WriteTerminator(w)
}

// DecodeRgetResponse reads back a stream written by RgetResponse.EncodeTo.
func DecodeRgetResponse(r io.Reader) (RgetResponse, error) {
	var out RgetResponse
	for {
		key, value, ok, err := framing.ReadElement(r)
		if err != nil {
			return RgetResponse{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		if !ok {
			return out, nil
		}
		elem, err := unpackRgetElement(key, value)
		if err != nil {
			return RgetResponse{}, err
		}
		out.Elements = append(out.Elements, elem)
	}
}

const rgetElementPrefixLen = 4 + 8 // flags (uint32) + cas (uint64)

func packRgetElement(e RgetElement) *databuf.Buffer {
	raw := e.Value.Bytes()
	buf := make([]byte, rgetElementPrefixLen, rgetElementPrefixLen+len(raw))
	binary.BigEndian.PutUint32(buf[0:4], e.Flags)
	binary.BigEndian.PutUint64(buf[4:12], e.Cas)
	buf = append(buf, raw...)
	return databuf.New(buf)
}

func unpackRgetElement(key []byte, value *databuf.Buffer) (RgetElement, error) {
	p := value.Bytes()
	if len(p) < rgetElementPrefixLen {
		return RgetElement{}, fmt.Errorf("%w: truncated rget element payload (%d bytes)", ErrDecode, len(p))
	}
	flags := binary.BigEndian.Uint32(p[0:4])
	cas := binary.BigEndian.Uint64(p[4:12])
	return RgetElement{Key: key, Value: databuf.New(append([]byte{}, p[rgetElementPrefixLen:]...)), Flags: flags, Cas: cas}, nil
}

// streamRgetResponse round-trips resp through EncodeTo/DecodeRgetResponse
// so every Rget response actually leaving a Store has passed through the
// terminator-framed wire codec that external readers of a range-read
// response are specified to speak, rather than only being exercised by a
// test double.
func streamRgetResponse(resp RgetResponse) (ReadResponse, error) {
	var buf bytes.Buffer
	if err := resp.EncodeTo(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return DecodeRgetResponse(&buf)
}
