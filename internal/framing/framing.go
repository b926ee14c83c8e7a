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

// Package framing implements the length-prefixed wire encodings shared by
// metainfo persistence and by lazy range-read streaming: a data buffer is
// a 4-byte big-endian length followed by that many bytes, and a lazy
// sequence of elements is a run of (next=true, element) pairs terminated
// by a single next=false byte.
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"shardstore/internal/databuf"
	"shardstore/internal/keyrange"
)

// ErrTruncated signals a buffer or element ended before its declared
// length was fully read.
var ErrTruncated = errors.New("framing: truncated input")

// ErrNegativeSize signals a declared length that decodes to a negative or
// implausibly large value.
var ErrNegativeSize = errors.New("framing: negative or oversized length")

const maxFrameSize = 64 << 20 // 64 MiB guards against a corrupt length field

// WriteBuffer writes b as a length-prefixed frame.
func WriteBuffer(w io.Writer, b *databuf.Buffer) error {
	return writeBytes(w, b.Bytes())
}

func writeBytes(w io.Writer, p []byte) error {
	if len(p) > math.MaxUint32 {
		return fmt.Errorf("framing: buffer of %d bytes exceeds frame limit", len(p))
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(p)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	_, err := w.Write(p)
	return err
}

// ReadBuffer reads one length-prefixed frame and wraps it in a Buffer.
func ReadBuffer(r io.Reader) (*databuf.Buffer, error) {
	p, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	return databuf.New(p), nil
}

func readBytes(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, ErrTruncated
		}
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrameSize {
		return nil, ErrNegativeSize
	}
	if n == 0 {
		return []byte{}, nil
	}
	p := make([]byte, n)
	if _, err := io.ReadFull(r, p); err != nil {
		return nil, ErrTruncated
	}
	return p, nil
}

// sequence element tags used by the "next" boolean framing.
const (
	tagEnd      byte = 0
	tagContinue byte = 1
)

// WriteElement writes one (key, value) pair of a lazy range-read stream,
// preceded by a continuation marker.
func WriteElement(w io.Writer, key keyrange.Key, value *databuf.Buffer) error {
	if _, err := w.Write([]byte{tagContinue}); err != nil {
		return err
	}
	if err := writeBytes(w, key); err != nil {
		return err
	}
	return WriteBuffer(w, value)
}

// WriteTerminator writes the final next=false marker of a lazy sequence.
func WriteTerminator(w io.Writer) error {
	_, err := w.Write([]byte{tagEnd})
	return err
}

// ReadElement reads one stream step: ok is false (with zero key/value) at
// the terminator.
func ReadElement(r io.Reader) (key keyrange.Key, value *databuf.Buffer, ok bool, err error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return nil, nil, false, ErrTruncated
	}
	if tag[0] == tagEnd {
		return nil, nil, false, nil
	}
	if tag[0] != tagContinue {
		return nil, nil, false, fmt.Errorf("framing: unexpected continuation tag %d", tag[0])
	}
	kb, err := readBytes(r)
	if err != nil {
		return nil, nil, false, err
	}
	v, err := ReadBuffer(r)
	if err != nil {
		return nil, nil, false, err
	}
	return keyrange.Key(kb), v, true, nil
}

// EncodeKeyRange serializes a key_range value for metainfo persistence.
func EncodeKeyRange(r keyrange.KeyRange) []byte {
	buf := make([]byte, 0, 16+len(r.LeftKey)+len(r.RightKey))
	buf = append(buf, byte(r.LeftMode), byte(r.RightMode))
	buf = appendFrame(buf, r.LeftKey)
	buf = appendFrame(buf, r.RightKey)
	return buf
}

func appendFrame(buf []byte, p []byte) []byte {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(p)))
	buf = append(buf, hdr[:]...)
	return append(buf, p...)
}

// DecodeKeyRange deserializes a key_range previously produced by
// EncodeKeyRange.
func DecodeKeyRange(b []byte) (keyrange.KeyRange, error) {
	if len(b) < 2 {
		return keyrange.KeyRange{}, ErrTruncated
	}
	r := keyrange.KeyRange{LeftMode: keyrange.BoundMode(b[0]), RightMode: keyrange.BoundMode(b[1])}
	rest := b[2:]
	left, rest, err := readFrame(rest)
	if err != nil {
		return keyrange.KeyRange{}, err
	}
	right, rest, err := readFrame(rest)
	if err != nil {
		return keyrange.KeyRange{}, err
	}
	if len(rest) != 0 {
		return keyrange.KeyRange{}, fmt.Errorf("framing: %d trailing bytes after key_range", len(rest))
	}
	r.LeftKey = keyrange.Key(left)
	r.RightKey = keyrange.Key(right)
	return r, nil
}

func readFrame(b []byte) (frame, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, ErrTruncated
	}
	n := binary.BigEndian.Uint32(b[:4])
	if n > maxFrameSize {
		return nil, nil, ErrNegativeSize
	}
	if int(n) > len(b)-4 {
		return nil, nil, ErrTruncated
	}
	return b[4 : 4+n], b[4+n:], nil
}
