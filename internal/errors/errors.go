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

// Package errors gives the CLI-facing edge of this repository
// (cmd/shardstore-server) one structured error
// shape to format and categorize the sentinel errors the engine raises
// (shard.ErrInterrupted, shard.ErrMetainfoMismatch, shard.ErrDecode,
// shard.ErrDomainViolation) plus its own I/O and configuration failures.
// The engine packages themselves (shard, btreeslice, router) return
// plain wrapped errors per spec §7; this package only classifies them
// for display once they reach a command surface.
package errors

import (
	"errors"
	"fmt"

	"shardstore/shard"
)

// Category buckets an error for operator-facing display and exit codes.
type Category string

const (
	CategoryInterrupted Category = "INTERRUPTED"
	CategoryMetainfo    Category = "METAINFO"
	CategoryDecode      Category = "DECODE"
	CategoryDomain      Category = "DOMAIN"
	CategoryStorage     Category = "STORAGE"
	CategoryConfig      Category = "CONFIG"
	CategoryUnknown     Category = "UNKNOWN"
)

// EngineError is a categorized wrapper around an error surfaced by the
// engine or the tooling around it.
type EngineError struct {
	Category Category
	Message  string
	Hint     string
	Cause    error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Category, e.Message)
}

func (e *EngineError) Unwrap() error { return e.Cause }

// UserMessage renders the error for a terminal: the categorized message
// plus a hint, if one applies.
func (e *EngineError) UserMessage() string {
	msg := fmt.Sprintf("error: %s", e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(" (%v)", e.Cause)
	}
	if e.Hint != "" {
		msg += fmt.Sprintf("\nhint: %s", e.Hint)
	}
	return msg
}

// Classify wraps err in an EngineError, categorizing it by which of the
// engine's sentinel errors it wraps.
func Classify(err error) *EngineError {
	if err == nil {
		return nil
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee
	}

	switch {
	case errors.Is(err, shard.ErrInterrupted):
		return &EngineError{
			Category: CategoryInterrupted,
			Message:  "operation was interrupted before completing",
			Hint:     "retry the request; no partial state was left behind",
			Cause:    err,
		}
	case errors.Is(err, shard.ErrMetainfoMismatch):
		return &EngineError{
			Category: CategoryMetainfo,
			Message:  "metainfo precondition did not match the store's current state",
			Hint:     "re-read metainfo with GetMetainfo and retry with a fresh expected view",
			Cause:    err,
		}
	case errors.Is(err, shard.ErrDecode):
		return &EngineError{
			Category: CategoryDecode,
			Message:  "failed to decode a length-prefixed payload",
			Hint:     "the source file or wire stream may be truncated or corrupt",
			Cause:    err,
		}
	case errors.Is(err, shard.ErrDomainViolation):
		return &EngineError{
			Category: CategoryDomain,
			Message:  "operation violated a region-domain invariant",
			Cause:    err,
		}
	default:
		return &EngineError{
			Category: CategoryStorage,
			Message:  "storage operation failed",
			Cause:    err,
		}
	}
}

// Config wraps a configuration validation failure.
func Config(message string) *EngineError {
	return &EngineError{Category: CategoryConfig, Message: message}
}

// Format renders any error for CLI output, classifying it first if it
// isn't already an EngineError.
func Format(err error) string {
	if err == nil {
		return ""
	}
	return Classify(err).UserMessage()
}
