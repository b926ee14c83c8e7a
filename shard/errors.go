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

import "errors"

// ErrInterrupted is returned when a suspending call observes its
// cancellation signal before real work begins.
var ErrInterrupted = errors.New("shard: interrupted")

// ErrMetainfoMismatch is returned by a metainfo check that finds the
// on-disk map disagreeing with the caller's expected view.
var ErrMetainfoMismatch = errors.New("shard: metainfo mismatch")

// ErrDecode is returned when serialized metainfo or a streamed range
// element fails framing.
var ErrDecode = errors.New("shard: decode error")

// ErrDomainViolation is returned by an update_metainfo call whose new
// domain escapes universe, or by an unshard call whose response count
// doesn't match what the request variant requires.
var ErrDomainViolation = errors.New("shard: domain violation")
