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

// Package metrics exposes Prometheus counters and histograms for the
// engine's request path: per-operation counts and latencies, backfill
// progress, and page-cache utilization. cmd/shardstore-server registers
// an HTTP handler for /metrics using the default promauto registry these
// collectors are registered against.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts dispatched read/write operations by kind
	// (get, rget, set, incr_decr, append_prepend, delete, get_cas) and
	// outcome (ok, error).
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shardstore_operations_total",
			Help: "Total number of shard operations dispatched, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// OperationDuration is the latency of a dispatched operation,
	// including superblock acquisition time.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shardstore_operation_duration_seconds",
			Help:    "Shard operation latency in seconds, including superblock acquisition",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// EnforcerWaitDuration is the time an operation's token spent
	// waiting in the FIFO enforcer before acquisition.
	EnforcerWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shardstore_enforcer_wait_seconds",
			Help:    "Time spent waiting for the FIFO token enforcer",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"token_kind"},
	)

	// BackfillChunksTotal counts backfill chunks emitted by the producer
	// or applied by the receiver, by chunk kind.
	BackfillChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shardstore_backfill_chunks_total",
			Help: "Total backfill chunks processed, by chunk kind and role",
		},
		[]string{"kind", "role"},
	)

	// BackfillProgress is the fractional completion (0..1) of the most
	// recently observed in-flight backfill per shard.
	BackfillProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shardstore_backfill_progress_ratio",
			Help: "Fractional completion of the in-flight backfill for a shard",
		},
		[]string{"shard_id"},
	)

	// PageCacheFrames reports the page cache's frame utilization.
	PageCacheFrames = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shardstore_pagecache_frames",
			Help: "Page cache frame counts by state (used, dirty, pool_size)",
		},
		[]string{"shard_id", "state"},
	)
)

// ObserveOperation records the outcome and latency of a dispatched
// operation.
func ObserveOperation(kind string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	OperationsTotal.WithLabelValues(kind, outcome).Inc()
	OperationDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveEnforcerWait records how long a token waited in the FIFO
// enforcer before it was granted.
func ObserveEnforcerWait(tokenKind string, elapsed time.Duration) {
	EnforcerWaitDuration.WithLabelValues(tokenKind).Observe(elapsed.Seconds())
}

// ObserveBackfillChunk records one chunk processed by the producer
// ("send") or receiver ("receive") side of backfill.
func ObserveBackfillChunk(kind, role string) {
	BackfillChunksTotal.WithLabelValues(kind, role).Inc()
}

// SetBackfillProgress records the current fractional completion of an
// in-flight backfill for shardID.
func SetBackfillProgress(shardID string, fraction float64) {
	BackfillProgress.WithLabelValues(shardID).Set(fraction)
}

// SetPageCacheStats records a page cache utilization snapshot for
// shardID. used/dirty/poolSize come from pagecache.Cache.Stats().
func SetPageCacheStats(shardID string, used, dirty, poolSize int) {
	PageCacheFrames.WithLabelValues(shardID, "used").Set(float64(used))
	PageCacheFrames.WithLabelValues(shardID, "dirty").Set(float64(dirty))
	PageCacheFrames.WithLabelValues(shardID, "pool_size").Set(float64(poolSize))
}
