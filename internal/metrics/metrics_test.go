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

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveOperationCountsByOutcome(t *testing.T) {
	OperationsTotal.Reset()

	ObserveOperation("get", nil, time.Millisecond)
	ObserveOperation("get", errors.New("boom"), time.Millisecond)

	if got := testutil.ToFloat64(OperationsTotal.WithLabelValues("get", "ok")); got != 1 {
		t.Errorf("ok count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(OperationsTotal.WithLabelValues("get", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

func TestSetBackfillProgressReportsFraction(t *testing.T) {
	SetBackfillProgress("shard-x", 0.5)
	if got := testutil.ToFloat64(BackfillProgress.WithLabelValues("shard-x")); got != 0.5 {
		t.Errorf("progress = %v, want 0.5", got)
	}
}

func TestSetPageCacheStatsReportsAllStates(t *testing.T) {
	SetPageCacheStats("shard-x", 10, 3, 100)
	if got := testutil.ToFloat64(PageCacheFrames.WithLabelValues("shard-x", "used")); got != 10 {
		t.Errorf("used = %v, want 10", got)
	}
	if got := testutil.ToFloat64(PageCacheFrames.WithLabelValues("shard-x", "dirty")); got != 3 {
		t.Errorf("dirty = %v, want 3", got)
	}
	if got := testutil.ToFloat64(PageCacheFrames.WithLabelValues("shard-x", "pool_size")); got != 100 {
		t.Errorf("pool_size = %v, want 100", got)
	}
}
