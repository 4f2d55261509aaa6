// Copyright 2025 Introlix
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package explorer

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Recorder receives pipeline events for export to a metrics backend.
// Implementations must be safe for concurrent use.
type Recorder interface {
	RecordRun(ctx context.Context, mode string, elapsed time.Duration)
	RecordSearch(ctx context.Context)
	RecordFetch(ctx context.Context, ok bool)
	RecordSkippedURL(ctx context.Context)
	RecordChunksStored(ctx context.Context, count int)
	RecordRetrievalHits(ctx context.Context, count int)
	RecordPipelineError(ctx context.Context, stage string)
}

type noopRecorder struct{}

func (noopRecorder) RecordRun(context.Context, string, time.Duration) {}
func (noopRecorder) RecordSearch(context.Context)                     {}
func (noopRecorder) RecordFetch(context.Context, bool)                {}
func (noopRecorder) RecordSkippedURL(context.Context)                 {}
func (noopRecorder) RecordChunksStored(context.Context, int)          {}
func (noopRecorder) RecordRetrievalHits(context.Context, int)         {}
func (noopRecorder) RecordPipelineError(context.Context, string)      {}

// runMetrics counts what one Run invocation did. Counters are touched from
// many goroutines at once.
type runMetrics struct {
	searches      atomic.Int64
	fetches       atomic.Int64
	fetchFailures atomic.Int64
	skippedURLs   atomic.Int64
	chunksStored  atomic.Int64
	errors        atomic.Int64
}

func (m *runMetrics) log(mode Mode, workspaceID string, elapsed time.Duration) {
	slog.Info("Explorer run complete",
		"mode", string(mode),
		"workspace", workspaceID,
		"searches", m.searches.Load(),
		"fetched", m.fetches.Load(),
		"fetch_failures", m.fetchFailures.Load(),
		"skipped_urls", m.skippedURLs.Load(),
		"chunks_stored", m.chunksStored.Load(),
		"errors", m.errors.Load(),
		"elapsed", elapsed)
}
