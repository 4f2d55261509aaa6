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

// Package explorer coordinates the explore pipeline. Retrieval reads scored
// chunks from the record store under a workspace filter; queries that come
// back empty drive the ingestion path (web search, fetch, extract, chunk,
// embed, store) and are then retried until data arrives or the retry budget
// runs out.
package explorer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/introlix/explorer/pkg/chunker"
	"github.com/introlix/explorer/pkg/config"
	"github.com/introlix/explorer/pkg/embedder"
	"github.com/introlix/explorer/pkg/fetcher"
	"github.com/introlix/explorer/pkg/observability"
	"github.com/introlix/explorer/pkg/store"
	"github.com/introlix/explorer/pkg/websearch"
)

// tracerName identifies the engine's spans.
const tracerName = "explorer.engine"

// Mode selects what Run produces.
type Mode string

const (
	// ModeRetrieve returns scored chunks, ingesting on cache miss.
	ModeRetrieve Mode = "retrieve"

	// ModeIngestOnly fills the store and returns nothing.
	ModeIngestOnly Mode = "ingest_only"
)

// retrySettleDelay is how long a retry waits after ingestion so the index
// can absorb the new records before it is queried again.
const retrySettleDelay = 2 * time.Second

// Result is one retrieved chunk with its provenance and index score.
type Result struct {
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ChunkText   string  `json:"chunk_text"`
	Score       float32 `json:"score"`
}

// RecordStore is the slice of the chunk store the orchestrator uses.
type RecordStore interface {
	Search(ctx context.Context, queryText string, topK int, workspaceID string) ([]store.Hit, error)
	Exists(ctx context.Context, workspaceID, url string) (bool, error)
	UpsertRecords(ctx context.Context, records []store.ChunkRecord) error
	DeleteWorkspace(ctx context.Context, workspaceID string) error
}

// WebSearcher finds candidate URLs for a query. Implementations are total:
// a failed search is an empty result, never an error.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) []websearch.Result
}

// URLFetcher downloads one URL. A failed fetch is a Result with no body.
type URLFetcher interface {
	Fetch(ctx context.Context, url string) fetcher.Result
}

// TextChunker splits extracted text into token-bounded chunks.
type TextChunker interface {
	Chunk(text string) []chunker.Chunk
}

// Deps bundles the collaborators an Explorer orchestrates.
type Deps struct {
	Store    RecordStore
	Search   WebSearcher
	Fetcher  URLFetcher
	Chunker  TextChunker
	Embedder embedder.Embedder
}

// Explorer runs the retrieve and ingest flows over one set of collaborators.
// It is safe for concurrent use; all per-run state lives on the stack.
type Explorer struct {
	cfg      config.ExplorerConfig
	store    RecordStore
	search   WebSearcher
	fetcher  URLFetcher
	chunker  TextChunker
	embedder embedder.Embedder
	recorder Recorder

	batchDelay  time.Duration
	settleDelay time.Duration
}

// Option configures an Explorer.
type Option func(*Explorer)

// WithRecorder installs a metrics recorder. The default discards events.
func WithRecorder(r Recorder) Option {
	return func(e *Explorer) { e.recorder = r }
}

// New builds an Explorer. All Deps fields are required.
func New(cfg config.ExplorerConfig, deps Deps, opts ...Option) (*Explorer, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("explorer requires a record store")
	case deps.Search == nil:
		return nil, fmt.Errorf("explorer requires a web searcher")
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("explorer requires a fetcher")
	case deps.Chunker == nil:
		return nil, fmt.Errorf("explorer requires a chunker")
	case deps.Embedder == nil:
		return nil, fmt.Errorf("explorer requires an embedder")
	}

	e := &Explorer{
		cfg:         cfg,
		store:       deps.Store,
		search:      deps.Search,
		fetcher:     deps.Fetcher,
		chunker:     deps.Chunker,
		embedder:    deps.Embedder,
		recorder:    noopRecorder{},
		batchDelay:  time.Duration(cfg.BatchDelay) * time.Second,
		settleDelay: retrySettleDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run executes one explore invocation. In ModeRetrieve it returns every
// chunk that cleared the score threshold, aggregated across queries in no
// particular cross-query order. In ModeIngestOnly it returns nothing.
//
// Pipeline faults never surface as errors; they are logged and the affected
// query or URL is skipped. Run fails only on caller mistakes (empty
// workspace, unknown mode) and on context cancellation, in which case any
// results gathered so far are still returned.
func (e *Explorer) Run(ctx context.Context, queries []string, workspaceID string, mode Mode, maxResults int) ([]Result, error) {
	switch mode {
	case ModeRetrieve, ModeIngestOnly:
	default:
		return nil, fmt.Errorf("unknown answer mode %q", mode)
	}
	if workspaceID == "" {
		return nil, store.ErrNoWorkspace
	}
	if len(queries) == 0 {
		return nil, nil
	}

	ctx, span := observability.GetTracer(tracerName).Start(ctx, "explore.run",
		trace.WithAttributes(
			attribute.String("explore.mode", string(mode)),
			attribute.String("explore.workspace", workspaceID),
			attribute.Int("explore.queries", len(queries)),
		))
	defer span.End()

	start := time.Now()
	metrics := &runMetrics{}
	defer func() {
		elapsed := time.Since(start)
		metrics.log(mode, workspaceID, elapsed)
		e.recorder.RecordRun(ctx, string(mode), elapsed)
	}()

	// One registry per run: a URL is fetched at most once per invocation,
	// no matter how many queries or retry rounds surface it.
	seen := newURLRegistry()

	if mode == ModeIngestOnly {
		e.ingest(ctx, queries, workspaceID, maxResults, seen, metrics)
		return nil, ctx.Err()
	}

	var results []Result
	pending := queries
	for attempt := 0; ; attempt++ {
		answered, needsData := e.retrieve(ctx, pending, workspaceID, metrics)
		results = append(results, answered...)
		if len(needsData) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if attempt > e.cfg.MaxRetries {
			slog.Warn("Giving up on queries, retry budget exhausted",
				"workspace", workspaceID,
				"unanswered", len(needsData),
				"attempts", attempt)
			break
		}

		slog.Info("Ingesting for queries without stored answers",
			"workspace", workspaceID,
			"queries", len(needsData),
			"attempt", attempt)
		e.ingest(ctx, needsData, workspaceID, maxResults, seen, metrics)

		// Let the index absorb the new records before querying again.
		if err := sleep(ctx, e.settleDelay); err != nil {
			return results, err
		}
		pending = needsData
	}
	return results, nil
}

// retrieve searches the store for every query in parallel and splits the
// queries into answered results and the ones that still need data. A store
// read failure counts as a cache miss for that query.
func (e *Explorer) retrieve(ctx context.Context, queries []string, workspaceID string, metrics *runMetrics) ([]Result, []string) {
	var (
		mu        sync.Mutex
		results   []Result
		needsData []string
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, query := range queries {
		g.Go(func() error {
			qctx, span := observability.GetTracer(tracerName).Start(gctx, "explore.retrieve_query",
				trace.WithAttributes(attribute.String("explore.query", truncate(query, 100))))
			defer span.End()

			hits, err := e.store.Search(qctx, query, e.cfg.TopK, workspaceID)
			if err != nil {
				slog.Warn("Store search failed, treating query as cache miss",
					"query", query,
					"error", err)
				metrics.errors.Add(1)
				e.recorder.RecordPipelineError(qctx, "retrieve")
				hits = nil
			}

			kept := make([]Result, 0, len(hits))
			for _, hit := range hits {
				if float64(hit.Score) < e.cfg.RetrieveScoreThreshold || hit.ChunkText == "" {
					continue
				}
				kept = append(kept, Result{
					URL:         hit.URL,
					Title:       hit.Title,
					Description: hit.Description,
					ChunkText:   hit.ChunkText,
					Score:       hit.Score,
				})
			}
			if len(kept) > 0 {
				e.recorder.RecordRetrievalHits(qctx, len(kept))
			}

			mu.Lock()
			defer mu.Unlock()
			if len(kept) == 0 {
				needsData = append(needsData, query)
			} else {
				results = append(results, kept...)
			}
			return nil
		})
	}
	// Workers contain their own faults and never return an error.
	_ = g.Wait()
	return results, needsData
}

// PurgeWorkspace deletes every stored record belonging to the workspace.
func (e *Explorer) PurgeWorkspace(ctx context.Context, workspaceID string) error {
	return e.store.DeleteWorkspace(ctx, workspaceID)
}

// sleep waits for d or until the context is done. A non-positive d returns
// immediately.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// truncate caps span attribute values so long queries do not bloat traces.
func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
