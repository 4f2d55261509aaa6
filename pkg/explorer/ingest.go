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
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/introlix/explorer/pkg/chunker"
	"github.com/introlix/explorer/pkg/embedder"
	"github.com/introlix/explorer/pkg/extractor"
	"github.com/introlix/explorer/pkg/fetcher"
	"github.com/introlix/explorer/pkg/observability"
	"github.com/introlix/explorer/pkg/store"
)

// ingest runs the search -> fetch -> extract -> chunk -> embed -> store path
// for every query, QueryBatchSize queries at a time. Faults are logged and
// skipped; ingest itself never fails, it just stores less.
func (e *Explorer) ingest(ctx context.Context, queries []string, workspaceID string, maxResults int, seen *urlRegistry, metrics *runMetrics) {
	for start := 0; start < len(queries); start += e.cfg.QueryBatchSize {
		if ctx.Err() != nil {
			return
		}
		end := min(start+e.cfg.QueryBatchSize, len(queries))

		g, gctx := errgroup.WithContext(ctx)
		for _, query := range queries[start:end] {
			g.Go(func() error {
				e.ingestQuery(gctx, query, workspaceID, maxResults, seen, metrics)
				return nil
			})
		}
		_ = g.Wait()

		if end < len(queries) {
			if err := sleep(ctx, e.batchDelay); err != nil {
				return
			}
		}
	}
}

// ingestQuery searches the web for one query and ingests every new URL
// under a bounded fan-out.
func (e *Explorer) ingestQuery(ctx context.Context, query, workspaceID string, maxResults int, seen *urlRegistry, metrics *runMetrics) {
	ctx, span := observability.GetTracer(tracerName).Start(ctx, "explore.ingest_query",
		trace.WithAttributes(attribute.String("explore.query", truncate(query, 100))))
	defer span.End()

	found := e.search.Search(ctx, query, maxResults)
	metrics.searches.Add(1)
	e.recorder.RecordSearch(ctx)
	if len(found) == 0 {
		slog.Debug("Web search produced no candidates", "query", query)
		return
	}

	// One query embedding serves the similarity gate for every URL below.
	queryVector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		slog.Warn("Skipping ingestion for query, embedding failed",
			"query", query,
			"error", err)
		metrics.errors.Add(1)
		e.recorder.RecordPipelineError(ctx, "embed_query")
		return
	}

	sem := semaphore.NewWeighted(int64(e.cfg.MaxConcurrentURLs))
	var wg sync.WaitGroup
	for _, candidate := range found {
		url := fetcher.NormalizeURL(candidate.URL)
		if url == "" {
			continue
		}
		if !seen.claim(url) {
			metrics.skippedURLs.Add(1)
			e.recorder.RecordSkippedURL(ctx)
			continue
		}

		exists, err := e.store.Exists(ctx, workspaceID, url)
		if err != nil {
			// Upserts replace by ID, so fetching again is safe.
			slog.Warn("Existence check failed, fetching anyway",
				"url", url,
				"error", err)
			metrics.errors.Add(1)
			e.recorder.RecordPipelineError(ctx, "exists")
		} else if exists {
			slog.Debug("URL already ingested for workspace",
				"url", url,
				"workspace", workspaceID)
			metrics.skippedURLs.Add(1)
			e.recorder.RecordSkippedURL(ctx)
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			e.ingestURL(ctx, query, workspaceID, url, queryVector, metrics)
		}()
	}
	wg.Wait()
}

// ingestURL turns one page into stored chunk records. Every failure mode
// logs and returns; a URL is never worth failing the run for.
func (e *Explorer) ingestURL(ctx context.Context, query, workspaceID, url string, queryVector []float32, metrics *runMetrics) {
	ctx, span := observability.GetTracer(tracerName).Start(ctx, "explore.fetch_url",
		trace.WithAttributes(attribute.String("url.full", url)))
	defer span.End()

	fetched := e.fetcher.Fetch(ctx, url)
	if len(fetched.Body) == 0 {
		slog.Debug("Skipping URL, fetch returned no content",
			"url", url,
			"status", fetched.StatusCode)
		metrics.fetchFailures.Add(1)
		e.recorder.RecordFetch(ctx, false)
		return
	}
	metrics.fetches.Add(1)
	e.recorder.RecordFetch(ctx, true)

	scrape, err := extractor.Extract(ctx, fetched.Body, fetched.Kind, url)
	if err != nil {
		slog.Debug("Skipping URL, extraction failed", "url", url, "error", err)
		metrics.errors.Add(1)
		e.recorder.RecordPipelineError(ctx, "extract")
		return
	}

	chunks := e.chunker.Chunk(scrape.Text)
	if len(chunks) == 0 {
		slog.Debug("Skipping URL, page produced no chunks", "url", url)
		return
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	docVectors, err := e.embedder.EmbedDocuments(ctx, texts, 0)
	if err != nil {
		slog.Warn("Skipping URL, chunk embedding failed",
			"url", url,
			"error", err)
		metrics.errors.Add(1)
		e.recorder.RecordPipelineError(ctx, "embed_chunks")
		return
	}

	similarities := embedder.Similarities(queryVector, docVectors)
	records := recordsAboveThreshold(workspaceID, url, scrape, chunks, similarities, e.cfg.IngestSimilarityThreshold)
	if len(records) == 0 {
		slog.Debug("No chunks cleared the similarity gate",
			"url", url,
			"query", query,
			"chunks", len(chunks))
		return
	}

	if err := e.store.UpsertRecords(ctx, records); err != nil {
		slog.Warn("Failed to store records", "url", url, "error", err)
		metrics.errors.Add(1)
		e.recorder.RecordPipelineError(ctx, "upsert")
		return
	}
	metrics.chunksStored.Add(int64(len(records)))
	e.recorder.RecordChunksStored(ctx, len(records))
	slog.Debug("Ingested URL",
		"url", url,
		"chunks", len(chunks),
		"stored", len(records))
}

// recordsAboveThreshold keeps the chunks whose similarity to the source
// query clears the ingest threshold and shapes them into store records.
func recordsAboveThreshold(workspaceID, url string, scrape *extractor.ScrapeResult, chunks []chunker.Chunk, similarities []float64, threshold float64) []store.ChunkRecord {
	records := make([]store.ChunkRecord, 0, len(chunks))
	for i, chunk := range chunks {
		if i >= len(similarities) || similarities[i] < threshold {
			continue
		}
		records = append(records, store.ChunkRecord{
			ID:          store.RecordID(url, chunk.ChunkID),
			WorkspaceID: workspaceID,
			URL:         url,
			Title:       scrape.Title,
			Description: scrape.Description,
			ChunkID:     chunk.ChunkID,
			ChunkText:   chunk.Text,
		})
	}
	return records
}

// urlRegistry tracks URLs claimed during one run. It dedups overlapping
// search results across queries before any chunk lands in the store, and
// keeps retry rounds from refetching pages that stored nothing. Such pages
// are only re-crawled by a later run.
type urlRegistry struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newURLRegistry() *urlRegistry {
	return &urlRegistry{seen: make(map[string]struct{})}
}

// claim reports whether the caller is the first in this run to take the URL.
func (r *urlRegistry) claim(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[url]; ok {
		return false
	}
	r.seen[url] = struct{}{}
	return true
}
