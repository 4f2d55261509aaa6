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

// Package store is the record-level layer over pkg/vector: it turns chunk
// records into points, embeds their text through the configured embedder,
// and enforces workspace scoping on every read and delete. Callers never
// pass vectors in or see them out.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/introlix/explorer/pkg/config"
	"github.com/introlix/explorer/pkg/embedder"
	"github.com/introlix/explorer/pkg/vector"
)

// DefaultUpsertBatchSize caps how many records one provider upsert carries.
const DefaultUpsertBatchSize = 96

// ErrNoWorkspace is returned when a tenant-scoped operation is called
// without a workspace ID. That is a bug in the caller, never a data state.
var ErrNoWorkspace = errors.New("workspace id is required")

// Hit is one search result: the reconstructed record plus its similarity
// score against the query.
type Hit struct {
	ChunkRecord
	Score float32
}

// SearchStore persists and retrieves chunk records in a single namespace of
// the underlying vector provider.
type SearchStore struct {
	provider  vector.Provider
	embedder  embedder.Embedder
	namespace string
	batchSize int
}

// New builds a SearchStore on top of an already constructed provider and
// embedder pair.
func New(cfg config.VectorStoreConfig, provider vector.Provider, embed embedder.Embedder) *SearchStore {
	batchSize := cfg.UpsertBatchSize
	if batchSize <= 0 {
		batchSize = DefaultUpsertBatchSize
	}
	return &SearchStore{
		provider:  provider,
		embedder:  embed,
		namespace: cfg.Namespace,
		batchSize: batchSize,
	}
}

// EnsureIndex makes sure the backing collection exists with the embedder's
// dimensionality. Safe to call on every startup.
func (s *SearchStore) EnsureIndex(ctx context.Context) error {
	if err := s.provider.EnsureCollection(ctx, s.namespace, s.embedder.Dimension()); err != nil {
		return fmt.Errorf("failed to ensure index %q: %w", s.namespace, err)
	}
	return nil
}

// UpsertRecords embeds the chunk texts and writes the records in batches.
// Records that already exist are replaced, keyed by their composite ID.
// Partial progress is kept on failure; completed batches stay written.
func (s *SearchStore) UpsertRecords(ctx context.Context, records []ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, record := range records {
		if record.WorkspaceID == "" {
			return fmt.Errorf("record for %s: %w", record.URL, ErrNoWorkspace)
		}
	}

	for start := 0; start < len(records); start += s.batchSize {
		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := s.upsertBatch(ctx, records[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *SearchStore) upsertBatch(ctx context.Context, records []ChunkRecord) error {
	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.ChunkText
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts, 0)
	if err != nil {
		return fmt.Errorf("failed to embed record batch: %w", err)
	}
	if len(vectors) != len(records) {
		return fmt.Errorf("embedder returned %d vectors for %d records", len(vectors), len(records))
	}

	points := make([]vector.Point, 0, len(records))
	for i, record := range records {
		id := record.ID
		if id == "" {
			id = RecordID(record.URL, record.ChunkID)
		}
		points = append(points, vector.Point{
			ID:     id,
			Vector: vectors[i],
			Metadata: map[string]any{
				"unique_id":   record.WorkspaceID,
				"url":         record.URL,
				"title":       record.Title,
				"description": record.Description,
				"chunk_id":    record.ChunkID,
				"chunk_text":  record.ChunkText,
			},
		})
	}

	if err := s.provider.Upsert(ctx, s.namespace, points); err != nil {
		return fmt.Errorf("failed to upsert record batch: %w", err)
	}
	slog.Debug("Upserted record batch",
		"count", len(points),
		"namespace", s.namespace)
	return nil
}

// Search embeds the query text and returns the topK closest records inside
// the given workspace, best first. Scores are raw backend similarities; any
// relevance cutoff is the caller's concern.
func (s *SearchStore) Search(ctx context.Context, queryText string, topK int, workspaceID string) ([]Hit, error) {
	if workspaceID == "" {
		return nil, ErrNoWorkspace
	}

	queryVector, err := s.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.provider.Query(ctx, s.namespace, queryVector, topK, map[string]any{
		"unique_id": workspaceID,
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, result := range results {
		hits = append(hits, Hit{
			ChunkRecord: recordFromMetadata(result.ID, result.Metadata),
			Score:       result.Score,
		})
	}
	return hits, nil
}

// FetchByID looks up records by their composite IDs. The returned map has an
// entry for every requested ID; missing records map to nil.
func (s *SearchStore) FetchByID(ctx context.Context, ids []string) (map[string]*ChunkRecord, error) {
	out := make(map[string]*ChunkRecord, len(ids))
	for _, id := range ids {
		out[id] = nil
	}
	if len(ids) == 0 {
		return out, nil
	}

	results, err := s.provider.Fetch(ctx, s.namespace, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	for _, result := range results {
		record := recordFromMetadata(result.ID, result.Metadata)
		out[record.ID] = &record
	}
	return out, nil
}

// Exists reports whether a URL has already been ingested into the workspace.
// It probes for chunk 0, which every ingested URL has exactly once.
func (s *SearchStore) Exists(ctx context.Context, workspaceID, url string) (bool, error) {
	if workspaceID == "" {
		return false, ErrNoWorkspace
	}

	results, err := s.provider.Fetch(ctx, s.namespace, []string{RecordID(url, 0)})
	if err != nil {
		return false, fmt.Errorf("existence probe failed for %s: %w", url, err)
	}
	for _, result := range results {
		// Record keys carry no workspace component, so a record found under
		// this key may belong to another workspace. The hit only counts when
		// its tenancy matches.
		if metaString(result.Metadata, "unique_id") == workspaceID {
			return true, nil
		}
	}
	return false, nil
}

// DeleteWorkspace removes every record belonging to the workspace. Other
// workspaces in the same namespace are untouched.
func (s *SearchStore) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	if workspaceID == "" {
		return ErrNoWorkspace
	}
	if err := s.provider.DeleteByFilter(ctx, s.namespace, map[string]any{"unique_id": workspaceID}); err != nil {
		return fmt.Errorf("failed to purge workspace %s: %w", workspaceID, err)
	}
	slog.Info("Purged workspace",
		"workspace", workspaceID,
		"namespace", s.namespace)
	return nil
}
