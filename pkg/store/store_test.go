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

package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/introlix/explorer/pkg/config"
	"github.com/introlix/explorer/pkg/vector"
)

const (
	articleURL = "https://example.com/article"
	otherURL   = "https://example.com/other"
)

// stubEmbedder maps known texts to fixed vectors so similarity ordering in
// tests is deterministic. Unknown texts land on an axis orthogonal to all
// seeded content.
type stubEmbedder struct {
	vectors map[string][]float32
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{vectors: map[string][]float32{
		"solar panels convert sunlight into electricity": {1, 0, 0},
		"photovoltaic cells absorb photons":              {0.9, 0.1, 0},
		"medieval castles had concentric walls":          {0, 1, 0},
		"how do solar panels work":                       {1, 0, 0},
	}}
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return s.vectorFor(text), nil
}

func (s *stubEmbedder) EmbedDocuments(_ context.Context, texts []string, _ int) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = s.vectorFor(text)
	}
	return out, nil
}

func (s *stubEmbedder) vectorFor(text string) []float32 {
	if vec, ok := s.vectors[text]; ok {
		return vec
	}
	return []float32{0, 0, 1}
}

func (s *stubEmbedder) Dimension() int { return 3 }
func (s *stubEmbedder) Model() string  { return "stub" }
func (s *stubEmbedder) Close() error   { return nil }

// fakeProvider records calls so batching and filter contracts can be
// asserted without a real backend.
type fakeProvider struct {
	ensuredName string
	ensuredDim  int
	batches     [][]vector.Point
	deletes     []map[string]any
}

func (f *fakeProvider) EnsureCollection(_ context.Context, name string, dimension int) error {
	f.ensuredName = name
	f.ensuredDim = dimension
	return nil
}

func (f *fakeProvider) Upsert(_ context.Context, _ string, points []vector.Point) error {
	f.batches = append(f.batches, points)
	return nil
}

func (f *fakeProvider) Query(_ context.Context, _ string, _ []float32, _ int, _ map[string]any) ([]vector.Result, error) {
	return nil, nil
}

func (f *fakeProvider) Fetch(_ context.Context, _ string, _ []string) ([]vector.Result, error) {
	return nil, nil
}

func (f *fakeProvider) DeleteByFilter(_ context.Context, _ string, filter map[string]any) error {
	f.deletes = append(f.deletes, filter)
	return nil
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) Close() error { return nil }

func newTestStore(t *testing.T) *SearchStore {
	t.Helper()
	provider, err := vector.NewChromemProvider(config.ChromemConfig{})
	require.NoError(t, err)

	cfg := config.VectorStoreConfig{Namespace: "search-test", UpsertBatchSize: 96}
	s := New(cfg, provider, newStubEmbedder())
	require.NoError(t, s.EnsureIndex(context.Background()))
	return s
}

func seedRecords() []ChunkRecord {
	return []ChunkRecord{
		{
			ID:          RecordID(articleURL, 0),
			WorkspaceID: "ws-a",
			URL:         articleURL,
			Title:       "Solar Power",
			Description: "How panels generate electricity",
			ChunkID:     0,
			ChunkText:   "solar panels convert sunlight into electricity",
		},
		{
			ID:          RecordID(articleURL, 1),
			WorkspaceID: "ws-a",
			URL:         articleURL,
			Title:       "Solar Power",
			Description: "How panels generate electricity",
			ChunkID:     1,
			ChunkText:   "photovoltaic cells absorb photons",
		},
		{
			ID:          RecordID(otherURL, 0),
			WorkspaceID: "ws-b",
			URL:         otherURL,
			Title:       "Castle Design",
			Description: "Defensive architecture",
			ChunkID:     0,
			ChunkText:   "medieval castles had concentric walls",
		},
	}
}

func TestRecordID(t *testing.T) {
	// md5("https://example.com/article") = 141fbc787408697a5d22735982be532a
	assert.Equal(t, "141fbc787408697a5d22735982be532a_chunk_0", RecordID(articleURL, 0))
	assert.Equal(t, "141fbc787408697a5d22735982be532a_chunk_12", RecordID(articleURL, 12))
	assert.Equal(t, "42dda26811d23bc612750f7f680d2306_chunk_0", RecordID(otherURL, 0))
}

func TestSearchStore_UpsertAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertRecords(ctx, seedRecords()))

	hits, err := s.Search(ctx, "how do solar panels work", 3, "ws-a")
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, RecordID(articleURL, 0), hits[0].ID)
	assert.InDelta(t, 1.0, float64(hits[0].Score), 1e-3)
	assert.Equal(t, "ws-a", hits[0].WorkspaceID)
	assert.Equal(t, articleURL, hits[0].URL)
	assert.Equal(t, "Solar Power", hits[0].Title)
	assert.Equal(t, "How panels generate electricity", hits[0].Description)
	assert.Equal(t, 0, hits[0].ChunkID)
	assert.Equal(t, "solar panels convert sunlight into electricity", hits[0].ChunkText)

	assert.Equal(t, RecordID(articleURL, 1), hits[1].ID)
	assert.Equal(t, 1, hits[1].ChunkID)
	assert.Greater(t, float64(hits[1].Score), 0.9)
}

func TestSearchStore_SearchScopedToWorkspace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertRecords(ctx, seedRecords()))

	hits, err := s.Search(ctx, "medieval castles had concentric walls", 3, "ws-b")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, RecordID(otherURL, 0), hits[0].ID)
	assert.Equal(t, "ws-b", hits[0].WorkspaceID)
}

func TestSearchStore_SearchRequiresWorkspace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Search(ctx, "anything", 3, "")
	require.ErrorIs(t, err, ErrNoWorkspace)

	require.ErrorIs(t, s.DeleteWorkspace(ctx, ""), ErrNoWorkspace)

	_, err = s.Exists(ctx, "", articleURL)
	require.ErrorIs(t, err, ErrNoWorkspace)
}

func TestSearchStore_UpsertRejectsUnscopedRecords(t *testing.T) {
	s := newTestStore(t)
	records := seedRecords()
	records[1].WorkspaceID = ""

	err := s.UpsertRecords(context.Background(), records)
	require.ErrorIs(t, err, ErrNoWorkspace)
}

func TestSearchStore_FetchByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertRecords(ctx, seedRecords()))

	ids := []string{RecordID(articleURL, 1), "deadbeef_chunk_9", RecordID(otherURL, 0)}
	records, err := s.FetchByID(ctx, ids)
	require.NoError(t, err)
	require.Len(t, records, 3)

	found := records[RecordID(articleURL, 1)]
	require.NotNil(t, found)
	assert.Equal(t, 1, found.ChunkID)
	assert.Equal(t, "photovoltaic cells absorb photons", found.ChunkText)

	assert.Nil(t, records["deadbeef_chunk_9"])

	other := records[RecordID(otherURL, 0)]
	require.NotNil(t, other)
	assert.Equal(t, "ws-b", other.WorkspaceID)
}

func TestSearchStore_Exists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertRecords(ctx, seedRecords()))

	exists, err := s.Exists(ctx, "ws-a", articleURL)
	require.NoError(t, err)
	assert.True(t, exists)

	// Same URL, wrong workspace.
	exists, err = s.Exists(ctx, "ws-b", articleURL)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = s.Exists(ctx, "ws-a", "https://example.com/unseen")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSearchStore_DeleteWorkspace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertRecords(ctx, seedRecords()))

	require.NoError(t, s.DeleteWorkspace(ctx, "ws-a"))

	hits, err := s.Search(ctx, "how do solar panels work", 3, "ws-a")
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = s.Search(ctx, "medieval castles had concentric walls", 3, "ws-b")
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSearchStore_UpsertBatching(t *testing.T) {
	provider := &fakeProvider{}
	cfg := config.VectorStoreConfig{Namespace: "search-test", UpsertBatchSize: 4}
	s := New(cfg, provider, newStubEmbedder())

	records := make([]ChunkRecord, 10)
	for i := range records {
		records[i] = ChunkRecord{
			WorkspaceID: "ws-a",
			URL:         articleURL,
			ChunkID:     i,
			ChunkText:   fmt.Sprintf("chunk %d", i),
		}
	}
	require.NoError(t, s.UpsertRecords(context.Background(), records))

	require.Len(t, provider.batches, 3)
	assert.Len(t, provider.batches[0], 4)
	assert.Len(t, provider.batches[1], 4)
	assert.Len(t, provider.batches[2], 2)

	// IDs are derived from URL and chunk ordinal when the caller leaves
	// them empty.
	first := provider.batches[0][0]
	assert.Equal(t, RecordID(articleURL, 0), first.ID)
	assert.Equal(t, "ws-a", first.Metadata["unique_id"])
	assert.Equal(t, articleURL, first.Metadata["url"])
	assert.Equal(t, 0, first.Metadata["chunk_id"])
	assert.Equal(t, "chunk 0", first.Metadata["chunk_text"])
	assert.Len(t, first.Vector, 3)
}

func TestSearchStore_EnsureIndexUsesEmbedderDimension(t *testing.T) {
	provider := &fakeProvider{}
	cfg := config.VectorStoreConfig{Namespace: "search-test", UpsertBatchSize: 96}
	s := New(cfg, provider, newStubEmbedder())

	require.NoError(t, s.EnsureIndex(context.Background()))
	assert.Equal(t, "search-test", provider.ensuredName)
	assert.Equal(t, 3, provider.ensuredDim)
}

func TestSearchStore_DeleteWorkspaceFilter(t *testing.T) {
	provider := &fakeProvider{}
	cfg := config.VectorStoreConfig{Namespace: "search-test", UpsertBatchSize: 96}
	s := New(cfg, provider, newStubEmbedder())

	require.NoError(t, s.DeleteWorkspace(context.Background(), "ws-a"))
	require.Len(t, provider.deletes, 1)
	assert.Equal(t, map[string]any{"unique_id": "ws-a"}, provider.deletes[0])
}
