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

package vector

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/introlix/explorer/pkg/config"
)

// ChromemProvider implements Provider using chromem-go for embedded vector
// storage. Vectors live in memory with optional gob persistence to a
// directory; it is the zero-config default for single-process deployments.
type ChromemProvider struct {
	db          *chromem.DB
	persistPath string

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
	dims        map[string]int

	embeddingFunc chromem.EmbeddingFunc
}

// NewChromemProvider creates an embedded vector provider. When a persist
// path is configured, writes flow through to the directory as they happen
// and previously stored collections are loaded on startup.
func NewChromemProvider(cfg config.ChromemConfig) (*ChromemProvider, error) {
	var db *chromem.DB
	var err error

	if cfg.PersistPath != "" {
		db, err = chromem.NewPersistentDB(cfg.PersistPath, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector database at %s: %w", cfg.PersistPath, err)
		}
		slog.Info("Opened persistent vector database", "path", cfg.PersistPath)
	} else {
		db = chromem.NewDB()
	}

	// Vectors arrive pre-computed; the embedding hook must never run.
	identityEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embedding function called but vectors are pre-computed")
	}

	return &ChromemProvider{
		db:            db,
		persistPath:   cfg.PersistPath,
		collections:   make(map[string]*chromem.Collection),
		dims:          make(map[string]int),
		embeddingFunc: identityEmbed,
	}, nil
}

// EnsureCollection creates the collection if it does not exist and records
// its vector dimension.
func (p *ChromemProvider) EnsureCollection(ctx context.Context, name string, dimension int) error {
	if _, err := p.getCollection(name); err != nil {
		return err
	}
	p.setDim(name, dimension)
	return nil
}

// Upsert inserts or replaces points by ID.
func (p *ChromemProvider) Upsert(ctx context.Context, name string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	col, err := p.getCollection(name)
	if err != nil {
		return err
	}
	if p.dimFor(name) == 0 {
		p.setDim(name, len(points[0].Vector))
	}

	docs := make([]chromem.Document, 0, len(points))
	for _, point := range points {
		// chromem metadata is string-valued; the point ID is mirrored into
		// the _id field so filtered lookups can recover it.
		metadata := make(map[string]string, len(point.Metadata)+1)
		for k, v := range point.Metadata {
			metadata[k] = fmt.Sprint(v)
		}
		metadata["_id"] = point.ID

		docs = append(docs, chromem.Document{
			ID:        point.ID,
			Metadata:  metadata,
			Embedding: point.Vector,
		})
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to upsert documents: %w", err)
	}
	return nil
}

// Query returns the topK most similar points. topK is clamped to the
// collection size; chromem rejects result counts above it.
func (p *ChromemProvider) Query(ctx context.Context, name string, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	col, err := p.getCollection(name)
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := col.QueryEmbedding(ctx, vector, topK, stringFilter(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		out = append(out, Result{
			ID:       r.ID,
			Score:    r.Similarity,
			Metadata: anyMetadata(r.Metadata),
		})
	}
	return out, nil
}

// Fetch retrieves points by ID through a filtered probe query on the _id
// field. Missing IDs are skipped.
func (p *ChromemProvider) Fetch(ctx context.Context, name string, ids []string) ([]Result, error) {
	col, err := p.getCollection(name)
	if err != nil {
		return nil, err
	}
	if col.Count() == 0 {
		return nil, nil
	}

	dimension := p.dimFor(name)
	if dimension == 0 {
		return nil, fmt.Errorf("collection %q has unknown dimension; call EnsureCollection first", name)
	}
	probe := make([]float32, dimension)
	probe[0] = 1

	out := make([]Result, 0, len(ids))
	for _, id := range ids {
		matches, err := col.QueryEmbedding(ctx, probe, 1, map[string]string{"_id": id}, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch failed for %s: %w", id, err)
		}
		if len(matches) == 0 {
			continue
		}
		out = append(out, Result{
			ID:       matches[0].ID,
			Metadata: anyMetadata(matches[0].Metadata),
		})
	}
	return out, nil
}

// DeleteByFilter removes every point whose metadata matches the filter.
func (p *ChromemProvider) DeleteByFilter(ctx context.Context, name string, filter map[string]any) error {
	col, err := p.getCollection(name)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, stringFilter(filter), nil); err != nil {
		return fmt.Errorf("failed to delete by filter: %w", err)
	}
	return nil
}

// Name returns the provider name.
func (p *ChromemProvider) Name() string {
	return "chromem"
}

// Close releases resources. Persistence is write-through, so there is
// nothing to flush.
func (p *ChromemProvider) Close() error {
	return nil
}

func (p *ChromemProvider) getCollection(name string) (*chromem.Collection, error) {
	p.mu.RLock()
	if col, ok := p.collections[name]; ok {
		p.mu.RUnlock()
		return col, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if col, ok := p.collections[name]; ok {
		return col, nil
	}

	col, err := p.db.GetOrCreateCollection(name, nil, p.embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to get/create collection %q: %w", name, err)
	}
	p.collections[name] = col
	return col, nil
}

func (p *ChromemProvider) dimFor(name string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dims[name]
}

func (p *ChromemProvider) setDim(name string, dimension int) {
	if dimension <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dims[name] = dimension
}

func stringFilter(filter map[string]any) map[string]string {
	if len(filter) == 0 {
		return nil
	}
	out := make(map[string]string, len(filter))
	for k, v := range filter {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func anyMetadata(metadata map[string]string) map[string]any {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

// Ensure ChromemProvider implements Provider.
var _ Provider = (*ChromemProvider)(nil)
