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
	"sync"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/introlix/explorer/pkg/config"
)

// PineconeProvider implements Provider using the Pinecone managed vector
// database. Collection names map to namespaces inside one serverless index;
// the index itself is fixed by configuration.
type PineconeProvider struct {
	client    *pinecone.Client
	cfg       config.PineconeConfig
	indexName string

	mu   sync.Mutex
	host string
}

// NewPineconeProvider creates a new Pinecone provider bound to indexName.
func NewPineconeProvider(cfg config.PineconeConfig, indexName string) (*PineconeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Pinecone")
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}

	return &PineconeProvider{
		client:    client,
		cfg:       cfg,
		indexName: indexName,
	}, nil
}

// EnsureCollection creates the serverless index if it does not exist.
// Namespaces materialize on first upsert, so the name argument only matters
// for the other operations.
func (p *PineconeProvider) EnsureCollection(ctx context.Context, name string, dimension int) error {
	indexes, err := p.client.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indexes: %w", err)
	}
	for _, idx := range indexes {
		if idx.Name == p.indexName {
			return nil
		}
	}

	_, err = p.client.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:      p.indexName,
		Dimension: int32(dimension),
		Metric:    pinecone.Cosine,
		Cloud:     pinecone.Cloud(p.cfg.Cloud),
		Region:    p.cfg.Region,
	})
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", p.indexName, err)
	}

	slog.Info("Created Pinecone serverless index",
		"index", p.indexName,
		"dimension", dimension,
		"cloud", p.cfg.Cloud,
		"region", p.cfg.Region)
	return nil
}

// Upsert inserts or replaces points by ID.
func (p *PineconeProvider) Upsert(ctx context.Context, name string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	conn, err := p.connect(ctx, name)
	if err != nil {
		return err
	}
	defer conn.Close()

	vectors := make([]*pinecone.Vector, 0, len(points))
	for _, point := range points {
		var metadata *pinecone.Metadata
		if len(point.Metadata) > 0 {
			metadata, err = structpb.NewStruct(point.Metadata)
			if err != nil {
				return fmt.Errorf("failed to convert metadata: %w", err)
			}
		}
		vectors = append(vectors, &pinecone.Vector{
			Id:       point.ID,
			Values:   point.Vector,
			Metadata: metadata,
		})
	}

	if _, err := conn.UpsertVectors(ctx, vectors); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}
	return nil
}

// Query returns the topK most similar points.
func (p *PineconeProvider) Query(ctx context.Context, name string, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	conn, err := p.connect(ctx, name)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var metadataFilter *pinecone.MetadataFilter
	if len(filter) > 0 {
		metadataFilter, err = structpb.NewStruct(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to convert filter: %w", err)
		}
	}

	response, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		MetadataFilter:  metadataFilter,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query Pinecone: %w", err)
	}

	out := make([]Result, 0, len(response.Matches))
	for _, match := range response.Matches {
		if match.Vector == nil {
			continue
		}
		metadata := make(map[string]any)
		if match.Vector.Metadata != nil {
			metadata = match.Vector.Metadata.AsMap()
		}
		out = append(out, Result{
			ID:       match.Vector.Id,
			Score:    match.Score,
			Metadata: metadata,
		})
	}
	return out, nil
}

// Fetch retrieves points by ID, preserving the requested order.
func (p *PineconeProvider) Fetch(ctx context.Context, name string, ids []string) ([]Result, error) {
	conn, err := p.connect(ctx, name)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	response, err := conn.FetchVectors(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vectors: %w", err)
	}

	out := make([]Result, 0, len(ids))
	for _, id := range ids {
		vector, ok := response.Vectors[id]
		if !ok || vector == nil {
			continue
		}
		metadata := make(map[string]any)
		if vector.Metadata != nil {
			metadata = vector.Metadata.AsMap()
		}
		out = append(out, Result{ID: vector.Id, Metadata: metadata})
	}
	return out, nil
}

// DeleteByFilter removes every point whose metadata matches the filter.
func (p *PineconeProvider) DeleteByFilter(ctx context.Context, name string, filter map[string]any) error {
	conn, err := p.connect(ctx, name)
	if err != nil {
		return err
	}
	defer conn.Close()

	metadataFilter, err := structpb.NewStruct(filter)
	if err != nil {
		return fmt.Errorf("failed to convert filter: %w", err)
	}

	if err := conn.DeleteVectorsByFilter(ctx, metadataFilter); err != nil {
		return fmt.Errorf("failed to delete by filter: %w", err)
	}
	return nil
}

// Name returns the provider name.
func (p *PineconeProvider) Name() string {
	return "pinecone"
}

// Close releases resources. The Pinecone client has no explicit close.
func (p *PineconeProvider) Close() error {
	return nil
}

// connect opens an index connection scoped to the given namespace. The
// index host is resolved once and cached.
func (p *PineconeProvider) connect(ctx context.Context, namespace string) (*pinecone.IndexConnection, error) {
	p.mu.Lock()
	if p.host == "" {
		index, err := p.client.DescribeIndex(ctx, p.indexName)
		if err != nil {
			p.mu.Unlock()
			return nil, fmt.Errorf("failed to describe index %s: %w", p.indexName, err)
		}
		p.host = index.Host
	}
	host := p.host
	p.mu.Unlock()

	conn, err := p.client.Index(pinecone.NewIndexConnParams{
		Host:      host,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create index connection: %w", err)
	}
	return conn, nil
}

// Ensure PineconeProvider implements Provider.
var _ Provider = (*PineconeProvider)(nil)
