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

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/introlix/explorer/pkg/config"
)

// QdrantProvider implements Provider using the Qdrant gRPC client.
type QdrantProvider struct {
	client *qdrant.Client
	cfg    config.QdrantConfig
}

// NewQdrantProvider creates a new Qdrant provider.
func NewQdrantProvider(cfg config.QdrantConfig) (*QdrantProvider, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client for %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &QdrantProvider{
		client: client,
		cfg:    cfg,
	}, nil
}

// pointID maps a record key to the deterministic UUID Qdrant requires.
// Qdrant only accepts UUID or integer point IDs, so the composite key is
// carried in the _id payload field and recovered from there on reads.
func pointID(key string) string {
	return uuid.NewMD5(uuid.NameSpaceOID, []byte(key)).String()
}

// EnsureCollection creates the collection if it does not exist.
func (p *QdrantProvider) EnsureCollection(ctx context.Context, name string, dimension int) error {
	exists, err := p.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = p.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// Upsert inserts or replaces points by ID.
func (p *QdrantProvider) Upsert(ctx context.Context, name string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, point := range points {
		payload := make(map[string]*qdrant.Value, len(point.Metadata)+1)
		for key, value := range point.Metadata {
			val, err := qdrant.NewValue(value)
			if err != nil {
				return fmt.Errorf("failed to convert metadata value for key %s: %w", key, err)
			}
			payload[key] = val
		}
		idValue, err := qdrant.NewValue(point.ID)
		if err != nil {
			return fmt.Errorf("failed to convert point ID: %w", err)
		}
		payload["_id"] = idValue

		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(point.ID)),
			Vectors: qdrant.NewVectors(point.Vector...),
			Payload: payload,
		})
	}

	_, err := p.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         qdrantPoints,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// Query returns the topK most similar points.
func (p *QdrantProvider) Query(ctx context.Context, name string, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	searchRequest := &qdrant.SearchPoints{
		CollectionName: name,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(filter) > 0 {
		searchRequest.Filter = buildQdrantFilter(filter)
	}

	searchResult, err := p.client.GetPointsClient().Search(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	out := make([]Result, 0, len(searchResult.Result))
	for _, point := range searchResult.Result {
		metadata := payloadMetadata(point.Payload)
		out = append(out, Result{
			ID:       recordKey(metadata, point.Id),
			Score:    point.Score,
			Metadata: metadata,
		})
	}
	return out, nil
}

// Fetch retrieves points by ID, preserving the requested order.
func (p *QdrantProvider) Fetch(ctx context.Context, name string, ids []string) ([]Result, error) {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(pointID(id)))
	}

	points, err := p.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: name,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch points: %w", err)
	}

	// Qdrant returns found points in arbitrary order.
	byKey := make(map[string]Result, len(points))
	for _, point := range points {
		metadata := payloadMetadata(point.Payload)
		key := recordKey(metadata, point.Id)
		byKey[key] = Result{ID: key, Metadata: metadata}
	}

	out := make([]Result, 0, len(ids))
	for _, id := range ids {
		if result, ok := byKey[id]; ok {
			out = append(out, result)
		}
	}
	return out, nil
}

// DeleteByFilter removes every point whose payload matches the filter.
func (p *QdrantProvider) DeleteByFilter(ctx context.Context, name string, filter map[string]any) error {
	_, err := p.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: buildQdrantFilter(filter),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete by filter: %w", err)
	}
	return nil
}

// Name returns the provider name.
func (p *QdrantProvider) Name() string {
	return "qdrant"
}

// Close closes the Qdrant client.
func (p *QdrantProvider) Close() error {
	return p.client.Close()
}

// buildQdrantFilter converts an equality filter map to a Qdrant keyword
// filter.
func buildQdrantFilter(filter map[string]any) *qdrant.Filter {
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for key, value := range filter {
		val, err := qdrant.NewValue(value)
		if err != nil {
			continue
		}
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: key,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{
							Keyword: val.GetStringValue(),
						},
					},
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

// payloadMetadata converts a Qdrant payload to a plain metadata map.
func payloadMetadata(payload map[string]*qdrant.Value) map[string]any {
	metadata := make(map[string]any, len(payload))
	for key, value := range payload {
		switch v := value.Kind.(type) {
		case *qdrant.Value_StringValue:
			metadata[key] = v.StringValue
		case *qdrant.Value_IntegerValue:
			metadata[key] = v.IntegerValue
		case *qdrant.Value_DoubleValue:
			metadata[key] = v.DoubleValue
		case *qdrant.Value_BoolValue:
			metadata[key] = v.BoolValue
		}
	}
	return metadata
}

// recordKey recovers the composite record key from the _id payload field,
// falling back to the raw point UUID.
func recordKey(metadata map[string]any, id *qdrant.PointId) string {
	if key, ok := metadata["_id"].(string); ok && key != "" {
		return key
	}
	if id != nil {
		if u, ok := id.PointIdOptions.(*qdrant.PointId_Uuid); ok {
			return u.Uuid
		}
	}
	return ""
}

// Ensure QdrantProvider implements Provider.
var _ Provider = (*QdrantProvider)(nil)
