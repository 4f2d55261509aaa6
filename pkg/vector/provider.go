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

// Package vector provides raw vector storage over interchangeable backends.
//
// Providers speak in Points and collection names; everything the engine
// knows about records, tenants and thresholds lives one layer up in
// pkg/store.
package vector

import "context"

// Point is one stored vector with its payload.
type Point struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// Result is a point returned by Query or Fetch. Score carries the backend's
// reported similarity for Query results and is zero for fetches.
type Result struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// Provider stores vectors in named collections and searches them by cosine
// similarity.
type Provider interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, name string, dimension int) error

	// Upsert inserts or replaces points by ID.
	Upsert(ctx context.Context, name string, points []Point) error

	// Query returns the topK most similar points, optionally constrained
	// by an equality filter over metadata fields.
	Query(ctx context.Context, name string, vector []float32, topK int, filter map[string]any) ([]Result, error)

	// Fetch retrieves points by ID, preserving the requested order.
	// Missing IDs are skipped, not errors.
	Fetch(ctx context.Context, name string, ids []string) ([]Result, error)

	// DeleteByFilter removes every point whose metadata matches the filter.
	DeleteByFilter(ctx context.Context, name string, filter map[string]any) error

	// Name identifies the backing implementation.
	Name() string

	// Close releases held connections.
	Close() error
}
