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
	"crypto/md5"
	"encoding/hex"
	"strconv"
)

// ChunkRecord is the unit of storage: one chunk of one extracted page,
// scoped to a workspace. ID is the composite key produced by RecordID.
type ChunkRecord struct {
	ID          string `json:"_id"`
	WorkspaceID string `json:"unique_id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ChunkID     int    `json:"chunk_id"`
	ChunkText   string `json:"chunk_text"`
}

// RecordID builds the composite record key from the page URL and the chunk
// ordinal: the md5 hex digest of the URL joined with "_chunk_<n>". The digest
// is a stable content address, not a security measure. Chunk 0 doubles as the
// per-URL existence probe, so the scheme must not change between versions.
func RecordID(url string, chunkID int) string {
	digest := md5.Sum([]byte(url))
	return hex.EncodeToString(digest[:]) + "_chunk_" + strconv.Itoa(chunkID)
}

// recordFromMetadata rebuilds a ChunkRecord from a provider result. Metadata
// value types differ per backend (chromem stringifies everything, Qdrant
// returns int64, Pinecone float64), so the helpers below normalize them.
func recordFromMetadata(id string, metadata map[string]any) ChunkRecord {
	return ChunkRecord{
		ID:          id,
		WorkspaceID: metaString(metadata, "unique_id"),
		URL:         metaString(metadata, "url"),
		Title:       metaString(metadata, "title"),
		Description: metaString(metadata, "description"),
		ChunkID:     metaInt(metadata, "chunk_id"),
		ChunkText:   metaString(metadata, "chunk_text"),
	}
}

func metaString(metadata map[string]any, key string) string {
	if value, ok := metadata[key].(string); ok {
		return value
	}
	return ""
}

func metaInt(metadata map[string]any, key string) int {
	switch value := metadata[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	case string:
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return 0
}
