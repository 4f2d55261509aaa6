package embedder

import (
	"context"
	"fmt"

	"github.com/introlix/explorer/pkg/config"
)

// Embedder produces dense vectors for retrieval queries and stored passages.
//
// The two entry points exist because sentence-embedding models encode
// retrieval intent in the prompt: the same text embeds differently as a
// query than as a passage.
type Embedder interface {
	// EmbedQuery embeds a single retrieval query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedDocuments embeds passages in batches of batchSize. A batchSize
	// of zero or less falls back to the configured default.
	EmbedDocuments(ctx context.Context, texts []string, batchSize int) ([][]float32, error)

	// Dimension returns the width of the produced vectors.
	Dimension() int

	// Model returns the model name in use.
	Model() string

	// Close releases resources held by the embedder.
	Close() error
}

// New builds an Embedder for the configured provider type.
func New(cfg config.EmbedderConfig) (Embedder, error) {
	switch cfg.Type {
	case "ollama", "":
		return NewOllama(cfg), nil
	case "openai":
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown embedder type: %s", cfg.Type)
	}
}
