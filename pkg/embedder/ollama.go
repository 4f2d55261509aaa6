package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/introlix/explorer/pkg/config"
)

// Ollama's llama runner crashes when it receives concurrent embedding
// requests, so every call through this provider is serialized.
var ollamaEmbedMu sync.Mutex

// Ollama embeds text through a local Ollama server.
type Ollama struct {
	cfg       config.EmbedderConfig
	client    *http.Client
	baseDelay time.Duration

	queryPrefix string
	docPrefix   string
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllama creates an Ollama-backed embedder.
func NewOllama(cfg config.EmbedderConfig) *Ollama {
	query, doc := taskPrefixes(cfg.Model)
	return &Ollama{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseDelay:   time.Second,
		queryPrefix: query,
		docPrefix:   doc,
	}
}

// EmbedQuery embeds a single retrieval query.
func (e *Ollama) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, e.queryPrefix+text)
}

// EmbedDocuments embeds passages one request at a time. The /api/embeddings
// endpoint takes a single prompt, so batchSize has no effect here.
func (e *Ollama) EmbedDocuments(ctx context.Context, texts []string, batchSize int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vector, err := e.embed(ctx, e.docPrefix+text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vector)
	}
	return vectors, nil
}

// embed holds the mutex across the whole retry loop; the server must never
// see two in-flight embedding requests.
func (e *Ollama) embed(ctx context.Context, prompt string) ([]float32, error) {
	ollamaEmbedMu.Lock()
	defer ollamaEmbedMu.Unlock()

	payload, err := json.Marshal(ollamaEmbedRequest{Model: e.cfg.Model, Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * e.baseDelay):
			}
		}

		vector, err := e.doEmbed(ctx, payload)
		if err == nil {
			return vector, nil
		}
		lastErr = err
		slog.Debug("Ollama embedding retry", "attempt", attempt+1, "model", e.cfg.Model, "error", err)
	}

	slog.Error("Ollama embedding failed", "model", e.cfg.Model, "error", lastErr)
	return nil, fmt.Errorf("ollama embedding failed: %w", lastErr)
}

func (e *Ollama) doEmbed(ctx context.Context, payload []byte) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Host+"/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama API returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("received empty embedding from Ollama")
	}
	return parsed.Embedding, nil
}

// Dimension returns the configured vector width.
func (e *Ollama) Dimension() int { return e.cfg.Dimension }

// Model returns the model name in use.
func (e *Ollama) Model() string { return e.cfg.Model }

// Close releases resources.
func (e *Ollama) Close() error { return nil }

// taskPrefixes returns the query and document prompt prefixes for model
// families trained with task-specific prompts.
func taskPrefixes(model string) (query, document string) {
	name := strings.ToLower(model)
	switch {
	case strings.Contains(name, "embeddinggemma"):
		return "task: search result | query: ", "title: none | text: "
	case strings.Contains(name, "nomic-embed-text"):
		return "search_query: ", "search_document: "
	}
	return "", ""
}
