package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/introlix/explorer/pkg/config"
	"github.com/introlix/explorer/pkg/httpclient"
)

// OpenAI embeds text through the OpenAI embeddings API or any compatible
// server.
type OpenAI struct {
	cfg    config.EmbedderConfig
	apiKey string
	client *httpclient.Client
}

type openaiEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *openaiEmbedError `json:"error,omitempty"`
}

type openaiEmbedError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewOpenAI creates an OpenAI-compatible embedder. An API key is required,
// from config or the OPENAI_API_KEY environment variable.
func NewOpenAI(cfg config.EmbedderConfig) (*OpenAI, error) {
	key := cfg.APIKey
	if key == "" {
		key = config.ProviderAPIKey("openai")
	}
	if key == "" {
		return nil, fmt.Errorf("openai embedder requires an API key (set OPENAI_API_KEY)")
	}

	parser := httpclient.ParseStandardHeaders
	if strings.Contains(cfg.Host, "api.openai.com") {
		parser = httpclient.ParseOpenAIHeaders
	}

	return &OpenAI{
		cfg:    cfg,
		apiKey: key,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.Timeout) * time.Second,
			}),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithHeaderParser(parser),
		),
	}, nil
}

// EmbedQuery embeds a single retrieval query.
func (e *OpenAI) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments embeds passages in batches of batchSize.
func (e *OpenAI) EmbedDocuments(ctx context.Context, texts []string, batchSize int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = e.cfg.BatchSize
	}
	if batchSize <= 0 {
		batchSize = len(texts)
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (e *OpenAI) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	requestBody, err := json.Marshal(openaiEmbedRequest{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint(), bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	// The client returns both a response and an error for non-2xx statuses;
	// the body still carries the API's error detail.
	if resp != nil {
		defer resp.Body.Close()
	}
	if resp != nil && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var wrapper struct {
			Error *openaiEmbedError `json:"error"`
		}
		if jsonErr := json.Unmarshal(body, &wrapper); jsonErr == nil && wrapper.Error != nil {
			return nil, fmt.Errorf("embedding request failed with status %d: %s", resp.StatusCode, wrapper.Error.Message)
		}
		return nil, fmt.Errorf("embedding request failed with status %d: %s", resp.StatusCode, string(body))
	}
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	var parsed openaiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("API error: %s", parsed.Error.Message)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(parsed.Data))
	}

	// Entries are placed by their index field rather than response order.
	vectors := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, vector := range vectors {
		if vector == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return vectors, nil
}

// endpoint appends the /v1 prefix when the host does not already carry it.
func (e *OpenAI) endpoint() string {
	host := strings.TrimRight(e.cfg.Host, "/")
	if !strings.HasSuffix(host, "/v1") {
		host += "/v1"
	}
	return host + "/embeddings"
}

// Dimension returns the configured vector width.
func (e *OpenAI) Dimension() int { return e.cfg.Dimension }

// Model returns the model name in use.
func (e *OpenAI) Model() string { return e.cfg.Model }

// Close releases resources.
func (e *OpenAI) Close() error { return nil }
