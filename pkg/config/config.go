package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration for the Explorer engine and its service
// surface. Every section has defaults that produce a runnable local setup
// (embedded vector store, local Ollama embedder, no filter LLM).
type Config struct {
	Explorer      ExplorerConfig      `yaml:"explorer"`
	Search        SearchConfig        `yaml:"search"`
	Fetcher       FetcherConfig       `yaml:"fetcher"`
	Chunker       ChunkerConfig       `yaml:"chunker"`
	Embedder      EmbedderConfig      `yaml:"embedder"`
	LLM           LLMConfig           `yaml:"llm"`
	VectorStore   VectorStoreConfig   `yaml:"vector_store"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ExplorerConfig tunes the orchestrator.
type ExplorerConfig struct {
	// MaxRetries bounds the retrieve->ingest->retrieve loop depth.
	MaxRetries int `yaml:"max_retries"`

	// QueryBatchSize is how many queries ingest in parallel per batch.
	QueryBatchSize int `yaml:"query_batch_size"`

	// MaxConcurrentURLs caps the per-query URL fan-out.
	MaxConcurrentURLs int `yaml:"max_concurrent_urls"`

	// TopK is the per-query retrieval depth.
	TopK int `yaml:"top_k"`

	// IngestSimilarityThreshold is the minimum cosine similarity between a
	// chunk and its source query for the chunk to be stored.
	IngestSimilarityThreshold float64 `yaml:"ingest_similarity_threshold"`

	// RetrieveScoreThreshold is the minimum index-reported score for a
	// stored chunk to be returned to callers.
	RetrieveScoreThreshold float64 `yaml:"retrieve_score_threshold"`

	// BatchDelay is an optional pause between query batches, in seconds.
	BatchDelay int `yaml:"batch_delay"`
}

func (c *ExplorerConfig) SetDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	if c.QueryBatchSize == 0 {
		c.QueryBatchSize = 10
	}
	if c.MaxConcurrentURLs == 0 {
		c.MaxConcurrentURLs = 30
	}
	if c.TopK == 0 {
		c.TopK = 3
	}
	if c.IngestSimilarityThreshold == 0 {
		c.IngestSimilarityThreshold = 0.35
	}
	if c.RetrieveScoreThreshold == 0 {
		c.RetrieveScoreThreshold = 0.50
	}
}

func (c *ExplorerConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("explorer: max_retries must not be negative")
	}
	if c.QueryBatchSize < 1 {
		return fmt.Errorf("explorer: query_batch_size must be at least 1")
	}
	if c.MaxConcurrentURLs < 1 {
		return fmt.Errorf("explorer: max_concurrent_urls must be at least 1")
	}
	if c.TopK < 1 {
		return fmt.Errorf("explorer: top_k must be at least 1")
	}
	if c.IngestSimilarityThreshold < -1 || c.IngestSimilarityThreshold > 1 {
		return fmt.Errorf("explorer: ingest_similarity_threshold must be in [-1, 1]")
	}
	if c.RetrieveScoreThreshold < 0 || c.RetrieveScoreThreshold > 1 {
		return fmt.Errorf("explorer: retrieve_score_threshold must be in [0, 1]")
	}
	return nil
}

// SearchConfig configures the SearXNG client.
type SearchConfig struct {
	// Host is the base URL of the SearXNG instance, e.g. "http://localhost:8888".
	Host string `yaml:"host"`

	// MinDelay is the throttle floor between search requests, in seconds.
	MinDelay int `yaml:"min_delay"`

	// Timeout per search request, in seconds.
	Timeout int `yaml:"timeout"`

	// MaxRetries for failed search requests.
	MaxRetries int `yaml:"max_retries"`

	// Language and Categories are passed through to SearXNG when set.
	Language   string `yaml:"language,omitempty"`
	Categories string `yaml:"categories,omitempty"`

	// FilterEnabled routes raw results through the filter LLM.
	FilterEnabled bool `yaml:"filter_enabled"`
}

func (c *SearchConfig) SetDefaults() {
	if c.MinDelay == 0 {
		c.MinDelay = 5
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

func (c *SearchConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("search: host is required")
	}
	if c.MinDelay < 0 {
		return fmt.Errorf("search: min_delay must not be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("search: max_retries must not be negative")
	}
	return nil
}

// FetcherConfig configures the page fetcher.
type FetcherConfig struct {
	// Timeout per fetch, in seconds. The engine expects 10-30.
	Timeout int `yaml:"timeout"`

	// UserAgent overrides the default browser profile.
	UserAgent string `yaml:"user_agent,omitempty"`

	// MaxBodySize caps a response body, in bytes.
	MaxBodySize int64 `yaml:"max_body_size"`

	// InsecureTLS skips certificate verification when crawling.
	InsecureTLS bool `yaml:"insecure_tls,omitempty"`

	// CACertificate is a path to a custom CA bundle.
	CACertificate string `yaml:"ca_certificate,omitempty"`
}

func (c *FetcherConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 15
	}
	if c.MaxBodySize == 0 {
		c.MaxBodySize = 10 << 20
	}
}

func (c *FetcherConfig) Validate() error {
	if c.Timeout < 1 {
		return fmt.Errorf("fetcher: timeout must be at least 1 second")
	}
	return nil
}

// ChunkerConfig configures token-aware chunking.
type ChunkerConfig struct {
	// ChunkSize is the target chunk size in tokens.
	ChunkSize int `yaml:"chunk_size"`

	// Overlap is the token budget for context carried between chunks.
	Overlap int `yaml:"overlap"`

	// Encoding is the tiktoken encoding name.
	Encoding string `yaml:"encoding"`
}

func (c *ChunkerConfig) SetDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = 400
	}
	if c.Overlap == 0 {
		c.Overlap = 50
	}
	if c.Encoding == "" {
		c.Encoding = "cl100k_base"
	}
}

func (c *ChunkerConfig) Validate() error {
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunker: chunk_size must be positive")
	}
	if c.Overlap < 0 {
		return fmt.Errorf("chunker: overlap must not be negative")
	}
	if c.Overlap >= c.ChunkSize {
		return fmt.Errorf("chunker: overlap (%d) must be smaller than chunk_size (%d)", c.Overlap, c.ChunkSize)
	}
	return nil
}

// EmbedderConfig configures the local embedding provider used for the
// ingest-time relevance gate.
type EmbedderConfig struct {
	// Type selects the provider: "ollama" or "openai".
	Type string `yaml:"type"`

	// Model is the embedding model name.
	Model string `yaml:"model"`

	// Host is the provider endpoint.
	Host string `yaml:"host"`

	// APIKey for hosted providers.
	APIKey string `yaml:"api_key,omitempty"`

	// Dimension of the produced vectors.
	Dimension int `yaml:"dimension"`

	// Timeout per embedding request, in seconds.
	Timeout int `yaml:"timeout"`

	// MaxRetries for failed embedding requests.
	MaxRetries int `yaml:"max_retries"`

	// BatchSize for document embedding.
	BatchSize int `yaml:"batch_size"`
}

func (c *EmbedderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "ollama"
	}
	if c.Model == "" {
		c.Model = "embeddinggemma"
	}
	if c.Host == "" {
		switch c.Type {
		case "openai":
			c.Host = "https://api.openai.com"
		default:
			c.Host = "http://localhost:11434"
		}
	}
	if c.Dimension == 0 {
		c.Dimension = 768
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BatchSize == 0 {
		c.BatchSize = 32
	}
}

func (c *EmbedderConfig) Validate() error {
	switch c.Type {
	case "ollama", "openai":
	default:
		return fmt.Errorf("embedder: unknown type %q", c.Type)
	}
	if c.Type == "openai" && c.APIKey == "" {
		return fmt.Errorf("embedder: api_key is required for openai")
	}
	if c.Dimension < 1 {
		return fmt.Errorf("embedder: dimension must be positive")
	}
	return nil
}

// LLMConfig configures the optional filter LLM used by the search client.
type LLMConfig struct {
	// Type selects the provider: "openai" (or any compatible endpoint) or
	// "gemini".
	Type string `yaml:"type"`

	// Model name, e.g. "gpt-4o-mini" or "gemini-2.0-flash".
	Model string `yaml:"model"`

	// APIKey for the provider. Defaults to the provider's conventional
	// environment variable when empty.
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL overrides the API endpoint (OpenAI-compatible servers).
	BaseURL string `yaml:"base_url,omitempty"`

	// Timeout per request, in seconds.
	Timeout int `yaml:"timeout"`

	// MaxRetries for failed requests.
	MaxRetries int `yaml:"max_retries"`

	// Temperature for generation.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens for generation.
	MaxTokens int `yaml:"max_tokens"`
}

func (c *LLMConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "openai"
	}
	if c.Model == "" {
		switch c.Type {
		case "gemini":
			c.Model = "gemini-2.0-flash"
		default:
			c.Model = "gpt-4o-mini"
		}
	}
	if c.BaseURL == "" && c.Type == "openai" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Timeout == 0 {
		c.Timeout = 60
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2048
	}
}

func (c *LLMConfig) Validate() error {
	switch c.Type {
	case "openai", "gemini":
	default:
		return fmt.Errorf("llm: unknown type %q", c.Type)
	}
	return nil
}

// VectorStoreConfig configures the vector index backing the engine.
type VectorStoreConfig struct {
	// Provider selects the backend: "chromem", "qdrant" or "pinecone".
	Provider string `yaml:"provider"`

	// IndexName identifies the Pinecone serverless index.
	IndexName string `yaml:"index_name"`

	// Namespace is the logical partition holding explored content. Tenants
	// are multiplexed inside it via the unique_id filter.
	Namespace string `yaml:"namespace"`

	// UpsertBatchSize caps records per upsert call.
	UpsertBatchSize int `yaml:"upsert_batch_size"`

	Qdrant   QdrantConfig   `yaml:"qdrant"`
	Pinecone PineconeConfig `yaml:"pinecone"`
	Chromem  ChromemConfig  `yaml:"chromem"`
}

// QdrantConfig configures the Qdrant provider.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key,omitempty"`
	UseTLS bool   `yaml:"use_tls,omitempty"`
}

// PineconeConfig configures the Pinecone provider.
type PineconeConfig struct {
	APIKey string `yaml:"api_key"`
	Cloud  string `yaml:"cloud"`
	Region string `yaml:"region"`
}

// ChromemConfig configures the embedded chromem provider.
type ChromemConfig struct {
	// PersistPath enables file persistence when set.
	PersistPath string `yaml:"persist_path,omitempty"`

	// Compress enables gzip compression for persistence.
	Compress bool `yaml:"compress,omitempty"`
}

func (c *VectorStoreConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "chromem"
	}
	if c.IndexName == "" {
		c.IndexName = "explored-data-index"
	}
	if c.Namespace == "" {
		c.Namespace = "Search"
	}
	if c.UpsertBatchSize == 0 {
		c.UpsertBatchSize = 96
	}
	if c.Qdrant.Host == "" {
		c.Qdrant.Host = "localhost"
	}
	if c.Qdrant.Port == 0 {
		c.Qdrant.Port = 6334
	}
	if c.Pinecone.Cloud == "" {
		c.Pinecone.Cloud = "aws"
	}
	if c.Pinecone.Region == "" {
		c.Pinecone.Region = "us-east-1"
	}
}

func (c *VectorStoreConfig) Validate() error {
	switch c.Provider {
	case "chromem", "qdrant", "pinecone":
	default:
		return fmt.Errorf("vector_store: unknown provider %q", c.Provider)
	}
	if c.Provider == "pinecone" && c.Pinecone.APIKey == "" {
		return fmt.Errorf("vector_store: pinecone api_key is required")
	}
	if c.UpsertBatchSize < 1 {
		return fmt.Errorf("vector_store: upsert_batch_size must be positive")
	}
	return nil
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// ShutdownTimeout bounds graceful shutdown, in seconds.
	ShutdownTimeout int `yaml:"shutdown_timeout"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("server: port %d out of range", c.Port)
	}
	return nil
}

// MetricsConfig enables the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracerConfig enables OpenTelemetry tracing.
type TracerConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ExporterType string  `yaml:"exporter_type"`
	EndpointURL  string  `yaml:"endpoint_url"`
	SamplingRate float64 `yaml:"sampling_rate"`
	ServiceName  string  `yaml:"service_name"`
}

// ObservabilityConfig groups metrics and tracing.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracerConfig  `yaml:"tracing"`
}

func (c *ObservabilityConfig) SetDefaults() {
	if c.Tracing.ExporterType == "" {
		c.Tracing.ExporterType = "otlp"
	}
	if c.Tracing.EndpointURL == "" {
		c.Tracing.EndpointURL = "localhost:4317"
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1.0
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "explorer"
	}
}

func (c *ObservabilityConfig) Validate() error {
	switch c.Tracing.ExporterType {
	case "otlp", "stdout":
	default:
		return fmt.Errorf("observability: unknown tracing exporter_type %q", c.Tracing.ExporterType)
	}
	return nil
}

// SetDefaults applies defaults across all sections.
func (c *Config) SetDefaults() {
	c.Explorer.SetDefaults()
	c.Search.SetDefaults()
	c.Fetcher.SetDefaults()
	c.Chunker.SetDefaults()
	c.Embedder.SetDefaults()
	c.LLM.SetDefaults()
	c.VectorStore.SetDefaults()
	c.Server.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks the full configuration.
func (c *Config) Validate() error {
	validators := []func() error{
		c.Explorer.Validate,
		c.Search.Validate,
		c.Fetcher.Validate,
		c.Chunker.Validate,
		c.VectorStore.Validate,
		c.Server.Validate,
		c.Observability.Validate,
	}
	var errs []string
	for _, validate := range validators {
		if err := validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := c.Embedder.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Search.FilterEnabled {
		if err := c.LLM.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
