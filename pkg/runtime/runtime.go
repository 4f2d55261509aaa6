// Package runtime assembles a working engine from configuration. It is the
// one place that knows how every component is constructed and torn down;
// the server and the CLI both build their engines here.
package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/introlix/explorer/pkg/chunker"
	"github.com/introlix/explorer/pkg/config"
	"github.com/introlix/explorer/pkg/embedder"
	"github.com/introlix/explorer/pkg/explorer"
	"github.com/introlix/explorer/pkg/fetcher"
	"github.com/introlix/explorer/pkg/llm"
	"github.com/introlix/explorer/pkg/store"
	"github.com/introlix/explorer/pkg/vector"
	"github.com/introlix/explorer/pkg/websearch"
)

// Runtime owns the wired component graph for one configuration.
type Runtime struct {
	config    *config.Config
	provider  vector.Provider
	embedder  embedder.Embedder
	filterLLM llm.Provider
	store     *store.SearchStore
	engine    *explorer.Explorer
}

// NewWithConfig builds every component the engine needs and makes sure the
// vector collection exists. engineOpts pass straight through to the engine.
func NewWithConfig(ctx context.Context, cfg *config.Config, engineOpts ...explorer.Option) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	embed, err := embedder.New(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	provider, err := vector.NewProvider(cfg.VectorStore)
	if err != nil {
		closeQuietly("embedder", embed.Close)
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	var filterLLM llm.Provider
	cleanupOnError := func() {
		if filterLLM != nil {
			closeQuietly("filter llm", filterLLM.Close)
		}
		closeQuietly("vector store", provider.Close)
		closeQuietly("embedder", embed.Close)
	}

	searchStore := store.New(cfg.VectorStore, provider, embed)
	if err := searchStore.EnsureIndex(ctx); err != nil {
		cleanupOnError()
		return nil, fmt.Errorf("failed to prepare vector collection: %w", err)
	}

	// The result filter is the only component that needs a generative
	// model; skip the provider entirely when filtering is off.
	var searchOpts []websearch.Option
	if cfg.Search.FilterEnabled {
		filterLLM, err = llm.New(cfg.LLM)
		if err != nil {
			cleanupOnError()
			return nil, fmt.Errorf("failed to initialize filter llm: %w", err)
		}
		searchOpts = append(searchOpts, websearch.WithFilterer(websearch.NewLLMFilter(filterLLM)))
	}
	searcher := websearch.NewSearxNG(cfg.Search, searchOpts...)

	chunk, err := chunker.New(cfg.Chunker)
	if err != nil {
		cleanupOnError()
		return nil, fmt.Errorf("failed to initialize chunker: %w", err)
	}

	fetch, err := fetcher.New(cfg.Fetcher)
	if err != nil {
		cleanupOnError()
		return nil, fmt.Errorf("failed to initialize fetcher: %w", err)
	}

	engine, err := explorer.New(cfg.Explorer, explorer.Deps{
		Store:    searchStore,
		Search:   searcher,
		Fetcher:  fetch,
		Chunker:  chunk,
		Embedder: embed,
	}, engineOpts...)
	if err != nil {
		cleanupOnError()
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}

	return &Runtime{
		config:    cfg,
		provider:  provider,
		embedder:  embed,
		filterLLM: filterLLM,
		store:     searchStore,
		engine:    engine,
	}, nil
}

// Engine returns the explore engine.
func (r *Runtime) Engine() *explorer.Explorer {
	return r.engine
}

// Store returns the record store.
func (r *Runtime) Store() *store.SearchStore {
	return r.store
}

// Config returns the configuration this runtime was built from.
func (r *Runtime) Config() *config.Config {
	return r.config
}

// Close releases every held connection. All components are closed even
// when some fail; the first failure is returned.
func (r *Runtime) Close() error {
	var errs []error

	if r.filterLLM != nil {
		if err := r.filterLLM.Close(); err != nil {
			errs = append(errs, fmt.Errorf("filter llm cleanup: %w", err))
		}
	}
	if r.embedder != nil {
		if err := r.embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("embedder cleanup: %w", err))
		}
	}
	if r.provider != nil {
		if err := r.provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("vector store cleanup: %w", err))
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func closeQuietly(name string, close func() error) {
	if err := close(); err != nil {
		slog.Warn("Cleanup failed", "component", name, "error", err)
	}
}
