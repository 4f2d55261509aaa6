package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/introlix/explorer/pkg/config"
	"github.com/introlix/explorer/pkg/server"
)

// ServeCmd starts the HTTP API server.
type ServeCmd struct {
	SearchHost string `name:"search-host" help:"SearXNG base URL for zero-config mode (ignored when --config is set)."`
	Port       int    `help:"Port to listen on (overrides config)."`
	Watch      bool   `help:"Watch the config file and reload on change."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config, c.SearchHost)
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	srv, err := server.New(server.Options{
		Config:     cfg,
		ConfigPath: cli.Config,
		Watch:      c.Watch && cli.Config != "",
	})
	if err != nil {
		return err
	}

	if err := srv.Start(context.Background()); err != nil {
		return err
	}

	printServeInfo(cfg)

	// The lifecycle loop owns SIGINT/SIGTERM; Wait returns once the server
	// has fully shut down.
	srv.Wait()
	return nil
}

func printServeInfo(cfg *config.Config) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	fmt.Println("\nExplorer server ready")
	fmt.Printf("   Explore:     POST http://%s/v1/explore\n", addr)
	fmt.Printf("   Purge:       DELETE http://%s/v1/workspaces/{workspace}\n", addr)
	fmt.Printf("   Health:      http://%s/health\n", addr)
	if cfg.Observability.Metrics.Enabled {
		fmt.Printf("   Metrics:     http://%s/metrics\n", addr)
	}
	if cfg.Observability.Tracing.Enabled {
		fmt.Printf("   Tracing:     %s (%s)\n", cfg.Observability.Tracing.ExporterType, cfg.Observability.Tracing.EndpointURL)
	}

	switch cfg.VectorStore.Provider {
	case "chromem":
		if cfg.VectorStore.Chromem.PersistPath == "" {
			fmt.Printf("   Store:       chromem (in-memory, not persisted)\n")
		} else {
			fmt.Printf("   Store:       chromem (%s)\n", cfg.VectorStore.Chromem.PersistPath)
		}
	case "qdrant":
		fmt.Printf("   Store:       qdrant (%s:%d)\n", cfg.VectorStore.Qdrant.Host, cfg.VectorStore.Qdrant.Port)
	case "pinecone":
		fmt.Printf("   Store:       pinecone (%s)\n", cfg.VectorStore.IndexName)
	}

	fmt.Println("\nPress Ctrl+C to stop")
}

// loadConfig loads the config file, or builds a zero-config setup around a
// SearXNG host when no file is given.
func loadConfig(path, searchHost string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		slog.Info("Loaded configuration", "path", path)
		return cfg, nil
	}

	if searchHost == "" {
		return nil, fmt.Errorf("either --config or --search-host is required")
	}

	cfg := config.Default()
	cfg.Search.Host = searchHost
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.Info("Using zero-config mode", "search_host", searchHost)
	return cfg, nil
}
