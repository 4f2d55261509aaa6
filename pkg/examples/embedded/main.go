// Example embedded demonstrates driving the engine from Go code without
// the HTTP server.
//
// The engine needs its backing services reachable:
//   - a SearXNG instance for web search
//   - an Ollama instance serving an embedding model
//
// Run:
//
//	go run ./pkg/examples/embedded
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/introlix/explorer/pkg/config"
	"github.com/introlix/explorer/pkg/explorer"
	"github.com/introlix/explorer/pkg/runtime"
)

func main() {
	ctx := context.Background()

	// Start from defaults and point the engine at local services. A YAML
	// file with the same shape works too; see config.Load.
	cfg := config.Default()
	cfg.Search.Host = envOr("SEARXNG_HOST", "http://localhost:8888")
	cfg.VectorStore.Chromem.PersistPath = ".explorer/vectors"
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	rt, err := runtime.NewWithConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to assemble engine: %v", err)
	}
	defer rt.Close()

	// The workspace starts empty, so the engine searches the web, ingests
	// what clears the relevance gate, and retrieves from the fresh index.
	results, err := rt.Engine().Run(ctx,
		[]string{"how do heat pumps work"},
		"demo",
		explorer.ModeRetrieve,
		5,
	)
	if err != nil {
		log.Fatalf("Explore failed: %v", err)
	}

	fmt.Printf("Retrieved %d chunks:\n\n", len(results))
	for i, res := range results {
		fmt.Printf("%d. %s (score %.2f)\n   %s\n\n", i+1, res.Title, res.Score, res.URL)
	}

	// Clean up the demo workspace.
	if err := rt.Engine().PurgeWorkspace(ctx, "demo"); err != nil {
		log.Printf("Purge failed: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
