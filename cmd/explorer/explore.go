package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/introlix/explorer/pkg/explorer"
	"github.com/introlix/explorer/pkg/runtime"
)

// ExploreCmd runs one explore pass without the server.
type ExploreCmd struct {
	Queries    []string `arg:"" name:"query" help:"Queries to explore."`
	Workspace  string   `short:"w" required:"" help:"Workspace the stored chunks belong to."`
	Mode       string   `help:"Answer mode." default:"retrieve" enum:"retrieve,ingest_only"`
	MaxResults int      `name:"max-results" help:"Search results considered per query." default:"10"`
	JSON       bool     `help:"Print results as JSON."`
	SearchHost string   `name:"search-host" help:"SearXNG base URL for zero-config mode (ignored when --config is set)."`
}

func (c *ExploreCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config, c.SearchHost)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	rt, err := runtime.NewWithConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	results, err := rt.Engine().Run(ctx, c.Queries, c.Workspace, explorer.Mode(c.Mode), c.MaxResults)
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if c.Mode == "ingest_only" {
		fmt.Println("Ingestion complete.")
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No chunks cleared the score threshold.")
		return nil
	}
	for i, res := range results {
		fmt.Printf("%2d. %s  (score %.2f)\n", i+1, res.Title, res.Score)
		fmt.Printf("    %s\n", res.URL)
		fmt.Printf("    %s\n\n", snippet(res.ChunkText, 280))
	}
	return nil
}

// snippet collapses whitespace and trims s to at most n characters on a
// word boundary.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	cut := strings.LastIndex(s[:n], " ")
	if cut <= 0 {
		cut = n
	}
	return s[:cut] + "..."
}
