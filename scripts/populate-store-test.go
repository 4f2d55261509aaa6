package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/introlix/explorer/pkg/chunker"
	"github.com/introlix/explorer/pkg/config"
	"github.com/introlix/explorer/pkg/embedder"
	"github.com/introlix/explorer/pkg/store"
	"github.com/introlix/explorer/pkg/vector"
)

// Populates the configured vector store from a folder of text files, as if
// the files had been fetched from the web. Each file becomes a fake URL in
// the given workspace, so retrieval can be exercised without SearXNG.
//
// Usage:
//
//	go run scripts/populate-store-test.go config.yaml ./test-docs research
func main() {
	if len(os.Args) != 4 {
		fmt.Println("usage: populate-store-test <config.yaml> <folder> <workspace>")
		os.Exit(1)
	}
	cfgPath, folder, workspace := os.Args[1], os.Args[2], os.Args[3]

	ctx := context.Background()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	embed, err := embedder.New(cfg.Embedder)
	if err != nil {
		fmt.Printf("Failed to create embedder: %v\n", err)
		os.Exit(1)
	}
	defer embed.Close()

	provider, err := vector.NewProvider(cfg.VectorStore)
	if err != nil {
		fmt.Printf("Failed to create vector store: %v\n", err)
		os.Exit(1)
	}
	defer provider.Close()

	searchStore := store.New(cfg.VectorStore, provider, embed)
	if err := searchStore.EnsureIndex(ctx); err != nil {
		fmt.Printf("Failed to prepare collection: %v\n", err)
		os.Exit(1)
	}

	splitter, err := chunker.New(cfg.Chunker)
	if err != nil {
		fmt.Printf("Failed to create chunker: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Indexing %s into workspace %q...\n", folder, workspace)

	files, chunks := 0, 0
	err = filepath.Walk(folder, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("Warning: failed to read %s: %v\n", path, err)
			return nil
		}

		relPath, err := filepath.Rel(folder, path)
		if err != nil {
			relPath = filepath.Base(path)
		}

		pieces := splitter.Chunk(string(content))
		if len(pieces) == 0 {
			return nil
		}

		// A fake but stable URL keeps the store's content addressing intact.
		url := "file://" + filepath.ToSlash(relPath)
		title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		records := make([]store.ChunkRecord, 0, len(pieces))
		for _, piece := range pieces {
			records = append(records, store.ChunkRecord{
				WorkspaceID: workspace,
				URL:         url,
				Title:       title,
				Description: fmt.Sprintf("local file %s", relPath),
				ChunkID:     piece.ChunkID,
				ChunkText:   piece.Text,
			})
		}

		if err := searchStore.UpsertRecords(ctx, records); err != nil {
			return fmt.Errorf("failed to store %s: %w", relPath, err)
		}

		fmt.Printf("  indexed %s (%d chunks)\n", relPath, len(records))
		files++
		chunks += len(records)
		return nil
	})
	if err != nil {
		fmt.Printf("Indexing failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Done: %d files, %d chunks in workspace %q\n", files, chunks, workspace)
}
