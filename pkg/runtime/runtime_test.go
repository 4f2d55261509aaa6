package runtime

import (
	"context"
	"strings"
	"testing"

	"github.com/introlix/explorer/pkg/config"
)

func TestNewWithConfig_RequiresConfig(t *testing.T) {
	if _, err := NewWithConfig(context.Background(), nil); err == nil {
		t.Fatal("expected an error for nil config")
	}
}

func TestNewWithConfig_UnknownEmbedder(t *testing.T) {
	cfg := config.Default()
	cfg.Embedder.Type = "bogus"

	_, err := NewWithConfig(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected an error for unknown embedder type")
	}
	if !strings.Contains(err.Error(), "embedder") {
		t.Fatalf("error should name the failing component, got: %v", err)
	}
}

func TestNewWithConfig_UnknownVectorProvider(t *testing.T) {
	cfg := config.Default()
	cfg.VectorStore.Provider = "bogus"

	_, err := NewWithConfig(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected an error for unknown vector store provider")
	}
	if !strings.Contains(err.Error(), "vector store") {
		t.Fatalf("error should name the failing component, got: %v", err)
	}
}

func TestNewWithConfig_FilterNeedsValidLLM(t *testing.T) {
	cfg := config.Default()
	cfg.Search.FilterEnabled = true
	cfg.LLM.Type = "bogus"

	_, err := NewWithConfig(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected an error for unknown llm provider type")
	}
	if !strings.Contains(err.Error(), "filter llm") {
		t.Fatalf("error should name the failing component, got: %v", err)
	}
}
