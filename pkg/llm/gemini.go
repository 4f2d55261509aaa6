package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/introlix/explorer/pkg/config"
)

// Gemini generates text through the official google.golang.org/genai SDK.
type Gemini struct {
	client *genai.Client
	cfg    config.LLMConfig
}

// NewGemini creates a Gemini provider.
func NewGemini(cfg config.LLMConfig) (*Gemini, error) {
	apiKey := resolveAPIKey(cfg)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required (set GEMINI_API_KEY)")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{client: client, cfg: cfg}, nil
}

// Generate sends one generation request and returns the concatenated text
// parts of the first candidate.
func (p *Gemini) Generate(ctx context.Context, system, user string) (string, error) {
	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: user}}},
	}

	genCfg := &genai.GenerateContentConfig{}
	if system != "" {
		genCfg.SystemInstruction = &genai.Content{
			Role:  "user",
			Parts: []*genai.Part{{Text: system}},
		}
	}
	if p.cfg.Temperature > 0 {
		genCfg.Temperature = genai.Ptr(float32(p.cfg.Temperature))
	}
	if p.cfg.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(p.cfg.MaxTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.Model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("Gemini generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from Gemini")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			out.WriteString(part.Text)
		}
	}
	return out.String(), nil
}

// Model returns the configured model name.
func (p *Gemini) Model() string {
	return p.cfg.Model
}

// Close releases resources.
func (p *Gemini) Close() error {
	return nil
}
