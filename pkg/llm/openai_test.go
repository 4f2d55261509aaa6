package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/introlix/explorer/pkg/config"
)

func openAIConfig(baseURL string) config.LLMConfig {
	cfg := config.LLMConfig{
		Type:    "openai",
		Model:   "gpt-4o-mini",
		APIKey:  "sk-test",
		BaseURL: baseURL,
		Timeout: 5,
	}
	return cfg
}

func TestNew_Factory(t *testing.T) {
	provider, err := New(openAIConfig("http://localhost:1"))
	if err != nil {
		t.Fatalf("New(openai) error = %v", err)
	}
	if _, ok := provider.(*OpenAI); !ok {
		t.Errorf("New(openai) type = %T, want *OpenAI", provider)
	}

	if _, err := New(config.LLMConfig{Type: "watson"}); err == nil {
		t.Error("New(watson) should fail")
	}

	provider, err = New(config.LLMConfig{Type: "", Model: "m", BaseURL: "http://localhost:1"})
	if err != nil {
		t.Fatalf("New(\"\") error = %v", err)
	}
	if _, ok := provider.(*OpenAI); !ok {
		t.Errorf("empty type should default to *OpenAI, got %T", provider)
	}
}

func TestNewGemini_RequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	if _, err := NewGemini(config.LLMConfig{Type: "gemini", Model: "gemini-2.0-flash"}); err == nil {
		t.Error("NewGemini without a key should fail")
	}
}

func TestOpenAI_Generate(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: "the answer"}}},
		})
	}))
	defer server.Close()

	provider, err := NewOpenAI(openAIConfig(server.URL))
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}

	out, err := provider.Generate(context.Background(), "be terse", "what is up")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "the answer" {
		t.Errorf("Generate() = %q, want %q", out, "the answer")
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q, want /chat/completions", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Role != "user" {
		t.Errorf("messages = %+v, want system then user", gotReq.Messages)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", gotReq.Model)
	}
}

func TestOpenAI_Generate_NoSystemPrompt(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Content: "ok"}}},
		})
	}))
	defer server.Close()

	provider, _ := NewOpenAI(openAIConfig(server.URL))
	if _, err := provider.Generate(context.Background(), "", "just the user"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Errorf("messages = %+v, want a single user message", gotReq.Messages)
	}
}

func TestOpenAI_Generate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"model does not exist","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	provider, _ := NewOpenAI(openAIConfig(server.URL))
	_, err := provider.Generate(context.Background(), "", "hello")
	if err == nil {
		t.Fatal("Generate() error = nil, want API error")
	}
	if !strings.Contains(err.Error(), "model does not exist") {
		t.Errorf("error = %v, want the API error message", err)
	}
}

func TestOpenAI_Generate_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{})
	}))
	defer server.Close()

	provider, _ := NewOpenAI(openAIConfig(server.URL))
	_, err := provider.Generate(context.Background(), "", "hello")
	if err == nil || !strings.Contains(err.Error(), "no response choices") {
		t.Errorf("error = %v, want no-choices error", err)
	}
}

func TestOpenAI_Model(t *testing.T) {
	provider, _ := NewOpenAI(openAIConfig("http://localhost:1"))
	if provider.Model() != "gpt-4o-mini" {
		t.Errorf("Model() = %q", provider.Model())
	}
	if err := provider.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
