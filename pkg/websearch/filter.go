package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/introlix/explorer/pkg/llm"
)

// filterContract is the response shape the filter model must produce.
type filterContract struct {
	ResultsList []Result `json:"results_list" jsonschema:"required,description=The selected search results ordered by relevance"`
}

const fallbackSchema = `{"results_list": [{"url": "", "title": "", "description": ""}]}`

// LLMFilter asks a language model to pick the search results most likely to
// answer the query. It never fails the search path: any model or parse
// problem falls back to plain truncation of the input.
type LLMFilter struct {
	provider llm.Provider
	schema   string
}

// NewLLMFilter creates a filter backed by the given provider.
func NewLLMFilter(provider llm.Provider) *LLMFilter {
	return &LLMFilter{
		provider: provider,
		schema:   contractSchema(),
	}
}

// Filter implements Filterer.
func (f *LLMFilter) Filter(ctx context.Context, query string, results []Result, maxResults int) []Result {
	if len(results) == 0 {
		return results
	}

	payload, err := json.Marshal(results)
	if err != nil {
		return truncateResults(results, maxResults)
	}

	user := fmt.Sprintf("Original search query: %s\n\nSearch results to analyze:\n%s\n\nReturn %d search results or less.",
		query, payload, maxResults)

	raw, err := f.provider.Generate(ctx, f.instruction(), user)
	if err != nil {
		slog.Warn("Result filtering failed, using unfiltered results", "query", query, "error", err)
		return truncateResults(results, maxResults)
	}

	contract, err := parseFilterResponse(raw)
	if err != nil {
		slog.Warn("Unparseable filter response, using unfiltered results", "query", query, "error", err)
		return truncateResults(results, maxResults)
	}

	// The model occasionally invents URLs. Only URLs present in the input
	// survive, carrying the engine's own title and description.
	known := make(map[string]Result, len(results))
	for _, r := range results {
		known[r.URL] = r
	}
	kept := make([]Result, 0, len(contract.ResultsList))
	seen := make(map[string]bool, len(contract.ResultsList))
	for _, r := range contract.ResultsList {
		orig, ok := known[r.URL]
		if !ok || seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		kept = append(kept, orig)
	}
	if len(kept) == 0 {
		return truncateResults(results, maxResults)
	}
	return truncateResults(kept, maxResults)
}

func (f *LLMFilter) instruction() string {
	return fmt.Sprintf(`You are a search result relevance filter. Given a search query and raw search engine results, select only the results whose pages are most likely to contain the answer. Drop duplicates, link farms, login walls and pages that merely mention the query terms.

Respond with ONLY a valid JSON object matching this schema. No markdown code blocks, no text before or after the JSON.

%s`, f.schema)
}

// contractSchema renders the response contract as an inlined JSON schema
// for embedding in the prompt.
func contractSchema() string {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(&filterContract{})

	data, err := json.Marshal(schema)
	if err != nil {
		return fallbackSchema
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fallbackSchema
	}
	delete(m, "$schema")
	delete(m, "$id")

	pretty, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fallbackSchema
	}
	return string(pretty)
}

// parseFilterResponse pulls the contract object out of a model response
// that may be wrapped in code fences, prose, or an envelope like
// {"type": "final", "answer": {...}}.
func parseFilterResponse(raw string) (*filterContract, error) {
	cleaned := stripCodeFences(raw)
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	cleaned = cleaned[start : end+1]

	var direct filterContract
	if err := json.Unmarshal([]byte(cleaned), &direct); err == nil && direct.ResultsList != nil {
		return &direct, nil
	}

	var envelope struct {
		Answer *filterContract `json:"answer"`
	}
	if err := json.Unmarshal([]byte(cleaned), &envelope); err == nil && envelope.Answer != nil && envelope.Answer.ResultsList != nil {
		return envelope.Answer, nil
	}

	return nil, fmt.Errorf("response does not match the filter contract")
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

func truncateResults(results []Result, maxResults int) []Result {
	if maxResults > 0 && len(results) > maxResults {
		return results[:maxResults]
	}
	return results
}
