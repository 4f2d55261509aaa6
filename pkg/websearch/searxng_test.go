package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/introlix/explorer/pkg/config"
)

func searchConfig(host string) config.SearchConfig {
	return config.SearchConfig{
		Host:       host,
		MinDelay:   0,
		Timeout:    5,
		MaxRetries: 3,
	}
}

const sampleResponse = `{
	"results": [
		{"url": "https://a.example/one", "title": "One", "content": "first snippet"},
		{"url": "https://b.example/two", "title": "Two", "content": "second snippet"},
		{"url": "", "title": "No URL", "content": "dropped"},
		{"url": "https://c.example/three", "title": "Three", "content": "third snippet"}
	]
}`

func TestSearch_Success(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		if r.URL.Path != "/search" {
			t.Errorf("path = %q, want /search", r.URL.Path)
		}
		fmt.Fprint(w, sampleResponse)
	}))
	defer server.Close()

	client := NewSearxNG(searchConfig(server.URL))
	results := client.Search(context.Background(), "capital of france", 10)

	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3 (entry without URL dropped)", len(results))
	}
	if results[0].URL != "https://a.example/one" || results[0].Description != "first snippet" {
		t.Errorf("results[0] = %+v", results[0])
	}
	if gotQuery.Get("q") != "capital of france" {
		t.Errorf("q = %q", gotQuery.Get("q"))
	}
	if gotQuery.Get("format") != "json" {
		t.Errorf("format = %q, want json", gotQuery.Get("format"))
	}
	if gotQuery.Get("safesearch") != "0" {
		t.Errorf("safesearch = %q, want 0", gotQuery.Get("safesearch"))
	}
}

func TestSearch_LanguageAndCategories(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{"results": []}`)
	}))
	defer server.Close()

	cfg := searchConfig(server.URL)
	cfg.Language = "en-US"
	cfg.Categories = "science"
	NewSearxNG(cfg).Search(context.Background(), "q", 5)

	if gotQuery.Get("language") != "en-US" {
		t.Errorf("language = %q", gotQuery.Get("language"))
	}
	if gotQuery.Get("categories") != "science" {
		t.Errorf("categories = %q", gotQuery.Get("categories"))
	}
}

func TestSearch_TruncatesToMaxResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleResponse)
	}))
	defer server.Close()

	client := NewSearxNG(searchConfig(server.URL))
	results := client.Search(context.Background(), "q", 2)

	if len(results) != 2 {
		t.Errorf("len(results) = %d, want 2", len(results))
	}
}

func TestSearch_HostAlreadyHasSearchPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q, want /search", r.URL.Path)
		}
		fmt.Fprint(w, `{"results": []}`)
	}))
	defer server.Close()

	client := NewSearxNG(searchConfig(server.URL + "/search"))
	client.Search(context.Background(), "q", 5)
}

func TestSearch_EmptyAfterExhaustion(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "overloaded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewSearxNG(searchConfig(server.URL))
	client.backoffBase = time.Millisecond

	results := client.Search(context.Background(), "doomed query", 5)
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server hits = %d, want 3 attempts", got)
	}
}

func TestSearch_RetriesThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, sampleResponse)
	}))
	defer server.Close()

	client := NewSearxNG(searchConfig(server.URL))
	client.backoffBase = time.Millisecond

	results := client.Search(context.Background(), "flaky", 5)
	if len(results) != 3 {
		t.Errorf("len(results) = %d, want 3 after one retry", len(results))
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hits = %d, want 2", got)
	}
}

func TestSearch_MalformedJSONRetries(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "<html>not json</html>")
	}))
	defer server.Close()

	client := NewSearxNG(searchConfig(server.URL))
	client.backoffBase = time.Millisecond

	if results := client.Search(context.Background(), "q", 5); len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server hits = %d, want 3", got)
	}
}

func TestSearch_ThrottleSpacesRequests(t *testing.T) {
	var stamps []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stamps = append(stamps, time.Now())
		fmt.Fprint(w, `{"results": []}`)
	}))
	defer server.Close()

	cfg := searchConfig(server.URL)
	cfg.MinDelay = 1
	client := NewSearxNG(cfg)

	client.Search(context.Background(), "first", 5)
	client.Search(context.Background(), "second", 5)

	if len(stamps) != 2 {
		t.Fatalf("server hits = %d, want 2", len(stamps))
	}
	if gap := stamps[1].Sub(stamps[0]); gap < 900*time.Millisecond {
		t.Errorf("gap between requests = %v, want at least ~1s", gap)
	}
}

func TestSearch_ContextCanceledDuringThrottle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": []}`)
	}))
	defer server.Close()

	cfg := searchConfig(server.URL)
	cfg.MinDelay = 30
	client := NewSearxNG(cfg)

	// First search stamps lastRequest; the second would wait 30s.
	client.Search(context.Background(), "first", 5)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	results := client.Search(ctx, "second", 5)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancelled search took %v, should abort the throttle wait", elapsed)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0 on cancellation", len(results))
	}
}

func TestSearchError_Format(t *testing.T) {
	err := NewSearchError("searxng", "search", "unexpected status 500",
		"a very long query that goes on and on and on and certainly exceeds fifty characters", nil)
	msg := err.Error()
	if !strings.Contains(msg, "[searxng] search: unexpected status 500") {
		t.Errorf("Error() = %q", msg)
	}
	if !strings.Contains(msg, "...") {
		t.Errorf("long query should be truncated: %q", msg)
	}
}
