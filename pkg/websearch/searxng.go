package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/introlix/explorer/pkg/config"
)

const searchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"

// Result is one search hit.
type Result struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Filterer narrows raw search results down to the ones worth crawling.
// Implementations must be total: on any internal failure they return a
// usable subset of the input, never an error.
type Filterer interface {
	Filter(ctx context.Context, query string, results []Result, maxResults int) []Result
}

// SearxNGClient queries a SearXNG instance's JSON API.
//
// All searches through one client are serialized and spaced at least
// minDelay apart. Public instances ban clients that hammer them.
type SearxNGClient struct {
	searchURL   string
	client      *http.Client
	minDelay    time.Duration
	maxRetries  int
	backoffBase time.Duration
	language    string
	categories  string
	filterer    Filterer

	mu          sync.Mutex
	lastRequest time.Time
}

// Option configures a SearxNGClient.
type Option func(*SearxNGClient)

// WithFilterer routes results through a relevance filter before they are
// returned.
func WithFilterer(f Filterer) Option {
	return func(c *SearxNGClient) { c.filterer = f }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *SearxNGClient) { c.client = client }
}

// NewSearxNG creates a search client for one SearXNG instance.
func NewSearxNG(cfg config.SearchConfig, opts ...Option) *SearxNGClient {
	host := strings.TrimRight(cfg.Host, "/")
	if !strings.HasSuffix(host, "/search") {
		host += "/search"
	}

	c := &SearxNGClient{
		searchURL:   host,
		client:      &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
		minDelay:    time.Duration(cfg.MinDelay) * time.Second,
		maxRetries:  cfg.MaxRetries,
		backoffBase: 5 * time.Second,
		language:    cfg.Language,
		categories:  cfg.Categories,
	}
	if c.maxRetries < 1 {
		c.maxRetries = 1
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search queries the instance and returns up to maxResults results. Search
// is total: after exhausting its retries it logs and returns an empty slice
// so one dead search backend cannot abort a whole exploration run.
func (c *SearxNGClient) Search(ctx context.Context, query string, maxResults int) []Result {
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.throttle(ctx); err != nil {
			return nil
		}

		results, err := c.doSearch(ctx, query)
		if err == nil {
			return c.finish(ctx, query, results, maxResults)
		}
		if ctx.Err() != nil {
			return nil
		}
		if attempt == c.maxRetries-1 {
			break
		}

		delay := c.backoffBase * time.Duration(1<<attempt)
		slog.Warn("Search failed, backing off",
			"query", query, "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}

	slog.Error("Search failed after retries", "query", query, "retries", c.maxRetries)
	return nil
}

// throttle serializes searches and enforces the minimum spacing between
// consecutive requests. The timestamp is taken after the wait, so queued
// callers fan out one per minDelay instead of firing together when the
// window opens.
func (c *SearxNGClient) throttle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wait := c.minDelay - time.Since(c.lastRequest); wait > 0 {
		slog.Debug("Throttling search request", "wait", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	c.lastRequest = time.Now()
	return nil
}

func (c *SearxNGClient) doSearch(ctx context.Context, query string) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("safesearch", "0")
	if c.language != "" {
		params.Set("language", c.language)
	}
	if c.categories != "" {
		params.Set("categories", c.categories)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, NewSearchError("searxng", "search", "failed to create request", query, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, NewSearchError("searxng", "search", "request failed", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewSearchError("searxng", "search", fmt.Sprintf("unexpected status %d", resp.StatusCode), query, nil)
	}

	var parsed searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, NewSearchError("searxng", "search", "failed to decode response", query, err)
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, Result{
			URL:         r.URL,
			Title:       r.Title,
			Description: r.Content,
		})
	}
	return results, nil
}

// finish applies the optional relevance filter, or plain truncation.
func (c *SearxNGClient) finish(ctx context.Context, query string, results []Result, maxResults int) []Result {
	if c.filterer != nil {
		return c.filterer.Filter(ctx, query, results, maxResults)
	}
	return truncateResults(results, maxResults)
}

type searxngResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"results"`
}
