package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	neturl "net/url"
	"path"
	"strings"
	"time"

	"github.com/introlix/explorer/pkg/config"
	"github.com/introlix/explorer/pkg/httpclient"
)

// ContentKind classifies a fetched body for the extraction stage.
type ContentKind string

const (
	KindHTML  ContentKind = "html"
	KindPDF   ContentKind = "pdf"
	KindDocx  ContentKind = "docx"
	KindXlsx  ContentKind = "xlsx"
	KindOther ContentKind = "other"
)

// defaultUserAgent matches a desktop Chrome profile. Enough sites serve
// bot-detection pages to anything less convincing.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Result is the outcome of a fetch. A failed fetch is still a Result: Body
// is empty, Kind is KindOther, and StatusCode carries the HTTP status when
// one was received (0 for transport errors).
type Result struct {
	URL        string
	Body       []byte
	Kind       ContentKind
	StatusCode int
}

// Renderer materializes pages that only exist after client-side scripts
// run, typically by driving a headless browser. Render reports the rendered
// body with the same classification a plain fetch would.
type Renderer interface {
	Render(ctx context.Context, url string) (body []byte, kind ContentKind, status int, err error)
}

// Fetcher downloads pages with a browser request profile.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	renderer    Renderer
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithRenderer installs a JS-capable renderer, used when the static HTML
// looks like an empty application shell.
func WithRenderer(r Renderer) Option {
	return func(f *Fetcher) { f.renderer = r }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// New creates a Fetcher from config.
func New(cfg config.FetcherConfig, opts ...Option) (*Fetcher, error) {
	client := &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}

	if cfg.InsecureTLS || cfg.CACertificate != "" {
		transport, err := httpclient.ConfigureTLS(&httpclient.TLSConfig{
			InsecureSkipVerify: cfg.InsecureTLS,
			CACertificate:      cfg.CACertificate,
		})
		if err != nil {
			return nil, err
		}
		client.Transport = transport
	}

	f := &Fetcher{
		client:      client,
		userAgent:   cfg.UserAgent,
		maxBodySize: cfg.MaxBodySize,
	}
	if f.userAgent == "" {
		f.userAgent = defaultUserAgent
	}
	if f.maxBodySize <= 0 {
		f.maxBodySize = 10 << 20
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// NormalizeURL prepends "http://" when the URL carries no scheme. Search
// engines occasionally emit bare hostnames.
func NormalizeURL(rawURL string) string {
	if rawURL == "" {
		return rawURL
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return "http://" + rawURL
	}
	return rawURL
}

// Fetch downloads a page. Fetch never fails: transport errors and non-2xx
// statuses produce a Result with an empty body and KindOther so the caller
// can log and move on to the next URL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) Result {
	url := NormalizeURL(rawURL)
	res := Result{URL: url, Kind: KindOther}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Debug("Skipping unparseable URL", "url", rawURL, "error", err)
		return res
	}
	f.setBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		slog.Debug("Fetch failed", "url", url, "error", err)
		return res
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Debug("Fetch returned non-success status", "url", url, "status", resp.StatusCode)
		return res
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		slog.Debug("Reading response body failed", "url", url, "error", err)
		return res
	}
	res.Body = body

	res.Kind = classify(resp.Header.Get("Content-Type"), url)

	if res.Kind == KindHTML && looksLikeAppShell(res.Body) {
		res = f.render(ctx, url, res)
	}
	return res
}

// classify maps a response to a content kind, trusting the Content-Type
// header first. File downloads are routinely served as octet-stream or with
// no type at all, so generic types fall back to the URL path's extension.
// Anything still unrecognized is treated as HTML and left for readability
// to accept or reject.
func classify(contentType, rawURL string) ContentKind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "application/pdf"):
		return KindPDF
	case strings.Contains(ct, "wordprocessingml.document"):
		return KindDocx
	case strings.Contains(ct, "spreadsheetml.sheet"):
		return KindXlsx
	case strings.Contains(ct, "text/html"), strings.Contains(ct, "application/xhtml"):
		return KindHTML
	}

	switch strings.ToLower(path.Ext(urlPath(rawURL))) {
	case ".pdf":
		return KindPDF
	case ".docx":
		return KindDocx
	case ".xlsx":
		return KindXlsx
	}
	return KindHTML
}

func urlPath(rawURL string) string {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Path
}

// setBrowserHeaders applies a desktop-browser request profile.
// Accept-Encoding is left unset so the transport negotiates gzip and
// decompresses transparently.
func (f *Fetcher) setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Cache-Control", "max-age=0")
}

// Fingerprints of client-side frameworks. Coarse on purpose: a false
// positive costs one renderer call, a false negative loses the page.
var appShellMarkers = []string{
	"__next_data__",
	"data-reactroot",
	"ng-app",
	"v-cloak",
	"react",
	"vue",
	"angular",
}

// looksLikeAppShell reports whether a static body is likely an empty
// client-side application shell rather than a server-rendered document.
func looksLikeAppShell(body []byte) bool {
	if len(body) == 0 {
		return true
	}
	lower := strings.ToLower(string(body))
	for _, marker := range appShellMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// render swaps the static result for a renderer-produced one. Without a
// configured renderer, or when rendering fails, the static result stands.
func (f *Fetcher) render(ctx context.Context, url string, static Result) Result {
	if f.renderer == nil {
		slog.Debug("Page looks script-rendered and no renderer is configured", "url", url)
		return static
	}
	body, kind, status, err := f.renderer.Render(ctx, url)
	if err != nil {
		slog.Warn("Renderer failed, keeping static body", "url", url, "error", err)
		return static
	}
	return Result{URL: url, Body: body, Kind: kind, StatusCode: status}
}
