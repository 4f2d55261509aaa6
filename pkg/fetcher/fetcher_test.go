package fetcher

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/introlix/explorer/pkg/config"
)

func newTestFetcher(t *testing.T, cfg config.FetcherConfig, opts ...Option) *Fetcher {
	t.Helper()
	cfg.SetDefaults()
	f, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

func TestFetch_HTML(t *testing.T) {
	page := []byte("<html><head><title>Hello</title></head><body><p>Plain article text.</p></body></html>")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	}))
	defer server.Close()

	f := newTestFetcher(t, config.FetcherConfig{})
	res := f.Fetch(context.Background(), server.URL)

	if res.Kind != KindHTML {
		t.Errorf("Kind = %q, want %q", res.Kind, KindHTML)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if !bytes.Equal(res.Body, page) {
		t.Errorf("Body = %q, want %q", res.Body, page)
	}
	if res.URL != server.URL {
		t.Errorf("URL = %q, want %q", res.URL, server.URL)
	}
}

func TestFetch_PDFContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer server.Close()

	f := newTestFetcher(t, config.FetcherConfig{})
	res := f.Fetch(context.Background(), server.URL)

	if res.Kind != KindPDF {
		t.Errorf("Kind = %q, want %q", res.Kind, KindPDF)
	}
	if len(res.Body) == 0 {
		t.Error("expected PDF body to be kept")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		url         string
		want        ContentKind
	}{
		{"pdf content type", "application/pdf", "https://example.com/paper", KindPDF},
		{"docx content type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "https://example.com/report", KindDocx},
		{"xlsx content type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "https://example.com/sheet", KindXlsx},
		{"html content type wins over extension", "text/html; charset=utf-8", "https://example.com/download.pdf", KindHTML},
		{"octet-stream with pdf extension", "application/octet-stream", "https://example.com/files/paper.pdf", KindPDF},
		{"octet-stream with docx extension", "application/octet-stream", "https://example.com/files/Report.DOCX", KindDocx},
		{"missing type with xlsx extension", "", "https://example.com/data.xlsx?dl=1", KindXlsx},
		{"no signal defaults to html", "text/plain", "https://example.com/about", KindHTML},
		{"unparseable url defaults to html", "application/octet-stream", "::::", KindHTML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.contentType, tt.url); got != tt.want {
				t.Errorf("classify(%q, %q) = %q, want %q", tt.contentType, tt.url, got, tt.want)
			}
		})
	}
}

func TestFetch_ExtensionFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("PK fake zip payload"))
	}))
	defer server.Close()

	renderer := &stubRenderer{body: []byte("should not be used")}
	f := newTestFetcher(t, config.FetcherConfig{}, WithRenderer(renderer))
	res := f.Fetch(context.Background(), server.URL+"/files/report.docx")

	if res.Kind != KindDocx {
		t.Errorf("Kind = %q, want %q", res.Kind, KindDocx)
	}
	if renderer.called != 0 {
		t.Errorf("renderer called %d times for a non-HTML body, want 0", renderer.called)
	}
	if len(res.Body) == 0 {
		t.Error("expected document body to be kept")
	}
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer server.Close()

	f := newTestFetcher(t, config.FetcherConfig{})
	res := f.Fetch(context.Background(), server.URL)

	if res.Kind != KindOther {
		t.Errorf("Kind = %q, want %q", res.Kind, KindOther)
	}
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
	if len(res.Body) != 0 {
		t.Errorf("Body = %q, want empty", res.Body)
	}
}

func TestFetch_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	f := newTestFetcher(t, config.FetcherConfig{})
	res := f.Fetch(context.Background(), server.URL)

	if res.Kind != KindOther {
		t.Errorf("Kind = %q, want %q", res.Kind, KindOther)
	}
	if res.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", res.StatusCode)
	}
	if len(res.Body) != 0 {
		t.Errorf("Body = %q, want empty", res.Body)
	}
}

func TestFetch_SchemeNormalization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<p>found it</p>"))
	}))
	defer server.Close()

	bare := strings.TrimPrefix(server.URL, "http://")
	f := newTestFetcher(t, config.FetcherConfig{})
	res := f.Fetch(context.Background(), bare)

	if res.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if res.URL != server.URL {
		t.Errorf("URL = %q, want %q", res.URL, server.URL)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com/page", "http://example.com/page"},
		{"http://example.com", "http://example.com"},
		{"https://example.com", "https://example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFetch_BrowserHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := newTestFetcher(t, config.FetcherConfig{})
	f.Fetch(context.Background(), server.URL)

	if ua := got.Get("User-Agent"); !strings.Contains(ua, "Mozilla/5.0") {
		t.Errorf("User-Agent = %q, want a browser profile", ua)
	}
	if v := got.Get("Upgrade-Insecure-Requests"); v != "1" {
		t.Errorf("Upgrade-Insecure-Requests = %q, want \"1\"", v)
	}
	if v := got.Get("Sec-Fetch-Mode"); v != "navigate" {
		t.Errorf("Sec-Fetch-Mode = %q, want \"navigate\"", v)
	}
	if !strings.Contains(got.Get("Accept"), "text/html") {
		t.Errorf("Accept = %q, want text/html preference", got.Get("Accept"))
	}
}

func TestFetch_CustomUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := newTestFetcher(t, config.FetcherConfig{UserAgent: "explorer-test/1.0"})
	f.Fetch(context.Background(), server.URL)

	if got != "explorer-test/1.0" {
		t.Errorf("User-Agent = %q, want %q", got, "explorer-test/1.0")
	}
}

func TestFetch_MaxBodySize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write(bytes.Repeat([]byte("x"), 1000))
	}))
	defer server.Close()

	f := newTestFetcher(t, config.FetcherConfig{MaxBodySize: 100})
	res := f.Fetch(context.Background(), server.URL)

	if len(res.Body) != 100 {
		t.Errorf("len(Body) = %d, want 100", len(res.Body))
	}
}

func TestFetch_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("too late"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newTestFetcher(t, config.FetcherConfig{})
	res := f.Fetch(ctx, server.URL)

	if res.Kind != KindOther || res.StatusCode != 0 || len(res.Body) != 0 {
		t.Errorf("canceled fetch = %+v, want empty KindOther result", res)
	}
}

func TestLooksLikeAppShell(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"empty body", "", true},
		{"next.js shell", `<script id="__NEXT_DATA__" type="application/json">{}</script>`, true},
		{"react root", `<div id="root" data-reactroot></div>`, true},
		{"angular shell", `<html ng-app="demo"><body></body></html>`, true},
		{"vue cloak", `<div v-cloak>{{ message }}</div>`, true},
		{"plain article", `<html><body><p>Nothing dynamic here.</p></body></html>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := looksLikeAppShell([]byte(tt.body)); got != tt.want {
				t.Errorf("looksLikeAppShell(%q) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}

type stubRenderer struct {
	body   []byte
	err    error
	called int
}

func (s *stubRenderer) Render(ctx context.Context, url string) ([]byte, ContentKind, int, error) {
	s.called++
	if s.err != nil {
		return nil, KindOther, 0, s.err
	}
	return s.body, KindHTML, http.StatusOK, nil
}

func TestFetch_RendererReplacesAppShell(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<div id="app" v-cloak></div>`))
	}))
	defer server.Close()

	renderer := &stubRenderer{body: []byte("<p>hydrated content</p>")}
	f := newTestFetcher(t, config.FetcherConfig{}, WithRenderer(renderer))
	res := f.Fetch(context.Background(), server.URL)

	if renderer.called != 1 {
		t.Fatalf("renderer called %d times, want 1", renderer.called)
	}
	if string(res.Body) != "<p>hydrated content</p>" {
		t.Errorf("Body = %q, want rendered content", res.Body)
	}
	if res.Kind != KindHTML {
		t.Errorf("Kind = %q, want %q", res.Kind, KindHTML)
	}
}

func TestFetch_RendererSkippedForStaticPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<p>server rendered prose</p>"))
	}))
	defer server.Close()

	renderer := &stubRenderer{body: []byte("should not be used")}
	f := newTestFetcher(t, config.FetcherConfig{}, WithRenderer(renderer))
	res := f.Fetch(context.Background(), server.URL)

	if renderer.called != 0 {
		t.Errorf("renderer called %d times, want 0", renderer.called)
	}
	if string(res.Body) != "<p>server rendered prose</p>" {
		t.Errorf("Body = %q, want static content", res.Body)
	}
}

func TestFetch_RendererFailureKeepsStaticBody(t *testing.T) {
	static := `<div data-reactroot>partial</div>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(static))
	}))
	defer server.Close()

	renderer := &stubRenderer{err: errors.New("browser crashed")}
	f := newTestFetcher(t, config.FetcherConfig{}, WithRenderer(renderer))
	res := f.Fetch(context.Background(), server.URL)

	if string(res.Body) != static {
		t.Errorf("Body = %q, want static fallback %q", res.Body, static)
	}
	if res.Kind != KindHTML {
		t.Errorf("Kind = %q, want %q", res.Kind, KindHTML)
	}
}
