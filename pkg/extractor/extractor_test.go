package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/introlix/explorer/pkg/fetcher"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head>
<title>Gravitational Waves Explained</title>
<meta name="description" content="A concise summary of gravitational wave detection.">
</head>
<body>
<article>
<h1>Gravitational Waves Explained</h1>
<p>Gravitational waves are ripples in spacetime produced by accelerating
masses, most dramatically by the mergers of black holes and neutron stars.
Their existence follows directly from the field equations, and for a full
century they remained a prediction without a direct measurement to back it
up, resisting every instrument that was pointed at the sky.</p>
<p>The first direct detection came from a pair of interferometers whose arms
stretch four kilometers in perpendicular directions. A passing wave changes
the relative arm lengths by less than a thousandth of the width of a proton,
and the instruments read that difference out of the interference pattern of
laser light that has bounced between mirrors hundreds of times.</p>
<p>Since that first event the catalog has grown into the hundreds, turning a
physics milestone into a routine observational channel. Each merger carries
information about the masses and spins of the objects involved, and the
population as a whole constrains how such binaries form and how often they
collide within a given volume of the universe.</p>
</article>
</body>
</html>`

func TestExtract_HTML(t *testing.T) {
	res, err := Extract(context.Background(), []byte(articleHTML), fetcher.KindHTML, "https://example.com/waves")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.URL != "https://example.com/waves" {
		t.Errorf("URL = %q", res.URL)
	}
	if !strings.Contains(res.Title, "Gravitational Waves") {
		t.Errorf("Title = %q, want the page title", res.Title)
	}
	if !strings.Contains(res.Text, "ripples in spacetime") {
		t.Errorf("Text missing article content: %q", res.Text)
	}
	if !strings.Contains(res.Description, "concise summary") {
		t.Errorf("Description = %q, want the meta description", res.Description)
	}
}

func TestExtract_HTML_UnusablePage(t *testing.T) {
	res, err := Extract(context.Background(), []byte("<html><body></body></html>"), fetcher.KindHTML, "https://example.com/empty")
	if err != nil {
		t.Fatalf("Extract() error = %v, want nil for unusable HTML", err)
	}
	if strings.TrimSpace(res.Text) != "" {
		t.Errorf("Text = %q, want empty", res.Text)
	}
}

func TestExtract_HTML_UnparseableURL(t *testing.T) {
	res, err := Extract(context.Background(), []byte(articleHTML), fetcher.KindHTML, "::::")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(res.Text, "ripples in spacetime") {
		t.Error("extraction should survive a URL that does not parse")
	}
}

func TestExtract_UnsupportedKind(t *testing.T) {
	_, err := Extract(context.Background(), []byte("binary junk"), fetcher.KindOther, "https://example.com/blob")
	if err == nil {
		t.Fatal("Extract() error = nil, want ExtractionError")
	}
	var extErr *ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("error type = %T, want *ExtractionError", err)
	}
	if extErr.Kind != "other" {
		t.Errorf("Kind = %q, want %q", extErr.Kind, "other")
	}
}

func TestExtract_PDF_InvalidBody(t *testing.T) {
	res, err := Extract(context.Background(), []byte("definitely not a PDF"), fetcher.KindPDF, "https://example.com/paper.pdf")
	if err != nil {
		t.Fatalf("Extract() error = %v, want nil for a broken PDF", err)
	}
	if res.Text != "" || res.Title != "" || res.Description != "" {
		t.Errorf("result = %+v, want empty fields", res)
	}
}

const wordDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Grid Storage Field Report</w:t></w:r></w:p>
<w:p><w:r><w:t>Flow batteries held rated output for ten hours in the trial.</w:t></w:r></w:p>
</w:body>
</w:document>`

// wordFixture zips up the parts of a bare-bones .docx file.
func wordFixture(t *testing.T) []byte {
	t.Helper()

	entries := []struct{ name, content string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`},
		{"_rels/.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`},
		{"word/document.xml", wordDocumentXML},
		{"word/_rels/document.xml.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`},
		{"word/header1.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:hdr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"></w:hdr>`},
		{"word/footer1.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:ftr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"></w:ftr>`},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("zip.Create(%s): %v", e.name, err)
		}
		if _, err := w.Write([]byte(e.content)); err != nil {
			t.Fatalf("writing %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtract_Docx(t *testing.T) {
	res, err := Extract(context.Background(), wordFixture(t), fetcher.KindDocx, "https://example.com/report.docx")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Title != "Grid Storage Field Report" {
		t.Errorf("Title = %q, want the first paragraph", res.Title)
	}
	if !strings.Contains(res.Text, "Flow batteries held rated output") {
		t.Errorf("Text missing document content: %q", res.Text)
	}
	if strings.Contains(res.Text, "<w:") {
		t.Errorf("Text still contains markup: %q", res.Text)
	}
	if res.Description == "" {
		t.Error("Description should be derived from the opening lines")
	}
}

func TestExtract_Docx_InvalidBody(t *testing.T) {
	res, err := Extract(context.Background(), []byte("not a zip archive"), fetcher.KindDocx, "https://example.com/broken.docx")
	if err != nil {
		t.Fatalf("Extract() error = %v, want nil for a broken docx", err)
	}
	if res.Text != "" || res.Title != "" {
		t.Errorf("result = %+v, want empty fields", res)
	}
}

func TestFlattenWordXML(t *testing.T) {
	in := `<w:document xmlns:w="ns"><w:body>` +
		`<w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Second</w:t></w:r><w:r><w:t> paragraph.</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	got := flattenWordXML(in)
	want := "First paragraph.\nSecond paragraph."
	if got != want {
		t.Errorf("flattenWordXML() = %q, want %q", got, want)
	}
}

func TestExtract_Xlsx(t *testing.T) {
	f := excelize.NewFile()
	cells := []struct {
		ref   string
		value interface{}
	}{
		{"A1", "Region"}, {"B1", "Capacity MW"},
		{"A2", "North"}, {"B2", 412},
		{"A3", "South"}, {"B3", 377},
	}
	for _, c := range cells {
		if err := f.SetCellValue("Sheet1", c.ref, c.value); err != nil {
			t.Fatalf("SetCellValue(%s): %v", c.ref, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}

	res, err := Extract(context.Background(), buf.Bytes(), fetcher.KindXlsx, "https://example.com/capacity.xlsx")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(res.Text, "Region Capacity MW") {
		t.Errorf("Text missing header row: %q", res.Text)
	}
	if !strings.Contains(res.Text, "North 412") {
		t.Errorf("Text missing data row: %q", res.Text)
	}
	if !strings.Contains(res.Text, "Sheet Sheet1") {
		t.Errorf("Text missing sheet marker: %q", res.Text)
	}
	if res.Title == "" {
		t.Error("Title should fall back to the first line")
	}
}

func TestExtract_Xlsx_InvalidBody(t *testing.T) {
	res, err := Extract(context.Background(), []byte("not a workbook"), fetcher.KindXlsx, "https://example.com/broken.xlsx")
	if err != nil {
		t.Fatalf("Extract() error = %v, want nil for a broken xlsx", err)
	}
	if res.Text != "" || res.Title != "" {
		t.Errorf("result = %+v, want empty fields", res)
	}
}

func TestFirstNonEmptyLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"\n\n  \nAttention Is All You Need\nAuthors", "Attention Is All You Need"},
		{"first\nsecond", "first"},
		{"   \n\t\n", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := firstNonEmptyLine(tt.in); got != tt.want {
			t.Errorf("firstNonEmptyLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	t.Run("first three non-empty of first five lines", func(t *testing.T) {
		text := "Title Line\n\nSecond Line\nThird Line\nFourth Line\nSixth line is out of range"
		got := describe(text)
		want := "Title Line Second Line Third Line"
		if got != want {
			t.Errorf("describe() = %q, want %q", got, want)
		}
	})

	t.Run("blank lines inside the window reduce the pool", func(t *testing.T) {
		text := "\n\nOnly Line In Window\n\n\nLater content"
		if got := describe(text); got != "Only Line In Window" {
			t.Errorf("describe() = %q", got)
		}
	})

	t.Run("caps at 200 characters", func(t *testing.T) {
		long := strings.Repeat("Z", 300)
		if got := describe(long); len([]rune(got)) != 200 {
			t.Errorf("len(describe()) = %d, want 200", len([]rune(got)))
		}
	})

	t.Run("empty text", func(t *testing.T) {
		if got := describe(""); got != "" {
			t.Errorf("describe(\"\") = %q", got)
		}
	})
}

func TestExtractionError_Format(t *testing.T) {
	underlying := errors.New("boom")
	err := NewExtractionError("pdf", "https://example.com/x.pdf", "parse failed", underlying)

	msg := err.Error()
	if !strings.Contains(msg, "[pdf]") || !strings.Contains(msg, "https://example.com/x.pdf") {
		t.Errorf("Error() = %q", msg)
	}
	if !errors.Is(err, underlying) {
		t.Error("Unwrap should expose the underlying error")
	}
}
