package extractor

import (
	"bytes"
	"context"
	"encoding/xml"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"

	"github.com/introlix/explorer/pkg/fetcher"
)

// ScrapeResult is the extracted content of one page.
type ScrapeResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Text        string `json:"text"`
}

// descriptionLimit caps a generated PDF description, in characters.
const descriptionLimit = 200

// Extract pulls title, description and main text out of a fetched body.
// Bodies that cannot be usefully parsed produce a result with empty fields
// rather than an error; only an unextractable kind fails.
func Extract(ctx context.Context, body []byte, kind fetcher.ContentKind, pageURL string) (*ScrapeResult, error) {
	switch kind {
	case fetcher.KindHTML:
		return extractHTML(body, pageURL), nil
	case fetcher.KindPDF:
		return extractPDF(ctx, body, pageURL)
	case fetcher.KindDocx:
		return extractDocx(body, pageURL), nil
	case fetcher.KindXlsx:
		return extractXlsx(body, pageURL), nil
	default:
		return nil, NewExtractionError(string(kind), pageURL, "no extractor for content kind", nil)
	}
}

func extractHTML(body []byte, pageURL string) *ScrapeResult {
	res := &ScrapeResult{URL: pageURL}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		// Readability only needs the URL to absolutize links.
		parsed = &url.URL{}
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		slog.Debug("Readability gave up on page", "url", pageURL, "error", err)
		return res
	}

	res.Title = article.Title
	res.Description = article.Excerpt
	res.Text = article.TextContent
	return res
}

// extractPDF joins the plain text of every page with a newline, takes the
// title from the document info dictionary falling back to the first
// non-empty line, and derives a short description from the opening lines.
// The underlying parser panics on some malformed files, so the whole pass
// is fenced with a recover.
func extractPDF(ctx context.Context, body []byte, pageURL string) (res *ScrapeResult, err error) {
	res = &ScrapeResult{URL: pageURL}

	defer func() {
		if r := recover(); r != nil {
			slog.Debug("PDF parser panicked", "url", pageURL, "panic", r)
			res = &ScrapeResult{URL: pageURL}
			err = nil
		}
	}()

	reader, openErr := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if openErr != nil {
		slog.Debug("Failed to open PDF", "url", pageURL, "error", openErr)
		return res, nil
	}

	totalPages := reader.NumPage()
	pages := make([]string, 0, totalPages)
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}

		text, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			slog.Debug("Skipping unreadable PDF page", "url", pageURL, "page", pageNum, "error", pageErr)
			text = ""
		}
		pages = append(pages, text)
	}

	res.Text = strings.Join(pages, "\n")
	res.Title = infoTitle(reader)
	if res.Title == "" && len(pages) > 0 {
		res.Title = firstNonEmptyLine(pages[0])
	}
	res.Description = describe(res.Text)
	return res, nil
}

// extractDocx flattens the document part of a Word file to plain text, one
// line per paragraph. The format carries no reliable title, so the first
// non-empty line stands in.
func extractDocx(body []byte, pageURL string) *ScrapeResult {
	res := &ScrapeResult{URL: pageURL}

	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		slog.Debug("Failed to open docx", "url", pageURL, "error", err)
		return res
	}
	defer doc.Close()

	res.Text = flattenWordXML(doc.Editable().GetContent())
	res.Title = firstNonEmptyLine(res.Text)
	res.Description = describe(res.Text)
	return res
}

// flattenWordXML walks raw document XML keeping only character data and
// closing each paragraph with a newline.
func flattenWordXML(content string) string {
	dec := xml.NewDecoder(strings.NewReader(content))
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.EndElement:
			if t.Name.Local == "p" {
				b.WriteByte('\n')
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// sheetCellLimit caps how many cells of one sheet make it into the text.
// Spreadsheets found on the web can be enormous and the tail rarely carries
// retrieval value.
const sheetCellLimit = 1000

// extractXlsx renders each sheet as one line per row, non-empty cells
// separated by single spaces.
func extractXlsx(body []byte, pageURL string) *ScrapeResult {
	res := &ScrapeResult{URL: pageURL}

	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		slog.Debug("Failed to open xlsx", "url", pageURL, "error", err)
		return res
	}
	defer f.Close()

	var parts []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			slog.Debug("Skipping unreadable sheet", "url", pageURL, "sheet", sheet, "error", err)
			continue
		}

		var b strings.Builder
		b.WriteString("Sheet " + sheet + "\n")
		cells := 0
		for _, row := range rows {
			if cells >= sheetCellLimit {
				break
			}
			var kept []string
			for _, cell := range row {
				if cells >= sheetCellLimit {
					break
				}
				if cell = strings.TrimSpace(cell); cell != "" {
					kept = append(kept, cell)
					cells++
				}
			}
			if len(kept) > 0 {
				b.WriteString(strings.Join(kept, " "))
				b.WriteByte('\n')
			}
		}
		if part := strings.TrimSpace(b.String()); part != "" {
			parts = append(parts, part)
		}
	}

	res.Text = strings.Join(parts, "\n\n")
	res.Title = workbookTitle(f)
	if res.Title == "" {
		res.Title = firstNonEmptyLine(res.Text)
	}
	res.Description = describe(res.Text)
	return res
}

func workbookTitle(f *excelize.File) string {
	props, err := f.GetDocProps()
	if err != nil || props == nil {
		return ""
	}
	return strings.TrimSpace(props.Title)
}

func infoTitle(reader *pdf.Reader) string {
	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return ""
	}
	return strings.TrimSpace(info.Key("Title").Text())
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// describe builds a description from the opening lines of the text: the
// first three non-empty of the first five, joined with spaces and capped at
// descriptionLimit characters.
func describe(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > 5 {
		lines = lines[:5]
	}

	var kept []string
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	if len(kept) > 3 {
		kept = kept[:3]
	}

	desc := strings.Join(kept, " ")
	if utf8.RuneCountInString(desc) > descriptionLimit {
		desc = string([]rune(desc)[:descriptionLimit])
	}
	return desc
}
