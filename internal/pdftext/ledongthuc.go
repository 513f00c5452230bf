//go:build nopdfium

package pdftext

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Backend names the text extraction engine compiled into the binary.
const Backend = "ledongthuc"

type goDocument struct {
	reader *pdf.Reader
}

// Open parses a PDF with the pure-Go reader.
func Open(data []byte) (doc Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("open PDF: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	return &goDocument{reader: reader}, nil
}

func (d *goDocument) NumPages() int { return d.reader.NumPage() }

// PageText reads rows first and falls back to glyph positions. The reader
// panics on some malformed content streams; that is returned as an error.
func (d *goDocument) PageText(pageNr int) (text string, err error) {
	if err := checkPage(pageNr, d.NumPages()); err != nil {
		return "", err
	}
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("page %d text: %v", pageNr, r)
		}
	}()

	page := d.reader.Page(pageNr)
	if page.V.IsNull() {
		return "", nil
	}

	if rows, err := page.GetTextByRow(); err == nil {
		var b strings.Builder
		for _, row := range rows {
			if line := joinWords(row.Content); line != "" {
				b.WriteString(line + "\n")
			}
		}
		if out := strings.TrimSpace(b.String()); out != "" {
			return out, nil
		}
	}

	content := page.Content()
	spans := make([]span, 0, len(content.Text))
	for _, t := range content.Text {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		spans = append(spans, span{
			text:   t.S,
			left:   t.X,
			right:  t.X + t.W,
			top:    t.Y + t.FontSize,
			bottom: t.Y,
			size:   t.FontSize,
			font:   t.Font,
		})
	}
	tolerance := 3.0
	if len(spans) > 0 && spans[0].size > 0 {
		tolerance = spans[0].size * 0.3
	}
	return render(groupLines(spans, tolerance)), nil
}

// joinWords concatenates a row's fragments. An empty fragment between two
// non-empty ones marks a word boundary.
func joinWords(words pdf.TextHorizontal) string {
	var b strings.Builder
	gap := false
	for _, w := range words {
		if w.S == "" {
			gap = true
			continue
		}
		if gap && b.Len() > 0 && !strings.HasSuffix(b.String(), " ") {
			b.WriteByte(' ')
		}
		b.WriteString(w.S)
		gap = false
	}
	return strings.TrimSpace(b.String())
}

func (d *goDocument) Close() error { return nil }
