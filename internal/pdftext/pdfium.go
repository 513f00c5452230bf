//go:build !nopdfium

package pdftext

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
)

// Backend names the text extraction engine compiled into the binary.
const Backend = "pdfium"

var (
	pool     pdfium.Pool
	poolOnce sync.Once
	poolErr  error
)

func initPool() {
	pool, poolErr = webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 4,
	})
}

type pdfiumDocument struct {
	instance pdfium.Pdfium
	doc      references.FPDF_DOCUMENT
	pages    int
	once     sync.Once
}

// Open loads a PDF into a pooled PDFium instance. The instance is held until
// Close is called.
func Open(data []byte) (Document, error) {
	poolOnce.Do(initPool)
	if poolErr != nil {
		return nil, fmt.Errorf("init pdfium: %w", poolErr)
	}

	instance, err := pool.GetInstance(30 * time.Second)
	if err != nil {
		return nil, fmt.Errorf("get pdfium instance: %w", err)
	}

	doc, err := instance.OpenDocument(&requests.OpenDocument{File: &data})
	if err != nil {
		instance.Close()
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	count, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{Document: doc.Document})
	if err != nil {
		_, _ = instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})
		instance.Close()
		return nil, fmt.Errorf("get page count: %w", err)
	}

	return &pdfiumDocument{instance: instance, doc: doc.Document, pages: count.PageCount}, nil
}

func (d *pdfiumDocument) NumPages() int { return d.pages }

func (d *pdfiumDocument) page(pageNr int) requests.Page {
	return requests.Page{ByIndex: &requests.PageByIndex{Document: d.doc, Index: pageNr - 1}}
}

func (d *pdfiumDocument) PageText(pageNr int) (string, error) {
	if err := checkPage(pageNr, d.pages); err != nil {
		return "", err
	}

	structured, err := d.instance.GetPageTextStructured(&requests.GetPageTextStructured{
		Page:                   d.page(pageNr),
		Mode:                   requests.GetPageTextStructuredModeRects,
		CollectFontInformation: true,
	})
	if err == nil && len(structured.Rects) > 0 {
		spans := make([]span, 0, len(structured.Rects))
		for _, r := range structured.Rects {
			if strings.TrimSpace(r.Text) == "" {
				continue
			}
			s := span{
				text:   r.Text,
				left:   r.PointPosition.Left,
				right:  r.PointPosition.Right,
				top:    r.PointPosition.Top,
				bottom: r.PointPosition.Bottom,
			}
			if r.FontInformation != nil {
				s.size = r.FontInformation.Size
				s.font = r.FontInformation.Name
			}
			spans = append(spans, s)
		}
		if text := render(groupLines(spans, 3)); text != "" {
			return text, nil
		}
	}

	plain, err := d.instance.GetPageText(&requests.GetPageText{Page: d.page(pageNr)})
	if err != nil {
		return "", fmt.Errorf("page %d text: %w", pageNr, err)
	}
	return strings.TrimSpace(plain.Text), nil
}

func (d *pdfiumDocument) Close() error {
	d.once.Do(func() {
		_, _ = d.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: d.doc})
		d.instance.Close()
	})
	return nil
}
