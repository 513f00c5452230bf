// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

package markitdown

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nicholasgasior/markitdown-enrich/internal/pdftext"
)

const noPDFText = "[No readable text content found in PDF]"

// PdfConverter extracts the text layer of PDF files.
type PdfConverter struct{}

// NewPdfConverter creates a new PdfConverter.
func NewPdfConverter() *PdfConverter {
	return &PdfConverter{}
}

// Accepts PDFs unless enrichment was requested.
func (c *PdfConverter) Accepts(info StreamInfo, opts ConvertOptions) bool {
	return !opts.EnrichPDF && isPDF(info)
}

func (c *PdfConverter) Convert(ctx context.Context, reader io.ReadSeeker, _ StreamInfo, _ ConvertOptions) (*DocumentConverterResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read PDF: %w", err)
	}

	doc, err := pdftext.Open(data)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	defer doc.Close()

	var pages []string
	for i := 1; i <= doc.NumPages(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := doc.PageText(i)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return &DocumentConverterResult{Markdown: noPDFText}, nil
	}
	return &DocumentConverterResult{Markdown: strings.Join(pages, "\n\n")}, nil
}
