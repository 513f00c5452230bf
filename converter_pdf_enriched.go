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
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/nicholasgasior/markitdown-enrich/internal/enrich"
)

// ErrNoProvider is returned when enrichment is requested without a provider.
var ErrNoProvider = errors.New("pdf enrichment requires an image description provider")

// EnrichedPdfConverter interleaves page text with model descriptions of the
// images embedded on each page.
type EnrichedPdfConverter struct {
	log *zap.Logger
}

// NewEnrichedPdfConverter creates a new EnrichedPdfConverter.
func NewEnrichedPdfConverter(log *zap.Logger) *EnrichedPdfConverter {
	if log == nil {
		log = zap.NewNop()
	}
	return &EnrichedPdfConverter{log: log}
}

// Accepts PDFs only when enrichment was requested.
func (c *EnrichedPdfConverter) Accepts(info StreamInfo, opts ConvertOptions) bool {
	return opts.EnrichPDF && isPDF(info)
}

func (c *EnrichedPdfConverter) Convert(ctx context.Context, reader io.ReadSeeker, _ StreamInfo, opts ConvertOptions) (*DocumentConverterResult, error) {
	if opts.Provider == nil {
		return nil, ErrNoProvider
	}
	md, err := enrich.New(opts.Provider, c.log).Convert(ctx, reader, enrich.Options{
		RequestID:     opts.RequestID,
		IncludeImages: opts.IncludeImages,
	})
	if err != nil {
		return nil, err
	}
	return &DocumentConverterResult{Markdown: md}, nil
}
