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
	"io"

	"github.com/nicholasgasior/markitdown-enrich/internal/describe"
)

// StreamInfo holds metadata about the input being converted.
type StreamInfo struct {
	MIMEType  string
	Extension string
	Charset   string
	Filename  string
	LocalPath string
	URL       string
}

// ConvertOptions carries per-request settings through the converters.
type ConvertOptions struct {
	// RequestID correlates the log lines of one conversion.
	RequestID string
	// EnrichPDF routes PDFs through image description. Provider must be set.
	EnrichPDF bool
	// IncludeImages embeds described images as data URIs.
	IncludeImages bool
	// Provider describes images when EnrichPDF is set.
	Provider describe.Provider
}

// DocumentConverterResult holds the output of a conversion.
type DocumentConverterResult struct {
	Markdown string
	Title    string
}

// DocumentConverter is the interface all format converters implement.
type DocumentConverter interface {
	// Accepts reports whether this converter handles the input under opts.
	Accepts(info StreamInfo, opts ConvertOptions) bool

	// Convert performs the document-to-markdown conversion.
	Convert(ctx context.Context, reader io.ReadSeeker, info StreamInfo, opts ConvertOptions) (*DocumentConverterResult, error)
}

func isPDF(info StreamInfo) bool {
	if info.Extension == ".pdf" {
		return true
	}
	return hasMIMEPrefix(info.MIMEType, "application/pdf")
}
