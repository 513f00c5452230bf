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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const (
	// PriorityEnriched is for converters that only run on explicit request.
	PriorityEnriched = -1.0
	// PrioritySpecific is for format-specific converters (PDF).
	PrioritySpecific = 0.0
	// PriorityGeneric is for fallback converters (PlainText, HTML).
	PriorityGeneric = 10.0
)

type registeredConverter struct {
	converter DocumentConverter
	priority  float64
	name      string
}

// MarkItDown is the main document-to-markdown conversion engine.
type MarkItDown struct {
	converters   []registeredConverter
	keepDataURIs bool
	log          *zap.Logger
	httpClient   *http.Client
}

// New creates a new MarkItDown instance with the given options.
func New(opts ...Option) *MarkItDown {
	m := &MarkItDown{log: zap.NewNop(), httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(m)
	}
	m.enableBuiltins()
	return m
}

// RegisterConverter adds a custom converter with the given priority.
// Lower priority values are tried first.
func (m *MarkItDown) RegisterConverter(name string, c DocumentConverter, priority float64) {
	m.converters = append(m.converters, registeredConverter{
		converter: c,
		priority:  priority,
		name:      name,
	})
	sort.SliceStable(m.converters, func(i, j int) bool {
		return m.converters[i].priority < m.converters[j].priority
	})
}

// Convert converts a file path or an http(s) URL.
func (m *MarkItDown) Convert(ctx context.Context, source string, opts ConvertOptions) (*DocumentConverterResult, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return m.ConvertURL(ctx, source, opts)
	}
	return m.ConvertFile(ctx, source, opts)
}

// ConvertFile converts a local file to markdown.
func (m *MarkItDown) ConvertFile(ctx context.Context, path string, opts ConvertOptions) (*DocumentConverterResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	info := StreamInfo{
		Extension: ext,
		Filename:  filepath.Base(path),
		LocalPath: path,
		MIMEType:  detectMIMEType(f, ext),
	}
	return m.ConvertReader(ctx, f, info, opts)
}

// ConvertReader converts a stream to markdown using the provided StreamInfo.
func (m *MarkItDown) ConvertReader(ctx context.Context, r io.ReadSeeker, info StreamInfo, opts ConvertOptions) (*DocumentConverterResult, error) {
	log := m.log.With(zap.String("request_id", opts.RequestID))

	for _, rc := range m.converters {
		if !rc.converter.Accepts(info, opts) {
			continue
		}
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek: %w", err)
		}

		log.Debug("converting",
			zap.String("converter", rc.name),
			zap.String("extension", info.Extension),
			zap.String("mime", info.MIMEType))
		result, err := rc.converter.Convert(ctx, r, info, opts)
		if err != nil {
			return nil, &ConversionError{Converter: rc.name, Err: err}
		}
		result.Markdown = normalizeOutput(result.Markdown)
		return result, nil
	}

	return nil, &UnsupportedFormatError{
		Extension: info.Extension,
		MIMEType:  info.MIMEType,
	}
}

// ConvertURL fetches a URL and converts the response to markdown.
func (m *MarkItDown) ConvertURL(ctx context.Context, url string, opts ConvertOptions) (*DocumentConverterResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch URL: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	urlPath := strings.Split(url, "?")[0]
	info := StreamInfo{URL: url, Extension: strings.ToLower(filepath.Ext(urlPath))}
	if info.Extension != "" {
		info.Filename = filepath.Base(urlPath)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		parts := strings.Split(ct, ";")
		info.MIMEType = strings.TrimSpace(parts[0])
		for _, p := range parts[1:] {
			if v, ok := strings.CutPrefix(strings.TrimSpace(p), "charset="); ok {
				info.Charset = strings.Trim(v, `"'`)
			}
		}
	}

	reader := bytes.NewReader(data)
	if info.MIMEType == "" {
		info.MIMEType = detectMIMEType(reader, info.Extension)
	}
	return m.ConvertReader(ctx, reader, info, opts)
}

// enableBuiltins registers all built-in converters.
func (m *MarkItDown) enableBuiltins() {
	m.RegisterConverter("pdf-enriched", NewEnrichedPdfConverter(m.log), PriorityEnriched)
	m.RegisterConverter("pdf", NewPdfConverter(), PrioritySpecific)

	m.RegisterConverter("html", NewHTMLConverter(m), PriorityGeneric)
	m.RegisterConverter("plaintext", NewPlainTextConverter(), PriorityGeneric)
}

// detectMIMEType sniffs content, falling back to the extension. The reader
// is rewound afterwards.
func detectMIMEType(r io.ReadSeeker, ext string) string {
	mtype, err := mimetype.DetectReader(r)
	_, _ = r.Seek(0, io.SeekStart)
	if err == nil && !mtype.Is("application/octet-stream") {
		return mtype.String()
	}
	return MIMEFromExtension(ext)
}

var extMIME = map[string]string{
	".pdf":      "application/pdf",
	".html":     "text/html",
	".htm":      "text/html",
	".xhtml":    "application/xhtml+xml",
	".txt":      "text/plain",
	".text":     "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".json":     "application/json",
	".jsonl":    "application/jsonl",
	".csv":      "text/csv",
	".xml":      "text/xml",
}

// MIMEFromExtension returns a MIME type for the extensions handled here.
func MIMEFromExtension(ext string) string {
	if m, ok := extMIME[strings.ToLower(ext)]; ok {
		return m
	}
	return "application/octet-stream"
}

func hasMIMEPrefix(mime string, prefixes ...string) bool {
	mime = strings.ToLower(mime)
	for _, p := range prefixes {
		if strings.HasPrefix(mime, p) {
			return true
		}
	}
	return false
}
