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

// Package enrich converts a PDF to Markdown, interleaving the text of each
// page with model-generated descriptions of the images drawn on it.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/nicholasgasior/markitdown-enrich/internal/describe"
	"github.com/nicholasgasior/markitdown-enrich/internal/imaging"
	"github.com/nicholasgasior/markitdown-enrich/internal/logging"
)

// ErrUnreadableDocument wraps failures to parse the PDF structure.
var ErrUnreadableDocument = errors.New("unreadable document")

// Options control one conversion.
type Options struct {
	// RequestID is attached to every log line.
	RequestID string
	// IncludeImages embeds each described image as a data URI above its
	// description.
	IncludeImages bool
}

// Source is an opened document.
type Source interface {
	NumPages() int
	PageText(pageNr int) (string, error)
	PageImages(pageNr int) ([]imaging.Raw, error)
	Close() error
}

// Opener parses document bytes into a Source.
type Opener func(data []byte, log *zap.Logger) (Source, error)

// Pipeline drives page assembly over a whole document.
type Pipeline struct {
	provider  describe.Provider
	log       *zap.Logger
	open      Opener
	normalize func(imaging.Raw) (imaging.Normalized, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOpener replaces the PDF reader.
func WithOpener(open Opener) Option {
	return func(p *Pipeline) { p.open = open }
}

// New returns a pipeline that describes images with provider. A nil
// provider yields text only.
func New(provider describe.Provider, log *zap.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pipeline{provider: provider, log: log, open: OpenPDF, normalize: imaging.Normalize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ConvertFile converts the PDF at path.
func (p *Pipeline) ConvertFile(ctx context.Context, path string, opts Options) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return p.Convert(ctx, f, opts)
}

// Convert reads a PDF and returns its Markdown. Only an unreadable document
// is an error; failures on individual pages or images are logged and
// omitted from the output.
func (p *Pipeline) Convert(ctx context.Context, r io.Reader, opts Options) (string, error) {
	log := p.log.With(logging.RequestID(opts.RequestID))
	ctx = logging.WithLogger(ctx, log)

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	src, err := p.open(data, log)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	defer src.Close()

	pages := src.NumPages()
	log.Info("converting document", zap.Int("pages", pages), zap.Bool("enrich", p.provider != nil))

	var frags []Fragment
	var total PageStats
	for pageNr := 1; pageNr <= pages; pageNr++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		pageFrags, stats := p.AssemblePage(ctx, src, pageNr, opts)
		frags = append(frags, pageFrags...)
		total.add(stats)
	}

	log.Info("document converted",
		zap.Int("pages", pages),
		zap.Int("images", total.Images),
		zap.Int("described", total.Described),
		zap.Int("skipped", total.Skipped()))
	return Render(frags), nil
}
