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

// Package server exposes the extraction endpoint over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	markitdown "github.com/nicholasgasior/markitdown-enrich"
	"github.com/nicholasgasior/markitdown-enrich/internal/config"
	"github.com/nicholasgasior/markitdown-enrich/internal/describe"
)

// Converter is the part of the engine the server needs.
type Converter interface {
	ConvertFile(ctx context.Context, path string, opts markitdown.ConvertOptions) (*markitdown.DocumentConverterResult, error)
}

// ProviderFactory builds the image description provider for one request.
type ProviderFactory func(ctx context.Context, kind describe.Kind) (describe.Provider, error)

// Server handles extraction requests.
type Server struct {
	cfg       config.Config
	engine    Converter
	providers ProviderFactory
	log       *zap.Logger
	tempDir   string
}

// Option configures a Server.
type Option func(*Server)

// WithProviderFactory replaces the provider constructor, which defaults to
// describe.New over the server configuration.
func WithProviderFactory(f ProviderFactory) Option {
	return func(s *Server) { s.providers = f }
}

// WithTempDir sets the parent of the per-request working directories.
func WithTempDir(dir string) Option {
	return func(s *Server) { s.tempDir = dir }
}

// New creates a Server.
func New(cfg config.Config, engine Converter, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{cfg: cfg, engine: engine, log: log}
	s.providers = func(ctx context.Context, kind describe.Kind) (describe.Provider, error) {
		return describe.New(ctx, kind, s.cfg, s.log)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the HTTP handler with all routes mounted.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(s.accessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Filename", "X-Api-Key", "Api-Key"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/markitdown", func(r chi.Router) {
		r.Use(requireAPIKey(s.cfg.APIKey))
		r.Post("/extracts", s.extract)
		r.Post("/extracts/", s.extract)
	})

	return r
}

// HTTPServer wraps Routes in an http.Server using the configured address
// and timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)))
	})
}
