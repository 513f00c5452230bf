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

package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	markitdown "github.com/nicholasgasior/markitdown-enrich"
	"github.com/nicholasgasior/markitdown-enrich/internal/describe"
	"github.com/nicholasgasior/markitdown-enrich/internal/logging"
)

const multipartMemory = 32 << 20

type extractParams struct {
	enrichPDF     bool
	includeImages bool
	provider      describe.Kind
}

func parseParams(r *http.Request) (extractParams, error) {
	q := r.URL.Query()
	p := extractParams{includeImages: true}

	var err error
	if v := q.Get("enrich_pdf"); v != "" {
		if p.enrichPDF, err = strconv.ParseBool(v); err != nil {
			return p, fmt.Errorf("invalid enrich_pdf %q", v)
		}
	}
	if v := q.Get("include_images"); v != "" {
		if p.includeImages, err = strconv.ParseBool(v); err != nil {
			return p, fmt.Errorf("invalid include_images %q", v)
		}
	}
	if p.provider, err = describe.ParseKind(q.Get("model_provider")); err != nil {
		return p, err
	}
	return p, nil
}

// upload is a request body persisted into the request's working directory.
type upload struct {
	path       string
	clientName string
	size       int64
}

// safeFilename reduces name to its base name, or upload_<id> if nothing usable
// remains.
func safeFilename(name, id string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "" || name == "." || name == ".." || name == "/" {
		return "upload_" + id
	}
	return name
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

func saveUpload(r *http.Request, dir, id string) (upload, error) {
	var (
		src  io.Reader
		name string
	)
	if isMultipart(r) {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return upload{}, fmt.Errorf("parse multipart form: %w", err)
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()
		f, hdr, err := r.FormFile("file")
		if err != nil {
			return upload{}, fmt.Errorf("form field %q: %w", "file", err)
		}
		defer f.Close()
		src, name = f, hdr.Filename
	} else {
		src, name = r.Body, r.Header.Get("X-Filename")
	}

	path := filepath.Join(dir, safeFilename(name, id))
	out, err := os.Create(path)
	if err != nil {
		return upload{}, fmt.Errorf("create upload file: %w", err)
	}
	defer out.Close()

	n, err := io.Copy(out, src)
	if err != nil {
		return upload{}, fmt.Errorf("write upload: %w", err)
	}
	return upload{path: path, clientName: name, size: n}, nil
}

// wantsEnrichment applies enrichment only to PDFs, recognised by file name or
// by the declared content type of a raw upload.
func wantsEnrichment(p extractParams, r *http.Request, path string) bool {
	if !p.enrichPDF {
		return false
	}
	return strings.EqualFold(filepath.Ext(path), ".pdf") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/pdf")
}

func (s *Server) extract(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	log := s.log.With(logging.RequestID(id))
	ctx := logging.WithLogger(r.Context(), log)

	params, err := parseParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	base := s.tempDir
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		log.Error("create working directory", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Unable to create temporary storage")
		return
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("remove working directory", zap.String("dir", dir), zap.Error(err))
		}
	}()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	up, err := saveUpload(r, dir, id)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := markitdown.ConvertOptions{
		RequestID:     id,
		EnrichPDF:     wantsEnrichment(params, r, up.path),
		IncludeImages: params.includeImages,
	}
	log.Info("received request",
		zap.Bool("enrich_pdf", params.enrichPDF),
		zap.Bool("enriching", opts.EnrichPDF),
		zap.Bool("include_images", params.includeImages),
		zap.String("file", filepath.Base(up.path)),
		zap.Int64("size", up.size),
		zap.String("content_type", r.Header.Get("Content-Type")),
		zap.String("provider", string(params.provider)))

	if opts.EnrichPDF {
		opts.Provider, err = s.providers(ctx, params.provider)
		if err != nil {
			log.Error("initialise description provider", zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	result, err := s.engine.ConvertFile(ctx, up.path, opts)
	if err != nil {
		log.Error("conversion failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	name := up.clientName
	if name == "" {
		name = filepath.Base(up.path)
	}
	writeJSON(w, http.StatusOK, Extraction{
		Markdown: result.Markdown,
		Metadata: Metadata{
			FileName:     name,
			FileSize:     strconv.FormatInt(up.size, 10),
			CreationDate: time.Now().UTC(),
		},
	})
}
