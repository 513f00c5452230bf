package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	markitdown "github.com/nicholasgasior/markitdown-enrich"
	"github.com/nicholasgasior/markitdown-enrich/internal/config"
	"github.com/nicholasgasior/markitdown-enrich/internal/describe"
)

const testKey = "secret"

type fakeEngine struct {
	err      error
	opts     markitdown.ConvertOptions
	fileName string
	content  string
	calls    int
}

func (e *fakeEngine) ConvertFile(_ context.Context, path string, opts markitdown.ConvertOptions) (*markitdown.DocumentConverterResult, error) {
	e.calls++
	e.opts = opts
	e.fileName = filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	e.content = string(data)
	if e.err != nil {
		return nil, e.err
	}
	return &markitdown.DocumentConverterResult{Markdown: "# " + e.content}, nil
}

type nopProvider struct{}

func (nopProvider) Name() string { return "nop" }

func (nopProvider) Describe(context.Context, describe.Image) describe.Result {
	return describe.Result{Outcome: describe.Skipped}
}

type harness struct {
	engine   *fakeEngine
	kinds    []describe.Kind
	tempDir  string
	handler  http.Handler
	provider error
}

func newHarness(t *testing.T, apiKey string) *harness {
	t.Helper()
	h := &harness{engine: &fakeEngine{}, tempDir: t.TempDir()}
	cfg := config.Default()
	cfg.APIKey = apiKey
	srv := New(cfg, h.engine, zaptest.NewLogger(t),
		WithTempDir(h.tempDir),
		WithProviderFactory(func(_ context.Context, kind describe.Kind) (describe.Provider, error) {
			h.kinds = append(h.kinds, kind)
			if h.provider != nil {
				return nil, h.provider
			}
			return nopProvider{}, nil
		}))
	h.handler = srv.Routes()
	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func rawRequest(target, filename, contentType, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("x-api-key", testKey)
	if filename != "" {
		req.Header.Set("X-Filename", filename)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

func multipartRequest(t *testing.T, target, filename, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+testKey)
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var body APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, "")
	rec := h.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAuth(t *testing.T) {
	t.Run("server key missing", func(t *testing.T) {
		h := newHarness(t, "")
		rec := h.do(rawRequest("/markitdown/extracts", "a.txt", "", "x"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, http.StatusInternalServerError, decodeError(t, rec).Code)
		assert.Zero(t, h.engine.calls)
	})

	t.Run("no key", func(t *testing.T) {
		h := newHarness(t, testKey)
		req := httptest.NewRequest(http.MethodPost, "/markitdown/extracts", strings.NewReader("x"))
		rec := h.do(req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		h := newHarness(t, testKey)
		req := rawRequest("/markitdown/extracts", "a.txt", "", "x")
		req.Header.Set("x-api-key", "nope")
		rec := h.do(req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, http.StatusUnauthorized, decodeError(t, rec).Code)
	})

	for _, header := range []string{"API_KEY", "api-key", "x_api_key"} {
		t.Run(header, func(t *testing.T) {
			h := newHarness(t, testKey)
			req := httptest.NewRequest(http.MethodPost, "/markitdown/extracts", strings.NewReader("x"))
			req.Header.Set(header, testKey)
			req.Header.Set("X-Filename", "a.txt")
			rec := h.do(req)
			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		})
	}
}

func TestExtractMultipart(t *testing.T) {
	h := newHarness(t, testKey)
	rec := h.do(multipartRequest(t, "/markitdown/extracts", "notes.txt", "hello"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body Extraction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "# hello", body.Markdown)
	assert.Equal(t, "notes.txt", body.Metadata.FileName)
	assert.Equal(t, "5", body.Metadata.FileSize)
	assert.False(t, body.Metadata.CreationDate.IsZero())

	assert.Equal(t, "notes.txt", h.engine.fileName)
	assert.False(t, h.engine.opts.EnrichPDF)
	assert.True(t, h.engine.opts.IncludeImages)
	assert.NotEmpty(t, h.engine.opts.RequestID)
	assert.Empty(t, h.kinds)

	entries, err := os.ReadDir(h.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExtractRawPDFEnriched(t *testing.T) {
	h := newHarness(t, testKey)
	req := rawRequest("/markitdown/extracts/?enrich_pdf=true&include_images=false&model_provider=aws_bedrock",
		"../../etc/report.pdf", "application/octet-stream", "%PDF-1.7")
	rec := h.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "report.pdf", h.engine.fileName)
	assert.Equal(t, "%PDF-1.7", h.engine.content)
	assert.True(t, h.engine.opts.EnrichPDF)
	assert.False(t, h.engine.opts.IncludeImages)
	assert.NotNil(t, h.engine.opts.Provider)
	assert.Equal(t, []describe.Kind{describe.KindBedrock}, h.kinds)
}

func TestExtractEnrichByContentType(t *testing.T) {
	h := newHarness(t, testKey)
	rec := h.do(rawRequest("/markitdown/extracts?enrich_pdf=true", "", "application/pdf", "%PDF-1.7"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.True(t, strings.HasPrefix(h.engine.fileName, "upload_"))
	assert.True(t, h.engine.opts.EnrichPDF)
	assert.Equal(t, []describe.Kind{describe.KindAzureOpenAI}, h.kinds)
}

func TestExtractEnrichIgnoredForNonPDF(t *testing.T) {
	h := newHarness(t, testKey)
	rec := h.do(rawRequest("/markitdown/extracts?enrich_pdf=true", "page.html", "text/html", "<p>x</p>"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, h.engine.opts.EnrichPDF)
	assert.Nil(t, h.engine.opts.Provider)
	assert.Empty(t, h.kinds)
}

func TestExtractErrors(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		h := newHarness(t, testKey)
		rec := h.do(rawRequest("/markitdown/extracts?model_provider=gemini", "a.pdf", "", "x"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec).Message, "gemini")
		assert.Zero(t, h.engine.calls)
	})

	t.Run("invalid flag", func(t *testing.T) {
		h := newHarness(t, testKey)
		rec := h.do(rawRequest("/markitdown/extracts?enrich_pdf=maybe", "a.pdf", "", "x"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("provider misconfigured", func(t *testing.T) {
		h := newHarness(t, testKey)
		h.provider = &describe.ConfigError{Provider: describe.KindAzureOpenAI, Missing: []string{"AZURE_OPENAI_API_KEY"}}
		rec := h.do(rawRequest("/markitdown/extracts?enrich_pdf=true", "a.pdf", "", "x"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, decodeError(t, rec).Message, "AZURE_OPENAI_API_KEY")
		assert.Zero(t, h.engine.calls)
	})

	t.Run("conversion failure", func(t *testing.T) {
		h := newHarness(t, testKey)
		h.engine.err = errors.New("corrupt xref")
		rec := h.do(rawRequest("/markitdown/extracts", "a.pdf", "", "x"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, http.StatusInternalServerError, body.Code)
		assert.Contains(t, body.Message, "corrupt xref")

		entries, err := os.ReadDir(h.tempDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("multipart without file", func(t *testing.T) {
		h := newHarness(t, testKey)
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("other", "x"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/markitdown/extracts", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("x-api-key", testKey)
		rec := h.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\scan.pdf`, "scan.pdf"},
		{"", "upload_id"},
		{".", "upload_id"},
		{"..", "upload_id"},
		{"/", "upload_id"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeFilename(tt.in, "id"), tt.in)
	}
}
