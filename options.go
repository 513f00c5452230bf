package markitdown

import (
	"net/http"

	"go.uber.org/zap"
)

// Option configures a MarkItDown instance.
type Option func(*MarkItDown)

// WithKeepDataURIs configures whether to keep full data URIs in HTML output
// (default: false, which truncates them to data:mime/type;base64...).
func WithKeepDataURIs(keep bool) Option {
	return func(m *MarkItDown) {
		m.keepDataURIs = keep
	}
}

// WithLogger sets the logger handed to every converter.
func WithLogger(log *zap.Logger) Option {
	return func(m *MarkItDown) {
		if log != nil {
			m.log = log
		}
	}
}

// WithHTTPClient sets the client used by ConvertURL.
func WithHTTPClient(c *http.Client) Option {
	return func(m *MarkItDown) {
		if c != nil {
			m.httpClient = c
		}
	}
}
