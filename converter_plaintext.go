package markitdown

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// PlainTextConverter handles plain text, markdown, and JSON files.
type PlainTextConverter struct{}

// NewPlainTextConverter creates a new PlainTextConverter.
func NewPlainTextConverter() *PlainTextConverter {
	return &PlainTextConverter{}
}

func (c *PlainTextConverter) Accepts(info StreamInfo, _ ConvertOptions) bool {
	switch info.Extension {
	case ".txt", ".text", ".md", ".markdown", ".json", ".jsonl", ".csv":
		return true
	}
	return hasMIMEPrefix(info.MIMEType, "text/", "application/json", "application/markdown")
}

func (c *PlainTextConverter) Convert(_ context.Context, reader io.ReadSeeker, info StreamInfo, _ ConvertOptions) (*DocumentConverterResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	if info.Charset != "" {
		if enc := lookupEncoding(info.Charset); enc != nil {
			if decoded, err := enc.NewDecoder().Bytes(data); err == nil {
				return &DocumentConverterResult{Markdown: string(decoded)}, nil
			}
		}
	}
	return &DocumentConverterResult{Markdown: decodeWithDetection(data)}, nil
}

// decodeWithDetection returns valid UTF-8 as is and otherwise decodes with
// the most confident charset chardet proposes that decodes cleanly.
func decodeWithDetection(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}

	results, err := chardet.NewTextDetector().DetectAll(data)
	if err == nil {
		for _, r := range results {
			enc := lookupEncoding(r.Charset)
			if enc == nil {
				continue
			}
			decoded, err := enc.NewDecoder().Bytes(data)
			if err == nil && !strings.ContainsRune(string(decoded), utf8.RuneError) {
				return string(decoded)
			}
		}
	}
	return strings.ToValidUTF8(string(data), "�")
}

// charsetAliases covers the chardet names htmlindex does not know.
var charsetAliases = map[string]string{
	"gb-18030": "gb18030",
	"utf-8bom": "utf-8",
	"ascii":    "utf-8",
	"us-ascii": "utf-8",
}

// lookupEncoding maps a charset label to an encoding, or nil if unknown.
func lookupEncoding(charset string) encoding.Encoding {
	name := strings.ToLower(strings.TrimSpace(charset))
	if alias, ok := charsetAliases[name]; ok {
		name = alias
	}
	switch name {
	case "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil
	}
	return enc
}
