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
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLConverter handles HTML files.
type HTMLConverter struct {
	markitdown *MarkItDown
	conv       *converter.Converter
}

// NewHTMLConverter creates a new HTMLConverter.
func NewHTMLConverter(m *MarkItDown) *HTMLConverter {
	return &HTMLConverter{
		markitdown: m,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(
					commonmark.WithHeadingStyle("atx"),
				),
				table.NewTablePlugin(),
			),
		),
	}
}

func (c *HTMLConverter) Accepts(info StreamInfo, _ ConvertOptions) bool {
	switch info.Extension {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return hasMIMEPrefix(info.MIMEType, "text/html", "application/xhtml")
}

func (c *HTMLConverter) Convert(_ context.Context, reader io.ReadSeeker, _ StreamInfo, _ ConvertOptions) (*DocumentConverterResult, error) {
	doc, err := html.Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	return c.convertNode(doc)
}

// ConvertString converts an HTML string to markdown.
func (c *HTMLConverter) ConvertString(htmlStr string) (*DocumentConverterResult, error) {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	return c.convertNode(doc)
}

func (c *HTMLConverter) convertNode(doc *html.Node) (*DocumentConverterResult, error) {
	title := stripNonContent(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("render HTML: %w", err)
	}
	md, err := c.conv.ConvertString(buf.String())
	if err != nil {
		return nil, fmt.Errorf("convert HTML to markdown: %w", err)
	}

	if c.markitdown == nil || !c.markitdown.keepDataURIs {
		md = truncateDataURIs(md)
	}
	return &DocumentConverterResult{Markdown: md, Title: title}, nil
}

var reDataURI = regexp.MustCompile(`(data:[a-zA-Z0-9/+.-]+;base64,)[A-Za-z0-9+/=]{64,}`)

// truncateDataURIs shortens large base64 data URIs to data:mime/type;base64...
func truncateDataURIs(md string) string {
	return reDataURI.ReplaceAllString(md, "${1}...")
}

// stripNonContent removes script and style elements in place and returns the
// document title.
func stripNonContent(n *html.Node) string {
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for child := n.FirstChild; child != nil; {
			next := child.NextSibling
			if child.Type == html.ElementNode {
				switch child.DataAtom {
				case atom.Script, atom.Style, atom.Noscript:
					n.RemoveChild(child)
					child = next
					continue
				case atom.Title:
					if title == "" && child.FirstChild != nil {
						title = strings.TrimSpace(child.FirstChild.Data)
					}
				}
			}
			walk(child)
			child = next
		}
	}
	walk(n)
	return title
}
