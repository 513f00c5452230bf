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

// Package pdftext extracts the text of individual PDF pages as Markdown.
//
// The default backend runs PDFium compiled to WebAssembly. Building with the
// nopdfium tag swaps in a pure-Go reader with simpler layout recovery.
package pdftext

import (
	"fmt"
	"io"
)

// Document gives page-at-a-time access to the text of a PDF.
type Document interface {
	// NumPages returns the page count.
	NumPages() int
	// PageText returns the Markdown text of the 1-based page.
	PageText(pageNr int) (string, error)
	io.Closer
}

func checkPage(pageNr, count int) error {
	if pageNr < 1 || pageNr > count {
		return fmt.Errorf("page %d out of range [1, %d]", pageNr, count)
	}
	return nil
}
