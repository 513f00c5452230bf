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

// Package imaging turns image payloads embedded in PDF pages into uniformly
// encoded images that a vision model accepts.
package imaging

import "strings"

// Encoding is the storage scheme an embedded image declares through its filters.
type Encoding int

const (
	// EncodingOther covers absent or unrecognised filters.
	EncodingOther Encoding = iota
	// EncodingJPEG is a baseline/progressive JPEG byte stream (DCTDecode).
	EncodingJPEG
	// EncodingJPEG2000 is a JPEG 2000 codestream (JPXDecode).
	EncodingJPEG2000
	// EncodingFlate is deflate-compressed data, usually raw pixels (FlateDecode).
	EncodingFlate
	// EncodingCCITT is 1-bit fax data (CCITTFaxDecode).
	EncodingCCITT
)

func (e Encoding) String() string {
	switch e {
	case EncodingJPEG:
		return "DCTDecode"
	case EncodingJPEG2000:
		return "JPXDecode"
	case EncodingFlate:
		return "FlateDecode"
	case EncodingCCITT:
		return "CCITTFaxDecode"
	default:
		return "other"
	}
}

// filterAliases maps the abbreviated filter names allowed in inline images
// to their full names.
var filterAliases = map[string]string{
	"DCT": "DCTDecode",
	"Fl":  "FlateDecode",
	"CCF": "CCITTFaxDecode",
}

// Classify picks the encoding for a filter chain. The checks run in a fixed
// order so that a chain such as [FlateDecode DCTDecode] resolves to JPEG.
func Classify(filters []string) Encoding {
	names := make([]string, 0, len(filters))
	for _, f := range filters {
		f = strings.TrimPrefix(strings.TrimSpace(f), "/")
		if full, ok := filterAliases[f]; ok {
			f = full
		}
		names = append(names, f)
	}

	for _, candidate := range []Encoding{EncodingJPEG, EncodingJPEG2000, EncodingFlate, EncodingCCITT} {
		for _, n := range names {
			if strings.Contains(n, candidate.String()) {
				return candidate
			}
		}
	}
	return EncodingOther
}
