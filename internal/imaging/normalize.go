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

package imaging

import (
	"errors"
	"fmt"
	"image"
)

const (
	MIMEJPEG     = "image/jpeg"
	MIMEJPEG2000 = "image/jp2"

	// MaxNormalizedArea bounds the pixel area of images decoded by the
	// normalizer before they are re-encoded.
	MaxNormalizedArea = 4096 * 4096
)

// Raw is one image object as found in a page's resources. Data holds the
// stream bytes with non-image filters already removed.
type Raw struct {
	Index            int
	Name             string
	Data             []byte
	Filters          []string
	Width            int
	Height           int
	BitsPerComponent int
	ColorSpace       string
	DecodeParms      map[string]int
}

// Normalized is an image in a transportable encoding.
type Normalized struct {
	MIME string
	Data []byte
}

// UnsupportedError is the normalizer's verdict for an image it cannot turn
// into a transportable encoding.
type UnsupportedError struct {
	Encoding Encoding
	Reason   string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported %s image: %s", e.Encoding, e.Reason)
}

// IsUnsupported reports whether err is an *UnsupportedError.
func IsUnsupported(err error) bool {
	var ue *UnsupportedError
	return errors.As(err, &ue)
}

// decodeFunc turns stream bytes into pixels.
type decodeFunc func(data []byte, raw Raw) (image.Image, error)

type strategy struct {
	passthrough string
	decode      decodeFunc
}

var strategies = map[Encoding]strategy{
	EncodingJPEG:     {passthrough: MIMEJPEG},
	EncodingJPEG2000: {passthrough: MIMEJPEG2000},
	EncodingFlate:    {decode: decodeFlate},
	EncodingCCITT:    {decode: decodeCCITT},
	EncodingOther:    {decode: decodeGeneric},
}

// Normalize classifies raw by its filters and produces a JPEG (or a JPEG 2000
// passthrough). JPEG and JPEG 2000 payloads are returned without copying.
func Normalize(raw Raw) (Normalized, error) {
	enc := Classify(raw.Filters)
	if len(raw.Data) == 0 {
		return Normalized{}, &UnsupportedError{Encoding: enc, Reason: "empty payload"}
	}

	s := strategies[enc]
	if s.passthrough != "" {
		return Normalized{MIME: s.passthrough, Data: raw.Data}, nil
	}

	img, err := s.decode(raw.Data, raw)
	if err != nil {
		return Normalized{}, &UnsupportedError{Encoding: enc, Reason: err.Error()}
	}
	data, err := finish(img)
	if err != nil {
		return Normalized{}, &UnsupportedError{Encoding: enc, Reason: err.Error()}
	}
	return Normalized{MIME: MIMEJPEG, Data: data}, nil
}

// finish is the shared tail of every decoding strategy.
func finish(img image.Image) ([]byte, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < MinDimension || h < MinDimension {
		return nil, fmt.Errorf("image too small: %dx%d", w, h)
	}
	if w*h > MaxNormalizedArea {
		return nil, fmt.Errorf("image too large: %dx%d", w, h)
	}
	return encodeJPEG(Flatten(img))
}
