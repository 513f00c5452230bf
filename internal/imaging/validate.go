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
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Limits imposed by vision model APIs.
const (
	MaxBytes       = 15 << 20
	MinBytes       = 100
	MinDimension   = 10
	MaxAspectRatio = 50
	MaxDimension   = 2048
	JPEGQuality    = 85
)

// RejectError reports an image that fails validation.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string { return "image rejected: " + e.Reason }

// IsRejected reports whether err is a *RejectError.
func IsRejected(err error) bool {
	var re *RejectError
	return errors.As(err, &re)
}

// Validated is a JPEG payload that satisfies every limit above.
type Validated struct {
	MIME    string
	Data    []byte
	Width   int
	Height  int
	Resized bool
}

// Base64 returns the standard base64 encoding of the payload.
func (v Validated) Base64() string {
	return base64.StdEncoding.EncodeToString(v.Data)
}

// DataURI returns the payload as a data: URI.
func (v Validated) DataURI() string {
	return "data:" + v.MIME + ";base64," + v.Base64()
}

func reject(format string, args ...any) error {
	return &RejectError{Reason: fmt.Sprintf(format, args...)}
}

// Validate enforces the size, dimension and aspect-ratio limits, shrinks
// images whose longest side exceeds MaxDimension and re-encodes the result
// as JPEG.
func Validate(n Normalized) (Validated, error) {
	size := len(n.Data)
	if size > MaxBytes {
		return Validated{}, reject("%d bytes exceeds %d", size, MaxBytes)
	}
	if size < MinBytes {
		return Validated{}, reject("%d bytes is below %d", size, MinBytes)
	}

	// No JPEG 2000 decoder is registered, so JPX passthroughs are rejected here.
	img, _, err := image.Decode(bytes.NewReader(n.Data))
	if err != nil {
		return Validated{}, reject("cannot decode %s: %v", n.MIME, err)
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w < MinDimension || h < MinDimension {
		return Validated{}, reject("dimensions %dx%d below %d", w, h, MinDimension)
	}
	long, short := max(w, h), min(w, h)
	if float64(long)/float64(short) > MaxAspectRatio {
		return Validated{}, reject("aspect ratio %.1f exceeds %d", float64(long)/float64(short), MaxAspectRatio)
	}

	resized := false
	if long > MaxDimension {
		img = shrink(img, w, h)
		w, h = img.Bounds().Dx(), img.Bounds().Dy()
		resized = true
	}

	data, err := encodeJPEG(Flatten(img))
	if err != nil {
		return Validated{}, reject("encode: %v", err)
	}
	if len(data) > MaxBytes {
		return Validated{}, reject("encoded %d bytes exceeds %d", len(data), MaxBytes)
	}
	return Validated{MIME: MIMEJPEG, Data: data, Width: w, Height: h, Resized: resized}, nil
}

// shrink scales img so that its longest side is exactly MaxDimension.
func shrink(img image.Image, w, h int) image.Image {
	nw, nh := MaxDimension, scaleSide(h, w)
	if h > w {
		nw, nh = scaleSide(w, h), MaxDimension
	}
	rect := image.Rect(0, 0, nw, nh)

	var dst draw.Image
	if _, ok := img.(*image.Gray); ok {
		dst = image.NewGray(rect)
	} else {
		dst = image.NewRGBA(rect)
	}
	draw.CatmullRom.Scale(dst, rect, img, img.Bounds(), draw.Over, nil)
	return dst
}

func scaleSide(short, long int) int {
	return max(1, (short*MaxDimension+long/2)/long)
}
