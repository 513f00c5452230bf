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
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/ccitt"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var errMissingDimensions = errors.New("missing declared dimensions")

// decodeFlate handles inflated stream data: a self-describing container if
// one is recognised, otherwise samples laid out as declared by
// BitsPerComponent and ColorSpace. Without a usable declaration the layout is
// guessed from the length as RGBA, RGB or gray.
func decodeFlate(data []byte, raw Raw) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if raw.Width <= 0 || raw.Height <= 0 {
		return nil, errMissingDimensions
	}

	w, h := raw.Width, raw.Height
	if w > MaxNormalizedArea/h {
		return nil, fmt.Errorf("image too large: %dx%d", w, h)
	}
	if raw.BitsPerComponent == 1 {
		return unpackBits(data, w, h)
	}

	n := w * h
	rect := image.Rect(0, 0, w, h)
	switch raw.ColorSpace {
	case "DeviceCMYK":
		if len(data) >= n*4 {
			return &image.CMYK{Pix: data[:n*4], Stride: w * 4, Rect: rect}, nil
		}
	case "DeviceGray", "CalGray":
		if len(data) >= n {
			return &image.Gray{Pix: data[:n], Stride: w, Rect: rect}, nil
		}
	}

	switch {
	case len(data) >= n*4:
		return &image.NRGBA{Pix: data[:n*4], Stride: w * 4, Rect: rect}, nil
	case len(data) >= n*3:
		img := image.NewRGBA(rect)
		for i, j := 0, 0; i < n*3; i, j = i+3, j+4 {
			img.Pix[j] = data[i]
			img.Pix[j+1] = data[i+1]
			img.Pix[j+2] = data[i+2]
			img.Pix[j+3] = 0xff
		}
		return img, nil
	case len(data) >= n:
		return &image.Gray{Pix: data[:n], Stride: w, Rect: rect}, nil
	}
	return nil, fmt.Errorf("%d bytes do not cover %dx%d pixels", len(data), w, h)
}

// decodeCCITT reads fax data at the declared size. Data that the fax decoder
// rejects is read as a packed 1-bit raster where a set bit is white.
func decodeCCITT(data []byte, raw Raw) (image.Image, error) {
	w, h := raw.Width, raw.Height
	if cols := raw.DecodeParms["Columns"]; cols > 0 {
		w = cols
	}
	if rows := raw.DecodeParms["Rows"]; rows > 0 && h <= 0 {
		h = rows
	}
	if w <= 0 || h <= 0 {
		return nil, errMissingDimensions
	}
	if w > MaxNormalizedArea/h {
		return nil, fmt.Errorf("image too large: %dx%d", w, h)
	}

	sf := ccitt.Group3
	if raw.DecodeParms["K"] < 0 {
		sf = ccitt.Group4
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	err := ccitt.DecodeIntoGray(dst, bytes.NewReader(data), ccitt.MSB, sf, &ccitt.Options{
		Align:  raw.DecodeParms["EncodedByteAlign"] != 0,
		Invert: raw.DecodeParms["BlackIs1"] != 0,
	})
	if err == nil {
		return dst, nil
	}
	return unpackBits(data, w, h)
}

// unpackBits reads a packed 1-bit raster, rows padded to whole bytes, where a
// set bit is white.
func unpackBits(data []byte, w, h int) (image.Image, error) {
	stride := (w + 7) / 8
	if len(data) < stride*h {
		return nil, fmt.Errorf("%d bytes do not cover a %dx%d bilevel raster", len(data), w, h)
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := data[y*stride : (y+1)*stride]
		for x := 0; x < w; x++ {
			if row[x/8]&(0x80>>(x%8)) != 0 {
				img.Pix[y*img.Stride+x] = 0xff
			}
		}
	}
	return img, nil
}

// decodeGeneric accepts any container the registered decoders understand.
func decodeGeneric(data []byte, _ Raw) (image.Image, error) {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("payload is %s", mt.String())
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", mt.String(), err)
	}
	return img, nil
}
