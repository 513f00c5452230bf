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

// Package pdfimage walks the resource graph of PDF pages and returns the
// image XObjects found there.
package pdfimage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/filter"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"

	"github.com/nicholasgasior/markitdown-enrich/internal/imaging"
)

// maxFormDepth bounds recursion into nested form XObjects.
const maxFormDepth = 8

// imageCodecs are filters whose output is pixels; they stay encoded.
var imageCodecs = map[string]bool{
	"DCTDecode":      true,
	"JPXDecode":      true,
	"CCITTFaxDecode": true,
	"JBIG2Decode":    true,
	"DCT":            true,
	"CCF":            true,
}

func init() {
	api.DisableConfigDir()
}

// Document is an opened PDF.
type Document struct {
	ctx *model.Context
	log *zap.Logger
}

// Open parses the cross-reference table and object graph of a PDF.
func Open(rs io.ReadSeeker, log *zap.Logger) (*Document, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, err := api.ReadContext(rs, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}
	return &Document{ctx: ctx, log: log}, nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// walk carries per-page traversal state.
type walk struct {
	doc         *Document
	log         *zap.Logger
	images      []imaging.Raw
	visited     map[int]bool
	xobjects    int
	skipped     int
	unsupported []string
}

// PageImages returns the image XObjects drawn from the given 1-based page,
// including images nested in form XObjects. Objects that cannot be read are
// logged and skipped.
func (d *Document) PageImages(pageNr int) ([]imaging.Raw, error) {
	pageDict, _, _, err := d.ctx.PageDict(pageNr, false)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pageNr, err)
	}
	if pageDict == nil {
		return nil, fmt.Errorf("page %d: not found", pageNr)
	}

	w := &walk{doc: d, log: d.log.With(zap.Int("page", pageNr)), visited: map[int]bool{}}
	if res := d.resources(pageDict); res != nil {
		w.visit(res, 0)
	}

	w.log.Debug("page images extracted",
		zap.Int("xobjects", w.xobjects),
		zap.Int("images", len(w.images)+w.skipped),
		zap.Int("kept", len(w.images)),
		zap.Int("skipped", w.skipped),
		zap.Strings("unsupported_filters", w.unsupported))
	return w.images, nil
}

// resources finds the Resources of a page, walking up the page tree for
// inherited entries.
func (d *Document) resources(dict types.Dict) types.Dict {
	for depth := 0; dict != nil && depth < 64; depth++ {
		if obj, ok := dict.Find("Resources"); ok {
			res, err := d.ctx.DereferenceDict(obj)
			if err == nil && res != nil {
				return res
			}
		}
		parent, ok := dict.Find("Parent")
		if !ok {
			return nil
		}
		next, err := d.ctx.DereferenceDict(parent)
		if err != nil {
			return nil
		}
		dict = next
	}
	return nil
}

func (w *walk) visit(res types.Dict, depth int) {
	obj, ok := res.Find("XObject")
	if !ok {
		return
	}
	xobjs, err := w.doc.ctx.DereferenceDict(obj)
	if err != nil || xobjs == nil {
		w.log.Debug("unreadable XObject dictionary", zap.Error(err))
		return
	}

	names := make([]string, 0, len(xobjs))
	for name := range xobjs {
		names = append(names, name)
	}
	sortNatural(names)

	for _, name := range names {
		w.xobjects++
		entry := xobjs[name]
		if ref, ok := entry.(types.IndirectRef); ok {
			if w.visited[ref.ObjectNumber.Value()] {
				continue
			}
			w.visited[ref.ObjectNumber.Value()] = true
		}

		sd, _, err := w.doc.ctx.DereferenceStreamDict(entry)
		if err != nil || sd == nil {
			w.log.Debug("skipping unreadable XObject", zap.String("name", name), zap.Error(err))
			continue
		}

		switch subtype := sd.NameEntry("Subtype"); {
		case subtype != nil && *subtype == "Image":
			w.image(name, sd)
		case subtype != nil && *subtype == "Form" && depth < maxFormDepth:
			if inner := w.formResources(sd); inner != nil {
				w.visit(inner, depth+1)
			}
		}
	}
}

func (w *walk) formResources(sd *types.StreamDict) types.Dict {
	obj, ok := sd.Find("Resources")
	if !ok {
		return nil
	}
	res, err := w.doc.ctx.DereferenceDict(obj)
	if err != nil {
		return nil
	}
	return res
}

func (w *walk) image(name string, sd *types.StreamDict) {
	log := w.log.With(zap.String("name", name))

	filters, parms := w.filterChain(sd.Dict)
	data, err := w.decodeNonImage(sd, filters, parms)
	if err != nil {
		w.skipped++
		log.Debug("skipping image with undecodable stream", zap.Strings("filters", filters), zap.Error(err))
		return
	}

	raw := imaging.Raw{
		Index:       len(w.images) + w.skipped + 1,
		Name:        name,
		Data:        data,
		Filters:     filters,
		Width:       w.intEntry(sd.Dict, "Width"),
		Height:      w.intEntry(sd.Dict, "Height"),
		ColorSpace:  w.colorSpace(sd.Dict),
		DecodeParms: map[string]int{},
	}
	raw.BitsPerComponent = w.intEntry(sd.Dict, "BitsPerComponent")
	for i, f := range filters {
		if imageCodecs[f] || i == len(filters)-1 {
			raw.DecodeParms = parms[i]
			break
		}
	}
	w.images = append(w.images, raw)
}

// filterChain returns the declared filter names and their integer parameters.
func (w *walk) filterChain(d types.Dict) ([]string, []map[string]int) {
	var filters []string
	if obj, ok := d.Find("Filter"); ok {
		obj, _ = w.doc.ctx.Dereference(obj)
		switch f := obj.(type) {
		case types.Name:
			filters = append(filters, f.Value())
		case types.Array:
			for _, o := range f {
				o, _ = w.doc.ctx.Dereference(o)
				if n, ok := o.(types.Name); ok {
					filters = append(filters, n.Value())
				}
			}
		}
	}

	parms := make([]map[string]int, len(filters))
	var dicts []types.Object
	if obj, ok := d.Find("DecodeParms"); ok {
		obj, _ = w.doc.ctx.Dereference(obj)
		switch p := obj.(type) {
		case types.Dict:
			dicts = []types.Object{p}
		case types.Array:
			dicts = p
		}
	}
	for i := range parms {
		parms[i] = map[string]int{}
		if i < len(dicts) {
			if pd, err := w.doc.ctx.DereferenceDict(dicts[i]); err == nil {
				for k, v := range pd {
					if n, ok := w.intValue(v); ok {
						parms[i][k] = n
					}
				}
			}
		}
	}
	return filters, parms
}

// decodeNonImage removes the leading transport filters (Flate, LZW, ASCII85
// and friends) and stops at the first image codec.
func (w *walk) decodeNonImage(sd *types.StreamDict, filters []string, parms []map[string]int) ([]byte, error) {
	data := sd.Raw
	if len(data) == 0 {
		data = sd.Content
	}
	for i, name := range filters {
		if imageCodecs[name] {
			break
		}
		f, err := filter.NewFilter(name, parms[i])
		if err != nil {
			w.unsupported = append(w.unsupported, name)
			return nil, err
		}
		r, err := f.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if data, err = io.ReadAll(r); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return data, nil
}

func (w *walk) intValue(o types.Object) (int, bool) {
	o, err := w.doc.ctx.Dereference(o)
	if err != nil {
		return 0, false
	}
	switch v := o.(type) {
	case types.Integer:
		return v.Value(), true
	case types.Float:
		return int(v.Value()), true
	case types.Boolean:
		if v.Value() {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func (w *walk) intEntry(d types.Dict, key string) int {
	if o, ok := d.Find(key); ok {
		if n, ok := w.intValue(o); ok {
			return n
		}
	}
	return 0
}

func (w *walk) colorSpace(d types.Dict) string {
	o, ok := d.Find("ColorSpace")
	if !ok {
		return ""
	}
	o, _ = w.doc.ctx.Dereference(o)
	switch cs := o.(type) {
	case types.Name:
		return cs.Value()
	case types.Array:
		if len(cs) > 0 {
			if n, ok := cs[0].(types.Name); ok {
				return n.Value()
			}
		}
	}
	return ""
}
