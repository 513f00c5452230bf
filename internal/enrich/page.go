package enrich

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nicholasgasior/markitdown-enrich/internal/describe"
	"github.com/nicholasgasior/markitdown-enrich/internal/imaging"
	"github.com/nicholasgasior/markitdown-enrich/internal/logging"
)

// PageStats counts what happened to the images of one page.
type PageStats struct {
	Images      int
	Described   int
	Unsupported int
	Rejected    int
	Decorative  int
	Failed      int
}

// Skipped is the number of images left out of the output.
func (s PageStats) Skipped() int {
	return s.Unsupported + s.Rejected + s.Decorative + s.Failed
}

func (s *PageStats) add(o PageStats) {
	s.Images += o.Images
	s.Described += o.Described
	s.Unsupported += o.Unsupported
	s.Rejected += o.Rejected
	s.Decorative += o.Decorative
	s.Failed += o.Failed
}

// AssemblePage returns the fragments of one page: its text, then one
// fragment per described image in page order.
func (p *Pipeline) AssemblePage(ctx context.Context, src Source, pageNr int, opts Options) ([]Fragment, PageStats) {
	log := logging.FromContext(ctx, p.log).With(zap.Int("page", pageNr))
	var frags []Fragment
	var stats PageStats

	text, err := src.PageText(pageNr)
	if err != nil {
		log.Warn("could not extract page text", zap.Error(err))
	}
	if text = strings.TrimSpace(text); text != "" {
		frags = append(frags, Fragment{Page: pageNr, Text: text})
	}

	if p.provider == nil {
		return frags, stats
	}

	raws, err := src.PageImages(pageNr)
	if err != nil {
		log.Warn("could not read page images", zap.Error(err))
		return frags, stats
	}
	stats.Images = len(raws)
	if len(raws) == 0 {
		log.Debug("no extractable images on page")
		return frags, stats
	}

	for _, raw := range raws {
		imgLog := log.With(zap.Int("image", raw.Index), zap.String("xobject", raw.Name))
		v, ok := p.prepare(imgLog, raw, &stats)
		if !ok {
			continue
		}

		res := p.provider.Describe(logging.WithLogger(ctx, imgLog), describe.Image{MIME: v.MIME, Base64: v.Base64()})
		switch res.Outcome {
		case describe.Described:
			stats.Described++
			frags = append(frags, imageFragment(pageNr, raw.Index, v, res.Text, opts.IncludeImages))
			imgLog.Debug("image described", zap.Int("chars", len(res.Text)))
		case describe.Skipped:
			stats.Decorative++
			imgLog.Info("image marked decorative")
		default:
			stats.Failed++
			imgLog.Warn("image dropped without description")
		}
	}

	log.Info("page image processing complete",
		zap.Int("processed", stats.Described),
		zap.Int("skipped", stats.Skipped()))
	return frags, stats
}

// prepare normalizes and validates one image. A panic in a decoder counts
// as an unsupported image.
func (p *Pipeline) prepare(log *zap.Logger, raw imaging.Raw, stats *PageStats) (v imaging.Validated, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			stats.Unsupported++
			log.Warn("image processing panicked", zap.String("panic", fmt.Sprint(r)))
			ok = false
		}
	}()

	n, err := p.normalize(raw)
	if err != nil {
		stats.Unsupported++
		log.Debug("image not supported", zap.Strings("filters", raw.Filters), zap.Error(err))
		return imaging.Validated{}, false
	}
	v, err = imaging.Validate(n)
	if err != nil {
		stats.Rejected++
		if n.MIME == imaging.MIMEJPEG2000 || len(n.Data) > imaging.MaxBytes {
			log.Warn("image rejected", zap.String("mime", n.MIME), zap.Int("bytes", len(n.Data)), zap.Error(err))
		} else {
			log.Debug("image rejected", zap.String("mime", n.MIME), zap.Int("bytes", len(n.Data)), zap.Error(err))
		}
		return imaging.Validated{}, false
	}
	if v.Resized {
		log.Debug("image resized", zap.Int("width", v.Width), zap.Int("height", v.Height))
	}
	return v, true
}
