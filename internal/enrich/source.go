package enrich

import (
	"bytes"
	"errors"

	"go.uber.org/zap"

	"github.com/nicholasgasior/markitdown-enrich/internal/imaging"
	"github.com/nicholasgasior/markitdown-enrich/internal/pdfimage"
	"github.com/nicholasgasior/markitdown-enrich/internal/pdftext"
)

var errNoTextEngine = errors.New("text extraction unavailable")

// pdfSource reads images through the object graph and text through the
// configured text backend.
type pdfSource struct {
	images *pdfimage.Document
	text   pdftext.Document
}

// OpenPDF is the default Opener. A document whose object graph cannot be
// parsed is an error; a text backend failure only loses the page text.
func OpenPDF(data []byte, log *zap.Logger) (Source, error) {
	images, err := pdfimage.Open(bytes.NewReader(data), log)
	if err != nil {
		return nil, err
	}
	text, err := pdftext.Open(data)
	if err != nil {
		log.Warn("text extraction unavailable", zap.String("backend", pdftext.Backend), zap.Error(err))
	}
	return &pdfSource{images: images, text: text}, nil
}

func (s *pdfSource) NumPages() int { return s.images.PageCount() }

func (s *pdfSource) PageText(pageNr int) (string, error) {
	if s.text == nil {
		return "", errNoTextEngine
	}
	return s.text.PageText(pageNr)
}

func (s *pdfSource) PageImages(pageNr int) ([]imaging.Raw, error) {
	return s.images.PageImages(pageNr)
}

func (s *pdfSource) Close() error {
	if s.text != nil {
		return s.text.Close()
	}
	return nil
}
