package pdfimage

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/nicholasgasior/markitdown-enrich/internal/imaging"
	"github.com/nicholasgasior/markitdown-enrich/internal/testutil/pdfbuild"
)

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x40, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func open(t *testing.T, doc pdfbuild.Document) *Document {
	t.Helper()
	d, err := Open(bytes.NewReader(doc.Bytes()), zaptest.NewLogger(t))
	require.NoError(t, err)
	return d
}

func TestPageImagesOrderAndPayloads(t *testing.T) {
	jpg := testJPEG(t, 32, 24)
	pixels := bytes.Repeat([]byte{0x10, 0x20, 0x30}, 16*16)

	d := open(t, pdfbuild.Document{Pages: []pdfbuild.Page{
		{
			Text: "first",
			Images: []pdfbuild.Image{
				{Name: "Im10", Filter: "DCTDecode", Width: 32, Height: 24, Data: jpg},
				{Name: "Im2", Filter: "FlateDecode", Width: 16, Height: 16, Data: pdfbuild.Deflate(pixels)},
			},
		},
		{Text: "second"},
	}})
	require.Equal(t, 2, d.PageCount())

	images, err := d.PageImages(1)
	require.NoError(t, err)
	require.Len(t, images, 2)

	assert.Equal(t, "Im2", images[0].Name)
	assert.Equal(t, 1, images[0].Index)
	assert.Equal(t, []string{"FlateDecode"}, images[0].Filters)
	assert.Equal(t, pixels, images[0].Data, "flate stream is inflated")
	assert.Equal(t, 16, images[0].Width)
	assert.Equal(t, "DeviceRGB", images[0].ColorSpace)

	assert.Equal(t, "Im10", images[1].Name)
	assert.Equal(t, 2, images[1].Index)
	assert.Equal(t, jpg, images[1].Data, "DCT stream stays encoded")
	assert.Equal(t, imaging.EncodingJPEG, imaging.Classify(images[1].Filters))

	images, err = d.PageImages(2)
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestPageImagesInheritedResources(t *testing.T) {
	d := open(t, pdfbuild.Document{
		Pages:     []pdfbuild.Page{{Text: "inherits"}},
		Inherited: []pdfbuild.Image{{Name: "Shared", Filter: "DCTDecode", Width: 32, Height: 24, Data: testJPEG(t, 32, 24)}},
	})

	images, err := d.PageImages(1)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "Shared", images[0].Name)
}

func TestPageImagesInsideForms(t *testing.T) {
	d := open(t, pdfbuild.Document{Pages: []pdfbuild.Page{{
		Images: []pdfbuild.Image{{Name: "Im1", Filter: "DCTDecode", Width: 32, Height: 24, Data: testJPEG(t, 32, 24)}},
		Forms: []pdfbuild.Form{{
			Name:   "Fm1",
			Images: []pdfbuild.Image{{Name: "Im9", Filter: "DCTDecode", Width: 32, Height: 24, Data: testJPEG(t, 32, 24)}},
		}},
	}}})

	images, err := d.PageImages(1)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "Im9", images[0].Name)
	assert.Equal(t, "Im1", images[1].Name)
}

func TestPageImagesCCITTParams(t *testing.T) {
	d := open(t, pdfbuild.Document{Pages: []pdfbuild.Page{{
		Images: []pdfbuild.Image{{
			Name: "Fax", Filter: "CCITTFaxDecode", DecodeParms: "/K -1 /Columns 24 /BlackIs1 true",
			Width: 24, Height: 24, BitsPerComponent: 1, ColorSpace: "DeviceGray",
			Data: bytes.Repeat([]byte{0xff}, 72),
		}},
	}}})

	images, err := d.PageImages(1)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, -1, images[0].DecodeParms["K"])
	assert.Equal(t, 24, images[0].DecodeParms["Columns"])
	assert.Equal(t, 1, images[0].DecodeParms["BlackIs1"])
	assert.Equal(t, 1, images[0].BitsPerComponent)
}

func TestOpenRejectsGarbage(t *testing.T) {
	_, err := Open(bytes.NewReader([]byte("not a pdf at all")), zap.NewNop())
	assert.Error(t, err)
}

func TestNaturalSort(t *testing.T) {
	names := []string{"Im10", "Im2", "Im1", "Fm1", "X"}
	sortNatural(names)
	assert.Equal(t, []string{"Fm1", "Im1", "Im2", "Im10", "X"}, names)
}
