package enrich

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nicholasgasior/markitdown-enrich/internal/describe"
	"github.com/nicholasgasior/markitdown-enrich/internal/imaging"
	"github.com/nicholasgasior/markitdown-enrich/internal/testutil/pdfbuild"
)

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 3), G: uint8(y * 3), B: 0x80, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func jpegRaw(t *testing.T, index int) imaging.Raw {
	return imaging.Raw{Index: index, Name: "Im", Filters: []string{"DCTDecode"}, Width: 64, Height: 48, Data: testJPEG(t, 64, 48)}
}

type page struct {
	text    string
	textErr error
	images  []imaging.Raw
}

type fakeSource struct {
	pages      []page
	imageCalls int
	closed     bool
}

func (s *fakeSource) NumPages() int { return len(s.pages) }

func (s *fakeSource) PageText(n int) (string, error) {
	return s.pages[n-1].text, s.pages[n-1].textErr
}

func (s *fakeSource) PageImages(n int) ([]imaging.Raw, error) {
	s.imageCalls++
	return s.pages[n-1].images, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

// scriptedProvider answers calls in order.
type scriptedProvider struct {
	replies []string
	calls   int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Describe(_ context.Context, img describe.Image) describe.Result {
	if img.MIME != imaging.MIMEJPEG || img.Base64 == "" {
		return describe.Result{Outcome: describe.Failed}
	}
	reply := p.replies[p.calls]
	p.calls++
	return describe.Interpret(reply)
}

func pipeline(t *testing.T, src *fakeSource, provider describe.Provider, log *zap.Logger) *Pipeline {
	t.Helper()
	if log == nil {
		log = zaptest.NewLogger(t)
	}
	return New(provider, log, WithOpener(func([]byte, *zap.Logger) (Source, error) { return src, nil }))
}

func convert(t *testing.T, p *Pipeline, opts Options) string {
	t.Helper()
	out, err := p.Convert(context.Background(), strings.NewReader("%PDF"), opts)
	require.NoError(t, err)
	return out
}

func TestConvertPreservesOrder(t *testing.T) {
	src := &fakeSource{pages: []page{
		{text: "Page one", images: []imaging.Raw{jpegRaw(t, 1), jpegRaw(t, 2)}},
		{text: "Page two", images: []imaging.Raw{jpegRaw(t, 1)}},
	}}
	provider := &scriptedProvider{replies: []string{"first", "second", "third"}}

	out := convert(t, pipeline(t, src, provider, nil), Options{RequestID: "r1"})
	assert.Equal(t, "Page one\n\nfirst\n\nsecond\n\nPage two\n\nthird", out)
	assert.True(t, src.closed)
}

func TestConvertIsolatesImageFailures(t *testing.T) {
	broken := imaging.Raw{Index: 2, Filters: []string{"FlateDecode"}, Data: []byte("garbage")}
	src := &fakeSource{pages: []page{{images: []imaging.Raw{jpegRaw(t, 1), broken, jpegRaw(t, 3)}}}}
	provider := &scriptedProvider{replies: []string{"one", "three"}}

	out := convert(t, pipeline(t, src, provider, nil), Options{IncludeImages: true})
	assert.Equal(t, 2, provider.calls)
	assert.Contains(t, out, "![Image 1 on Page 1]")
	assert.Contains(t, out, "![Image 3 on Page 1]")
	assert.NotContains(t, out, "Image 2 on Page 1")
	assert.Less(t, strings.Index(out, "one"), strings.Index(out, "three"))
}

func TestConvertOmitsSkippedAndFailedDescriptions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	src := &fakeSource{pages: []page{{text: "Body", images: []imaging.Raw{jpegRaw(t, 1), jpegRaw(t, 2), jpegRaw(t, 3)}}}}
	provider := &scriptedProvider{replies: []string{"SKIP", "", "kept"}}

	out := convert(t, pipeline(t, src, provider, zap.New(core)), Options{RequestID: "req-7"})
	assert.Equal(t, "Body\n\nkept", out)

	decorative := logs.FilterMessage("image marked decorative").All()
	require.Len(t, decorative, 1)
	assert.Equal(t, zapcore.InfoLevel, decorative[0].Level)
	assert.Equal(t, "req-7", decorative[0].ContextMap()["request_id"])
	assert.EqualValues(t, 1, decorative[0].ContextMap()["image"])
	assert.Zero(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestAssemblePageCountsOutcomes(t *testing.T) {
	tiny := imaging.Raw{Index: 4, Filters: []string{"DCTDecode"}, Data: []byte{0xff, 0xd8, 0xff}}
	src := &fakeSource{pages: []page{{images: []imaging.Raw{
		jpegRaw(t, 1), jpegRaw(t, 2), {Index: 3, Data: []byte("text")}, tiny,
	}}}}
	p := pipeline(t, src, &scriptedProvider{replies: []string{"a", "skip"}}, nil)

	frags, stats := p.AssemblePage(context.Background(), src, 1, Options{})
	require.Len(t, frags, 1)
	assert.Equal(t, Fragment{Page: 1, Image: 1, Text: "a"}, frags[0])
	assert.Equal(t, PageStats{Images: 4, Described: 1, Unsupported: 1, Rejected: 1, Decorative: 1}, stats)
	assert.Equal(t, 3, stats.Skipped())
}

func TestAssemblePageRecoversImagePanic(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	src := &fakeSource{pages: []page{{images: []imaging.Raw{jpegRaw(t, 1), jpegRaw(t, 2), jpegRaw(t, 3)}}}}
	provider := &scriptedProvider{replies: []string{"one", "three"}}
	p := pipeline(t, src, provider, zap.New(core))
	p.normalize = func(raw imaging.Raw) (imaging.Normalized, error) {
		if raw.Index == 2 {
			panic("corrupt sample table")
		}
		return imaging.Normalize(raw)
	}

	frags, stats := p.AssemblePage(context.Background(), src, 1, Options{})
	require.Len(t, frags, 2)
	assert.Equal(t, 1, frags[0].Image)
	assert.Equal(t, 3, frags[1].Image)
	assert.Equal(t, "one", frags[0].Text)
	assert.Equal(t, "three", frags[1].Text)
	assert.Equal(t, PageStats{Images: 3, Described: 2, Unsupported: 1}, stats)

	panics := logs.FilterMessage("image processing panicked").All()
	require.Len(t, panics, 1)
	assert.Equal(t, zapcore.WarnLevel, panics[0].Level)
	assert.EqualValues(t, 2, panics[0].ContextMap()["image"])
	assert.Equal(t, "Im", panics[0].ContextMap()["xobject"])
}

func TestConvertTextFailureIsNotFatal(t *testing.T) {
	src := &fakeSource{pages: []page{
		{textErr: errors.New("bad content stream"), images: []imaging.Raw{jpegRaw(t, 1)}},
		{text: "after"},
	}}
	out := convert(t, pipeline(t, src, &scriptedProvider{replies: []string{"described"}}, nil), Options{})
	assert.Equal(t, "described\n\nafter", out)
}

func TestConvertWithoutProviderIsTextOnly(t *testing.T) {
	src := &fakeSource{pages: []page{{text: "just text", images: []imaging.Raw{jpegRaw(t, 1)}}}}
	out := convert(t, pipeline(t, src, nil, nil), Options{IncludeImages: true})
	assert.Equal(t, "just text", out)
	assert.Zero(t, src.imageCalls)
}

func TestConvertUnreadableDocument(t *testing.T) {
	p := New(&scriptedProvider{}, zaptest.NewLogger(t),
		WithOpener(func([]byte, *zap.Logger) (Source, error) { return nil, errors.New("no xref") }))
	_, err := p.Convert(context.Background(), strings.NewReader("junk"), Options{})
	assert.ErrorIs(t, err, ErrUnreadableDocument)
}

func TestRender(t *testing.T) {
	assert.Equal(t, "", Render(nil))
	assert.Equal(t, "a\n\nb", Render([]Fragment{{Text: "  a"}, {Text: "b\n"}}))
}

func TestConvertPDF(t *testing.T) {
	jpg := testJPEG(t, 64, 48)
	data := pdfbuild.Document{Pages: []pdfbuild.Page{{
		Text:   "Hello",
		Images: []pdfbuild.Image{{Name: "Im1", Filter: "DCTDecode", Width: 64, Height: 48, Data: jpg}},
	}}}.Bytes()

	t.Run("embedded", func(t *testing.T) {
		p := New(&scriptedProvider{replies: []string{"A chart showing sales."}}, zaptest.NewLogger(t))
		out, err := p.Convert(context.Background(), bytes.NewReader(data), Options{IncludeImages: true})
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(out, "Hello"), out)
		img := strings.Index(out, "![Image 1 on Page 1](data:image/jpeg;base64,")
		require.GreaterOrEqual(t, img, 0, out)
		assert.Greater(t, strings.Index(out, "A chart showing sales."), img)
	})

	t.Run("description only", func(t *testing.T) {
		p := New(&scriptedProvider{replies: []string{"A chart showing sales."}}, zaptest.NewLogger(t))
		out, err := p.Convert(context.Background(), bytes.NewReader(data), Options{IncludeImages: false})
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(out, "Hello"), out)
		assert.True(t, strings.HasSuffix(out, "\n\nA chart showing sales."), out)
		assert.NotContains(t, out, "data:")
	})

	t.Run("not a pdf", func(t *testing.T) {
		p := New(&scriptedProvider{}, zaptest.NewLogger(t))
		_, err := p.Convert(context.Background(), strings.NewReader("plain text"), Options{})
		assert.ErrorIs(t, err, ErrUnreadableDocument)
	})
}
