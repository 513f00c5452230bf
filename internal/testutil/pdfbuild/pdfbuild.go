// Package pdfbuild writes small, well-formed PDF files for tests.
package pdfbuild

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"strings"
)

// Image is an image XObject. Data is written verbatim; Filter names the
// encoding already applied to it.
type Image struct {
	Name             string
	Filter           string
	DecodeParms      string
	Width            int
	Height           int
	BitsPerComponent int
	ColorSpace       string
	Data             []byte
}

// Form is a form XObject drawing the given images.
type Form struct {
	Name   string
	Images []Image
}

// Page is one page with a single text run and any number of XObjects.
type Page struct {
	Text   string
	Images []Image
	Forms  []Form
}

// Document describes the whole file. Inherited images live in the
// resources of the page tree root and are visible to every page.
type Document struct {
	Pages     []Page
	Inherited []Image
}

// Deflate compresses data the way FlateDecode expects it.
func Deflate(data []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, _ = zw.Write(data)
	_ = zw.Close()
	return buf.Bytes()
}

type writer struct {
	objects [][]byte
}

// reserve allocates an object number to be filled in later.
func (w *writer) reserve() int {
	w.objects = append(w.objects, nil)
	return len(w.objects)
}

func (w *writer) set(num int, body string) {
	w.objects[num-1] = []byte(body)
}

func (w *writer) add(body string) int {
	n := w.reserve()
	w.set(n, body)
	return n
}

func (w *writer) stream(dict string, data []byte) int {
	var b bytes.Buffer
	fmt.Fprintf(&b, "<< %s /Length %d >>\nstream\n", dict, len(data))
	b.Write(data)
	b.WriteString("\nendstream")
	n := w.reserve()
	w.objects[n-1] = b.Bytes()
	return n
}

func (w *writer) image(img Image) int {
	bpc := img.BitsPerComponent
	if bpc == 0 {
		bpc = 8
	}
	cs := img.ColorSpace
	if cs == "" {
		cs = "DeviceRGB"
	}
	dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /%s /BitsPerComponent %d",
		img.Width, img.Height, cs, bpc)
	if img.Filter != "" {
		dict += " /Filter /" + img.Filter
	}
	if img.DecodeParms != "" {
		dict += " /DecodeParms << " + img.DecodeParms + " >>"
	}
	return w.stream(dict, img.Data)
}

func (w *writer) xobjects(images []Image, forms []Form) (string, string) {
	var entries, draws strings.Builder
	for _, img := range images {
		fmt.Fprintf(&entries, " /%s %d 0 R", img.Name, w.image(img))
		fmt.Fprintf(&draws, "q 100 0 0 100 72 300 cm /%s Do Q\n", img.Name)
	}
	for _, f := range forms {
		inner, content := w.xobjects(f.Images, nil)
		dict := fmt.Sprintf("/Type /XObject /Subtype /Form /BBox [0 0 612 792] /Resources << /XObject <<%s >> >>", inner)
		fmt.Fprintf(&entries, " /%s %d 0 R", f.Name, w.stream(dict, []byte(content)))
		fmt.Fprintf(&draws, "/%s Do\n", f.Name)
	}
	return entries.String(), draws.String()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

func textOps(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString("BT /F1 12 Tf 14 TL 72 720 Td\n")
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteString("T*\n")
		}
		fmt.Fprintf(&b, "(%s) Tj\n", escape(line))
	}
	b.WriteString("ET\n")
	return b.String()
}

// Bytes renders the document with a classic cross-reference table.
func (d Document) Bytes() []byte {
	w := &writer{}
	catalog := w.reserve()
	root := w.reserve()
	font := w.add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	inherited, _ := w.xobjects(d.Inherited, nil)

	kids := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		entries, draws := w.xobjects(p.Images, p.Forms)
		content := w.stream("", []byte(textOps(p.Text)+draws))

		res := fmt.Sprintf("/Font << /F1 %d 0 R >>", font)
		if entries != "" {
			res += " /XObject <<" + entries + " >>"
		}
		if entries == "" && inherited != "" {
			// Leave Resources off so the page inherits from the tree root.
			kids = append(kids, fmt.Sprintf("%d 0 R", w.add(fmt.Sprintf(
				"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Contents %d 0 R >>", root, content))))
			continue
		}
		kids = append(kids, fmt.Sprintf("%d 0 R", w.add(fmt.Sprintf(
			"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources << %s >> /Contents %d 0 R >>",
			root, res, content))))
	}

	rootRes := fmt.Sprintf("/Font << /F1 %d 0 R >>", font)
	if inherited != "" {
		rootRes += " /XObject <<" + inherited + " >>"
	}
	w.set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", root))
	w.set(root, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /Resources << %s >> >>",
		strings.Join(kids, " "), len(kids), rootRes))

	var out bytes.Buffer
	out.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(w.objects))
	for i, body := range w.objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n", i+1)
		out.Write(body)
		out.WriteString("\nendobj\n")
	}
	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(w.objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(w.objects)+1, catalog, xref)
	return out.Bytes()
}
