package testutil

import (
	"bytes"
	"compress/zlib"
	"crypto/md5" //nolint:gosec // required by the PDF standard security handler
	"crypto/rc4" //nolint:gosec // required by the PDF standard security handler
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// GlyphWidth is the advance, in thousandths of text space, of every glyph of
// the builder's font.
const GlyphWidth = 500

// GlyphDescent is the descent of the builder's font in thousandths.
const GlyphDescent = -200

// PDFImage is a grayscale image XObject, one byte per pixel.
type PDFImage struct {
	Width   int
	Height  int
	Pixels  []byte
	// Corrupt replaces the compressed stream with bytes that do not inflate.
	Corrupt bool
}

// PDFForm is a form XObject. Its content can use font F1 and the page images.
type PDFForm struct {
	BBox    [4]float64
	Matrix  []float64
	Content string
}

// PDFPage describes one page. Zero Width/Height mean US Letter.
type PDFPage struct {
	Width   float64
	Height  float64
	Rotate  int
	Content string
	Images  map[string]PDFImage
	Forms   map[string]PDFForm
}

// PDFBuilder writes small, well-formed PDF files for tests. Every page gets
// font F1, a Helvetica with fixed widths.
type PDFBuilder struct {
	pages []PDFPage
	perms *int32
}

// NewPDF returns an empty builder.
func NewPDF() *PDFBuilder {
	return &PDFBuilder{}
}

// AddPage appends a page.
func (b *PDFBuilder) AddPage(p PDFPage) *PDFBuilder {
	b.pages = append(b.pages, p)
	return b
}

// AddTextPage appends a US Letter page with one line of text per entry of
// lines, 12pt, starting at (72, 720) and moving down 20pt per line.
func (b *PDFBuilder) AddTextPage(lines ...string) *PDFBuilder {
	var sb strings.Builder
	for i, l := range lines {
		sb.WriteString(TextOp(72, 720-float64(i)*20, 12, l))
	}
	return b.AddPage(PDFPage{Content: sb.String()})
}

// Encrypt adds a standard security handler with an empty user password and
// the given permission bits. Pages of an encrypted document must not contain
// strings or streams, since the builder does not encrypt them.
func (b *PDFBuilder) Encrypt(perms int32) *PDFBuilder {
	b.perms = &perms
	return b
}

// TextOp returns a content-stream snippet drawing text with font F1.
func TextOp(x, y, size float64, text string) string {
	return fmt.Sprintf("BT /F1 %g Tf %g %g Td (%s) Tj ET\n", size, x, y, escapeString(text))
}

// ImageOp returns a content-stream snippet drawing image name into the
// rectangle (x, y, w, h).
func ImageOp(name string, x, y, w, h float64) string {
	return fmt.Sprintf("q %g 0 0 %g %g %g cm /%s Do Q\n", w, h, x, y, name)
}

func escapeString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

type pdfWriter struct {
	buf     bytes.Buffer
	offsets []int
}

func (w *pdfWriter) reserve() int {
	w.offsets = append(w.offsets, 0)
	return len(w.offsets)
}

func (w *pdfWriter) object(id int, body string) {
	w.offsets[id-1] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n%s\nendobj\n", id, body)
}

func (w *pdfWriter) stream(id int, dict string, data []byte) {
	w.offsets[id-1] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", id, dict, len(data))
	w.buf.Write(data)
	w.buf.WriteString("\nendstream\nendobj\n")
}

// Bytes renders the document.
func (b *PDFBuilder) Bytes() []byte {
	w := &pdfWriter{}
	w.buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	catalog := w.reserve()
	pages := w.reserve()
	font := w.reserve()

	widths := make([]string, 0, 126-32+1)
	for c := 32; c <= 126; c++ {
		widths = append(widths, fmt.Sprint(GlyphWidth))
	}

	var kids []string
	type pendingPage struct {
		id   int
		page PDFPage
	}
	var pending []pendingPage
	for _, p := range b.pages {
		id := w.reserve()
		kids = append(kids, fmt.Sprintf("%d 0 R", id))
		pending = append(pending, pendingPage{id: id, page: p})
	}

	w.object(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pages))
	w.object(pages, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids)))
	w.object(font, fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding "+
		"/FirstChar 32 /LastChar 126 /Widths [%s] "+
		"/FontDescriptor << /Type /FontDescriptor /FontName /Helvetica /Flags 32 /FontBBox [-166 -225 1000 931] "+
		"/ItalicAngle 0 /Ascent 718 /Descent %d /CapHeight 718 /StemV 88 >> >>",
		strings.Join(widths, " "), GlyphDescent))

	for _, pp := range pending {
		b.writePage(w, pp.id, pages, font, pp.page)
	}

	var trailerExtra string
	if b.perms != nil {
		enc := w.reserve()
		w.object(enc, encryptDict(*b.perms))
		trailerExtra = fmt.Sprintf(" /Encrypt %d 0 R", enc)
	}

	xref := w.buf.Len()
	fmt.Fprintf(&w.buf, "xref\n0 %d\n0000000000 65535 f \n", len(w.offsets)+1)
	for _, off := range w.offsets {
		fmt.Fprintf(&w.buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&w.buf, "trailer\n<< /Size %d /Root %d 0 R /ID [<%s> <%s>]%s >>\nstartxref\n%d\n%%%%EOF\n",
		len(w.offsets)+1, catalog, documentIDHex, documentIDHex, trailerExtra, xref)

	return w.buf.Bytes()
}

func (b *PDFBuilder) writePage(w *pdfWriter, id, parent, font int, p PDFPage) {
	width, height := p.Width, p.Height
	if width == 0 {
		width = 612
	}
	if height == 0 {
		height = 792
	}

	var xobjects []string
	for _, name := range sortedKeys(p.Images) {
		img := p.Images[name]
		data := deflate(img.Pixels)
		if img.Corrupt {
			data = []byte("not deflate data")
		}
		imgID := w.reserve()
		w.stream(imgID, fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d "+
			"/ColorSpace /DeviceGray /BitsPerComponent 8 /Filter /FlateDecode", img.Width, img.Height),
			data)
		xobjects = append(xobjects, fmt.Sprintf("/%s %d 0 R", name, imgID))
	}
	imageDict := strings.Join(xobjects, " ")

	for _, name := range sortedKeys(p.Forms) {
		form := p.Forms[name]
		formID := w.reserve()
		matrix := ""
		if len(form.Matrix) == 6 {
			matrix = fmt.Sprintf("/Matrix [%g %g %g %g %g %g] ",
				form.Matrix[0], form.Matrix[1], form.Matrix[2], form.Matrix[3], form.Matrix[4], form.Matrix[5])
		}
		w.stream(formID, fmt.Sprintf("/Type /XObject /Subtype /Form /BBox [%g %g %g %g] %s"+
			"/Resources << /Font << /F1 %d 0 R >> /XObject << %s >> >>",
			form.BBox[0], form.BBox[1], form.BBox[2], form.BBox[3], matrix, font, imageDict),
			[]byte(form.Content))
		xobjects = append(xobjects, fmt.Sprintf("/%s %d 0 R", name, formID))
	}

	var contents string
	if p.Content != "" {
		contentID := w.reserve()
		w.stream(contentID, "", []byte(p.Content))
		contents = fmt.Sprintf(" /Contents %d 0 R", contentID)
	}

	rotate := ""
	if p.Rotate != 0 {
		rotate = fmt.Sprintf(" /Rotate %d", p.Rotate)
	}

	w.object(id, fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %g %g]%s%s "+
		"/Resources << /Font << /F1 %d 0 R >> /XObject << %s >> >> >>",
		parent, width, height, rotate, contents, font, strings.Join(xobjects, " ")))
}

// WriteFile renders the document to path.
func (b *PDFBuilder) WriteFile(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o600))
	return path
}

func deflate(data []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, _ = zw.Write(data)
	_ = zw.Close()
	return buf.Bytes()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

const documentIDHex = "00112233445566778899aabbccddeeff"

var passwordPad = []byte{
	0x28, 0xbf, 0x4e, 0x5e, 0x4e, 0x75, 0x8a, 0x41, 0x64, 0x00, 0x4e, 0x56, 0xff, 0xfa, 0x01, 0x08,
	0x2e, 0x2e, 0x00, 0xb6, 0xd0, 0x68, 0x3e, 0x80, 0x2f, 0x0c, 0xa9, 0xfe, 0x64, 0x53, 0x69, 0x7a,
}

// encryptDict builds a revision 2 standard security handler dictionary for
// an empty user password.
func encryptDict(perms int32) string {
	o := bytes.Repeat([]byte{0x5a}, 32)
	id := []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}

	p := uint32(perms)
	h := md5.New() //nolint:gosec // required by the PDF standard security handler
	h.Write(passwordPad)
	h.Write(o)
	h.Write([]byte{byte(p), byte(p >> 8), byte(p >> 16), byte(p >> 24)})
	h.Write(id)
	key := h.Sum(nil)[:5]

	c, _ := rc4.NewCipher(key) //nolint:gosec // required by the PDF standard security handler
	u := make([]byte, 32)
	c.XORKeyStream(u, passwordPad)

	return fmt.Sprintf("<< /Filter /Standard /V 1 /R 2 /Length 40 /O <%x> /U <%x> /P %d >>", o, u, perms)
}
