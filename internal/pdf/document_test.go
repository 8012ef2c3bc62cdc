package pdf

import (
	"bytes"
	"errors"
	"image"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/pdflabels/internal/coords"
	"github.com/MeKo-Tech/pdflabels/internal/layout"
	"github.com/MeKo-Tech/pdflabels/internal/testutil"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBuilt(t *testing.T, b *testutil.PDFBuilder) *Document {
	t.Helper()
	path := b.WriteFile(t, filepath.Join(testutil.CreateTempDir(t), "doc.pdf"))
	doc, err := Open(path, Options{Layout: layout.DefaultParams()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = doc.Close() })
	return doc
}

func collect[T layout.Node](root layout.Node) []T {
	var out []T
	layout.Walk(root, func(n layout.Node) bool {
		if v, ok := n.(T); ok {
			out = append(out, v)
		}
		return true
	})
	return out
}

func TestOpen_TextPage(t *testing.T) {
	doc := openBuilt(t, testutil.NewPDF().AddTextPage("Hello World", "second line"))
	require.Equal(t, 1, doc.NumPages())

	page, err := doc.Page(0)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Index)
	assert.Equal(t, coords.BBox{X1: 612, Y1: 792}, page.BBox)

	lines := collect[*layout.TextLine](page.Root)
	require.Len(t, lines, 2)
	assert.Equal(t, "Hello World\n", lines[0].Text)
	assert.Equal(t, "second line\n", lines[1].Text)

	first := lines[0]
	assert.InDelta(t, 72.0, first.Box.X0, 1e-9)
	assert.InDelta(t, 720.0-2.4, first.Box.Y0, 1e-9)
	assert.InDelta(t, 72.0+11*6, first.Box.X1, 1e-9)
	assert.InDelta(t, 720.0-2.4+12, first.Box.Y1, 1e-9)

	ch, ok := first.Children[0].(*layout.Char)
	require.True(t, ok)
	assert.Equal(t, "H", ch.Text)
	assert.Equal(t, "Helvetica", ch.FontName)
	assert.InDelta(t, 12.0, ch.Size, 1e-9)
	assert.True(t, ch.Upright)
}

func TestOpen_MultiplePages(t *testing.T) {
	doc := openBuilt(t, testutil.NewPDF().
		AddTextPage("one").
		AddPage(testutil.PDFPage{Width: 300, Height: 400}).
		AddTextPage("three"))
	require.Equal(t, 3, doc.NumPages())

	p1, err := doc.Page(1)
	require.NoError(t, err)
	assert.Equal(t, coords.BBox{X1: 300, Y1: 400}, p1.BBox)
	assert.Empty(t, p1.Root.Children)

	p2, err := doc.Page(2)
	require.NoError(t, err)
	lines := collect[*layout.TextLine](p2.Root)
	require.Len(t, lines, 1)
	assert.Equal(t, "three\n", lines[0].Text)

	_, err = doc.Page(3)
	require.Error(t, err)
	_, err = doc.Page(-1)
	require.Error(t, err)
}

func TestOpen_RotatedPage(t *testing.T) {
	doc := openBuilt(t, testutil.NewPDF().AddPage(testutil.PDFPage{
		Rotate:  90,
		Content: testutil.TextOp(100, 100, 10, "up"),
	}))

	page, err := doc.Page(0)
	require.NoError(t, err)
	assert.Equal(t, coords.BBox{X1: 792, Y1: 612}, page.BBox)

	chars := collect[*layout.Char](page.Root)
	require.Len(t, chars, 2)
	// Rotating the page turns horizontal text into a vertical run.
	assert.False(t, chars[0].Upright)
	// The glyph spans user y 98..108, which becomes x after the turn.
	assert.InDelta(t, 98.0, chars[0].Box.X0, 1e-9)
	assert.InDelta(t, 507.0, chars[0].Box.Y0, 1e-9)
}

func TestOpen_TextMatrixAndTJ(t *testing.T) {
	content := "BT /F1 10 Tf 2 0 0 2 50 500 Tm [(A) -500 (B)] TJ ET\n"
	doc := openBuilt(t, testutil.NewPDF().AddPage(testutil.PDFPage{Content: content}))

	page, err := doc.Page(0)
	require.NoError(t, err)
	chars := collect[*layout.Char](page.Root)
	require.Len(t, chars, 2)

	// Glyphs are 5 units wide at 10pt and doubled by the text matrix.
	assert.InDelta(t, 50.0, chars[0].Box.X0, 1e-9)
	assert.InDelta(t, 60.0, chars[0].Box.X1, 1e-9)
	assert.InDelta(t, 20.0, chars[0].Size, 1e-9)
	// The -500 adjustment moves the pen right by half an em.
	assert.InDelta(t, 70.0, chars[1].Box.X0, 1e-9)

	lines := collect[*layout.TextLine](page.Root)
	require.Len(t, lines, 1)
	assert.Equal(t, "A B\n", lines[0].Text)
}

func TestOpen_TJGapAtCharMarginSplitsLine(t *testing.T) {
	// A full em gap equals the char margin of two glyph widths exactly.
	content := "BT /F1 10 Tf 2 0 0 2 50 500 Tm [(A) -1000 (B)] TJ ET\n"
	doc := openBuilt(t, testutil.NewPDF().AddPage(testutil.PDFPage{Content: content}))

	page, err := doc.Page(0)
	require.NoError(t, err)
	chars := collect[*layout.Char](page.Root)
	require.Len(t, chars, 2)
	assert.InDelta(t, 80.0, chars[1].Box.X0, 1e-9)

	lines := collect[*layout.TextLine](page.Root)
	require.Len(t, lines, 2)
	assert.Equal(t, "A\n", lines[0].Text)
	assert.Equal(t, "B\n", lines[1].Text)
}

func TestOpen_GraphicsStateStack(t *testing.T) {
	content := "q 1 0 0 1 100 0 cm Q " + testutil.TextOp(10, 10, 10, "x")
	doc := openBuilt(t, testutil.NewPDF().AddPage(testutil.PDFPage{Content: content}))

	page, err := doc.Page(0)
	require.NoError(t, err)
	chars := collect[*layout.Char](page.Root)
	require.Len(t, chars, 1)
	assert.InDelta(t, 10.0, chars[0].Box.X0, 1e-9)
}

func TestOpen_ImagePlacement(t *testing.T) {
	pixels := make([]byte, 8*4)
	for i := range pixels {
		pixels[i] = byte(i * 8)
	}
	doc := openBuilt(t, testutil.NewPDF().AddPage(testutil.PDFPage{
		Content: testutil.TextOp(72, 700, 12, "caption") + testutil.ImageOp("Im0", 100, 200, 50, 40),
		Images:  map[string]testutil.PDFImage{"Im0": {Width: 8, Height: 4, Pixels: pixels}},
	}))

	page, err := doc.Page(0)
	require.NoError(t, err)

	require.Len(t, page.Root.Children, 2)
	fig, ok := page.Root.Children[1].(*layout.Container)
	require.True(t, ok)
	assert.Equal(t, layout.KindFigure, fig.Kind)
	assert.Equal(t, coords.BBox{X0: 100, Y0: 200, X1: 150, Y1: 240}, fig.Box)

	images := collect[*layout.Image](page.Root)
	require.Len(t, images, 1)
	img := images[0]
	assert.Equal(t, "Im0", img.Name)
	assert.Equal(t, 8, img.Width)
	assert.Equal(t, 4, img.Height)
	assert.Equal(t, fig.Box, img.Box)
	require.NotNil(t, img.Source)

	rc, ext, err := img.Source.Open()
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	assert.NotEmpty(t, ext)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	if ext == ".png" {
		decoded, _, err := image.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 8, decoded.Bounds().Dx())
	}
}

func TestOpen_FormXObjectBecomesFigure(t *testing.T) {
	doc := openBuilt(t, testutil.NewPDF().AddPage(testutil.PDFPage{
		Content: "q 1 0 0 1 100 100 cm /Fm0 Do Q\n",
		Forms: map[string]testutil.PDFForm{
			"Fm0": {BBox: [4]float64{0, 0, 200, 50}, Content: testutil.TextOp(10, 10, 10, "in form")},
		},
	}))

	page, err := doc.Page(0)
	require.NoError(t, err)
	require.Len(t, page.Root.Children, 1)

	fig, ok := page.Root.Children[0].(*layout.Container)
	require.True(t, ok)
	assert.Equal(t, layout.KindFigure, fig.Kind)
	assert.Equal(t, "Fm0", fig.Name)
	assert.Equal(t, coords.BBox{X0: 100, Y0: 100, X1: 300, Y1: 150}, fig.Box)

	// Without AllTexts the glyphs inside a figure stay loose.
	assert.Len(t, fig.Children, 7)
	ch := fig.Children[0].(*layout.Char)
	assert.InDelta(t, 110.0, ch.Box.X0, 1e-9)
	assert.Empty(t, collect[*layout.TextLine](page.Root))
}

func TestOpen_FormTextGroupedWithAllTexts(t *testing.T) {
	b := testutil.NewPDF().AddPage(testutil.PDFPage{
		Content: "/Fm0 Do\n",
		Forms: map[string]testutil.PDFForm{
			"Fm0": {BBox: [4]float64{0, 0, 200, 50}, Content: testutil.TextOp(10, 10, 10, "in form")},
		},
	})
	path := b.WriteFile(t, filepath.Join(testutil.CreateTempDir(t), "form.pdf"))

	params := layout.DefaultParams()
	params.AllTexts = true
	doc, err := Open(path, Options{Layout: params})
	require.NoError(t, err)

	page, err := doc.Page(0)
	require.NoError(t, err)
	lines := collect[*layout.TextLine](page.Root)
	require.Len(t, lines, 1)
	assert.Equal(t, "in form\n", lines[0].Text)
}

func TestOpen_ExtractionPermissions(t *testing.T) {
	dir := testutil.CreateTempDir(t)

	denied := testutil.NewPDF().AddPage(testutil.PDFPage{}).Encrypt(-64).
		WriteFile(t, filepath.Join(dir, "denied.pdf"))
	_, err := Open(denied, Options{})
	require.ErrorIs(t, err, ErrExtractionDenied)

	allowed := testutil.NewPDF().AddPage(testutil.PDFPage{}).Encrypt(-4).
		WriteFile(t, filepath.Join(dir, "allowed.pdf"))
	doc, err := Open(allowed, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, doc.NumPages())
}

func TestOpen_PasswordProtected(t *testing.T) {
	tests := []struct {
		name    string
		userPW  string
		perms   model.PermissionFlags
		creds   Credentials
		wantErr bool
		denied  bool
	}{
		{name: "owner password only", perms: model.PermissionsAll},
		{
			name:   "user password supplied",
			userPW: "user",
			perms:  model.PermissionsAll,
			creds:  Credentials{UserPassword: "user"},
		},
		{name: "user password missing", userPW: "user", perms: model.PermissionsAll, wantErr: true},
		{name: "extraction forbidden", perms: model.PermissionsNone, wantErr: true, denied: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := testutil.CreateTempDir(t)
			plain := testutil.NewPDF().AddTextPage("Secret text").WriteFile(t, filepath.Join(dir, "plain.pdf"))
			locked := filepath.Join(dir, "locked.pdf")

			conf := model.NewAESConfiguration(tt.userPW, "owner", 256)
			conf.Permissions = tt.perms
			require.NoError(t, api.EncryptFile(plain, locked, conf))

			doc, err := Open(locked, Options{Credentials: tt.creds, Layout: layout.DefaultParams()})
			if tt.wantErr {
				require.Error(t, err)
				if tt.denied {
					assert.ErrorIs(t, err, ErrExtractionDenied)
				} else {
					assert.NotErrorIs(t, err, ErrExtractionDenied)
				}
				return
			}
			require.NoError(t, err)
			defer func() { _ = doc.Close() }()

			page, err := doc.Page(0)
			require.NoError(t, err)
			lines := collect[*layout.TextLine](page.Root)
			require.Len(t, lines, 1)
			assert.Equal(t, "Secret text\n", lines[0].Text)
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	dir := testutil.CreateTempDir(t)

	_, err := Open(filepath.Join(dir, "missing.pdf"), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	garbage := filepath.Join(dir, "garbage.pdf")
	require.NoError(t, os.WriteFile(garbage, []byte("not a pdf at all"), 0o600))
	_, err = Open(garbage, Options{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrExtractionDenied)
}

func TestPermissionsError(t *testing.T) {
	require.NoError(t, permissionsError(-4))
	require.NoError(t, permissionsError(16))
	require.ErrorIs(t, permissionsError(-64), ErrExtractionDenied)
	require.ErrorIs(t, permissionsError(0), ErrExtractionDenied)
}

func TestIsPasswordError(t *testing.T) {
	assert.False(t, IsPasswordError(nil))
	assert.True(t, IsPasswordError(errors.New("encrypted PDF: invalid password")))
	assert.True(t, IsPasswordError(errors.New("unsupported PDF: encryption version V=5")))
	assert.False(t, IsPasswordError(errors.New("malformed PDF: missing xref")))
}

func TestRotationMatrixAndFrame(t *testing.T) {
	media := coords.BBox{X0: 10, Y0: 20, X1: 110, Y1: 220}
	tests := []struct {
		rotate int
		want   coords.BBox
	}{
		{0, coords.BBox{X1: 100, Y1: 200}},
		{90, coords.BBox{X1: 200, Y1: 100}},
		{180, coords.BBox{X1: 100, Y1: 200}},
		{270, coords.BBox{X1: 200, Y1: 100}},
	}
	for _, tt := range tests {
		ctm := rotationMatrix(media, tt.rotate)
		assert.Equal(t, tt.want, pageFrame(media, ctm), "rotate %d", tt.rotate)

		// The media box always lands on the frame.
		assert.Equal(t, tt.want, ctm.bounds(media), "rotate %d", tt.rotate)
	}
}
