package support

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/pdflabels/internal/testutil"
	"github.com/cucumber/godog"
)

// writePDF renders b into the working directory.
func (testCtx *TestContext) writePDF(name string, b *testutil.PDFBuilder) error {
	path := testCtx.WorkPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	return os.WriteFile(path, b.Bytes(), 0o600)
}

// aPDFWithTheText creates a one-page PDF with a single line of text.
func (testCtx *TestContext) aPDFWithTheText(name, text string) error {
	return testCtx.writePDF(name, testutil.NewPDF().AddTextPage(text))
}

// aPDFWithTheLines creates a one-page PDF with one line of text per line of
// the doc string.
func (testCtx *TestContext) aPDFWithTheLines(name string, lines *godog.DocString) error {
	return testCtx.writePDF(name, testutil.NewPDF().AddTextPage(strings.Split(lines.Content, "\n")...))
}

// aPDFWithPages creates a PDF whose pages each carry "page <n>".
func (testCtx *TestContext) aPDFWithPages(name string, pages int) error {
	b := testutil.NewPDF()
	for i := 1; i <= pages; i++ {
		b.AddTextPage(fmt.Sprintf("page %d", i))
	}
	return testCtx.writePDF(name, b)
}

// aRotatedPDFWithTheText creates a one-page PDF turned by 90 degrees.
func (testCtx *TestContext) aRotatedPDFWithTheText(name, text string) error {
	return testCtx.writePDF(name, testutil.NewPDF().AddPage(testutil.PDFPage{
		Rotate:  90,
		Content: testutil.TextOp(100, 100, 10, text),
	}))
}

// aPDFThatForbidsTextExtraction creates an encrypted PDF without the
// extraction permission.
func (testCtx *TestContext) aPDFThatForbidsTextExtraction(name string) error {
	return testCtx.writePDF(name, testutil.NewPDF().AddPage(testutil.PDFPage{}).Encrypt(-64))
}

// aPDFWithAnEmbeddedImage creates a page with a caption at (72, 700) and an
// 8x4 image drawn into the rectangle (100, 200)-(150, 240).
func (testCtx *TestContext) aPDFWithAnEmbeddedImage(name, caption string) error {
	pixels := make([]byte, 8*4)
	for i := range pixels {
		pixels[i] = 0xff
	}
	return testCtx.writePDF(name, testutil.NewPDF().AddPage(testutil.PDFPage{
		Content: testutil.TextOp(72, 700, 12, caption) + testutil.ImageOp("Im0", 100, 200, 50, 40),
		Images:  map[string]testutil.PDFImage{"Im0": {Width: 8, Height: 4, Pixels: pixels}},
	}))
}

// RegisterPDFSteps registers the PDF fixture step definitions.
func (testCtx *TestContext) RegisterPDFSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a PDF "([^"]*)" with the text "([^"]*)"$`, testCtx.aPDFWithTheText)
	sc.Step(`^a PDF "([^"]*)" with the lines:$`, testCtx.aPDFWithTheLines)
	sc.Step(`^a PDF "([^"]*)" with (\d+) pages?$`, testCtx.aPDFWithPages)
	sc.Step(`^a rotated PDF "([^"]*)" with the text "([^"]*)"$`, testCtx.aRotatedPDFWithTheText)
	sc.Step(`^a PDF "([^"]*)" that forbids text extraction$`, testCtx.aPDFThatForbidsTextExtraction)
	sc.Step(`^a PDF "([^"]*)" with an embedded image and the caption "([^"]*)"$`, testCtx.aPDFWithAnEmbeddedImage)
}
