package testutil

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// HOCRLine is one ocr_line of a generated hOCR document.
type HOCRLine struct {
	Text string
	BBox [4]int
}

// HOCRDocument renders a tesseract-like hOCR page of the given pixel size.
// Words of each line become ocrx_word spans.
func HOCRDocument(width, height int, lines ...HOCRLine) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">
<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="en" lang="en">
 <head><title></title><meta name="ocr-system" content="tesseract" /></head>
 <body>
`)
	fmt.Fprintf(&sb, "  <div class='ocr_page' id='page_1' title='image \"image.png\"; bbox 0 0 %d %d; ppageno 0'>\n", width, height)
	sb.WriteString("   <div class='ocr_carea' id='block_1_1'>\n    <p class='ocr_par' id='par_1_1'>\n")
	for i, l := range lines {
		b := l.BBox
		fmt.Fprintf(&sb, "     <span class='ocr_line' id='line_1_%d' title='bbox %d %d %d %d; baseline 0 -3'>", i+1, b[0], b[1], b[2], b[3])
		for j, w := range strings.Fields(l.Text) {
			fmt.Fprintf(&sb, "<span class='ocrx_word' id='word_1_%d_%d' title='bbox %d %d %d %d; x_wconf 95'>%s</span> ",
				i+1, j+1, b[0], b[1], b[2], b[3], html.EscapeString(w))
		}
		sb.WriteString("</span>\n")
	}
	sb.WriteString("    </p>\n   </div>\n  </div>\n </body>\n</html>\n")
	return sb.String()
}

// HOCREngine is a fake OCR engine writing a fixed output. It has the method
// set of ocr.Engine.
type HOCREngine struct {
	// Output is written to <outBase><Ext> unless empty.
	Output string
	// Ext defaults to ".hocr".
	Ext string
	// Err is returned after the output was written.
	Err error

	calls     atomic.Int32
	languages atomic.Value
}

func (e *HOCREngine) Name() string { return "fake" }

func (e *HOCREngine) Recognize(ctx context.Context, imagePath, outBase, language string) error {
	e.calls.Add(1)
	e.languages.Store(language)

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(imagePath); err != nil {
		return fmt.Errorf("image not exported: %w", err)
	}
	if e.Output != "" {
		ext := e.Ext
		if ext == "" {
			ext = ".hocr"
		}
		if err := os.WriteFile(outBase+ext, []byte(e.Output), 0o600); err != nil {
			return err
		}
	}
	return e.Err
}

// Calls returns the number of Recognize calls.
func (e *HOCREngine) Calls() int { return int(e.calls.Load()) }

// LastLanguage returns the language of the last call.
func (e *HOCREngine) LastLanguage() string {
	s, _ := e.languages.Load().(string)
	return s
}

// BytesSource is an in-memory image source with the method set of
// layout.ImageSource.
type BytesSource struct {
	Data []byte
	Ext  string
	Err  error
}

func (s *BytesSource) Open() (io.ReadCloser, string, error) {
	if s.Err != nil {
		return nil, "", s.Err
	}
	return io.NopCloser(bytes.NewReader(s.Data)), s.Ext, nil
}

// FakeTesseractArgs is the file, next to the script, in which
// WriteFakeTesseract records the arguments of its last call.
const FakeTesseractArgs = "args.txt"

// WriteFakeTesseract writes an executable shell script to dir that behaves
// like the tesseract command line: it copies output to <outbase>.hocr.
func WriteFakeTesseract(dir, output string) (string, error) {
	fixture := filepath.Join(dir, "fixture.hocr")
	if err := os.WriteFile(fixture, []byte(output), 0o600); err != nil {
		return "", err
	}
	script := "#!/bin/sh\n" +
		"echo \"$@\" > '" + filepath.Join(dir, FakeTesseractArgs) + "'\n" +
		"cp '" + fixture + "' \"$2.hocr\"\n"
	binary := filepath.Join(dir, "tesseract")
	if err := os.WriteFile(binary, []byte(script), 0o700); err != nil { //nolint:gosec // the script must be executable
		return "", err
	}
	return binary, nil
}
