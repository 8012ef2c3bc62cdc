// Package hocr reads the hOCR markup produced by OCR engines.
//
// Only the parts needed to position recognised text are extracted: the bbox of
// the page element and, for every line element, its bbox and normalized text.
package hocr

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/pdflabels/internal/coords"
	"github.com/MeKo-Tech/pdflabels/internal/model"
	"golang.org/x/net/html"
)

const (
	classPage = "ocr_page"
	classLine = "ocr_line"
)

// lineClasses are the element classes tesseract and other engines use for a
// line of text.
var lineClasses = []string{classLine, "ocrx_line", "ocr_caption", "ocr_header", "ocr_textfloat"}

var (
	// ErrNoPage is returned when the markup contains no page element.
	ErrNoPage = errors.New("hocr: no ocr_page element")
	// ErrMissingBBox is returned when a page or line element has no bbox property.
	ErrMissingBBox = errors.New("hocr: element has no bbox property")
)

var (
	bboxPattern  = regexp.MustCompile(`\bbbox\s+(\d+)\s+(\d+)\s+(\d+)\s+(\d+)`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// Line is a recognised line of text with its bbox in the page's pixel frame.
type Line struct {
	ID   string
	BBox coords.BBox
	Text string
}

// Document is the parsed result of one hOCR file.
type Document struct {
	// Page is the bbox of the first page element. Its origin is (0,0) for
	// every engine in practice, which is what coords.Map requires.
	Page  coords.BBox
	Lines []Line
}

// Labels returns the lines as labels with placeholder font metadata. The
// boxes are still in the page's pixel frame.
func (d *Document) Labels() []model.Label {
	labels := make([]model.Label, 0, len(d.Lines))
	for _, l := range d.Lines {
		labels = append(labels, model.NewLabel(l.BBox, l.Text))
	}
	return labels
}

// Parse reads hOCR markup from r.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("hocr: parse markup: %w", err)
	}

	page := findFirst(root, classPage)
	if page == nil {
		return nil, ErrNoPage
	}
	pageBox, err := elementBBox(page)
	if err != nil {
		return nil, err
	}

	doc := &Document{Page: pageBox}
	for _, n := range findAll(root, lineClasses...) {
		box, err := elementBBox(n)
		if err != nil {
			return nil, err
		}
		doc.Lines = append(doc.Lines, Line{
			ID:   attr(n, "id"),
			BBox: box,
			Text: lineText(n),
		})
	}

	return doc, nil
}

// ParseBBox extracts the bbox property from an hOCR title attribute.
func ParseBBox(title string) (coords.BBox, bool) {
	m := bboxPattern.FindStringSubmatch(title)
	if m == nil {
		return coords.BBox{}, false
	}
	var v [4]float64
	for i := range v {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return coords.BBox{}, false
		}
		v[i] = float64(n)
	}
	return coords.BBox{X0: v[0], Y0: v[1], X1: v[2], Y1: v[3]}, true
}

func elementBBox(n *html.Node) (coords.BBox, error) {
	box, ok := ParseBBox(attr(n, "title"))
	if !ok {
		id := attr(n, "id")
		if id == "" {
			id = "<" + n.Data + ">"
		}
		return coords.BBox{}, fmt.Errorf("%w: %s", ErrMissingBBox, id)
	}
	return box, nil
}

// lineText joins the leading text of every descendant element with a single
// space and collapses whitespace runs. Text following a child's closing tag
// is not part of any element's leading text and is dropped.
func lineText(line *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if t := c.FirstChild; t != nil && t.Type == html.TextNode {
				parts = append(parts, t.Data)
			}
			walk(c)
		}
	}
	walk(line)

	return spacePattern.ReplaceAllString(strings.Join(parts, " "), " ")
}

func findFirst(n *html.Node, class string) *html.Node {
	if n.Type == html.ElementNode && hasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, class); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns the outermost elements carrying one of classes. The
// descendants of a match are not searched.
func findAll(n *html.Node, classes ...string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasAnyClass(n, classes) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func hasAnyClass(n *html.Node, classes []string) bool {
	for _, c := range classes {
		if hasClass(n, c) {
			return true
		}
	}
	return false
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
