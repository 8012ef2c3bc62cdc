// Package layout holds the layout tree of a PDF page and the analyzer that
// groups loose glyphs into text lines and text boxes.
package layout

import (
	"errors"
	"io"
	"strings"

	"github.com/MeKo-Tech/pdflabels/internal/coords"
)

// ErrImageUnsupported is returned by an ImageSource whose stream cannot be
// exported in a format an OCR engine can read.
var ErrImageUnsupported = errors.New("image format not supported for export")

// Node is an element of the layout tree. The set of implementations is closed:
// *Container, *TextLine, *Char and *Image.
type Node interface {
	BBox() coords.BBox
	node()
}

// ContainerKind distinguishes the containers that can appear in a tree.
type ContainerKind int

const (
	// KindPage is the root of a page.
	KindPage ContainerKind = iota
	// KindFigure wraps a form XObject or a placed image.
	KindFigure
	// KindTextBox groups neighbouring text lines.
	KindTextBox
)

func (k ContainerKind) String() string {
	switch k {
	case KindPage:
		return "page"
	case KindFigure:
		return "figure"
	case KindTextBox:
		return "textbox"
	default:
		return "unknown"
	}
}

// Container is an ordered group of nodes.
type Container struct {
	Kind     ContainerKind
	Name     string
	Box      coords.BBox
	Children []Node
}

// TextLine is a run of glyphs on one baseline (or one column when Vertical).
// Children are *Char nodes, possibly nested *TextLine nodes.
type TextLine struct {
	Box      coords.BBox
	Vertical bool
	Children []Node
	// Text is the line's text with word spaces inserted by the analyzer and a
	// trailing newline.
	Text string
}

// Char is a single rendered glyph.
type Char struct {
	Box      coords.BBox
	Text     string
	FontName string
	// Size is the rendered glyph height in page units.
	Size    float64
	Upright bool
}

// ImageSource gives access to the encoded data of an image.
type ImageSource interface {
	// Open returns the encoded image and the file extension (with dot) that
	// matches its format. It returns ErrImageUnsupported if the stream cannot
	// be exported.
	Open() (io.ReadCloser, string, error)
}

// Image is a raster image placed on the page.
type Image struct {
	Box coords.BBox
	// Name is the resource name the page used to draw the image.
	Name string
	// Width and Height are the image's pixel dimensions as declared in the PDF.
	Width  int
	Height int
	Source ImageSource
}

func (c *Container) BBox() coords.BBox { return c.Box }
func (l *TextLine) BBox() coords.BBox  { return l.Box }
func (c *Char) BBox() coords.BBox      { return c.Box }
func (i *Image) BBox() coords.BBox     { return i.Box }

func (*Container) node() {}
func (*TextLine) node()  {}
func (*Char) node()      {}
func (*Image) node()     {}

// Add appends n. A text box grows to cover its children; pages and figures
// keep the box they were created with.
func (c *Container) Add(n Node) {
	if c.Kind == KindTextBox {
		if len(c.Children) == 0 {
			c.Box = n.BBox()
		} else {
			c.Box = c.Box.Union(n.BBox())
		}
	}
	c.Children = append(c.Children, n)
}

// Page is one analysed page.
type Page struct {
	// Index is zero based.
	Index int
	// BBox is the page frame: the media box moved to the origin after rotation.
	BBox coords.BBox
	Root *Container
}

// Walk calls fn for n and every descendant in depth-first order. It stops
// descending below a node for which fn returns false.
func Walk(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	var children []Node
	switch v := n.(type) {
	case *Container:
		children = v.Children
	case *TextLine:
		children = v.Children
	}
	for _, c := range children {
		Walk(c, fn)
	}
}

// Dump renders the tree as indented text, one node per line.
func Dump(n Node) string {
	var sb strings.Builder
	dump(&sb, n, 0)
	return sb.String()
}

func dump(sb *strings.Builder, n Node, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	switch v := n.(type) {
	case *Container:
		sb.WriteString(v.Kind.String() + " " + v.Box.String() + "\n")
		for _, c := range v.Children {
			dump(sb, c, depth+1)
		}
	case *TextLine:
		sb.WriteString("line " + v.Box.String() + " " + strings.TrimSpace(v.Text) + "\n")
	case *Char:
		sb.WriteString("char " + v.Box.String() + " " + v.Text + "\n")
	case *Image:
		sb.WriteString("image " + v.Name + " " + v.Box.String() + "\n")
	}
}
