// Package model defines the positioned-text records produced by extraction.
package model

import (
	"github.com/MeKo-Tech/pdflabels/internal/coords"
)

// Orientation tells whether a label's text runs horizontally or vertically.
type Orientation string

const (
	Horizontal Orientation = "H"
	Vertical   Orientation = "V"
)

// DefaultFontName is used when no glyph information is available for a label.
const DefaultFontName = "unknown"

// Label is one piece of positioned text, expressed in its page's frame.
type Label struct {
	coords.BBox
	FontName    string      `json:"fontname"`
	FontSize    float64     `json:"fontsize"`
	Orientation Orientation `json:"orientation"`
	Text        string      `json:"text"`
}

// NewLabel returns a label with placeholder font metadata.
func NewLabel(b coords.BBox, text string) Label {
	return Label{
		BBox:        b,
		FontName:    DefaultFontName,
		Orientation: Horizontal,
		Text:        text,
	}
}

// PageResult holds the labels of a single page in traversal order.
type PageResult struct {
	Index       int         `json:"index"`
	BoundingBox coords.BBox `json:"bounding_box"`
	Labels      []Label     `json:"labels"`
}

// FileResult holds the pages of one document in page order.
type FileResult struct {
	Filename string       `json:"filename"`
	Pages    []PageResult `json:"pages"`
}

// LabelCount returns the number of labels across all pages.
func (r FileResult) LabelCount() int {
	n := 0
	for _, p := range r.Pages {
		n += len(p.Labels)
	}
	return n
}
