// Package extract turns analysed PDF pages into labels.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/pdflabels/internal/layout"
	"github.com/MeKo-Tech/pdflabels/internal/metrics"
	"github.com/MeKo-Tech/pdflabels/internal/model"
)

// Recognizer produces labels for an embedded image, in page coordinates.
type Recognizer interface {
	RecognizeImage(ctx context.Context, img *layout.Image) ([]model.Label, error)
}

// Walker traverses layout trees.
type Walker struct {
	recognizer Recognizer
	metrics    *metrics.Metrics
}

// NewWalker returns a walker sending images to r. With a nil r images
// produce no labels.
func NewWalker(r Recognizer, m *metrics.Metrics) *Walker {
	return &Walker{recognizer: r, metrics: m}
}

// Walk returns the labels of the subtree rooted at n in traversal order.
func (w *Walker) Walk(ctx context.Context, n layout.Node) ([]model.Label, error) {
	switch n := n.(type) {
	case *layout.Container:
		var labels []model.Label
		for _, child := range n.Children {
			sub, err := w.Walk(ctx, child)
			if err != nil {
				return nil, err
			}
			labels = append(labels, sub...)
		}
		return labels, nil

	case *layout.TextLine:
		label, ok := lineLabel(n)
		if !ok {
			return nil, nil
		}
		w.metrics.LabelsEmitted(metrics.SourceText, 1)
		return []model.Label{label}, nil

	case *layout.Image:
		if w.recognizer == nil {
			return nil, nil
		}
		return w.recognizer.RecognizeImage(ctx, n)

	case *layout.Char:
		// Loose glyphs only occur inside figures that were not analysed.
		return nil, nil

	default:
		return nil, fmt.Errorf("unexpected layout node %T", n)
	}
}

// lineLabel builds the label of a text line. The font is taken from the
// first glyph of the line.
func lineLabel(line *layout.TextLine) (model.Label, bool) {
	text := strings.TrimSpace(line.Text)
	if text == "" {
		return model.Label{}, false
	}

	label := model.NewLabel(line.Box, text)
	if ch := firstChar(line); ch != nil {
		if ch.FontName != "" {
			label.FontName = ch.FontName
		}
		label.FontSize = ch.Size
		if !ch.Upright {
			label.Orientation = model.Vertical
		}
	}
	return label, true
}

func firstChar(line *layout.TextLine) *layout.Char {
	for _, child := range line.Children {
		switch c := child.(type) {
		case *layout.Char:
			return c
		case *layout.TextLine:
			if ch := firstChar(c); ch != nil {
				return ch
			}
		}
	}
	return nil
}
