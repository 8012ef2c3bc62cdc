// Package coords holds bounding boxes and the affine transform used to move
// them between coordinate frames.
//
// A frame is itself a BBox: the rectangle whose origin and extent give meaning
// to the numbers of every box expressed in it. Boxes from different frames are
// never compared directly; Map is the only way across.
package coords

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceOrigin is returned when the source frame does not start at (0,0).
	ErrSourceOrigin = errors.New("source frame must have origin (0,0)")
	// ErrEmptyFrame is returned when the source frame has no width or height.
	ErrEmptyFrame = errors.New("source frame has zero extent")
)

// BBox is an axis-aligned rectangle. X1 >= X0 and Y1 >= Y0.
type BBox struct {
	X0 float64 `json:"x0"`
	X1 float64 `json:"x1"`
	Y0 float64 `json:"y0"`
	Y1 float64 `json:"y1"`
}

// New returns the box spanned by two corners in any order.
func New(x0, y0, x1, y1 float64) BBox {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return BBox{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

// Width returns X1 - X0.
func (b BBox) Width() float64 { return b.X1 - b.X0 }

// Height returns Y1 - Y0.
func (b BBox) Height() float64 { return b.Y1 - b.Y0 }

// Valid reports whether the box satisfies X1 >= X0 and Y1 >= Y0.
func (b BBox) Valid() bool { return b.X1 >= b.X0 && b.Y1 >= b.Y0 }

// Union returns the smallest box containing both b and o.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		X0: min(b.X0, o.X0),
		Y0: min(b.Y0, o.Y0),
		X1: max(b.X1, o.X1),
		Y1: max(b.Y1, o.Y1),
	}
}

func (b BBox) String() string {
	return fmt.Sprintf("(%g,%g,%g,%g)", b.X0, b.Y0, b.X1, b.Y1)
}

// Map re-expresses b, given in the source frame, in the target frame.
//
// The source frame must have its origin at (0,0); anything else is a caller
// bug and is reported as ErrSourceOrigin rather than corrected.
func Map(b, source, target BBox) (BBox, error) {
	if source.X0 != 0 || source.Y0 != 0 {
		return BBox{}, fmt.Errorf("%w: got %s", ErrSourceOrigin, source)
	}
	if source.X1 == 0 || source.Y1 == 0 {
		return BBox{}, fmt.Errorf("%w: got %s", ErrEmptyFrame, source)
	}

	scaleX := (target.X1 - target.X0) / (source.X1 - source.X0)
	scaleY := (target.Y1 - target.Y0) / (source.Y1 - source.Y0)

	return BBox{
		X0: b.X0*scaleX + target.X0,
		X1: b.X1*scaleX + target.X0,
		Y0: b.Y0*scaleY + target.Y0,
		Y1: b.Y1*scaleY + target.Y0,
	}, nil
}

// FlipY mirrors b vertically inside frame. It converts a box whose y axis
// grows downward (raster images) into one whose y axis grows upward (PDF page
// space) when both are expressed in frame.
func FlipY(b, frame BBox) BBox {
	return BBox{
		X0: b.X0,
		X1: b.X1,
		Y0: frame.Y0 + frame.Y1 - b.Y1,
		Y1: frame.Y0 + frame.Y1 - b.Y0,
	}
}
