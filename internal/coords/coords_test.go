package coords

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_Examples(t *testing.T) {
	tests := []struct {
		name   string
		box    BBox
		source BBox
		target BBox
		want   BBox
	}{
		{
			name:   "zero box in unit frames",
			box:    BBox{},
			source: BBox{X1: 1, Y1: 1},
			target: BBox{X1: 1, Y1: 1},
			want:   BBox{},
		},
		{
			name:   "unit box identity",
			box:    BBox{X0: 1, Y0: 1, X1: 1, Y1: 1},
			source: BBox{X1: 1, Y1: 1},
			target: BBox{X1: 1, Y1: 1},
			want:   BBox{X0: 1, Y0: 1, X1: 1, Y1: 1},
		},
		{
			name:   "double width",
			box:    BBox{X0: 1, Y0: 1, X1: 1, Y1: 1},
			source: BBox{X1: 1, Y1: 1},
			target: BBox{X1: 2, Y1: 1},
			want:   BBox{X0: 2, Y0: 1, X1: 2, Y1: 1},
		},
		{
			name:   "double height",
			box:    BBox{X0: 1, Y0: 1, X1: 1, Y1: 1},
			source: BBox{X1: 1, Y1: 1},
			target: BBox{X1: 1, Y1: 2},
			want:   BBox{X0: 1, Y0: 2, X1: 1, Y1: 2},
		},
		{
			name:   "translated target",
			box:    BBox{X0: 1, Y0: 1, X1: 1, Y1: 1},
			source: BBox{X1: 1, Y1: 1},
			target: BBox{X0: 1, Y0: 0, X1: 2, Y1: 1},
			want:   BBox{X0: 2, Y0: 1, X1: 2, Y1: 1},
		},
		{
			name:   "negative and offset target",
			box:    BBox{X0: 0.25, Y0: 0.25, X1: 0.75, Y1: 0.75},
			source: BBox{X1: 1, Y1: 1},
			target: BBox{X0: -0.5, Y0: 20, X1: 0.5, Y1: 21},
			want:   BBox{X0: -0.25, Y0: 20.25, X1: 0.25, Y1: 20.75},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Map(tt.box, tt.source, tt.target)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.X0, got.X0, 1e-12)
			assert.InDelta(t, tt.want.Y0, got.Y0, 1e-12)
			assert.InDelta(t, tt.want.X1, got.X1, 1e-12)
			assert.InDelta(t, tt.want.Y1, got.Y1, 1e-12)
		})
	}
}

func TestMap_ScannedPage(t *testing.T) {
	// A scanned image placed on a page, recognised at 4928x2360 pixels.
	box := BBox{X0: 28, Y0: 321, X1: 87, Y1: 580}
	source := BBox{X1: 4928, Y1: 2360}
	target := BBox{X0: -0.066051, Y0: 256.18399999999997, X1: 1772.045949, Y1: 1104.836}

	got, err := Map(box, source, target)
	require.NoError(t, err)
	assert.InDelta(t, 10.002767181818184, got.X0, 1e-9)
	assert.InDelta(t, 31.219205493506497, got.X1, 1e-9)
	assert.InDelta(t, 371.61505593220335, got.Y0, 1e-9)
	assert.InDelta(t, 464.75101694915253, got.Y1, 1e-9)
}

func TestMap_FormulaHolds(t *testing.T) {
	boxes := []BBox{
		{X0: 0, Y0: 0, X1: 10, Y1: 10},
		{X0: 3.5, Y0: 7.25, X1: 99, Y1: 120.5},
		{X0: 640, Y0: 0, X1: 640, Y1: 480},
	}
	sources := []BBox{
		{X1: 640, Y1: 480},
		{X1: 1, Y1: 3},
	}
	targets := []BBox{
		{X0: 72, Y0: 144, X1: 540, Y1: 720},
		{X0: -10, Y0: -20, X1: 10, Y1: 20},
	}

	for _, b := range boxes {
		for _, s := range sources {
			for _, tgt := range targets {
				got, err := Map(b, s, tgt)
				require.NoError(t, err)
				assert.Equal(t, b.X0*(tgt.X1-tgt.X0)/s.X1+tgt.X0, got.X0)
				assert.Equal(t, b.X1*(tgt.X1-tgt.X0)/s.X1+tgt.X0, got.X1)
				assert.Equal(t, b.Y0*(tgt.Y1-tgt.Y0)/s.Y1+tgt.Y0, got.Y0)
				assert.Equal(t, b.Y1*(tgt.Y1-tgt.Y0)/s.Y1+tgt.Y0, got.Y1)
			}
		}
	}
}

func TestMap_IdentityFrame(t *testing.T) {
	frame := BBox{X1: 612, Y1: 792}
	box := BBox{X0: 12.5, Y0: 40, X1: 300.25, Y1: 52}

	got, err := Map(box, frame, frame)
	require.NoError(t, err)
	assert.Equal(t, box, got)
}

func TestMap_Preconditions(t *testing.T) {
	_, err := Map(BBox{}, BBox{X0: 1, Y0: 0, X1: 2, Y1: 1}, BBox{X1: 1, Y1: 1})
	require.ErrorIs(t, err, ErrSourceOrigin)

	_, err = Map(BBox{}, BBox{X0: 0, Y0: 1, X1: 1, Y1: 2}, BBox{X1: 1, Y1: 1})
	require.ErrorIs(t, err, ErrSourceOrigin)

	_, err = Map(BBox{}, BBox{X1: 0, Y1: 1}, BBox{X1: 1, Y1: 1})
	require.ErrorIs(t, err, ErrEmptyFrame)
}

func TestFlipY(t *testing.T) {
	frame := BBox{X0: 100, Y0: 200, X1: 300, Y1: 400}
	// Top strip of the image in raster orientation becomes the top of the
	// frame in page orientation.
	got := FlipY(BBox{X0: 100, Y0: 200, X1: 300, Y1: 220}, frame)
	assert.Equal(t, BBox{X0: 100, Y0: 380, X1: 300, Y1: 400}, got)
	assert.True(t, got.Valid())

	assert.Equal(t, frame, FlipY(frame, frame))
}

func TestNewAndUnion(t *testing.T) {
	b := New(10, 20, 0, 5)
	assert.Equal(t, BBox{X0: 0, Y0: 5, X1: 10, Y1: 20}, b)
	assert.True(t, b.Valid())
	assert.InDelta(t, 10.0, b.Width(), 0)
	assert.InDelta(t, 15.0, b.Height(), 0)

	u := b.Union(BBox{X0: -5, Y0: 10, X1: 4, Y1: 30})
	assert.Equal(t, BBox{X0: -5, Y0: 5, X1: 10, Y1: 30}, u)
}
