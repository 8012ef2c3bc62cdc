package pdf

import (
	"testing"

	"github.com/MeKo-Tech/pdflabels/internal/coords"
	"github.com/stretchr/testify/assert"
)

func TestMatrix_Mul(t *testing.T) {
	scale := matrix{2, 0, 0, 3, 0, 0}
	move := matrix{1, 0, 0, 1, 10, 20}

	// Scale first, then move.
	x, y := scale.mul(move).apply(1, 1)
	assert.InDelta(t, 12.0, x, 1e-12)
	assert.InDelta(t, 23.0, y, 1e-12)

	// Move first, then scale.
	x, y = move.mul(scale).apply(1, 1)
	assert.InDelta(t, 22.0, x, 1e-12)
	assert.InDelta(t, 63.0, y, 1e-12)

	assert.Equal(t, scale, scale.mul(identity))
	assert.Equal(t, scale, identity.mul(scale))
}

func TestMatrix_Translate(t *testing.T) {
	m := matrix{2, 0, 0, 2, 5, 5}.translate(3, 4)
	assert.Equal(t, matrix{2, 0, 0, 2, 11, 13}, m)
}

func TestMatrix_Bounds(t *testing.T) {
	unit := coords.BBox{X1: 1, Y1: 1}

	assert.Equal(t, coords.BBox{X0: 100, Y0: 200, X1: 150, Y1: 240},
		matrix{50, 0, 0, 40, 100, 200}.bounds(unit))

	// A quarter turn still yields a normalised box.
	assert.Equal(t, coords.BBox{X0: -1, Y0: 0, X1: 0, Y1: 1},
		matrix{0, 1, -1, 0, 0, 0}.bounds(unit))
}
