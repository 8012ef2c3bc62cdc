package pdf

import (
	"github.com/MeKo-Tech/pdflabels/internal/coords"
)

// matrix is a PDF transformation matrix [a b c d e f] applied to row vectors.
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m followed by n, i.e. the matrix that applies m first.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

// translate moves the origin of m by (x, y) in m's own space.
func (m matrix) translate(x, y float64) matrix {
	return matrix{m[0], m[1], m[2], m[3], x*m[0] + y*m[2] + m[4], x*m[1] + y*m[3] + m[5]}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// bounds returns the axis-aligned box covering r transformed by m.
func (m matrix) bounds(r coords.BBox) coords.BBox {
	x0, y0 := m.apply(r.X0, r.Y0)
	out := coords.BBox{X0: x0, Y0: y0, X1: x0, Y1: y0}
	for _, p := range [][2]float64{{r.X1, r.Y0}, {r.X0, r.Y1}, {r.X1, r.Y1}} {
		x, y := m.apply(p[0], p[1])
		out = out.Union(coords.BBox{X0: x, Y0: y, X1: x, Y1: y})
	}
	return out
}
