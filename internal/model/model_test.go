package model

import (
	"encoding/json"
	"testing"

	"github.com/MeKo-Tech/pdflabels/internal/coords"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLabel_Defaults(t *testing.T) {
	l := NewLabel(coords.BBox{X0: 1, Y0: 2, X1: 3, Y1: 4}, "abc")
	assert.Equal(t, DefaultFontName, l.FontName)
	assert.Zero(t, l.FontSize)
	assert.Equal(t, Horizontal, l.Orientation)
	assert.Equal(t, "abc", l.Text)
	assert.InDelta(t, 2.0, l.Width(), 0)
}

func TestLabel_JSONFields(t *testing.T) {
	l := Label{
		BBox:        coords.BBox{X0: 1, Y0: 2, X1: 3, Y1: 4},
		FontName:    "Helvetica",
		FontSize:    12,
		Orientation: Vertical,
		Text:        "x",
	}
	data, err := json.Marshal(l)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Len(t, m, 8)
	assert.Equal(t, "Helvetica", m["fontname"])
	assert.InDelta(t, 12.0, m["fontsize"], 0)
	assert.Equal(t, "V", m["orientation"])
	assert.InDelta(t, 1.0, m["x0"], 0)
	assert.InDelta(t, 3.0, m["x1"], 0)
	assert.InDelta(t, 2.0, m["y0"], 0)
	assert.InDelta(t, 4.0, m["y1"], 0)
}

func TestFileResult_LabelCount(t *testing.T) {
	r := FileResult{
		Filename: "a.pdf",
		Pages: []PageResult{
			{Index: 0, Labels: []Label{{Text: "a"}, {Text: "b"}}},
			{Index: 1},
			{Index: 2, Labels: []Label{{Text: "c"}}},
		},
	}
	assert.Equal(t, 3, r.LabelCount())
	assert.Zero(t, FileResult{}.LabelCount())
}
