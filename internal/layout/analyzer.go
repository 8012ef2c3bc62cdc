package layout

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/pdflabels/internal/coords"
)

// Params tunes glyph grouping. Margins are relative to glyph or line size.
type Params struct {
	// CharMargin is the largest gap between two glyphs of one line.
	CharMargin float64 `mapstructure:"char_margin" yaml:"char_margin" json:"char_margin"`
	// LineMargin is the largest gap between two lines of one text box.
	LineMargin float64 `mapstructure:"line_margin" yaml:"line_margin" json:"line_margin"`
	// WordMargin is the gap above which a space is inserted between glyphs.
	WordMargin float64 `mapstructure:"word_margin" yaml:"word_margin" json:"word_margin"`
	// LineOverlap is the minimum overlap two glyphs need to share a line.
	LineOverlap float64 `mapstructure:"line_overlap" yaml:"line_overlap" json:"line_overlap"`
	// DetectVertical enables vertical text lines.
	DetectVertical bool `mapstructure:"detect_vertical" yaml:"detect_vertical" json:"detect_vertical"`
	// AllTexts also groups glyphs drawn inside figures.
	AllTexts bool `mapstructure:"all_texts" yaml:"all_texts" json:"all_texts"`
}

// DefaultParams returns the grouping parameters used for label extraction.
func DefaultParams() Params {
	return Params{
		CharMargin:     2.0,
		LineMargin:     1.0,
		WordMargin:     0.1,
		LineOverlap:    0.5,
		DetectVertical: true,
		AllTexts:       false,
	}
}

// Analyzer groups the loose glyphs of a container into lines and boxes.
type Analyzer struct {
	params Params
}

// NewAnalyzer creates an analyzer with the given parameters.
func NewAnalyzer(p Params) *Analyzer {
	return &Analyzer{params: p}
}

// Analyze rewrites c in place. Afterwards its children are the text boxes
// built from its glyphs in order of first appearance, followed by the non-text
// children in drawing order, followed by lines without extent. Figures are
// analysed too when AllTexts is set.
func (a *Analyzer) Analyze(c *Container) {
	var chars []*Char
	var others []Node
	for _, n := range c.Children {
		if ch, ok := n.(*Char); ok {
			chars = append(chars, ch)
			continue
		}
		others = append(others, n)
	}

	for _, n := range others {
		if f, ok := n.(*Container); ok && f.Kind == KindFigure && a.params.AllTexts {
			a.Analyze(f)
		}
	}

	if len(chars) == 0 {
		return
	}

	var lines, empties []*TextLine
	for _, l := range a.groupChars(chars) {
		if isEmpty(l.Box) {
			empties = append(empties, l)
			continue
		}
		lines = append(lines, l)
	}

	boxes := a.groupLines(lines)

	children := make([]Node, 0, len(boxes)+len(others)+len(empties))
	for _, b := range boxes {
		children = append(children, b)
	}
	children = append(children, others...)
	for _, l := range empties {
		children = append(children, l)
	}
	c.Children = children
}

// lineBuilder accumulates glyphs into a line and inserts word spaces.
type lineBuilder struct {
	vertical   bool
	wordMargin float64
	line       *TextLine
	text       []byte
	edge       float64
}

func newLineBuilder(vertical bool, wordMargin float64) *lineBuilder {
	b := &lineBuilder{vertical: vertical, wordMargin: wordMargin, line: &TextLine{Vertical: vertical}}
	if vertical {
		b.edge = math.Inf(-1)
	} else {
		b.edge = math.Inf(1)
	}
	return b
}

func (b *lineBuilder) add(ch *Char) {
	if b.wordMargin > 0 {
		margin := b.wordMargin * max(ch.Box.Width(), ch.Box.Height())
		if b.vertical {
			if ch.Box.Y1+margin < b.edge {
				b.text = append(b.text, ' ')
			}
		} else if b.edge < ch.Box.X0-margin {
			b.text = append(b.text, ' ')
		}
	}
	if b.vertical {
		b.edge = ch.Box.Y0
	} else {
		b.edge = ch.Box.X1
	}

	if len(b.line.Children) == 0 {
		b.line.Box = ch.Box
	} else {
		b.line.Box = b.line.Box.Union(ch.Box)
	}
	b.line.Children = append(b.line.Children, ch)
	b.text = append(b.text, ch.Text...)
}

func (b *lineBuilder) finish() *TextLine {
	b.line.Text = string(b.text) + "\n"
	return b.line
}

// groupChars chains consecutive glyphs into lines. Two glyphs continue a
// horizontal line when they overlap vertically and sit close horizontally,
// and a vertical line in the transposed case.
func (a *Analyzer) groupChars(chars []*Char) []*TextLine {
	var out []*TextLine
	var cur *lineBuilder
	p := a.params

	for i := 1; i < len(chars); i++ {
		c0, c1 := chars[i-1].Box, chars[i].Box

		halign := isVOverlap(c0, c1) &&
			min(c0.Height(), c1.Height())*p.LineOverlap < vOverlap(c0, c1) &&
			hDistance(c0, c1) < max(c0.Width(), c1.Width())*p.CharMargin
		valign := p.DetectVertical && isHOverlap(c0, c1) &&
			min(c0.Width(), c1.Width())*p.LineOverlap < hOverlap(c0, c1) &&
			vDistance(c0, c1) < max(c0.Height(), c1.Height())*p.CharMargin

		switch {
		case cur != nil && ((halign && !cur.vertical) || (valign && cur.vertical)):
			cur.add(chars[i])
		case cur != nil:
			out = append(out, cur.finish())
			cur = nil
		case valign && !halign:
			cur = newLineBuilder(true, p.WordMargin)
			cur.add(chars[i-1])
			cur.add(chars[i])
		case halign && !valign:
			cur = newLineBuilder(false, p.WordMargin)
			cur.add(chars[i-1])
			cur.add(chars[i])
		default:
			single := newLineBuilder(false, p.WordMargin)
			single.add(chars[i-1])
			out = append(out, single.finish())
		}
	}

	if cur == nil {
		cur = newLineBuilder(false, p.WordMargin)
		cur.add(chars[len(chars)-1])
	}
	return append(out, cur.finish())
}

// groupLines merges lines whose neighbours overlap into text boxes. Boxes are
// returned in the order of their first line.
func (a *Analyzer) groupLines(lines []*TextLine) []*Container {
	owner := make(map[*TextLine]*[]*TextLine, len(lines))

	for _, line := range lines {
		neighbors := a.neighbors(line, lines)
		if !containsLine(neighbors, line) {
			continue
		}

		var members []*TextLine
		for _, n := range neighbors {
			members = append(members, n)
			if group, ok := owner[n]; ok {
				members = append(members, *group...)
				for _, m := range *group {
					delete(owner, m)
				}
			}
		}

		group := uniqLines(members)
		for _, m := range group {
			owner[m] = &group
		}
	}

	var boxes []*Container
	done := make(map[*[]*TextLine]bool)
	for _, line := range lines {
		group, ok := owner[line]
		if !ok || done[group] {
			continue
		}
		done[group] = true

		members := append([]*TextLine(nil), (*group)...)
		if line.Vertical {
			sort.SliceStable(members, func(i, j int) bool { return members[i].Box.X1 > members[j].Box.X1 })
		} else {
			sort.SliceStable(members, func(i, j int) bool { return members[i].Box.Y1 > members[j].Box.Y1 })
		}

		box := &Container{Kind: KindTextBox}
		for _, m := range members {
			box.Add(m)
		}
		if !isEmpty(box.Box) {
			boxes = append(boxes, box)
		}
	}
	return boxes
}

// neighbors returns the lines of the same direction and similar size that lie
// within LineMargin of line and are aligned with it on one edge.
func (a *Analyzer) neighbors(line *TextLine, lines []*TextLine) []*TextLine {
	b := line.Box
	var query coords.BBox
	var d float64
	if line.Vertical {
		d = a.params.LineMargin * b.Width()
		query = coords.BBox{X0: b.X0 - d, Y0: b.Y0, X1: b.X1 + d, Y1: b.Y1}
	} else {
		d = a.params.LineMargin * b.Height()
		query = coords.BBox{X0: b.X0, Y0: b.Y0 - d, X1: b.X1, Y1: b.Y1 + d}
	}

	var out []*TextLine
	for _, o := range lines {
		if o.Vertical != line.Vertical || !intersects(query, o.Box) {
			continue
		}
		ob := o.Box
		if line.Vertical {
			if math.Abs(ob.Width()-b.Width()) < d &&
				(math.Abs(ob.Y0-b.Y0) < d || math.Abs(ob.Y1-b.Y1) < d) {
				out = append(out, o)
			}
			continue
		}
		if math.Abs(ob.Height()-b.Height()) < d &&
			(math.Abs(ob.X0-b.X0) < d || math.Abs(ob.X1-b.X1) < d) {
			out = append(out, o)
		}
	}
	return out
}

func containsLine(lines []*TextLine, l *TextLine) bool {
	for _, o := range lines {
		if o == l {
			return true
		}
	}
	return false
}

func uniqLines(lines []*TextLine) []*TextLine {
	seen := make(map[*TextLine]bool, len(lines))
	out := lines[:0:0]
	for _, l := range lines {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

func isEmpty(b coords.BBox) bool {
	return b.Width() <= 0 || b.Height() <= 0
}

// intersects reports whether two boxes overlap with positive area.
func intersects(a, b coords.BBox) bool {
	return !(b.X1 <= a.X0 || a.X1 <= b.X0 || b.Y1 <= a.Y0 || a.Y1 <= b.Y0)
}

func isHOverlap(a, b coords.BBox) bool { return b.X0 <= a.X1 && a.X0 <= b.X1 }
func isVOverlap(a, b coords.BBox) bool { return b.Y0 <= a.Y1 && a.Y0 <= b.Y1 }

func hDistance(a, b coords.BBox) float64 {
	if isHOverlap(a, b) {
		return 0
	}
	return min(math.Abs(a.X0-b.X1), math.Abs(a.X1-b.X0))
}

func vDistance(a, b coords.BBox) float64 {
	if isVOverlap(a, b) {
		return 0
	}
	return min(math.Abs(a.Y0-b.Y1), math.Abs(a.Y1-b.Y0))
}

func hOverlap(a, b coords.BBox) float64 {
	if !isHOverlap(a, b) {
		return 0
	}
	return min(math.Abs(a.X0-b.X1), math.Abs(a.X1-b.X0))
}

func vOverlap(a, b coords.BBox) float64 {
	if !isVOverlap(a, b) {
		return 0
	}
	return min(math.Abs(a.Y0-b.Y1), math.Abs(a.Y1-b.Y0))
}
