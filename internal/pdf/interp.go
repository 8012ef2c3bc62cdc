package pdf

import (
	"github.com/MeKo-Tech/pdflabels/internal/coords"
	"github.com/MeKo-Tech/pdflabels/internal/layout"
	"github.com/dslipak/pdf"
)

// maxFormDepth bounds form XObject nesting; deeper forms are skipped.
const maxFormDepth = 32

type textState struct {
	font      *font
	fontSize  float64
	charSpace float64
	wordSpace float64
	scaling   float64
	leading   float64
	rise      float64
	matrix    matrix
	lineX     float64
	lineY     float64
}

type graphicsState struct {
	ctm  matrix
	text textState
}

// interpreter turns content streams into a raw layout tree: glyphs, image
// placements and figures in drawing order, not yet grouped into lines.
type interpreter struct {
	doc   *Document
	page  int
	depth int
	// images holds every image placement, forms included.
	images []*pageImage
}

func newInterpreter(doc *Document, page int) *interpreter {
	return &interpreter{doc: doc, page: page}
}

// run interprets the content streams strms with the given resources, adding
// everything drawn to parent.
func (in *interpreter) run(strms []pdf.Value, resources pdf.Value, ctm matrix, parent *layout.Container) {
	gs := graphicsState{ctm: ctm, text: textState{scaling: 100, matrix: identity}}
	var stack []graphicsState
	fonts := make(map[string]*font)

	for _, strm := range strms {
		pdf.Interpret(strm, func(stk *pdf.Stack, op string) {
			args := make([]pdf.Value, stk.Len())
			for i := len(args) - 1; i >= 0; i-- {
				args[i] = stk.Pop()
			}
			num := func(i int) float64 {
				if i < len(args) {
					return args[i].Float64()
				}
				return 0
			}
			ts := &gs.text

			switch op {
			case "q":
				stack = append(stack, gs)
			case "Q":
				if n := len(stack); n > 0 {
					gs = stack[n-1]
					stack = stack[:n-1]
				}
			case "cm":
				if len(args) == 6 {
					m := matrix{num(0), num(1), num(2), num(3), num(4), num(5)}
					gs.ctm = m.mul(gs.ctm)
				}
			case "BT":
				ts.matrix = identity
				ts.lineX, ts.lineY = 0, 0
			case "Tf":
				if len(args) == 2 {
					ts.font = lookupFont(fonts, resources, args[0].Name())
					ts.fontSize = num(1)
				}
			case "Tc":
				ts.charSpace = num(0)
			case "Tw":
				ts.wordSpace = num(0)
			case "Tz":
				ts.scaling = num(0)
			case "TL":
				ts.leading = -num(0)
			case "Ts":
				ts.rise = num(0)
			case "Td":
				ts.matrix = ts.matrix.translate(num(0), num(1))
				ts.lineX, ts.lineY = 0, 0
			case "TD":
				ts.matrix = ts.matrix.translate(num(0), num(1))
				ts.leading = num(1)
				ts.lineX, ts.lineY = 0, 0
			case "Tm":
				if len(args) == 6 {
					ts.matrix = matrix{num(0), num(1), num(2), num(3), num(4), num(5)}
					ts.lineX, ts.lineY = 0, 0
				}
			case "T*":
				in.nextLine(ts)
			case "Tj":
				if len(args) == 1 {
					in.showText(&gs, []pdf.Value{args[0]}, parent)
				}
			case "TJ":
				if len(args) == 1 {
					seq := make([]pdf.Value, args[0].Len())
					for i := range seq {
						seq[i] = args[0].Index(i)
					}
					in.showText(&gs, seq, parent)
				}
			case "'":
				if len(args) == 1 {
					in.nextLine(ts)
					in.showText(&gs, []pdf.Value{args[0]}, parent)
				}
			case "\"":
				if len(args) == 3 {
					ts.wordSpace = num(0)
					ts.charSpace = num(1)
					in.nextLine(ts)
					in.showText(&gs, []pdf.Value{args[2]}, parent)
				}
			case "Do":
				if len(args) == 1 {
					in.drawXObject(resources, args[0].Name(), gs.ctm, parent)
				}
			}
		})
	}
}

func (in *interpreter) nextLine(ts *textState) {
	m := ts.matrix
	ts.matrix = matrix{m[0], m[1], m[2], m[3], ts.leading*m[2] + m[4], ts.leading*m[3] + m[5]}
	ts.lineX, ts.lineY = 0, 0
}

// lookupFont resolves a font resource name, caching per resource scope.
func lookupFont(cache map[string]*font, resources pdf.Value, name string) *font {
	if f, ok := cache[name]; ok {
		return f
	}
	v := resources.Key("Font").Key(name)
	if v.IsNull() {
		return nil
	}
	f := loadFont(v)
	cache[name] = f
	return f
}

// showText places the glyphs of a Tj/TJ operand sequence. Numbers in seq
// move the pen by thousandths of text space.
func (in *interpreter) showText(gs *graphicsState, seq []pdf.Value, parent *layout.Container) {
	ts := &gs.text
	if ts.font == nil {
		return
	}

	m := ts.matrix.mul(gs.ctm)
	scaling := ts.scaling * 0.01
	charSpace := ts.charSpace * scaling
	wordSpace := ts.wordSpace * scaling
	if ts.font.multibyte {
		wordSpace = 0
	}
	dxScale := 0.001 * ts.fontSize * scaling

	x, y := ts.lineX, ts.lineY
	needCharSpace := false
	for _, v := range seq {
		if k := v.Kind(); k == pdf.Integer || k == pdf.Real {
			x -= v.Float64() * dxScale
			needCharSpace = true
			continue
		}
		for _, code := range ts.font.codes(v.RawString()) {
			if needCharSpace {
				x += charSpace
			}
			x += in.placeGlyph(m.translate(x, y), ts, scaling, code, parent)
			if code == 32 && wordSpace != 0 {
				x += wordSpace
			}
			needCharSpace = true
		}
	}
	ts.lineX, ts.lineY = x, y
}

// placeGlyph adds one glyph to parent and returns its advance.
func (in *interpreter) placeGlyph(m matrix, ts *textState, scaling float64, code int, parent *layout.Container) float64 {
	f := ts.font
	adv := f.width(code) * ts.fontSize * scaling
	descent := f.descent * ts.fontSize

	x0, y0 := m.apply(0, descent+ts.rise)
	x1, y1 := m.apply(adv, descent+ts.rise+ts.fontSize)
	box := coords.New(x0, y0, x1, y1)

	parent.Add(&layout.Char{
		Box:      box,
		Text:     f.text(code),
		FontName: f.name,
		Size:     box.Height(),
		Upright:  m[0]*m[3]*scaling > 0 && m[1]*m[2] <= 0,
	})
	return adv
}

// drawXObject handles the Do operator. Images become a figure holding one
// image node; forms become a figure holding whatever the form draws.
func (in *interpreter) drawXObject(resources pdf.Value, name string, ctm matrix, parent *layout.Container) {
	xobj := resources.Key("XObject").Key(name)
	if xobj.Kind() != pdf.Stream {
		return
	}

	switch xobj.Key("Subtype").Name() {
	case "Image":
		if xobj.Key("Width").IsNull() || xobj.Key("Height").IsNull() {
			return
		}
		box := ctm.bounds(coords.BBox{X1: 1, Y1: 1})
		src := &pageImage{doc: in.doc, page: in.page, name: name}
		in.images = append(in.images, src)
		fig := &layout.Container{Kind: layout.KindFigure, Name: name, Box: box}
		fig.Add(&layout.Image{
			Box:    box,
			Name:   name,
			Width:  int(xobj.Key("Width").Int64()),
			Height: int(xobj.Key("Height").Int64()),
			Source: src,
		})
		parent.Add(fig)

	case "Form":
		if in.depth >= maxFormDepth {
			return
		}
		m := identity
		if mv := xobj.Key("Matrix"); mv.Len() == 6 {
			for i := range m {
				m[i] = mv.Index(i).Float64()
			}
		}
		formCTM := m.mul(ctm)

		box := coords.BBox{X1: 1, Y1: 1}
		if bv := xobj.Key("BBox"); bv.Len() == 4 {
			box = coords.New(bv.Index(0).Float64(), bv.Index(1).Float64(), bv.Index(2).Float64(), bv.Index(3).Float64())
		}

		formResources := xobj.Key("Resources")
		if formResources.IsNull() {
			formResources = resources
		}

		fig := &layout.Container{Kind: layout.KindFigure, Name: name, Box: formCTM.bounds(box)}
		in.depth++
		in.run([]pdf.Value{xobj}, formResources, formCTM, fig)
		in.depth--
		parent.Add(fig)
	}
}
