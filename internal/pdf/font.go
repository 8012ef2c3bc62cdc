package pdf

import (
	"fmt"

	"github.com/dslipak/pdf"
)

// defaultGlyphWidth is used for codes without a width entry, in thousandths
// of text space. Standard 14 fonts usually carry no /Widths array.
const defaultGlyphWidth = 500

// font holds what the interpreter needs to place glyphs of one font resource.
type font struct {
	name      string
	multibyte bool
	descent   float64
	enc       pdf.TextEncoding
	width     func(code int) float64
}

func loadFont(v pdf.Value) *font {
	f := &font{
		name: v.Key("BaseFont").Name(),
		enc:  pdf.Font{V: v}.Encoder(),
	}
	if f.name == "" {
		f.name = "unknown"
	}

	if v.Key("Subtype").Name() == "Type0" {
		f.multibyte = true
		desc := v.Key("DescendantFonts").Index(0)
		f.descent = descent(desc)
		f.width = cidWidths(desc)
		return f
	}

	f.descent = descent(v)
	f.width = simpleWidths(v)
	return f
}

func descent(v pdf.Value) float64 {
	return v.Key("FontDescriptor").Key("Descent").Float64() / 1000
}

func simpleWidths(v pdf.Value) func(int) float64 {
	first := int(v.Key("FirstChar").Int64())
	widths := v.Key("Widths")
	missing := v.Key("FontDescriptor").Key("MissingWidth").Float64()
	if missing == 0 {
		missing = defaultGlyphWidth
	}

	return func(code int) float64 {
		i := code - first
		if widths.Kind() != pdf.Array || i < 0 || i >= widths.Len() {
			return missing / 1000
		}
		w := widths.Index(i).Float64()
		if w == 0 {
			w = missing
		}
		return w / 1000
	}
}

// cidWidths reads the /W array of a descendant CID font. Entries are either
// "c [w1 w2 ...]" or "cfirst clast w".
func cidWidths(desc pdf.Value) func(int) float64 {
	dw := desc.Key("DW").Float64()
	if dw == 0 {
		dw = 1000
	}

	table := make(map[int]float64)
	w := desc.Key("W")
	for i := 0; i+1 < w.Len(); {
		start := int(w.Index(i).Int64())
		next := w.Index(i + 1)
		if next.Kind() == pdf.Array {
			for j := 0; j < next.Len(); j++ {
				table[start+j] = next.Index(j).Float64()
			}
			i += 2
			continue
		}
		if i+2 >= w.Len() {
			break
		}
		end := int(next.Int64())
		width := w.Index(i + 2).Float64()
		for c := start; c <= end && c-start < 1<<16; c++ {
			table[c] = width
		}
		i += 3
	}

	return func(code int) float64 {
		if width, ok := table[code]; ok && width != 0 {
			return width / 1000
		}
		return dw / 1000
	}
}

// codes splits a string operand into character codes.
func (f *font) codes(raw string) []int {
	if !f.multibyte {
		out := make([]int, len(raw))
		for i := 0; i < len(raw); i++ {
			out[i] = int(raw[i])
		}
		return out
	}
	out := make([]int, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		out = append(out, int(raw[i])<<8|int(raw[i+1]))
	}
	return out
}

// text decodes a single character code.
func (f *font) text(code int) string {
	var raw string
	if f.multibyte {
		raw = string([]byte{byte(code >> 8), byte(code)})
	} else {
		raw = string([]byte{byte(code)})
	}
	if f.enc != nil {
		if s := f.enc.Decode(raw); s != "" {
			return s
		}
	}
	return fmt.Sprintf("(cid:%d)", code)
}
