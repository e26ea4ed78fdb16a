package raster

import (
	"image/color"
	"math"
	"strings"

	"github.com/princehaifan/prdgenie/internal/render"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	ruleColor      = color.RGBA{0x4b, 0x55, 0x63, 0xff}
	codeBackground = color.RGBA{0x11, 0x18, 0x27, 0xff}
	headBackground = color.RGBA{0x37, 0x41, 0x51, 0xff}
	linkColor      = color.RGBA{0x93, 0xc5, 0xfd, 0xff}
)

type align int

const (
	alignLeft align = iota
	alignCenter
	alignRight
)

// textStyle is the inherited text state, sizes in device pixels.
type textStyle struct {
	size      float64
	color     color.RGBA
	bold      bool
	italic    bool
	mono      bool
	strike    bool
	underline bool
	align     align
}

// boxModel holds block spacing in CSS pixels. Sides are top, right, bottom, left.
type boxModel struct {
	marginTop, marginBottom float64
	padding                 [4]float64
	border                  [4]render.Border
	background              color.RGBA
}

func defaultBox(a atom.Atom) boxModel {
	switch a {
	case atom.H1:
		return boxModel{marginBottom: 16}
	case atom.H2:
		return boxModel{marginTop: 24, marginBottom: 12}
	case atom.H3, atom.H4, atom.H5, atom.H6:
		return boxModel{marginTop: 20, marginBottom: 8}
	case atom.P, atom.Table, atom.Dl:
		return boxModel{marginBottom: 12}
	case atom.Ul, atom.Ol:
		return boxModel{marginBottom: 12, padding: [4]float64{0, 0, 0, 24}}
	case atom.Li:
		return boxModel{marginBottom: 4}
	case atom.Dd:
		return boxModel{padding: [4]float64{0, 0, 0, 24}}
	case atom.Blockquote:
		b := boxModel{marginBottom: 12, padding: [4]float64{0, 0, 0, 16}}
		b.border[3] = render.Border{Width: 4, Color: ruleColor}
		return b
	case atom.Pre:
		return boxModel{marginBottom: 12, padding: [4]float64{12, 12, 12, 12}, background: codeBackground}
	case atom.Hr:
		b := boxModel{marginTop: 16, marginBottom: 16}
		b.border[0] = render.Border{Width: 1, Color: ruleColor}
		return b
	}
	return boxModel{}
}

// applyStyle overrides the defaults with inline declarations.
func (b *boxModel) applyStyle(s render.Style) {
	if v, ok := parseSides(s["margin"]); ok {
		b.marginTop, b.marginBottom = v[0], v[2]
	}
	if px, ok := s.PX("margin-top"); ok {
		b.marginTop = px
	}
	if px, ok := s.PX("margin-bottom"); ok {
		b.marginBottom = px
	}
	if v, ok := parseSides(s["padding"]); ok {
		b.padding = v
	}
	for i, side := range []string{"top", "right", "bottom", "left"} {
		if px, ok := s.PX("padding-" + side); ok {
			b.padding[i] = px
		}
	}
	if v, ok := s["border"]; ok {
		border, _ := render.ParseBorder(v)
		b.border = [4]render.Border{border, border, border, border}
	}
	for i, side := range []string{"top", "right", "bottom", "left"} {
		if v, ok := s["border-"+side]; ok {
			b.border[i], _ = render.ParseBorder(v)
		}
	}
	if c, ok := s.Color("background-color"); ok {
		b.background = c
	} else if c, ok := s.Color("background"); ok {
		b.background = c
	}
}

// parseSides parses the 1 to 4 value CSS shorthand into top, right, bottom, left.
func parseSides(v string) ([4]float64, bool) {
	var vals []float64
	for _, f := range strings.Fields(v) {
		px, ok := render.ParsePX(f)
		if !ok {
			if f == "auto" {
				px = 0
			} else {
				return [4]float64{}, false
			}
		}
		vals = append(vals, px)
	}
	switch len(vals) {
	case 1:
		return [4]float64{vals[0], vals[0], vals[0], vals[0]}, true
	case 2:
		return [4]float64{vals[0], vals[1], vals[0], vals[1]}, true
	case 3:
		return [4]float64{vals[0], vals[1], vals[2], vals[1]}, true
	case 4:
		return [4]float64{vals[0], vals[1], vals[2], vals[3]}, true
	}
	return [4]float64{}, false
}

var headingSizes = map[atom.Atom]float64{
	atom.H1: 30, atom.H2: 24, atom.H3: 20, atom.H4: 18, atom.H5: 16, atom.H6: 14,
}

// inherit derives the text style of n from its parent's.
func (l *layout) inherit(n *html.Node, s render.Style, ts textStyle) textStyle {
	switch n.DataAtom {
	case atom.Strong, atom.B, atom.Th, atom.Dt:
		ts.bold = true
	case atom.Em, atom.I, atom.Blockquote:
		ts.italic = true
	case atom.Code, atom.Kbd, atom.Samp:
		if !ts.mono {
			ts.mono = true
			ts.size *= 0.875
		}
	case atom.Pre:
		ts.mono = true
		ts.size = 14 * l.scale
	case atom.Del, atom.S, atom.Strike:
		ts.strike = true
	case atom.U, atom.Ins:
		ts.underline = true
	case atom.A:
		ts.underline = true
		ts.color = linkColor
	case atom.Small:
		ts.size *= 0.875
	}
	if size, ok := headingSizes[n.DataAtom]; ok {
		ts.bold = true
		ts.size = size * l.scale
	}

	if px, ok := s.PX("font-size"); ok && px > 0 {
		ts.size = px * l.scale
	}
	if c, ok := s.Color("color"); ok {
		ts.color = c
	}
	switch s["font-weight"] {
	case "bold", "bolder", "600", "700", "800", "900":
		ts.bold = true
	case "normal", "400":
		ts.bold = false
	}
	switch s["font-style"] {
	case "italic", "oblique":
		ts.italic = true
	case "normal":
		ts.italic = false
	}
	if strings.Contains(s["font-family"], "mono") {
		ts.mono = true
	}
	switch s["text-align"] {
	case "center":
		ts.align = alignCenter
	case "right", "end":
		ts.align = alignRight
	case "left", "start":
		ts.align = alignLeft
	}
	if n.DataAtom == atom.Td || n.DataAtom == atom.Th {
		switch render.Attr(n, "align") {
		case "center":
			ts.align = alignCenter
		case "right":
			ts.align = alignRight
		}
	}
	return ts
}

func (l *layout) px(v float64) int {
	return int(math.Round(v * l.scale))
}

// thickness is one CSS pixel in device pixels, at least one.
func (l *layout) thickness() int {
	return max(1, l.px(1))
}

func (l *layout) lineHeight(ts textStyle) int {
	return int(math.Round(ts.size * 1.5))
}
