package raster

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/princehaifan/prdgenie/internal/render"
	"golang.org/x/image/font"
	_ "golang.org/x/image/webp"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var errRemoteImage = errors.New("only data URI images are rendered")

// layout builds the display list. All coordinates are device pixels.
type layout struct {
	ctx   context.Context
	scale float64
	fonts *fontSet
	faces map[faceKey]font.Face
	ops   []op
}

// block lays out a block element whose border box starts at (x, y) and spans
// width. It returns the y just below the element's bottom margin.
func (l *layout) block(n *html.Node, x, y, width int, ts textStyle) (int, error) {
	if err := l.ctx.Err(); err != nil {
		return y, err
	}
	style := render.StyleOf(n)
	ts = l.inherit(n, style, ts)
	box := defaultBox(n.DataAtom)
	box.applyStyle(style)

	var border [4]int
	for i, b := range box.border {
		if b.Width > 0 {
			border[i] = max(1, l.px(b.Width))
		}
	}
	var pad [4]int
	for i, p := range box.padding {
		pad[i] = l.px(p)
	}

	y += l.px(box.marginTop)
	top := y
	bg := l.reserve()

	innerX := x + border[3] + pad[3]
	innerW := width - border[1] - border[3] - pad[1] - pad[3]
	if innerW < 1 {
		innerW = 1
	}
	y += border[0] + pad[0]

	var err error
	switch n.DataAtom {
	case atom.Hr:
	case atom.Pre:
		y = l.pre(n, innerX, y, innerW, ts)
	case atom.Table:
		y, err = l.table(n, innerX, y, innerW, ts)
	case atom.Ul, atom.Ol:
		y, err = l.list(n, innerX, y, innerW, ts)
	default:
		y, err = l.children(n, innerX, y, innerW, ts)
	}
	if err != nil {
		return y, err
	}
	y += pad[2] + border[2]

	l.fillAt(bg, image.Rect(x, top, x+width, y), box.background)
	l.fill(image.Rect(x, top, x+width, top+border[0]), box.border[0].Color)
	l.fill(image.Rect(x+width-border[1], top, x+width, y), box.border[1].Color)
	l.fill(image.Rect(x, y-border[2], x+width, y), box.border[2].Color)
	l.fill(image.Rect(x, top, x+border[3], y), box.border[3].Color)

	return y + l.px(box.marginBottom), nil
}

// children lays out mixed content: runs of inline nodes become paragraphs
// between block children.
func (l *layout) children(n *html.Node, x, y, width int, ts textStyle) (int, error) {
	var inline []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if render.IsHidden(c) {
			continue
		}
		if !render.IsBlock(c) {
			inline = append(inline, c)
			continue
		}
		if len(inline) > 0 {
			y = l.paragraph(inline, x, y, width, ts)
			inline = inline[:0]
		}
		var err error
		if y, err = l.block(c, x, y, width, ts); err != nil {
			return y, err
		}
	}
	if len(inline) > 0 {
		y = l.paragraph(inline, x, y, width, ts)
	}
	return y, nil
}

type word struct {
	text  string
	ts    textStyle
	space bool
	brk   bool
	img   *html.Node
}

type placed struct {
	word  word
	x     int
	width int
	face  font.Face
}

type wordCollector struct {
	words []word
	space bool
}

func (l *layout) collect(n *html.Node, ts textStyle, wc *wordCollector) {
	if render.IsHidden(n) {
		return
	}
	if n.Type == html.TextNode {
		if n.Data == "" {
			return
		}
		first, _ := utf8.DecodeRuneInString(n.Data)
		last, _ := utf8.DecodeLastRuneInString(n.Data)
		for i, f := range strings.Fields(n.Data) {
			wc.words = append(wc.words, word{text: f, ts: ts, space: wc.space || i > 0 || unicode.IsSpace(first)})
			wc.space = false
		}
		if unicode.IsSpace(last) {
			wc.space = true
		}
		return
	}

	switch n.DataAtom {
	case atom.Br:
		wc.words = append(wc.words, word{brk: true, ts: ts})
		wc.space = false
		return
	case atom.Img:
		wc.words = append(wc.words, word{img: n, ts: ts})
		wc.space = false
		return
	case atom.Input:
		if render.Attr(n, "type") == "checkbox" {
			mark := "[ ]"
			if hasAttr(n, "checked") {
				mark = "[x]"
			}
			wc.words = append(wc.words, word{text: mark, ts: ts, space: wc.space})
			wc.space = true
		}
		return
	}

	ts = l.inherit(n, render.StyleOf(n), ts)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		l.collect(c, ts, wc)
	}
}

// paragraph wraps inline content greedily into lines of at most width.
func (l *layout) paragraph(nodes []*html.Node, x, y, width int, ts textStyle) int {
	wc := &wordCollector{}
	for _, n := range nodes {
		l.collect(n, ts, wc)
	}

	var (
		line  []placed
		lineW int
	)
	flush := func() {
		y = l.line(line, x, y, width, lineW, ts.align)
		line = line[:0]
		lineW = 0
	}
	for _, w := range wc.words {
		switch {
		case w.brk:
			if len(line) == 0 {
				y += l.lineHeight(w.ts)
			} else {
				flush()
			}
			continue
		case w.img != nil:
			if len(line) > 0 {
				flush()
			}
			y = l.image(w.img, x, y, width, w.ts)
			continue
		}

		face := l.face(w.ts)
		ww := font.MeasureString(face, w.text).Ceil()
		sw := 0
		if w.space && len(line) > 0 {
			sw = font.MeasureString(face, " ").Ceil()
		}
		if len(line) > 0 && lineW+sw+ww > width {
			flush()
			sw = 0
		}
		line = append(line, placed{word: w, x: lineW + sw, width: ww, face: face})
		lineW += sw + ww
	}
	if len(line) > 0 {
		flush()
	}
	return y
}

func (l *layout) line(line []placed, x, y, width, lineW int, a align) int {
	var lh, asc, desc int
	for _, p := range line {
		m := p.face.Metrics()
		lh = max(lh, l.lineHeight(p.word.ts))
		asc = max(asc, m.Ascent.Ceil())
		desc = max(desc, m.Descent.Ceil())
	}
	baseline := y + (lh-asc-desc)/2 + asc

	offset := 0
	switch a {
	case alignCenter:
		offset = (width - lineW) / 2
	case alignRight:
		offset = width - lineW
	}
	offset = max(offset, 0)

	thick := l.thickness()
	for _, p := range line {
		px := x + offset + p.x
		l.ops = append(l.ops, textOp{x: px, baseline: baseline, text: p.word.text, face: p.face, color: p.word.ts.color})
		if p.word.ts.strike {
			sy := baseline - p.face.Metrics().XHeight.Ceil()/2
			l.fill(image.Rect(px, sy, px+p.width, sy+thick), p.word.ts.color)
		}
		if p.word.ts.underline {
			l.fill(image.Rect(px, baseline+thick, px+p.width, baseline+2*thick), p.word.ts.color)
		}
	}
	return y + lh
}

// pre lays out preformatted text line by line without wrapping, clipped to the box.
func (l *layout) pre(n *html.Node, x, y, width int, ts textStyle) int {
	text := strings.TrimRight(render.TextContent(n), "\n")
	text = strings.ReplaceAll(text, "\t", "    ")
	lines := strings.Split(text, "\n")

	face := l.face(ts)
	m := face.Metrics()
	lh := l.lineHeight(ts)
	clip := image.Rect(x, y, x+width, y+lh*len(lines))
	for _, s := range lines {
		baseline := y + (lh-m.Ascent.Ceil()-m.Descent.Ceil())/2 + m.Ascent.Ceil()
		if s != "" {
			l.ops = append(l.ops, textOp{x: x, baseline: baseline, text: s, face: face, color: ts.color, clip: clip})
		}
		y += lh
	}
	return y
}

func (l *layout) list(n *html.Node, x, y, width int, ts textStyle) (int, error) {
	ordered := n.DataAtom == atom.Ol
	index := 1
	if start, err := strconv.Atoi(render.Attr(n, "start")); err == nil {
		index = start
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if render.IsHidden(c) || c.Type != html.ElementNode {
			continue
		}
		if c.DataAtom != atom.Li {
			var err error
			if y, err = l.block(c, x, y, width, ts); err != nil {
				return y, err
			}
			continue
		}

		marker := "•"
		if ordered {
			marker = strconv.Itoa(index) + "."
			index++
		}
		// The marker sits on the first line of the item, which starts after its top margin.
		its := l.inherit(c, render.StyleOf(c), ts)
		face := l.face(its)
		m := face.Metrics()
		lh := l.lineHeight(its)
		itemTop := y + l.px(defaultBox(atom.Li).marginTop)
		baseline := itemTop + (lh-m.Ascent.Ceil()-m.Descent.Ceil())/2 + m.Ascent.Ceil()
		mw := font.MeasureString(face, marker).Ceil()
		l.ops = append(l.ops, textOp{x: x - mw - l.px(6), baseline: baseline, text: marker, face: face, color: its.color})

		var err error
		if y, err = l.block(c, x, y, width, ts); err != nil {
			return y, err
		}
	}
	return y, nil
}

// table lays out rows with equal column widths and cell borders.
func (l *layout) table(n *html.Node, x, y, width int, ts textStyle) (int, error) {
	var rows []*html.Node
	var walk func(*html.Node)
	walk = func(p *html.Node) {
		for c := p.FirstChild; c != nil; c = c.NextSibling {
			switch c.DataAtom {
			case atom.Thead, atom.Tbody, atom.Tfoot:
				walk(c)
			case atom.Tr:
				rows = append(rows, c)
			}
		}
	}
	walk(n)

	cols := 0
	for _, tr := range rows {
		cols = max(cols, len(cells(tr)))
	}
	if cols == 0 {
		return y, nil
	}
	colW := width / cols
	pad := l.px(8)
	thick := l.thickness()

	for _, tr := range rows {
		if err := l.ctx.Err(); err != nil {
			return y, err
		}
		top := y
		bottom := top + l.lineHeight(ts) + 2*pad
		bg := l.reserve()
		header := false
		row := cells(tr)
		for i, cell := range row {
			header = header || cell.DataAtom == atom.Th
			cx := x + i*colW
			cts := l.inherit(cell, render.StyleOf(cell), ts)
			cy, err := l.children(cell, cx+pad, top+pad, colW-2*pad, cts)
			if err != nil {
				return cy, err
			}
			bottom = max(bottom, cy+pad)
		}
		if header {
			l.fillAt(bg, image.Rect(x, top, x+colW*cols, bottom), headBackground)
		}
		for i := range cols {
			cx := x + i*colW
			l.outline(image.Rect(cx, top, cx+colW, bottom), thick, ruleColor)
		}
		y = bottom
	}
	return y, nil
}

func cells(tr *html.Node) []*html.Node {
	var out []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.DataAtom == atom.Td || c.DataAtom == atom.Th {
			out = append(out, c)
		}
	}
	return out
}

// image paints a data URI image scaled down to fit width. Images that cannot
// be decoded render their alt text instead.
func (l *layout) image(n *html.Node, x, y, width int, ts textStyle) int {
	img, err := decodeDataURI(render.Attr(n, "src"))
	if err != nil {
		alt := render.Attr(n, "alt")
		if alt == "" {
			alt = "image"
		}
		ts.italic = true
		return l.paragraph([]*html.Node{render.Text("[" + alt + "]")}, x, y, width, ts)
	}

	b := img.Bounds()
	w := l.px(float64(b.Dx()))
	h := l.px(float64(b.Dy()))
	if w > width {
		h = h * width / w
		w = width
	}
	if w <= 0 || h <= 0 {
		return y
	}
	l.ops = append(l.ops, imageOp{rect: image.Rect(x, y, x+w, y+h), src: img})
	return y + h
}

func decodeDataURI(src string) (image.Image, error) {
	rest, ok := strings.CutPrefix(src, "data:")
	if !ok {
		return nil, errRemoteImage
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("unsupported data URI encoding")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URI: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
