package docx

import (
	"context"
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/princehaifan/prdgenie/internal/render"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type runStyle struct {
	bold      bool
	italic    bool
	strike    bool
	underline bool
	mono      bool
	// size in half-points; zero inherits the paragraph style.
	size  int
	color string
}

type paraProps struct {
	style string
	align string
	// indent for continuation paragraphs inside list items, in twips.
	indent int
}

type numPr struct {
	id, level int
}

type segment struct {
	text string
	rs   runStyle
	brk  bool
	// link is the hyperlink index, or -1.
	link int
}

// writer accumulates the document body.
type writer struct {
	ctx   context.Context
	width int
	out   strings.Builder

	links         []string
	linkIndex     map[string]int
	orderedStarts []int
	pendingNum    *numPr
	depth         int
	paragraphs    int
}

func newWriter(ctx context.Context, width int) *writer {
	return &writer{ctx: ctx, width: width, linkIndex: make(map[string]int)}
}

func (w *writer) body(nodes []*html.Node) error {
	return w.blocks(nodes, paraProps{}, runStyle{})
}

func childNodes(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// blocks writes mixed content: inline runs between block children become paragraphs.
func (w *writer) blocks(nodes []*html.Node, pp paraProps, rs runStyle) error {
	var inline []*html.Node
	for _, n := range nodes {
		if render.IsHidden(n) {
			continue
		}
		if !render.IsBlock(n) {
			inline = append(inline, n)
			continue
		}
		w.paragraph(inline, pp, rs)
		inline = nil
		if err := w.block(n, pp, rs); err != nil {
			return err
		}
	}
	w.paragraph(inline, pp, rs)
	return nil
}

func (w *writer) block(n *html.Node, pp paraProps, rs runStyle) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	style := render.StyleOf(n)
	rs = runStyleOf(n, style, rs)
	switch style["text-align"] {
	case "center":
		pp.align = "center"
	case "right", "end":
		pp.align = "right"
	case "justify":
		pp.align = "both"
	case "left", "start":
		pp.align = ""
	}

	if level := render.HeadingLevel(n); level > 0 {
		pp.style = "Heading" + strconv.Itoa(level)
		w.paragraph(childNodes(n), pp, rs)
		return nil
	}

	switch n.DataAtom {
	case atom.P:
		w.paragraph(childNodes(n), pp, rs)
	case atom.Pre:
		w.pre(n, pp)
	case atom.Hr:
		w.out.WriteString(`<w:p><w:pPr><w:pBdr><w:bottom w:val="single" w:sz="6" w:space="1" w:color="9CA3AF"/></w:pBdr></w:pPr></w:p>`)
		w.paragraphs++
	case atom.Ul, atom.Ol:
		return w.list(n, pp, rs)
	case atom.Table:
		return w.table(n, rs)
	case atom.Blockquote:
		pp.style = "Quote"
		return w.blocks(childNodes(n), pp, rs)
	default:
		return w.blocks(childNodes(n), pp, rs)
	}
	return nil
}

func (w *writer) list(n *html.Node, pp paraProps, rs runStyle) error {
	id := bulletNum
	if n.DataAtom == atom.Ol {
		start := 1
		if s, err := strconv.Atoi(render.Attr(n, "start")); err == nil {
			start = s
		}
		w.orderedStarts = append(w.orderedStarts, start)
		id = bulletNum + len(w.orderedStarts)
	}
	level := min(w.depth, maxLevel)
	w.depth++
	defer func() { w.depth-- }()

	for _, li := range childNodes(n) {
		if render.IsHidden(li) || li.Type != html.ElementNode {
			continue
		}
		if li.DataAtom != atom.Li {
			if err := w.block(li, pp, rs); err != nil {
				return err
			}
			continue
		}
		w.pendingNum = &numPr{id: id, level: level}
		lp := pp
		lp.style = "ListParagraph"
		lp.indent = 720 * (level + 1)
		err := w.blocks(childNodes(li), lp, runStyleOf(li, render.StyleOf(li), rs))
		w.pendingNum = nil
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) table(n *html.Node, rs runStyle) error {
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
		cols = max(cols, len(rowCells(tr)))
	}
	if cols == 0 {
		return nil
	}
	colW := w.width / cols
	// List numbering never applies inside tables.
	w.pendingNum = nil

	w.out.WriteString(`<w:tbl><w:tblPr><w:tblStyle w:val="TableGrid"/>`)
	fmt.Fprintf(&w.out, `<w:tblW w:w="%d" w:type="dxa"/><w:tblLook w:val="04A0"/></w:tblPr><w:tblGrid>`, colW*cols)
	for range cols {
		fmt.Fprintf(&w.out, `<w:gridCol w:w="%d"/>`, colW)
	}
	w.out.WriteString(`</w:tblGrid>`)

	for _, tr := range rows {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		cells := rowCells(tr)
		header := len(cells) > 0 && cells[0].DataAtom == atom.Th
		w.out.WriteString(`<w:tr>`)
		if header {
			w.out.WriteString(`<w:trPr><w:tblHeader/></w:trPr>`)
		}
		for i := range cols {
			fmt.Fprintf(&w.out, `<w:tc><w:tcPr><w:tcW w:w="%d" w:type="dxa"/>`, colW)
			if header {
				w.out.WriteString(`<w:shd w:val="clear" w:color="auto" w:fill="E5E7EB"/>`)
			}
			w.out.WriteString(`</w:tcPr>`)
			before := w.paragraphs
			if i < len(cells) {
				cell := cells[i]
				var pp paraProps
				switch render.Attr(cell, "align") {
				case "center":
					pp.align = "center"
				case "right":
					pp.align = "right"
				}
				if err := w.blocks(childNodes(cell), pp, runStyleOf(cell, render.StyleOf(cell), rs)); err != nil {
					return err
				}
			}
			// A cell must end with a paragraph.
			if w.paragraphs == before {
				w.out.WriteString(`<w:p/>`)
			}
			w.out.WriteString(`</w:tc>`)
		}
		w.out.WriteString(`</w:tr>`)
	}
	w.out.WriteString(`</w:tbl>`)
	return nil
}

func rowCells(tr *html.Node) []*html.Node {
	var out []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.DataAtom == atom.Td || c.DataAtom == atom.Th {
			out = append(out, c)
		}
	}
	return out
}

func (w *writer) pre(n *html.Node, pp paraProps) {
	text := strings.TrimRight(render.TextContent(n), "\n")
	text = strings.ReplaceAll(text, "\t", "    ")
	pp.style = "Code"
	w.openParagraph(pp)
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			w.out.WriteString(`<w:r><w:br/></w:r>`)
		}
		if line != "" {
			fmt.Fprintf(&w.out, `<w:r><w:t xml:space="preserve">%s</w:t></w:r>`, escape(line))
		}
	}
	w.closeParagraph()
}

// paragraph writes the inline nodes as one paragraph, skipping whitespace-only content.
func (w *writer) paragraph(nodes []*html.Node, pp paraProps, rs runStyle) {
	var segs []segment
	for _, n := range nodes {
		segs = w.collect(n, rs, -1, segs)
	}
	segs = normalize(segs)
	if len(segs) == 0 {
		return
	}

	w.openParagraph(pp)
	for i := 0; i < len(segs); {
		link := segs[i].link
		j := i
		for j < len(segs) && segs[j].link == link {
			j++
		}
		if link >= 0 {
			fmt.Fprintf(&w.out, `<w:hyperlink r:id="%s">`, linkID(link))
		}
		for _, s := range segs[i:j] {
			writeRun(&w.out, s)
		}
		if link >= 0 {
			w.out.WriteString(`</w:hyperlink>`)
		}
		i = j
	}
	w.closeParagraph()
}

func (w *writer) openParagraph(pp paraProps) {
	w.out.WriteString(`<w:p>`)
	var ppr strings.Builder
	if pp.style != "" {
		fmt.Fprintf(&ppr, `<w:pStyle w:val="%s"/>`, pp.style)
	}
	if w.pendingNum != nil {
		fmt.Fprintf(&ppr, `<w:numPr><w:ilvl w:val="%d"/><w:numId w:val="%d"/></w:numPr>`, w.pendingNum.level, w.pendingNum.id)
		w.pendingNum = nil
	} else if pp.indent > 0 {
		fmt.Fprintf(&ppr, `<w:ind w:left="%d"/>`, pp.indent)
	}
	if pp.align != "" {
		fmt.Fprintf(&ppr, `<w:jc w:val="%s"/>`, pp.align)
	}
	if ppr.Len() > 0 {
		w.out.WriteString(`<w:pPr>` + ppr.String() + `</w:pPr>`)
	}
}

func (w *writer) closeParagraph() {
	w.out.WriteString(`</w:p>`)
	w.paragraphs++
}

func (w *writer) collect(n *html.Node, rs runStyle, link int, segs []segment) []segment {
	if render.IsHidden(n) {
		return segs
	}
	if n.Type == html.TextNode {
		return append(segs, segment{text: collapseSpace(n.Data), rs: rs, link: link})
	}

	switch n.DataAtom {
	case atom.Br:
		return append(segs, segment{brk: true, rs: rs, link: link})
	case atom.Img:
		alt := render.Attr(n, "alt")
		if alt == "" {
			alt = "image"
		}
		rs.italic = true
		return append(segs, segment{text: "[" + alt + "]", rs: rs, link: link})
	case atom.Input:
		if render.Attr(n, "type") != "checkbox" {
			return segs
		}
		mark := "[ ] "
		for _, a := range n.Attr {
			if a.Key == "checked" {
				mark = "[x] "
			}
		}
		return append(segs, segment{text: mark, rs: rs, link: link})
	case atom.A:
		if href := render.Attr(n, "href"); href != "" && !strings.HasPrefix(href, "#") {
			link = w.addLink(href)
		}
	}

	rs = runStyleOf(n, render.StyleOf(n), rs)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		segs = w.collect(c, rs, link, segs)
	}
	return segs
}

func (w *writer) addLink(href string) int {
	if i, ok := w.linkIndex[href]; ok {
		return i
	}
	w.links = append(w.links, href)
	w.linkIndex[href] = len(w.links) - 1
	return len(w.links) - 1
}

// collapseSpace folds whitespace runs into single spaces, as HTML flow layout does.
func collapseSpace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' || r == '\f' {
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	if space {
		b.WriteByte(' ')
	}
	return b.String()
}

// normalize drops spaces at line starts and ends and removes empty segments.
func normalize(segs []segment) []segment {
	out := segs[:0]
	lineStart := true
	for _, s := range segs {
		if s.brk {
			trimTrailing(out)
			out = append(out, s)
			lineStart = true
			continue
		}
		if lineStart || endsWithSpace(out) {
			s.text = strings.TrimLeft(s.text, " ")
		}
		if s.text == "" {
			continue
		}
		out = append(out, s)
		lineStart = false
	}
	trimTrailing(out)

	final := out[:0]
	for _, s := range out {
		if s.brk || s.text != "" {
			final = append(final, s)
		}
	}
	return final
}

func endsWithSpace(segs []segment) bool {
	if len(segs) == 0 {
		return false
	}
	last := segs[len(segs)-1]
	return !last.brk && strings.HasSuffix(last.text, " ")
}

func trimTrailing(segs []segment) {
	if len(segs) > 0 && !segs[len(segs)-1].brk {
		segs[len(segs)-1].text = strings.TrimRight(segs[len(segs)-1].text, " ")
	}
}

func writeRun(b *strings.Builder, s segment) {
	b.WriteString(`<w:r>`)
	if rpr := s.rs.properties(s.link >= 0); rpr != "" {
		b.WriteString(`<w:rPr>` + rpr + `</w:rPr>`)
	}
	if s.brk {
		b.WriteString(`<w:br/>`)
	} else {
		fmt.Fprintf(b, `<w:t xml:space="preserve">%s</w:t>`, escape(s.text))
	}
	b.WriteString(`</w:r>`)
}

// properties renders rPr children in schema order.
func (rs runStyle) properties(link bool) string {
	var b strings.Builder
	if link {
		b.WriteString(`<w:rStyle w:val="Hyperlink"/>`)
	}
	if rs.mono {
		b.WriteString(`<w:rFonts w:ascii="Courier New" w:hAnsi="Courier New" w:cs="Courier New"/>`)
	}
	if rs.bold {
		b.WriteString(`<w:b/><w:bCs/>`)
	}
	if rs.italic {
		b.WriteString(`<w:i/><w:iCs/>`)
	}
	if rs.strike {
		b.WriteString(`<w:strike/>`)
	}
	if rs.color != "" {
		fmt.Fprintf(&b, `<w:color w:val="%s"/>`, rs.color)
	}
	if rs.size > 0 {
		fmt.Fprintf(&b, `<w:sz w:val="%d"/><w:szCs w:val="%d"/>`, rs.size, rs.size)
	}
	if rs.underline {
		b.WriteString(`<w:u w:val="single"/>`)
	}
	return b.String()
}

func runStyleOf(n *html.Node, s render.Style, rs runStyle) runStyle {
	switch n.DataAtom {
	case atom.Strong, atom.B, atom.Th, atom.Dt:
		rs.bold = true
	case atom.Em, atom.I:
		rs.italic = true
	case atom.Del, atom.S, atom.Strike:
		rs.strike = true
	case atom.U, atom.Ins:
		rs.underline = true
	case atom.Code, atom.Kbd, atom.Samp:
		rs.mono = true
	}
	if px, ok := s.PX("font-size"); ok && px > 0 {
		// One CSS pixel is three quarters of a point; w:sz counts half-points.
		rs.size = int(math.Round(px * 1.5))
	}
	if c, ok := s.Color("color"); ok && c.A > 0 {
		rs.color = fmt.Sprintf("%02X%02X%02X", c.R, c.G, c.B)
	}
	switch s["font-weight"] {
	case "bold", "bolder", "600", "700", "800", "900":
		rs.bold = true
	case "normal", "400":
		rs.bold = false
	}
	switch s["font-style"] {
	case "italic", "oblique":
		rs.italic = true
	case "normal":
		rs.italic = false
	}
	return rs
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
