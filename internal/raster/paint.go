package raster

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// op is one entry of the display list built by layout.
type op interface {
	paint(dst *image.RGBA)
}

type fillOp struct {
	rect  image.Rectangle
	color color.RGBA
}

func (o fillOp) paint(dst *image.RGBA) {
	draw.Draw(dst, o.rect, image.NewUniform(o.color), image.Point{}, draw.Over)
}

type textOp struct {
	x, baseline int
	text        string
	face        font.Face
	color       color.RGBA
	// clip limits drawing when non-empty.
	clip image.Rectangle
}

func (o textOp) paint(dst *image.RGBA) {
	var target draw.Image = dst
	if !o.clip.Empty() {
		target = dst.SubImage(o.clip).(*image.RGBA)
	}
	d := font.Drawer{
		Dst:  target,
		Src:  image.NewUniform(o.color),
		Face: o.face,
		Dot:  fixed.P(o.x, o.baseline),
	}
	d.DrawString(o.text)
}

type imageOp struct {
	rect image.Rectangle
	src  image.Image
}

func (o imageOp) paint(dst *image.RGBA) {
	if o.rect.Size() == o.src.Bounds().Size() {
		draw.Draw(dst, o.rect, o.src, o.src.Bounds().Min, draw.Over)
		return
	}
	draw.ApproxBiLinear.Scale(dst, o.rect, o.src, o.src.Bounds(), draw.Over, nil)
}

// fill appends a rectangle fill, dropping empty ones.
func (l *layout) fill(r image.Rectangle, c color.RGBA) {
	if r.Empty() || c.A == 0 {
		return
	}
	l.ops = append(l.ops, fillOp{rect: r, color: c})
}

// reserve appends a placeholder so a background can be painted under content
// whose extent is not known yet.
func (l *layout) reserve() int {
	l.ops = append(l.ops, nil)
	return len(l.ops) - 1
}

func (l *layout) fillAt(idx int, r image.Rectangle, c color.RGBA) {
	if r.Empty() || c.A == 0 {
		return
	}
	l.ops[idx] = fillOp{rect: r, color: c}
}

func (l *layout) outline(r image.Rectangle, thick int, c color.RGBA) {
	l.fill(image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thick), c)
	l.fill(image.Rect(r.Min.X, r.Max.Y-thick, r.Max.X, r.Max.Y), c)
	l.fill(image.Rect(r.Min.X, r.Min.Y, r.Min.X+thick, r.Max.Y), c)
	l.fill(image.Rect(r.Max.X-thick, r.Min.Y, r.Max.X, r.Max.Y), c)
}
