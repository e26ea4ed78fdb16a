// Package raster lays out an HTML subtree and paints it to an image.
//
// The layout engine understands the block and inline elements produced by
// Markdown rendering (headings, paragraphs, lists, quotes, code, tables,
// rules, images) and a small subset of inline CSS.
package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/princehaifan/prdgenie/internal/render"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/net/html"
)

const (
	// DefaultScale is the pixel density used for exports.
	DefaultScale = 2.0
	// DefaultWidth is the CSS width used when neither options nor the root style set one.
	DefaultWidth = 896
	// MaxDimension bounds both canvas sides, in device pixels.
	MaxDimension = 32767
	// DefaultFontSize is the root font size in CSS pixels.
	DefaultFontSize = 16
)

// ErrCanvasTooLarge is returned when the laid out content exceeds MaxDimension.
var ErrCanvasTooLarge = errors.New("canvas exceeds maximum dimension")

// Options controls rasterization.
type Options struct {
	// Scale is the device pixel ratio. Zero means DefaultScale.
	Scale float64
	// Width is the layout width in CSS pixels. Zero means the root's style
	// width, or DefaultWidth.
	Width int
	// Background fills the canvas before painting. Nil means white.
	Background color.Color
	// Foreground is the initial text color. Nil means black.
	Foreground color.Color
}

// Rasterizer renders an element subtree to an image.
type Rasterizer interface {
	Rasterize(ctx context.Context, root *html.Node, opts Options) (image.Image, error)
}

// Painter is the built-in Rasterizer using the Go font family.
//
// Safe for concurrent use; font faces are created per call.
type Painter struct {
	fonts *fontSet
}

// New parses the embedded fonts and returns a Painter.
func New() (*Painter, error) {
	fonts, err := loadFonts()
	if err != nil {
		return nil, err
	}
	return &Painter{fonts: fonts}, nil
}

// Rasterize lays out root at the requested width and paints it. The canvas
// height is the laid out content height.
func (p *Painter) Rasterize(ctx context.Context, root *html.Node, opts Options) (image.Image, error) {
	if root == nil || root.Type != html.ElementNode {
		return nil, fmt.Errorf("rasterize: root must be an element")
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = DefaultScale
	}
	cssWidth := float64(opts.Width)
	if cssWidth <= 0 {
		if w, ok := render.StyleOf(root).PX("width"); ok && w > 0 {
			cssWidth = w
		} else {
			cssWidth = DefaultWidth
		}
	}
	width := int(math.Round(cssWidth * scale))
	if width <= 0 {
		return nil, fmt.Errorf("rasterize: width %v is not positive", cssWidth)
	}
	if width > MaxDimension {
		return nil, fmt.Errorf("%w: width %d", ErrCanvasTooLarge, width)
	}

	l := &layout{
		ctx:   ctx,
		scale: scale,
		fonts: p.fonts,
		faces: make(map[faceKey]font.Face),
	}
	defer l.close()

	base := textStyle{size: DefaultFontSize * scale, color: color.RGBA{A: 0xff}}
	if opts.Foreground != nil {
		base.color = toRGBA(opts.Foreground)
	}
	height, err := l.block(root, 0, 0, width, base)
	if err != nil {
		return nil, fmt.Errorf("rasterize: %w", err)
	}
	if height <= 0 {
		height = 1
	}
	if height > MaxDimension {
		return nil, fmt.Errorf("%w: height %d", ErrCanvasTooLarge, height)
	}

	var bg color.Color = color.White
	if opts.Background != nil {
		bg = opts.Background
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	for _, o := range l.ops {
		if o == nil {
			continue
		}
		o.paint(img)
	}
	return img, nil
}

func toRGBA(c color.Color) color.RGBA {
	return color.RGBAModel.Convert(c).(color.RGBA)
}
