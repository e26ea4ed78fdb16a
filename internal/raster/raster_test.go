package raster

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/princehaifan/prdgenie/internal/render"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func element(t *testing.T, markup string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader("<html><body>" + markup + "</body></html>"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	body := render.Find(doc, func(n *html.Node) bool { return n.DataAtom == atom.Body })
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	t.Fatalf("no element in %q", markup)
	return nil
}

func newPainter(t *testing.T) *Painter {
	t.Helper()
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestRasterizeUsesWidthAndScale(t *testing.T) {
	p := newPainter(t)
	root := element(t, `<div style="width: 200px; padding: 10px"><h1>Title</h1><p>Some body text.</p></div>`)

	img, err := p.Rasterize(context.Background(), root, Options{Scale: 2})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 400 {
		t.Fatalf("width = %d, want 400", b.Dx())
	}
	if b.Dy() <= 40 {
		t.Fatalf("height %d too small for the content", b.Dy())
	}
}

func TestRasterizeIsDeterministic(t *testing.T) {
	p := newPainter(t)
	doc, err := render.NewRenderer().Render("# PRD\n\n- one\n- two\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n```\ncode\n```\n\n> quote\n\n---\n")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	first, err := p.Rasterize(context.Background(), doc.Article, Options{})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	second, err := p.Rasterize(context.Background(), doc.Article, Options{})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if first.Bounds() != second.Bounds() {
		t.Fatalf("bounds differ: %v vs %v", first.Bounds(), second.Bounds())
	}
	if !bytes.Equal(first.(*image.RGBA).Pix, second.(*image.RGBA).Pix) {
		t.Fatalf("pixels differ between identical renders")
	}
	if first.Bounds().Dx() != DefaultWidth*DefaultScale {
		t.Fatalf("default width = %d", first.Bounds().Dx())
	}
}

func TestRasterizePaintsBackground(t *testing.T) {
	p := newPainter(t)
	root := element(t, `<div style="background-color: #1f2937; color: #d1d5db; padding: 32px">text</div>`)

	img, err := p.Rasterize(context.Background(), root, Options{Width: 300, Scale: 1})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	got := color.RGBAModel.Convert(img.At(2, 2)).(color.RGBA)
	if got != (color.RGBA{0x1f, 0x29, 0x37, 0xff}) {
		t.Fatalf("background pixel = %v", got)
	}
}

func TestRasterizeDrawsDataURIImages(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	red := color.RGBA{0xff, 0, 0, 0xff}
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			src.Set(x, y, red)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("png: %v", err)
	}
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	p := newPainter(t)
	root := element(t, `<div><img src="`+uri+`" alt="mock"></div>`)
	img, err := p.Rasterize(context.Background(), root, Options{Width: 100, Scale: 1})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if img.Bounds().Dy() != 10 {
		t.Fatalf("height = %d, want image height 10", img.Bounds().Dy())
	}
	if got := color.RGBAModel.Convert(img.At(5, 5)).(color.RGBA); got != red {
		t.Fatalf("image pixel = %v", got)
	}
}

func TestRasterizeRemoteImageFallsBackToAltText(t *testing.T) {
	p := newPainter(t)
	root := element(t, `<div><img src="https://example.com/x.png" alt="diagram"></div>`)
	img, err := p.Rasterize(context.Background(), root, Options{Width: 200, Scale: 1})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if img.Bounds().Dy() != 24 {
		t.Fatalf("alt text should occupy one line, height = %d", img.Bounds().Dy())
	}
}

func TestRasterizeWrapsLongText(t *testing.T) {
	p := newPainter(t)
	root := element(t, `<p>`+strings.Repeat("word ", 200)+`</p>`)

	narrow, err := p.Rasterize(context.Background(), root, Options{Width: 200, Scale: 1})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	wide, err := p.Rasterize(context.Background(), root, Options{Width: 800, Scale: 1})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if narrow.Bounds().Dy() <= wide.Bounds().Dy() {
		t.Fatalf("narrow layout should be taller: %d vs %d", narrow.Bounds().Dy(), wide.Bounds().Dy())
	}
}

func TestRasterizeRejectsOversizedCanvas(t *testing.T) {
	p := newPainter(t)
	root := element(t, `<div>x</div>`)
	_, err := p.Rasterize(context.Background(), root, Options{Width: 20000, Scale: 2})
	if !errors.Is(err, ErrCanvasTooLarge) {
		t.Fatalf("expected ErrCanvasTooLarge, got %v", err)
	}

	tall := element(t, `<div>`+strings.Repeat("<p>line</p>", 2000)+`</div>`)
	_, err = p.Rasterize(context.Background(), tall, Options{Width: 100, Scale: 2})
	if !errors.Is(err, ErrCanvasTooLarge) {
		t.Fatalf("expected ErrCanvasTooLarge for tall content, got %v", err)
	}
}

func TestRasterizeHonoursCancellation(t *testing.T) {
	p := newPainter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Rasterize(ctx, element(t, `<div><p>x</p></div>`), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRasterizeRejectsNonElement(t *testing.T) {
	p := newPainter(t)
	if _, err := p.Rasterize(context.Background(), render.Text("x"), Options{}); err == nil {
		t.Fatalf("expected error for a text root")
	}
}

func TestParseSides(t *testing.T) {
	cases := map[string][4]float64{
		"4px":             {4, 4, 4, 4},
		"4px 8px":         {4, 8, 4, 8},
		"1px 2px 3px":     {1, 2, 3, 2},
		"1px 2px 3px 4px": {1, 2, 3, 4},
		"0 auto":          {0, 0, 0, 0},
	}
	for in, want := range cases {
		got, ok := parseSides(in)
		if !ok || got != want {
			t.Fatalf("parseSides(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := parseSides("1em"); ok {
		t.Fatalf("unsupported units should not parse")
	}
}
