package raster

import (
	"fmt"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

type fontSet struct {
	regular, bold, italic, boldItalic, mono, monoBold *opentype.Font
}

func loadFonts() (*fontSet, error) {
	parse := func(name string, ttf []byte) (*opentype.Font, error) {
		f, err := opentype.Parse(ttf)
		if err != nil {
			return nil, fmt.Errorf("failed to parse font %s: %w", name, err)
		}
		return f, nil
	}

	var (
		fs  fontSet
		err error
	)
	if fs.regular, err = parse("regular", goregular.TTF); err != nil {
		return nil, err
	}
	if fs.bold, err = parse("bold", gobold.TTF); err != nil {
		return nil, err
	}
	if fs.italic, err = parse("italic", goitalic.TTF); err != nil {
		return nil, err
	}
	if fs.boldItalic, err = parse("bold italic", gobolditalic.TTF); err != nil {
		return nil, err
	}
	if fs.mono, err = parse("mono", gomono.TTF); err != nil {
		return nil, err
	}
	if fs.monoBold, err = parse("mono bold", gomonobold.TTF); err != nil {
		return nil, err
	}
	return &fs, nil
}

func (fs *fontSet) pick(k faceKey) *opentype.Font {
	switch {
	case k.mono && k.bold:
		return fs.monoBold
	case k.mono:
		return fs.mono
	case k.bold && k.italic:
		return fs.boldItalic
	case k.bold:
		return fs.bold
	case k.italic:
		return fs.italic
	}
	return fs.regular
}

type faceKey struct {
	bold, italic, mono bool
	size               int
}

// face returns a cached face for the style. Faces are not safe for
// concurrent use, so each layout owns its cache.
func (l *layout) face(ts textStyle) font.Face {
	k := faceKey{bold: ts.bold, italic: ts.italic, mono: ts.mono, size: int(math.Round(ts.size))}
	if k.size < 1 {
		k.size = 1
	}
	if f, ok := l.faces[k]; ok {
		return f
	}
	f, err := opentype.NewFace(l.fonts.pick(k), &opentype.FaceOptions{
		Size:    float64(k.size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		// Only reachable with invalid options, which pick never produces.
		panic(fmt.Sprintf("raster: failed to create face: %v", err))
	}
	l.faces[k] = f
	return f
}

func (l *layout) close() {
	for _, f := range l.faces {
		f.Close()
	}
}
