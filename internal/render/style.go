package render

import (
	"image/color"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Style is a parsed inline style attribute. Keys are lower-case properties.
type Style map[string]string

// ParseStyle parses a CSS declaration list such as "color: #fff; padding: 4px".
// Malformed declarations are skipped.
func ParseStyle(s string) Style {
	style := Style{}
	for _, decl := range strings.Split(s, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if name == "" || value == "" {
			continue
		}
		style[name] = value
	}
	return style
}

// StyleOf parses the style attribute of n.
func StyleOf(n *html.Node) Style {
	return ParseStyle(Attr(n, "style"))
}

// String serializes the style with properties sorted by name.
func (s Style) String() string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	var b strings.Builder
	for _, k := range keys {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(s[k])
		b.WriteString(";")
	}
	return b.String()
}

// PX returns the pixel value of prop. Only px and unitless values are understood.
func (s Style) PX(prop string) (float64, bool) {
	return ParsePX(s[prop])
}

// Color returns the color value of prop.
func (s Style) Color(prop string) (color.RGBA, bool) {
	return ParseColor(s[prop])
}

// ParsePX parses "12px" or "12".
func ParsePX(v string) (float64, bool) {
	v = strings.TrimSpace(strings.ToLower(v))
	v = strings.TrimSuffix(v, "px")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseColor parses #rgb and #rrggbb colors plus a few named colors.
func ParseColor(v string) (color.RGBA, bool) {
	v = strings.TrimSpace(strings.ToLower(v))
	switch v {
	case "black":
		return color.RGBA{A: 0xff}, true
	case "white":
		return color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, true
	case "transparent":
		return color.RGBA{}, true
	}
	if !strings.HasPrefix(v, "#") {
		return color.RGBA{}, false
	}
	hex := v[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, false
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xff}, true
}

// Border is a parsed "1px solid #4b5563" shorthand.
type Border struct {
	Width float64
	Color color.RGBA
}

// ParseBorder parses a border shorthand. Only solid borders are understood.
func ParseBorder(v string) (Border, bool) {
	var b Border
	var haveWidth bool
	for _, field := range strings.Fields(v) {
		if px, ok := ParsePX(field); ok {
			b.Width, haveWidth = px, true
			continue
		}
		if c, ok := ParseColor(field); ok {
			b.Color = c
		}
	}
	return b, haveWidth && b.Width > 0
}
