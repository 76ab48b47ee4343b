package format

import (
	"errors"
	"fmt"
	"image/color"
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ErrUnknownColormap is returned for colormap names that are not registered.
var ErrUnknownColormap = errors.New("format: unknown colormap")

// DefaultColormap is used when no colormap is given.
const DefaultColormap = "viridis"

// Colormap maps intensities in [0, 255] to colours.
type Colormap struct {
	name string
	lut  [256]color.RGBA
}

// newColormap samples evenly spaced control points into a lookup table,
// interpolating linearly in RGB.
func newColormap(name string, stops ...string) *Colormap {
	colors := make([]colorful.Color, len(stops))
	for i, s := range stops {
		colors[i] = mustHex(s)
	}

	cm := &Colormap{name: name}
	segments := float64(len(colors) - 1)
	for i := range cm.lut {
		pos := float64(i) / 255 * segments
		lo := int(pos)
		if lo >= len(colors)-1 {
			lo = len(colors) - 2
		}
		c := colors[lo].BlendRgb(colors[lo+1], pos-float64(lo)).Clamped()
		r, g, b := c.RGB255()
		cm.lut[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return cm
}

// mustHex parses a "#rrggbb" colour and panics on malformed input.
func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(fmt.Sprintf("format: colormap stop %q: %v", s, err))
	}
	return c
}

var colormaps = map[string]*Colormap{
	"viridis": newColormap("viridis",
		"#440154", "#482878", "#3e4989", "#31688e", "#26828e",
		"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"),
	"magma": newColormap("magma",
		"#000004", "#180f3d", "#440f76", "#721f81", "#9e2f7f",
		"#cd4071", "#f1605d", "#fd9668", "#feca8d", "#fcfdbf"),
	"jet": newColormap("jet",
		"#00007f", "#0000ff", "#007fff", "#00ffff", "#7fff7f",
		"#ffff00", "#ff7f00", "#ff0000", "#7f0000"),
	"gray": newColormap("gray", "#000000", "#ffffff"),
}

// LookupColormap returns the colormap registered under name.
// The empty name selects DefaultColormap.
func LookupColormap(name string) (*Colormap, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultColormap
	}
	cm, ok := colormaps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownColormap, name, strings.Join(Colormaps(), ", "))
	}
	return cm, nil
}

// Colormaps returns the registered colormap names, sorted.
func Colormaps() []string {
	names := make([]string, 0, len(colormaps))
	for name := range colormaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Name returns the colormap name.
func (cm *Colormap) Name() string {
	return cm.name
}

// At returns the colour of intensity v.
func (cm *Colormap) At(v uint8) color.RGBA {
	return cm.lut[v]
}
