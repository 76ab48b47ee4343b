// Package format renders explanations as images.
//
// The heatmap is resampled to the image size, coloured with a colormap and
// alpha-composited over the image; the alpha of every pixel grows with
// its heat up to a limit, so cold regions keep the original image.
package format

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/draw"

	"github.com/born-ml/gradcam/internal/explanation"
	"github.com/born-ml/gradcam/internal/imaging"
)

// DefaultAlphaLimit is the opacity of the hottest pixels.
const DefaultAlphaLimit = 0.65

// Errors returned by FormatAsImage.
var (
	ErrInvalidAlpha = errors.New("format: alpha limit must be in [0, 1]")
	ErrNoHeatmap    = errors.New("format: explanation has no heatmap")
	ErrNoImage      = errors.New("format: explanation has no image")
)

type options struct {
	filter     imaging.Filter
	colormap   string
	alphaLimit float64
	target     int
}

// Option configures FormatAsImage.
type Option func(*options)

// WithFilter sets the heatmap resampling filter (Lanczos by default).
func WithFilter(f imaging.Filter) Option {
	return func(o *options) { o.filter = f }
}

// WithColormap sets the colormap by name (viridis by default).
func WithColormap(name string) Option {
	return func(o *options) { o.colormap = name }
}

// WithAlphaLimit sets the opacity of the hottest pixels; 0 returns the
// image unchanged.
func WithAlphaLimit(a float64) Option {
	return func(o *options) { o.alphaLimit = a }
}

// WithTarget selects which target's heatmap to draw (the first by default).
func WithTarget(i int) Option {
	return func(o *options) { o.target = i }
}

// FormatAsImage overlays the heatmap of expl on its image.
//
// The result is a new *image.RGBA with the bounds of the image; the
// explanation is not modified.
func FormatAsImage(expl *explanation.Explanation, opts ...Option) (*image.RGBA, error) {
	o := options{
		filter:     imaging.FilterLanczos,
		colormap:   DefaultColormap,
		alphaLimit: DefaultAlphaLimit,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.alphaLimit < 0 || o.alphaLimit > 1 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidAlpha, o.alphaLimit)
	}
	cm, err := LookupColormap(o.colormap)
	if err != nil {
		return nil, err
	}
	target, ok := expl.Target(o.target)
	if !ok || target.Heatmap == nil {
		return nil, fmt.Errorf("%w: target %d", ErrNoHeatmap, o.target)
	}
	if expl.Image == nil {
		return nil, ErrNoImage
	}

	bounds := expl.Image.Bounds()
	heat, err := imaging.ResizeGray(target.Heatmap, bounds.Size(), o.filter)
	if err != nil {
		return nil, err
	}
	overlay := Colorize(heat, cm, o.alphaLimit)

	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), expl.Image, bounds.Min, draw.Src)
	draw.Draw(out, out.Bounds(), overlay, image.Point{}, draw.Over)
	return out, nil
}

// Colorize colours heat with cm. Alpha is heat scaled by alphaLimit.
func Colorize(heat *image.Gray, cm *Colormap, alphaLimit float64) *image.NRGBA {
	b := heat.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			v := heat.GrayAt(b.Min.X+x, b.Min.Y+y).Y
			c := cm.At(v)
			a := uint8(float64(v)*alphaLimit + 0.5)
			out.SetNRGBA(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: a})
		}
	}
	return out
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// SavePNG writes img to path as PNG.
func SavePNG(path string, img image.Image) error {
	//nolint:gosec // G304: output path is chosen by the caller
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := EncodePNG(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
