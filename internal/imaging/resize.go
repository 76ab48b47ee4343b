package imaging

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"golang.org/x/image/draw"
)

// Filter names a resampling filter.
type Filter string

// Supported filters.
const (
	FilterLanczos    Filter = "lanczos"
	FilterCatmullRom Filter = "catmullrom"
	FilterBilinear   Filter = "bilinear"
	FilterNearest    Filter = "nearest"
)

// ErrUnknownFilter is returned for filter names that are not supported.
var ErrUnknownFilter = errors.New("imaging: unknown filter")

// Lanczos3 is the windowed sinc kernel with three lobes (PIL's LANCZOS).
var Lanczos3 = &draw.Kernel{
	Support: 3,
	At: func(t float64) float64 {
		if t == 0 {
			return 1
		}
		if t >= 3 {
			return 0
		}
		x := math.Pi * t
		return 3 * math.Sin(x) * math.Sin(x/3) / (x * x)
	},
}

// ParseFilter resolves a filter name; the empty name selects Lanczos.
func ParseFilter(name string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(name)))
	if f == "" {
		return FilterLanczos, nil
	}
	if _, err := f.interpolator(); err != nil {
		return "", err
	}
	return f, nil
}

func (f Filter) interpolator() (draw.Interpolator, error) {
	switch f {
	case FilterLanczos, "":
		return Lanczos3, nil
	case FilterCatmullRom:
		return draw.CatmullRom, nil
	case FilterBilinear:
		return draw.BiLinear, nil
	case FilterNearest:
		return draw.NearestNeighbor, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, string(f))
	}
}

// Resize scales src to size into a new *image.RGBA.
func Resize(src image.Image, size image.Point, f Filter) (*image.RGBA, error) {
	interp, err := f.interpolator()
	if err != nil {
		return nil, err
	}
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("imaging: invalid target size %v", size)
	}
	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	interp.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// ResizeGray scales a single-channel image, such as a heatmap, to size.
func ResizeGray(src *image.Gray, size image.Point, f Filter) (*image.Gray, error) {
	interp, err := f.interpolator()
	if err != nil {
		return nil, err
	}
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("imaging: invalid target size %v", size)
	}
	dst := image.NewGray(image.Rect(0, 0, size.X, size.Y))
	interp.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}
