// Package attention measures how much of an explanation's heatmap falls
// inside a region of the image.
package attention

import (
	"errors"
	"fmt"
	"image"

	"github.com/born-ml/gradcam/internal/explanation"
	"github.com/born-ml/gradcam/internal/imaging"
)

// DefaultThreshold is the share of intensity a region must exceed.
const DefaultThreshold = 0.5

// Errors returned by Concentration and Check.
var (
	ErrNoHeatmap       = errors.New("attention: explanation has no heatmap")
	ErrNoImage         = errors.New("attention: explanation has no image")
	ErrAreaOutOfBounds = errors.New("attention: area outside the image")
	ErrZeroIntensity   = errors.New("attention: heatmap has zero intensity")
	ErrNotConcentrated = errors.New("attention: heatmap not concentrated in area")
)

// Area is a pixel region given as (x1, x2, y1, y2). The crop covers rows
// [Y1, Y2) and columns [X1, X2).
type Area struct {
	X1, X2, Y1, Y2 int
}

// Rect returns the area as an image.Rectangle.
func (a Area) Rect() image.Rectangle {
	return image.Rect(a.X1, a.Y1, a.X2, a.Y2)
}

func (a Area) String() string {
	return fmt.Sprintf("(x1=%d, x2=%d, y1=%d, y2=%d)", a.X1, a.X2, a.Y1, a.Y2)
}

// Concentration resamples the first heatmap of expl to the image size and
// returns the fraction of its total intensity that lies inside area.
func Concentration(expl *explanation.Explanation, area Area, filter imaging.Filter) (float64, error) {
	heat := expl.Heatmap()
	if heat == nil {
		return 0, ErrNoHeatmap
	}
	if expl.Image == nil {
		return 0, ErrNoImage
	}
	return HeatmapConcentration(heat, expl.Image.Bounds().Size(), area, filter)
}

// HeatmapConcentration resamples heat to size and returns the share of
// intensity inside area.
func HeatmapConcentration(heat *image.Gray, size image.Point, area Area, filter imaging.Filter) (float64, error) {
	if area.X1 < 0 || area.Y1 < 0 || area.X2 > size.X || area.Y2 > size.Y || area.X1 >= area.X2 || area.Y1 >= area.Y2 {
		return 0, fmt.Errorf("%w: %v in %dx%d", ErrAreaOutOfBounds, area, size.X, size.Y)
	}

	resampled, err := imaging.ResizeGray(heat, size, filter)
	if err != nil {
		return 0, err
	}

	var total, inside uint64
	for y := 0; y < size.Y; y++ {
		row := resampled.Pix[y*resampled.Stride : y*resampled.Stride+size.X]
		for x, v := range row {
			total += uint64(v)
			if y >= area.Y1 && y < area.Y2 && x >= area.X1 && x < area.X2 {
				inside += uint64(v)
			}
		}
	}
	if total == 0 {
		return 0, ErrZeroIntensity
	}
	return float64(inside) / float64(total), nil
}

// Check returns ErrNotConcentrated unless more than threshold of the
// heatmap intensity lies inside area. The heatmap is resampled with Lanczos.
func Check(expl *explanation.Explanation, area Area, threshold float64) error {
	c, err := Concentration(expl, area, imaging.FilterLanczos)
	if err != nil {
		return err
	}
	if c <= threshold {
		return fmt.Errorf("%w: %.1f%% inside %v, need more than %.1f%%",
			ErrNotConcentrated, 100*c, area, 100*threshold)
	}
	return nil
}
