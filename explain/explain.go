// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package explain

import (
	"context"
	"image"

	"github.com/born-ml/gradcam/internal/attention"
	"github.com/born-ml/gradcam/internal/explanation"
	"github.com/born-ml/gradcam/internal/format"
	"github.com/born-ml/gradcam/internal/gradcam"
	"github.com/born-ml/gradcam/internal/imaging"
	"github.com/born-ml/gradcam/internal/model"
)

// Explanation is the result of explaining one prediction.
type Explanation = explanation.Explanation

// TargetExplanation is the explanation of one class.
type TargetExplanation = explanation.TargetExplanation

// Classifier is an image classifier.
type Classifier = model.Classifier

// ClassifierOption configures LoadClassifier.
type ClassifierOption = model.Option

// Options selects targets and layer of an explanation.
type Options = gradcam.Options

// Explainer computes Grad-CAM explanations for one classifier.
type Explainer = gradcam.Explainer

// ExplainerOption configures an Explainer.
type ExplainerOption = gradcam.Option

// FormatOption configures FormatAsImage.
type FormatOption = format.Option

// Area is a pixel region (x1, x2, y1, y2).
type Area = attention.Area

// Filter names a resampling filter.
type Filter = imaging.Filter

// Resampling filters.
const (
	FilterLanczos    = imaging.FilterLanczos
	FilterCatmullRom = imaging.FilterCatmullRom
	FilterBilinear   = imaging.FilterBilinear
	FilterNearest    = imaging.FilterNearest
)

// Errors.
var (
	ErrInvalidTarget   = gradcam.ErrInvalidTarget
	ErrLayerNotFound   = gradcam.ErrLayerNotFound
	ErrNoSpatialLayer  = gradcam.ErrNoSpatialLayer
	ErrInvalidAlpha    = format.ErrInvalidAlpha
	ErrUnknownColormap = format.ErrUnknownColormap
	ErrNotConcentrated = attention.ErrNotConcentrated
	ErrZeroIntensity   = attention.ErrZeroIntensity
	ErrAreaOutOfBounds = attention.ErrAreaOutOfBounds
)

// LoadClassifier builds a classifier from an architecture file and a
// SafeTensors weights file.
func LoadClassifier(archPath, weightsPath string, opts ...ClassifierOption) (*Classifier, error) {
	return model.Load(archPath, weightsPath, opts...)
}

// NewExplainer creates a reusable explainer for c.
func NewExplainer(c *Classifier, opts ...ExplainerOption) *Explainer {
	return gradcam.New(c, opts...)
}

// ExplainPrediction explains the classifier's prediction on img.
//
// Without Options.Targets the top prediction is explained.
func ExplainPrediction(ctx context.Context, c *Classifier, img image.Image, opts Options) (*Explanation, error) {
	return gradcam.New(c).Explain(ctx, img, opts)
}

// ImageFromPath decodes an image file and resizes it to size.
// A zero size keeps the original dimensions.
func ImageFromPath(path string, size image.Point) (*image.RGBA, error) {
	return imaging.ImageFromPath(path, size)
}

// FormatAsImage overlays the first heatmap of expl on its image.
func FormatAsImage(expl *Explanation, opts ...FormatOption) (*image.RGBA, error) {
	return format.FormatAsImage(expl, opts...)
}

// WithAlphaLimit sets the opacity of the hottest overlay pixels (default 0.65).
func WithAlphaLimit(a float64) FormatOption {
	return format.WithAlphaLimit(a)
}

// WithColormap selects the overlay colormap: viridis, magma, jet or gray.
func WithColormap(name string) FormatOption {
	return format.WithColormap(name)
}

// WithFilter selects the filter used to resample the heatmap.
func WithFilter(f Filter) FormatOption {
	return format.WithFilter(f)
}

// WithTarget selects which target's heatmap is drawn.
func WithTarget(i int) FormatOption {
	return format.WithTarget(i)
}

// SavePNG writes img to path as PNG.
func SavePNG(path string, img image.Image) error {
	return format.SavePNG(path, img)
}

// Concentration returns the share of the first heatmap's intensity that
// falls inside area once resampled (Lanczos) to the image size.
func Concentration(expl *Explanation, area Area) (float64, error) {
	return attention.Concentration(expl, area, imaging.FilterLanczos)
}

// AssertConcentrated returns ErrNotConcentrated unless more than half of
// the heatmap intensity lies inside area.
func AssertConcentrated(expl *Explanation, area Area) error {
	return attention.Check(expl, area, attention.DefaultThreshold)
}
