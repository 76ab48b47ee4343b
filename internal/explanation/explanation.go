// Package explanation holds the result types shared by the explainer,
// the formatter and the concentration checks.
package explanation

import (
	"image"
)

// MethodGradCAM is the Method value of Grad-CAM explanations.
const MethodGradCAM = "Grad-CAM"

// TargetExplanation is the explanation of one output class.
type TargetExplanation struct {
	Target  int         // class index
	Label   string      // class name
	Score   float32     // logit
	Proba   float64     // softmax probability
	Heatmap *image.Gray // intensities in [0, 255] at the target layer's resolution
}

// Explanation is the result of explaining one prediction.
// It is not modified after construction.
type Explanation struct {
	Estimator   string
	Method      string
	Description string
	Layer       string // layer whose activations built the heatmaps
	Image       *image.RGBA
	Targets     []TargetExplanation
}

// Heatmap returns the heatmap of the first target, or nil.
func (e *Explanation) Heatmap() *image.Gray {
	if e == nil || len(e.Targets) == 0 {
		return nil
	}
	return e.Targets[0].Heatmap
}

// Target returns the i-th target explanation.
func (e *Explanation) Target(i int) (TargetExplanation, bool) {
	if e == nil || i < 0 || i >= len(e.Targets) {
		return TargetExplanation{}, false
	}
	return e.Targets[i], true
}
