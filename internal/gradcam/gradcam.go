// Package gradcam explains image classifier predictions with Grad-CAM.
//
// For a target class c and a convolutional layer with feature maps A_k,
// Grad-CAM weighs every map by the spatial mean of the class score gradient
//
//	α_k = mean_ij ∂y_c/∂A_k[i,j]
//
// and keeps the positive part of Σ_k α_k A_k, normalised to [0, 1].
// The result highlights the image regions that raised the class score.
//
// The forward pass runs once on the autodiff backend; every target then
// walks the recorded tape backwards with its own seed, concurrently.
package gradcam

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/gradcam/internal/autodiff"
	"github.com/born-ml/gradcam/internal/backend/cpu"
	"github.com/born-ml/gradcam/internal/explanation"
	"github.com/born-ml/gradcam/internal/imaging"
	"github.com/born-ml/gradcam/internal/model"
	"github.com/born-ml/gradcam/internal/tensor"
)

// Description is attached to every explanation.
const Description = "Grad-CAM visualization for image classification; " +
	"the explanation holds the input image and one heatmap per target class."

// Errors returned by Explain.
var (
	ErrInvalidTarget  = errors.New("gradcam: invalid target")
	ErrLayerNotFound  = errors.New("gradcam: layer not found")
	ErrNoSpatialLayer = errors.New("gradcam: no layer with spatial output")
)

// Options selects what to explain.
type Options struct {
	// Targets are the class indices to explain. Empty explains the top prediction.
	Targets []int

	// Layer names the layer whose activations build the heatmap.
	// Empty selects the last layer with a [N, C, H, W] output.
	Layer string

	// NoReLU keeps negative evidence; the map is then min-max normalised.
	NoReLU bool

	// Counterfactual negates the class score, highlighting regions that
	// lower it.
	Counterfactual bool
}

// Explainer computes Grad-CAM explanations for one classifier.
// It is safe for concurrent use.
type Explainer struct {
	model   *model.Classifier
	backend *cpu.CPUBackend
	logger  *zap.Logger
}

// Option configures an Explainer.
type Option func(*Explainer)

// WithLogger sets the logger, zap.NewNop by default.
func WithLogger(l *zap.Logger) Option {
	return func(e *Explainer) { e.logger = l }
}

// WithBackend sets the CPU backend the forward and backward passes run on.
func WithBackend(b *cpu.CPUBackend) Option {
	return func(e *Explainer) { e.backend = b }
}

// New creates an explainer for c.
func New(c *model.Classifier, opts ...Option) *Explainer {
	e := &Explainer{model: c, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.backend == nil {
		e.backend = cpu.New()
	}
	return e
}

// Explain preprocesses img for the classifier and explains the prediction.
func (e *Explainer) Explain(ctx context.Context, img image.Image, opts Options) (*explanation.Explanation, error) {
	x, err := e.model.Preprocess(img)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Bounds().Min != (image.Point{}) {
		rgba = imaging.ToRGBA(img)
	}
	return e.ExplainTensor(ctx, rgba, x, opts)
}

// ExplainTensor explains the prediction for an already preprocessed input x.
// img is the image attached to the explanation.
func (e *Explainer) ExplainTensor(ctx context.Context, img *image.RGBA, x *tensor.Tensor, opts Options) (*explanation.Explanation, error) {
	layer, err := e.resolveLayer(opts.Layer)
	if err != nil {
		return nil, err
	}
	layerName := e.model.LayerNames()[layer]

	tracked := autodiff.New(e.backend)
	tracked.Tape().StartRecording()
	activations, err := e.model.Forward(x, tracked)
	tracked.Tape().StopRecording()
	if err != nil {
		return nil, err
	}
	logits := activations[len(activations)-1]
	features := activations[layer]
	pred := model.NewPrediction(logits.Data())

	targets, err := e.resolveTargets(opts.Targets, pred)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("forward pass recorded",
		zap.String("layer", layerName),
		zap.Any("feature_shape", features.Shape()),
		zap.Int("ops", tracked.Tape().NumOps()),
		zap.Ints("targets", targets))

	results := make([]explanation.TargetExplanation, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, target := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			heatmap, err := e.heatmap(tracked, logits, features, target, opts)
			if err != nil {
				return fmt.Errorf("target %d: %w", target, err)
			}
			results[i] = explanation.TargetExplanation{
				Target:  target,
				Label:   e.model.Label(target),
				Score:   pred.Logits[target],
				Proba:   pred.Probs[target],
				Heatmap: heatmap,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		e.logger.Debug("target explained",
			zap.Int("target", r.Target),
			zap.String("label", r.Label),
			zap.Float64("proba", r.Proba))
	}

	return &explanation.Explanation{
		Estimator:   e.model.Name(),
		Method:      explanation.MethodGradCAM,
		Description: Description,
		Layer:       layerName,
		Image:       img,
		Targets:     results,
	}, nil
}

func (e *Explainer) resolveLayer(name string) (int, error) {
	if name == "" {
		i, ok := e.model.LastSpatialLayer()
		if !ok {
			return 0, ErrNoSpatialLayer
		}
		return i, nil
	}
	i, ok := e.model.LayerIndex(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrLayerNotFound, name)
	}
	if !e.model.LayerShape(i).IsSpatial() {
		return 0, fmt.Errorf("%w: layer %q has output %v", ErrNoSpatialLayer, name, e.model.LayerShape(i))
	}
	return i, nil
}

func (e *Explainer) resolveTargets(requested []int, pred *model.Prediction) ([]int, error) {
	if len(requested) == 0 {
		return []int{pred.Top(1)[0].Class}, nil
	}
	classes := e.model.NumClasses()
	for _, t := range requested {
		if t < 0 || t >= classes {
			return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidTarget, t, classes)
		}
	}
	out := make([]int, len(requested))
	copy(out, requested)
	return out, nil
}

// heatmap walks the tape for one target and builds its map.
func (e *Explainer) heatmap(tracked *autodiff.Backend, logits, features *tensor.Tensor, target int, opts Options) (*image.Gray, error) {
	seed := tensor.ZerosLike(logits)
	if opts.Counterfactual {
		seed.Set(-1, 0, target)
	} else {
		seed.Set(1, 0, target)
	}

	grads, err := tracked.Backward(logits, seed)
	if err != nil {
		return nil, err
	}
	grad := grads.Of(features)
	if grad == nil {
		// Output does not depend on the layer: the map is empty.
		grad = tensor.ZerosLike(features)
	}

	cam := ComputeCAM(features, grad, !opts.NoReLU)
	_, _, h, w := features.Shape().NCHW()
	return ToGray(cam, w, h), nil
}

// ComputeCAM returns the normalised class activation map of the first batch
// item as a row-major h*w slice in [0, 1].
//
// activations and grads are [N, C, H, W]. With relu the negative part is
// dropped and the map is divided by its maximum; otherwise it is min-max
// normalised. A constant map becomes all zeros.
func ComputeCAM(activations, grads *tensor.Tensor, relu bool) []float64 {
	_, c, h, w := activations.Shape().NCHW()
	plane := h * w
	a := activations.Data()
	g := grads.Data()

	cam := make([]float64, plane)
	for k := 0; k < c; k++ {
		var alpha float64
		for _, v := range g[k*plane : (k+1)*plane] {
			alpha += float64(v)
		}
		alpha /= float64(plane)
		if alpha == 0 {
			continue
		}
		for p, v := range a[k*plane : (k+1)*plane] {
			cam[p] += alpha * float64(v)
		}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for p, v := range cam {
		if relu && v < 0 {
			v = 0
			cam[p] = 0
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	if relu || lo >= 0 {
		lo = 0
	}
	span := hi - lo
	for p, v := range cam {
		if span <= 0 {
			cam[p] = 0
			continue
		}
		cam[p] = (v - lo) / span
	}
	return cam
}

// ToGray converts a [0, 1] map into an 8-bit image.
func ToGray(cam []float64, w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for p, v := range cam {
		img.Pix[p] = uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
	}
	return img
}
