package model

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"go.uber.org/zap"

	"github.com/born-ml/gradcam/internal/backend/cpu"
	"github.com/born-ml/gradcam/internal/imaging"
	"github.com/born-ml/gradcam/internal/loader"
	"github.com/born-ml/gradcam/internal/nn"
	"github.com/born-ml/gradcam/internal/tensor"
)

// ErrInputShape is returned when an input tensor does not match the model.
var ErrInputShape = errors.New("model: input shape mismatch")

// Classifier is an image classifier: a layer stack with its preprocessing
// and class labels. It is read-only after construction and safe for
// concurrent use.
type Classifier struct {
	arch       *Architecture
	net        *nn.Sequential
	shapes     []tensor.Shape // per-layer output shape for batch 1
	preprocess imaging.Preprocessor
	backend    *cpu.CPUBackend
}

// Option configures a Classifier.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	backend *cpu.CPUBackend
}

// WithLogger sets the logger used while loading weights.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBackend sets the CPU backend used for predictions.
func WithBackend(b *cpu.CPUBackend) Option {
	return func(o *options) { o.backend = b }
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.backend == nil {
		o.backend = cpu.New()
	}
	return o
}

// New builds a classifier with freshly initialized weights.
//
// The layer output shapes are checked against the declared input, and the
// last layer must produce [1, classes].
func New(arch *Architecture, opts ...Option) (*Classifier, error) {
	o := buildOptions(opts)

	if err := arch.Validate(); err != nil {
		return nil, err
	}
	net, err := arch.Build()
	if err != nil {
		return nil, err
	}
	input := tensor.Shape{1, arch.Input[0], arch.Input[1], arch.Input[2]}
	shapes, err := net.OutputShapes(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchitecture, err)
	}
	if out := shapes[len(shapes)-1]; !out.Equal(tensor.Shape{1, arch.Classes}) {
		return nil, fmt.Errorf("%w: network output %v, expected [1 %d]", ErrInvalidArchitecture, out, arch.Classes)
	}
	preprocess, err := imaging.LookupPreprocessor(arch.Preprocess)
	if err != nil {
		return nil, err
	}

	return &Classifier{
		arch:       arch,
		net:        net,
		shapes:     shapes,
		preprocess: preprocess,
		backend:    o.backend,
	}, nil
}

// Load builds a classifier from an architecture file and a SafeTensors file.
func Load(archPath, weightsPath string, opts ...Option) (*Classifier, error) {
	o := buildOptions(opts)

	arch, err := LoadArchitecture(archPath)
	if err != nil {
		return nil, err
	}
	c, err := New(arch, opts...)
	if err != nil {
		return nil, err
	}
	weights, err := loader.LoadSafeTensors(weightsPath)
	if err != nil {
		return nil, fmt.Errorf("load weights %s: %w", weightsPath, err)
	}
	unused, err := c.net.LoadStateDict(weights)
	if err != nil {
		return nil, fmt.Errorf("load weights %s: %w", weightsPath, err)
	}
	if len(unused) > 0 {
		o.logger.Warn("unused tensors in weights file",
			zap.String("path", weightsPath),
			zap.Strings("tensors", unused))
	}
	o.logger.Debug("classifier loaded",
		zap.String("name", arch.Name),
		zap.Int("layers", c.net.Len()),
		zap.Int("tensors", len(weights)))
	return c, nil
}

// LoadWeights copies tensors keyed "<layer>.<param>" into the network.
func (c *Classifier) LoadWeights(weights map[string]*tensor.Tensor) error {
	_, err := c.net.LoadStateDict(weights)
	return err
}

// SaveWeights writes the network parameters to path in SafeTensors format.
func (c *Classifier) SaveWeights(path string) error {
	return loader.SaveSafeTensors(path, c.Weights(), map[string]string{"format": "born", "name": c.arch.Name})
}

// Weights returns the current parameter tensors keyed "<layer>.<param>".
func (c *Classifier) Weights() map[string]*tensor.Tensor {
	dict := c.net.StateDict()
	weights := make(map[string]*tensor.Tensor, len(dict))
	for key, p := range dict {
		weights[key] = p.Tensor()
	}
	return weights
}

// Name returns the model name.
func (c *Classifier) Name() string {
	return c.arch.Name
}

// Architecture returns the architecture the classifier was built from.
func (c *Classifier) Architecture() *Architecture {
	return c.arch
}

// InputSize returns the expected image size (width, height).
func (c *Classifier) InputSize() image.Point {
	return image.Pt(c.arch.Input[2], c.arch.Input[1])
}

// InputShape returns the expected tensor shape [1, C, H, W].
func (c *Classifier) InputShape() tensor.Shape {
	return tensor.Shape{1, c.arch.Input[0], c.arch.Input[1], c.arch.Input[2]}
}

// NumClasses returns the number of output classes.
func (c *Classifier) NumClasses() int {
	return c.arch.Classes
}

// Label returns the class name, or "class_<i>" when unnamed.
func (c *Classifier) Label(class int) string {
	if name, ok := c.arch.Labels[class]; ok {
		return name
	}
	return fmt.Sprintf("class_%d", class)
}

// LayerNames returns the layer names in forward order.
func (c *Classifier) LayerNames() []string {
	layers := c.net.Layers()
	names := make([]string, len(layers))
	for i, l := range layers {
		names[i] = l.Name
	}
	return names
}

// LayerIndex returns the position of the named layer.
func (c *Classifier) LayerIndex(name string) (int, bool) {
	return c.net.Index(name)
}

// LayerShape returns the output shape of the layer at index i.
func (c *Classifier) LayerShape(i int) tensor.Shape {
	return c.shapes[i].Clone()
}

// LastSpatialLayer returns the index of the last layer with a 4D output.
func (c *Classifier) LastSpatialLayer() (int, bool) {
	for i := len(c.shapes) - 1; i >= 0; i-- {
		if c.shapes[i].IsSpatial() {
			return i, true
		}
	}
	return -1, false
}

// Preprocess resizes img to the input size if needed and converts it to a tensor.
func (c *Classifier) Preprocess(img image.Image) (*tensor.Tensor, error) {
	size := c.InputSize()
	var rgba *image.RGBA
	if img.Bounds().Size() == size {
		rgba = imaging.ToRGBA(img)
	} else {
		var err error
		rgba, err = imaging.Resize(img, size, imaging.FilterCatmullRom)
		if err != nil {
			return nil, err
		}
	}
	return imaging.ToTensor(rgba, c.preprocess), nil
}

// Forward runs the network on backend and returns every layer's output.
// The last activation holds the logits.
func (c *Classifier) Forward(input *tensor.Tensor, backend tensor.Backend) ([]*tensor.Tensor, error) {
	if !input.Shape().Equal(c.InputShape()) {
		return nil, fmt.Errorf("%w: expected %v, got %v", ErrInputShape, c.InputShape(), input.Shape())
	}
	return c.net.ForwardAll(input, backend), nil
}

// Predict computes logits and probabilities without tracking gradients.
func (c *Classifier) Predict(input *tensor.Tensor) (*Prediction, error) {
	if !input.Shape().Equal(c.InputShape()) {
		return nil, fmt.Errorf("%w: expected %v, got %v", ErrInputShape, c.InputShape(), input.Shape())
	}
	logits := c.net.Forward(input, c.backend)
	return NewPrediction(logits.Data()), nil
}

// Prediction holds the classifier output for one image.
type Prediction struct {
	Logits []float32
	Probs  []float64
}

// NewPrediction copies logits and computes their softmax.
func NewPrediction(logits []float32) *Prediction {
	l := make([]float32, len(logits))
	copy(l, logits)
	return &Prediction{Logits: l, Probs: cpu.Softmax(l)}
}

// ClassScore is a class with its logit and probability.
type ClassScore struct {
	Class int
	Score float32
	Proba float64
}

// Top returns the k most probable classes, highest first.
// Ties keep the lower class index first.
func (p *Prediction) Top(k int) []ClassScore {
	idx := make([]int, len(p.Logits))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return p.Logits[idx[a]] > p.Logits[idx[b]] })
	k = max(0, min(k, len(idx)))
	out := make([]ClassScore, k)
	for i := range out {
		class := idx[i]
		out[i] = ClassScore{Class: class, Score: p.Logits[class], Proba: p.Probs[class]}
	}
	return out
}
