package nn

import (
	"fmt"

	"github.com/born-ml/gradcam/internal/tensor"
)

// Residual adds the output of an earlier layer to its input, closing the
// shortcut of a residual block (MobileNetV2 inverted residuals, ResNet).
//
// It only has meaning inside a Sequential, which supplies the earlier
// output:
//
//	nn.Layer{Name: "block1_expand", Module: expand},
//	...
//	nn.Layer{Name: "block1_add", Module: nn.NewResidual("block0_project_bn")},
type Residual struct {
	from string
}

// NewResidual creates a shortcut from the named layer.
func NewResidual(from string) (*Residual, error) {
	if from == "" {
		return nil, fmt.Errorf("%w: residual needs a source layer", ErrInvalidConfig)
	}
	return &Residual{from: from}, nil
}

// From returns the name of the layer whose output is added.
func (r *Residual) From() string {
	return r.from
}

// Merge returns input + shortcut.
func (r *Residual) Merge(input, shortcut *tensor.Tensor, backend tensor.Backend) *tensor.Tensor {
	if !input.Shape().Equal(shortcut.Shape()) {
		panic(fmt.Sprintf("residual: input %v vs %q output %v", input.Shape(), r.from, shortcut.Shape()))
	}
	return backend.Add(input, shortcut)
}

// Forward panics: the shortcut source is only known to the enclosing Sequential.
func (r *Residual) Forward(_ *tensor.Tensor, _ tensor.Backend) *tensor.Tensor {
	panic(fmt.Sprintf("residual: shortcut from %q must run inside a Sequential", r.from))
}

// OutputShape returns the input shape.
func (r *Residual) OutputShape(input tensor.Shape) (tensor.Shape, error) {
	return input.Clone(), nil
}

// Parameters returns nil.
func (r *Residual) Parameters() []*Parameter {
	return nil
}

func (r *Residual) String() string {
	return fmt.Sprintf("Residual(from=%s)", r.from)
}
