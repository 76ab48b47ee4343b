package nn

import (
	"fmt"

	"github.com/born-ml/gradcam/internal/tensor"
)

// Parameter is a named weight tensor of a layer.
//
// The name is local to the layer ("weight", "bias", "running_mean");
// Sequential prefixes it with the layer name when building a state dict.
//
// Example:
//
//	weight := nn.NewParameter("weight", tensor.Zeros(tensor.Shape{8, 3, 3, 3}))
//	err := weight.Set(loaded) // shape must match
type Parameter struct {
	name   string
	tensor *tensor.Tensor
}

// NewParameter creates a new parameter.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Set replaces the parameter values with a tensor of the same shape.
func (p *Parameter) Set(t *tensor.Tensor) error {
	if !t.Shape().Equal(p.tensor.Shape()) {
		return fmt.Errorf("%w: parameter %q has shape %v, got %v",
			ErrShapeMismatch, p.name, p.tensor.Shape(), t.Shape())
	}
	p.tensor = t.Clone()
	return nil
}
