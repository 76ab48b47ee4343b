package nn

import (
	"math"

	"github.com/born-ml/gradcam/internal/tensor"
)

// ReLU is a Rectified Linear Unit activation module.
//
// Applies the element-wise function: f(x) = max(0, x)
//
// Example:
//
//	relu := nn.NewReLU()
//	output := relu.Forward(input, backend) // All negative values become 0
type ReLU struct{}

// NewReLU creates a new ReLU activation module.
func NewReLU() *ReLU {
	return &ReLU{}
}

// Forward applies ReLU activation: f(x) = max(0, x).
func (r *ReLU) Forward(input *tensor.Tensor, backend tensor.Backend) *tensor.Tensor {
	return backend.Clip(input, 0, float32(math.Inf(1)))
}

// OutputShape returns the input shape unchanged.
func (r *ReLU) OutputShape(input tensor.Shape) (tensor.Shape, error) {
	return input.Clone(), nil
}

// Parameters returns nil (ReLU has no parameters).
func (r *ReLU) Parameters() []*Parameter {
	return nil
}

func (r *ReLU) String() string {
	return "ReLU()"
}

// ReLU6 clamps activations into [0, 6], as used by MobileNet.
type ReLU6 struct{}

// NewReLU6 creates a new ReLU6 activation module.
func NewReLU6() *ReLU6 {
	return &ReLU6{}
}

// Forward applies f(x) = min(max(0, x), 6).
func (r *ReLU6) Forward(input *tensor.Tensor, backend tensor.Backend) *tensor.Tensor {
	return backend.Clip(input, 0, 6)
}

// OutputShape returns the input shape unchanged.
func (r *ReLU6) OutputShape(input tensor.Shape) (tensor.Shape, error) {
	return input.Clone(), nil
}

// Parameters returns nil.
func (r *ReLU6) Parameters() []*Parameter {
	return nil
}

func (r *ReLU6) String() string {
	return "ReLU6()"
}
