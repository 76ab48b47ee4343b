package nn

import (
	"fmt"

	"github.com/born-ml/gradcam/internal/tensor"
)

// GlobalAvgPool2D averages every channel plane: [N,C,H,W] -> [N,C].
type GlobalAvgPool2D struct{}

// NewGlobalAvgPool2D creates a global average pooling layer.
func NewGlobalAvgPool2D() *GlobalAvgPool2D {
	return &GlobalAvgPool2D{}
}

// Forward applies global average pooling.
func (g *GlobalAvgPool2D) Forward(input *tensor.Tensor, backend tensor.Backend) *tensor.Tensor {
	if s := input.Shape(); len(s) != 4 {
		panic(fmt.Sprintf("global_avg_pool2d: expected 4D input [N,C,H,W], got %dD", len(s)))
	}
	return backend.GlobalAvgPool2D(input)
}

// OutputShape returns [N, C].
func (g *GlobalAvgPool2D) OutputShape(input tensor.Shape) (tensor.Shape, error) {
	if len(input) != 4 {
		return nil, fmt.Errorf("%w: global_avg_pool2d expects [N,C,H,W], got %v", ErrShapeMismatch, input)
	}
	return tensor.Shape{input[0], input[1]}, nil
}

// Parameters returns nil.
func (g *GlobalAvgPool2D) Parameters() []*Parameter {
	return nil
}

func (g *GlobalAvgPool2D) String() string {
	return "GlobalAvgPool2D()"
}

// Flatten reshapes [N, ...] into [N, features].
type Flatten struct{}

// NewFlatten creates a flatten layer.
func NewFlatten() *Flatten {
	return &Flatten{}
}

// Forward flattens all but the batch dimension.
func (f *Flatten) Forward(input *tensor.Tensor, backend tensor.Backend) *tensor.Tensor {
	s := input.Shape()
	if len(s) == 2 {
		return input
	}
	return backend.Reshape(input, s[0], s[1:].NumElements())
}

// OutputShape returns [N, features].
func (f *Flatten) OutputShape(input tensor.Shape) (tensor.Shape, error) {
	if len(input) < 2 {
		return nil, fmt.Errorf("%w: flatten expects at least [N,F], got %v", ErrShapeMismatch, input)
	}
	return tensor.Shape{input[0], input[1:].NumElements()}, nil
}

// Parameters returns nil.
func (f *Flatten) Parameters() []*Parameter {
	return nil
}

func (f *Flatten) String() string {
	return "Flatten()"
}
