package nn

import (
	"fmt"

	"github.com/born-ml/gradcam/internal/tensor"
)

// MaxPool2D is a 2D max pooling layer.
//
// Max pooling reduces spatial dimensions by taking the maximum value
// in each window. Unlike Conv2D, MaxPool2D has no learnable parameters.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Where:
//
//	out_height = (height - kernelSize) / stride + 1
//	out_width = (width - kernelSize) / stride + 1
type MaxPool2D struct {
	kernelSize int
	stride     int
}

// NewMaxPool2D creates a new 2D max pooling layer.
//
// A zero stride defaults to the kernel size (non-overlapping windows).
func NewMaxPool2D(kernelSize, stride int) (*MaxPool2D, error) {
	if stride == 0 {
		stride = kernelSize
	}
	if kernelSize <= 0 || stride <= 0 {
		return nil, fmt.Errorf("%w: maxpool2d kernel=%d stride=%d", ErrInvalidConfig, kernelSize, stride)
	}
	return &MaxPool2D{kernelSize: kernelSize, stride: stride}, nil
}

// Forward applies max pooling.
func (m *MaxPool2D) Forward(input *tensor.Tensor, backend tensor.Backend) *tensor.Tensor {
	if s := input.Shape(); len(s) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %dD", len(s)))
	}
	return backend.MaxPool2D(input, m.kernelSize, m.stride)
}

// OutputShape returns the pooled shape.
func (m *MaxPool2D) OutputShape(input tensor.Shape) (tensor.Shape, error) {
	if len(input) != 4 {
		return nil, fmt.Errorf("%w: maxpool2d expects [N,C,H,W], got %v", ErrShapeMismatch, input)
	}
	outH := (input[2]-m.kernelSize)/m.stride + 1
	outW := (input[3]-m.kernelSize)/m.stride + 1
	if input[2] < m.kernelSize || input[3] < m.kernelSize {
		return nil, fmt.Errorf("%w: maxpool2d input %v smaller than window %d", ErrShapeMismatch, input, m.kernelSize)
	}
	return tensor.Shape{input[0], input[1], outH, outW}, nil
}

// Parameters returns nil (MaxPool2D has no parameters).
func (m *MaxPool2D) Parameters() []*Parameter {
	return nil
}

// KernelSize returns the pooling window size.
func (m *MaxPool2D) KernelSize() int {
	return m.kernelSize
}

// Stride returns the pooling stride.
func (m *MaxPool2D) Stride() int {
	return m.stride
}

func (m *MaxPool2D) String() string {
	return fmt.Sprintf("MaxPool2D(kernel_size=%d, stride=%d)", m.kernelSize, m.stride)
}
