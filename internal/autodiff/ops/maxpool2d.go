package ops

import (
	"github.com/born-ml/gradcam/internal/backend/cpu"
	"github.com/born-ml/gradcam/internal/tensor"
)

// MaxPool2DOp records a max pooling operation for autodiff.
//
// Forward:
//
//	output[n,c,h,w] = max(input[n,c,h*stride+kh,w*stride+kw] for kh,kw in kernel)
//
// Backward: gradients flow only to the positions that held the max value.
//
// Example (2x2 pool, stride=2):
//
//	Input:  [[1, 2],  Output: [4]  Input Grad: [[0, 0],
//	         [3, 4]]                             [0, grad]]
type MaxPool2DOp struct {
	unary
	maxIndices []int // Flat indices of max positions for gradient routing
}

// NewMaxPool2DOp creates a new MaxPool2D operation from the indices
// produced by the forward kernel.
func NewMaxPool2DOp(input, output *tensor.Tensor, maxIndices []int) *MaxPool2DOp {
	return &MaxPool2DOp{
		unary:      unary{input: input, output: output},
		maxIndices: maxIndices,
	}
}

// Backward routes the output gradient to the max positions.
func (op *MaxPool2DOp) Backward(outputGrad *tensor.Tensor, backend *cpu.CPUBackend) []*tensor.Tensor {
	return []*tensor.Tensor{
		backend.MaxPool2DBackward(op.input.Shape(), op.maxIndices, outputGrad),
	}
}
