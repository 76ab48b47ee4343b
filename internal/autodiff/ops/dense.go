package ops

import (
	"github.com/born-ml/gradcam/internal/backend/cpu"
	"github.com/born-ml/gradcam/internal/tensor"
)

// DenseOp records y = x @ W^T + b.
//
// Backward: d_x = d_y @ W.
type DenseOp struct {
	unary
	weight *tensor.Tensor
}

// NewDenseOp creates a new Dense operation.
func NewDenseOp(input, weight, output *tensor.Tensor) *DenseOp {
	return &DenseOp{
		unary:  unary{input: input, output: output},
		weight: weight,
	}
}

// Backward computes the input gradient.
func (op *DenseOp) Backward(outputGrad *tensor.Tensor, backend *cpu.CPUBackend) []*tensor.Tensor {
	return []*tensor.Tensor{
		backend.DenseInputBackward(op.weight, outputGrad),
	}
}
