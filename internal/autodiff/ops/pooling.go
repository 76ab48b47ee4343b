package ops

import (
	"github.com/born-ml/gradcam/internal/backend/cpu"
	"github.com/born-ml/gradcam/internal/tensor"
)

// GlobalAvgPool2DOp records a global average pool [N,C,H,W] -> [N,C].
//
// Backward: d_input[n,c,h,w] = d_output[n,c] / (H*W).
type GlobalAvgPool2DOp struct {
	unary
}

// NewGlobalAvgPool2DOp creates a new GlobalAvgPool2D operation.
func NewGlobalAvgPool2DOp(input, output *tensor.Tensor) *GlobalAvgPool2DOp {
	return &GlobalAvgPool2DOp{unary{input: input, output: output}}
}

// Backward spreads the gradient evenly over every plane.
func (op *GlobalAvgPool2DOp) Backward(outputGrad *tensor.Tensor, backend *cpu.CPUBackend) []*tensor.Tensor {
	return []*tensor.Tensor{
		backend.GlobalAvgPool2DBackward(op.input.Shape(), outputGrad),
	}
}

// ReshapeOp records a view change (flatten).
type ReshapeOp struct {
	unary
}

// NewReshapeOp creates a new Reshape operation.
func NewReshapeOp(input, output *tensor.Tensor) *ReshapeOp {
	return &ReshapeOp{unary{input: input, output: output}}
}

// Backward reshapes the gradient back to the input shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.Tensor, _ *cpu.CPUBackend) []*tensor.Tensor {
	return []*tensor.Tensor{
		outputGrad.Clone().Reshape(op.input.Shape()...),
	}
}
