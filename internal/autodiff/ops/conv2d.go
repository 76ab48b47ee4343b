package ops

import (
	"github.com/born-ml/gradcam/internal/backend/cpu"
	"github.com/born-ml/gradcam/internal/tensor"
)

// Conv2DOp records a 2D convolution for autodiff.
//
// Forward: output = Conv2D(input, kernel, stride, padding, groups) + bias
//
// Backward: d_input is the transposed convolution of d_output with kernel.
// The bias only shifts the output, so it does not affect d_input.
type Conv2DOp struct {
	unary
	kernel *tensor.Tensor
	params tensor.ConvParams
}

// NewConv2DOp creates a new Conv2D operation.
func NewConv2DOp(input, kernel, output *tensor.Tensor, params tensor.ConvParams) *Conv2DOp {
	return &Conv2DOp{
		unary:  unary{input: input, output: output},
		kernel: kernel,
		params: params,
	}
}

// Backward computes the input gradient for Conv2D.
func (op *Conv2DOp) Backward(outputGrad *tensor.Tensor, backend *cpu.CPUBackend) []*tensor.Tensor {
	return []*tensor.Tensor{
		backend.Conv2DInputBackward(op.input.Shape(), op.kernel, outputGrad, op.params),
	}
}
