package ops

import (
	"github.com/born-ml/gradcam/internal/backend/cpu"
	"github.com/born-ml/gradcam/internal/tensor"
)

// ClipOp records output = min(max(x, lo), hi); ReLU is Clip(0, +Inf).
//
// Backward:
//   - d(Clip(x))/dx = 1 if lo < x < hi, else 0
type ClipOp struct {
	unary
	lo, hi float32
}

// NewClipOp creates a new Clip operation.
func NewClipOp(input, output *tensor.Tensor, lo, hi float32) *ClipOp {
	return &ClipOp{
		unary: unary{input: input, output: output},
		lo:    lo,
		hi:    hi,
	}
}

// Backward masks the gradient with the pass-through region.
func (op *ClipOp) Backward(outputGrad *tensor.Tensor, backend *cpu.CPUBackend) []*tensor.Tensor {
	return []*tensor.Tensor{
		backend.ClipBackward(op.input, outputGrad, op.lo, op.hi),
	}
}

// AddOp records output = a + b (residual shortcut).
//
// Backward: d_a = d_b = d_output.
type AddOp struct {
	a, b   *tensor.Tensor
	output *tensor.Tensor
}

// NewAddOp creates a new Add operation.
func NewAddOp(a, b, output *tensor.Tensor) *AddOp {
	return &AddOp{a: a, b: b, output: output}
}

// Inputs returns both summands.
func (op *AddOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.a, op.b}
}

// Output returns the sum.
func (op *AddOp) Output() *tensor.Tensor {
	return op.output
}

// Backward hands the gradient to both summands.
func (op *AddOp) Backward(outputGrad *tensor.Tensor, _ *cpu.CPUBackend) []*tensor.Tensor {
	return []*tensor.Tensor{outputGrad.Clone(), outputGrad.Clone()}
}

// ChannelAffineOp records y = x*scale[c] + shift[c] (folded batch norm).
//
// Backward: d_x = d_y * scale[c].
type ChannelAffineOp struct {
	unary
	scale []float32
}

// NewChannelAffineOp creates a new ChannelAffine operation.
func NewChannelAffineOp(input, output *tensor.Tensor, scale []float32) *ChannelAffineOp {
	return &ChannelAffineOp{
		unary: unary{input: input, output: output},
		scale: scale,
	}
}

// Backward scales the gradient per channel.
func (op *ChannelAffineOp) Backward(outputGrad *tensor.Tensor, backend *cpu.CPUBackend) []*tensor.Tensor {
	return []*tensor.Tensor{
		backend.ChannelAffineBackward(outputGrad, op.scale),
	}
}
