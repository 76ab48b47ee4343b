// Package ops defines the differentiable operations recorded on a gradient tape.
//
// Each operation implements the Operation interface, which provides:
//   - Forward pass: computed by the CPU backend before the op is recorded
//   - Backward pass: computes gradients for inputs given the output gradient
//
// Only gradients w.r.t. activations are produced. Parameters (kernels,
// weights, biases) are constants from the tape's point of view.
package ops

import (
	"github.com/born-ml/gradcam/internal/backend/cpu"
	"github.com/born-ml/gradcam/internal/tensor"
)

// Operation represents a differentiable operation in the computation graph.
// Each operation records its input and output during the forward pass,
// and computes the input gradient during the backward pass.
//
// Implementations must not mutate their state in Backward: a tape may be
// walked by several goroutines at once.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns a slice of gradients corresponding to each input tensor.
	Backward(outputGrad *tensor.Tensor, backend *cpu.CPUBackend) []*tensor.Tensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.Tensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.Tensor
}

// unary is the common bookkeeping for single-input operations.
type unary struct {
	input  *tensor.Tensor
	output *tensor.Tensor
}

// Inputs returns the input tensor.
func (u unary) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{u.input}
}

// Output returns the output tensor.
func (u unary) Output() *tensor.Tensor {
	return u.output
}
