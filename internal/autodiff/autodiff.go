// Package autodiff implements reverse-mode automatic differentiation for the
// CNN runtime using the decorator pattern.
//
// Backend wraps the CPU backend and records every kernel call on a
// GradientTape. Layers are written against tensor.Backend, so the same model
// runs untracked (plain CPU backend, for predictions) or tracked (autodiff
// Backend, for explanations).
//
// Usage:
//
//	tracked := autodiff.New(cpu.New())
//	tracked.Tape().StartRecording()
//	logits := model.Forward(input, tracked)
//	grads, err := tracked.Backward(logits, seed)
//	featureGrad := grads.Of(featureMap)
package autodiff

import (
	"github.com/born-ml/gradcam/internal/autodiff/ops"
	"github.com/born-ml/gradcam/internal/backend/cpu"
	"github.com/born-ml/gradcam/internal/tensor"
)

// Backend wraps a CPU backend and adds gradient tracking.
type Backend struct {
	inner *cpu.CPUBackend
	tape  *GradientTape
}

var _ tensor.Backend = (*Backend)(nil)

// New creates a new autodiff Backend wrapping the given CPU backend.
func New(inner *cpu.CPUBackend) *Backend {
	return &Backend{
		inner: inner,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *Backend) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *Backend) Inner() *cpu.CPUBackend {
	return b.inner
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Backward computes gradients of output seeded with outputGrad.
func (b *Backend) Backward(output, outputGrad *tensor.Tensor) (Gradients, error) {
	return b.tape.Backward(output, outputGrad, b.inner)
}

// Conv2D computes and records a convolution.
func (b *Backend) Conv2D(input, kernel *tensor.Tensor, bias []float32, p tensor.ConvParams) *tensor.Tensor {
	output := b.inner.Conv2D(input, kernel, bias, p)
	b.tape.Record(ops.NewConv2DOp(input, kernel, output, p))
	return output
}

// MaxPool2D computes and records max pooling.
func (b *Backend) MaxPool2D(input *tensor.Tensor, kernelSize, stride int) *tensor.Tensor {
	output, indices := b.inner.MaxPool2DWithIndices(input, kernelSize, stride)
	b.tape.Record(ops.NewMaxPool2DOp(input, output, indices))
	return output
}

// GlobalAvgPool2D computes and records a global average pool.
func (b *Backend) GlobalAvgPool2D(input *tensor.Tensor) *tensor.Tensor {
	output := b.inner.GlobalAvgPool2D(input)
	b.tape.Record(ops.NewGlobalAvgPool2DOp(input, output))
	return output
}

// Dense computes and records a fully connected layer.
func (b *Backend) Dense(input, weight *tensor.Tensor, bias []float32) *tensor.Tensor {
	output := b.inner.Dense(input, weight, bias)
	b.tape.Record(ops.NewDenseOp(input, weight, output))
	return output
}

// Clip computes and records a clamp.
func (b *Backend) Clip(input *tensor.Tensor, lo, hi float32) *tensor.Tensor {
	output := b.inner.Clip(input, lo, hi)
	b.tape.Record(ops.NewClipOp(input, output, lo, hi))
	return output
}

// Add computes and records an element-wise sum.
func (b *Backend) Add(x, y *tensor.Tensor) *tensor.Tensor {
	output := b.inner.Add(x, y)
	b.tape.Record(ops.NewAddOp(x, y, output))
	return output
}

// ChannelAffine computes and records a per-channel affine transform.
func (b *Backend) ChannelAffine(input *tensor.Tensor, scale, shift []float32) *tensor.Tensor {
	output := b.inner.ChannelAffine(input, scale, shift)
	b.tape.Record(ops.NewChannelAffineOp(input, output, scale))
	return output
}

// Reshape returns and records a view with a new shape.
func (b *Backend) Reshape(input *tensor.Tensor, shape ...int) *tensor.Tensor {
	output := b.inner.Reshape(input, shape...)
	b.tape.Record(ops.NewReshapeOp(input, output))
	return output
}
