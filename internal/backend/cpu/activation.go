package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/gradcam/internal/tensor"
)

// ReLU computes max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(input *tensor.Tensor) *tensor.Tensor {
	return cpu.Clip(input, 0, float32(math.Inf(1)))
}

// ReLU6 computes min(max(0, x), 6) element-wise (MobileNet activation).
func (cpu *CPUBackend) ReLU6(input *tensor.Tensor) *tensor.Tensor {
	return cpu.Clip(input, 0, 6)
}

// Clip clamps every element into [lo, hi].
func (cpu *CPUBackend) Clip(input *tensor.Tensor, lo, hi float32) *tensor.Tensor {
	output := tensor.ZerosLike(input)
	dst := output.Data()
	for i, v := range input.Data() {
		switch {
		case v < lo:
			dst[i] = lo
		case v > hi:
			dst[i] = hi
		default:
			dst[i] = v
		}
	}
	return output
}

// ClipBackward passes the gradient where lo < x < hi and zeroes it elsewhere.
//
// For ReLU this is the usual mask: d(ReLU(x))/dx = 1 if x > 0, else 0.
func (cpu *CPUBackend) ClipBackward(input, grad *tensor.Tensor, lo, hi float32) *tensor.Tensor {
	if !input.Shape().Equal(grad.Shape()) {
		panic(fmt.Sprintf("clip backward: input %v vs grad %v", input.Shape(), grad.Shape()))
	}
	inputGrad := tensor.ZerosLike(input)
	dst := inputGrad.Data()
	g := grad.Data()
	for i, v := range input.Data() {
		if v > lo && v < hi {
			dst[i] = g[i]
		}
	}
	return inputGrad
}

// Add returns a+b for tensors of identical shape.
func (cpu *CPUBackend) Add(a, b *tensor.Tensor) *tensor.Tensor {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("add: shape mismatch %v vs %v", a.Shape(), b.Shape()))
	}
	output := a.Clone()
	dst := output.Data()
	for i, v := range b.Data() {
		dst[i] += v
	}
	return output
}

// ChannelAffine computes y[n,c,h,w] = x[n,c,h,w]*scale[c] + shift[c].
// Inference-time batch normalization folds into this form.
func (cpu *CPUBackend) ChannelAffine(input *tensor.Tensor, scale, shift []float32) *tensor.Tensor {
	N, C, H, W := input.Shape().NCHW()
	if len(scale) != C || len(shift) != C {
		panic(fmt.Sprintf("channel affine: %d channels, got scale=%d shift=%d", C, len(scale), len(shift)))
	}
	output := tensor.ZerosLike(input)
	src := input.Data()
	dst := output.Data()
	plane := H * W
	for i := 0; i < N*C; i++ {
		c := i % C
		for j := i * plane; j < (i+1)*plane; j++ {
			dst[j] = src[j]*scale[c] + shift[c]
		}
	}
	return output
}

// ChannelAffineBackward computes dL/dx = grad * scale[c].
func (cpu *CPUBackend) ChannelAffineBackward(grad *tensor.Tensor, scale []float32) *tensor.Tensor {
	N, C, H, W := grad.Shape().NCHW()
	inputGrad := tensor.ZerosLike(grad)
	src := grad.Data()
	dst := inputGrad.Data()
	plane := H * W
	for i := 0; i < N*C; i++ {
		s := scale[i%C]
		for j := i * plane; j < (i+1)*plane; j++ {
			dst[j] = src[j] * s
		}
	}
	return inputGrad
}

// Softmax converts a row of logits into probabilities.
// Uses the max-subtraction trick for numerical stability.
func Softmax(logits []float32) []float64 {
	probs := make([]float64, len(logits))
	if len(logits) == 0 {
		return probs
	}
	maxVal := math.Inf(-1)
	for _, v := range logits {
		maxVal = math.Max(maxVal, float64(v))
	}
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(float64(v) - maxVal)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
