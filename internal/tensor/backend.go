package tensor

// ConvParams holds the geometry of a 2D convolution.
type ConvParams struct {
	Stride  int
	Padding int
	Groups  int // 1 (or 0) for a dense convolution, in_channels for depthwise
}

// OutputSize returns the spatial output size for an h×w input and kh×kw kernel.
//
//	out_h = (h + 2*padding - kh) / stride + 1
func (p ConvParams) OutputSize(h, w, kh, kw int) (int, int) {
	return (h+2*p.Padding-kh)/p.Stride + 1, (w+2*p.Padding-kw)/p.Stride + 1
}

// NumGroups returns the group count, treating zero as one.
func (p ConvParams) NumGroups() int {
	if p.Groups <= 0 {
		return 1
	}
	return p.Groups
}

// Backend is the set of kernels the network layers are written against.
//
// The plain CPU backend only computes; the autodiff backend wraps it and
// additionally records every call on a gradient tape.
type Backend interface {
	// Name returns the backend name.
	Name() string

	// Conv2D computes a grouped convolution, bias may be nil.
	Conv2D(input, kernel *Tensor, bias []float32, p ConvParams) *Tensor

	// MaxPool2D performs max pooling with a square window.
	MaxPool2D(input *Tensor, kernelSize, stride int) *Tensor

	// GlobalAvgPool2D averages each channel plane: [N,C,H,W] -> [N,C].
	GlobalAvgPool2D(input *Tensor) *Tensor

	// Dense computes input @ weight^T + bias, bias may be nil.
	Dense(input, weight *Tensor, bias []float32) *Tensor

	// Clip clamps values into [lo, hi] (ReLU, ReLU6).
	Clip(input *Tensor, lo, hi float32) *Tensor

	// Add sums two tensors of the same shape (residual connections).
	Add(a, b *Tensor) *Tensor

	// ChannelAffine applies a per-channel scale and shift.
	ChannelAffine(input *Tensor, scale, shift []float32) *Tensor

	// Reshape returns a view of input with a new shape.
	Reshape(input *Tensor, shape ...int) *Tensor
}
