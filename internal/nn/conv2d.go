package nn

import (
	"fmt"

	"github.com/born-ml/gradcam/internal/tensor"
)

// Conv2DConfig describes a 2D convolution layer.
type Conv2DConfig struct {
	InChannels  int
	OutChannels int
	KernelSize  int
	Stride      int // defaults to 1
	Padding     int
	Groups      int // defaults to 1, InChannels for depthwise
	Bias        bool
}

// Conv2D is a 2D convolutional layer.
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels/groups, kernel, kernel]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - kernel) / stride + 1
//	out_w = (width + 2*padding - kernel) / stride + 1
//
// Example:
//
//	// 3 channels -> 32 channels, 3x3 kernel, stride 2 (MobileNet stem)
//	conv, err := nn.NewConv2D(nn.Conv2DConfig{
//	    InChannels: 3, OutChannels: 32, KernelSize: 3, Stride: 2, Padding: 1,
//	})
//	output := conv.Forward(input, backend) // [1, 32, 112, 112] for 224x224
type Conv2D struct {
	inChannels  int
	outChannels int
	kernelSize  int
	params      tensor.ConvParams

	weight *Parameter
	bias   *Parameter // nil without bias
}

// NewConv2D creates a new 2D convolutional layer with Xavier initialization.
//
// Bias starts at zero.
func NewConv2D(cfg Conv2DConfig) (*Conv2D, error) {
	if cfg.Stride == 0 {
		cfg.Stride = 1
	}
	if cfg.Groups == 0 {
		cfg.Groups = 1
	}
	switch {
	case cfg.InChannels <= 0 || cfg.OutChannels <= 0:
		return nil, fmt.Errorf("%w: conv2d channels in=%d, out=%d", ErrInvalidConfig, cfg.InChannels, cfg.OutChannels)
	case cfg.KernelSize <= 0:
		return nil, fmt.Errorf("%w: conv2d kernel size %d", ErrInvalidConfig, cfg.KernelSize)
	case cfg.Stride < 0:
		return nil, fmt.Errorf("%w: conv2d stride %d", ErrInvalidConfig, cfg.Stride)
	case cfg.Padding < 0:
		return nil, fmt.Errorf("%w: conv2d padding %d", ErrInvalidConfig, cfg.Padding)
	case cfg.Groups < 0 || cfg.InChannels%cfg.Groups != 0 || cfg.OutChannels%cfg.Groups != 0:
		return nil, fmt.Errorf("%w: conv2d groups %d do not divide channels in=%d, out=%d",
			ErrInvalidConfig, cfg.Groups, cfg.InChannels, cfg.OutChannels)
	}

	inPerGroup := cfg.InChannels / cfg.Groups
	k := cfg.KernelSize
	// fan_in = in_per_group * k * k, fan_out = out_channels * k * k
	weight := Xavier(inPerGroup*k*k, cfg.OutChannels*k*k, tensor.Shape{cfg.OutChannels, inPerGroup, k, k})

	c := &Conv2D{
		inChannels:  cfg.InChannels,
		outChannels: cfg.OutChannels,
		kernelSize:  k,
		params:      tensor.ConvParams{Stride: cfg.Stride, Padding: cfg.Padding, Groups: cfg.Groups},
		weight:      NewParameter("weight", weight),
	}
	if cfg.Bias {
		c.bias = NewParameter("bias", tensor.Zeros(tensor.Shape{cfg.OutChannels}))
	}
	return c, nil
}

// Forward performs the convolution.
func (c *Conv2D) Forward(input *tensor.Tensor, backend tensor.Backend) *tensor.Tensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	var bias []float32
	if c.bias != nil {
		bias = c.bias.Tensor().Data()
	}
	return backend.Conv2D(input, c.weight.Tensor(), bias, c.params)
}

// OutputShape returns [N, out_channels, out_h, out_w].
func (c *Conv2D) OutputShape(input tensor.Shape) (tensor.Shape, error) {
	if len(input) != 4 || input[1] != c.inChannels {
		return nil, fmt.Errorf("%w: conv2d expects [N,%d,H,W], got %v", ErrShapeMismatch, c.inChannels, input)
	}
	outH, outW := c.params.OutputSize(input[2], input[3], c.kernelSize, c.kernelSize)
	if outH <= 0 || outW <= 0 {
		return nil, fmt.Errorf("%w: conv2d input %v too small for kernel %d", ErrShapeMismatch, input, c.kernelSize)
	}
	return tensor.Shape{input[0], c.outChannels, outH, outW}, nil
}

// Parameters returns the weight and, if present, the bias.
func (c *Conv2D) Parameters() []*Parameter {
	if c.bias == nil {
		return []*Parameter{c.weight}
	}
	return []*Parameter{c.weight, c.bias}
}

// Weight returns the kernel parameter.
func (c *Conv2D) Weight() *Parameter {
	return c.weight
}

// Bias returns the bias parameter, or nil.
func (c *Conv2D) Bias() *Parameter {
	return c.bias
}

// String returns a PyTorch-like description of the layer.
func (c *Conv2D) String() string {
	return fmt.Sprintf("Conv2D(in=%d, out=%d, kernel=%d, stride=%d, padding=%d, groups=%d, bias=%t)",
		c.inChannels, c.outChannels, c.kernelSize, c.params.Stride, c.params.Padding, c.params.Groups, c.bias != nil)
}
