package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/gradcam/internal/tensor"
)

// DefaultBatchNormEps is the variance epsilon used by PyTorch and Keras exports.
const DefaultBatchNormEps = 1e-5

// BatchNorm2D is batch normalization in inference mode.
//
// With running statistics frozen the layer is a per-channel affine map:
//
//	y = (x - running_mean) / sqrt(running_var + eps) * weight + bias
//
// which is folded into one ChannelAffine call on every forward pass.
type BatchNorm2D struct {
	channels int
	eps      float64

	weight      *Parameter // gamma
	bias        *Parameter // beta
	runningMean *Parameter
	runningVar  *Parameter
}

// NewBatchNorm2D creates an identity batch norm (gamma=1, beta=0, mean=0, var=1).
// A non-positive eps selects DefaultBatchNormEps.
func NewBatchNorm2D(channels int, eps float64) (*BatchNorm2D, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: batchnorm2d channels %d", ErrInvalidConfig, channels)
	}
	if eps <= 0 {
		eps = DefaultBatchNormEps
	}
	shape := tensor.Shape{channels}
	return &BatchNorm2D{
		channels:    channels,
		eps:         eps,
		weight:      NewParameter("weight", tensor.Full(shape, 1)),
		bias:        NewParameter("bias", tensor.Zeros(shape)),
		runningMean: NewParameter("running_mean", tensor.Zeros(shape)),
		runningVar:  NewParameter("running_var", tensor.Full(shape, 1)),
	}, nil
}

// Forward applies the folded affine transform.
func (bn *BatchNorm2D) Forward(input *tensor.Tensor, backend tensor.Backend) *tensor.Tensor {
	if s := input.Shape(); len(s) != 4 || s[1] != bn.channels {
		panic(fmt.Sprintf("batchnorm2d: expected [N,%d,H,W], got %v", bn.channels, s))
	}
	scale, shift := bn.Fold()
	return backend.ChannelAffine(input, scale, shift)
}

// Fold returns the per-channel scale and shift equivalent to the layer.
func (bn *BatchNorm2D) Fold() (scale, shift []float32) {
	gamma := bn.weight.Tensor().Data()
	beta := bn.bias.Tensor().Data()
	mean := bn.runningMean.Tensor().Data()
	variance := bn.runningVar.Tensor().Data()

	scale = make([]float32, bn.channels)
	shift = make([]float32, bn.channels)
	for c := range scale {
		s := float64(gamma[c]) / math.Sqrt(float64(variance[c])+bn.eps)
		scale[c] = float32(s)
		shift[c] = float32(float64(beta[c]) - float64(mean[c])*s)
	}
	return scale, shift
}

// OutputShape returns the input shape unchanged.
func (bn *BatchNorm2D) OutputShape(input tensor.Shape) (tensor.Shape, error) {
	if len(input) != 4 || input[1] != bn.channels {
		return nil, fmt.Errorf("%w: batchnorm2d expects [N,%d,H,W], got %v", ErrShapeMismatch, bn.channels, input)
	}
	return input.Clone(), nil
}

// Parameters returns gamma, beta and the running statistics.
func (bn *BatchNorm2D) Parameters() []*Parameter {
	return []*Parameter{bn.weight, bn.bias, bn.runningMean, bn.runningVar}
}

func (bn *BatchNorm2D) String() string {
	return fmt.Sprintf("BatchNorm2D(%d, eps=%g)", bn.channels, bn.eps)
}
