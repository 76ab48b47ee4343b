package nn

import (
	"fmt"

	"github.com/born-ml/gradcam/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
//
// Where:
//   - x: input tensor with shape [batch_size, in_features]
//   - W: weight matrix with shape [out_features, in_features]
//   - b: bias vector with shape [out_features]
//   - y: output tensor with shape [batch_size, out_features]
//
// Example:
//
//	head, err := nn.NewLinear(1280, 1000, true) // ImageNet classifier head
//	logits := head.Forward(features, backend)   // [1, 1000]
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter
	bias        *Parameter // nil without bias
}

// NewLinear creates a new Linear layer with Xavier initialization.
func NewLinear(inFeatures, outFeatures int, useBias bool) (*Linear, error) {
	if inFeatures <= 0 || outFeatures <= 0 {
		return nil, fmt.Errorf("%w: linear features in=%d, out=%d", ErrInvalidConfig, inFeatures, outFeatures)
	}
	l := &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures})),
	}
	if useBias {
		l.bias = NewParameter("bias", tensor.Zeros(tensor.Shape{outFeatures}))
	}
	return l, nil
}

// Forward computes y = x @ W.T + b.
func (l *Linear) Forward(input *tensor.Tensor, backend tensor.Backend) *tensor.Tensor {
	if s := input.Shape(); len(s) != 2 || s[1] != l.inFeatures {
		panic(fmt.Sprintf("linear: expected [N,%d], got %v", l.inFeatures, s))
	}
	var bias []float32
	if l.bias != nil {
		bias = l.bias.Tensor().Data()
	}
	return backend.Dense(input, l.weight.Tensor(), bias)
}

// OutputShape returns [N, out_features].
func (l *Linear) OutputShape(input tensor.Shape) (tensor.Shape, error) {
	if len(input) != 2 || input[1] != l.inFeatures {
		return nil, fmt.Errorf("%w: linear expects [N,%d], got %v", ErrShapeMismatch, l.inFeatures, input)
	}
	return tensor.Shape{input[0], l.outFeatures}, nil
}

// Parameters returns the weight and, if present, the bias.
func (l *Linear) Parameters() []*Parameter {
	if l.bias == nil {
		return []*Parameter{l.weight}
	}
	return []*Parameter{l.weight, l.bias}
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}

func (l *Linear) String() string {
	return fmt.Sprintf("Linear(in_features=%d, out_features=%d, bias=%t)", l.inFeatures, l.outFeatures, l.bias != nil)
}
