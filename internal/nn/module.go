// Package nn implements the layers of a convolutional image classifier.
//
// This package provides building blocks for constructing networks:
//   - Module interface: Base interface for all layers
//   - Parameter: Named weight tensors loaded from a checkpoint
//   - Conv2D, BatchNorm2D, Linear: Layers with parameters
//   - ReLU, ReLU6, MaxPool2D, GlobalAvgPool2D, Flatten: Stateless layers
//   - Sequential: Ordered container of named layers
//
// Layers are written against tensor.Backend, so the same network can run on
// the plain CPU backend or on the autodiff backend that records a tape.
package nn

import (
	"errors"

	"github.com/born-ml/gradcam/internal/tensor"
)

// Errors returned while building networks and loading their parameters.
var (
	ErrInvalidConfig    = errors.New("nn: invalid layer configuration")
	ErrShapeMismatch    = errors.New("nn: shape mismatch")
	ErrMissingParameter = errors.New("nn: missing parameter")
	ErrDuplicateLayer   = errors.New("nn: duplicate layer name")
)

// Module is the base interface for all layers.
//
// Modules can be composed to build complex architectures:
//
//	net, err := nn.NewSequential(
//	    nn.Layer{Name: "conv1", Module: conv},
//	    nn.Layer{Name: "relu1", Module: nn.NewReLU()},
//	)
type Module interface {
	// Forward computes the output of the module on the given backend.
	//
	// Shape misuse panics, use OutputShape to validate a network up front.
	Forward(input *tensor.Tensor, backend tensor.Backend) *tensor.Tensor

	// OutputShape returns the shape Forward produces for an input shape.
	OutputShape(input tensor.Shape) (tensor.Shape, error)

	// Parameters returns the module's parameters, nil for stateless layers.
	Parameters() []*Parameter
}
