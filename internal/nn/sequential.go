package nn

import (
	"fmt"
	"sort"

	"github.com/born-ml/gradcam/internal/tensor"
)

// Layer is a module with a unique name inside a Sequential.
type Layer struct {
	Name   string
	Module Module
}

// Sequential is a container that chains named layers together.
//
// Each layer's output becomes the next layer's input; a Residual layer
// additionally adds the output of the earlier layer it names. Layer names give
// access to intermediate activations and prefix parameter names in the
// state dict ("conv1.weight", "bn1.running_var").
//
// Example:
//
//	net, err := nn.NewSequential(
//	    nn.Layer{Name: "conv1", Module: conv},
//	    nn.Layer{Name: "relu1", Module: nn.NewReLU()},
//	    nn.Layer{Name: "gap", Module: nn.NewGlobalAvgPool2D()},
//	    nn.Layer{Name: "fc", Module: head},
//	)
//	output := net.Forward(input, backend)
type Sequential struct {
	layers []Layer
	index  map[string]int
}

// NewSequential creates a new Sequential container.
func NewSequential(layers ...Layer) (*Sequential, error) {
	s := &Sequential{index: make(map[string]int, len(layers))}
	for _, l := range layers {
		if err := s.Add(l.Name, l.Module); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends a named layer to the sequence.
func (s *Sequential) Add(name string, module Module) error {
	if name == "" {
		return fmt.Errorf("%w: layer %d has no name", ErrInvalidConfig, len(s.layers))
	}
	if module == nil {
		return fmt.Errorf("%w: layer %q has no module", ErrInvalidConfig, name)
	}
	if _, ok := s.index[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateLayer, name)
	}
	if r, ok := module.(*Residual); ok {
		if _, ok := s.index[r.From()]; !ok {
			return fmt.Errorf("%w: layer %q adds %q, which is not an earlier layer", ErrInvalidConfig, name, r.From())
		}
	}
	s.index[name] = len(s.layers)
	s.layers = append(s.layers, Layer{Name: name, Module: module})
	return nil
}

// Forward applies all layers in sequence.
func (s *Sequential) Forward(input *tensor.Tensor, backend tensor.Backend) *tensor.Tensor {
	if len(s.layers) == 0 {
		return input
	}
	activations := s.ForwardAll(input, backend)
	return activations[len(activations)-1]
}

// ForwardAll applies all layers and returns every layer's output, in order.
// The last element is the network output.
func (s *Sequential) ForwardAll(input *tensor.Tensor, backend tensor.Backend) []*tensor.Tensor {
	activations := make([]*tensor.Tensor, len(s.layers))
	output := input
	for i, l := range s.layers {
		if r, ok := l.Module.(*Residual); ok {
			output = r.Merge(output, activations[s.index[r.From()]], backend)
		} else {
			output = l.Module.Forward(output, backend)
		}
		activations[i] = output
	}
	return activations
}

// OutputShapes returns the output shape of every layer for an input shape.
func (s *Sequential) OutputShapes(input tensor.Shape) ([]tensor.Shape, error) {
	shapes := make([]tensor.Shape, len(s.layers))
	current := input
	for i, l := range s.layers {
		out, err := l.Module.OutputShape(current)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", l.Name, err)
		}
		if r, ok := l.Module.(*Residual); ok {
			if from := shapes[s.index[r.From()]]; !from.Equal(out) {
				return nil, fmt.Errorf("layer %q: %w: input %v vs %q output %v", l.Name, ErrShapeMismatch, out, r.From(), from)
			}
		}
		shapes[i] = out
		current = out
	}
	return shapes, nil
}

// Len returns the number of layers.
func (s *Sequential) Len() int {
	return len(s.layers)
}

// Layers returns a copy of the layer list.
func (s *Sequential) Layers() []Layer {
	out := make([]Layer, len(s.layers))
	copy(out, s.layers)
	return out
}

// Index returns the position of the named layer.
func (s *Sequential) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Parameters returns all parameters from all layers.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, l := range s.layers {
		params = append(params, l.Module.Parameters()...)
	}
	return params
}

// StateDict returns the parameters keyed "<layer>.<param>".
func (s *Sequential) StateDict() map[string]*Parameter {
	dict := make(map[string]*Parameter)
	for _, l := range s.layers {
		for _, p := range l.Module.Parameters() {
			dict[l.Name+"."+p.Name()] = p
		}
	}
	return dict
}

// LoadStateDict copies tensors into the layer parameters.
//
// Every parameter must be present with the right shape. Keys that match
// no parameter are returned so the caller can report them.
func (s *Sequential) LoadStateDict(tensors map[string]*tensor.Tensor) (unused []string, err error) {
	dict := s.StateDict()
	for key, p := range dict {
		t, ok := tensors[key]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingParameter, key)
		}
		if err := p.Set(t); err != nil {
			return nil, fmt.Errorf("load %q: %w", key, err)
		}
	}
	for key := range tensors {
		if _, ok := dict[key]; !ok {
			unused = append(unused, key)
		}
	}
	sort.Strings(unused)
	return unused, nil
}
