// Package model builds image classifiers from a YAML architecture and
// SafeTensors weights.
//
// An architecture file lists the layers in order:
//
//	name: mobilenet-tiny
//	input: [3, 224, 224]
//	preprocess: mobilenet_v2
//	classes: 1000
//	labels:
//	  282: tiger cat
//	layers:
//	  - {name: conv1, type: conv2d, in: 3, out: 32, kernel: 3, stride: 2, padding: 1}
//	  - {name: bn1, type: batchnorm2d, channels: 32}
//	  - {name: relu1, type: relu6}
//	  - {name: dw1, type: conv2d, in: 32, out: 32, kernel: 3, padding: 1, groups: 32}
//	  - {name: bn2, type: batchnorm2d, channels: 32}
//	  - {name: add1, type: add, from: relu1}
//	  - {name: gap, type: global_avg_pool2d}
//	  - {name: fc, type: linear, in: 32, out: 1000, bias: true}
//
// Weights are keyed "<layer>.<param>" (conv1.weight, bn1.running_var).
package model

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/gradcam/internal/imaging"
	"github.com/born-ml/gradcam/internal/nn"
)

// Layer types understood by Build.
const (
	LayerConv2D          = "conv2d"
	LayerBatchNorm2D     = "batchnorm2d"
	LayerReLU            = "relu"
	LayerReLU6           = "relu6"
	LayerMaxPool2D       = "maxpool2d"
	LayerGlobalAvgPool2D = "global_avg_pool2d"
	LayerFlatten         = "flatten"
	LayerLinear          = "linear"
	LayerAdd             = "add"
)

// ErrInvalidArchitecture is returned for architecture files that cannot be built.
var ErrInvalidArchitecture = errors.New("model: invalid architecture")

// LayerSpec describes one layer. Fields not used by a type are ignored.
type LayerSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	In       int     `yaml:"in,omitempty"`
	Out      int     `yaml:"out,omitempty"`
	Channels int     `yaml:"channels,omitempty"`
	Kernel   int     `yaml:"kernel,omitempty"`
	Stride   int     `yaml:"stride,omitempty"`
	Padding  int     `yaml:"padding,omitempty"`
	Groups   int     `yaml:"groups,omitempty"`
	Bias     bool    `yaml:"bias,omitempty"`
	Eps      float64 `yaml:"eps,omitempty"`
	From     string  `yaml:"from,omitempty"` // add: layer whose output is added
}

// Architecture is the decoded architecture file.
type Architecture struct {
	Name       string         `yaml:"name"`
	Input      []int          `yaml:"input"` // [C, H, W]
	Preprocess string         `yaml:"preprocess"`
	Classes    int            `yaml:"classes"`
	Labels     map[int]string `yaml:"labels,omitempty"`
	Layers     []LayerSpec    `yaml:"layers"`
}

// ParseArchitecture decodes YAML and applies defaults.
func ParseArchitecture(data []byte) (*Architecture, error) {
	var arch Architecture
	if err := yaml.Unmarshal(data, &arch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchitecture, err)
	}
	arch.applyDefaults()
	if err := arch.Validate(); err != nil {
		return nil, err
	}
	return &arch, nil
}

// LoadArchitecture reads and parses an architecture file.
func LoadArchitecture(path string) (*Architecture, error) {
	//nolint:gosec // G304: model path comes from the caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read architecture: %w", err)
	}
	arch, err := ParseArchitecture(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return arch, nil
}

// Marshal encodes the architecture as YAML.
func (a *Architecture) Marshal() ([]byte, error) {
	return yaml.Marshal(a)
}

func (a *Architecture) applyDefaults() {
	if a.Name == "" {
		a.Name = "classifier"
	}
	if a.Preprocess == "" {
		a.Preprocess = imaging.PreprocessMobileNetV2
	}
}

// Validate checks the fields that do not depend on layer shapes.
func (a *Architecture) Validate() error {
	if len(a.Input) != 3 {
		return fmt.Errorf("%w: input must be [C, H, W], got %v", ErrInvalidArchitecture, a.Input)
	}
	for _, d := range a.Input {
		if d <= 0 {
			return fmt.Errorf("%w: input dimensions must be positive, got %v", ErrInvalidArchitecture, a.Input)
		}
	}
	if a.Input[0] != 3 {
		return fmt.Errorf("%w: only RGB input is supported, got %d channels", ErrInvalidArchitecture, a.Input[0])
	}
	if a.Classes <= 0 {
		return fmt.Errorf("%w: classes must be positive, got %d", ErrInvalidArchitecture, a.Classes)
	}
	if _, err := imaging.LookupPreprocessor(a.Preprocess); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArchitecture, err)
	}
	if len(a.Layers) == 0 {
		return fmt.Errorf("%w: no layers", ErrInvalidArchitecture)
	}
	return nil
}

// Build creates the network with freshly initialized parameters.
func (a *Architecture) Build() (*nn.Sequential, error) {
	net, err := nn.NewSequential()
	if err != nil {
		return nil, err
	}
	for i, spec := range a.Layers {
		module, err := spec.build()
		if err != nil {
			return nil, fmt.Errorf("%w: layer %d (%s): %v", ErrInvalidArchitecture, i, spec.Name, err)
		}
		if err := net.Add(spec.Name, module); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArchitecture, err)
		}
	}
	return net, nil
}

func (s LayerSpec) build() (nn.Module, error) {
	switch s.Type {
	case LayerConv2D:
		return nn.NewConv2D(nn.Conv2DConfig{
			InChannels:  s.In,
			OutChannels: s.Out,
			KernelSize:  s.Kernel,
			Stride:      s.Stride,
			Padding:     s.Padding,
			Groups:      s.Groups,
			Bias:        s.Bias,
		})
	case LayerBatchNorm2D:
		return nn.NewBatchNorm2D(s.Channels, s.Eps)
	case LayerReLU:
		return nn.NewReLU(), nil
	case LayerReLU6:
		return nn.NewReLU6(), nil
	case LayerMaxPool2D:
		return nn.NewMaxPool2D(s.Kernel, s.Stride)
	case LayerGlobalAvgPool2D:
		return nn.NewGlobalAvgPool2D(), nil
	case LayerFlatten:
		return nn.NewFlatten(), nil
	case LayerLinear:
		return nn.NewLinear(s.In, s.Out, s.Bias)
	case LayerAdd:
		return nn.NewResidual(s.From)
	default:
		return nil, fmt.Errorf("unknown layer type %q", s.Type)
	}
}
