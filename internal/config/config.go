// Package config holds the run configuration of the born-gradcam CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds all run settings.
type Config struct {
	// Classifier files
	Model   string `yaml:"model"`   // architecture YAML
	Weights string `yaml:"weights"` // SafeTensors

	// Explanation settings
	Explain ExplainConfig `yaml:"explain"`

	// Output image settings
	Output OutputConfig `yaml:"output"`

	// Images processed concurrently
	Workers int `yaml:"workers"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ExplainConfig configures Grad-CAM.
type ExplainConfig struct {
	Targets        []int  `yaml:"targets,omitempty"` // empty: top prediction
	Layer          string `yaml:"layer"`             // empty: last spatial layer
	NoReLU         bool   `yaml:"no_relu"`
	Counterfactual bool   `yaml:"counterfactual"`
	TopK           int    `yaml:"top_k"` // predictions logged per image
}

// OutputConfig configures the rendered overlays.
type OutputConfig struct {
	Dir        string  `yaml:"dir"`
	Colormap   string  `yaml:"colormap"`    // viridis, magma, jet, gray
	AlphaLimit float64 `yaml:"alpha_limit"` // opacity of the hottest pixels
	Filter     string  `yaml:"filter"`      // lanczos, catmullrom, bilinear, nearest
	Suffix     string  `yaml:"suffix"`      // appended to the image name
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level    string `yaml:"level"`    // debug, info, warn, error
	Encoding string `yaml:"encoding"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Explain: ExplainConfig{
			TopK: 3,
		},
		Output: OutputConfig{
			Dir:        ".",
			Colormap:   "viridis",
			AlphaLimit: 0.65,
			Filter:     "lanczos",
			Suffix:     "_gradcam",
		},
		Workers: 2,
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Load loads configuration from a YAML file on top of the defaults.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	//nolint:gosec // G304: config path comes from the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Model == "" || c.Weights == "" {
		return fmt.Errorf("%w: model and weights are required", ErrInvalidConfig)
	}
	if c.Output.AlphaLimit < 0 || c.Output.AlphaLimit > 1 {
		return fmt.Errorf("%w: alpha_limit %g not in [0, 1]", ErrInvalidConfig, c.Output.AlphaLimit)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	}
	for _, t := range c.Explain.Targets {
		if t < 0 {
			return fmt.Errorf("%w: negative target %d", ErrInvalidConfig, t)
		}
	}
	return nil
}
