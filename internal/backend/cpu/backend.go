// Package cpu implements the float32 CPU kernels behind the CNN runtime.
//
// Kernels panic on shape misuse (a programming error); the layers above
// validate user-facing configuration and return errors instead.
package cpu

import (
	"github.com/born-ml/gradcam/internal/parallel"
	"github.com/born-ml/gradcam/internal/tensor"
)

// CPUBackend runs tensor kernels on the CPU.
type CPUBackend struct {
	par parallel.Config
}

// New creates a CPU backend with default parallelism.
func New() *CPUBackend {
	return &CPUBackend{
		par: parallel.DefaultConfig(),
	}
}

// NewWithConfig creates a CPU backend with explicit parallelism settings.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{par: cfg}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Parallel returns the backend's parallel execution config.
func (cpu *CPUBackend) Parallel() parallel.Config {
	return cpu.par
}

var _ tensor.Backend = (*CPUBackend)(nil)
