package autodiff

import (
	"fmt"
	"sync"

	"github.com/born-ml/gradcam/internal/autodiff/ops"
	"github.com/born-ml/gradcam/internal/backend/cpu"
	"github.com/born-ml/gradcam/internal/tensor"
)

// Gradients maps every tensor reached by a backward walk to dL/dtensor.
type Gradients map[*tensor.Tensor]*tensor.Tensor

// Of returns the gradient of t, or nil when no gradient flowed into it.
func (g Gradients) Of(t *tensor.Tensor) *tensor.Tensor {
	return g[t]
}

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass using reverse-mode automatic differentiation.
//
// Recording is guarded by a mutex; once the forward pass is done the tape
// can be walked backwards by several goroutines at once (one per target).
//
// Usage:
//
//	tape := NewGradientTape()
//	tape.StartRecording()
//	// ... perform operations through autodiff.Backend ...
//	grads, err := tape.Backward(logits, seed, cpuBackend)
type GradientTape struct {
	mu         sync.RWMutex
	operations []ops.Operation // Recorded operations (in execution order)
	recording  bool            // Whether tape is currently recording
}

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0, 32), // A CNN classifier rarely exceeds this
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.mu.Lock()
	t.recording = true
	t.mu.Unlock()
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.mu.Lock()
	t.recording = false
	t.mu.Unlock()
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.recording
}

// Record adds an operation to the tape.
// Only records if the tape is currently recording.
func (t *GradientTape) Record(op ops.Operation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// Clear resets the tape, removing all recorded operations.
// Recording state is preserved.
func (t *GradientTape) Clear() {
	t.mu.Lock()
	t.operations = t.operations[:0]
	t.mu.Unlock()
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.operations)
}

// Backward computes gradients of output by walking the tape in reverse.
//
// Algorithm:
//  1. Seed output with outputGrad (one-hot at the target class for explanations)
//  2. Walk operations in reverse order
//  3. For each operation whose output has a gradient, apply the chain rule
//  4. Accumulate gradients when the same tensor feeds several operations
//
// Backward does not modify the tape and is safe for concurrent use.
func (t *GradientTape) Backward(output, outputGrad *tensor.Tensor, backend *cpu.CPUBackend) (Gradients, error) {
	if !output.Shape().Equal(outputGrad.Shape()) {
		return nil, fmt.Errorf("backward: seed shape %v does not match output %v", outputGrad.Shape(), output.Shape())
	}

	t.mu.RLock()
	operations := t.operations[:len(t.operations):len(t.operations)]
	t.mu.RUnlock()

	grads := Gradients{output: outputGrad}

	for i := len(operations) - 1; i >= 0; i-- {
		op := operations[i]
		opGrad, ok := grads[op.Output()]
		if !ok {
			continue
		}
		inputGrads := op.Backward(opGrad, backend)
		for j, input := range op.Inputs() {
			if j >= len(inputGrads) || inputGrads[j] == nil {
				continue
			}
			if existing, ok := grads[input]; ok {
				grads[input] = add(existing, inputGrads[j])
			} else {
				grads[input] = inputGrads[j]
			}
		}
	}

	return grads, nil
}

// add returns a+b without touching either operand.
func add(a, b *tensor.Tensor) *tensor.Tensor {
	sum := a.Clone()
	dst := sum.Data()
	for i, v := range b.Data() {
		dst[i] += v
	}
	return sum
}
