package cpu

import (
	"fmt"

	"github.com/born-ml/gradcam/internal/parallel"
	"github.com/born-ml/gradcam/internal/tensor"
)

// Dense computes y = x @ W^T + b.
//
// Input shape:  [batch, in_features]
// Weight shape: [out_features, in_features]
// Bias:         [out_features] or nil
// Output shape: [batch, out_features]
func (cpu *CPUBackend) Dense(input, weight *tensor.Tensor, bias []float32) *tensor.Tensor {
	inShape := input.Shape()
	wShape := weight.Shape()
	if len(inShape) != 2 || len(wShape) != 2 {
		panic(fmt.Sprintf("dense: expected 2D input and weight, got %v and %v", inShape, wShape))
	}
	batch, inFeatures := inShape[0], inShape[1]
	outFeatures := wShape[0]
	if wShape[1] != inFeatures {
		panic(fmt.Sprintf("dense: input features %d != weight features %d", inFeatures, wShape[1]))
	}
	if bias != nil && len(bias) != outFeatures {
		panic(fmt.Sprintf("dense: bias length %d != out features %d", len(bias), outFeatures))
	}

	output := tensor.Zeros(tensor.Shape{batch, outFeatures})
	x := input.Data()
	w := weight.Data()
	y := output.Data()

	parallel.ForRange(outFeatures, func(start, end int) {
		for b := 0; b < batch; b++ {
			row := x[b*inFeatures : (b+1)*inFeatures]
			for o := start; o < end; o++ {
				wRow := w[o*inFeatures : (o+1)*inFeatures]
				var sum float32
				for k, v := range row {
					sum += v * wRow[k]
				}
				if bias != nil {
					sum += bias[o]
				}
				y[b*outFeatures+o] = sum
			}
		}
	}, cpu.par)

	return output
}

// DenseInputBackward computes dL/dx = grad @ W for a Dense layer.
func (cpu *CPUBackend) DenseInputBackward(weight, grad *tensor.Tensor) *tensor.Tensor {
	outFeatures, inFeatures := weight.Shape()[0], weight.Shape()[1]
	batch := grad.Shape()[0]
	if grad.Shape()[1] != outFeatures {
		panic(fmt.Sprintf("dense backward: grad features %d != out features %d", grad.Shape()[1], outFeatures))
	}

	inputGrad := tensor.Zeros(tensor.Shape{batch, inFeatures})
	w := weight.Data()
	g := grad.Data()
	dx := inputGrad.Data()

	for b := 0; b < batch; b++ {
		dst := dx[b*inFeatures : (b+1)*inFeatures]
		for o := 0; o < outFeatures; o++ {
			gv := g[b*outFeatures+o]
			if gv == 0 {
				continue
			}
			wRow := w[o*inFeatures : (o+1)*inFeatures]
			for k, wv := range wRow {
				dst[k] += gv * wv
			}
		}
	}
	return inputGrad
}

// Reshape returns a view of input with a new shape.
func (cpu *CPUBackend) Reshape(input *tensor.Tensor, shape ...int) *tensor.Tensor {
	return input.Reshape(shape...)
}
