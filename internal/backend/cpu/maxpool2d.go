package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/gradcam/internal/parallel"
	"github.com/born-ml/gradcam/internal/tensor"
)

// MaxPool2D performs 2D max pooling.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Where:
//
//	out_height = (height - kernelSize) / stride + 1
//	out_width = (width - kernelSize) / stride + 1
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (cpu *CPUBackend) MaxPool2D(input *tensor.Tensor, kernelSize, stride int) *tensor.Tensor {
	output, _ := cpu.MaxPool2DWithIndices(input, kernelSize, stride)
	return output
}

// MaxPool2DWithIndices is MaxPool2D that also returns, for every output
// element, the flat input index of the winning value. MaxPool2DBackward
// routes gradients through those indices.
func (cpu *CPUBackend) MaxPool2DWithIndices(input *tensor.Tensor, kernelSize, stride int) (*tensor.Tensor, []int) {
	N, C, H, W := input.Shape().NCHW()

	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}
	if kernelSize > H || kernelSize > W {
		panic(fmt.Sprintf("maxpool2d: kernel size %d too large for input %dx%d", kernelSize, H, W))
	}

	HOut := (H-kernelSize)/stride + 1
	WOut := (W-kernelSize)/stride + 1

	output := tensor.Zeros(tensor.Shape{N, C, HOut, WOut})
	indices := make([]int, output.NumElements())
	inputData := input.Data()
	outputData := output.Data()

	parallel.ForBatch(N, C, func(n, c int) {
		// Pre-slice channel plane: eliminates (n*C+c)*H*W bounds check
		channelOffset := (n*C + c) * H * W
		channelData := inputData[channelOffset : channelOffset+H*W]

		for outH := 0; outH < HOut; outH++ {
			hStart := outH * stride
			for outW := 0; outW < WOut; outW++ {
				wStart := outW * stride

				maxVal := float32(math.Inf(-1))
				maxIdx := hStart*W + wStart
				for kh := 0; kh < kernelSize; kh++ {
					rowStart := (hStart + kh) * W
					rowData := channelData[rowStart : rowStart+W]
					for kw := 0; kw < kernelSize; kw++ {
						if val := rowData[wStart+kw]; val > maxVal {
							maxVal = val
							maxIdx = rowStart + wStart + kw
						}
					}
				}

				outputIdx := ((n*C+c)*HOut+outH)*WOut + outW
				outputData[outputIdx] = maxVal
				indices[outputIdx] = channelOffset + maxIdx
			}
		}
	}, cpu.par)

	return output, indices
}

// MaxPool2DBackward scatters the output gradient onto the max positions.
// Overlapping windows that share a winner accumulate.
func (cpu *CPUBackend) MaxPool2DBackward(inputShape tensor.Shape, indices []int, grad *tensor.Tensor) *tensor.Tensor {
	if len(indices) != grad.NumElements() {
		panic(fmt.Sprintf("maxpool2d backward: %d indices for %d gradients", len(indices), grad.NumElements()))
	}
	inputGrad := tensor.Zeros(inputShape)
	dst := inputGrad.Data()
	for i, g := range grad.Data() {
		dst[indices[i]] += g
	}
	return inputGrad
}

// GlobalAvgPool2D averages every channel plane: [N, C, H, W] -> [N, C].
func (cpu *CPUBackend) GlobalAvgPool2D(input *tensor.Tensor) *tensor.Tensor {
	N, C, H, W := input.Shape().NCHW()
	output := tensor.Zeros(tensor.Shape{N, C})
	inputData := input.Data()
	outputData := output.Data()
	plane := H * W

	for i := 0; i < N*C; i++ {
		var sum float64
		for _, v := range inputData[i*plane : (i+1)*plane] {
			sum += float64(v)
		}
		outputData[i] = float32(sum / float64(plane))
	}
	return output
}

// GlobalAvgPool2DBackward spreads each [N, C] gradient evenly over its plane.
func (cpu *CPUBackend) GlobalAvgPool2DBackward(inputShape tensor.Shape, grad *tensor.Tensor) *tensor.Tensor {
	N, C, H, W := inputShape.NCHW()
	if !grad.Shape().Equal(tensor.Shape{N, C}) {
		panic(fmt.Sprintf("global_avg_pool2d backward: grad shape %v, want [%d %d]", grad.Shape(), N, C))
	}
	inputGrad := tensor.Zeros(inputShape)
	dst := inputGrad.Data()
	plane := H * W
	scale := 1 / float32(plane)

	for i, g := range grad.Data() {
		v := g * scale
		row := dst[i*plane : (i+1)*plane]
		for j := range row {
			row[j] = v
		}
	}
	return inputGrad
}
