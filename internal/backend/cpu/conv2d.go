package cpu

import (
	"fmt"

	"github.com/born-ml/gradcam/internal/parallel"
	"github.com/born-ml/gradcam/internal/tensor"
)

// Conv2D performs a grouped 2D convolution using the im2col algorithm.
//
// Input shape:  [N, C_in, H, W]
// Kernel shape: [C_out, C_in/groups, K_h, K_w]
// Bias:         [C_out] or nil
// Output shape: [N, C_out, H_out, W_out]
//
// Algorithm (per batch item and group):
//  1. Im2col: unfold input patches into [C_in/g * K_h * K_w, H_out * W_out]
//  2. Multiply the group's kernel rows with the column matrix
//  3. Add bias
//
// Output channels are independent, so step 2 fans out over them.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.Tensor, bias []float32, p tensor.ConvParams) *tensor.Tensor {
	N, CIn, H, W := input.Shape().NCHW()
	COut, CInG, KH, KW := kernel.Shape().NCHW()
	groups := p.NumGroups()

	if CIn%groups != 0 || COut%groups != 0 {
		panic(fmt.Sprintf("conv2d: channels in=%d out=%d not divisible by groups=%d", CIn, COut, groups))
	}
	if CIn/groups != CInG {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d (groups=%d)", CIn, CInG*groups, groups))
	}
	if bias != nil && len(bias) != COut {
		panic(fmt.Sprintf("conv2d: bias length %d != out channels %d", len(bias), COut))
	}
	if p.Stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", p.Stride))
	}

	HOut, WOut := p.OutputSize(H, W, KH, KW)
	if HOut <= 0 || WOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", HOut, WOut))
	}

	output := tensor.Zeros(tensor.Shape{N, COut, HOut, WOut})
	inputData := input.Data()
	kernelData := kernel.Data()
	outputData := output.Data()

	COutG := COut / groups
	colWidth := CInG * KH * KW
	plane := HOut * WOut
	colBuf := make([]float32, colWidth*plane)

	for n := 0; n < N; n++ {
		for g := 0; g < groups; g++ {
			inOffset := (n*CIn + g*CInG) * H * W
			im2col(colBuf, inputData[inOffset:inOffset+CInG*H*W], CInG, H, W, KH, KW, HOut, WOut, p)

			parallel.For(COutG, func(i int) {
				oc := g*COutG + i
				out := outputData[(n*COut+oc)*plane : (n*COut+oc+1)*plane]
				weights := kernelData[oc*colWidth : (oc+1)*colWidth]

				for k, wv := range weights {
					if wv == 0 {
						continue
					}
					row := colBuf[k*plane : (k+1)*plane]
					for j, v := range row {
						out[j] += wv * v
					}
				}
				if bias != nil {
					b := bias[oc]
					for j := range out {
						out[j] += b
					}
				}
			}, cpu.par)
		}
	}

	return output
}

// im2col unfolds a [C, H, W] input into a [C*K_h*K_w, H_out*W_out] column matrix.
//
// Row (c, kh, kw) holds, for every output position, the input value under
// that kernel tap; out-of-bounds taps read as zero padding.
func im2col(colBuf, inputData []float32, C, H, W, KH, KW, HOut, WOut int, p tensor.ConvParams) {
	plane := HOut * WOut
	row := 0
	for c := 0; c < C; c++ {
		channel := inputData[c*H*W : (c+1)*H*W]
		for kh := 0; kh < KH; kh++ {
			for kw := 0; kw < KW; kw++ {
				dst := colBuf[row*plane : (row+1)*plane]
				for outH := 0; outH < HOut; outH++ {
					h := outH*p.Stride - p.Padding + kh
					for outW := 0; outW < WOut; outW++ {
						w := outW*p.Stride - p.Padding + kw
						if h >= 0 && h < H && w >= 0 && w < W {
							dst[outH*WOut+outW] = channel[h*W+w]
						} else {
							dst[outH*WOut+outW] = 0
						}
					}
				}
				row++
			}
		}
	}
}
