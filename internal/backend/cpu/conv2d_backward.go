package cpu

import (
	"github.com/born-ml/gradcam/internal/parallel"
	"github.com/born-ml/gradcam/internal/tensor"
)

// Conv2DInputBackward computes the gradient w.r.t. the convolution input.
//
// Algorithm: transposed convolution via col2im.
//  1. For every kernel tap row k: gradCol[k] = sum_oc kernel[oc, k] * grad[oc]
//  2. Scatter-add gradCol back onto the input positions each tap read from
//
// Kernel weights are not differentiated: explanations only need the signal
// flowing back to activations.
func (cpu *CPUBackend) Conv2DInputBackward(inputShape tensor.Shape, kernel, grad *tensor.Tensor, p tensor.ConvParams) *tensor.Tensor {
	N, CIn, H, W := inputShape.NCHW()
	COut, CInG, KH, KW := kernel.Shape().NCHW()
	_, _, HOut, WOut := grad.Shape().NCHW()
	groups := p.NumGroups()

	inputGrad := tensor.Zeros(inputShape)
	inputGradData := inputGrad.Data()
	kernelData := kernel.Data()
	gradData := grad.Data()

	COutG := COut / groups
	colWidth := CInG * KH * KW
	plane := HOut * WOut
	gradCol := make([]float32, colWidth*plane)

	for n := 0; n < N; n++ {
		for g := 0; g < groups; g++ {
			parallel.ForRange(colWidth, func(start, end int) {
				for k := start; k < end; k++ {
					dst := gradCol[k*plane : (k+1)*plane]
					for j := range dst {
						dst[j] = 0
					}
					for i := 0; i < COutG; i++ {
						oc := g*COutG + i
						wv := kernelData[oc*colWidth+k]
						if wv == 0 {
							continue
						}
						src := gradData[(n*COut+oc)*plane : (n*COut+oc+1)*plane]
						for j, v := range src {
							dst[j] += wv * v
						}
					}
				}
			}, cpu.par)

			inOffset := (n*CIn + g*CInG) * H * W
			col2im(inputGradData[inOffset:inOffset+CInG*H*W], gradCol, CInG, H, W, KH, KW, HOut, WOut, p)
		}
	}

	return inputGrad
}

// col2im is the adjoint of im2col: it accumulates column rows back into [C, H, W].
func col2im(dst, colBuf []float32, C, H, W, KH, KW, HOut, WOut int, p tensor.ConvParams) {
	plane := HOut * WOut
	row := 0
	for c := 0; c < C; c++ {
		channel := dst[c*H*W : (c+1)*H*W]
		for kh := 0; kh < KH; kh++ {
			for kw := 0; kw < KW; kw++ {
				src := colBuf[row*plane : (row+1)*plane]
				for outH := 0; outH < HOut; outH++ {
					h := outH*p.Stride - p.Padding + kh
					if h < 0 || h >= H {
						continue
					}
					for outW := 0; outW < WOut; outW++ {
						w := outW*p.Stride - p.Padding + kw
						if w >= 0 && w < W {
							channel[h*W+w] += src[outH*WOut+outW]
						}
					}
				}
				row++
			}
		}
	}
}
