package cpu

import (
	"fmt"

	"github.com/born-ml/distill/internal/parallel"
	"github.com/born-ml/distill/internal/tensor"
)

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape:  [N, C_in, H, W]
// Kernel shape: [C_out, C_in, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
//
// Im2col turns every receptive field into a row of a column matrix, so the
// whole convolution becomes one matrix product against the flattened kernel.
//
// Reference: "High Performance Convolutional Neural Networks for Document
// Processing" (Chellapilla et al., 2006).
func Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", len(kernelShape)))
	}
	if input.DType() != tensor.Float32 || kernel.DType() != tensor.Float32 {
		panic(fmt.Sprintf("conv2d: unsupported dtype %s", input.DType()))
	}

	N, cIn, h, w := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	cOut, cInK, kH, kW := kernelShape[0], kernelShape[1], kernelShape[2], kernelShape[3]

	if cIn != cInK {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", cIn, cInK))
	}

	hOut := (h+2*padding-kH)/stride + 1
	wOut := (w+2*padding-kW)/stride + 1
	if hOut <= 0 || wOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions %dx%d (check stride/padding)", hOut, wOut))
	}

	output := tensor.Zeros(tensor.Shape{N, cOut, hOut, wOut}, tensor.Float32)

	inputData := input.AsFloat32()
	kernelData := kernel.AsFloat32()
	outputData := output.AsFloat32()

	// colBuf rows are output positions, columns are kernel weights.
	colWidth := cIn * kH * kW
	colBuf := make([]float32, N*hOut*wOut*colWidth)
	im2col(colBuf, inputData, N, cIn, h, w, kH, kW, hOut, wOut, stride, padding)

	// output[n, co, oh, ow] = kernel[co, :] . colBuf[row(n, oh, ow), :]
	planeSize := hOut * wOut
	parallel.ForBatch(N, cOut, func(n, co int) {
		kernelRow := kernelData[co*colWidth : (co+1)*colWidth]
		outPlane := outputData[n*cOut*planeSize+co*planeSize:][:planeSize]
		for pos := 0; pos < planeSize; pos++ {
			colRow := colBuf[(n*planeSize+pos)*colWidth:][:colWidth]
			var sum float32
			for k := range kernelRow {
				sum += kernelRow[k] * colRow[k]
			}
			outPlane[pos] = sum
		}
	}, parallel.DefaultConfig())

	return output
}

// im2col flattens each receptive field of the input into one row of colBuf.
// Out-of-bounds positions read as zero, which realizes the padding.
func im2col(colBuf, inputData []float32, n, c, h, w, kH, kW, hOut, wOut, stride, padding int) {
	colWidth := c * kH * kW
	colIdx := 0

	for batch := 0; batch < n; batch++ {
		inputBatch := inputData[batch*c*h*w:][:c*h*w]
		for outH := 0; outH < hOut; outH++ {
			for outW := 0; outW < wOut; outW++ {
				hStart := outH*stride - padding
				wStart := outW*stride - padding
				bufIdx := colIdx * colWidth

				for ch := 0; ch < c; ch++ {
					inputChan := inputBatch[ch*h*w:][:h*w]
					for kh := 0; kh < kH; kh++ {
						hPos := hStart + kh
						for kw := 0; kw < kW; kw++ {
							wPos := wStart + kw
							if hPos >= 0 && hPos < h && wPos >= 0 && wPos < w {
								colBuf[bufIdx] = inputChan[hPos*w+wPos]
							} else {
								colBuf[bufIdx] = 0
							}
							bufIdx++
						}
					}
				}
				colIdx++
			}
		}
	}
}
