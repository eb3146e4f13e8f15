package cpu

import (
	"fmt"

	"github.com/born-ml/distill/internal/parallel"
	"github.com/born-ml/distill/internal/tensor"
)

// MaxPool2D performs 2D max pooling and records the argmax positions.
//
// Input shape:  [N, C, H, W]
// Output shape: [N, C, (H-k)/stride+1, (W-k)/stride+1]
//
// The returned indices hold, for each output position, the flat index of the
// winning input element. The backward pass routes gradients through them.
func MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) (*tensor.RawTensor, []int) {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if input.DType() != tensor.Float32 {
		panic(fmt.Sprintf("maxpool2d: unsupported dtype %s", input.DType()))
	}
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel %d / stride %d", kernelSize, stride))
	}

	n, c, h, w := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	if kernelSize > h || kernelSize > w {
		panic(fmt.Sprintf("maxpool2d: kernel size %d too large for input %dx%d", kernelSize, h, w))
	}

	hOut := (h-kernelSize)/stride + 1
	wOut := (w-kernelSize)/stride + 1

	output := tensor.Zeros(tensor.Shape{n, c, hOut, wOut}, tensor.Float32)
	indices := make([]int, n*c*hOut*wOut)

	inputData := input.AsFloat32()
	outputData := output.AsFloat32()

	parallel.ForBatch(n, c, func(batch, ch int) {
		inPlane := inputData[(batch*c+ch)*h*w:][:h*w]
		planeBase := (batch*c + ch) * h * w
		outBase := (batch*c + ch) * hOut * wOut

		for outH := 0; outH < hOut; outH++ {
			for outW := 0; outW < wOut; outW++ {
				hStart := outH * stride
				wStart := outW * stride

				maxVal := inPlane[hStart*w+wStart]
				maxIdx := hStart*w + wStart
				for kh := 0; kh < kernelSize; kh++ {
					row := (hStart + kh) * w
					for kw := 0; kw < kernelSize; kw++ {
						idx := row + wStart + kw
						if inPlane[idx] > maxVal {
							maxVal = inPlane[idx]
							maxIdx = idx
						}
					}
				}

				outIdx := outBase + outH*wOut + outW
				outputData[outIdx] = maxVal
				indices[outIdx] = planeBase + maxIdx
			}
		}
	}, parallel.DefaultConfig())

	return output, indices
}

// MaxPool2DBackward routes output gradients back to the argmax positions
// recorded by MaxPool2D. Every other input position receives zero.
func MaxPool2DBackward(inputShape tensor.Shape, grad *tensor.RawTensor, indices []int) *tensor.RawTensor {
	if grad.NumElements() != len(indices) {
		panic(fmt.Sprintf("maxpool2d_backward: indices length %d != grad elements %d",
			len(indices), grad.NumElements()))
	}

	inputGrad := tensor.Zeros(inputShape, tensor.Float32)
	inputGradData := inputGrad.AsFloat32()
	gradData := grad.AsFloat32()

	for i, maxPos := range indices {
		inputGradData[maxPos] += gradData[i]
	}
	return inputGrad
}
