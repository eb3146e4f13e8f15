package cpu

import (
	"fmt"

	"github.com/born-ml/distill/internal/parallel"
	"github.com/born-ml/distill/internal/tensor"
)

// AdaptiveAvgPool2D averages non-overlapping blocks so that the spatial
// output is exactly [outH, outW]. The input spatial dimensions must be
// divisible by the output dimensions; the feature pyramids this library
// builds always pool between power-of-two sizes.
func AdaptiveAvgPool2D(input *tensor.RawTensor, outH, outW int) *tensor.RawTensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("avgpool2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	n, c, h, w := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	if outH <= 0 || outW <= 0 || h%outH != 0 || w%outW != 0 {
		panic(fmt.Sprintf("avgpool2d: cannot pool %dx%d to %dx%d", h, w, outH, outW))
	}

	fH, fW := h/outH, w/outW
	inv := 1.0 / float32(fH*fW)

	output := tensor.Zeros(tensor.Shape{n, c, outH, outW}, tensor.Float32)
	inputData := input.AsFloat32()
	outputData := output.AsFloat32()

	parallel.ForBatch(n, c, func(batch, ch int) {
		inPlane := inputData[(batch*c+ch)*h*w:][:h*w]
		outPlane := outputData[(batch*c+ch)*outH*outW:][:outH*outW]

		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				var sum float32
				for kh := 0; kh < fH; kh++ {
					row := (oh*fH + kh) * w
					for kw := 0; kw < fW; kw++ {
						sum += inPlane[row+ow*fW+kw]
					}
				}
				outPlane[oh*outW+ow] = sum * inv
			}
		}
	}, parallel.DefaultConfig())

	return output
}

// AdaptiveAvgPool2DBackward spreads each output gradient uniformly over the
// block it was averaged from.
func AdaptiveAvgPool2DBackward(inputShape tensor.Shape, grad *tensor.RawTensor) *tensor.RawTensor {
	gradShape := grad.Shape()
	n, c, h, w := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	outH, outW := gradShape[2], gradShape[3]

	fH, fW := h/outH, w/outW
	inv := 1.0 / float32(fH*fW)

	inputGrad := tensor.Zeros(inputShape, tensor.Float32)
	inputGradData := inputGrad.AsFloat32()
	gradData := grad.AsFloat32()

	parallel.ForBatch(n, c, func(batch, ch int) {
		inPlane := inputGradData[(batch*c+ch)*h*w:][:h*w]
		gradPlane := gradData[(batch*c+ch)*outH*outW:][:outH*outW]

		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				g := gradPlane[oh*outW+ow] * inv
				for kh := 0; kh < fH; kh++ {
					row := (oh*fH + kh) * w
					for kw := 0; kw < fW; kw++ {
						inPlane[row+ow*fW+kw] += g
					}
				}
			}
		}
	}, parallel.DefaultConfig())

	return inputGrad
}

// GlobalAvgPool reduces [N, C, H, W] to [N, C] by averaging each plane.
func GlobalAvgPool(input *tensor.RawTensor) *tensor.RawTensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("global_avgpool: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	n, c, h, w := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	inv := 1.0 / float32(h*w)

	output := tensor.Zeros(tensor.Shape{n, c}, tensor.Float32)
	inputData := input.AsFloat32()
	outputData := output.AsFloat32()

	parallel.ForBatch(n, c, func(batch, ch int) {
		plane := inputData[(batch*c+ch)*h*w:][:h*w]
		var sum float32
		for _, v := range plane {
			sum += v
		}
		outputData[batch*c+ch] = sum * inv
	}, parallel.DefaultConfig())

	return output
}

// GlobalAvgPoolBackward spreads each pooled gradient uniformly over its
// source plane.
func GlobalAvgPoolBackward(inputShape tensor.Shape, grad *tensor.RawTensor) *tensor.RawTensor {
	n, c, h, w := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	inv := 1.0 / float32(h*w)

	inputGrad := tensor.Zeros(inputShape, tensor.Float32)
	inputGradData := inputGrad.AsFloat32()
	gradData := grad.AsFloat32()

	parallel.ForBatch(n, c, func(batch, ch int) {
		g := gradData[batch*c+ch] * inv
		plane := inputGradData[(batch*c+ch)*h*w:][:h*w]
		for i := range plane {
			plane[i] = g
		}
	}, parallel.DefaultConfig())

	return inputGrad
}

// UpsampleNearest repeats each input element into a scale x scale block.
// [N, C, H, W] becomes [N, C, H*scale, W*scale].
func UpsampleNearest(input *tensor.RawTensor, scale int) *tensor.RawTensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("upsample: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if scale <= 0 {
		panic(fmt.Sprintf("upsample: invalid scale %d", scale))
	}
	n, c, h, w := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	oh, ow := h*scale, w*scale

	output := tensor.Zeros(tensor.Shape{n, c, oh, ow}, tensor.Float32)
	inputData := input.AsFloat32()
	outputData := output.AsFloat32()

	parallel.ForBatch(n, c, func(batch, ch int) {
		inPlane := inputData[(batch*c+ch)*h*w:][:h*w]
		outPlane := outputData[(batch*c+ch)*oh*ow:][:oh*ow]

		for y := 0; y < oh; y++ {
			srcRow := inPlane[(y/scale)*w:][:w]
			dstRow := outPlane[y*ow:][:ow]
			for x := 0; x < ow; x++ {
				dstRow[x] = srcRow[x/scale]
			}
		}
	}, parallel.DefaultConfig())

	return output
}

// UpsampleNearestBackward sums each scale x scale gradient block back into
// the source element.
func UpsampleNearestBackward(grad *tensor.RawTensor, scale int) *tensor.RawTensor {
	gradShape := grad.Shape()
	n, c, oh, ow := gradShape[0], gradShape[1], gradShape[2], gradShape[3]
	h, w := oh/scale, ow/scale

	inputGrad := tensor.Zeros(tensor.Shape{n, c, h, w}, tensor.Float32)
	inputGradData := inputGrad.AsFloat32()
	gradData := grad.AsFloat32()

	parallel.ForBatch(n, c, func(batch, ch int) {
		inPlane := inputGradData[(batch*c+ch)*h*w:][:h*w]
		gradPlane := gradData[(batch*c+ch)*oh*ow:][:oh*ow]

		for y := 0; y < oh; y++ {
			srcRow := gradPlane[y*ow:][:ow]
			dstRow := inPlane[(y/scale)*w:][:w]
			for x := 0; x < ow; x++ {
				dstRow[x/scale] += srcRow[x]
			}
		}
	}, parallel.DefaultConfig())

	return inputGrad
}
