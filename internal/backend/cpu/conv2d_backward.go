package cpu

import (
	"fmt"

	"github.com/born-ml/distill/internal/parallel"
	"github.com/born-ml/distill/internal/tensor"
)

// Conv2DInputBackward computes the gradient w.r.t. the convolution input.
//
// This is a transposed convolution: each output gradient value is scattered
// back to the input positions its receptive field covered, weighted by the
// kernel.
//
// Reference: "A guide to convolution arithmetic for deep learning"
// (Dumoulin & Visin, 2016).
func Conv2DInputBackward(inputShape tensor.Shape, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	kernelShape := kernel.Shape()
	gradShape := grad.Shape()

	n, cIn, h, w := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	cOut, kH, kW := kernelShape[0], kernelShape[2], kernelShape[3]
	hOut, wOut := gradShape[2], gradShape[3]

	inputGrad := tensor.Zeros(tensor.Shape{n, cIn, h, w}, tensor.Float32)

	if stride == 1 && padding == 0 {
		conv2dInputBackwardStride1NoPad(inputGrad, grad, kernel, n, cIn, h, w, cOut, kH, kW, hOut, wOut)
	} else {
		conv2dInputBackward(inputGrad, grad, kernel, n, cIn, h, w, cOut, kH, kW, hOut, wOut, stride, padding)
	}
	return inputGrad
}

func conv2dInputBackward(
	inputGrad, grad, kernel *tensor.RawTensor,
	n, cIn, h, w, cOut, kH, kW, hOut, wOut, stride, padding int,
) {
	inputGradData := inputGrad.AsFloat32()
	gradData := grad.AsFloat32()
	kernelData := kernel.AsFloat32()

	// Batches write disjoint gradient planes, so the batch loop is safe to
	// run concurrently.
	parallel.For(n, func(batch int) {
		inputGradBatch := inputGradData[batch*cIn*h*w:][:cIn*h*w]
		gradBatch := gradData[batch*cOut*hOut*wOut:][:cOut*hOut*wOut]

		for outH := 0; outH < hOut; outH++ {
			for outW := 0; outW < wOut; outW++ {
				for oc := 0; oc < cOut; oc++ {
					gradVal := gradBatch[oc*hOut*wOut+outH*wOut+outW]
					if gradVal == 0 {
						continue
					}
					kernelOC := kernelData[oc*cIn*kH*kW:][:cIn*kH*kW]

					for ic := 0; ic < cIn; ic++ {
						// Pre-slice per channel: single bounds check inside
						// the kernel loops.
						inputGradIC := inputGradBatch[ic*h*w:][:h*w]
						kernelIC := kernelOC[ic*kH*kW:][:kH*kW]

						for kh := 0; kh < kH; kh++ {
							hPos := outH*stride - padding + kh
							if hPos < 0 || hPos >= h {
								continue
							}
							for kw := 0; kw < kW; kw++ {
								wPos := outW*stride - padding + kw
								if wPos >= 0 && wPos < w {
									inputGradIC[hPos*w+wPos] += gradVal * kernelIC[kh*kW+kw]
								}
							}
						}
					}
				}
			}
		}
	}, parallel.DefaultConfig())
}

// conv2dInputBackwardStride1NoPad specializes the common stride=1, padding=0
// case: positions never leave bounds, so the inner loops drop their checks.
func conv2dInputBackwardStride1NoPad(
	inputGrad, grad, kernel *tensor.RawTensor,
	n, cIn, h, w, cOut, kH, kW, hOut, wOut int,
) {
	inputGradData := inputGrad.AsFloat32()
	gradData := grad.AsFloat32()
	kernelData := kernel.AsFloat32()

	parallel.For(n, func(batch int) {
		inputGradBatch := inputGradData[batch*cIn*h*w:][:cIn*h*w]
		gradBatch := gradData[batch*cOut*hOut*wOut:][:cOut*hOut*wOut]

		for outH := 0; outH < hOut; outH++ {
			for outW := 0; outW < wOut; outW++ {
				for oc := 0; oc < cOut; oc++ {
					gradVal := gradBatch[oc*hOut*wOut+outH*wOut+outW]
					if gradVal == 0 {
						continue
					}
					kernelOC := kernelData[oc*cIn*kH*kW:][:cIn*kH*kW]

					for ic := 0; ic < cIn; ic++ {
						inputGradIC := inputGradBatch[ic*h*w:][:h*w]
						kernelIC := kernelOC[ic*kH*kW:][:kH*kW]

						for kh := 0; kh < kH; kh++ {
							dstRow := inputGradIC[(outH+kh)*w+outW:][:kW]
							kernelRow := kernelIC[kh*kW:][:kW]
							for kw := range kernelRow {
								dstRow[kw] += gradVal * kernelRow[kw]
							}
						}
					}
				}
			}
		}
	}, parallel.DefaultConfig())
}

// Conv2DKernelBackward computes the gradient w.r.t. the convolution kernel.
//
// dK[co, ci, kh, kw] = sum over batch and output positions of
// grad[n, co, oh, ow] * input[n, ci, oh*stride-pad+kh, ow*stride-pad+kw].
func Conv2DKernelBackward(input, grad *tensor.RawTensor, kernelShape tensor.Shape, stride, padding int) *tensor.RawTensor {
	inputShape := input.Shape()
	gradShape := grad.Shape()

	n, cIn, h, w := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	cOut, kH, kW := kernelShape[0], kernelShape[2], kernelShape[3]
	hOut, wOut := gradShape[2], gradShape[3]

	if kernelShape[1] != cIn {
		panic(fmt.Sprintf("conv2d_kernel_backward: kernel channels %d != input channels %d", kernelShape[1], cIn))
	}

	kernelGrad := tensor.Zeros(kernelShape, tensor.Float32)

	inputData := input.AsFloat32()
	gradData := grad.AsFloat32()
	kernelGradData := kernelGrad.AsFloat32()

	// Each output channel owns a disjoint slice of the kernel gradient, so
	// the channel loop parallelizes without atomics.
	parallel.For(cOut, func(oc int) {
		kernelGradOC := kernelGradData[oc*cIn*kH*kW:][:cIn*kH*kW]

		for batch := 0; batch < n; batch++ {
			inputBatch := inputData[batch*cIn*h*w:][:cIn*h*w]
			gradPlane := gradData[batch*cOut*hOut*wOut+oc*hOut*wOut:][:hOut*wOut]

			for outH := 0; outH < hOut; outH++ {
				for outW := 0; outW < wOut; outW++ {
					gradVal := gradPlane[outH*wOut+outW]
					if gradVal == 0 {
						continue
					}

					for ic := 0; ic < cIn; ic++ {
						inputIC := inputBatch[ic*h*w:][:h*w]
						kernelGradIC := kernelGradOC[ic*kH*kW:][:kH*kW]

						for kh := 0; kh < kH; kh++ {
							hPos := outH*stride - padding + kh
							if hPos < 0 || hPos >= h {
								continue
							}
							for kw := 0; kw < kW; kw++ {
								wPos := outW*stride - padding + kw
								if wPos >= 0 && wPos < w {
									kernelGradIC[kh*kW+kw] += gradVal * inputIC[hPos*w+wPos]
								}
							}
						}
					}
				}
			}
		}
	}, parallel.DefaultConfig())

	return kernelGrad
}
