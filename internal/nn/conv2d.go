package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/distill/internal/backend/cpu"
	"github.com/born-ml/distill/internal/tensor"
)

// Conv2D is a 2D convolution layer over NCHW inputs.
type Conv2D struct {
	weight *Parameter // [outChannels, inChannels, k, k]
	bias   *Parameter // [outChannels]

	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	input *tensor.RawTensor // cached for backward
}

// NewConv2D creates a convolution layer with Xavier-initialized weights and
// zero bias.
func NewConv2D(name string, inChannels, outChannels, kernelSize, stride, padding int, rng *rand.Rand) *Conv2D {
	fanIn := inChannels * kernelSize * kernelSize
	fanOut := outChannels * kernelSize * kernelSize
	w := Xavier(fanIn, fanOut, tensor.Shape{outChannels, inChannels, kernelSize, kernelSize}, rng)
	b := tensor.Zeros(tensor.Shape{outChannels}, tensor.Float32)

	return &Conv2D{
		weight:      NewParameter(name+".weight", w),
		bias:        NewParameter(name+".bias", b),
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
	}
}

// Forward convolves the input and adds the per-channel bias.
func (c *Conv2D) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: expected input [N, %d, H, W], got %s", c.inChannels, shape))
	}
	c.input = input

	out := cpu.Conv2D(input, c.weight.Tensor(), c.stride, c.padding)

	outShape := out.Shape()
	planeSize := outShape[2] * outShape[3]
	outData := out.AsFloat32()
	biasData := c.bias.Tensor().AsFloat32()
	for n := 0; n < outShape[0]; n++ {
		for ch := 0; ch < c.outChannels; ch++ {
			plane := outData[(n*c.outChannels+ch)*planeSize:][:planeSize]
			b := biasData[ch]
			for i := range plane {
				plane[i] += b
			}
		}
	}
	return out
}

// Backward accumulates kernel and bias gradients and returns the gradient
// w.r.t. the layer input.
func (c *Conv2D) Backward(grad *tensor.RawTensor, grads Grads) *tensor.RawTensor {
	if c.input == nil {
		panic("conv2d: backward called before forward")
	}

	grads.Add(c.weight.Name(),
		cpu.Conv2DKernelBackward(c.input, grad, c.weight.Tensor().Shape(), c.stride, c.padding))

	// Bias gradient: sum grad over batch and spatial positions per channel.
	gradShape := grad.Shape()
	planeSize := gradShape[2] * gradShape[3]
	biasGrad := tensor.Zeros(tensor.Shape{c.outChannels}, tensor.Float32)
	bg := biasGrad.AsFloat32()
	gd := grad.AsFloat32()
	for n := 0; n < gradShape[0]; n++ {
		for ch := 0; ch < c.outChannels; ch++ {
			plane := gd[(n*c.outChannels+ch)*planeSize:][:planeSize]
			var sum float32
			for _, v := range plane {
				sum += v
			}
			bg[ch] += sum
		}
	}
	grads.Add(c.bias.Name(), biasGrad)

	return cpu.Conv2DInputBackward(c.input.Shape(), c.weight.Tensor(), grad, c.stride, c.padding)
}

// Parameters returns the kernel and bias.
func (c *Conv2D) Parameters() []*Parameter {
	return []*Parameter{c.weight, c.bias}
}
