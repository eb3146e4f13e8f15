package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/distill/internal/backend/cpu"
	"github.com/born-ml/distill/internal/tensor"
)

// Linear is a fully connected layer: y = x @ Wᵀ + b.
//
// The weight is stored [outFeatures, inFeatures] so each output unit's
// weights are contiguous.
type Linear struct {
	weight *Parameter
	bias   *Parameter

	in, out int
	input   *tensor.RawTensor // cached for backward
}

// NewLinear creates a linear layer with Xavier-initialized weights and zero
// bias. The name prefixes the parameter names ("<name>.weight").
func NewLinear(name string, inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	w := Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, rng)
	b := tensor.Zeros(tensor.Shape{outFeatures}, tensor.Float32)

	return &Linear{
		weight: NewParameter(name+".weight", w),
		bias:   NewParameter(name+".bias", b),
		in:     inFeatures,
		out:    outFeatures,
	}
}

// Forward computes y = x @ Wᵀ + b for x of shape [batch, inFeatures].
func (l *Linear) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	shape := input.Shape()
	if len(shape) != 2 || shape[1] != l.in {
		panic(fmt.Sprintf("linear: expected input [batch, %d], got %s", l.in, shape))
	}
	l.input = input

	out := cpu.MatMulTransposeB(input, l.weight.Tensor())

	outData := out.AsFloat32()
	biasData := l.bias.Tensor().AsFloat32()
	for row := 0; row < shape[0]; row++ {
		dst := outData[row*l.out:][:l.out]
		for j := range dst {
			dst[j] += biasData[j]
		}
	}
	return out
}

// Backward accumulates dW = gradᵀ @ x and db = column sums of grad, and
// returns dx = grad @ W.
func (l *Linear) Backward(grad *tensor.RawTensor, grads Grads) *tensor.RawTensor {
	if l.input == nil {
		panic("linear: backward called before forward")
	}
	gradShape := grad.Shape()
	if len(gradShape) != 2 || gradShape[1] != l.out {
		panic(fmt.Sprintf("linear: expected grad [batch, %d], got %s", l.out, gradShape))
	}

	grads.Add(l.weight.Name(), cpu.MatMulTransposeA(grad, l.input))

	biasGrad := tensor.Zeros(tensor.Shape{l.out}, tensor.Float32)
	bg := biasGrad.AsFloat32()
	gd := grad.AsFloat32()
	for row := 0; row < gradShape[0]; row++ {
		src := gd[row*l.out:][:l.out]
		for j := range src {
			bg[j] += src[j]
		}
	}
	grads.Add(l.bias.Name(), biasGrad)

	return cpu.MatMul(grad, l.weight.Tensor())
}

// Parameters returns the weight and bias.
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}
