package nn

import (
	"github.com/born-ml/distill/internal/tensor"
)

// ReLU applies max(0, x) elementwise.
type ReLU struct {
	mask []bool // true where the forward input was positive
}

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU {
	return &ReLU{}
}

// Forward zeroes negative inputs and records the active positions.
func (r *ReLU) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	out := input.Clone()
	data := out.AsFloat32()

	if cap(r.mask) < len(data) {
		r.mask = make([]bool, len(data))
	}
	r.mask = r.mask[:len(data)]

	for i, v := range data {
		if v > 0 {
			r.mask[i] = true
		} else {
			r.mask[i] = false
			data[i] = 0
		}
	}
	return out
}

// Backward zeroes gradients where the forward input was non-positive.
func (r *ReLU) Backward(grad *tensor.RawTensor, _ Grads) *tensor.RawTensor {
	if r.mask == nil {
		panic("relu: backward called before forward")
	}
	out := grad.Clone()
	data := out.AsFloat32()
	for i := range data {
		if !r.mask[i] {
			data[i] = 0
		}
	}
	return out
}

// Parameters returns nil; ReLU has no trainable state.
func (r *ReLU) Parameters() []*Parameter {
	return nil
}
