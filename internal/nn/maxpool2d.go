package nn

import (
	"github.com/born-ml/distill/internal/backend/cpu"
	"github.com/born-ml/distill/internal/tensor"
)

// MaxPool2D downsamples spatially by taking window maxima.
type MaxPool2D struct {
	kernelSize int
	stride     int

	inputShape tensor.Shape
	indices    []int // argmax positions from the last forward pass
}

// NewMaxPool2D creates a max pooling layer.
func NewMaxPool2D(kernelSize, stride int) *MaxPool2D {
	return &MaxPool2D{kernelSize: kernelSize, stride: stride}
}

// Forward pools the input and records argmax positions for backward.
func (m *MaxPool2D) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	out, indices := cpu.MaxPool2D(input, m.kernelSize, m.stride)
	m.inputShape = input.Shape()
	m.indices = indices
	return out
}

// Backward routes gradients to the recorded argmax positions.
func (m *MaxPool2D) Backward(grad *tensor.RawTensor, _ Grads) *tensor.RawTensor {
	if m.indices == nil {
		panic("maxpool2d: backward called before forward")
	}
	return cpu.MaxPool2DBackward(m.inputShape, grad, m.indices)
}

// Parameters returns nil; pooling has no trainable state.
func (m *MaxPool2D) Parameters() []*Parameter {
	return nil
}
