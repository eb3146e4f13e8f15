package nn

import (
	"github.com/born-ml/distill/internal/tensor"
)

// Parameter is a named trainable tensor.
//
// Parameters do not carry gradients. Gradients live in Grads maps keyed by
// parameter name, so one forward pass can back-propagate several independent
// loss sources without the sources overwriting each other.
type Parameter struct {
	name   string
	tensor *tensor.RawTensor
}

// NewParameter wraps an initialized tensor as a trainable parameter.
// Names must be unique within a network (e.g. "stage1.conv0.weight").
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return &Parameter{name: name, tensor: t}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the underlying tensor.
func (p *Parameter) Tensor() *tensor.RawTensor {
	return p.tensor
}
