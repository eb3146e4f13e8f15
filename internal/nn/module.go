// Package nn implements the layer vocabulary of the library: linear and
// convolution layers with explicit analytic backward passes, activation and
// pooling layers, parameter bookkeeping, and the classification loss.
//
// There is no autograd tape. Every layer caches what its backward pass needs
// during Forward and exposes Backward(grad, grads), which accumulates
// parameter gradients into a name-keyed Grads map and returns the gradient
// w.r.t. its input. Keeping gradients out of the parameters themselves lets
// callers hold several gradient sets for the same network at once, which is
// what dual-source distillation training needs.
package nn

import (
	"github.com/born-ml/distill/internal/tensor"
)

// Module is the interface shared by all layers.
//
// Backward must be called after Forward on the same input; layers cache
// activations between the two calls. A module instance serves one goroutine
// at a time.
type Module interface {
	Forward(input *tensor.RawTensor) *tensor.RawTensor

	// Backward takes the gradient w.r.t. the module output, accumulates
	// parameter gradients into grads, and returns the gradient w.r.t. the
	// module input.
	Backward(grad *tensor.RawTensor, grads Grads) *tensor.RawTensor

	Parameters() []*Parameter
}

// Grads maps parameter names to gradient tensors. A network's gradients from
// one loss source live in one map; separate sources (task loss, distillation
// loss) each get their own.
type Grads map[string]*tensor.RawTensor

// Add accumulates delta into the gradient entry for name, allocating it on
// first use. The delta tensor is not retained.
func (g Grads) Add(name string, delta *tensor.RawTensor) {
	if acc, ok := g[name]; ok {
		dst := acc.AsFloat32()
		src := delta.AsFloat32()
		for i := range dst {
			dst[i] += src[i]
		}
		return
	}
	g[name] = delta.Clone()
}

// Scale multiplies every gradient in the map by s.
func (g Grads) Scale(s float32) {
	for _, t := range g {
		data := t.AsFloat32()
		for i := range data {
			data[i] *= s
		}
	}
}

// ZeroGrads returns a map holding a zero gradient for every parameter.
// Used to declare that a loss source deliberately contributes nothing to
// some parameters, as opposed to having forgotten them.
func ZeroGrads(params []*Parameter) Grads {
	g := make(Grads, len(params))
	for _, p := range params {
		g[p.Name()] = tensor.Zeros(p.Tensor().Shape(), tensor.Float32)
	}
	return g
}
