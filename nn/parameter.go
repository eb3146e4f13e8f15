// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

// Parameter is a named trainable tensor.
//
// Parameters carry no gradient slot of their own; gradients live in Grads
// maps keyed by parameter name, so the same parameter can accumulate
// gradients from several loss sources in one step.
//
// Example:
//
//	weight := nn.NewParameter("stem.weight", weightTensor)
//	name := weight.Name()   // "stem.weight"
//	w := weight.Tensor()    // the underlying *tensor.RawTensor
type Parameter = nn.Parameter

// NewParameter wraps a tensor as a named trainable parameter.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return nn.NewParameter(name, t)
}

// Grads maps parameter names to gradient tensors. One map holds one loss
// source's gradients; Add accumulates, Scale rescales in place.
type Grads = nn.Grads

// ZeroGrads returns a Grads map with a zero tensor for every parameter.
func ZeroGrads(params []*Parameter) Grads {
	return nn.ZeroGrads(params)
}

// Xavier returns a tensor initialized with Xavier/Glorot uniform samples
// for the given fan-in and fan-out.
func Xavier(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.RawTensor {
	return nn.Xavier(fanIn, fanOut, shape, rng)
}
