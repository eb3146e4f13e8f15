// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/born-ml/distill/internal/nn"
)

// Module is the interface shared by all layers.
//
// Backward must be called after Forward on the same input; layers cache
// activations between the two calls. A module instance serves one goroutine
// at a time.
type Module = nn.Module

// Conv2D is a 2D convolution layer over NCHW tensors with explicit stride
// and zero padding. Its backward pass accumulates "name.weight" and
// "name.bias" gradients and returns the input gradient.
type Conv2D = nn.Conv2D

// NewConv2D creates a convolution layer with Xavier-initialized weights.
//
// Example:
//
//	rng := rand.New(rand.NewSource(1))
//	conv := nn.NewConv2D("stem", 3, 16, 3, 1, 1, rng) // 3x3, stride 1, pad 1
func NewConv2D(name string, inChannels, outChannels, kernelSize, stride, padding int, rng *rand.Rand) *Conv2D {
	return nn.NewConv2D(name, inChannels, outChannels, kernelSize, stride, padding, rng)
}

// Linear is a fully connected layer over [batch, features] tensors.
type Linear = nn.Linear

// NewLinear creates a linear layer with Xavier-initialized weights.
func NewLinear(name string, inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	return nn.NewLinear(name, inFeatures, outFeatures, rng)
}

// MaxPool2D is a max pooling layer. The backward pass routes gradients to
// the argmax positions recorded during Forward.
type MaxPool2D = nn.MaxPool2D

// NewMaxPool2D creates a pooling layer with the given window and stride.
func NewMaxPool2D(kernelSize, stride int) *MaxPool2D {
	return nn.NewMaxPool2D(kernelSize, stride)
}

// ReLU is the rectified linear activation.
type ReLU = nn.ReLU

// NewReLU creates a ReLU activation layer.
func NewReLU() *ReLU {
	return nn.NewReLU()
}
