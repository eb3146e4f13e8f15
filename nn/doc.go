// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the neural network layer vocabulary: convolution,
// linear, pooling and activation layers with explicit analytic backward
// passes, plus the classification loss and accuracy metrics.
//
// # Overview
//
// There is no autograd tape. Each layer caches its activations during
// Forward and exposes Backward(grad, grads), which accumulates parameter
// gradients into a name-keyed Grads map and returns the gradient with
// respect to its input. Keeping gradients outside the parameters lets a
// caller hold several gradient sets for the same network at once, which is
// what dual-source distillation training needs.
//
// # Basic Usage
//
//	import (
//	    "math/rand"
//
//	    "github.com/born-ml/distill/nn"
//	    "github.com/born-ml/distill/tensor"
//	)
//
//	func main() {
//	    rng := rand.New(rand.NewSource(42))
//	    fc := nn.NewLinear("fc", 64, 10, rng)
//
//	    logits := fc.Forward(input)            // [batch, 10]
//	    loss := nn.CrossEntropy(logits, labels)
//	    _ = loss
//
//	    grads := nn.Grads{}
//	    dLogits := nn.CrossEntropyBackward(logits, labels)
//	    dInput := fc.Backward(dLogits, grads)  // grads now holds "fc.weight", "fc.bias"
//	    _ = dInput
//	}
//
// # Layers
//
//   - Conv2D: 3x3-style convolution, NCHW, explicit stride and padding
//   - Linear: fully connected layer over [batch, features]
//   - MaxPool2D: max pooling with argmax routing in the backward pass
//   - ReLU: rectifier with mask-based backward
//
// All layers are single-goroutine: Backward must follow Forward on the same
// input because of activation caching.
package nn
