// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

// CrossEntropy returns the mean cross-entropy between logits [batch, classes]
// and int64 targets [batch]. Computed via log-softmax, so large logits do not
// overflow.
func CrossEntropy(logits, targets *tensor.RawTensor) float32 {
	return nn.CrossEntropy(logits, targets)
}

// CrossEntropyBackward returns dLoss/dLogits for the mean cross-entropy:
// (softmax - onehot) / batch.
func CrossEntropyBackward(logits, targets *tensor.RawTensor) *tensor.RawTensor {
	return nn.CrossEntropyBackward(logits, targets)
}

// Accuracy returns top-1 accuracy as a percentage in [0, 100].
func Accuracy(logits, targets *tensor.RawTensor) float32 {
	return nn.Accuracy(logits, targets)
}

// TopKAccuracy returns top-k accuracy as a percentage in [0, 100]. It panics
// if k is outside [1, classes].
func TopKAccuracy(logits, targets *tensor.RawTensor, k int) float32 {
	return nn.TopKAccuracy(logits, targets, k)
}
