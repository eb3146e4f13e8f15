// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand"

	"github.com/born-ml/distill/internal/tensor"
)

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// DataType represents runtime type information for tensors.
type DataType = tensor.DataType

// Supported data types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Int64   = tensor.Int64
	Uint8   = tensor.Uint8
)

// NewRaw allocates a zero-initialized tensor with the given shape and dtype.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype)
}

// Zeros returns a zero-filled float-or-integer tensor. It panics on an
// invalid shape; use NewRaw when the shape comes from untrusted input.
func Zeros(shape Shape, dtype DataType) *RawTensor {
	return tensor.Zeros(shape, dtype)
}

// Full returns a float32 tensor with every element set to value.
func Full(shape Shape, value float32) *RawTensor {
	return tensor.Full(shape, value)
}

// FromFloat32 builds a float32 tensor from a value slice. The slice is
// copied; len(values) must equal shape.NumElements().
//
// Example:
//
//	t, err := tensor.FromFloat32(tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
func FromFloat32(shape Shape, values []float32) (*RawTensor, error) {
	return tensor.FromFloat32(shape, values)
}

// FromInt64 builds an int64 tensor from a value slice, typically class
// labels of shape [batch].
func FromInt64(shape Shape, values []int64) (*RawTensor, error) {
	return tensor.FromInt64(shape, values)
}

// Randn returns a float32 tensor of standard normal samples drawn from rng.
func Randn(shape Shape, rng *rand.Rand) *RawTensor {
	return tensor.Randn(shape, rng)
}

// Uniform returns a float32 tensor of samples uniform in [low, high).
func Uniform(shape Shape, low, high float32, rng *rand.Rand) *RawTensor {
	return tensor.Uniform(shape, low, high, rng)
}

// Softmax computes softmax along the given axis in a numerically stable way
// (max subtraction before exponentiation).
func Softmax(t *RawTensor, axis int) *RawTensor {
	return tensor.Softmax(t, axis)
}

// LogSoftmax computes log(softmax) along the given axis without forming the
// intermediate probabilities.
func LogSoftmax(t *RawTensor, axis int) *RawTensor {
	return tensor.LogSoftmax(t, axis)
}
