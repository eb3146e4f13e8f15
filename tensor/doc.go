// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense tensor type used throughout the distill
// library.
//
// # Overview
//
// RawTensor is a shape-tagged, contiguous, row-major buffer. This package
// provides:
//   - Typed construction (NewRaw, Zeros, Full, FromFloat32, FromInt64)
//   - Seeded random initialization (Randn, Uniform)
//   - Type-safe data access (AsFloat32, AsInt64, ...)
//   - Numerically stable Softmax and LogSoftmax along any axis
//
// # Basic Usage
//
//	import "github.com/born-ml/distill/tensor"
//
//	func main() {
//	    x, _ := tensor.FromFloat32(tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
//	    y := tensor.Zeros(tensor.Shape{2, 3}, tensor.Float32)
//
//	    _ = y.CopyFrom(x)       // same shape and dtype required
//	    probs := tensor.Softmax(x, 1)
//	    rows := probs.AsFloat32()
//	    _ = rows
//	}
//
// # Supported Data Types
//
// The DataType enum covers the types the training pipeline needs:
//   - Float32 (parameters, activations, gradients)
//   - Float64 (metric accumulation)
//   - Int64 (class labels)
//   - Uint8 (raw image bytes)
//
// All training math is float32; the other types exist for labels, images and
// bookkeeping.
package tensor
