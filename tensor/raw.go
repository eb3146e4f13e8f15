// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/distill/internal/tensor"
)

// RawTensor is the low-level tensor representation.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType(), Strides()
//   - Type-safe data access via AsFloat32(), AsInt64(), etc.
//   - Deep copies via Clone() and in-place copies via CopyFrom()
//   - Zero-copy reshapes via Reshape()
//
// The accessor slices alias the underlying buffer; writing through them
// mutates the tensor.
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32)
//	data := raw.AsFloat32() // aliases the buffer
//	data[0] = 1.5
//	clone := raw.Clone()    // independent copy
type RawTensor = tensor.RawTensor
