// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package distill

import (
	"github.com/born-ml/distill/internal/distill"
)

// ShapeMismatchError reports incompatible tensor geometry between teacher
// and student, discovered at construction or on the first batch.
type ShapeMismatchError = distill.ShapeMismatchError

// MissingGradientError reports a trainable parameter that received no
// gradient during a backward pass.
type MissingGradientError = distill.MissingGradientError

// ConfigurationError reports an invalid configuration field. Config
// validation across the library returns this type.
type ConfigurationError = distill.ConfigurationError
