package distill

import (
	"fmt"

	"github.com/born-ml/distill/internal/tensor"
)

// ShapeMismatchError reports a tensor whose shape an operation cannot
// accept. Losses raise it for teacher/student pairs before any arithmetic
// runs, so a failing step never produces partial gradients; optimizers raise
// it when a gradient does not match its parameter.
type ShapeMismatchError struct {
	Op   string // loss or component that rejected the pair
	Want tensor.Shape
	Got  tensor.Shape
}

// Error implements the error interface.
func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: shape mismatch: want %s, got %s", e.Op, e.Want, e.Got)
}

// MissingGradientError reports a trainable parameter that has no entry in a
// gradient map handed to an optimizer. Silently skipping the parameter would
// freeze it without any signal, so this is always an error.
type MissingGradientError struct {
	Param string
}

// Error implements the error interface.
func (e *MissingGradientError) Error() string {
	return fmt.Sprintf("missing gradient for parameter %q", e.Param)
}

// ConfigurationError reports an invalid value caught at configuration
// resolution time, before any training step runs.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s=%v: %s", e.Field, e.Value, e.Reason)
}
