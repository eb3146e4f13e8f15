package serialization

import (
	"errors"
	"fmt"
)

// Sentinel errors for malformed or corrupted files. Wrap with context where
// raised; callers match with errors.Is.
var (
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrTooManyTensors     = errors.New("too many tensors")
	ErrTensorNameTooLong  = errors.New("tensor name too long")
	ErrInvalidTensorName  = errors.New("invalid tensor name")
	ErrNegativeOffset     = errors.New("negative tensor offset")
	ErrOffsetOverlap      = errors.New("tensor offsets overlap")
	ErrOutOfBounds        = errors.New("tensor data out of bounds")
)

// ValidationError reports which tensor(s) failed header validation.
type ValidationError struct {
	Type    error  // sentinel identifying the failure class
	Tensor  string // offending tensor
	Tensor2 string // second tensor for overlap errors
	Details string
}

func (e *ValidationError) Error() string {
	if e.Tensor2 != "" {
		return fmt.Sprintf("%v: %q and %q: %s", e.Type, e.Tensor, e.Tensor2, e.Details)
	}
	if e.Tensor != "" {
		return fmt.Sprintf("%v: %q: %s", e.Type, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%v: %s", e.Type, e.Details)
}

func (e *ValidationError) Unwrap() error { return e.Type }
