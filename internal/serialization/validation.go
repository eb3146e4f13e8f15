package serialization

import (
	"sort"
	"strings"
)

// Validation limits. A state dict that trips these is corrupt or hostile,
// not merely large.
const (
	MaxHeaderSize    = 100 * 1024 * 1024
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// validateTensorName rejects names that could be used for path traversal or
// that would corrupt the JSON header.
func validateTensorName(name string) error {
	if name == "" {
		return &ValidationError{Type: ErrInvalidTensorName, Details: "empty name"}
	}
	if len(name) > MaxTensorNameLen {
		return &ValidationError{Type: ErrTensorNameTooLong, Tensor: name[:64] + "...", Details: "name exceeds limit"}
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, "/\\") {
		return &ValidationError{Type: ErrInvalidTensorName, Tensor: name, Details: "path separators not allowed"}
	}
	if strings.ContainsRune(name, 0) {
		return &ValidationError{Type: ErrInvalidTensorName, Tensor: name, Details: "null byte in name"}
	}
	return nil
}

// validateTensorOffsets checks that every tensor lies inside the data
// section and that no two tensors overlap.
func validateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{Type: ErrTooManyTensors, Details: "tensor count exceeds limit"}
	}

	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	var prev *TensorMeta
	for i := range sorted {
		t := &sorted[i]
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{Type: ErrNegativeOffset, Tensor: t.Name, Details: "offset or size below zero"}
		}
		end := t.Offset + t.Size
		if end < t.Offset || end > dataSize {
			return &ValidationError{Type: ErrOutOfBounds, Tensor: t.Name, Details: "tensor extends past data section"}
		}
		if prev != nil && t.Offset < prev.Offset+prev.Size {
			return &ValidationError{Type: ErrOffsetOverlap, Tensor: prev.Name, Tensor2: t.Name, Details: "data regions intersect"}
		}
		prev = t
	}
	return nil
}

// validateHeader runs every structural check on a parsed header.
func validateHeader(h *Header, dataSize int64) error {
	for i := range h.Tensors {
		if err := validateTensorName(h.Tensors[i].Name); err != nil {
			return err
		}
	}
	return validateTensorOffsets(h.Tensors, dataSize)
}
