// Package serialization implements the .born binary container used to store
// model weights and training checkpoints.
//
// File layout:
//
//	[64-byte fixed header]
//	  0x00  magic "BORN"
//	  0x04  version (uint32 LE)
//	  0x08  flags (uint32 LE)
//	  0x0C  reserved
//	  0x10  JSON header size (uint64 LE)
//	  0x18  data section size (uint64 LE)
//	  0x20  SHA-256 checksum of the data section (32 bytes)
//	[JSON header: tensor index + metadata]
//	[tensor data: raw little-endian bytes, 64-byte aligned]
//
// Tensors are laid out in sorted name order, so writing the same state dict
// twice produces byte-identical files. The checksum covers the data section
// and is always verified on read.
package serialization

import (
	"time"

	"github.com/born-ml/distill/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "BORN"
	FormatVersion   = 2  // checksummed container
	FixedHeaderSize = 64 // magic + version + flags + sizes + checksum
	DataAlignment   = 64 // tensor data starts on a 64-byte boundary
	ChecksumSize    = 32 // SHA-256
	checksumOffset  = 0x20
)

const libraryVersion = "0.1.0"

// Header flag bits.
const (
	FlagHasOptimizer uint32 = 1 << 1 // optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // custom metadata included
)

// Header is the JSON index of a .born file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	LibraryVersion string            `json:"library_version"`
	ModelType      string            `json:"model_type"`
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata"`
	Checkpoint     *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta carries the training state a resumed run needs beyond the
// raw tensors.
type CheckpointMeta struct {
	Epoch        int     `json:"epoch"`         // last completed epoch
	BestAccuracy float64 `json:"best_accuracy"` // best top-1 seen so far
	Method       string  `json:"method"`        // distillation method name
	Optimizer    string  `json:"optimizer"`     // optimizer type for state-key sanity
}

// TensorMeta describes one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // bytes
}

// stringToDType parses the serialized dtype name.
func stringToDType(s string) (tensor.DataType, bool) {
	switch s {
	case "float32":
		return tensor.Float32, true
	case "float64":
		return tensor.Float64, true
	case "int64":
		return tensor.Int64, true
	case "uint8":
		return tensor.Uint8, true
	default:
		return 0, false
	}
}
