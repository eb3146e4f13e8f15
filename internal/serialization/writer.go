package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/born-ml/distill/internal/tensor"
)

// BornWriter writes .born files.
type BornWriter struct {
	file   *os.File
	closed bool
}

// NewBornWriter creates or truncates the file at path.
func NewBornWriter(path string) (*BornWriter, error) {
	f, err := os.Create(path) //nolint:gosec // G304: checkpoint path comes from caller configuration
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &BornWriter{file: f}, nil
}

// WriteStateDict writes the full container: fixed header, JSON index,
// alignment padding, then tensor data in sorted name order. The caller's
// header supplies ModelType, Metadata, and Checkpoint; format fields are
// filled in here.
func (w *BornWriter) WriteStateDict(state map[string]*tensor.RawTensor, header *Header) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}
	if header == nil {
		header = &Header{}
	}

	names := make([]string, 0, len(state))
	for name := range state {
		if err := validateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	metas := make([]TensorMeta, 0, len(names))
	var dataSize int64
	hasOptimizer := false
	for _, name := range names {
		t := state[name]
		size := int64(t.ByteSize())
		metas = append(metas, TensorMeta{
			Name:   name,
			DType:  t.DType().String(),
			Shape:  append([]int(nil), t.Shape()...),
			Offset: dataSize,
			Size:   size,
		})
		dataSize += size
		if strings.HasPrefix(name, "optimizer.") {
			hasOptimizer = true
		}
	}

	h := *header
	h.FormatVersion = FormatVersion
	h.LibraryVersion = libraryVersion
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	h.Tensors = metas

	headerJSON, err := json.Marshal(&h)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, len(headerJSON))
	}

	data := make([]byte, 0, dataSize)
	for _, name := range names {
		data = append(data, state[name].Data()...)
	}
	checksum := computeChecksum(data)

	var flags uint32
	if hasOptimizer {
		flags |= FlagHasOptimizer
	}
	if len(h.Metadata) > 0 {
		flags |= FlagHasMetadata
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0x00:0x04], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[0x04:], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[0x08:], flags)
	binary.LittleEndian.PutUint64(fixed[0x10:], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[0x18:], uint64(dataSize))
	copy(fixed[checksumOffset:checksumOffset+ChecksumSize], checksum[:])

	if _, err := w.file.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.file.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	pos := FixedHeaderSize + len(headerJSON)
	if pad := (DataAlignment - pos%DataAlignment) % DataAlignment; pad > 0 {
		if _, err := w.file.Write(make([]byte, pad)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}
	if _, err := w.file.Write(data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// Close closes the underlying file. Safe to call twice.
func (w *BornWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

// Save writes state to path in one call.
func Save(path string, state map[string]*tensor.RawTensor, header *Header) error {
	w, err := NewBornWriter(path)
	if err != nil {
		return err
	}
	if err := w.WriteStateDict(state, header); err != nil {
		_ = w.Close() // best-effort close, the write error matters more
		return err
	}
	return w.Close()
}
