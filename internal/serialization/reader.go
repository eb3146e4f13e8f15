package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/distill/internal/tensor"
)

// BornReader reads .born files. Magic, version, header structure, and the
// data checksum are all verified at open, so a reader that exists is a
// reader over an intact file.
type BornReader struct {
	file       *os.File
	header     Header
	flags      uint32
	dataOffset int64
	dataSize   int64
	closed     bool
}

// NewBornReader opens and validates the file at path.
func NewBornReader(path string) (*BornReader, error) {
	file, err := os.Open(path) //nolint:gosec // G304: checkpoint path comes from caller configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	r := &BornReader{file: file}
	if err := r.parseHeader(); err != nil {
		_ = file.Close() // best effort close on error
		return nil, err
	}
	return r, nil
}

func (r *BornReader) parseHeader() error {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r.file, fixed); err != nil {
		return fmt.Errorf("failed to read fixed header: %w", err)
	}

	if string(fixed[0x00:0x04]) != MagicBytes {
		return ErrInvalidMagic
	}
	version := binary.LittleEndian.Uint32(fixed[0x04:])
	if version != FormatVersion {
		return fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}
	r.flags = binary.LittleEndian.Uint32(fixed[0x08:])
	headerSize := binary.LittleEndian.Uint64(fixed[0x10:])
	r.dataSize = int64(binary.LittleEndian.Uint64(fixed[0x18:])) //nolint:gosec // G115: bounds checked below
	var checksum [ChecksumSize]byte
	copy(checksum[:], fixed[checksumOffset:checksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}
	if r.dataSize < 0 {
		return fmt.Errorf("%w: data size overflows", ErrOutOfBounds)
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r.file, headerJSON); err != nil {
		return fmt.Errorf("failed to read header JSON: %w", err)
	}
	if err := json.Unmarshal(headerJSON, &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}

	if err := validateHeader(&r.header, r.dataSize); err != nil {
		return err
	}

	pos := int64(FixedHeaderSize) + int64(headerSize) //nolint:gosec // G115: capped by MaxHeaderSize
	r.dataOffset = pos + (DataAlignment-pos%DataAlignment)%DataAlignment

	data, err := r.readDataSection()
	if err != nil {
		return err
	}
	return validateChecksum(data, checksum)
}

func (r *BornReader) readDataSection() ([]byte, error) {
	if _, err := r.file.Seek(r.dataOffset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to tensor data: %w", err)
	}
	data := make([]byte, r.dataSize)
	if _, err := io.ReadFull(r.file, data); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	return data, nil
}

// Header returns the parsed file header.
func (r *BornReader) Header() Header {
	return r.header
}

// HasOptimizerState reports whether the file carries optimizer buffers.
func (r *BornReader) HasOptimizerState() bool {
	return r.flags&FlagHasOptimizer != 0
}

// TensorNames returns the names of all tensors in the file.
func (r *BornReader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// ReadStateDict materializes every tensor in the file.
func (r *BornReader) ReadStateDict() (map[string]*tensor.RawTensor, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}

	data, err := r.readDataSection()
	if err != nil {
		return nil, err
	}

	state := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		dtype, ok := stringToDType(meta.DType)
		if !ok {
			return nil, fmt.Errorf("tensor %q: unsupported dtype %q", meta.Name, meta.DType)
		}
		t, err := tensor.NewRaw(tensor.Shape(meta.Shape), dtype)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", meta.Name, err)
		}
		if int64(t.ByteSize()) != meta.Size {
			return nil, fmt.Errorf("tensor %q: shape %v holds %d bytes, header says %d",
				meta.Name, meta.Shape, t.ByteSize(), meta.Size)
		}
		copy(t.Data(), data[meta.Offset:meta.Offset+meta.Size])
		state[meta.Name] = t
	}
	return state, nil
}

// Close closes the underlying file. Safe to call twice.
func (r *BornReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

// Load reads the header and full state dict from path in one call.
func Load(path string) (map[string]*tensor.RawTensor, *Header, error) {
	r, err := NewBornReader(path)
	if err != nil {
		return nil, nil, err
	}
	state, err := r.ReadStateDict()
	if err != nil {
		_ = r.Close()
		return nil, nil, err
	}
	if err := r.Close(); err != nil {
		return nil, nil, err
	}
	h := r.header
	return state, &h, nil
}
