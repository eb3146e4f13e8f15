package serialization

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/born-ml/distill/internal/tensor"
)

func floatTensor(t *testing.T, shape tensor.Shape, values []float32) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.FromFloat32(shape, values)
	if err != nil {
		t.Fatalf("FromFloat32: %v", err)
	}
	return raw
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "student.born")

	weights := floatTensor(t, tensor.Shape{2, 3}, []float32{1, -2, 3.5, 0, 0.25, -0.125})
	labels, err := tensor.FromInt64(tensor.Shape{4}, []int64{3, 1, 4, 1})
	if err != nil {
		t.Fatalf("FromInt64: %v", err)
	}
	mask, err := tensor.NewRaw(tensor.Shape{5}, tensor.Uint8)
	if err != nil {
		t.Fatalf("NewRaw: %v", err)
	}
	copy(mask.Data(), []byte{0, 1, 1, 0, 1})

	state := map[string]*tensor.RawTensor{
		"fc.weight": weights,
		"labels":    labels,
		"mask":      mask,
	}
	header := &Header{
		ModelType: "cifarnet8",
		Metadata:  map[string]string{"dataset": "cifar10"},
		Checkpoint: &CheckpointMeta{
			Epoch:        17,
			BestAccuracy: 0.8125,
			Method:       "hint",
			Optimizer:    "dot",
		},
	}

	if err := Save(path, state, header); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 tensors, got %d", len(loaded))
	}
	if !bytes.Equal(loaded["fc.weight"].Data(), weights.Data()) {
		t.Error("fc.weight bytes changed across round trip")
	}
	if vals := loaded["labels"].AsInt64(); vals[2] != 4 {
		t.Errorf("labels[2] = %d, want 4", vals[2])
	}
	if vals := loaded["mask"].AsUint8(); vals[1] != 1 || vals[3] != 0 {
		t.Errorf("mask = %v", vals)
	}
	if !loaded["fc.weight"].Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("fc.weight shape = %v", loaded["fc.weight"].Shape())
	}

	if got.FormatVersion != FormatVersion {
		t.Errorf("format version = %d", got.FormatVersion)
	}
	if got.LibraryVersion == "" || got.CreatedAt.IsZero() {
		t.Error("library version or timestamp missing")
	}
	if got.ModelType != "cifarnet8" || got.Metadata["dataset"] != "cifar10" {
		t.Errorf("header fields lost: %+v", got)
	}
	cp := got.Checkpoint
	if cp == nil || cp.Epoch != 17 || cp.BestAccuracy != 0.8125 || cp.Method != "hint" || cp.Optimizer != "dot" {
		t.Errorf("checkpoint meta lost: %+v", cp)
	}
}

func TestDeterministicOutput(t *testing.T) {
	dir := t.TempDir()
	state := map[string]*tensor.RawTensor{
		"b": floatTensor(t, tensor.Shape{2}, []float32{1, 2}),
		"a": floatTensor(t, tensor.Shape{3}, []float32{3, 4, 5}),
		"c": floatTensor(t, tensor.Shape{1}, []float32{6}),
	}
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	header := &Header{ModelType: "cifarnet8", CreatedAt: created}

	pathA := filepath.Join(dir, "a.born")
	pathB := filepath.Join(dir, "b.born")
	if err := Save(pathA, state, header); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := Save(pathB, state, header); err != nil {
		t.Fatalf("Save: %v", err)
	}

	bytesA, err := os.ReadFile(pathA)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	bytesB, err := os.ReadFile(pathB)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(bytesA, bytesB) {
		t.Error("same state dict produced different files")
	}

	r, err := NewBornReader(pathA)
	if err != nil {
		t.Fatalf("NewBornReader: %v", err)
	}
	defer func() { _ = r.Close() }()
	names := r.TensorNames()
	if names[0] != "a" || names[1] != "b" || names[2] != "c" {
		t.Errorf("tensors not in sorted order: %v", names)
	}
}

func TestDataSectionAlignment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aligned.born")
	state := map[string]*tensor.RawTensor{
		"w": floatTensor(t, tensor.Shape{3}, []float32{1, 2, 3}),
	}
	if err := Save(path, state, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	headerSize := binary.LittleEndian.Uint64(raw[0x10:])
	dataSize := binary.LittleEndian.Uint64(raw[0x18:])

	pos := int64(FixedHeaderSize) + int64(headerSize)
	dataOffset := pos + (DataAlignment-pos%DataAlignment)%DataAlignment
	if dataOffset%DataAlignment != 0 {
		t.Errorf("data offset %d not aligned", dataOffset)
	}
	if int64(len(raw)) != dataOffset+int64(dataSize) {
		t.Errorf("file size %d, want %d", len(raw), dataOffset+int64(dataSize))
	}
	if got := binary.LittleEndian.Uint32(raw[0x04:]); got != FormatVersion {
		t.Errorf("version field = %d", got)
	}
	if string(raw[0x00:0x04]) != MagicBytes {
		t.Errorf("magic = %q", raw[0x00:0x04])
	}
}

func TestOptimizerFlag(t *testing.T) {
	dir := t.TempDir()

	withOpt := filepath.Join(dir, "with.born")
	state := map[string]*tensor.RawTensor{
		"fc.weight":                 floatTensor(t, tensor.Shape{2}, []float32{1, 2}),
		"optimizer.task_velocity.0": floatTensor(t, tensor.Shape{2}, []float32{0, 0}),
	}
	if err := Save(withOpt, state, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	r, err := NewBornReader(withOpt)
	if err != nil {
		t.Fatalf("NewBornReader: %v", err)
	}
	if !r.HasOptimizerState() {
		t.Error("optimizer flag not set")
	}
	_ = r.Close()

	withoutOpt := filepath.Join(dir, "without.born")
	if err := Save(withoutOpt, map[string]*tensor.RawTensor{
		"fc.weight": floatTensor(t, tensor.Shape{2}, []float32{1, 2}),
	}, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	r2, err := NewBornReader(withoutOpt)
	if err != nil {
		t.Fatalf("NewBornReader: %v", err)
	}
	if r2.HasOptimizerState() {
		t.Error("optimizer flag set on weights-only file")
	}
	_ = r2.Close()
}

func TestChecksumDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.born")
	state := map[string]*tensor.RawTensor{
		"w": floatTensor(t, tensor.Shape{4}, []float32{1, 2, 3, 4}),
	}
	if err := Save(path, state, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	raw[len(raw)-1] ^= 0xFF // data section sits at the end of the file
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = NewBornReader(path)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected checksum mismatch, got %v", err)
	}
}

func TestRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.born")
	state := map[string]*tensor.RawTensor{
		"w": floatTensor(t, tensor.Shape{1}, []float32{1}),
	}
	if err := Save(path, state, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, _ := os.ReadFile(path)
	copy(raw[0:4], "JUNK")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := NewBornReader(path)
	if !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("expected invalid magic, got %v", err)
	}
}

func TestRejectsUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v7.born")
	state := map[string]*tensor.RawTensor{
		"w": floatTensor(t, tensor.Shape{1}, []float32{1}),
	}
	if err := Save(path, state, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, _ := os.ReadFile(path)
	binary.LittleEndian.PutUint32(raw[0x04:], 7)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := NewBornReader(path)
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected unsupported version, got %v", err)
	}
}

func TestRejectsOversizedHeaderField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.born")
	state := map[string]*tensor.RawTensor{
		"w": floatTensor(t, tensor.Shape{1}, []float32{1}),
	}
	if err := Save(path, state, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, _ := os.ReadFile(path)
	binary.LittleEndian.PutUint64(raw[0x10:], uint64(MaxHeaderSize)+1)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := NewBornReader(path)
	if !errors.Is(err, ErrHeaderTooLarge) {
		t.Errorf("expected header too large, got %v", err)
	}
}

func TestRejectsTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.born")
	state := map[string]*tensor.RawTensor{
		"w": floatTensor(t, tensor.Shape{8}, make([]float32, 8)),
	}
	if err := Save(path, state, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, _ := os.ReadFile(path)
	if err := os.WriteFile(path, raw[:len(raw)-10], 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := NewBornReader(path); err == nil {
		t.Error("expected error for truncated file")
	}
}

func TestWriterRejectsUnsafeTensorNames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"", "../escape", "dir/weight", "nul\x00byte"} {
		state := map[string]*tensor.RawTensor{
			name: floatTensor(t, tensor.Shape{1}, []float32{1}),
		}
		err := Save(filepath.Join(dir, "out.born"), state, nil)
		if !errors.Is(err, ErrInvalidTensorName) {
			t.Errorf("name %q: expected invalid name error, got %v", name, err)
		}
	}
}

// writeCraftedFile assembles a syntactically valid container around an
// arbitrary JSON header, so reader validation can be exercised on inputs the
// writer refuses to produce.
func writeCraftedFile(t *testing.T, path string, header Header, data []byte) {
	t.Helper()
	headerJSON, err := json.Marshal(&header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	checksum := sha256.Sum256(data)

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0x00:0x04], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[0x04:], FormatVersion)
	binary.LittleEndian.PutUint64(fixed[0x10:], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[0x18:], uint64(len(data)))
	copy(fixed[checksumOffset:], checksum[:])

	buf := append([]byte{}, fixed...)
	buf = append(buf, headerJSON...)
	if pad := (DataAlignment - len(buf)%DataAlignment) % DataAlignment; pad > 0 {
		buf = append(buf, make([]byte, pad)...)
	}
	buf = append(buf, data...)
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		t.Fatalf("write crafted file: %v", err)
	}
}

func TestRejectsOverlappingTensors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlap.born")
	writeCraftedFile(t, path, Header{
		FormatVersion: FormatVersion,
		Tensors: []TensorMeta{
			{Name: "a", DType: "float32", Shape: []int{2}, Offset: 0, Size: 8},
			{Name: "b", DType: "float32", Shape: []int{2}, Offset: 4, Size: 8},
		},
	}, make([]byte, 12))

	_, err := NewBornReader(path)
	if !errors.Is(err, ErrOffsetOverlap) {
		t.Errorf("expected overlap error, got %v", err)
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		if verr.Tensor != "a" || verr.Tensor2 != "b" {
			t.Errorf("overlap names = %q, %q", verr.Tensor, verr.Tensor2)
		}
	} else {
		t.Errorf("expected ValidationError, got %T", err)
	}
}

func TestRejectsOutOfBoundsTensor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oob.born")
	writeCraftedFile(t, path, Header{
		FormatVersion: FormatVersion,
		Tensors: []TensorMeta{
			{Name: "a", DType: "float32", Shape: []int{4}, Offset: 0, Size: 16},
		},
	}, make([]byte, 8))

	_, err := NewBornReader(path)
	if !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("expected out of bounds error, got %v", err)
	}
}

func TestRejectsNegativeOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neg.born")
	writeCraftedFile(t, path, Header{
		FormatVersion: FormatVersion,
		Tensors: []TensorMeta{
			{Name: "a", DType: "float32", Shape: []int{1}, Offset: -4, Size: 4},
		},
	}, make([]byte, 4))

	_, err := NewBornReader(path)
	if !errors.Is(err, ErrNegativeOffset) {
		t.Errorf("expected negative offset error, got %v", err)
	}
}

func TestRejectsUnknownDType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dtype.born")
	writeCraftedFile(t, path, Header{
		FormatVersion: FormatVersion,
		Tensors: []TensorMeta{
			{Name: "a", DType: "complex128", Shape: []int{1}, Offset: 0, Size: 16},
		},
	}, make([]byte, 16))

	r, err := NewBornReader(path)
	if err != nil {
		t.Fatalf("NewBornReader: %v", err)
	}
	defer func() { _ = r.Close() }()

	_, err = r.ReadStateDict()
	if err == nil || !strings.Contains(err.Error(), "unsupported dtype") {
		t.Errorf("expected dtype error, got %v", err)
	}
}

func TestRejectsSizeShapeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mismatch.born")
	writeCraftedFile(t, path, Header{
		FormatVersion: FormatVersion,
		Tensors: []TensorMeta{
			{Name: "a", DType: "float32", Shape: []int{3}, Offset: 0, Size: 8},
		},
	}, make([]byte, 8))

	r, err := NewBornReader(path)
	if err != nil {
		t.Fatalf("NewBornReader: %v", err)
	}
	defer func() { _ = r.Close() }()

	if _, err := r.ReadStateDict(); err == nil {
		t.Error("expected error for size/shape mismatch")
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := NewBornReader(filepath.Join(t.TempDir(), "nope.born")); err == nil {
		t.Error("expected error for missing file")
	}
}
