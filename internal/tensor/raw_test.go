package tensor

import (
	"math/rand"
	"testing"
)

func TestNewRawZeroInitialized(t *testing.T) {
	raw, err := NewRaw(Shape{2, 3}, Float32)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}

	for i, v := range raw.AsFloat32() {
		if v != 0 {
			t.Errorf("element %d = %v, want 0", i, v)
		}
	}
}

func TestNewRawInvalidShape(t *testing.T) {
	if _, err := NewRaw(Shape{2, 0}, Float32); err == nil {
		t.Error("NewRaw with zero dimension should fail")
	}
	if _, err := NewRaw(Shape{-1, 3}, Float32); err == nil {
		t.Error("NewRaw with negative dimension should fail")
	}
}

func TestRawTensorAsFloat32ZeroCopy(t *testing.T) {
	raw, _ := NewRaw(Shape{3, 2}, Float32)
	data := raw.AsFloat32()

	if len(data) != 6 {
		t.Errorf("AsFloat32 length = %d, want 6", len(data))
	}

	// Modify and verify zero-copy
	data[0] = 42
	if raw.AsFloat32()[0] != 42 {
		t.Error("AsFloat32 should return zero-copy slice")
	}
}

func TestRawTensorAsInt64(t *testing.T) {
	raw, _ := NewRaw(Shape{3, 2}, Int64)
	data := raw.AsInt64()

	if len(data) != 6 {
		t.Errorf("AsInt64 length = %d, want 6", len(data))
	}

	data[0] = 42
	if raw.AsInt64()[0] != 42 {
		t.Error("AsInt64 should return zero-copy slice")
	}
}

func TestRawTensorAsFloat32WrongDType(t *testing.T) {
	raw, _ := NewRaw(Shape{2}, Int64)

	defer func() {
		if recover() == nil {
			t.Error("AsFloat32 on int64 tensor should panic")
		}
	}()
	raw.AsFloat32()
}

func TestRawTensorClone(t *testing.T) {
	raw, _ := NewRaw(Shape{2, 2}, Float32)
	raw.AsFloat32()[0] = 1.5

	clone := raw.Clone()
	clone.AsFloat32()[0] = 99

	if raw.AsFloat32()[0] != 1.5 {
		t.Error("Clone should not share memory with original")
	}
	if !clone.Shape().Equal(raw.Shape()) {
		t.Errorf("Clone shape = %v, want %v", clone.Shape(), raw.Shape())
	}
}

func TestRawTensorZero(t *testing.T) {
	raw, _ := FromFloat32(Shape{4}, []float32{1, 2, 3, 4})
	raw.Zero()
	for i, v := range raw.AsFloat32() {
		if v != 0 {
			t.Errorf("element %d = %v after Zero, want 0", i, v)
		}
	}
}

func TestRawTensorCopyFrom(t *testing.T) {
	src, _ := FromFloat32(Shape{2, 2}, []float32{1, 2, 3, 4})
	dst, _ := NewRaw(Shape{2, 2}, Float32)

	if err := dst.CopyFrom(src); err != nil {
		t.Fatalf("CopyFrom failed: %v", err)
	}
	if dst.AsFloat32()[3] != 4 {
		t.Errorf("dst[3] = %v, want 4", dst.AsFloat32()[3])
	}

	other, _ := NewRaw(Shape{4}, Float32)
	if err := other.CopyFrom(src); err == nil {
		t.Error("CopyFrom with mismatched shape should fail")
	}

	ints, _ := NewRaw(Shape{2, 2}, Int64)
	if err := ints.CopyFrom(src); err == nil {
		t.Error("CopyFrom with mismatched dtype should fail")
	}
}

func TestRawTensorReshape(t *testing.T) {
	raw, _ := FromFloat32(Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})

	reshaped, err := raw.Reshape(Shape{3, 2})
	if err != nil {
		t.Fatalf("Reshape failed: %v", err)
	}
	if !reshaped.Shape().Equal(Shape{3, 2}) {
		t.Errorf("Reshape shape = %v, want [3, 2]", reshaped.Shape())
	}
	if reshaped.AsFloat32()[5] != 6 {
		t.Errorf("reshaped[5] = %v, want 6", reshaped.AsFloat32()[5])
	}

	if _, err := raw.Reshape(Shape{4, 2}); err == nil {
		t.Error("Reshape changing element count should fail")
	}
}

func TestFromFloat32LengthMismatch(t *testing.T) {
	if _, err := FromFloat32(Shape{2, 2}, []float32{1, 2, 3}); err == nil {
		t.Error("FromFloat32 with short slice should fail")
	}
}

func TestRandnDeterministic(t *testing.T) {
	a := Randn(Shape{32}, rand.New(rand.NewSource(7)))
	b := Randn(Shape{32}, rand.New(rand.NewSource(7)))

	for i := range a.AsFloat32() {
		if a.AsFloat32()[i] != b.AsFloat32()[i] {
			t.Fatalf("Randn with same seed diverged at %d", i)
		}
	}

	nonZero := 0
	for _, v := range a.AsFloat32() {
		if v != 0 {
			nonZero++
		}
	}
	if nonZero < 16 {
		t.Errorf("Randn produced %d non-zero values out of 32", nonZero)
	}
}

func TestUniformRange(t *testing.T) {
	u := Uniform(Shape{100}, -0.5, 0.5, rand.New(rand.NewSource(1)))
	for i, v := range u.AsFloat32() {
		if v < -0.5 || v >= 0.5 {
			t.Errorf("element %d = %v outside [-0.5, 0.5)", i, v)
		}
	}
}

func TestShapeComputeStrides(t *testing.T) {
	strides := Shape{2, 3, 4}.ComputeStrides()
	want := []int{12, 4, 1}
	for i := range want {
		if strides[i] != want[i] {
			t.Errorf("stride[%d] = %d, want %d", i, strides[i], want[i])
		}
	}
}
