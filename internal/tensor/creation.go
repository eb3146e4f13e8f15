package tensor

import (
	"fmt"
	"math"
	"math/rand"
)

// Zeros creates a zero-filled tensor. Panics on an invalid shape, which
// indicates a programming error rather than a runtime condition.
func Zeros(shape Shape, dtype DataType) *RawTensor {
	raw, err := NewRaw(shape, dtype)
	if err != nil {
		panic(err)
	}
	return raw
}

// Full creates a float32 tensor filled with the given value.
func Full(shape Shape, value float32) *RawTensor {
	t := Zeros(shape, Float32)
	data := t.AsFloat32()
	for i := range data {
		data[i] = value
	}
	return t
}

// FromFloat32 creates a float32 tensor from a slice. The slice is copied.
func FromFloat32(shape Shape, values []float32) (*RawTensor, error) {
	raw, err := NewRaw(shape, Float32)
	if err != nil {
		return nil, err
	}
	if len(values) != raw.NumElements() {
		return nil, errElementCount(shape, len(values))
	}
	copy(raw.AsFloat32(), values)
	return raw, nil
}

// FromInt64 creates an int64 tensor from a slice. The slice is copied.
func FromInt64(shape Shape, values []int64) (*RawTensor, error) {
	raw, err := NewRaw(shape, Int64)
	if err != nil {
		return nil, err
	}
	if len(values) != raw.NumElements() {
		return nil, errElementCount(shape, len(values))
	}
	copy(raw.AsInt64(), values)
	return raw, nil
}

// Randn creates a float32 tensor with values drawn from a standard normal
// distribution using the given source. Box-Muller transform.
// Uses math/rand intentionally: reproducibility matters more than
// cryptographic quality for initialization.
func Randn(shape Shape, rng *rand.Rand) *RawTensor {
	t := Zeros(shape, Float32)
	data := t.AsFloat32()
	for i := 0; i < len(data); i += 2 {
		u1 := rng.Float64()
		u2 := rng.Float64()
		r := math.Sqrt(-2.0 * math.Log(u1+1e-12))
		data[i] = float32(r * math.Cos(2.0*math.Pi*u2))
		if i+1 < len(data) {
			data[i+1] = float32(r * math.Sin(2.0*math.Pi*u2))
		}
	}
	return t
}

// Uniform creates a float32 tensor with values uniformly distributed in
// [low, high) using the given source.
func Uniform(shape Shape, low, high float32, rng *rand.Rand) *RawTensor {
	t := Zeros(shape, Float32)
	data := t.AsFloat32()
	scale := high - low
	for i := range data {
		data[i] = low + scale*rng.Float32()
	}
	return t
}

func errElementCount(shape Shape, got int) error {
	return fmt.Errorf("element count %d does not match shape %s (%d elements)",
		got, shape, shape.NumElements())
}
