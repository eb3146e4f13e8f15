package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/distill/internal/tensor"
)

func mustTensor(t *testing.T, shape tensor.Shape, values []float32) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.FromFloat32(shape, values)
	require.NoError(t, err)
	return raw
}

func TestLinearForwardHandComputed(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	layer := NewLinear("fc", 2, 3, rng)

	copy(layer.weight.Tensor().AsFloat32(), []float32{
		1, 0,
		0, 1,
		1, 1,
	})
	copy(layer.bias.Tensor().AsFloat32(), []float32{0.5, 0.5, 0.5})

	x := mustTensor(t, tensor.Shape{1, 2}, []float32{1, 2})
	y := layer.Forward(x)

	require.True(t, y.Shape().Equal(tensor.Shape{1, 3}))
	want := []float32{1.5, 2.5, 3.5}
	for i, w := range want {
		assert.InDelta(t, w, y.AsFloat32()[i], 1e-6, "output %d", i)
	}
}

func TestLinearBackwardHandComputed(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	layer := NewLinear("fc", 2, 3, rng)

	copy(layer.weight.Tensor().AsFloat32(), []float32{
		1, 0,
		0, 1,
		1, 1,
	})

	x := mustTensor(t, tensor.Shape{1, 2}, []float32{1, 2})
	layer.Forward(x)

	grads := make(Grads)
	upstream := mustTensor(t, tensor.Shape{1, 3}, []float32{1, 1, 1})
	dx := layer.Backward(upstream, grads)

	wantDW := []float32{1, 2, 1, 2, 1, 2}
	for i, w := range wantDW {
		assert.InDelta(t, w, grads["fc.weight"].AsFloat32()[i], 1e-6, "dW %d", i)
	}

	wantDB := []float32{1, 1, 1}
	for i, w := range wantDB {
		assert.InDelta(t, w, grads["fc.bias"].AsFloat32()[i], 1e-6, "db %d", i)
	}

	wantDX := []float32{2, 2}
	for i, w := range wantDX {
		assert.InDelta(t, w, dx.AsFloat32()[i], 1e-6, "dx %d", i)
	}
}

func TestLinearBackwardAccumulates(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	layer := NewLinear("fc", 2, 2, rng)

	x := mustTensor(t, tensor.Shape{1, 2}, []float32{1, 1})
	upstream := mustTensor(t, tensor.Shape{1, 2}, []float32{1, 1})

	grads := make(Grads)
	layer.Forward(x)
	layer.Backward(upstream, grads)
	first := grads["fc.bias"].Clone()

	layer.Forward(x)
	layer.Backward(upstream, grads)

	for i := range first.AsFloat32() {
		assert.InDelta(t, 2*first.AsFloat32()[i], grads["fc.bias"].AsFloat32()[i], 1e-6,
			"bias grad should accumulate across backward calls")
	}
}

func TestLinearShapePanics(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	layer := NewLinear("fc", 4, 2, rng)

	assert.Panics(t, func() {
		layer.Forward(mustTensor(t, tensor.Shape{1, 3}, make([]float32, 3)))
	})
	assert.Panics(t, func() {
		layer.Backward(mustTensor(t, tensor.Shape{1, 2}, make([]float32, 2)), make(Grads))
	}, "backward before forward should panic")
}

func TestGradsAddAndScale(t *testing.T) {
	g := make(Grads)

	a := mustTensor(t, tensor.Shape{2}, []float32{1, 2})
	g.Add("p", a)
	g.Add("p", a)
	g.Scale(0.5)

	assert.InDelta(t, 1.0, g["p"].AsFloat32()[0], 1e-6)
	assert.InDelta(t, 2.0, g["p"].AsFloat32()[1], 1e-6)

	// The stored gradient must not alias the added tensor.
	a.AsFloat32()[0] = 99
	assert.InDelta(t, 1.0, g["p"].AsFloat32()[0], 1e-6)
}

func TestZeroGrads(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	layer := NewLinear("fc", 3, 2, rng)

	g := ZeroGrads(layer.Parameters())

	require.Len(t, g, 2)
	require.Contains(t, g, "fc.weight")
	require.Contains(t, g, "fc.bias")
	for _, v := range g["fc.weight"].AsFloat32() {
		assert.Zero(t, v)
	}
	assert.True(t, g["fc.weight"].Shape().Equal(tensor.Shape{2, 3}))
}
