package distill

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

func TestAdapterChannelsOnly(t *testing.T) {
	rng := rand.New(rand.NewSource(61))
	a, err := newAdapter("test", 2, 5, 4, 4, rng)
	require.NoError(t, err)

	x := tensor.Randn(tensor.Shape{3, 2, 4, 4}, rng)
	y := a.forward(x)
	assert.Equal(t, tensor.Shape{3, 5, 4, 4}, y.Shape())

	grads := nn.Grads{}
	dx := a.backward(tensor.Randn(y.Shape(), rng), grads)
	assert.Equal(t, x.Shape(), dx.Shape())
	assert.Contains(t, grads, "test.weight")
	assert.Contains(t, grads, "test.bias")
}

func TestAdapterPoolsDown(t *testing.T) {
	rng := rand.New(rand.NewSource(62))
	a, err := newAdapter("pool", 2, 3, 8, 4, rng)
	require.NoError(t, err)

	x := tensor.Randn(tensor.Shape{2, 2, 8, 8}, rng)
	y := a.forward(x)
	assert.Equal(t, tensor.Shape{2, 3, 4, 4}, y.Shape())

	dx := a.backward(tensor.Randn(y.Shape(), rng), nn.Grads{})
	assert.Equal(t, x.Shape(), dx.Shape())
}

func TestAdapterRejectsUpsampling(t *testing.T) {
	rng := rand.New(rand.NewSource(63))

	_, err := newAdapter("up", 2, 3, 4, 8, rng)
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)

	_, err = newAdapter("odd", 2, 3, 6, 4, rng)
	require.ErrorAs(t, err, &ce, "non-divisible sizes cannot pool")
}

func TestStageAdaptersRejectStageCountMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(64))
	student := Layout{StageChannels: []int{2, 3}, StageSizes: []int{4, 2}}
	teacher := Layout{StageChannels: []int{3}, StageSizes: []int{4}}

	_, err := stageAdapters("x", student, teacher, rng)
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
}
