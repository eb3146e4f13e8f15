package zoo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/distill/internal/backend/cpu"
	"github.com/born-ml/distill/internal/distill"
	"github.com/born-ml/distill/internal/tensor"
)

func testNet(t *testing.T, seed int64) *ConvNet {
	t.Helper()
	net, err := NewConvNet(ConvNetConfig{Width: 2, NumClasses: 3, InputSize: 8, Seed: seed})
	require.NoError(t, err)
	return net
}

func testBatch(seed int64, n int) *tensor.RawTensor {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic test data
	return tensor.Randn(tensor.Shape{n, 3, 8, 8}, rng)
}

func onesLike(shape tensor.Shape) *tensor.RawTensor {
	return tensor.Full(shape, 1)
}

func TestConvNetOutputShapes(t *testing.T) {
	net := testNet(t, 1)
	out := net.Forward(testBatch(7, 2), true)

	require.True(t, out.Logits.Shape().Equal(tensor.Shape{2, 3}), "logits shape %s", out.Logits.Shape())
	require.Len(t, out.Features, 3)
	assert.True(t, out.Features[0].Shape().Equal(tensor.Shape{2, 2, 8, 8}), "stage 1 shape %s", out.Features[0].Shape())
	assert.True(t, out.Features[1].Shape().Equal(tensor.Shape{2, 4, 4, 4}), "stage 2 shape %s", out.Features[1].Shape())
	assert.True(t, out.Features[2].Shape().Equal(tensor.Shape{2, 8, 2, 2}), "stage 3 shape %s", out.Features[2].Shape())
	require.True(t, out.Embedding.Shape().Equal(tensor.Shape{2, 8}), "embedding shape %s", out.Embedding.Shape())

	// The embedding is the spatial mean of the rectified last tap.
	tap := out.Features[2].AsFloat32()
	emb := out.Embedding.AsFloat32()
	for i := 0; i < 2*8; i++ {
		var mean float32
		for j := 0; j < 4; j++ {
			if v := tap[i*4+j]; v > 0 {
				mean += v
			}
		}
		mean /= 4
		assert.InDelta(t, mean, emb[i], 1e-6, "embedding %d", i)
	}
}

func TestConvNetForwardWithoutFeatures(t *testing.T) {
	net := testNet(t, 1)
	out := net.Forward(testBatch(7, 2), false)

	require.NotNil(t, out.Logits)
	assert.Nil(t, out.Features)
	assert.Nil(t, out.Embedding)
}

func TestRegistryArchitectures(t *testing.T) {
	student, err := New("cifarnet8", 100, 1)
	require.NoError(t, err)
	assert.Equal(t, distill.Layout{
		StageChannels: []int{8, 16, 32},
		StageSizes:    []int{32, 16, 8},
		EmbedDim:      32,
		NumClasses:    100,
	}, student.Layout())

	teacher, err := New("cifarnet16", 100, 2)
	require.NoError(t, err)
	assert.Equal(t, distill.Layout{
		StageChannels: []int{16, 32, 64},
		StageSizes:    []int{32, 16, 8},
		EmbedDim:      64,
		NumClasses:    100,
	}, teacher.Layout())

	_, err = New("resnet50", 10, 1)
	var cfgErr *distill.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "arch", cfgErr.Field)
}

func TestConvNetRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		config ConvNetConfig
	}{
		{"zero width", ConvNetConfig{Width: 0, NumClasses: 10}},
		{"one class", ConvNetConfig{Width: 4, NumClasses: 1}},
		{"odd input size", ConvNetConfig{Width: 4, NumClasses: 10, InputSize: 6}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConvNet(tc.config)
			var cfgErr *distill.ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestConvNetBackwardCompleteMap(t *testing.T) {
	net := testNet(t, 1)
	net.Forward(testBatch(7, 2), true)

	dLogits := onesLike(tensor.Shape{2, 3})
	grads := net.Backward(&distill.OutputGrads{Logits: dLogits})

	require.Len(t, grads, len(net.Parameters()))
	for _, p := range net.Parameters() {
		g, ok := grads[p.Name()]
		require.True(t, ok, "missing gradient for %s", p.Name())
		assert.True(t, g.Shape().Equal(p.Tensor().Shape()), "gradient shape for %s", p.Name())
	}

	// All-ones logit gradient: the fc bias gradient is the batch size.
	for _, v := range grads["fc.bias"].AsFloat32() {
		assert.InDelta(t, 2.0, v, 1e-6)
	}

	// A backward pass with no gradient sources yields declared zeros.
	zeros := net.Backward(&distill.OutputGrads{})
	require.Len(t, zeros, len(net.Parameters()))
	for name, g := range zeros {
		for _, v := range g.AsFloat32() {
			if v != 0 {
				t.Fatalf("parameter %s has nonzero gradient without sources", name)
			}
		}
	}
}

func TestConvNetHeadGradMatchesLinearBackward(t *testing.T) {
	net := testNet(t, 2)
	out := net.Forward(testBatch(9, 2), true)

	rng := rand.New(rand.NewSource(11)) //nolint:gosec // deterministic test data
	dLogits := tensor.Randn(tensor.Shape{2, 3}, rng)
	grads := net.Backward(&distill.OutputGrads{Logits: dLogits})

	want := cpu.MatMulTransposeA(dLogits, out.Embedding)
	assert.Equal(t, want.AsFloat32(), grads["fc.weight"].AsFloat32())
}

// Backward is linear in the output gradients, and scaling by a power of two
// is exact in float32, so doubling the logit gradient must double every
// parameter gradient bit for bit.
func TestConvNetBackwardLinearInOutputGrads(t *testing.T) {
	net := testNet(t, 3)
	net.Forward(testBatch(13, 2), true)

	rng := rand.New(rand.NewSource(17)) //nolint:gosec // deterministic test data
	dLogits := tensor.Randn(tensor.Shape{2, 3}, rng)
	single := net.Backward(&distill.OutputGrads{Logits: dLogits})

	doubled := dLogits.Clone()
	for i, v := range dLogits.AsFloat32() {
		doubled.AsFloat32()[i] = 2 * v
	}
	double := net.Backward(&distill.OutputGrads{Logits: doubled})

	for name, g := range single {
		d := double[name].AsFloat32()
		for i, v := range g.AsFloat32() {
			if d[i] != 2*v {
				t.Fatalf("%s[%d]: doubled grad %v, want exactly %v", name, i, d[i], 2*v)
			}
		}
	}
}

func TestConvNetFeatureGradInjection(t *testing.T) {
	net := testNet(t, 4)
	out := net.Forward(testBatch(19, 2), true)

	featGrads := make([]*tensor.RawTensor, 3)
	featGrads[0] = onesLike(out.Features[0].Shape())
	grads := net.Backward(&distill.OutputGrads{Features: featGrads})

	// All-ones injection at the stage 1 tap: per-channel bias gradient of
	// the tapped convolution is batch * H * W = 2 * 8 * 8.
	for _, v := range grads["stage1.conv1.bias"].AsFloat32() {
		assert.InDelta(t, 128.0, v, 1e-3)
	}

	// Nothing flows to layers above the injection point.
	for _, name := range []string{"stage2.conv0.weight", "stage3.conv1.bias", "fc.weight", "fc.bias"} {
		for _, v := range grads[name].AsFloat32() {
			if v != 0 {
				t.Fatalf("gradient leaked upward into %s", name)
			}
		}
	}
}

func TestConvNetBackwardSuperposition(t *testing.T) {
	net := testNet(t, 5)
	out := net.Forward(testBatch(23, 2), true)

	rng := rand.New(rand.NewSource(29)) //nolint:gosec // deterministic test data
	dLogits := tensor.Randn(tensor.Shape{2, 3}, rng)
	featGrads := make([]*tensor.RawTensor, 3)
	for i, f := range out.Features {
		featGrads[i] = tensor.Randn(f.Shape(), rng)
	}
	dEmbed := tensor.Randn(out.Embedding.Shape(), rng)

	fromLogits := net.Backward(&distill.OutputGrads{Logits: dLogits})
	fromFeatures := net.Backward(&distill.OutputGrads{Features: featGrads, Embedding: dEmbed})
	combined := net.Backward(&distill.OutputGrads{Logits: dLogits, Features: featGrads, Embedding: dEmbed})

	for name, g := range combined {
		a := fromLogits[name].AsFloat32()
		b := fromFeatures[name].AsFloat32()
		for i, v := range g.AsFloat32() {
			assert.InDeltaf(t, float64(a[i])+float64(b[i]), float64(v), 1e-4, "%s[%d]", name, i)
		}
	}
}

func TestConvNetBackwardRepeatable(t *testing.T) {
	net := testNet(t, 6)
	net.Forward(testBatch(31, 2), true)

	dLogits := onesLike(tensor.Shape{2, 3})
	first := net.Backward(&distill.OutputGrads{Logits: dLogits})
	second := net.Backward(&distill.OutputGrads{Logits: dLogits})

	require.Len(t, second, len(first))
	for name, g := range first {
		assert.Equal(t, g.AsFloat32(), second[name].AsFloat32(), "gradients for %s", name)
	}
}

func TestConvNetStateDictRoundTrip(t *testing.T) {
	src := testNet(t, 7)
	dst := testNet(t, 8)

	input := testBatch(37, 2)
	require.NotEqual(t,
		src.Forward(input, false).Logits.AsFloat32(),
		dst.Forward(input, false).Logits.AsFloat32(),
		"differently seeded nets should disagree")

	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	assert.Equal(t,
		src.Forward(input, false).Logits.AsFloat32(),
		dst.Forward(input, false).Logits.AsFloat32())
}

func TestConvNetLoadStateDictRejectsPartialState(t *testing.T) {
	src := testNet(t, 9)
	dst := testNet(t, 10)

	state := src.StateDict()
	delete(state, "stage2.conv0.weight")
	err := dst.LoadStateDict(state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage2.conv0.weight")

	state = src.StateDict()
	state["fc.bias"] = tensor.Zeros(tensor.Shape{17}, tensor.Float32)
	require.Error(t, dst.LoadStateDict(state))
}

func TestConvNetSeededInitDeterministic(t *testing.T) {
	a := testNet(t, 42)
	b := testNet(t, 42)
	for i, p := range a.Parameters() {
		assert.Equal(t, p.Tensor().AsFloat32(), b.Parameters()[i].Tensor().AsFloat32(),
			"parameter %s", p.Name())
	}
}
