package distill

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/distill/internal/tensor"
)

func cloneOutput(o *Output) *Output {
	c := &Output{}
	if o.Logits != nil {
		c.Logits = o.Logits.Clone()
	}
	if o.Embedding != nil {
		c.Embedding = o.Embedding.Clone()
	}
	for _, f := range o.Features {
		c.Features = append(c.Features, f.Clone())
	}
	return c
}

// Losses that compare network statistics rather than raw activations vanish
// when teacher and student produce identical outputs.
func TestStatisticLossesVanishAtEquality(t *testing.T) {
	studentLayout, _ := testLayouts()
	rng := rand.New(rand.NewSource(31))

	student := randomOutput(studentLayout, 3, rng)
	teacher := cloneOutput(student)
	labels := testLabels(3, studentLayout.NumClasses)

	cases := map[string]lossModule{
		"at":  newATLoss(ATParams{Weight: 1}),
		"sp":  newSPLoss(SPParams{Weight: 1}),
		"nst": newNSTLoss(NSTParams{Weight: 1}),
		"pkt": newPKTLoss(PKTParams{Weight: 1}),
		"rkd": newRKDLoss(RKDParams{DistanceWeight: 25, AngleWeight: 50}),
	}
	for name, l := range cases {
		t.Run(name, func(t *testing.T) {
			terms, err := l.forward(teacher, student, labels, 1)
			require.NoError(t, err)
			assert.InDelta(t, 0, terms.Total(), 1e-5)

			out := l.backward(nil)
			for _, g := range out.Features {
				if g == nil {
					continue
				}
				for _, v := range g.AsFloat32() {
					assert.InDelta(t, 0, v, 1e-5)
				}
			}
			if out.Embedding != nil {
				for _, v := range out.Embedding.AsFloat32() {
					assert.InDelta(t, 0, v, 1e-5)
				}
			}
		})
	}
}

func TestFitNetGradient(t *testing.T) {
	studentLayout, teacherLayout := testLayouts()
	rng := rand.New(rand.NewSource(32))

	student := randomOutput(studentLayout, 3, rng)
	teacher := randomOutput(teacherLayout, 3, rng)
	labels := testLabels(3, studentLayout.NumClasses)

	l, err := newFitNetLoss(FitNetParams{Layer: 0, Weight: 1.5}, studentLayout, teacherLayout, rng)
	require.NoError(t, err)
	checkLossGradients(t, l, teacher, student, labels, 1)
}

func TestFitNetRejectsBadLayer(t *testing.T) {
	studentLayout, teacherLayout := testLayouts()
	rng := rand.New(rand.NewSource(33))

	_, err := newFitNetLoss(FitNetParams{Layer: 5, Weight: 1}, studentLayout, teacherLayout, rng)
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
}

func TestATGradient(t *testing.T) {
	studentLayout, teacherLayout := testLayouts()
	rng := rand.New(rand.NewSource(34))

	student := randomOutput(studentLayout, 2, rng)
	teacher := randomOutput(teacherLayout, 2, rng)
	labels := testLabels(2, studentLayout.NumClasses)

	checkLossGradients(t, newATLoss(ATParams{Weight: 1}), teacher, student, labels, 1)
}

func TestSPGradient(t *testing.T) {
	studentLayout, teacherLayout := testLayouts()
	rng := rand.New(rand.NewSource(35))

	student := randomOutput(studentLayout, 3, rng)
	teacher := randomOutput(teacherLayout, 3, rng)
	labels := testLabels(3, studentLayout.NumClasses)

	checkLossGradients(t, newSPLoss(SPParams{Weight: 2}), teacher, student, labels, 1)
}

func TestNSTGradient(t *testing.T) {
	studentLayout, teacherLayout := testLayouts()
	rng := rand.New(rand.NewSource(36))

	student := randomOutput(studentLayout, 2, rng)
	teacher := randomOutput(teacherLayout, 2, rng)
	labels := testLabels(2, studentLayout.NumClasses)

	checkLossGradients(t, newNSTLoss(NSTParams{Weight: 1}), teacher, student, labels, 1)
}

func TestPKTGradient(t *testing.T) {
	studentLayout, teacherLayout := testLayouts()
	rng := rand.New(rand.NewSource(37))

	student := randomOutput(studentLayout, 3, rng)
	teacher := randomOutput(teacherLayout, 3, rng)
	labels := testLabels(3, studentLayout.NumClasses)

	checkLossGradients(t, newPKTLoss(PKTParams{Weight: 1}), teacher, student, labels, 1)
}

func TestRKDGradient(t *testing.T) {
	studentLayout, teacherLayout := testLayouts()
	rng := rand.New(rand.NewSource(38))

	student := randomOutput(studentLayout, 3, rng)
	teacher := randomOutput(teacherLayout, 3, rng)
	labels := testLabels(3, studentLayout.NumClasses)

	checkLossGradients(t, newRKDLoss(RKDParams{DistanceWeight: 25, AngleWeight: 50}), teacher, student, labels, 1)
}

func TestRKDSmoothL1(t *testing.T) {
	assert.InDelta(t, 0.125, smoothL1(0.5), 1e-7)
	assert.InDelta(t, 0.125, smoothL1(-0.5), 1e-7)
	assert.InDelta(t, 1.5, smoothL1(2), 1e-7)
	assert.InDelta(t, 0.5, smoothL1(1), 1e-7, "continuous at the kink")

	assert.InDelta(t, 0.5, smoothL1Grad(0.5), 1e-7)
	assert.InDelta(t, -0.5, smoothL1Grad(-0.5), 1e-7)
	assert.InDelta(t, 1, smoothL1Grad(2), 1e-7)
	assert.InDelta(t, -1, smoothL1Grad(-3), 1e-7)
}

func TestOFDGradient(t *testing.T) {
	studentLayout, teacherLayout := testLayouts()
	rng := rand.New(rand.NewSource(39))

	student := randomOutput(studentLayout, 2, rng)
	teacher := randomOutput(teacherLayout, 2, rng)
	labels := testLabels(2, studentLayout.NumClasses)

	l, err := newOFDLoss(OFDParams{Weight: 1}, studentLayout, teacherLayout, rng)
	require.NoError(t, err)
	checkLossGradients(t, l, teacher, student, labels, 1)
}

func TestOFDChannelMargins(t *testing.T) {
	// One sample, two channels of four values each.
	data := []float32{
		-1, -3, 2, 4, // channel 0: negatives -1, -3
		1, 2, 3, 4, // channel 1: no negatives
	}
	margins := channelMargins(data, 1, 2, 4)
	assert.InDelta(t, -2.0, margins[0], 1e-6)
	assert.InDelta(t, 0.0, margins[1], 1e-6)
}

func TestVIDGradient(t *testing.T) {
	studentLayout, teacherLayout := testLayouts()
	rng := rand.New(rand.NewSource(40))

	student := randomOutput(studentLayout, 2, rng)
	teacher := randomOutput(teacherLayout, 2, rng)
	labels := testLabels(2, studentLayout.NumClasses)

	l, err := newVIDLoss(VIDParams{Weight: 1, InitVar: 5}, studentLayout, teacherLayout, rng)
	require.NoError(t, err)
	checkLossGradients(t, l, teacher, student, labels, 1)
}

func TestVIDVarianceInitialization(t *testing.T) {
	studentLayout, teacherLayout := testLayouts()
	rng := rand.New(rand.NewSource(41))

	l, err := newVIDLoss(VIDParams{Weight: 1, InitVar: 5}, studentLayout, teacherLayout, rng)
	require.NoError(t, err)

	for _, p := range l.logVars {
		for _, rho := range p.Tensor().AsFloat32() {
			assert.InDelta(t, 5.0, softplus(rho)+vidEps, 1e-5)
		}
	}
}

func TestReviewKDGradient(t *testing.T) {
	studentLayout, teacherLayout := testLayouts()
	rng := rand.New(rand.NewSource(42))

	student := randomOutput(studentLayout, 2, rng)
	teacher := randomOutput(teacherLayout, 2, rng)
	labels := testLabels(2, studentLayout.NumClasses)

	l, err := newReviewKDLoss(ReviewKDParams{Weight: 1}, studentLayout, teacherLayout, rng)
	require.NoError(t, err)
	checkLossGradients(t, l, teacher, student, labels, 1)
}

func TestReviewKDWarmup(t *testing.T) {
	studentLayout, teacherLayout := testLayouts()
	rng := rand.New(rand.NewSource(43))

	student := randomOutput(studentLayout, 2, rng)
	teacher := randomOutput(teacherLayout, 2, rng)
	labels := testLabels(2, studentLayout.NumClasses)

	l, err := newReviewKDLoss(ReviewKDParams{Weight: 1, WarmupEpochs: 4}, studentLayout, teacherLayout, rng)
	require.NoError(t, err)

	early, err := l.forward(teacher, student, labels, 1)
	require.NoError(t, err)
	full, err := l.forward(teacher, student, labels, 4)
	require.NoError(t, err)

	assert.InDelta(t, 0.25*full.Total(), early.Total(), 1e-5)
}

func TestHCLStageZeroAtEquality(t *testing.T) {
	rng := rand.New(rand.NewSource(44))
	f := tensor.Randn(tensor.Shape{2, 3, 4, 4}, rng)

	value, grad := hclStage(f, f.Clone())
	assert.InDelta(t, 0, value, 1e-7)
	for _, v := range grad.AsFloat32() {
		assert.InDelta(t, 0, v, 1e-7)
	}
}

func TestKDSVDGradient(t *testing.T) {
	studentLayout, teacherLayout := testLayouts()
	rng := rand.New(rand.NewSource(45))

	student := randomOutput(studentLayout, 2, rng)
	teacher := randomOutput(teacherLayout, 2, rng)
	labels := testLabels(2, studentLayout.NumClasses)

	l, err := newKDSVDLoss(KDSVDParams{Rank: 2, Weight: 1}, studentLayout, teacherLayout, rng)
	require.NoError(t, err)
	checkLossGradients(t, l, teacher, student, labels, 1)
}

func TestKDSVDRankClamped(t *testing.T) {
	studentLayout, teacherLayout := testLayouts()
	rng := rand.New(rand.NewSource(46))

	student := randomOutput(studentLayout, 2, rng)
	teacher := randomOutput(teacherLayout, 2, rng)
	labels := testLabels(2, studentLayout.NumClasses)

	// Rank far above min(C, HW); the projection falls back to the full
	// right-singular basis and the loss stays finite.
	l, err := newKDSVDLoss(KDSVDParams{Rank: 100, Weight: 1}, studentLayout, teacherLayout, rng)
	require.NoError(t, err)
	terms, err := l.forward(teacher, student, labels, 1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, terms.Total(), float32(0))
}
