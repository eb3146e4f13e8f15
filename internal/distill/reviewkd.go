package distill

import (
	"math/rand"

	"github.com/born-ml/distill/internal/backend/cpu"
	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

// reviewKDLoss distills across stage boundaries (Chen et al., 2021). Adapted
// student stages are fused top-down into a pyramid, so each fused map also
// reviews the knowledge of every deeper stage, and each fused map is matched
// against its teacher stage at several pooled scales.
type reviewKDLoss struct {
	p        ReviewKDParams
	adapters []*adapter
	sizes    []int // teacher stage sizes, shallow to deep

	dAdapted []*tensor.RawTensor
}

func newReviewKDLoss(p ReviewKDParams, student, teacher Layout, rng *rand.Rand) (*reviewKDLoss, error) {
	adapters, err := stageAdapters("reviewkd", student, teacher, rng)
	if err != nil {
		return nil, err
	}
	sizes := teacher.StageSizes
	for i := 0; i+1 < len(sizes); i++ {
		if sizes[i+1] == 0 || sizes[i]%sizes[i+1] != 0 {
			return nil, &ConfigurationError{Field: "reviewkd", Value: sizes,
				Reason: "stage sizes must telescope by integer factors"}
		}
	}
	return &reviewKDLoss{
		p:        p,
		adapters: adapters,
		sizes:    sizes,
		dAdapted: make([]*tensor.RawTensor, len(adapters)),
	}, nil
}

func (l *reviewKDLoss) forward(teacher, student *Output, _ *tensor.RawTensor, epoch int) (LossTerms, error) {
	stages := len(l.adapters)
	if err := requireFeatures("reviewkd", student, stages); err != nil {
		return nil, err
	}
	if err := requireFeatures("reviewkd", teacher, stages); err != nil {
		return nil, err
	}

	adapted := make([]*tensor.RawTensor, stages)
	for i := 0; i < stages; i++ {
		adapted[i] = l.adapters[i].forward(student.Features[i])
		if err := requireSameShape("reviewkd", teacher.Features[i], adapted[i]); err != nil {
			return nil, err
		}
	}

	// Top-down fusion: the deepest stage passes through, every shallower
	// fused map averages its own stage with the upsampled deeper result.
	fused := make([]*tensor.RawTensor, stages)
	fused[stages-1] = adapted[stages-1]
	for i := stages - 2; i >= 0; i-- {
		scale := l.sizes[i] / l.sizes[i+1]
		up := cpu.UpsampleNearest(fused[i+1], scale)
		out := tensor.Zeros(adapted[i].Shape(), tensor.Float32)
		dst := out.AsFloat32()
		a := adapted[i].AsFloat32()
		u := up.AsFloat32()
		for k := range dst {
			dst[k] = 0.5 * (a[k] + u[k])
		}
		fused[i] = out
	}

	scale := l.p.Weight * warmupScale(epoch, l.p.WarmupEpochs)

	var total float32
	dFused := make([]*tensor.RawTensor, stages)
	for i := 0; i < stages; i++ {
		v, g := hclStage(fused[i], teacher.Features[i])
		total += v
		gd := g.AsFloat32()
		for k := range gd {
			gd[k] *= scale
		}
		dFused[i] = g
	}

	// Invert the fusion, shallow to deep: each fused gradient splits evenly
	// between its own stage and the deeper fused map it upsampled.
	for i := 0; i < stages-1; i++ {
		dF := dFused[i].AsFloat32()
		for k := range dF {
			dF[k] *= 0.5
		}
		l.dAdapted[i] = dFused[i]

		down := cpu.UpsampleNearestBackward(dFused[i], l.sizes[i]/l.sizes[i+1])
		dNext := dFused[i+1].AsFloat32()
		dn := down.AsFloat32()
		for k := range dNext {
			dNext[k] += dn[k]
		}
	}
	l.dAdapted[stages-1] = dFused[stages-1]

	return LossTerms{"reviewkd": scale * total}, nil
}

// hclStage compares one fused map against one teacher stage with MSE at the
// native resolution plus 4x4, 2x2 and 1x1 pooled views, each half the weight
// of the previous, normalized so the weights sum to one. Returns the value
// and the unweighted gradient w.r.t. the fused map.
func hclStage(fs, ft *tensor.RawTensor) (float32, *tensor.RawTensor) {
	h := fs.Shape()[2]

	value, grad := mseMean(fs, ft)
	gd := grad.AsFloat32()

	cnt := float32(1)
	tot := float32(1)
	for _, level := range [...]int{4, 2, 1} {
		if level >= h || h%level != 0 {
			continue
		}
		cnt /= 2
		ps := cpu.AdaptiveAvgPool2D(fs, level, level)
		pt := cpu.AdaptiveAvgPool2D(ft, level, level)
		v, g := mseMean(ps, pt)
		value += v * cnt
		tot += cnt

		pg := g.AsFloat32()
		for k := range pg {
			pg[k] *= cnt
		}
		back := cpu.AdaptiveAvgPool2DBackward(fs.Shape(), g)
		bd := back.AsFloat32()
		for k := range gd {
			gd[k] += bd[k]
		}
	}

	inv := 1 / tot
	for k := range gd {
		gd[k] *= inv
	}
	return value * inv, grad
}

func (l *reviewKDLoss) backward(auxGrads nn.Grads) *OutputGrads {
	features := make([]*tensor.RawTensor, len(l.adapters))
	for i, a := range l.adapters {
		features[i] = a.backward(l.dAdapted[i], auxGrads)
	}
	return &OutputGrads{Features: features}
}

func (l *reviewKDLoss) params() []*nn.Parameter {
	var ps []*nn.Parameter
	for _, a := range l.adapters {
		ps = append(ps, a.parameters()...)
	}
	return ps
}
