package distill

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

// kdsvdLoss distills the dominant subspace of the last stage (after Lee et
// al., 2018). Each teacher sample, flattened to [C, HW], is factorized with
// a thin SVD; both networks are projected onto the top right singular
// vectors and the projections are regressed. The truncation keeps only the
// directions where the teacher actually varies, so the student is free
// everywhere else.
type kdsvdLoss struct {
	p       KDSVDParams
	adapter *adapter

	dAdapted  *tensor.RawTensor
	stageIdx  int
	numStages int
}

func newKDSVDLoss(p KDSVDParams, student, teacher Layout, rng *rand.Rand) (*kdsvdLoss, error) {
	last := len(student.StageChannels) - 1
	if last < 0 || len(teacher.StageChannels) == 0 {
		return nil, &ConfigurationError{Field: "Method", Value: "kdsvd", Reason: "model layouts expose no stages"}
	}
	a, err := newAdapter("kdsvd.adapter",
		student.StageChannels[last], teacher.StageChannels[len(teacher.StageChannels)-1],
		student.StageSizes[last], teacher.StageSizes[len(teacher.StageSizes)-1], rng)
	if err != nil {
		return nil, err
	}
	return &kdsvdLoss{p: p, adapter: a}, nil
}

func (l *kdsvdLoss) forward(teacher, student *Output, _ *tensor.RawTensor, _ int) (LossTerms, error) {
	if err := requireFeatures("kdsvd", student, 1); err != nil {
		return nil, err
	}
	if err := requireFeatures("kdsvd", teacher, 1); err != nil {
		return nil, err
	}
	l.numStages = len(student.Features)
	l.stageIdx = l.numStages - 1

	adapted := l.adapter.forward(student.Features[l.stageIdx])
	ft := teacher.Features[l.numStages-1]
	if err := requireSameShape("kdsvd", ft, adapted); err != nil {
		return nil, err
	}

	shape := ft.Shape()
	n, c, hw := shape[0], shape[1], shape[2]*shape[3]
	tData := ft.AsFloat32()
	sData := adapted.AsFloat32()

	l.dAdapted = tensor.Zeros(adapted.Shape(), tensor.Float32)
	dA := l.dAdapted.AsFloat32()

	mt64 := make([]float64, c*hw)
	ms64 := make([]float64, c*hw)

	var total float64
	for b := 0; b < n; b++ {
		base := b * c * hw
		for i := 0; i < c*hw; i++ {
			mt64[i] = float64(tData[base+i])
			ms64[i] = float64(sData[base+i])
		}

		var svd mat.SVD
		if ok := svd.Factorize(mat.NewDense(c, hw, mt64), mat.SVDThin); !ok {
			return nil, fmt.Errorf("kdsvd: svd failed to converge on sample %d", b)
		}
		var v mat.Dense
		svd.VTo(&v)

		rank := v.RawMatrix().Cols
		k := l.p.Rank
		if k > rank {
			k = rank
		}

		// Project both matrices onto the leading right singular vectors.
		vk := v.Slice(0, hw, 0, k)
		var pt, ps mat.Dense
		pt.Mul(mat.NewDense(c, hw, mt64), vk)
		ps.Mul(mat.NewDense(c, hw, ms64), vk)

		inv := 1.0 / float64(c*k*n)
		var diff mat.Dense
		diff.Sub(&ps, &pt)
		for i := 0; i < c; i++ {
			for j := 0; j < k; j++ {
				d := diff.At(i, j)
				total += d * d * inv
			}
		}

		// dMs = 2 (Ps - Pt) Vkᵀ / (C k N); the teacher subspace is constant.
		var dMs mat.Dense
		dMs.Mul(&diff, vk.T())
		for i := 0; i < c; i++ {
			for j := 0; j < hw; j++ {
				dA[base+i*hw+j] = l.p.Weight * float32(2*dMs.At(i, j)*inv)
			}
		}
	}

	return LossTerms{"kdsvd": l.p.Weight * float32(total)}, nil
}

func (l *kdsvdLoss) backward(auxGrads nn.Grads) *OutputGrads {
	features := make([]*tensor.RawTensor, l.numStages)
	features[l.stageIdx] = l.adapter.backward(l.dAdapted, auxGrads)
	return &OutputGrads{Features: features}
}

func (l *kdsvdLoss) params() []*nn.Parameter {
	return l.adapter.parameters()
}
