package distill

import (
	"math/rand"

	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

// ofdLoss is overhaul-of-feature-distillation (Heo et al., 2019): every
// student stage is adapted to teacher geometry and regressed onto the
// teacher's pre-activation, rectified from below by a per-channel margin.
// Positions where the student already sits under a non-positive target are
// masked out, so dead teacher activations stop pulling the student down.
// Deeper stages weigh more: stage i is scaled by 1/2^(L-1-i).
type ofdLoss struct {
	p        OFDParams
	adapters []*adapter

	dAdapted []*tensor.RawTensor
}

func newOFDLoss(p OFDParams, student, teacher Layout, rng *rand.Rand) (*ofdLoss, error) {
	adapters, err := stageAdapters("ofd", student, teacher, rng)
	if err != nil {
		return nil, err
	}
	return &ofdLoss{p: p, adapters: adapters, dAdapted: make([]*tensor.RawTensor, len(adapters))}, nil
}

func (l *ofdLoss) forward(teacher, student *Output, _ *tensor.RawTensor, _ int) (LossTerms, error) {
	stages := len(l.adapters)
	if err := requireFeatures("ofd", student, stages); err != nil {
		return nil, err
	}
	if err := requireFeatures("ofd", teacher, stages); err != nil {
		return nil, err
	}

	var total float64
	for i := 0; i < stages; i++ {
		adapted := l.adapters[i].forward(student.Features[i])
		ft := teacher.Features[i]
		if err := requireSameShape("ofd", ft, adapted); err != nil {
			return nil, err
		}

		shape := ft.Shape()
		n, c, hw := shape[0], shape[1], shape[2]*shape[3]
		tData := ft.AsFloat32()
		sData := adapted.AsFloat32()

		margins := channelMargins(tData, n, c, hw)

		scale := float32(1.0) / float32(int(1)<<(stages-1-i))
		gradScale := l.p.Weight * scale * 2 / float32(n)

		grad := tensor.Zeros(shape, tensor.Float32)
		gData := grad.AsFloat32()

		var stageSum float64
		for b := 0; b < n; b++ {
			for ch := 0; ch < c; ch++ {
				m := margins[ch]
				base := (b*c + ch) * hw
				for k := 0; k < hw; k++ {
					t := tData[base+k]
					if t < m {
						t = m
					}
					s := sData[base+k]
					if s > t || t > 0 {
						d := s - t
						stageSum += float64(d) * float64(d)
						gData[base+k] = gradScale * d
					}
				}
			}
		}
		total += stageSum * float64(scale) / float64(n)
		l.dAdapted[i] = grad
	}

	return LossTerms{"ofd": l.p.Weight * float32(total)}, nil
}

// channelMargins returns, per channel, the mean of the negative teacher
// activations (zero for channels that never go negative). The margin stands
// in for the expected value of the information ReLU will discard.
func channelMargins(data []float32, n, c, hw int) []float32 {
	sums := make([]float64, c)
	counts := make([]int, c)
	for b := 0; b < n; b++ {
		for ch := 0; ch < c; ch++ {
			base := (b*c + ch) * hw
			for k := 0; k < hw; k++ {
				if v := data[base+k]; v < 0 {
					sums[ch] += float64(v)
					counts[ch]++
				}
			}
		}
	}
	margins := make([]float32, c)
	for ch := range margins {
		if counts[ch] > 0 {
			margins[ch] = float32(sums[ch] / float64(counts[ch]))
		}
	}
	return margins
}

func (l *ofdLoss) backward(auxGrads nn.Grads) *OutputGrads {
	features := make([]*tensor.RawTensor, len(l.adapters))
	for i, a := range l.adapters {
		features[i] = a.backward(l.dAdapted[i], auxGrads)
	}
	return &OutputGrads{Features: features}
}

func (l *ofdLoss) params() []*nn.Parameter {
	var ps []*nn.Parameter
	for _, a := range l.adapters {
		ps = append(ps, a.parameters()...)
	}
	return ps
}
