package distill

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

const vidEps = 1e-5

// vidLoss is variational information distillation (Ahn et al., 2019). The
// adapted student stage parameterizes the mean of a Gaussian over the
// teacher stage; a per-channel variance is learned jointly. Minimizing the
// negative log-likelihood lets noisy channels widen their variance instead
// of dragging the student toward unpredictable activations.
type vidLoss struct {
	p        VIDParams
	adapters []*adapter
	logVars  []*nn.Parameter // softplus pre-activations, one per teacher channel

	dAdapted []*tensor.RawTensor
	dLogVars []*tensor.RawTensor
}

func newVIDLoss(p VIDParams, student, teacher Layout, rng *rand.Rand) (*vidLoss, error) {
	adapters, err := stageAdapters("vid", student, teacher, rng)
	if err != nil {
		return nil, err
	}

	// softplus(rho) + eps == InitVar at initialization.
	rho := float32(math.Log(math.Exp(float64(p.InitVar)-vidEps) - 1))
	logVars := make([]*nn.Parameter, len(adapters))
	for i := range logVars {
		init := tensor.Full(tensor.Shape{teacher.StageChannels[i]}, rho)
		logVars[i] = nn.NewParameter(fmt.Sprintf("vid.s%d.logvar", i), init)
	}

	return &vidLoss{
		p:        p,
		adapters: adapters,
		logVars:  logVars,
		dAdapted: make([]*tensor.RawTensor, len(adapters)),
		dLogVars: make([]*tensor.RawTensor, len(adapters)),
	}, nil
}

func (l *vidLoss) forward(teacher, student *Output, _ *tensor.RawTensor, _ int) (LossTerms, error) {
	stages := len(l.adapters)
	if err := requireFeatures("vid", student, stages); err != nil {
		return nil, err
	}
	if err := requireFeatures("vid", teacher, stages); err != nil {
		return nil, err
	}

	var total float64
	for i := 0; i < stages; i++ {
		mean := l.adapters[i].forward(student.Features[i])
		ft := teacher.Features[i]
		if err := requireSameShape("vid", ft, mean); err != nil {
			return nil, err
		}

		shape := ft.Shape()
		n, c, hw := shape[0], shape[1], shape[2]*shape[3]
		numel := float32(n * c * hw)

		rho := l.logVars[i].Tensor().AsFloat32()
		variance := make([]float32, c)
		logVariance := make([]float32, c)
		for ch := 0; ch < c; ch++ {
			v := softplus(rho[ch]) + vidEps
			variance[ch] = v
			logVariance[ch] = float32(math.Log(float64(v)))
		}

		tData := ft.AsFloat32()
		mData := mean.AsFloat32()

		dMean := tensor.Zeros(shape, tensor.Float32)
		dM := dMean.AsFloat32()
		dVar := make([]float64, c)

		var stageSum float64
		for b := 0; b < n; b++ {
			for ch := 0; ch < c; ch++ {
				v := variance[ch]
				base := (b*c + ch) * hw
				var sqSum float64
				for k := 0; k < hw; k++ {
					d := mData[base+k] - tData[base+k]
					sqSum += float64(d) * float64(d)
					dM[base+k] = l.p.Weight * d / v / numel
				}
				stageSum += 0.5 * (sqSum/float64(v) + float64(hw)*float64(logVariance[ch]))
				// d/dvar of 0.5*(sq/var + hw*log var)
				dVar[ch] += 0.5 * (float64(hw)/float64(v) - sqSum/float64(v)/float64(v))
			}
		}
		total += stageSum / float64(numel)

		dRho := tensor.Zeros(tensor.Shape{c}, tensor.Float32)
		dR := dRho.AsFloat32()
		for ch := 0; ch < c; ch++ {
			dR[ch] = l.p.Weight * float32(dVar[ch]/float64(numel)) * sigmoid(rho[ch])
		}

		l.dAdapted[i] = dMean
		l.dLogVars[i] = dRho
	}

	return LossTerms{"vid": l.p.Weight * float32(total)}, nil
}

func softplus(x float32) float32 {
	if x > 20 {
		return x
	}
	return float32(math.Log1p(math.Exp(float64(x))))
}

func sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}

func (l *vidLoss) backward(auxGrads nn.Grads) *OutputGrads {
	features := make([]*tensor.RawTensor, len(l.adapters))
	for i, a := range l.adapters {
		features[i] = a.backward(l.dAdapted[i], auxGrads)
		auxGrads.Add(l.logVars[i].Name(), l.dLogVars[i])
	}
	return &OutputGrads{Features: features}
}

func (l *vidLoss) params() []*nn.Parameter {
	ps := make([]*nn.Parameter, 0, 3*len(l.adapters))
	for _, a := range l.adapters {
		ps = append(ps, a.parameters()...)
	}
	return append(ps, l.logVars...)
}
