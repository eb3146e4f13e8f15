package distill

import (
	"math/rand"

	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

// fitnetLoss is hint-based feature regression (Romero et al., 2015): MSE
// between one adapted student stage and the matching teacher stage.
type fitnetLoss struct {
	p       FitNetParams
	adapter *adapter

	dHint *tensor.RawTensor // weighted gradient w.r.t. the adapter output
}

func newFitNetLoss(p FitNetParams, student, teacher Layout, rng *rand.Rand) (*fitnetLoss, error) {
	if p.Layer >= len(student.StageChannels) || p.Layer >= len(teacher.StageChannels) {
		return nil, &ConfigurationError{Field: "fitnet.layer", Value: p.Layer,
			Reason: "hint layer index exceeds available stages"}
	}
	a, err := newAdapter("fitnet.adapter",
		student.StageChannels[p.Layer], teacher.StageChannels[p.Layer],
		student.StageSizes[p.Layer], teacher.StageSizes[p.Layer], rng)
	if err != nil {
		return nil, err
	}
	return &fitnetLoss{p: p, adapter: a}, nil
}

func (l *fitnetLoss) forward(teacher, student *Output, _ *tensor.RawTensor, _ int) (LossTerms, error) {
	if err := requireFeatures("fitnet", student, l.p.Layer+1); err != nil {
		return nil, err
	}
	if err := requireFeatures("fitnet", teacher, l.p.Layer+1); err != nil {
		return nil, err
	}

	hint := l.adapter.forward(student.Features[l.p.Layer])
	guided := teacher.Features[l.p.Layer]
	if err := requireSameShape("fitnet", guided, hint); err != nil {
		return nil, err
	}

	value, grad := mseMean(hint, guided)

	g := grad.AsFloat32()
	for i := range g {
		g[i] *= l.p.Weight
	}
	l.dHint = grad

	return LossTerms{"fitnet": l.p.Weight * value}, nil
}

func (l *fitnetLoss) backward(auxGrads nn.Grads) *OutputGrads {
	dStage := l.adapter.backward(l.dHint, auxGrads)

	features := make([]*tensor.RawTensor, l.p.Layer+1)
	features[l.p.Layer] = dStage
	return &OutputGrads{Features: features}
}

func (l *fitnetLoss) params() []*nn.Parameter {
	return l.adapter.parameters()
}
