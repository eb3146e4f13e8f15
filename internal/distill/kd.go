package distill

import (
	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

// kdLoss is classic logit distillation (Hinton et al., 2015): KL divergence
// between temperature-softened teacher and student distributions, scaled by
// T² so gradient magnitudes stay comparable across temperatures.
type kdLoss struct {
	p KDParams

	dLogits *tensor.RawTensor // weighted gradient w.r.t. student logits
}

func newKDLoss(p KDParams) *kdLoss {
	return &kdLoss{p: p}
}

func (l *kdLoss) forward(teacher, student *Output, _ *tensor.RawTensor, _ int) (LossTerms, error) {
	if err := requireSameShape("kd", teacher.Logits, student.Logits); err != nil {
		return nil, err
	}

	shape := student.Logits.Shape()
	n, classes := shape[0], shape[1]

	q := softmaxTemp(teacher.Logits, l.p.T).AsFloat32()
	p := softmaxTemp(student.Logits, l.p.T).AsFloat32()

	// KL(q || p), batch-mean, times T².
	var kl float64
	for i := range q {
		if q[i] > 0 {
			kl += float64(q[i]) * (safeLog(q[i]) - safeLog(p[i]))
		}
	}
	t2 := float64(l.p.T) * float64(l.p.T)
	value := float32(kl * t2 / float64(n))

	// dL/dz_s = weight * T * (p - q) / N.
	l.dLogits = tensor.Zeros(tensor.Shape{n, classes}, tensor.Float32)
	g := l.dLogits.AsFloat32()
	scale := l.p.Weight * l.p.T / float32(n)
	for i := range g {
		g[i] = scale * (p[i] - q[i])
	}

	return LossTerms{"kd": l.p.Weight * value}, nil
}

func (l *kdLoss) backward(_ nn.Grads) *OutputGrads {
	return &OutputGrads{Logits: l.dLogits}
}

func (l *kdLoss) params() []*nn.Parameter { return nil }
