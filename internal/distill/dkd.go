package distill

import (
	"fmt"

	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

// dkdLoss is decoupled knowledge distillation (Zhao et al., 2022). The KD
// divergence is split into a binary target/non-target term (TCKD) and a
// divergence over the renormalized non-target classes (NCKD), weighted
// independently so the suppressed NCKD signal can be amplified.
type dkdLoss struct {
	p DKDParams

	dLogits *tensor.RawTensor
}

func newDKDLoss(p DKDParams) *dkdLoss {
	return &dkdLoss{p: p}
}

//nolint:gocognit // the two divergence terms share the softmax buffers
func (l *dkdLoss) forward(teacher, student *Output, labels *tensor.RawTensor, epoch int) (LossTerms, error) {
	if err := requireSameShape("dkd", teacher.Logits, student.Logits); err != nil {
		return nil, err
	}

	shape := student.Logits.Shape()
	n, classes := shape[0], shape[1]
	if labels.NumElements() != n {
		return nil, &ShapeMismatchError{Op: "dkd", Want: tensor.Shape{n}, Got: labels.Shape()}
	}

	q := softmaxTemp(teacher.Logits, l.p.T).AsFloat32()
	p := softmaxTemp(student.Logits, l.p.T).AsFloat32()
	targets := labels.AsInt64()

	warm := warmupScale(epoch, l.p.WarmupEpochs)
	t2 := float64(l.p.T) * float64(l.p.T)

	l.dLogits = tensor.Zeros(tensor.Shape{n, classes}, tensor.Float32)
	grad := l.dLogits.AsFloat32()

	const eps = 1e-7
	var tckdSum, nckdSum float64

	for b := 0; b < n; b++ {
		target := int(targets[b])
		if target < 0 || target >= classes {
			panic(fmt.Sprintf("dkd: target %d out of range [0, %d)", target, classes))
		}
		qRow := q[b*classes:][:classes]
		pRow := p[b*classes:][:classes]
		gRow := grad[b*classes:][:classes]

		// TCKD: KL between the binary (target, rest) distributions.
		t0 := qRow[target]
		s0 := pRow[target]
		s0c := clamp(s0, eps, 1-eps)
		t1 := 1 - t0
		s1c := 1 - s0c

		tckdSum += float64(t0)*(safeLog(t0)-safeLog(s0c)) +
			float64(t1)*(safeLog(t1)-safeLog(s1c))

		// dTCKD/ds0 through the binary distribution, then through softmax:
		// ds0/dz_j = s0*(delta_tj - p_j)/T.
		dTCKDds0 := -t0/s0c + t1/s1c
		// NCKD: KL between the renormalized non-target distributions.
		// Renormalize q and p over the non-target classes.
		qRest := 1 - t0
		pRest := 1 - s0
		if qRest < eps {
			qRest = eps
		}
		if pRest < eps {
			pRest = eps
		}

		for j := 0; j < classes; j++ {
			// TCKD gradient contribution.
			delta := float32(0)
			if j == target {
				delta = 1
			}
			gRow[j] += dTCKDds0 * s0 * (delta - pRow[j]) / l.p.T * l.p.Alpha

			if j == target {
				continue
			}
			qHat := qRow[j] / qRest
			pHat := pRow[j] / pRest
			if qHat > 0 {
				nckdSum += float64(qHat) * (safeLog(qHat) - safeLog(pHat))
			}
			// dNCKD/dz_j = (pHat - qHat)/T for non-target classes.
			gRow[j] += (pHat - qHat) / l.p.T * l.p.Beta
		}
	}

	// Scale values and gradients by T²/N and the warmup ramp.
	norm := float32(t2 / float64(n))
	tckd := l.p.Alpha * float32(tckdSum) * norm * warm
	nckd := l.p.Beta * float32(nckdSum) * norm * warm

	gradScale := norm * warm
	for i := range grad {
		grad[i] *= gradScale
	}

	return LossTerms{"dkd.tckd": tckd, "dkd.nckd": nckd}, nil
}

func (l *dkdLoss) backward(_ nn.Grads) *OutputGrads {
	return &OutputGrads{Logits: l.dLogits}
}

func (l *dkdLoss) params() []*nn.Parameter { return nil }

func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
