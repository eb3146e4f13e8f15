package distill

import (
	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

// nstLoss is neural selectivity transfer (Huang & Wang, 2017): channels are
// L2-normalized spatial activation vectors, and the student matches the
// teacher's distribution of them under a squared-dot-product kernel MMD.
// Channel counts may differ; spatial extents must agree because the cross
// kernel dots student channels against teacher channels.
type nstLoss struct {
	p NSTParams

	dFeature  *tensor.RawTensor
	stageIdx  int
	numStages int
}

func newNSTLoss(p NSTParams) *nstLoss {
	return &nstLoss{p: p}
}

func (l *nstLoss) forward(teacher, student *Output, _ *tensor.RawTensor, _ int) (LossTerms, error) {
	if err := requireFeatures("nst", student, 1); err != nil {
		return nil, err
	}
	if err := requireFeatures("nst", teacher, 1); err != nil {
		return nil, err
	}
	l.numStages = len(student.Features)
	l.stageIdx = l.numStages - 1

	fs := student.Features[l.stageIdx]
	ft := teacher.Features[l.numStages-1]
	ss, st := fs.Shape(), ft.Shape()

	n, cs, hw := ss[0], ss[1], ss[2]*ss[3]
	ct, hwT := st[1], st[2]*st[3]
	if st[0] != n || hwT != hw {
		return nil, &ShapeMismatchError{Op: "nst", Want: st, Got: ss}
	}

	l.dFeature = tensor.Zeros(fs.Shape(), tensor.Float32)
	dF := l.dFeature.AsFloat32()
	sData := fs.AsFloat32()
	tData := ft.AsFloat32()

	sHat := make([]float32, cs*hw)
	tHat := make([]float32, ct*hw)
	dHat := make([]float32, cs*hw)

	invN := 1.0 / float32(n)
	ssScale := invN / float32(cs*cs)
	ttScale := invN / float32(ct*ct)
	stScale := invN / float32(cs*ct)

	var total float64
	for b := 0; b < n; b++ {
		sPlane := sData[b*cs*hw:][:cs*hw]
		tPlane := tData[b*ct*hw:][:ct*hw]
		sNorms := l2NormalizeRows(sHat, sPlane, cs, hw, 1e-12)
		l2NormalizeRows(tHat, tPlane, ct, hw, 1e-12)

		gss := gram(sHat, sHat, cs, cs, hw) // [cs, cs]
		gst := gram(sHat, tHat, cs, ct, hw) // [cs, ct]

		var sumSS, sumST, sumTT float64
		for _, v := range gss {
			sumSS += float64(v) * float64(v)
		}
		for _, v := range gst {
			sumST += float64(v) * float64(v)
		}
		for i := 0; i < ct; i++ {
			ti := tHat[i*hw:][:hw]
			for j := 0; j < ct; j++ {
				tj := tHat[j*hw:][:hw]
				var dot float64
				for k := range ti {
					dot += float64(ti[k]) * float64(tj[k])
				}
				sumTT += dot * dot
			}
		}
		total += sumSS*float64(ssScale) + sumTT*float64(ttScale) - 2*sumST*float64(stScale)

		// dL/dŝ_i = 4/(N·Cs²) Σ_j (ŝ_i·ŝ_j) ŝ_j − 4/(N·Cs·Ct) Σ_j (ŝ_i·t̂_j) t̂_j
		for i := range dHat {
			dHat[i] = 0
		}
		for i := 0; i < cs; i++ {
			di := dHat[i*hw:][:hw]
			for j := 0; j < cs; j++ {
				coef := 4 * ssScale * gss[i*cs+j]
				sj := sHat[j*hw:][:hw]
				for k := range di {
					di[k] += coef * sj[k]
				}
			}
			for j := 0; j < ct; j++ {
				coef := 4 * stScale * gst[i*ct+j]
				tj := tHat[j*hw:][:hw]
				for k := range di {
					di[k] -= coef * tj[k]
				}
			}
		}

		dPlane := dF[b*cs*hw:][:cs*hw]
		for i := 0; i < cs; i++ {
			normalizeBackward(dPlane[i*hw:][:hw], dHat[i*hw:][:hw], sHat[i*hw:][:hw], sNorms[i])
		}
		for i := range dPlane {
			dPlane[i] *= l.p.Weight
		}
	}

	return LossTerms{"nst": l.p.Weight * float32(total)}, nil
}

// gram computes a [rowsA, rowsB] matrix of dot products between rows of a
// and rows of b, each row dim wide.
func gram(a, b []float32, rowsA, rowsB, dim int) []float32 {
	out := make([]float32, rowsA*rowsB)
	for i := 0; i < rowsA; i++ {
		ai := a[i*dim:][:dim]
		for j := 0; j < rowsB; j++ {
			bj := b[j*dim:][:dim]
			var sum float64
			for k := range ai {
				sum += float64(ai[k]) * float64(bj[k])
			}
			out[i*rowsB+j] = float32(sum)
		}
	}
	return out
}

func (l *nstLoss) backward(_ nn.Grads) *OutputGrads {
	features := make([]*tensor.RawTensor, l.numStages)
	features[l.stageIdx] = l.dFeature
	return &OutputGrads{Features: features}
}

func (l *nstLoss) params() []*nn.Parameter { return nil }
