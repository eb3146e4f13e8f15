package distill

import (
	"math"
	"math/rand"

	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

// crdLoss is contrastive representation distillation (Tian et al., 2020),
// reduced to its InfoNCE core: projection heads map both embeddings into a
// shared space, and each student projection must pick out its own teacher
// projection against a memory bank of stale teacher negatives. The bank is
// a ring buffer of normalized projections, refreshed after every batch, so
// a batch never contrasts against itself.
type crdLoss struct {
	p           CRDParams
	studentHead *nn.Linear
	teacherHead *nn.Linear

	bank   []float32 // [MemorySize, EmbedDim], normalized rows
	cursor int
	filled int

	dStudentProj *tensor.RawTensor
	dTeacherProj *tensor.RawTensor
}

func newCRDLoss(p CRDParams, student, teacher Layout, rng *rand.Rand) (*crdLoss, error) {
	if student.EmbedDim <= 0 || teacher.EmbedDim <= 0 {
		return nil, &ConfigurationError{Field: "Method", Value: "crd", Reason: "model layouts expose no embedding dim"}
	}
	return &crdLoss{
		p:           p,
		studentHead: nn.NewLinear("crd.student_head", student.EmbedDim, p.EmbedDim, rng),
		teacherHead: nn.NewLinear("crd.teacher_head", teacher.EmbedDim, p.EmbedDim, rng),
		bank:        make([]float32, p.MemorySize*p.EmbedDim),
	}, nil
}

func (l *crdLoss) forward(teacher, student *Output, _ *tensor.RawTensor, _ int) (LossTerms, error) {
	if student.Embedding == nil || teacher.Embedding == nil {
		return nil, &ConfigurationError{Field: "Method", Value: "crd", Reason: "model outputs carry no embeddings"}
	}
	es, et := student.Embedding, teacher.Embedding
	n := es.Shape()[0]
	if et.Shape()[0] != n {
		return nil, &ShapeMismatchError{Op: "crd", Want: et.Shape(), Got: es.Shape()}
	}

	e := l.p.EmbedDim
	zs := l.studentHead.Forward(es)
	zt := l.teacherHead.Forward(et)

	sHat := make([]float32, n*e)
	tHat := make([]float32, n*e)
	sNorms := l2NormalizeRows(sHat, zs.AsFloat32(), n, e, 1e-8)
	tNorms := l2NormalizeRows(tHat, zt.AsFloat32(), n, e, 1e-8)

	k := l.filled
	invTau := 1.0 / l.p.Temperature
	invN := 1.0 / float32(n)

	dSHat := make([]float32, n*e)
	dTHat := make([]float32, n*e)
	logits := make([]float64, k+1)

	var total float64
	for i := 0; i < n; i++ {
		si := sHat[i*e:][:e]
		ti := tHat[i*e:][:e]

		var pos float64
		for c := range si {
			pos += float64(si[c]) * float64(ti[c])
		}
		logits[0] = pos * float64(invTau)
		maxLogit := logits[0]
		for j := 0; j < k; j++ {
			bj := l.bank[j*e:][:e]
			var dot float64
			for c := range si {
				dot += float64(si[c]) * float64(bj[c])
			}
			logits[j+1] = dot * float64(invTau)
			if logits[j+1] > maxLogit {
				maxLogit = logits[j+1]
			}
		}

		var denom float64
		for j := 0; j <= k; j++ {
			logits[j] = math.Exp(logits[j] - maxLogit)
			denom += logits[j]
		}
		total += -math.Log(logits[0] / denom)

		// Softmax gradient over [positive, negatives...].
		dsi := dSHat[i*e:][:e]
		dti := dTHat[i*e:][:e]
		p0 := float32(logits[0]/denom) - 1
		coef := p0 * invTau * invN
		for c := range si {
			dsi[c] += coef * ti[c]
			dti[c] += coef * si[c]
		}
		for j := 0; j < k; j++ {
			pj := float32(logits[j+1] / denom)
			cj := pj * invTau * invN
			bj := l.bank[j*e:][:e]
			for c := range si {
				dsi[c] += cj * bj[c]
			}
		}
	}
	value := float32(total) * invN

	l.dStudentProj = tensor.Zeros(zs.Shape(), tensor.Float32)
	l.dTeacherProj = tensor.Zeros(zt.Shape(), tensor.Float32)
	dZS := l.dStudentProj.AsFloat32()
	dZT := l.dTeacherProj.AsFloat32()
	for i := 0; i < n; i++ {
		normalizeBackward(dZS[i*e:][:e], dSHat[i*e:][:e], sHat[i*e:][:e], sNorms[i])
		normalizeBackward(dZT[i*e:][:e], dTHat[i*e:][:e], tHat[i*e:][:e], tNorms[i])
	}
	for i := range dZS {
		dZS[i] *= l.p.Weight
	}
	for i := range dZT {
		dZT[i] *= l.p.Weight
	}

	// Bank update comes last: the batch must not see itself as negatives.
	for i := 0; i < n; i++ {
		copy(l.bank[l.cursor*e:][:e], tHat[i*e:][:e])
		l.cursor = (l.cursor + 1) % l.p.MemorySize
		if l.filled < l.p.MemorySize {
			l.filled++
		}
	}

	return LossTerms{"crd": l.p.Weight * value}, nil
}

func (l *crdLoss) backward(auxGrads nn.Grads) *OutputGrads {
	dEmbedding := l.studentHead.Backward(l.dStudentProj, auxGrads)
	// The teacher backbone is frozen; only its head trains.
	l.teacherHead.Backward(l.dTeacherProj, auxGrads)
	return &OutputGrads{Embedding: dEmbedding}
}

func (l *crdLoss) params() []*nn.Parameter {
	return append(l.studentHead.Parameters(), l.teacherHead.Parameters()...)
}
