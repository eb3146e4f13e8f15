package distill

import (
	"github.com/born-ml/distill/internal/backend/cpu"
	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

// spLoss is similarity-preserving distillation (Tung & Mori, 2019): the
// batch Gram matrix of flattened last-stage features encodes which samples
// activate alike; the student matches the teacher's row-normalized Gram
// matrix. Shapes other than batch size never meet, so any feature geometry
// pairs up.
type spLoss struct {
	p SPParams

	dFeature  *tensor.RawTensor
	stageIdx  int
	numStages int
}

func newSPLoss(p SPParams) *spLoss {
	return &spLoss{p: p}
}

func (l *spLoss) forward(teacher, student *Output, _ *tensor.RawTensor, _ int) (LossTerms, error) {
	if err := requireFeatures("sp", student, 1); err != nil {
		return nil, err
	}
	if err := requireFeatures("sp", teacher, 1); err != nil {
		return nil, err
	}
	l.numStages = len(student.Features)
	l.stageIdx = l.numStages - 1

	fs := student.Features[l.stageIdx]
	ft := teacher.Features[l.numStages-1]

	n := fs.Shape()[0]
	if ft.Shape()[0] != n {
		return nil, &ShapeMismatchError{Op: "sp", Want: ft.Shape(), Got: fs.Shape()}
	}
	dims := fs.NumElements() / n
	dimt := ft.NumElements() / n

	// Row-normalized Gram matrices.
	gs, gsNorms := normalizedGram(fs.AsFloat32(), n, dims)
	gt, _ := normalizedGram(ft.AsFloat32(), n, dimt)

	var total float64
	dGn := make([]float32, n*n)
	invN2 := 1.0 / float32(n*n)
	for i := range gs {
		d := gs[i] - gt[i]
		total += float64(d) * float64(d)
		dGn[i] = 2 * d * invN2
	}
	value := float32(total) * invN2

	// Back through row normalization into the raw Gram matrix.
	dG := make([]float32, n*n)
	for r := 0; r < n; r++ {
		normalizeBackward(dG[r*n:][:n], dGn[r*n:][:n], gs[r*n:][:n], gsNorms[r])
	}

	// G = f fᵀ, so df = (dG + dGᵀ) f.
	dSym := tensor.Zeros(tensor.Shape{n, n}, tensor.Float32)
	ds := dSym.AsFloat32()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			ds[i*n+j] = (dG[i*n+j] + dG[j*n+i]) * l.p.Weight
		}
	}

	fRows, err := fs.Reshape(tensor.Shape{n, dims})
	if err != nil {
		return nil, err
	}
	dFlat := cpu.MatMul(dSym, fRows)
	l.dFeature, err = dFlat.Reshape(fs.Shape())
	if err != nil {
		return nil, err
	}

	return LossTerms{"sp": l.p.Weight * value}, nil
}

// normalizedGram flattens features to [n, dim] rows, computes G = f fᵀ, and
// row-normalizes it. Returns the normalized matrix and the row norms.
func normalizedGram(data []float32, n, dim int) (normalized, norms []float32) {
	raw := make([]float32, n*n)
	for i := 0; i < n; i++ {
		ri := data[i*dim:][:dim]
		for j := i; j < n; j++ {
			rj := data[j*dim:][:dim]
			var sum float64
			for k := range ri {
				sum += float64(ri[k]) * float64(rj[k])
			}
			raw[i*n+j] = float32(sum)
			raw[j*n+i] = float32(sum)
		}
	}

	normalized = make([]float32, n*n)
	norms = l2NormalizeRows(normalized, raw, n, n, 1e-8)
	return normalized, norms
}

func (l *spLoss) backward(_ nn.Grads) *OutputGrads {
	features := make([]*tensor.RawTensor, l.numStages)
	features[l.stageIdx] = l.dFeature
	return &OutputGrads{Features: features}
}

func (l *spLoss) params() []*nn.Parameter { return nil }
