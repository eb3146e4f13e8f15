package distill

import (
	"math"

	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

const pktEps = 1e-7

// pktLoss is probabilistic knowledge transfer (Passalis & Tefas, 2018).
// Pairwise cosine similarities between embeddings, shifted to [0,1] and
// row-normalized, form a conditional distribution per sample; the student's
// distribution is pulled toward the teacher's by KL divergence. Embedding
// widths may differ since similarities stay within each network.
type pktLoss struct {
	p PKTParams

	dEmbedding *tensor.RawTensor
}

func newPKTLoss(p PKTParams) *pktLoss {
	return &pktLoss{p: p}
}

func (l *pktLoss) forward(teacher, student *Output, _ *tensor.RawTensor, _ int) (LossTerms, error) {
	if student.Embedding == nil || teacher.Embedding == nil {
		return nil, &ConfigurationError{Field: "Method", Value: "pkt", Reason: "model outputs carry no embeddings"}
	}
	es, et := student.Embedding, teacher.Embedding
	n, ds := es.Shape()[0], es.Shape()[1]
	if et.Shape()[0] != n {
		return nil, &ShapeMismatchError{Op: "pkt", Want: et.Shape(), Got: es.Shape()}
	}
	dt := et.Shape()[1]

	sHat, sNorms := normalizeEps(es.AsFloat32(), n, ds)
	tHat, _ := normalizeEps(et.AsFloat32(), n, dt)

	// Row-stochastic similarity matrices.
	pRows, pSums := similarityDist(sHat, n, ds)
	qRows, _ := similarityDist(tHat, n, dt)

	var total float64
	dP := make([]float32, n*n)
	invN2 := 1.0 / float32(n*n)
	for i := range pRows {
		q := qRows[i]
		p := pRows[i]
		total += float64(q) * math.Log(float64(q+pktEps)/float64(p+pktEps))
		dP[i] = -q / (p + pktEps) * invN2
	}
	value := float32(total) * invN2

	// Back through the row normalization into the shifted similarities, then
	// through the (cos+1)/2 shift into the cosine matrix.
	dS := make([]float32, n*n)
	for i := 0; i < n; i++ {
		var dot float64
		for j := 0; j < n; j++ {
			dot += float64(dP[i*n+j]) * float64(pRows[i*n+j])
		}
		inv := 1.0 / pSums[i]
		for j := 0; j < n; j++ {
			dS[i*n+j] = (dP[i*n+j] - float32(dot)) * inv * 0.5
		}
	}

	// S = ŝ ŝᵀ, so dŝ = (dS + dSᵀ) ŝ, then back through normalization.
	l.dEmbedding = tensor.Zeros(es.Shape(), tensor.Float32)
	dE := l.dEmbedding.AsFloat32()
	dHat := make([]float32, ds)
	for i := 0; i < n; i++ {
		for k := range dHat {
			dHat[k] = 0
		}
		for j := 0; j < n; j++ {
			coef := dS[i*n+j] + dS[j*n+i]
			sj := sHat[j*ds:][:ds]
			for k := range dHat {
				dHat[k] += coef * sj[k]
			}
		}
		normalizeBackward(dE[i*ds:][:ds], dHat, sHat[i*ds:][:ds], sNorms[i])
		for k := 0; k < ds; k++ {
			dE[i*ds+k] *= l.p.Weight
		}
	}

	return LossTerms{"pkt": l.p.Weight * value}, nil
}

// normalizeEps divides each row by its norm plus pktEps, which also maps
// all-zero rows to zero without a special case.
func normalizeEps(data []float32, rows, cols int) (normalized []float32, norms []float32) {
	normalized = make([]float32, rows*cols)
	norms = make([]float32, rows)
	for r := 0; r < rows; r++ {
		src := data[r*cols:][:cols]
		var sum float64
		for _, v := range src {
			sum += float64(v) * float64(v)
		}
		norm := float32(math.Sqrt(sum)) + pktEps
		norms[r] = norm
		dst := normalized[r*cols:][:cols]
		inv := 1.0 / norm
		for c, v := range src {
			dst[c] = v * inv
		}
	}
	return normalized, norms
}

// similarityDist forms the cosine similarity matrix of normalized rows,
// shifts it into [0,1], and row-normalizes it into distributions. Returns
// the distributions and the row sums of the shifted matrix.
func similarityDist(hat []float32, n, dim int) (dist []float32, sums []float32) {
	dist = make([]float32, n*n)
	sums = make([]float32, n)
	for i := 0; i < n; i++ {
		ri := hat[i*dim:][:dim]
		var rowSum float64
		for j := 0; j < n; j++ {
			rj := hat[j*dim:][:dim]
			var dot float64
			for k := range ri {
				dot += float64(ri[k]) * float64(rj[k])
			}
			shifted := (float32(dot) + 1) / 2
			dist[i*n+j] = shifted
			rowSum += float64(shifted)
		}
		sums[i] = float32(rowSum)
		inv := 1.0 / float32(rowSum)
		for j := 0; j < n; j++ {
			dist[i*n+j] *= inv
		}
	}
	return dist, sums
}

func (l *pktLoss) backward(_ nn.Grads) *OutputGrads {
	return &OutputGrads{Embedding: l.dEmbedding}
}

func (l *pktLoss) params() []*nn.Parameter { return nil }
