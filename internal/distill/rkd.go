package distill

import (
	"math"

	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

const rkdEps = 1e-12

// rkdLoss is relational knowledge distillation (Park et al., 2019). Instead
// of matching embeddings directly, the student matches the teacher's
// relations between them: pairwise distances normalized by their batch mean,
// and cosines of the angles formed by embedding triplets. Both structures
// are compared with a Huber loss, so embedding widths may differ.
type rkdLoss struct {
	p RKDParams

	dEmbedding *tensor.RawTensor
}

func newRKDLoss(p RKDParams) *rkdLoss {
	return &rkdLoss{p: p}
}

func (l *rkdLoss) forward(teacher, student *Output, _ *tensor.RawTensor, _ int) (LossTerms, error) {
	if student.Embedding == nil || teacher.Embedding == nil {
		return nil, &ConfigurationError{Field: "Method", Value: "rkd", Reason: "model outputs carry no embeddings"}
	}
	es, et := student.Embedding, teacher.Embedding
	n, ds := es.Shape()[0], es.Shape()[1]
	if et.Shape()[0] != n {
		return nil, &ShapeMismatchError{Op: "rkd", Want: et.Shape(), Got: es.Shape()}
	}
	dt := et.Shape()[1]

	sEmb := es.AsFloat32()
	tEmb := et.AsFloat32()

	l.dEmbedding = tensor.Zeros(es.Shape(), tensor.Float32)
	dE := l.dEmbedding.AsFloat32()

	distVal := l.distanceTerm(sEmb, tEmb, n, ds, dt, dE)
	angleVal := l.angleTerm(sEmb, tEmb, n, ds, dt, dE)

	return LossTerms{
		"rkd.distance": l.p.DistanceWeight * distVal,
		"rkd.angle":    l.p.AngleWeight * angleVal,
	}, nil
}

// distanceTerm matches mean-normalized pairwise distance matrices and
// accumulates the weighted student gradient into dE.
func (l *rkdLoss) distanceTerm(sEmb, tEmb []float32, n, ds, dt int, dE []float32) float32 {
	sd, sMean := pairwiseDistances(sEmb, n, ds)
	td, tMean := pairwiseDistances(tEmb, n, dt)
	if sMean == 0 || tMean == 0 {
		return 0
	}

	// Positive entries participate in the mean; count them once.
	var mCount int
	for _, v := range sd {
		if v > 0 {
			mCount++
		}
	}

	invN2 := 1.0 / float32(n*n)
	g := make([]float32, n*n)
	var total, sumGD float64
	for i := range sd {
		x := sd[i]/sMean - td[i]/tMean
		total += float64(smoothL1(x))
		gi := smoothL1Grad(x) * invN2
		g[i] = gi
		sumGD += float64(gi) * float64(sd[i]/sMean)
	}
	value := float32(total) * invN2

	// d_ij = ||e_i - e_j|| and D = d/mean(d>0), so the mean couples every
	// entry's gradient to every positive entry.
	meanTerm := float32(sumGD) / (sMean * float32(mCount))
	w := l.p.DistanceWeight
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || sd[i*n+j] == 0 {
				continue
			}
			dd := g[i*n+j]/sMean - meanTerm
			coef := w * dd / sd[i*n+j]
			ei := sEmb[i*ds:][:ds]
			ej := sEmb[j*ds:][:ds]
			di := dE[i*ds:][:ds]
			dj := dE[j*ds:][:ds]
			for k := 0; k < ds; k++ {
				diff := coef * (ei[k] - ej[k])
				di[k] += diff
				dj[k] -= diff
			}
		}
	}
	return value
}

// angleTerm matches the cosines of all embedding triplet angles and
// accumulates the weighted student gradient into dE.
func (l *rkdLoss) angleTerm(sEmb, tEmb []float32, n, ds, dt int, dE []float32) float32 {
	sHat := make([]float32, n*ds) // unit edges out of the current vertex
	tHat := make([]float32, n*dt)
	sNorms := make([]float32, n)
	dHat := make([]float32, n*ds)
	du := make([]float32, ds)

	invN3 := 1.0 / float32(n*n*n)
	w := l.p.AngleWeight
	var total float64

	for i := 0; i < n; i++ {
		edgeVectors(sHat, sNorms, sEmb, i, n, ds)
		edgeVectors(tHat, nil, tEmb, i, n, dt)
		for k := range dHat {
			dHat[k] = 0
		}

		for j := 0; j < n; j++ {
			sj := sHat[j*ds:][:ds]
			tj := tHat[j*dt:][:dt]
			for k := 0; k < n; k++ {
				sk := sHat[k*ds:][:ds]
				tk := tHat[k*dt:][:dt]
				var as, at float64
				for c := range sj {
					as += float64(sj[c]) * float64(sk[c])
				}
				for c := range tj {
					at += float64(tj[c]) * float64(tk[c])
				}
				x := float32(as - at)
				total += float64(smoothL1(x))

				gi := smoothL1Grad(x) * invN3
				if gi == 0 {
					continue
				}
				dj := dHat[j*ds:][:ds]
				dk := dHat[k*ds:][:ds]
				for c := range sj {
					dj[c] += gi * sk[c]
					dk[c] += gi * sj[c]
				}
			}
		}

		// Back through edge normalization: each unit edge pulls on its
		// endpoint and pushes back on the vertex.
		di := dE[i*ds:][:ds]
		for j := 0; j < n; j++ {
			if j == i || sNorms[j] == 0 {
				continue
			}
			normalizeBackward(du, dHat[j*ds:][:ds], sHat[j*ds:][:ds], sNorms[j])
			dj := dE[j*ds:][:ds]
			for c := 0; c < ds; c++ {
				dj[c] += w * du[c]
				di[c] -= w * du[c]
			}
		}
	}
	return float32(total) * invN3
}

// pairwiseDistances returns the [n, n] Euclidean distance matrix of the rows
// and the mean of its positive entries (zero when none are positive).
func pairwiseDistances(data []float32, n, dim int) (dists []float32, mean float32) {
	dists = make([]float32, n*n)
	var sum float64
	var count int
	for i := 0; i < n; i++ {
		ri := data[i*dim:][:dim]
		for j := i + 1; j < n; j++ {
			rj := data[j*dim:][:dim]
			var sq float64
			for k := range ri {
				d := float64(ri[k]) - float64(rj[k])
				sq += d * d
			}
			d := float32(math.Sqrt(math.Max(sq, rkdEps)))
			dists[i*n+j] = d
			dists[j*n+i] = d
			sum += 2 * float64(d)
			count += 2
		}
	}
	if count > 0 {
		mean = float32(sum / float64(count))
	}
	return dists, mean
}

// edgeVectors fills hat with the unit vectors from row i to every other row.
// Row i itself stays zero. When norms is non-nil it receives the edge
// lengths.
func edgeVectors(hat, norms, data []float32, i, n, dim int) {
	ri := data[i*dim:][:dim]
	for j := 0; j < n; j++ {
		dst := hat[j*dim:][:dim]
		if j == i {
			for c := range dst {
				dst[c] = 0
			}
			if norms != nil {
				norms[j] = 0
			}
			continue
		}
		rj := data[j*dim:][:dim]
		var sq float64
		for c := range dst {
			dst[c] = rj[c] - ri[c]
			sq += float64(dst[c]) * float64(dst[c])
		}
		norm := float32(math.Sqrt(sq))
		if norms != nil {
			norms[j] = norm
		}
		if norm > 0 {
			inv := 1.0 / norm
			for c := range dst {
				dst[c] *= inv
			}
		}
	}
}

func smoothL1(x float32) float32 {
	if x < 0 {
		x = -x
	}
	if x < 1 {
		return 0.5 * x * x
	}
	return x - 0.5
}

func smoothL1Grad(x float32) float32 {
	switch {
	case x >= 1:
		return 1
	case x <= -1:
		return -1
	default:
		return x
	}
}

func (l *rkdLoss) backward(_ nn.Grads) *OutputGrads {
	return &OutputGrads{Embedding: l.dEmbedding}
}

func (l *rkdLoss) params() []*nn.Parameter { return nil }
