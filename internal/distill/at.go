package distill

import (
	"fmt"
	"math"

	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

// atLoss is attention transfer (Zagoruyko & Komodakis, 2017): for every
// stage, the channel-mean of squared activations forms a spatial attention
// map; maps are L2-normalized and matched with squared error. Channel counts
// may differ between the networks, spatial sizes must not.
type atLoss struct {
	p ATParams

	dFeatures []*tensor.RawTensor
}

func newATLoss(p ATParams) *atLoss {
	return &atLoss{p: p}
}

func (l *atLoss) forward(teacher, student *Output, _ *tensor.RawTensor, _ int) (LossTerms, error) {
	stages := len(student.Features)
	if stages == 0 || len(teacher.Features) != stages {
		return nil, &ConfigurationError{Field: "at", Value: stages,
			Reason: "teacher and student must expose the same feature stages"}
	}

	l.dFeatures = make([]*tensor.RawTensor, stages)

	var total float64
	for i := 0; i < stages; i++ {
		v, grad, err := atStage(fmt.Sprintf("at.s%d", i), student.Features[i], teacher.Features[i], l.p.Weight)
		if err != nil {
			return nil, err
		}
		total += float64(v)
		l.dFeatures[i] = grad
	}

	return LossTerms{"at": l.p.Weight * float32(total)}, nil
}

// atStage computes one stage's attention loss and its gradient w.r.t. the
// student feature map.
func atStage(op string, fs, ft *tensor.RawTensor, weight float32) (float32, *tensor.RawTensor, error) {
	sShape, tShape := fs.Shape(), ft.Shape()
	if sShape[0] != tShape[0] || sShape[2] != tShape[2] || sShape[3] != tShape[3] {
		return 0, nil, &ShapeMismatchError{Op: op, Want: tShape, Got: sShape}
	}

	n := sShape[0]
	cs, ct := sShape[1], tShape[1]
	hw := sShape[2] * sShape[3]

	sData := fs.AsFloat32()
	tData := ft.AsFloat32()

	grad := tensor.Zeros(sShape, tensor.Float32)
	gData := grad.AsFloat32()

	const eps = 1e-6
	var total float64
	denom := float32(n * hw)

	ms := make([]float32, hw) // student attention map, then normalized
	mt := make([]float32, hw)
	dv := make([]float32, hw)

	for b := 0; b < n; b++ {
		sBatch := sData[b*cs*hw:][:cs*hw]
		tBatch := tData[b*ct*hw:][:ct*hw]

		// Attention maps: channel-mean of squared activations.
		attentionMap(ms, sBatch, cs, hw)
		attentionMap(mt, tBatch, ct, hw)

		sNorm := l2norm(ms) + eps
		tNorm := l2norm(mt) + eps
		for i := 0; i < hw; i++ {
			vs := ms[i] / sNorm
			vt := mt[i] / tNorm
			d := vs - vt
			total += float64(d) * float64(d)
			dv[i] = 2 * d / denom
		}

		// Through the normalization, then through the squared-mean map:
		// dm = (dv - (dv.v)v)/norm, dF = dm * 2F/C.
		var dotVal float64
		for i := 0; i < hw; i++ {
			dotVal += float64(dv[i]) * float64(ms[i]/sNorm)
		}
		dvDotV := float32(dotVal)

		gBatch := gData[b*cs*hw:][:cs*hw]
		for i := 0; i < hw; i++ {
			dm := (dv[i] - dvDotV*ms[i]/sNorm) / sNorm
			scale := dm * 2 / float32(cs) * weight
			for c := 0; c < cs; c++ {
				gBatch[c*hw+i] += scale * sBatch[c*hw+i]
			}
		}
	}

	return float32(total) / denom, grad, nil
}

func attentionMap(dst, feat []float32, channels, hw int) {
	inv := 1.0 / float32(channels)
	for i := 0; i < hw; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			v := feat[c*hw+i]
			sum += v * v
		}
		dst[i] = sum * inv
	}
}

func l2norm(v []float32) float32 {
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sq))
}

func (l *atLoss) backward(_ nn.Grads) *OutputGrads {
	return &OutputGrads{Features: l.dFeatures}
}

func (l *atLoss) params() []*nn.Parameter { return nil }
