package distill

import (
	"math"

	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

// LossTerms maps term names to already-weighted scalar values. The step loss
// is their sum.
type LossTerms map[string]float32

// Total returns the sum of all terms.
func (t LossTerms) Total() float32 {
	var sum float32
	for _, v := range t {
		sum += v
	}
	return sum
}

// lossModule is one distillation objective bound to a teacher/student pair.
//
// forward validates shapes, computes the weighted loss terms for the batch,
// and caches everything backward needs. backward accumulates gradients for
// the module's own parameters (adapters, heads) into auxGrads and returns
// the gradients w.r.t. the student outputs. epoch is 1-based and drives
// warmup ramps.
type lossModule interface {
	forward(teacher, student *Output, labels *tensor.RawTensor, epoch int) (LossTerms, error)
	backward(auxGrads nn.Grads) *OutputGrads
	params() []*nn.Parameter
}

const logGuard = 1e-12 // floor for values entering a logarithm

// softmaxTemp returns softmax(logits / T) row-wise for a [N, C] tensor.
func softmaxTemp(logits *tensor.RawTensor, t float32) *tensor.RawTensor {
	scaled := logits.Clone()
	data := scaled.AsFloat32()
	inv := 1.0 / t
	for i := range data {
		data[i] *= inv
	}
	return tensor.Softmax(scaled, 1)
}

// safeLog returns ln(max(x, logGuard)).
func safeLog(x float32) float64 {
	if x < logGuard {
		x = logGuard
	}
	return math.Log(float64(x))
}

// mseMean returns the mean squared error between pred and target and the
// gradient w.r.t. pred: 2*(pred-target)/numel.
func mseMean(pred, target *tensor.RawTensor) (float32, *tensor.RawTensor) {
	p := pred.AsFloat32()
	q := target.AsFloat32()

	grad := tensor.Zeros(pred.Shape(), tensor.Float32)
	g := grad.AsFloat32()

	inv := 1.0 / float32(len(p))
	var sum float64
	for i := range p {
		d := p[i] - q[i]
		sum += float64(d) * float64(d)
		g[i] = 2 * d * inv
	}
	return float32(sum * float64(inv)), grad
}

// warmupScale linearly ramps from 1/warmup to 1 over the first warmup
// epochs. Epochs are 1-based; a warmup of 0 disables the ramp.
func warmupScale(epoch, warmup int) float32 {
	if warmup <= 0 || epoch >= warmup {
		return 1
	}
	if epoch < 1 {
		epoch = 1
	}
	return float32(epoch) / float32(warmup)
}

// l2NormalizeRows normalizes each row of a [rows, cols] buffer in place into
// dst and returns the per-row norms (before division, eps added).
func l2NormalizeRows(dst, src []float32, rows, cols int, eps float32) []float32 {
	norms := make([]float32, rows)
	for r := 0; r < rows; r++ {
		row := src[r*cols:][:cols]
		var sq float64
		for _, v := range row {
			sq += float64(v) * float64(v)
		}
		norm := float32(math.Sqrt(sq)) + eps
		norms[r] = norm

		out := dst[r*cols:][:cols]
		inv := 1.0 / norm
		for i, v := range row {
			out[i] = v * inv
		}
	}
	return norms
}

// normalizeBackward converts a gradient w.r.t. a normalized row back to a
// gradient w.r.t. the raw row: dx = (dy - (dy.y)y) / norm.
func normalizeBackward(dx, dy, y []float32, norm float32) {
	var dotVal float64
	for i := range dy {
		dotVal += float64(dy[i]) * float64(y[i])
	}
	d := float32(dotVal)
	inv := 1.0 / norm
	for i := range dx {
		dx[i] = (dy[i] - d*y[i]) * inv
	}
}

// requireSameShape returns a ShapeMismatchError when the tensors differ.
func requireSameShape(op string, want, got *tensor.RawTensor) error {
	if !want.Shape().Equal(got.Shape()) {
		return &ShapeMismatchError{Op: op, Want: want.Shape(), Got: got.Shape()}
	}
	return nil
}

// requireFeatures returns a ConfigurationError when an output carries no
// feature taps but the objective needs them.
func requireFeatures(op string, out *Output, stages int) error {
	if len(out.Features) < stages {
		return &ConfigurationError{Field: op, Value: len(out.Features),
			Reason: "model does not expose enough feature stages"}
	}
	return nil
}
