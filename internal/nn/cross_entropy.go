package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/distill/internal/tensor"
)

// CrossEntropy computes the mean negative log-likelihood of the target
// classes under softmax(logits).
//
// logits is [batch, classes] float32, targets is [batch] int64. The
// log-sum-exp trick keeps the computation stable for large logits.
func CrossEntropy(logits, targets *tensor.RawTensor) float32 {
	batch, classes := checkLogitsTargets(logits, targets)

	logitsData := logits.AsFloat32()
	targetsData := targets.AsInt64()

	var total float64
	for b := 0; b < batch; b++ {
		row := logitsData[b*classes:][:classes]
		target := int(targetsData[b])
		if target < 0 || target >= classes {
			panic(fmt.Sprintf("cross_entropy: target %d out of range [0, %d)", target, classes))
		}

		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}

		var sum float64
		for _, v := range row {
			sum += math.Exp(float64(v - maxVal))
		}
		logProb := float64(row[target]-maxVal) - math.Log(sum)
		total -= logProb
	}
	return float32(total / float64(batch))
}

// CrossEntropyBackward returns the gradient of CrossEntropy w.r.t. the
// logits: (softmax(logits) - onehot(targets)) / batch.
func CrossEntropyBackward(logits, targets *tensor.RawTensor) *tensor.RawTensor {
	batch, classes := checkLogitsTargets(logits, targets)

	grad := tensor.Softmax(logits, 1)
	gradData := grad.AsFloat32()
	targetsData := targets.AsInt64()

	inv := 1.0 / float32(batch)
	for b := 0; b < batch; b++ {
		row := gradData[b*classes:][:classes]
		row[targetsData[b]] -= 1
		for i := range row {
			row[i] *= inv
		}
	}
	return grad
}

// TopKAccuracy returns the percentage of samples whose target class is among
// the k highest logits.
func TopKAccuracy(logits, targets *tensor.RawTensor, k int) float32 {
	batch, classes := checkLogitsTargets(logits, targets)
	if k < 1 || k > classes {
		panic(fmt.Sprintf("accuracy: k=%d out of range [1, %d]", k, classes))
	}

	logitsData := logits.AsFloat32()
	targetsData := targets.AsInt64()

	correct := 0
	for b := 0; b < batch; b++ {
		row := logitsData[b*classes:][:classes]
		targetVal := row[targetsData[b]]

		// Rank of the target = number of strictly greater logits.
		rank := 0
		for _, v := range row {
			if v > targetVal {
				rank++
			}
		}
		if rank < k {
			correct++
		}
	}
	return 100 * float32(correct) / float32(batch)
}

// Accuracy is top-1 accuracy as a percentage.
func Accuracy(logits, targets *tensor.RawTensor) float32 {
	return TopKAccuracy(logits, targets, 1)
}

func checkLogitsTargets(logits, targets *tensor.RawTensor) (batch, classes int) {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("cross_entropy: logits must be 2D [batch, classes], got %s", shape))
	}
	if targets.DType() != tensor.Int64 || targets.NumElements() != shape[0] {
		panic(fmt.Sprintf("cross_entropy: targets must be int64 [%d], got %s %s",
			shape[0], targets.DType(), targets.Shape()))
	}
	return shape[0], shape[1]
}
