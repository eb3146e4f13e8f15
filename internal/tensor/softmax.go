package tensor

import (
	"fmt"
	"math"
)

// Softmax computes softmax along the given axis. Negative axis counts from
// the end. The input is unchanged; a new Float32 tensor is returned.
//
// Values are shifted by the axis maximum before exponentiation so that large
// logits do not overflow.
func Softmax(t *RawTensor, axis int) *RawTensor {
	outer, axisSize, inner := resolveAxis(t, axis, "softmax")

	out := Zeros(t.Shape(), Float32)
	src := t.AsFloat32()
	dst := out.AsFloat32()

	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			base := o*axisSize*inner + i

			maxVal := src[base]
			for a := 1; a < axisSize; a++ {
				if v := src[base+a*inner]; v > maxVal {
					maxVal = v
				}
			}

			var sum float32
			for a := 0; a < axisSize; a++ {
				e := float32(math.Exp(float64(src[base+a*inner] - maxVal)))
				dst[base+a*inner] = e
				sum += e
			}

			inv := 1.0 / sum
			for a := 0; a < axisSize; a++ {
				dst[base+a*inner] *= inv
			}
		}
	}
	return out
}

// LogSoftmax computes log(softmax) along the given axis using the
// log-sum-exp trick. More numerically stable than log(Softmax(t)).
func LogSoftmax(t *RawTensor, axis int) *RawTensor {
	outer, axisSize, inner := resolveAxis(t, axis, "logsoftmax")

	out := Zeros(t.Shape(), Float32)
	src := t.AsFloat32()
	dst := out.AsFloat32()

	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			base := o*axisSize*inner + i

			maxVal := src[base]
			for a := 1; a < axisSize; a++ {
				if v := src[base+a*inner]; v > maxVal {
					maxVal = v
				}
			}

			var sum float64
			for a := 0; a < axisSize; a++ {
				sum += math.Exp(float64(src[base+a*inner] - maxVal))
			}
			logSum := float32(math.Log(sum)) + maxVal

			for a := 0; a < axisSize; a++ {
				dst[base+a*inner] = src[base+a*inner] - logSum
			}
		}
	}
	return out
}

// resolveAxis normalizes a possibly-negative axis and splits the shape into
// (outer, axis, inner) loop bounds. Only Float32 tensors are supported.
func resolveAxis(t *RawTensor, axis int, op string) (outer, axisSize, inner int) {
	shape := t.Shape()
	if axis < 0 {
		axis += len(shape)
	}
	if axis < 0 || axis >= len(shape) {
		panic(fmt.Sprintf("%s: axis %d out of range for shape %s", op, axis, shape))
	}
	if t.DType() != Float32 {
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, t.DType()))
	}

	outer, inner = 1, 1
	for i := 0; i < axis; i++ {
		outer *= shape[i]
	}
	axisSize = shape[axis]
	for i := axis + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return outer, axisSize, inner
}
