package cpu

import (
	"fmt"

	"github.com/born-ml/distill/internal/parallel"
	"github.com/born-ml/distill/internal/tensor"
)

// MatMul computes C = A @ B for 2D float32 tensors.
// A is [M, K], B is [K, N], the result is [M, N].
func MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	m, k := check2D(a, "matmul")
	kAlt, n := check2D(b, "matmul")
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	out := tensor.Zeros(tensor.Shape{m, n}, tensor.Float32)
	ad, bd, cd := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()

	parallel.For(m, func(i int) {
		aRow := ad[i*k : (i+1)*k]
		cRow := cd[i*n : (i+1)*n]
		for kk := 0; kk < k; kk++ {
			av := aRow[kk]
			if av == 0 {
				continue
			}
			bRow := bd[kk*n : (kk+1)*n]
			for j := range cRow {
				cRow[j] += av * bRow[j]
			}
		}
	}, parallel.DefaultConfig())

	return out
}

// MatMulTransposeB computes C = A @ Bᵀ.
// A is [M, K], B is [N, K], the result is [M, N]. This is the layout of a
// linear forward pass with weights stored [out, in].
func MatMulTransposeB(a, b *tensor.RawTensor) *tensor.RawTensor {
	m, k := check2D(a, "matmul_tb")
	n, kAlt := check2D(b, "matmul_tb")
	if k != kAlt {
		panic(fmt.Sprintf("matmul_tb: shape mismatch [%d,%d] @ [%d,%d]T", m, k, n, kAlt))
	}

	out := tensor.Zeros(tensor.Shape{m, n}, tensor.Float32)
	ad, bd, cd := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()

	parallel.For(m, func(i int) {
		aRow := ad[i*k : (i+1)*k]
		cRow := cd[i*n : (i+1)*n]
		for j := 0; j < n; j++ {
			bRow := bd[j*k : (j+1)*k]
			var sum float32
			for kk := range aRow {
				sum += aRow[kk] * bRow[kk]
			}
			cRow[j] = sum
		}
	}, parallel.DefaultConfig())

	return out
}

// MatMulTransposeA computes C = Aᵀ @ B.
// A is [K, M], B is [K, N], the result is [M, N]. This is the layout of a
// linear weight gradient: dW = dYᵀ @ X.
func MatMulTransposeA(a, b *tensor.RawTensor) *tensor.RawTensor {
	k, m := check2D(a, "matmul_ta")
	kAlt, n := check2D(b, "matmul_ta")
	if k != kAlt {
		panic(fmt.Sprintf("matmul_ta: shape mismatch [%d,%d]T @ [%d,%d]", k, m, kAlt, n))
	}

	out := tensor.Zeros(tensor.Shape{m, n}, tensor.Float32)
	ad, bd, cd := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()

	parallel.For(m, func(i int) {
		cRow := cd[i*n : (i+1)*n]
		for kk := 0; kk < k; kk++ {
			av := ad[kk*m+i]
			if av == 0 {
				continue
			}
			bRow := bd[kk*n : (kk+1)*n]
			for j := range cRow {
				cRow[j] += av * bRow[j]
			}
		}
	}, parallel.DefaultConfig())

	return out
}

func check2D(t *tensor.RawTensor, op string) (rows, cols int) {
	shape := t.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("%s: expected 2D tensor, got %dD", op, len(shape)))
	}
	if t.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, t.DType()))
	}
	return shape[0], shape[1]
}
