package distill

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/distill/internal/backend/cpu"
	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

// adapter aligns one student stage to the teacher's geometry: an average
// pool when the student map is spatially larger, then a 1x1 convolution to
// the teacher's channel count.
//
// Adapters belong to the distiller, not to the student. They train on the
// distillation gradient only.
type adapter struct {
	conv     *nn.Conv2D
	poolTo   int // target spatial size; 0 when no pooling is needed
	inShape  tensor.Shape
	outShape tensor.Shape // expected output shape for one sample, checked per batch
}

// newAdapter builds an adapter from student stage geometry (sC, sSize) to
// teacher stage geometry (tC, tSize).
func newAdapter(name string, sC, tC, sSize, tSize int, rng *rand.Rand) (*adapter, error) {
	a := &adapter{}
	switch {
	case sSize == tSize:
	case sSize > tSize && sSize%tSize == 0:
		a.poolTo = tSize
	default:
		return nil, &ConfigurationError{
			Field:  name,
			Value:  fmt.Sprintf("%dx%d -> %dx%d", sSize, sSize, tSize, tSize),
			Reason: "student stage cannot be pooled to teacher stage size",
		}
	}
	a.conv = nn.NewConv2D(name, sC, tC, 1, 1, 0, rng)
	return a, nil
}

func (a *adapter) forward(x *tensor.RawTensor) *tensor.RawTensor {
	a.inShape = x.Shape()
	if a.poolTo > 0 {
		x = cpu.AdaptiveAvgPool2D(x, a.poolTo, a.poolTo)
	}
	return a.conv.Forward(x)
}

// backward accumulates the 1x1 conv gradients into grads and returns the
// gradient w.r.t. the raw student stage.
func (a *adapter) backward(grad *tensor.RawTensor, grads nn.Grads) *tensor.RawTensor {
	g := a.conv.Backward(grad, grads)
	if a.poolTo > 0 {
		g = cpu.AdaptiveAvgPool2DBackward(a.inShape, g)
	}
	return g
}

func (a *adapter) parameters() []*nn.Parameter {
	return a.conv.Parameters()
}

// stageAdapters builds one adapter per tapped stage.
func stageAdapters(prefix string, student, teacher Layout, rng *rand.Rand) ([]*adapter, error) {
	if len(student.StageChannels) != len(teacher.StageChannels) {
		return nil, &ConfigurationError{
			Field:  prefix,
			Value:  fmt.Sprintf("%d vs %d", len(student.StageChannels), len(teacher.StageChannels)),
			Reason: "teacher and student expose different stage counts",
		}
	}

	adapters := make([]*adapter, len(student.StageChannels))
	for i := range adapters {
		a, err := newAdapter(
			fmt.Sprintf("%s.s%d", prefix, i),
			student.StageChannels[i], teacher.StageChannels[i],
			student.StageSizes[i], teacher.StageSizes[i],
			rng,
		)
		if err != nil {
			return nil, err
		}
		adapters[i] = a
	}
	return adapters, nil
}
