// Package zoo provides the reference convnets used for distillation runs:
// small CIFAR-style networks in a teacher and a student capacity, built from
// the nn layer set with explicit backward passes and per-stage feature taps.
package zoo

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/distill/internal/backend/cpu"
	"github.com/born-ml/distill/internal/distill"
	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

const numStages = 3

// ConvNetConfig describes a staged convnet.
type ConvNetConfig struct {
	Width      int   // channels of the first stage; later stages double it
	NumClasses int
	InputSize  int   // square input resolution (default: 32)
	InChannels int   // input image channels (default: 3)
	Seed       int64 // weight initialization seed
}

// convStage is one resolution level: two 3x3 convolutions with a feature tap
// on the second, pre-activation.
type convStage struct {
	conv0 *nn.Conv2D
	relu0 *nn.ReLU
	conv1 *nn.Conv2D
	relu1 *nn.ReLU
}

// ConvNet is a VGG-style staged convnet over NCHW float32 images.
//
// Layout: stem conv, then three stages of two 3x3 convolutions each, with
// 2x2 max pooling between stages, global average pooling into the embedding,
// and a linear classifier head. Stage channels are Width, 2*Width, 4*Width
// at resolutions S, S/2, S/4.
//
// Feature taps sit on each stage's last convolution before its activation,
// and Backward accepts gradients injected at those same points, so one
// network serves both sides of a distillation pair.
type ConvNet struct {
	config ConvNetConfig

	stem     *nn.Conv2D
	stemRelu *nn.ReLU
	stages   [numStages]convStage
	pools    [numStages - 1]*nn.MaxPool2D
	fc       *nn.Linear

	params []*nn.Parameter
	layout distill.Layout

	batch      int          // batch size of the last forward pass
	gapInShape tensor.Shape // pre-pooling activation shape, cached for backward
}

// NewConvNet builds a staged convnet with Xavier-initialized weights.
func NewConvNet(config ConvNetConfig) (*ConvNet, error) {
	if config.InputSize == 0 {
		config.InputSize = 32
	}
	if config.InChannels == 0 {
		config.InChannels = 3
	}
	if config.Width < 1 {
		return nil, &distill.ConfigurationError{Field: "width", Value: config.Width, Reason: "stage width must be at least 1"}
	}
	if config.NumClasses < 2 {
		return nil, &distill.ConfigurationError{Field: "num_classes", Value: config.NumClasses, Reason: "need at least two classes"}
	}
	if config.InputSize < 4 || config.InputSize%4 != 0 {
		return nil, &distill.ConfigurationError{Field: "input_size", Value: config.InputSize, Reason: "two pooling halvings need a multiple of 4"}
	}

	rng := rand.New(rand.NewSource(config.Seed)) //nolint:gosec // reproducible init, not crypto

	m := &ConvNet{config: config}
	m.stem = nn.NewConv2D("stem", config.InChannels, config.Width, 3, 1, 1, rng)
	m.stemRelu = nn.NewReLU()

	channels := make([]int, numStages)
	sizes := make([]int, numStages)
	prev := config.Width
	size := config.InputSize
	for i := 0; i < numStages; i++ {
		ch := config.Width << i
		name := fmt.Sprintf("stage%d", i+1)
		m.stages[i] = convStage{
			conv0: nn.NewConv2D(name+".conv0", prev, ch, 3, 1, 1, rng),
			relu0: nn.NewReLU(),
			conv1: nn.NewConv2D(name+".conv1", ch, ch, 3, 1, 1, rng),
			relu1: nn.NewReLU(),
		}
		channels[i] = ch
		sizes[i] = size
		if i < numStages-1 {
			m.pools[i] = nn.NewMaxPool2D(2, 2)
			size /= 2
		}
		prev = ch
	}

	embedDim := channels[numStages-1]
	m.fc = nn.NewLinear("fc", embedDim, config.NumClasses, rng)

	m.params = append(m.params, m.stem.Parameters()...)
	for i := range m.stages {
		m.params = append(m.params, m.stages[i].conv0.Parameters()...)
		m.params = append(m.params, m.stages[i].conv1.Parameters()...)
	}
	m.params = append(m.params, m.fc.Parameters()...)

	m.layout = distill.Layout{
		StageChannels: channels,
		StageSizes:    sizes,
		EmbedDim:      embedDim,
		NumClasses:    config.NumClasses,
	}
	return m, nil
}

// Forward runs the network on a [N, C, S, S] batch. With features enabled
// the output carries the per-stage pre-activation maps and the pooled
// embedding alongside the logits.
func (m *ConvNet) Forward(input *tensor.RawTensor, withFeatures bool) *distill.Output {
	shape := input.Shape()
	if len(shape) != 4 || shape[2] != m.config.InputSize || shape[3] != m.config.InputSize {
		panic(fmt.Sprintf("convnet: expected input [N, %d, %d, %d], got %s",
			m.config.InChannels, m.config.InputSize, m.config.InputSize, shape))
	}
	m.batch = shape[0]

	x := m.stemRelu.Forward(m.stem.Forward(input))

	var features []*tensor.RawTensor
	if withFeatures {
		features = make([]*tensor.RawTensor, numStages)
	}
	for i := range m.stages {
		s := &m.stages[i]
		x = s.relu0.Forward(s.conv0.Forward(x))
		tap := s.conv1.Forward(x)
		if withFeatures {
			features[i] = tap
		}
		x = s.relu1.Forward(tap)
		if i < numStages-1 {
			x = m.pools[i].Forward(x)
		}
	}

	m.gapInShape = x.Shape()
	embedding := cpu.GlobalAvgPool(x)
	logits := m.fc.Forward(embedding)

	out := &distill.Output{Logits: logits}
	if withFeatures {
		out.Features = features
		out.Embedding = embedding
	}
	return out
}

// Backward propagates output gradients to every parameter and returns a
// complete name-keyed map; parameters a nil gradient component cannot reach
// keep their zero entries. Feature gradients enter at the matching tap
// points. Safe to call repeatedly against the cached activations.
func (m *ConvNet) Backward(grads *distill.OutputGrads) nn.Grads {
	if m.gapInShape == nil {
		panic("convnet: backward called before forward")
	}

	out := nn.ZeroGrads(m.params)

	var dEmbedding *tensor.RawTensor
	if grads.Logits != nil {
		dEmbedding = m.fc.Backward(grads.Logits, out)
	} else {
		dEmbedding = tensor.Zeros(tensor.Shape{m.batch, m.layout.EmbedDim}, tensor.Float32)
	}
	if grads.Embedding != nil {
		dst := dEmbedding.AsFloat32()
		src := grads.Embedding.AsFloat32()
		for i := range dst {
			dst[i] += src[i]
		}
	}

	flow := cpu.GlobalAvgPoolBackward(m.gapInShape, dEmbedding)
	for i := numStages - 1; i >= 0; i-- {
		s := &m.stages[i]
		flow = s.relu1.Backward(flow, out)
		if grads.Features != nil && i < len(grads.Features) && grads.Features[i] != nil {
			dst := flow.AsFloat32()
			src := grads.Features[i].AsFloat32()
			for j := range dst {
				dst[j] += src[j]
			}
		}
		flow = s.conv1.Backward(flow, out)
		flow = s.relu0.Backward(flow, out)
		flow = s.conv0.Backward(flow, out)
		if i > 0 {
			flow = m.pools[i-1].Backward(flow, out)
		}
	}
	flow = m.stemRelu.Backward(flow, out)
	m.stem.Backward(flow, out)

	return out
}

// Parameters returns all trainable parameters, stem to head.
func (m *ConvNet) Parameters() []*nn.Parameter {
	return m.params
}

// Layout returns the tensor geometry of the feature taps and head.
func (m *ConvNet) Layout() distill.Layout {
	return m.layout
}

// StateDict returns the live parameter tensors keyed by name.
func (m *ConvNet) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor, len(m.params))
	for _, p := range m.params {
		state[p.Name()] = p.Tensor()
	}
	return state
}

// LoadStateDict copies tensors into the matching parameters. Every parameter
// must be present with the right shape; loading half a network is always a
// mistake.
func (m *ConvNet) LoadStateDict(state map[string]*tensor.RawTensor) error {
	for _, p := range m.params {
		src, ok := state[p.Name()]
		if !ok {
			return fmt.Errorf("state dict missing parameter %q", p.Name())
		}
		if err := p.Tensor().CopyFrom(src); err != nil {
			return fmt.Errorf("load parameter %q: %w", p.Name(), err)
		}
	}
	return nil
}
