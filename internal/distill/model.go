package distill

import (
	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

// Output is what a network produces for one batch: classification logits
// plus, when requested, the intermediate activations the feature losses
// consume.
type Output struct {
	Logits *tensor.RawTensor // [N, classes]

	// Features holds one NCHW activation map per tapped stage, ordered
	// shallow to deep. Nil when the forward pass ran without features.
	Features []*tensor.RawTensor

	// Embedding is the pooled pre-logit vector [N, D]. Nil when the forward
	// pass ran without features.
	Embedding *tensor.RawTensor
}

// OutputGrads mirrors Output with gradients w.r.t. each component. Nil
// entries contribute nothing; a model backward pass injects non-nil feature
// gradients at the matching tap points.
type OutputGrads struct {
	Logits    *tensor.RawTensor
	Features  []*tensor.RawTensor
	Embedding *tensor.RawTensor
}

// Layout describes the tensor geometry a model produces. The distiller uses
// it to size adapters and validate teacher/student pairs before the first
// batch.
type Layout struct {
	StageChannels []int // channels of each tapped stage
	StageSizes    []int // square spatial size of each tapped stage
	EmbedDim      int   // pooled embedding width
	NumClasses    int
}

// Model is the contract teacher and student networks implement.
//
// Forward caches whatever Backward needs; Backward may be called multiple
// times against the same cached activations, which is how one forward pass
// serves both the task and distillation gradient computations. A model
// serves one goroutine at a time.
type Model interface {
	Forward(input *tensor.RawTensor, withFeatures bool) *Output

	// Backward propagates the given output gradients to all parameters and
	// returns them as a fresh name-keyed map.
	Backward(grads *OutputGrads) nn.Grads

	Parameters() []*nn.Parameter
	Layout() Layout
}
