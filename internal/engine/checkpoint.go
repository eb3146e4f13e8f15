package engine

import (
	"fmt"
	"strings"

	"github.com/born-ml/distill/internal/distill"
	"github.com/born-ml/distill/internal/optim"
	"github.com/born-ml/distill/internal/serialization"
	"github.com/born-ml/distill/internal/tensor"
)

// SaveCheckpoint writes every trainable parameter (student plus any method
// adapters) and the optimizer's momentum buffers under an "optimizer."
// prefix, together with the run metadata.
func SaveCheckpoint(path string, d *distill.Distiller, opt optim.Optimizer,
	meta serialization.CheckpointMeta, modelType string) error {
	state := make(map[string]*tensor.RawTensor)
	for _, p := range d.TrainableParameters() {
		state[p.Name()] = p.Tensor()
	}
	for key, buf := range opt.StateDict() {
		state["optimizer."+key] = buf
	}

	header := &serialization.Header{
		ModelType:  modelType,
		Checkpoint: &meta,
	}
	if err := serialization.Save(path, state, header); err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", path, err)
	}
	return nil
}

// LoadCheckpoint restores every trainable parameter and the optimizer state
// in place from a checkpoint written by SaveCheckpoint, and returns the
// stored metadata. The distiller must be configured identically to the run
// that produced the file; a missing parameter is an error, not a partial
// load.
func LoadCheckpoint(path string, d *distill.Distiller, opt optim.Optimizer) (*serialization.CheckpointMeta, error) {
	state, header, err := serialization.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", path, err)
	}

	optState := make(map[string]*tensor.RawTensor)
	for key, buf := range state {
		if name, ok := strings.CutPrefix(key, "optimizer."); ok {
			optState[name] = buf
		}
	}

	for _, p := range d.TrainableParameters() {
		src, ok := state[p.Name()]
		if !ok {
			return nil, fmt.Errorf("checkpoint %s: missing parameter %q", path, p.Name())
		}
		if err := p.Tensor().CopyFrom(src); err != nil {
			return nil, fmt.Errorf("checkpoint %s: parameter %q: %w", path, p.Name(), err)
		}
	}

	if len(optState) > 0 {
		if err := opt.LoadStateDict(optState); err != nil {
			return nil, fmt.Errorf("checkpoint %s: optimizer state: %w", path, err)
		}
	}

	if header.Checkpoint == nil {
		return nil, fmt.Errorf("checkpoint %s: no training metadata", path)
	}
	return header.Checkpoint, nil
}

// LoadWeights reads a checkpoint's raw tensors and training metadata without
// restoring any state. Evaluation and teacher loading start here and pick
// the entries they need; meta is nil when the file carries none.
func LoadWeights(path string) (map[string]*tensor.RawTensor, *serialization.CheckpointMeta, error) {
	state, header, err := serialization.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load weights %s: %w", path, err)
	}
	return state, header.Checkpoint, nil
}
