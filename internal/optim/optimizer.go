// Package optim implements the parameter-update side of distillation
// training.
//
// Both optimizers consume two gradient maps per step: the task map (hard-label
// cross-entropy) and the kd map (distillation objective). SGD merges the two
// sources into a single momentum buffer; DOT keeps one buffer per source with
// its own momentum coefficient, which is the point of the algorithm.
//
// Optimizers never read gradients off parameters. The maps produced by
// Distiller.Backward are the only gradient channel, and a parameter missing
// from either map is an error rather than a silent freeze.
//
// Example:
//
//	opt, err := optim.NewDOT(d.TrainableParameters(), optim.DOTConfig{
//	    LR:       0.05,
//	    Momentum: 0.9,
//	    Delta:    0.075,
//	})
//	if err != nil {
//	    return err
//	}
//
//	for batch := range loader.Batches(ctx) {
//	    terms, err := d.ForwardTrain(batch.Images, batch.Labels)
//	    ...
//	    task, kd, err := d.Backward()
//	    ...
//	    if err := opt.Step(task, kd); err != nil {
//	        return err
//	    }
//	}
package optim

import (
	"github.com/born-ml/distill/internal/distill"
	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

// Optimizer is the interface shared by all update rules.
//
// Step consumes one task-gradient map and one kd-gradient map and mutates the
// owned parameters in place. State dicts expose the momentum buffers so the
// engine's checkpoint writer can persist them across restarts.
type Optimizer interface {
	// Step applies one update from the two gradient sources. It returns a
	// MissingGradientError when an owned parameter has no entry in a
	// required map.
	Step(task, kd nn.Grads) error

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR updates the learning rate. Called by LR schedules between
	// epochs.
	SetLR(lr float32)

	// StateDict returns the momentum buffers for serialization.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict restores momentum buffers from a checkpoint.
	LoadStateDict(state map[string]*tensor.RawTensor) error
}

// gradientFor looks up the gradient for param in grads and validates its
// shape. The op string names the caller in error messages.
func gradientFor(op string, param *nn.Parameter, grads nn.Grads) (*tensor.RawTensor, error) {
	grad, ok := grads[param.Name()]
	if !ok {
		return nil, &distill.MissingGradientError{Param: param.Name()}
	}
	if !grad.Shape().Equal(param.Tensor().Shape()) {
		return nil, &distill.ShapeMismatchError{
			Op:   op,
			Want: param.Tensor().Shape(),
			Got:  grad.Shape(),
		}
	}
	return grad, nil
}

// validateMomentum checks that a momentum coefficient lies in [0, 1).
func validateMomentum(field string, value float32) error {
	if value < 0 || value >= 1 {
		return &distill.ConfigurationError{
			Field:  field,
			Value:  value,
			Reason: "momentum must be in [0, 1)",
		}
	}
	return nil
}
