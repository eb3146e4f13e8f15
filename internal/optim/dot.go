package optim

import (
	"fmt"

	"github.com/born-ml/distill/internal/distill"
	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

// DOT implements the distillation-oriented trainer: momentum SGD with one
// velocity buffer per gradient source and a momentum gap between them.
//
// Update rule per parameter:
//
//	v_task = mu_task * v_task + (task_grad + weight_decay * param)
//	v_kd   = mu_kd   * v_kd   + kd_grad
//	param  = param - lr * (v_task + beta * v_kd)
//
// The gap recipe sets mu_task = momentum - delta and mu_kd = momentum + delta,
// so the distillation source accumulates history faster than the task source
// and dominates early optimization. With delta = 0 and beta = 1 the update
// reduces exactly to momentum SGD on the summed gradient.
//
// Weight decay is applied once, on the task side, so the penalty is not
// double-counted across the two buffers.
type DOT struct {
	params      []*nn.Parameter
	lr          float32
	muTask      float32
	muKD        float32
	beta        float32
	weightDecay float32
	taskVel     []*tensor.RawTensor
	kdVel       []*tensor.RawTensor
}

// DOTConfig holds configuration for the DOT optimizer.
type DOTConfig struct {
	LR          float32 // learning rate (default: 0.01)
	Momentum    float32 // shared base momentum in [0, 1)
	Delta       float32 // momentum gap between the kd and task buffers
	Beta        float32 // weight of the kd velocity in the update (default: 1)
	WeightDecay float32 // L2 penalty coefficient, task side only
}

// NewDOT creates a DOT optimizer over the given parameters. Both velocity
// buffer sets are allocated zero-filled up front.
func NewDOT(params []*nn.Parameter, config DOTConfig) (*DOT, error) {
	if config.LR == 0 {
		config.LR = 0.01
	}
	if config.LR < 0 {
		return nil, &distill.ConfigurationError{Field: "lr", Value: config.LR, Reason: "learning rate must be positive"}
	}
	if err := validateMomentum("momentum", config.Momentum); err != nil {
		return nil, err
	}
	muTask := config.Momentum - config.Delta
	muKD := config.Momentum + config.Delta
	if muTask < 0 || muKD >= 1 {
		return nil, &distill.ConfigurationError{
			Field:  "delta",
			Value:  config.Delta,
			Reason: fmt.Sprintf("momentum gap puts coefficients (%v, %v) outside [0, 1)", muTask, muKD),
		}
	}
	if config.Beta == 0 {
		config.Beta = 1
	}
	if config.Beta < 0 {
		return nil, &distill.ConfigurationError{Field: "beta", Value: config.Beta, Reason: "kd velocity weight must be non-negative"}
	}
	if config.WeightDecay < 0 {
		return nil, &distill.ConfigurationError{Field: "weight_decay", Value: config.WeightDecay, Reason: "weight decay must be non-negative"}
	}

	d := &DOT{
		params:      params,
		lr:          config.LR,
		muTask:      muTask,
		muKD:        muKD,
		beta:        config.Beta,
		weightDecay: config.WeightDecay,
		taskVel:     make([]*tensor.RawTensor, len(params)),
		kdVel:       make([]*tensor.RawTensor, len(params)),
	}
	for i, p := range params {
		d.taskVel[i] = tensor.Zeros(p.Tensor().Shape(), tensor.Float32)
		d.kdVel[i] = tensor.Zeros(p.Tensor().Shape(), tensor.Float32)
	}
	return d, nil
}

// Step applies one dual-source update. Both maps must hold an entry for
// every owned parameter; a missing entry returns MissingGradientError. A
// source that deliberately contributes nothing passes explicit zero tensors,
// which the kd buffer then preserves as zero velocity.
func (d *DOT) Step(task, kd nn.Grads) error {
	for i, param := range d.params {
		taskGrad, err := gradientFor("dot.step", param, task)
		if err != nil {
			return err
		}
		kdGrad, err := gradientFor("dot.step", param, kd)
		if err != nil {
			return err
		}

		theta := param.Tensor().AsFloat32()
		gt := taskGrad.AsFloat32()
		gk := kdGrad.AsFloat32()
		vt := d.taskVel[i].AsFloat32()
		vk := d.kdVel[i].AsFloat32()

		for j := range theta {
			g := gt[j]
			if d.weightDecay != 0 {
				g += d.weightDecay * theta[j]
			}
			vt[j] = d.muTask*vt[j] + g
			vk[j] = d.muKD*vk[j] + gk[j]
			theta[j] -= d.lr * (vt[j] + d.beta*vk[j])
		}
	}
	return nil
}

// GetLR returns the current learning rate.
func (d *DOT) GetLR() float32 {
	return d.lr
}

// SetLR updates the learning rate.
func (d *DOT) SetLR(lr float32) {
	d.lr = lr
}

// Momentums returns the task and kd momentum coefficients.
func (d *DOT) Momentums() (muTask, muKD float32) {
	return d.muTask, d.muKD
}

// SetMomentums overrides the two coefficients directly, bypassing the
// momentum/delta recipe.
func (d *DOT) SetMomentums(muTask, muKD float32) error {
	if err := validateMomentum("mu_task", muTask); err != nil {
		return err
	}
	if err := validateMomentum("mu_kd", muKD); err != nil {
		return err
	}
	d.muTask = muTask
	d.muKD = muKD
	return nil
}

// StateDict returns both velocity buffer sets, keyed
// "task_velocity.{param_index}" and "kd_velocity.{param_index}".
func (d *DOT) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor, 2*len(d.params))
	for i := range d.params {
		state[fmt.Sprintf("task_velocity.%d", i)] = d.taskVel[i]
		state[fmt.Sprintf("kd_velocity.%d", i)] = d.kdVel[i]
	}
	return state
}

// LoadStateDict restores both velocity buffer sets. Keys absent from the
// state leave the corresponding buffer at zero.
func (d *DOT) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := d.loadBuffers(state, "task_velocity", d.taskVel); err != nil {
		return err
	}
	return d.loadBuffers(state, "kd_velocity", d.kdVel)
}

func (d *DOT) loadBuffers(state map[string]*tensor.RawTensor, prefix string, dst []*tensor.RawTensor) error {
	for i, param := range d.params {
		raw, ok := state[fmt.Sprintf("%s.%d", prefix, i)]
		if !ok {
			continue
		}
		if !raw.Shape().Equal(param.Tensor().Shape()) {
			return fmt.Errorf("%s shape mismatch for parameter %d: expected %s, got %s",
				prefix, i, param.Tensor().Shape(), raw.Shape())
		}
		if err := dst[i].CopyFrom(raw); err != nil {
			return fmt.Errorf("load %s.%d: %w", prefix, i, err)
		}
	}
	return nil
}
