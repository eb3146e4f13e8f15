package optim

import (
	"fmt"

	"github.com/born-ml/distill/internal/distill"
	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

// SGD implements stochastic gradient descent with optional momentum over the
// merged gradient of both training sources.
//
// Update rule per parameter:
//
//	g = task_grad + kd_grad (+ weight_decay * param)
//	velocity = momentum * velocity + g
//	param = param - lr * velocity
//
// Without momentum the velocity buffer is skipped and the update is
// param -= lr * g. SGD is the single-buffer baseline that DOT must reduce to
// when its two momentum coefficients coincide and beta is 1.
type SGD struct {
	params      []*nn.Parameter
	lr          float32
	momentum    float32
	weightDecay float32
	velocities  []*tensor.RawTensor
}

// SGDConfig holds configuration for the SGD optimizer.
type SGDConfig struct {
	LR          float32 // learning rate (default: 0.01)
	Momentum    float32 // momentum factor in [0, 1)
	WeightDecay float32 // L2 penalty coefficient, applied to the merged gradient
}

// NewSGD creates an SGD optimizer over the given parameters. Momentum
// buffers, when enabled, are allocated zero-filled up front so the optimizer
// state is complete from step 0.
func NewSGD(params []*nn.Parameter, config SGDConfig) (*SGD, error) {
	if config.LR == 0 {
		config.LR = 0.01
	}
	if config.LR < 0 {
		return nil, &distill.ConfigurationError{Field: "lr", Value: config.LR, Reason: "learning rate must be positive"}
	}
	if err := validateMomentum("momentum", config.Momentum); err != nil {
		return nil, err
	}
	if config.WeightDecay < 0 {
		return nil, &distill.ConfigurationError{Field: "weight_decay", Value: config.WeightDecay, Reason: "weight decay must be non-negative"}
	}

	s := &SGD{
		params:      params,
		lr:          config.LR,
		momentum:    config.Momentum,
		weightDecay: config.WeightDecay,
	}
	if s.momentum != 0 {
		s.velocities = make([]*tensor.RawTensor, len(params))
		for i, p := range params {
			s.velocities[i] = tensor.Zeros(p.Tensor().Shape(), tensor.Float32)
		}
	}
	return s, nil
}

// Step applies one update from the merged gradient sources.
//
// The task map must hold an entry for every owned parameter. A nil kd map
// declares single-source training; a non-nil kd map must also cover every
// parameter. A missing entry returns MissingGradientError rather than
// freezing the parameter silently.
func (s *SGD) Step(task, kd nn.Grads) error {
	for i, param := range s.params {
		taskGrad, err := gradientFor("sgd.step", param, task)
		if err != nil {
			return err
		}
		var kdGrad *tensor.RawTensor
		if kd != nil {
			kdGrad, err = gradientFor("sgd.step", param, kd)
			if err != nil {
				return err
			}
		}

		theta := param.Tensor().AsFloat32()
		gt := taskGrad.AsFloat32()
		var gk []float32
		if kdGrad != nil {
			gk = kdGrad.AsFloat32()
		}

		if s.momentum == 0 {
			for j := range theta {
				g := gt[j]
				if gk != nil {
					g += gk[j]
				}
				if s.weightDecay != 0 {
					g += s.weightDecay * theta[j]
				}
				theta[j] -= s.lr * g
			}
			continue
		}

		v := s.velocities[i].AsFloat32()
		for j := range theta {
			g := gt[j]
			if gk != nil {
				g += gk[j]
			}
			if s.weightDecay != 0 {
				g += s.weightDecay * theta[j]
			}
			v[j] = s.momentum*v[j] + g
			theta[j] -= s.lr * v[j]
		}
	}
	return nil
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float32) {
	s.lr = lr
}

// StateDict returns the velocity buffers keyed "velocity.{param_index}".
// Without momentum there is no state and the map is empty.
func (s *SGD) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	if s.momentum == 0 {
		return state
	}
	for i := range s.params {
		state[fmt.Sprintf("velocity.%d", i)] = s.velocities[i]
	}
	return state
}

// LoadStateDict restores velocity buffers. Keys absent from the state leave
// the corresponding buffer at zero, so a checkpoint written before the first
// step restores cleanly.
func (s *SGD) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if s.momentum == 0 {
		return nil
	}
	for i, param := range s.params {
		raw, ok := state[fmt.Sprintf("velocity.%d", i)]
		if !ok {
			continue
		}
		if !raw.Shape().Equal(param.Tensor().Shape()) {
			return fmt.Errorf("velocity shape mismatch for parameter %d: expected %s, got %s",
				i, param.Tensor().Shape(), raw.Shape())
		}
		if err := s.velocities[i].CopyFrom(raw); err != nil {
			return fmt.Errorf("load velocity %d: %w", i, err)
		}
	}
	return nil
}
