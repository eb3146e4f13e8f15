// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/optim"
)

// Optimizer is the common interface for all optimizers. Step consumes one
// task-loss gradient map and one distillation-loss gradient map; either may
// be empty, never nil.
type Optimizer = optim.Optimizer

// SGD (Stochastic Gradient Descent)

// SGD is momentum SGD. The two gradient sources are summed before the
// momentum update, so it treats task and distillation gradients uniformly.
type SGD = optim.SGD

// SGDConfig contains configuration for the SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD optimizer.
//
// Example:
//
//	opt, err := optim.NewSGD(
//	    distiller.TrainableParameters(),
//	    optim.SGDConfig{
//	        LR:          0.05,
//	        Momentum:    0.9,
//	        WeightDecay: 5e-4,
//	    },
//	)
func NewSGD(params []*nn.Parameter, config SGDConfig) (*SGD, error) {
	return optim.NewSGD(params, config)
}

// DOT (Distillation-Oriented Trainer)

// DOT keeps independent momentum buffers for the task and distillation
// gradient sources and applies momentum m+delta to the distillation buffer
// and m-delta to the task buffer. Weight decay, when set, rides the task
// side only.
type DOT = optim.DOT

// DOTConfig contains configuration for the DOT optimizer. Delta is the
// momentum gap; Beta scales the distillation gradients before the buffer
// update.
type DOTConfig = optim.DOTConfig

// NewDOT creates a DOT optimizer.
//
// Example:
//
//	opt, err := optim.NewDOT(
//	    distiller.TrainableParameters(),
//	    optim.DOTConfig{
//	        LR:       0.05,
//	        Momentum: 0.9,
//	        Delta:    0.075,
//	        Beta:     1.0,
//	    },
//	)
func NewDOT(params []*nn.Parameter, config DOTConfig) (*DOT, error) {
	return optim.NewDOT(params, config)
}
