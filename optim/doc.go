// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimizers for knowledge-distillation training.
//
// # Overview
//
// This package contains:
//   - SGD: stochastic gradient descent with optional momentum
//   - DOT: distillation-oriented trainer with per-source momentum buffers
//   - Optimizer interface shared by both
//
// Both optimizers take two gradient maps per step, one from the task loss
// and one from the distillation loss. SGD sums them; DOT keeps a separate
// momentum buffer per source and applies a momentum gap so the distillation
// signal dominates early optimization.
//
// # Basic Usage
//
//	import "github.com/born-ml/distill/optim"
//
//	opt, err := optim.NewDOT(
//	    distiller.TrainableParameters(),
//	    optim.DOTConfig{
//	        LR:       0.05,
//	        Momentum: 0.9,
//	        Delta:    0.075,
//	    },
//	)
//	if err != nil {
//	    return err
//	}
//
//	// inside the batch loop
//	task, kd, _ := distiller.Backward()
//	if err := opt.Step(task, kd); err != nil {
//	    return err
//	}
//
// # State
//
// Momentum buffers are exposed through StateDict/LoadStateDict as raw
// tensors, so checkpoints can persist them alongside model parameters.
package optim
