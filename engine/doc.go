// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package engine provides the training loop around a Distiller: learning
// rate schedules, per-epoch validation, console reporting, and latest/best
// checkpointing with resume.
//
// # Basic Usage
//
//	import "github.com/born-ml/distill/engine"
//
//	trainer, err := engine.NewTrainer(d, opt,
//	    engine.MultiStepSchedule{Base: 0.05, Milestones: []int{150, 180, 210}, Gamma: 0.1},
//	    trainLoader, valLoader,
//	    engine.NewConsoleReporter(nil),
//	    engine.TrainerConfig{
//	        Epochs:        240,
//	        CheckpointDir: "checkpoints",
//	        Method:        "kd",
//	        Optimizer:     "sgd",
//	        ModelType:     "cifarnet8",
//	    },
//	)
//	if err != nil {
//	    return err
//	}
//	if err := trainer.Fit(ctx); err != nil {
//	    return err
//	}
//
// Fit writes latest.born after every epoch and best.born whenever top-1
// validation accuracy improves. Resume restores parameters, optimizer
// momentum buffers and the epoch counter from a checkpoint.
//
// Progress goes through the Reporter interface; there is no global logger.
package engine
