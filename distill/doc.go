// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package distill provides knowledge-distillation training: a frozen teacher
// network supervises a student network through one of fourteen distillation
// losses.
//
// # Overview
//
// The Distiller owns one training step. Per batch it runs the teacher
// without gradients, runs the student with gradients, computes the task loss
// and the configured distillation loss, and produces two separate gradient
// maps so optimizers can treat the sources differently.
//
// Methods (selected by Config.Method):
//   - VanillaParams: task loss only, no teacher
//   - KDParams: temperature-softened logit matching (Hinton KD)
//   - DKDParams: decoupled target/non-target KD with warmup
//   - FitNetParams: single-stage feature regression through a 1x1 adapter
//   - ATParams: attention-map transfer
//   - SPParams: pairwise similarity preservation
//   - NSTParams: neuron selectivity transfer (polynomial MMD)
//   - PKTParams: probabilistic knowledge transfer over embeddings
//   - RKDParams: relational KD (distance + angle)
//   - OFDParams: margin-ReLU feature distillation
//   - VIDParams: variational information distillation
//   - CRDParams: contrastive representation distillation with a memory bank
//   - ReviewKDParams: multi-stage review with warmup
//   - KDSVDParams: truncated-SVD subspace distillation
//
// # Basic Usage
//
//	import "github.com/born-ml/distill/distill"
//
//	d, err := distill.New(teacher, student, distill.Config{
//	    Method:     distill.KDParams{T: 4, Weight: 0.9},
//	    TaskWeight: 0.1,
//	    Seed:       42,
//	})
//	if err != nil {
//	    return err
//	}
//
//	d.BeginEpoch(1)
//	logits, terms, err := d.ForwardTrain(images, labels)
//	if err != nil {
//	    return err
//	}
//	task, kd, err := d.Backward()
//	if err != nil {
//	    return err
//	}
//	_ = opt.Step(task, kd)
//	_, _ = logits, terms
//
// # Collaborator Contract
//
// Teachers and students implement the Model interface: a Forward pass that
// optionally exposes per-stage feature maps and a pooled embedding, an
// explicit Backward pass that accepts gradients for any of those outputs,
// and a Layout describing the tensor geometry. The zoo package provides
// ready-made convnets satisfying the contract.
//
// Feature-based methods attach trainable adapters (1x1 convolutions or
// linear projections) on the student side; their parameters appear in
// TrainableParameters and receive structural zeros in the task gradient map.
package distill
