// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package distill

import (
	"github.com/born-ml/distill/internal/distill"
)

// Model is the contract teachers and students implement. Forward with
// withFeatures=true must populate per-stage feature maps and the pooled
// embedding; Backward accepts gradients for any subset of the outputs and
// returns name-keyed parameter gradients.
type Model = distill.Model

// Output bundles logits with optional per-stage features and the pooled
// embedding.
type Output = distill.Output

// OutputGrads mirrors Output with gradients; nil entries contribute nothing.
type OutputGrads = distill.OutputGrads

// Layout describes the tensor geometry a Model produces. The distiller
// validates teacher/student compatibility against it before training.
type Layout = distill.Layout

// Mode switches the distiller between training and evaluation behavior.
type Mode = distill.Mode

// Distiller modes.
const (
	ModeTrain = distill.ModeTrain
	ModeEval  = distill.ModeEval
)

// LossTerms holds the named loss components of one forward pass, e.g.
// "task" and "kd". Total() sums them.
type LossTerms = distill.LossTerms

// Config selects the distillation method and its surrounding weights.
type Config = distill.Config

// Distiller drives one knowledge-distillation training step: teacher
// forward (frozen), student forward, loss evaluation, and a dual-source
// backward pass.
//
// Example:
//
//	d, err := distill.New(teacher, student, distill.Config{
//	    Method:     distill.DKDParams{Alpha: 1, Beta: 8, T: 4, WarmupEpochs: 20},
//	    TaskWeight: 1.0,
//	})
type Distiller = distill.Distiller

// New validates the configuration and the teacher/student layouts and
// builds a Distiller. The teacher may be nil only for VanillaParams.
func New(teacher, student Model, cfg Config) (*Distiller, error) {
	return distill.New(teacher, student, cfg)
}
