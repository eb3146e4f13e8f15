// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package engine

import (
	"context"
	"io"

	"github.com/born-ml/distill/internal/data"
	"github.com/born-ml/distill/internal/distill"
	"github.com/born-ml/distill/internal/engine"
	"github.com/born-ml/distill/internal/optim"
	"github.com/born-ml/distill/internal/serialization"
	"github.com/born-ml/distill/internal/tensor"
)

// Trainer owns the distillation training loop.
type Trainer = engine.Trainer

// TrainerConfig sizes a training run and names the artifacts it records.
type TrainerConfig = engine.TrainerConfig

// NewTrainer wires a Distiller, an optimizer, a schedule and two loaders
// into a Trainer. rep may be nil for silent operation.
func NewTrainer(d *distill.Distiller, opt optim.Optimizer, sched Schedule,
	train, val *data.Loader, rep Reporter, cfg TrainerConfig) (*Trainer, error) {
	return engine.NewTrainer(d, opt, sched, train, val, rep, cfg)
}

// Schedule maps (epoch, batch) to a learning rate. Epochs are 1-based,
// batches 0-based.
type Schedule = engine.Schedule

// ConstantSchedule returns Base everywhere.
type ConstantSchedule = engine.ConstantSchedule

// MultiStepSchedule multiplies Base by Gamma after each passed milestone
// epoch. Epoch granularity.
type MultiStepSchedule = engine.MultiStepSchedule

// CosineSchedule ramps linearly to Base over WarmupEpochs, then follows a
// half cosine down to Base*Floor. Batch granularity.
type CosineSchedule = engine.CosineSchedule

// Evaluate runs the validation loader in evaluation mode and returns top-1
// and top-5 accuracy as percentages plus the average task loss. Top-5 is
// capped at the class count.
func Evaluate(ctx context.Context, d *distill.Distiller, loader *data.Loader) (top1, top5, loss float64, err error) {
	return engine.Evaluate(ctx, d, loader)
}

// CheckpointMeta is the training metadata stored in a checkpoint header.
type CheckpointMeta = serialization.CheckpointMeta

// SaveCheckpoint writes every trainable parameter plus "optimizer."-prefixed
// momentum buffers and meta to path.
func SaveCheckpoint(path string, d *distill.Distiller, opt optim.Optimizer,
	meta CheckpointMeta, modelType string) error {
	return engine.SaveCheckpoint(path, d, opt, meta, modelType)
}

// LoadCheckpoint restores parameters and optimizer state from path and
// returns the stored metadata. Files written without training metadata are
// rejected.
func LoadCheckpoint(path string, d *distill.Distiller, opt optim.Optimizer) (*CheckpointMeta, error) {
	return engine.LoadCheckpoint(path, d, opt)
}

// LoadWeights reads a checkpoint's raw tensors and training metadata without
// restoring any state. Pair it with a model's LoadStateDict to bring up a
// pretrained teacher or a network under evaluation; meta is nil when the
// file carries none.
func LoadWeights(path string) (map[string]*tensor.RawTensor, *CheckpointMeta, error) {
	return engine.LoadWeights(path)
}

// AverageMeter tracks a running weighted average over a window of updates.
type AverageMeter = engine.AverageMeter

// Reporter receives human-readable progress lines.
type Reporter = engine.Reporter

// ConsoleReporter renders INFO/TRAIN/EVAL lines with lipgloss styling.
type ConsoleReporter = engine.ConsoleReporter

// NewConsoleReporter creates a console reporter writing to out, or to
// os.Stdout when out is nil.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return engine.NewConsoleReporter(out)
}

// NopReporter discards all lines.
type NopReporter = engine.NopReporter
