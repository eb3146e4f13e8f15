// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package config

import (
	"github.com/born-ml/distill/internal/config"
)

// Config is a complete experiment description: dataset, models, method,
// optimization and checkpointing.
type Config = config.Config

// Section types of Config.
type (
	DatasetConfig    = config.DatasetConfig
	ModelConfig      = config.ModelConfig
	TeacherConfig    = config.TeacherConfig
	DistillConfig    = config.DistillConfig
	TrainConfig      = config.TrainConfig
	CheckpointConfig = config.CheckpointConfig
)

// Per-method parameter sections of DistillConfig.
type (
	KDSection       = config.KDSection
	DKDSection      = config.DKDSection
	FitNetSection   = config.FitNetSection
	WeightSection   = config.WeightSection
	RKDSection      = config.RKDSection
	VIDSection      = config.VIDSection
	CRDSection      = config.CRDSection
	ReviewKDSection = config.ReviewKDSection
	KDSVDSection    = config.KDSVDSection
)

// Default returns the reference CIFAR recipe: SGD with momentum 0.9,
// multistep decay at 150/180/210 over 240 epochs, and per-method parameters
// from the original papers.
func Default() Config {
	return config.Default()
}

// Load decodes a YAML file over Default(). Keys absent from the file keep
// their default values; unknown keys are errors.
func Load(path string) (*Config, error) {
	return config.Load(path)
}

// Overrides carries command-line values that take precedence over the file.
// Zero values leave the file value alone.
type Overrides = config.Overrides
