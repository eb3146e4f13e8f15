// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package config provides YAML experiment configuration for distillation
// runs.
//
// A Config starts from Default(), the reference CIFAR recipe; Load decodes
// a YAML file over those defaults, so a file only states what it changes.
// Unknown keys are rejected. Validate returns distill.ConfigurationError
// values; BuildMethod turns the distill section into a method selection.
//
// # Basic Usage
//
//	import "github.com/born-ml/distill/config"
//
//	cfg, err := config.Load("experiment.yaml")
//	if err != nil {
//	    return err
//	}
//	cfg.ApplyOverrides(config.Overrides{Epochs: 10})
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	method, err := cfg.BuildMethod()
//
// A minimal experiment file:
//
//	dataset:
//	  name: cifar100
//	  dir: /data/cifar-100-binary
//	distill:
//	  method: dkd
//	train:
//	  epochs: 240
package config
