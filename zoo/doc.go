// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package zoo provides reference convolutional networks for CIFAR-scale
// image classification, implementing the distill.Model contract.
//
// The registry is closed: "cifarnet16" is the teacher-capacity network,
// "cifarnet8" the student-capacity one. Both are three-stage VGG-style
// convnets with feature taps on the second convolution of each stage,
// pre-activation, plus a pooled embedding before the classifier head.
//
// # Basic Usage
//
//	import "github.com/born-ml/distill/zoo"
//
//	teacher, err := zoo.New("cifarnet16", 100, 1)
//	if err != nil {
//	    return err
//	}
//	student, err := zoo.New("cifarnet8", 100, 2)
//	if err != nil {
//	    return err
//	}
//
// StateDict/LoadStateDict round-trip network weights through the checkpoint
// container; LoadStateDict ignores unknown keys so a full training
// checkpoint can be loaded into a bare network for evaluation.
package zoo
