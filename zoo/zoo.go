// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package zoo

import (
	"github.com/born-ml/distill/internal/zoo"
)

// ConvNet is a three-stage convolutional classifier with per-stage feature
// taps and a pooled embedding, implementing distill.Model.
type ConvNet = zoo.ConvNet

// ConvNetConfig sizes a ConvNet. Width is the first stage's channel count;
// later stages double it.
type ConvNetConfig = zoo.ConvNetConfig

// NewConvNet builds a ConvNet with seeded Xavier initialization.
//
// Example:
//
//	net, err := zoo.NewConvNet(zoo.ConvNetConfig{
//	    Width:      16,
//	    NumClasses: 10,
//	    Seed:       42,
//	})
func NewConvNet(config ConvNetConfig) (*ConvNet, error) {
	return zoo.NewConvNet(config)
}

// New builds a registered architecture by name: "cifarnet8" (student
// capacity) or "cifarnet16" (teacher capacity).
func New(arch string, numClasses int, seed int64) (*ConvNet, error) {
	return zoo.New(arch, numClasses, seed)
}
