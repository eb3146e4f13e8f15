// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package data

import (
	"github.com/born-ml/distill/internal/data"
)

// Dataset is an in-memory labeled image collection with fixed geometry.
type Dataset = data.Dataset

// NewDataset creates an empty dataset with the given image geometry.
func NewDataset(channels, size, classes int) (*Dataset, error) {
	return data.NewDataset(channels, size, classes)
}

// LoadCIFAR10 reads the CIFAR-10 binary release from dir. train=true reads
// the five training batches, train=false the test batch. Images come out
// normalized with the standard CIFAR-10 per-channel mean and std.
func LoadCIFAR10(dir string, train bool) (*Dataset, error) {
	return data.LoadCIFAR10(dir, train)
}

// LoadCIFAR100 reads the CIFAR-100 binary release from dir, using the fine
// (100-class) labels.
func LoadCIFAR100(dir string, train bool) (*Dataset, error) {
	return data.LoadCIFAR100(dir, train)
}

// Synthetic builds a deterministic dataset of Gaussian class blobs. Same
// arguments, same bytes; useful for tests and smoke runs without data on
// disk.
func Synthetic(samples, channels, size, classes int, seed int64) (*Dataset, error) {
	return data.Synthetic(samples, channels, size, classes, seed)
}

// Batch is one training batch: Images [N, C, S, S] float32 and Labels [N]
// int64.
type Batch = data.Batch

// LoaderConfig controls batching, shuffling and prefetch depth.
type LoaderConfig = data.LoaderConfig

// Loader iterates a Dataset in batches. Each Batches call is one epoch.
type Loader = data.Loader

// NewLoader validates the configuration and builds a Loader.
func NewLoader(ds *Dataset, config LoaderConfig) (*Loader, error) {
	return data.NewLoader(ds, config)
}
