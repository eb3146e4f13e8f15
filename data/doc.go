// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package data provides the input pipeline: CIFAR-10/100 binary readers
// with standard per-channel normalization, a deterministic synthetic
// dataset for tests and smoke runs, and a shuffling, prefetching batch
// loader.
//
// # Basic Usage
//
//	import "github.com/born-ml/distill/data"
//
//	train, err := data.LoadCIFAR10("/data/cifar-10-batches-bin", true)
//	if err != nil {
//	    return err
//	}
//	loader, err := data.NewLoader(train, data.LoaderConfig{
//	    BatchSize: 64,
//	    Shuffle:   true,
//	    Seed:      42,
//	})
//	if err != nil {
//	    return err
//	}
//
//	for batch := range loader.Batches(ctx) {
//	    _ = batch.Images // [N, 3, 32, 32] float32, normalized
//	    _ = batch.Labels // [N] int64
//	}
//
// Each Batches call runs one epoch with a fresh shuffle. The channel closes
// when the epoch ends or ctx is canceled; check ctx.Err() after the loop to
// tell the two apart.
package data
