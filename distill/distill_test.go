// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package distill_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/distill/data"
	"github.com/born-ml/distill/distill"
	"github.com/born-ml/distill/optim"
	"github.com/born-ml/distill/tensor"
	"github.com/born-ml/distill/zoo"
)

// TestPublicTrainingStep drives one full training step through the public
// packages alone: zoo models, synthetic data, a KD distiller and a DOT step.
func TestPublicTrainingStep(t *testing.T) {
	teacher, err := zoo.NewConvNet(zoo.ConvNetConfig{Width: 4, NumClasses: 3, InputSize: 8, Seed: 2})
	require.NoError(t, err)
	student, err := zoo.NewConvNet(zoo.ConvNetConfig{Width: 2, NumClasses: 3, InputSize: 8, Seed: 1})
	require.NoError(t, err)

	d, err := distill.New(teacher, student, distill.Config{
		Method:     distill.KDParams{T: 4, Weight: 0.9},
		TaskWeight: 0.1,
		Seed:       7,
	})
	require.NoError(t, err)

	ds, err := data.Synthetic(8, 3, 8, 3, 5)
	require.NoError(t, err)
	loader, err := data.NewLoader(ds, data.LoaderConfig{BatchSize: 8})
	require.NoError(t, err)

	opt, err := optim.NewDOT(d.TrainableParameters(), optim.DOTConfig{
		LR:       0.01,
		Momentum: 0.9,
		Delta:    0.05,
	})
	require.NoError(t, err)

	d.BeginEpoch(1)
	batches := 0
	for batch := range loader.Batches(context.Background()) {
		logits, terms, err := d.ForwardTrain(batch.Images, batch.Labels)
		require.NoError(t, err)
		require.True(t, logits.Shape().Equal(tensor.Shape{8, 3}))
		require.Contains(t, terms, "task")
		require.Contains(t, terms, "kd")
		require.Greater(t, terms.Total(), float32(0))

		task, kd, err := d.Backward()
		require.NoError(t, err)
		require.NotEmpty(t, task)
		require.NotEmpty(t, kd)
		require.NoError(t, opt.Step(task, kd))
		batches++
	}
	require.Equal(t, 1, batches)
}
