package engine

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/distill/internal/data"
	"github.com/born-ml/distill/internal/distill"
	"github.com/born-ml/distill/internal/zoo"
)

func TestAverageMeter(t *testing.T) {
	var m AverageMeter
	m.Update(2, 1)
	assert.InDelta(t, 2.0, m.Avg, 1e-12)

	m.Update(4, 3)
	assert.InDelta(t, 4.0, m.Val, 1e-12)
	assert.InDelta(t, 14.0, m.Sum, 1e-12)
	assert.Equal(t, 4, m.Count)
	assert.InDelta(t, 3.5, m.Avg, 1e-12)

	m.Reset()
	assert.Equal(t, 0, m.Count)
	assert.InDelta(t, 0.0, m.Avg, 1e-12)
}

func TestConsoleReporterTags(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf)
	r.Info("starting")
	r.Train("epoch 1")
	r.Eval("top1 42")

	out := buf.String()
	assert.Contains(t, out, "[INFO] starting")
	assert.Contains(t, out, "[TRAIN] epoch 1")
	assert.Contains(t, out, "[EVAL] top1 42")
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

func TestNopReporterStaysQuiet(t *testing.T) {
	var r Reporter = NopReporter{}
	r.Info("a")
	r.Train("b")
	r.Eval("c")
}

func TestEvaluateMetrics(t *testing.T) {
	student, err := zoo.NewConvNet(zoo.ConvNetConfig{Width: 2, NumClasses: 3, InputSize: 8, Seed: 1})
	require.NoError(t, err)
	d, err := distill.New(nil, student, distill.Config{Method: distill.VanillaParams{}, TaskWeight: 1})
	require.NoError(t, err)

	ds, err := data.Synthetic(24, 3, 8, 3, 5)
	require.NoError(t, err)
	loader, err := data.NewLoader(ds, data.LoaderConfig{BatchSize: 8})
	require.NoError(t, err)

	top1, top5, loss, err := Evaluate(context.Background(), d, loader)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, top1, 0.0)
	assert.LessOrEqual(t, top1, 100.0)
	// With three classes, top-5 degrades to top-3, which every sample hits.
	assert.InDelta(t, 100.0, top5, 1e-9)
	assert.Greater(t, loss, 0.0)

	// Mode is restored for the caller.
	assert.Equal(t, distill.ModeTrain, d.Mode())
}

func TestEvaluateHonoursCancellation(t *testing.T) {
	student, err := zoo.NewConvNet(zoo.ConvNetConfig{Width: 2, NumClasses: 3, InputSize: 8, Seed: 1})
	require.NoError(t, err)
	d, err := distill.New(nil, student, distill.Config{Method: distill.VanillaParams{}, TaskWeight: 1})
	require.NoError(t, err)

	ds, err := data.Synthetic(24, 3, 8, 3, 5)
	require.NoError(t, err)
	loader, err := data.NewLoader(ds, data.LoaderConfig{BatchSize: 8})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, _, err = Evaluate(ctx, d, loader)
	require.ErrorIs(t, err, context.Canceled)
}
