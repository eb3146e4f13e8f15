package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/distill/internal/data"
	"github.com/born-ml/distill/internal/distill"
	"github.com/born-ml/distill/internal/optim"
	"github.com/born-ml/distill/internal/serialization"
	"github.com/born-ml/distill/internal/tensor"
	"github.com/born-ml/distill/internal/zoo"
)

type recordReporter struct {
	infos  []string
	trains []string
	evals  []string
}

func (r *recordReporter) Info(m string)  { r.infos = append(r.infos, m) }
func (r *recordReporter) Train(m string) { r.trains = append(r.trains, m) }
func (r *recordReporter) Eval(m string)  { r.evals = append(r.evals, m) }

func testLoaders(t *testing.T) (train, val *data.Loader) {
	t.Helper()
	trainSet, err := data.Synthetic(32, 3, 8, 3, 7)
	require.NoError(t, err)
	valSet, err := data.Synthetic(16, 3, 8, 3, 11)
	require.NoError(t, err)

	train, err = data.NewLoader(trainSet, data.LoaderConfig{BatchSize: 8, Shuffle: true, Seed: 3})
	require.NoError(t, err)
	val, err = data.NewLoader(valSet, data.LoaderConfig{BatchSize: 8})
	require.NoError(t, err)
	return train, val
}

func testDistiller(t *testing.T, method distill.Method) *distill.Distiller {
	t.Helper()
	student, err := zoo.NewConvNet(zoo.ConvNetConfig{Width: 2, NumClasses: 3, InputSize: 8, Seed: 1})
	require.NoError(t, err)

	var teacher distill.Model
	if method.Kind() != distill.KindVanilla {
		wide, err := zoo.NewConvNet(zoo.ConvNetConfig{Width: 4, NumClasses: 3, InputSize: 8, Seed: 2})
		require.NoError(t, err)
		teacher = wide
	}

	d, err := distill.New(teacher, student, distill.Config{Method: method, TaskWeight: 1, Seed: 5})
	require.NoError(t, err)
	return d
}

func TestTrainerFitWithCheckpoints(t *testing.T) {
	dir := t.TempDir()
	d := testDistiller(t, distill.KDParams{T: 4, Weight: 0.9})
	opt, err := optim.NewSGD(d.TrainableParameters(), optim.SGDConfig{LR: 0.01, Momentum: 0.9})
	require.NoError(t, err)
	train, val := testLoaders(t)
	rep := &recordReporter{}

	tr, err := NewTrainer(d, opt, ConstantSchedule{Base: 0.01}, train, val, rep, TrainerConfig{
		Epochs: 2, LogEvery: 2, CheckpointDir: dir,
		Method: "kd", Optimizer: "sgd", ModelType: "testnet",
	})
	require.NoError(t, err)
	require.NoError(t, tr.Fit(context.Background()))

	assert.Len(t, rep.evals, 2)
	assert.NotEmpty(t, rep.trains)
	assert.NotEmpty(t, rep.infos)
	assert.GreaterOrEqual(t, tr.Best(), 0.0)

	state, header, err := serialization.Load(filepath.Join(dir, "latest.born"))
	require.NoError(t, err)
	require.NotNil(t, header.Checkpoint)
	assert.Equal(t, 2, header.Checkpoint.Epoch)
	assert.Equal(t, "kd", header.Checkpoint.Method)
	assert.Equal(t, "sgd", header.Checkpoint.Optimizer)
	assert.Equal(t, "testnet", header.ModelType)
	assert.Contains(t, state, "fc.weight")
	assert.Contains(t, state, "optimizer.velocity.0")

	// Epoch 1 is always at least as good as the initial zero, so best exists.
	_, _, err = serialization.Load(filepath.Join(dir, "best.born"))
	require.NoError(t, err)
}

func TestTrainerUpdatesParameters(t *testing.T) {
	d := testDistiller(t, distill.VanillaParams{})
	opt, err := optim.NewSGD(d.TrainableParameters(), optim.SGDConfig{LR: 0.05})
	require.NoError(t, err)
	train, val := testLoaders(t)

	tr, err := NewTrainer(d, opt, ConstantSchedule{Base: 0.05}, train, val, nil, TrainerConfig{Epochs: 1})
	require.NoError(t, err)

	before := d.TrainableParameters()[0].Tensor().Clone()
	require.NoError(t, tr.Fit(context.Background()))
	assert.NotEqual(t, before.Data(), d.TrainableParameters()[0].Tensor().Data())
}

func TestTrainerResumeRestoresRun(t *testing.T) {
	dir := t.TempDir()
	newStack := func(epochs int) (*Trainer, *distill.Distiller, optim.Optimizer) {
		d := testDistiller(t, distill.KDParams{T: 4, Weight: 0.9})
		opt, err := optim.NewDOT(d.TrainableParameters(), optim.DOTConfig{LR: 0.01, Momentum: 0.9, Delta: 0.05})
		require.NoError(t, err)
		train, val := testLoaders(t)
		tr, err := NewTrainer(d, opt, ConstantSchedule{Base: 0.01}, train, val, nil, TrainerConfig{
			Epochs: epochs, LogEvery: 10, CheckpointDir: dir,
			Method: "kd", Optimizer: "dot", ModelType: "testnet",
		})
		require.NoError(t, err)
		return tr, d, opt
	}

	trA, dA, optA := newStack(2)
	require.NoError(t, trA.Fit(context.Background()))

	trB, dB, optB := newStack(3)
	require.NoError(t, trB.Resume(filepath.Join(dir, "latest.born")))

	// Every parameter matches the trained run bit for bit.
	paramsA := dA.TrainableParameters()
	paramsB := dB.TrainableParameters()
	require.Equal(t, len(paramsA), len(paramsB))
	for i := range paramsA {
		assert.Equal(t, paramsA[i].Tensor().Data(), paramsB[i].Tensor().Data(), paramsA[i].Name())
	}

	// Both DOT velocity buffers came back too.
	stateA := optA.StateDict()
	stateB := optB.StateDict()
	require.Equal(t, len(stateA), len(stateB))
	for key, buf := range stateA {
		require.Contains(t, stateB, key)
		assert.Equal(t, buf.Data(), stateB[key].Data(), key)
	}

	// The resumed run continues with epoch 3 and re-checkpoints.
	require.NoError(t, trB.Fit(context.Background()))
	_, header, err := serialization.Load(filepath.Join(dir, "latest.born"))
	require.NoError(t, err)
	require.NotNil(t, header.Checkpoint)
	assert.Equal(t, 3, header.Checkpoint.Epoch)
}

func TestTrainerHonoursCancellation(t *testing.T) {
	d := testDistiller(t, distill.VanillaParams{})
	opt, err := optim.NewSGD(d.TrainableParameters(), optim.SGDConfig{LR: 0.01})
	require.NoError(t, err)
	train, val := testLoaders(t)

	tr, err := NewTrainer(d, opt, ConstantSchedule{Base: 0.01}, train, val, nil, TrainerConfig{Epochs: 100})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, tr.Fit(ctx), context.Canceled)
}

func TestNewTrainerRejectsBadWiring(t *testing.T) {
	d := testDistiller(t, distill.VanillaParams{})
	opt, err := optim.NewSGD(d.TrainableParameters(), optim.SGDConfig{LR: 0.01})
	require.NoError(t, err)
	train, val := testLoaders(t)
	sched := ConstantSchedule{Base: 0.01}
	good := TrainerConfig{Epochs: 1}

	_, err = NewTrainer(nil, opt, sched, train, val, nil, good)
	assert.Error(t, err)
	_, err = NewTrainer(d, nil, sched, train, val, nil, good)
	assert.Error(t, err)
	_, err = NewTrainer(d, opt, nil, train, val, nil, good)
	assert.Error(t, err)
	_, err = NewTrainer(d, opt, sched, nil, val, nil, good)
	assert.Error(t, err)
	_, err = NewTrainer(d, opt, sched, train, nil, nil, good)
	assert.Error(t, err)
	_, err = NewTrainer(d, opt, sched, train, val, nil, TrainerConfig{Epochs: 0})
	assert.Error(t, err)
}

func TestLoadCheckpointRejectsWeightsOnlyFile(t *testing.T) {
	d := testDistiller(t, distill.VanillaParams{})
	opt, err := optim.NewSGD(d.TrainableParameters(), optim.SGDConfig{LR: 0.01})
	require.NoError(t, err)

	state := make(map[string]*tensor.RawTensor)
	for _, p := range d.TrainableParameters() {
		state[p.Name()] = p.Tensor()
	}
	path := filepath.Join(t.TempDir(), "weights.born")
	require.NoError(t, serialization.Save(path, state, nil))

	_, err = LoadCheckpoint(path, d, opt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no training metadata")
}

func TestLoadWeightsReadsWithoutRestoring(t *testing.T) {
	d := testDistiller(t, distill.VanillaParams{})
	opt, err := optim.NewSGD(d.TrainableParameters(), optim.SGDConfig{LR: 0.01})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ck.born")
	meta := serialization.CheckpointMeta{Epoch: 4, BestAccuracy: 61.5, Method: "vanilla", Optimizer: "sgd"}
	require.NoError(t, SaveCheckpoint(path, d, opt, meta, "testnet"))

	state, got, err := LoadWeights(path)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 4, got.Epoch)
	assert.InDelta(t, 61.5, got.BestAccuracy, 1e-9)
	assert.Contains(t, state, "fc.weight")

	// A fresh same-shape network accepts the tensors wholesale; the
	// optimizer entries ride along and are ignored.
	net, err := zoo.NewConvNet(zoo.ConvNetConfig{Width: 2, NumClasses: 3, InputSize: 8, Seed: 9})
	require.NoError(t, err)
	require.NoError(t, net.LoadStateDict(state))
}

func TestLoadCheckpointRejectsMismatchedModel(t *testing.T) {
	dir := t.TempDir()
	d := testDistiller(t, distill.VanillaParams{})
	opt, err := optim.NewSGD(d.TrainableParameters(), optim.SGDConfig{LR: 0.01})
	require.NoError(t, err)

	path := filepath.Join(dir, "ck.born")
	meta := serialization.CheckpointMeta{Epoch: 1, Method: "vanilla", Optimizer: "sgd"}
	require.NoError(t, SaveCheckpoint(path, d, opt, meta, "testnet"))

	wide, err := zoo.NewConvNet(zoo.ConvNetConfig{Width: 3, NumClasses: 3, InputSize: 8, Seed: 1})
	require.NoError(t, err)
	dWide, err := distill.New(nil, wide, distill.Config{Method: distill.VanillaParams{}, TaskWeight: 1})
	require.NoError(t, err)
	optWide, err := optim.NewSGD(dWide.TrainableParameters(), optim.SGDConfig{LR: 0.01})
	require.NoError(t, err)

	_, err = LoadCheckpoint(path, dWide, optWide)
	require.Error(t, err)
}
