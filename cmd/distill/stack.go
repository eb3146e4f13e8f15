package main

import (
	"fmt"

	"github.com/born-ml/distill/config"
	"github.com/born-ml/distill/data"
	"github.com/born-ml/distill/distill"
	"github.com/born-ml/distill/engine"
	"github.com/born-ml/distill/optim"
	"github.com/born-ml/distill/zoo"
)

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return &cfg, nil
	}
	return config.Load(path)
}

// loadEvalSet returns the held-out split and the class count.
func loadEvalSet(cfg *config.Config) (*data.Dataset, int, error) {
	switch cfg.Dataset.Name {
	case "cifar10":
		ds, err := data.LoadCIFAR10(cfg.Dataset.Dir, false)
		return ds, 10, err
	case "cifar100":
		ds, err := data.LoadCIFAR100(cfg.Dataset.Dir, false)
		return ds, 100, err
	default: // synthetic, validated upstream
		ds, err := data.Synthetic(cfg.Dataset.SyntheticSamples, 3, 32,
			cfg.Dataset.SyntheticClasses, cfg.Train.Seed+1)
		return ds, cfg.Dataset.SyntheticClasses, err
	}
}

func loadDatasets(cfg *config.Config) (train, val *data.Dataset, classes int, err error) {
	val, classes, err = loadEvalSet(cfg)
	if err != nil {
		return nil, nil, 0, err
	}
	switch cfg.Dataset.Name {
	case "cifar10":
		train, err = data.LoadCIFAR10(cfg.Dataset.Dir, true)
	case "cifar100":
		train, err = data.LoadCIFAR100(cfg.Dataset.Dir, true)
	default:
		train, err = data.Synthetic(cfg.Dataset.SyntheticSamples, 3, 32, classes, cfg.Train.Seed)
	}
	if err != nil {
		return nil, nil, 0, err
	}
	return train, val, classes, nil
}

func buildStudent(cfg *config.Config, classes int) (*zoo.ConvNet, error) {
	return zoo.New(cfg.Student.Arch, classes, cfg.Train.Seed)
}

// buildTeacher returns nil for the vanilla baseline. Without a checkpoint the
// teacher runs from random init, which only makes sense for smoke tests, so
// the reporter calls it out.
func buildTeacher(cfg *config.Config, classes int, method distill.Method, rep engine.Reporter) (distill.Model, error) {
	if method.Kind() == distill.KindVanilla {
		return nil, nil
	}
	net, err := zoo.New(cfg.Teacher.Arch, classes, cfg.Train.Seed+1)
	if err != nil {
		return nil, err
	}
	if cfg.Teacher.Checkpoint == "" {
		rep.Info("teacher runs from random init; pass -teacher-checkpoint for a real run")
		return net, nil
	}
	state, _, err := engine.LoadWeights(cfg.Teacher.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to load teacher weights: %w", err)
	}
	if err := net.LoadStateDict(state); err != nil {
		return nil, fmt.Errorf("teacher weights do not fit %s: %w", cfg.Teacher.Arch, err)
	}
	rep.Info(fmt.Sprintf("loaded teacher weights from %s", cfg.Teacher.Checkpoint))
	return net, nil
}

func buildOptimizer(d *distill.Distiller, cfg *config.Config) (optim.Optimizer, error) {
	params := d.TrainableParameters()
	if cfg.Train.Optimizer == "dot" {
		return optim.NewDOT(params, optim.DOTConfig{
			LR:          cfg.Train.LR,
			Momentum:    cfg.Train.Momentum,
			Delta:       cfg.Train.Delta,
			Beta:        cfg.Train.Beta,
			WeightDecay: cfg.Train.WeightDecay,
		})
	}
	return optim.NewSGD(params, optim.SGDConfig{
		LR:          cfg.Train.LR,
		Momentum:    cfg.Train.Momentum,
		WeightDecay: cfg.Train.WeightDecay,
	})
}

func buildSchedule(cfg *config.Config, batchesPerEpoch int) engine.Schedule {
	if cfg.Train.Schedule == "cosine" {
		return engine.CosineSchedule{
			Base:            cfg.Train.LR,
			Floor:           cfg.Train.CosineFloor,
			WarmupEpochs:    cfg.Train.WarmupEpochs,
			TotalEpochs:     cfg.Train.Epochs,
			BatchesPerEpoch: batchesPerEpoch,
		}
	}
	return engine.MultiStepSchedule{
		Base:       cfg.Train.LR,
		Milestones: cfg.Train.Milestones,
		Gamma:      cfg.Train.Gamma,
	}
}
