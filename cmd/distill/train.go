package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/born-ml/distill/config"
	"github.com/born-ml/distill/data"
	"github.com/born-ml/distill/distill"
	"github.com/born-ml/distill/engine"
)

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML experiment file (empty uses the reference recipe)")
	dataDir := fs.String("data-dir", "", "override dataset directory")
	dataName := fs.String("dataset", "", "override dataset name (cifar10, cifar100, synthetic)")
	batchSize := fs.Int("batch-size", 0, "override batch size")
	epochs := fs.Int("epochs", 0, "override epoch count")
	seed := fs.Int64("seed", 0, "override PRNG seed")
	lr := fs.Float64("lr", 0, "override base learning rate")
	method := fs.String("method", "", "override distillation method")
	optimizer := fs.String("optimizer", "", "override optimizer (sgd, dot)")
	ckptDir := fs.String("checkpoint-dir", "", "override checkpoint directory")
	resume := fs.String("resume", "", "checkpoint to continue from")
	teacherCkpt := fs.String("teacher-checkpoint", "", "pretrained teacher weights")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	cfg.ApplyOverrides(config.Overrides{
		DataDir:       *dataDir,
		DataName:      *dataName,
		BatchSize:     *batchSize,
		Epochs:        *epochs,
		Seed:          *seed,
		LR:            float32(*lr),
		Method:        *method,
		Optimizer:     *optimizer,
		CheckpointDir: *ckptDir,
		Resume:        *resume,
		TeacherCkpt:   *teacherCkpt,
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return train(ctx, cfg)
}

func train(ctx context.Context, cfg *config.Config) error {
	rep := engine.NewConsoleReporter(nil)

	trainSet, valSet, classes, err := loadDatasets(cfg)
	if err != nil {
		return err
	}
	trainLoader, err := data.NewLoader(trainSet, data.LoaderConfig{
		BatchSize: cfg.Dataset.BatchSize,
		Shuffle:   true,
		Seed:      cfg.Train.Seed,
	})
	if err != nil {
		return err
	}
	valLoader, err := data.NewLoader(valSet, data.LoaderConfig{BatchSize: cfg.Dataset.BatchSize})
	if err != nil {
		return err
	}
	rep.Info(fmt.Sprintf("dataset %s: %d train batches, %d val batches",
		cfg.Dataset.Name, trainLoader.NumBatches(), valLoader.NumBatches()))

	method, err := cfg.BuildMethod()
	if err != nil {
		return err
	}

	student, err := buildStudent(cfg, classes)
	if err != nil {
		return err
	}
	teacher, err := buildTeacher(cfg, classes, method, rep)
	if err != nil {
		return err
	}

	d, err := distill.New(teacher, student, distill.Config{
		Method:     method,
		TaskWeight: cfg.Distill.TaskWeight,
		Seed:       cfg.Train.Seed,
	})
	if err != nil {
		return err
	}

	opt, err := buildOptimizer(d, cfg)
	if err != nil {
		return err
	}

	trainer, err := engine.NewTrainer(d, opt, buildSchedule(cfg, trainLoader.NumBatches()),
		trainLoader, valLoader, rep, engine.TrainerConfig{
			Epochs:        cfg.Train.Epochs,
			LogEvery:      cfg.Train.LogEvery,
			CheckpointDir: cfg.Checkpoint.Dir,
			Method:        cfg.Distill.Method,
			Optimizer:     cfg.Train.Optimizer,
			ModelType:     cfg.Student.Arch,
		})
	if err != nil {
		return err
	}
	if cfg.Checkpoint.Resume != "" {
		if err := trainer.Resume(cfg.Checkpoint.Resume); err != nil {
			return err
		}
	}
	return trainer.Fit(ctx)
}
