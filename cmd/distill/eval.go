package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/born-ml/distill/config"
	"github.com/born-ml/distill/data"
	"github.com/born-ml/distill/distill"
	"github.com/born-ml/distill/engine"
	"github.com/born-ml/distill/zoo"
)

func runEval(args []string) error {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML experiment file (empty uses the reference recipe)")
	ckpt := fs.String("checkpoint", "", "checkpoint to evaluate (required)")
	arch := fs.String("arch", "", "override student architecture")
	dataDir := fs.String("data-dir", "", "override dataset directory")
	dataName := fs.String("dataset", "", "override dataset name (cifar10, cifar100, synthetic)")
	batchSize := fs.Int("batch-size", 0, "override batch size")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ckpt == "" {
		return errors.New("eval needs -checkpoint")
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	cfg.ApplyOverrides(config.Overrides{
		DataDir:   *dataDir,
		DataName:  *dataName,
		BatchSize: *batchSize,
	})
	if *arch != "" {
		cfg.Student.Arch = *arch
	}
	// Evaluation never builds a teacher.
	cfg.Distill.Method = "vanilla"
	if err := cfg.Validate(); err != nil {
		return err
	}

	valSet, classes, err := loadEvalSet(cfg)
	if err != nil {
		return err
	}
	loader, err := data.NewLoader(valSet, data.LoaderConfig{BatchSize: cfg.Dataset.BatchSize})
	if err != nil {
		return err
	}

	student, err := zoo.New(cfg.Student.Arch, classes, cfg.Train.Seed)
	if err != nil {
		return err
	}
	state, meta, err := engine.LoadWeights(*ckpt)
	if err != nil {
		return err
	}
	if err := student.LoadStateDict(state); err != nil {
		return fmt.Errorf("checkpoint does not fit %s: %w", cfg.Student.Arch, err)
	}

	d, err := distill.New(nil, student, distill.Config{
		Method:     distill.VanillaParams{},
		TaskWeight: 1,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	top1, top5, loss, err := engine.Evaluate(ctx, d, loader)
	if err != nil {
		return err
	}

	rep := engine.NewConsoleReporter(nil)
	if meta != nil {
		rep.Info(fmt.Sprintf("checkpoint %s: method=%s optimizer=%s epoch=%d best=%.3f",
			*ckpt, meta.Method, meta.Optimizer, meta.Epoch, meta.BestAccuracy))
	}
	rep.Eval(fmt.Sprintf("%s on %s: top1 %.3f top5 %.3f loss %.4f",
		cfg.Student.Arch, cfg.Dataset.Name, top1, top5, loss))
	return nil
}
