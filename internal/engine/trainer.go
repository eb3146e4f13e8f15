package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/born-ml/distill/internal/data"
	"github.com/born-ml/distill/internal/distill"
	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/optim"
	"github.com/born-ml/distill/internal/serialization"
)

// TrainerConfig sizes a run.
type TrainerConfig struct {
	Epochs        int
	LogEvery      int    // batches between TRAIN lines
	CheckpointDir string // empty disables checkpointing
	Method        string // recorded in checkpoint metadata
	Optimizer     string // recorded in checkpoint metadata
	ModelType     string // student architecture, recorded in file headers
}

// Trainer owns the distillation loop: schedule the rate, forward both
// networks, decompose the gradients, step the optimizer, validate, and
// checkpoint. It mutates parameters only through the optimizer.
type Trainer struct {
	distiller *distill.Distiller
	optimizer optim.Optimizer
	schedule  Schedule
	train     *data.Loader
	val       *data.Loader
	reporter  Reporter
	cfg       TrainerConfig

	startEpoch int
	best       float64
}

// NewTrainer wires a run together. A nil reporter runs silently.
func NewTrainer(d *distill.Distiller, opt optim.Optimizer, sched Schedule,
	train, val *data.Loader, rep Reporter, cfg TrainerConfig) (*Trainer, error) {
	if d == nil {
		return nil, &distill.ConfigurationError{Field: "distiller", Value: nil, Reason: "distiller is required"}
	}
	if opt == nil {
		return nil, &distill.ConfigurationError{Field: "optimizer", Value: nil, Reason: "optimizer is required"}
	}
	if sched == nil {
		return nil, &distill.ConfigurationError{Field: "schedule", Value: nil, Reason: "schedule is required"}
	}
	if train == nil || val == nil {
		return nil, &distill.ConfigurationError{Field: "loaders", Value: nil,
			Reason: "train and validation loaders are required"}
	}
	if cfg.Epochs < 1 {
		return nil, &distill.ConfigurationError{Field: "Epochs", Value: cfg.Epochs, Reason: "epochs must be >= 1"}
	}
	if cfg.LogEvery < 1 {
		cfg.LogEvery = 50
	}
	if rep == nil {
		rep = NopReporter{}
	}
	if cfg.CheckpointDir != "" {
		if err := os.MkdirAll(cfg.CheckpointDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	return &Trainer{
		distiller:  d,
		optimizer:  opt,
		schedule:   sched,
		train:      train,
		val:        val,
		reporter:   rep,
		cfg:        cfg,
		startEpoch: 1,
	}, nil
}

// Resume restores parameters, optimizer buffers, the epoch counter, and the
// best accuracy from a checkpoint. Fit then continues with the next epoch.
func (t *Trainer) Resume(path string) error {
	meta, err := LoadCheckpoint(path, t.distiller, t.optimizer)
	if err != nil {
		return err
	}
	t.startEpoch = meta.Epoch + 1
	t.best = meta.BestAccuracy
	t.reporter.Info(fmt.Sprintf("resumed %s: epoch %d done, best top1 %.3f", path, meta.Epoch, meta.BestAccuracy))
	return nil
}

// Best returns the best validation top-1 accuracy seen so far.
func (t *Trainer) Best() float64 { return t.best }

// Fit runs the remaining epochs. Cancelling the context stops the run at the
// next batch boundary and returns the context's error.
func (t *Trainer) Fit(ctx context.Context) error {
	t.reporter.Info(fmt.Sprintf("training method=%s optimizer=%s epochs %d..%d",
		t.cfg.Method, t.cfg.Optimizer, t.startEpoch, t.cfg.Epochs))

	for epoch := t.startEpoch; epoch <= t.cfg.Epochs; epoch++ {
		if err := t.runEpoch(ctx, epoch); err != nil {
			return err
		}

		top1, top5, loss, err := Evaluate(ctx, t.distiller, t.val)
		if err != nil {
			return err
		}
		isBest := top1 >= t.best
		if isBest {
			t.best = top1
		}
		t.reporter.Eval(fmt.Sprintf("epoch %d/%d top1 %.3f top5 %.3f loss %.4f best %.3f",
			epoch, t.cfg.Epochs, top1, top5, loss, t.best))

		if err := t.checkpoint(epoch, isBest); err != nil {
			return err
		}
	}

	t.reporter.Info(fmt.Sprintf("finished: best top1 %.3f", t.best))
	return nil
}

func (t *Trainer) runEpoch(ctx context.Context, epoch int) error {
	t.distiller.BeginEpoch(epoch)
	t.distiller.SetMode(distill.ModeTrain)

	numBatches := t.train.NumBatches()
	var mLoss, mTop1 AverageMeter
	bidx := 0
	for batch := range t.train.Batches(ctx) {
		lr := t.schedule.LR(epoch, bidx)
		t.optimizer.SetLR(lr)

		logits, terms, err := t.distiller.ForwardTrain(batch.Images, batch.Labels)
		if err != nil {
			return fmt.Errorf("epoch %d batch %d: %w", epoch, bidx, err)
		}
		task, kd, err := t.distiller.Backward()
		if err != nil {
			return fmt.Errorf("epoch %d batch %d: %w", epoch, bidx, err)
		}
		if err := t.optimizer.Step(task, kd); err != nil {
			return fmt.Errorf("epoch %d batch %d: %w", epoch, bidx, err)
		}

		n := batch.Images.Shape()[0]
		mLoss.Update(float64(terms.Total()), n)
		mTop1.Update(float64(nn.Accuracy(logits, batch.Labels)), n)

		if (bidx+1)%t.cfg.LogEvery == 0 || bidx+1 == numBatches {
			t.reporter.Train(fmt.Sprintf("epoch %d/%d batch %d/%d lr %.5f loss %.4f top1 %.2f",
				epoch, t.cfg.Epochs, bidx+1, numBatches, lr, mLoss.Avg, mTop1.Avg))
		}
		bidx++
	}
	// The loader closes its channel on cancellation, so a finished loop can
	// still mean an aborted epoch.
	return ctx.Err()
}

func (t *Trainer) checkpoint(epoch int, isBest bool) error {
	if t.cfg.CheckpointDir == "" {
		return nil
	}
	meta := serialization.CheckpointMeta{
		Epoch:        epoch,
		BestAccuracy: t.best,
		Method:       t.cfg.Method,
		Optimizer:    t.cfg.Optimizer,
	}
	latest := filepath.Join(t.cfg.CheckpointDir, "latest.born")
	if err := SaveCheckpoint(latest, t.distiller, t.optimizer, meta, t.cfg.ModelType); err != nil {
		return err
	}
	if isBest {
		best := filepath.Join(t.cfg.CheckpointDir, "best.born")
		if err := SaveCheckpoint(best, t.distiller, t.optimizer, meta, t.cfg.ModelType); err != nil {
			return err
		}
	}
	return nil
}
