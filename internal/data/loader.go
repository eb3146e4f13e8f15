package data

import (
	"context"
	"fmt"
	"math/rand"
)

// LoaderConfig controls batch assembly.
type LoaderConfig struct {
	BatchSize int
	Shuffle   bool  // reshuffle sample order every epoch
	DropLast  bool  // drop a trailing partial batch
	Seed      int64 // shuffle seed
	Prefetch  int   // batches assembled ahead of the consumer (default: 2)
}

// Loader iterates a dataset in batches, one epoch per Batches call. A
// loader serves one goroutine at a time; the shuffle order is a
// deterministic function of the seed and the number of epochs drawn.
type Loader struct {
	ds     *Dataset
	config LoaderConfig
	rng    *rand.Rand
}

// NewLoader creates a batching loader over the dataset.
func NewLoader(ds *Dataset, config LoaderConfig) (*Loader, error) {
	if ds.Len() == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}
	if config.BatchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", config.BatchSize)
	}
	if config.Prefetch == 0 {
		config.Prefetch = 2
	}
	if config.Prefetch < 0 {
		return nil, fmt.Errorf("prefetch depth must be non-negative, got %d", config.Prefetch)
	}
	return &Loader{
		ds:     ds,
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)), //nolint:gosec // reproducible shuffling, not crypto
	}, nil
}

// NumBatches returns the batches one epoch yields.
func (l *Loader) NumBatches() int {
	n := l.ds.Len() / l.config.BatchSize
	if !l.config.DropLast && l.ds.Len()%l.config.BatchSize != 0 {
		n++
	}
	return n
}

// Batches streams one epoch. A prefetch goroutine assembles batches ahead of
// the consumer and stops promptly when ctx is cancelled; the channel closes
// when the epoch ends either way.
func (l *Loader) Batches(ctx context.Context) <-chan Batch {
	var order []int
	if l.config.Shuffle {
		order = l.rng.Perm(l.ds.Len())
	} else {
		order = make([]int, l.ds.Len())
		for i := range order {
			order[i] = i
		}
	}

	ch := make(chan Batch, l.config.Prefetch)
	go func() {
		defer close(ch)
		for start := 0; start < len(order); start += l.config.BatchSize {
			end := min(start+l.config.BatchSize, len(order))
			if end-start < l.config.BatchSize && l.config.DropLast {
				return
			}

			select {
			case <-ctx.Done():
				return
			default:
			}

			select {
			case ch <- l.ds.Gather(order[start:end]):
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
