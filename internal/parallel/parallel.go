// Package parallel provides chunked goroutine helpers for the CPU kernels.
//
// Convolution, pooling, and the batched loss kernels all iterate over
// independent (sample, channel) work items; these helpers split such loops
// across workers without allocating per-item goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how loops are split across goroutines.
type Config struct {
	Enabled      bool // run loops concurrently when true
	NumWorkers   int  // goroutines to fan out to
	MinChunkSize int  // below this many items the loop stays sequential
}

// DefaultConfig sizes the worker pool to the machine.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// Serial returns a config that forces sequential execution. Useful in tests
// and for gradient code paths that must stay deterministic.
func Serial() Config {
	return Config{Enabled: false}
}

// For executes f(i) for i in [0, n). Work is split into contiguous chunks,
// one goroutine per chunk; small loops run inline on the calling goroutine.
// f must be safe to call concurrently for distinct i.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || n < cfg.MinChunkSize {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunk := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForBatch flattens a batch*channels loop into a single For call. This is
// the iteration pattern of every NCHW kernel in the backend.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	For(batch*channels, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
