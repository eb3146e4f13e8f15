// Package engine drives training runs: the epoch loop, learning-rate
// schedules, validation, progress reporting, and checkpointing. It owns no
// numerics beyond metric averaging; losses and updates stay in distill and
// optim.
package engine

// AverageMeter tracks a running weighted average. Metrics accumulate in
// float64 so long runs do not drift.
type AverageMeter struct {
	Val   float64 // last observation
	Sum   float64
	Count int
	Avg   float64
}

// Update folds in a value observed over n samples.
func (m *AverageMeter) Update(val float64, n int) {
	m.Val = val
	m.Sum += val * float64(n)
	m.Count += n
	m.Avg = m.Sum / float64(m.Count)
}

// Reset clears the meter.
func (m *AverageMeter) Reset() {
	*m = AverageMeter{}
}
