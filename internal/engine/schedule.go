package engine

import "math"

// Schedule yields the learning rate for a position in the run. Epochs are
// 1-based; batch is the 0-based index within the epoch.
type Schedule interface {
	LR(epoch, batch int) float32
}

// ConstantSchedule keeps the base rate for the whole run.
type ConstantSchedule struct {
	Base float32
}

// LR implements Schedule.
func (s ConstantSchedule) LR(int, int) float32 { return s.Base }

// MultiStepSchedule multiplies the base rate by Gamma once for every
// milestone the current epoch has passed. An epoch equal to a milestone has
// not passed it yet.
type MultiStepSchedule struct {
	Base       float32
	Milestones []int // ascending, 1-based epochs
	Gamma      float32
}

// LR implements Schedule.
func (s MultiStepSchedule) LR(epoch, _ int) float32 {
	lr := float64(s.Base)
	for _, m := range s.Milestones {
		if epoch > m {
			lr *= float64(s.Gamma)
		}
	}
	return float32(lr)
}

// CosineSchedule ramps linearly up to the base rate over the warmup epochs,
// then follows a half cosine from the base rate down to Base*Floor. Both
// phases move at batch granularity.
type CosineSchedule struct {
	Base            float32
	Floor           float32 // final rate as a fraction of Base
	WarmupEpochs    int
	TotalEpochs     int
	BatchesPerEpoch int
}

// LR implements Schedule.
func (s CosineSchedule) LR(epoch, batch int) float32 {
	global := (epoch-1)*s.BatchesPerEpoch + batch
	warmup := s.WarmupEpochs * s.BatchesPerEpoch
	if global < warmup {
		return s.Base / float32(warmup) * float32(global+1)
	}

	span := s.BatchesPerEpoch * (s.TotalEpochs - s.WarmupEpochs)
	last := float64(s.Base) * float64(s.Floor)
	progress := float64(global-warmup) / float64(span)
	return float32((math.Cos(progress*math.Pi)+1)*0.5*(float64(s.Base)-last) + last)
}
