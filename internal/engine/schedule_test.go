package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstantSchedule(t *testing.T) {
	s := ConstantSchedule{Base: 0.1}
	assert.InDelta(t, 0.1, s.LR(1, 0), 1e-9)
	assert.InDelta(t, 0.1, s.LR(200, 500), 1e-9)
}

func TestMultiStepSchedule(t *testing.T) {
	s := MultiStepSchedule{Base: 0.05, Milestones: []int{150, 180, 210}, Gamma: 0.1}

	assert.InDelta(t, 0.05, s.LR(1, 0), 1e-9)
	// A milestone epoch itself still runs at the old rate.
	assert.InDelta(t, 0.05, s.LR(150, 0), 1e-9)
	assert.InDelta(t, 0.005, s.LR(151, 0), 1e-7)
	assert.InDelta(t, 0.0005, s.LR(181, 0), 1e-8)
	assert.InDelta(t, 0.00005, s.LR(211, 0), 1e-9)
	assert.InDelta(t, 0.00005, s.LR(240, 0), 1e-9)
}

func TestMultiStepIgnoresBatchIndex(t *testing.T) {
	s := MultiStepSchedule{Base: 0.05, Milestones: []int{10}, Gamma: 0.1}
	assert.Equal(t, s.LR(5, 0), s.LR(5, 999))
}

func TestCosineScheduleWarmup(t *testing.T) {
	s := CosineSchedule{Base: 1, Floor: 0, WarmupEpochs: 1, TotalEpochs: 3, BatchesPerEpoch: 4}

	// Linear ramp over the first epoch's four batches.
	assert.InDelta(t, 0.25, s.LR(1, 0), 1e-6)
	assert.InDelta(t, 0.50, s.LR(1, 1), 1e-6)
	assert.InDelta(t, 1.00, s.LR(1, 3), 1e-6)

	// Cosine phase starts at the base rate.
	assert.InDelta(t, 1.0, s.LR(2, 0), 1e-6)
	// progress 2/8: (cos(pi/4)+1)/2
	assert.InDelta(t, 0.85355339, s.LR(2, 2), 1e-6)
	// progress 7/8: (cos(7pi/8)+1)/2
	assert.InDelta(t, 0.03806023, s.LR(3, 3), 1e-6)
}

func TestCosineScheduleFloor(t *testing.T) {
	s := CosineSchedule{Base: 0.1, Floor: 0.1, WarmupEpochs: 0, TotalEpochs: 2, BatchesPerEpoch: 2}

	assert.InDelta(t, 0.1, s.LR(1, 0), 1e-6)
	// progress 3/4: (cos(3pi/4)+1)/2 * (0.1-0.01) + 0.01
	assert.InDelta(t, 0.0231802, s.LR(2, 1), 1e-6)
}

func TestCosineScheduleMonotoneAfterWarmup(t *testing.T) {
	s := CosineSchedule{Base: 0.5, Floor: 0.01, WarmupEpochs: 1, TotalEpochs: 5, BatchesPerEpoch: 10}

	prev := s.LR(2, 0)
	for epoch := 2; epoch <= 5; epoch++ {
		for batch := 0; batch < 10; batch++ {
			lr := s.LR(epoch, batch)
			assert.LessOrEqual(t, lr, prev, "epoch %d batch %d", epoch, batch)
			prev = lr
		}
	}
	// The last batch sits just above the floor.
	assert.Greater(t, prev, s.Base*s.Floor)
	assert.Less(t, prev, s.Base*s.Floor*1.2)
}
