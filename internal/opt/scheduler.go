package opt

import "math"

// Scheduler defines the interface for learning rate schedulers.
type Scheduler interface {
	Step()
	StepWithLoss(loss float64)
	GetLR() float64
}

// ReduceLROnPlateau reduces learning rate when a metric has stopped improving.
type ReduceLROnPlateau struct {
	optimizer Optimizer
	factor    float64
	patience  int
	threshold float64
	minLR     float64

	bestLoss   float64
	badEpochs  int
	reductions int
}

// NewReduceLROnPlateau multiplies the optimizer's rate by factor once patience
// consecutive epochs pass without the loss improving by more than threshold.
func NewReduceLROnPlateau(optimizer Optimizer, factor float64, patience int, threshold float64, minLR float64) *ReduceLROnPlateau {
	return &ReduceLROnPlateau{
		optimizer: optimizer,
		factor:    factor,
		patience:  patience,
		threshold: threshold,
		minLR:     minLR,
		bestLoss:  math.Inf(1),
	}
}

// Step is a no-op; this scheduler is driven by StepWithLoss.
func (s *ReduceLROnPlateau) Step() {}

// StepWithLoss counts the epoch as bad unless loss beats the best seen by
// more than threshold. A NaN loss is always bad. The rate never drops below
// minLR.
func (s *ReduceLROnPlateau) StepWithLoss(loss float64) {
	if loss < s.bestLoss-s.threshold {
		s.bestLoss = loss
		s.badEpochs = 0
		return
	}
	s.badEpochs++
	if s.patience <= 0 || s.badEpochs < s.patience {
		return
	}
	s.badEpochs = 0

	s.optimizer.SetLR(math.Max(s.optimizer.GetLR()*s.factor, s.minLR))
	s.reductions++
}

func (s *ReduceLROnPlateau) GetLR() float64 {
	return s.optimizer.GetLR()
}

// Reductions returns how many times the rate has been reduced.
func (s *ReduceLROnPlateau) Reductions() int {
	return s.reductions
}
