// Package opt provides optimization algorithms.
package opt

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Optimizer updates network parameters based on gradients.
//
// Parameters are passed as one flattened vector covering the whole network,
// so stateful optimizers can keep per-parameter buffers aligned by index.
type Optimizer interface {
	// Step computes updated parameters and returns them in a new slice.
	Step(params, gradients []float64) []float64

	// StepInPlace updates params in-place.
	StepInPlace(params, gradients []float64)

	GetLR() float64
	SetLR(lr float64)
}

// SGD (Stochastic Gradient Descent) optimizer with optional momentum and L2 weight decay.
//
// Update rule: d = g + wd*p; v = momentum*v + d; p -= lr*v.
// With Momentum == 0 this is plain SGD.
type SGD struct {
	LearningRate float64
	Momentum     float64
	WeightDecay  float64

	velocity []float64
}

// NewSGD creates an SGD optimizer.
func NewSGD(learningRate, momentum, weightDecay float64) *SGD {
	return &SGD{
		LearningRate: learningRate,
		Momentum:     momentum,
		WeightDecay:  weightDecay,
	}
}

// Step computes updated parameters without modifying params.
// Momentum state still advances.
func (s *SGD) Step(params, gradients []float64) []float64 {
	result := make([]float64, len(params))
	copy(result, params)
	s.StepInPlace(result, gradients)
	return result
}

// StepInPlace updates params in-place.
func (s *SGD) StepInPlace(params, gradients []float64) {
	if s.Momentum == 0 && s.WeightDecay == 0 {
		floats.AddScaled(params, -s.LearningRate, gradients)
		return
	}

	if len(s.velocity) != len(params) {
		s.velocity = make([]float64, len(params))
	}

	for i := range params {
		d := gradients[i] + s.WeightDecay*params[i]
		s.velocity[i] = s.Momentum*s.velocity[i] + d
		params[i] -= s.LearningRate * s.velocity[i]
	}
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float64 { return s.LearningRate }

// SetLR sets the learning rate; schedulers use it to decay the rate.
func (s *SGD) SetLR(lr float64) { s.LearningRate = lr }

// Reset drops the momentum buffer.
func (s *SGD) Reset() { s.velocity = nil }

// ClipGradNorm rescales gradients in place so their L2 norm is at most maxNorm
// and returns the norm before clipping. A non-finite norm leaves the gradients
// untouched so divergence stays visible to the caller.
func ClipGradNorm(gradients []float64, maxNorm float64) float64 {
	total := floats.Norm(gradients, 2)
	if maxNorm <= 0 || math.IsNaN(total) || math.IsInf(total, 0) || total <= maxNorm {
		return total
	}
	coef := maxNorm / (total + 1e-6)
	if coef < 1 {
		floats.Scale(coef, gradients)
	}
	return total
}
