// Package loss provides the regression loss functions selectable per configuration.
package loss

import (
	"fmt"
	"math"
	"strings"
)

// Loss kinds as named in run configurations.
const (
	KindSquared  = "SEL" // squared error loss
	KindAbsolute = "AEL" // absolute error loss
)

// BackwardInPlacer is an optional interface for loss functions that support
// in-place gradient computation to avoid allocations.
type BackwardInPlacer interface {
	BackwardInPlace(yPred, yTrue, grad []float64)
}

// Loss is a loss function with derivative.
type Loss interface {
	// Forward computes the loss between predicted and true values.
	Forward(yPred, yTrue []float64) float64

	// Backward computes the gradient of the loss w.r.t. prediction.
	// This creates a new slice and should be avoided in hot loops.
	Backward(yPred, yTrue []float64) []float64
}

// Parse returns the Loss for a configuration kind ("SEL" or "AEL").
func Parse(kind string) (Loss, error) {
	switch strings.ToUpper(strings.TrimSpace(kind)) {
	case KindSquared, "MSE":
		return MSE{}, nil
	case KindAbsolute, "MAE", "L1":
		return L1Loss{}, nil
	default:
		return nil, fmt.Errorf("unsupported loss type: %q", kind)
	}
}

// Kind returns the configuration kind of a loss.
func Kind(l Loss) string {
	if _, ok := l.(L1Loss); ok {
		return KindAbsolute
	}
	return KindSquared
}

// MSE (Mean Squared Error) loss.
type MSE struct{}

// Forward computes mean squared error: (1/n) * sum((y_pred - y_true)^2)
func (m MSE) Forward(yPred, yTrue []float64) float64 {
	n := len(yPred)
	if n != len(yTrue) {
		panic("MSE: prediction and target must have same length")
	}

	var sum float64
	for i := 0; i < n; i++ {
		diff := yPred[i] - yTrue[i]
		sum += diff * diff
	}
	return sum / float64(n)
}

// Backward computes gradient: dL/dy_pred = (2/n) * (y_pred - y_true)
func (m MSE) Backward(yPred, yTrue []float64) []float64 {
	grad := make([]float64, len(yPred))
	m.BackwardInPlace(yPred, yTrue, grad)
	return grad
}

// BackwardInPlace computes gradient and stores it in the grad slice.
func (m MSE) BackwardInPlace(yPred, yTrue, grad []float64) {
	n := len(yPred)
	if n != len(yTrue) || n != len(grad) {
		panic("MSE: slices must have same length")
	}

	factor := 2.0 / float64(n)
	for i := 0; i < n; i++ {
		grad[i] = factor * (yPred[i] - yTrue[i])
	}
}

// L1Loss (Mean Absolute Error) loss.
type L1Loss struct{}

// Forward computes mean absolute error: (1/n) * sum(|y_pred - y_true|)
func (l L1Loss) Forward(yPred, yTrue []float64) float64 {
	n := len(yPred)
	if n != len(yTrue) {
		panic("L1Loss: prediction and target must have same length")
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yPred[i] - yTrue[i])
	}
	return sum / float64(n)
}

// Backward computes gradient for L1 loss: dL/dy_pred = (1/n) * sign(y_pred - y_true)
func (l L1Loss) Backward(yPred, yTrue []float64) []float64 {
	grad := make([]float64, len(yPred))
	l.BackwardInPlace(yPred, yTrue, grad)
	return grad
}

// BackwardInPlace computes gradient and stores it in the grad slice.
// The subgradient at zero difference is 0.
func (l L1Loss) BackwardInPlace(yPred, yTrue, grad []float64) {
	n := len(yPred)
	if n != len(yTrue) || n != len(grad) {
		panic("L1Loss: slices must have same length")
	}

	factor := 1.0 / float64(n)
	for i := 0; i < n; i++ {
		diff := yPred[i] - yTrue[i]
		switch {
		case diff > 0:
			grad[i] = factor
		case diff < 0:
			grad[i] = -factor
		default:
			grad[i] = 0
		}
	}
}
