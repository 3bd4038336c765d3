// Package opt provides comprehensive unit tests for optimizers.
package opt

import (
	"math"
	"testing"
)

// TestSGDStep tests plain SGD step computation.
func TestSGDStep(t *testing.T) {
	sgd := &SGD{LearningRate: 0.1}

	params := []float64{1.0, 2.0, 3.0}
	gradients := []float64{0.1, 0.2, 0.3}

	updated := sgd.Step(params, gradients)

	expected := []float64{0.99, 1.98, 2.97}
	for i := range updated {
		if math.Abs(updated[i]-expected[i]) > 1e-10 {
			t.Errorf("updated[%d] = %v, want %v", i, updated[i], expected[i])
		}
	}
	if params[0] != 1.0 {
		t.Error("Step should not modify input slice")
	}
}

// TestSGDStepInPlace tests in-place SGD update.
func TestSGDStepInPlace(t *testing.T) {
	sgd := &SGD{LearningRate: 0.1}

	params := []float64{1.0, 2.0, 3.0}
	sgd.StepInPlace(params, []float64{0.1, 0.2, 0.3})

	expected := []float64{0.99, 1.98, 2.97}
	for i := range params {
		if math.Abs(params[i]-expected[i]) > 1e-10 {
			t.Errorf("params[%d] = %v, want %v", i, params[i], expected[i])
		}
	}
}

// TestSGDMomentum checks the velocity recurrence over two steps.
func TestSGDMomentum(t *testing.T) {
	sgd := NewSGD(0.1, 0.9, 0)

	params := []float64{1.0}
	sgd.StepInPlace(params, []float64{1.0}) // v = 1, p = 0.9
	sgd.StepInPlace(params, []float64{1.0}) // v = 1.9, p = 0.71

	if math.Abs(params[0]-0.71) > 1e-12 {
		t.Errorf("params[0] = %v, want 0.71", params[0])
	}

	sgd.Reset()
	sgd.StepInPlace(params, []float64{1.0})
	if math.Abs(params[0]-0.61) > 1e-12 {
		t.Errorf("after Reset params[0] = %v, want 0.61", params[0])
	}
}

// TestSGDWeightDecay checks that decay pulls parameters toward zero with zero gradient.
func TestSGDWeightDecay(t *testing.T) {
	sgd := NewSGD(0.1, 0, 0.5)

	params := []float64{2.0, -2.0}
	sgd.StepInPlace(params, []float64{0, 0})

	if math.Abs(params[0]-1.9) > 1e-12 || math.Abs(params[1]+1.9) > 1e-12 {
		t.Errorf("params = %v, want [1.9 -1.9]", params)
	}
}

// TestSGDZeroLearningRate tests zero learning rate behavior.
func TestSGDZeroLearningRate(t *testing.T) {
	sgd := NewSGD(0, 0.9, 0)

	params := []float64{1.0, 2.0, 3.0}
	updated := sgd.Step(params, []float64{1.0, 1.0, 1.0})

	for i := range params {
		if math.Abs(updated[i]-params[i]) > 1e-10 {
			t.Errorf("With zero LR, param[%d] should not change: %v vs %v", i, updated[i], params[i])
		}
	}
}

// TestSGDConvergence minimizes f(x) = (x-3)^2.
func TestSGDConvergence(t *testing.T) {
	sgd := NewSGD(0.05, 0.9, 0)
	params := []float64{0.0}

	for i := 0; i < 500; i++ {
		grad := []float64{2 * (params[0] - 3)}
		sgd.StepInPlace(params, grad)
	}

	if math.Abs(params[0]-3) > 1e-4 {
		t.Errorf("converged to %v, want 3", params[0])
	}
}

func TestOptimizerInterface(t *testing.T) {
	var o Optimizer = NewSGD(0.01, 0, 0)
	o.SetLR(0.5)
	if o.GetLR() != 0.5 {
		t.Errorf("GetLR() = %v, want 0.5", o.GetLR())
	}
}

func TestClipGradNorm(t *testing.T) {
	grads := []float64{3.0, 4.0}
	norm := ClipGradNorm(grads, 1.0)

	if math.Abs(norm-5.0) > 1e-12 {
		t.Errorf("norm = %v, want 5", norm)
	}
	clipped := math.Hypot(grads[0], grads[1])
	if math.Abs(clipped-1.0) > 1e-5 {
		t.Errorf("clipped norm = %v, want ~1", clipped)
	}
	if math.Abs(grads[0]/grads[1]-0.75) > 1e-12 {
		t.Error("clipping must preserve direction")
	}
}

func TestClipGradNormBelowCap(t *testing.T) {
	grads := []float64{0.3, 0.4}
	ClipGradNorm(grads, 1.0)

	if grads[0] != 0.3 || grads[1] != 0.4 {
		t.Errorf("grads under the cap changed: %v", grads)
	}
}

func TestClipGradNormNaN(t *testing.T) {
	grads := []float64{math.NaN(), 1.0}
	norm := ClipGradNorm(grads, 1.0)

	if !math.IsNaN(norm) {
		t.Errorf("norm = %v, want NaN", norm)
	}
	if grads[1] != 1.0 {
		t.Error("non-finite norm should leave gradients untouched")
	}
}
