// Package loss provides comprehensive unit tests for loss functions.
package loss

import (
	"math"
	"testing"
)

// TestMSEForward tests MSE forward pass.
func TestMSEForward(t *testing.T) {
	mse := MSE{}

	tests := []struct {
		name     string
		yPred    []float64
		yTrue    []float64
		expected float64
	}{
		{"Perfect prediction", []float64{1.0, 2.0, 3.0}, []float64{1.0, 2.0, 3.0}, 0.0},
		{"Single error", []float64{1.0, 2.0}, []float64{1.5, 2.0}, 0.125},
		{"Multiple errors", []float64{1.0, 2.0, 3.0}, []float64{0.0, 1.0, 2.0}, 1.0},
		{"Large errors", []float64{10.0}, []float64{0.0}, 100.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := mse.Forward(tt.yPred, tt.yTrue)
			if math.Abs(result-tt.expected) > 1e-12 {
				t.Errorf("MSE.Forward() = %v, want %v", result, tt.expected)
			}
		})
	}
}

// TestMSEForwardLengthMismatch tests error handling.
func TestMSEForwardLengthMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for length mismatch")
		}
	}()

	MSE{}.Forward([]float64{1.0, 2.0}, []float64{1.0})
}

// TestMSEBackward tests MSE backward pass.
func TestMSEBackward(t *testing.T) {
	grad := MSE{}.Backward([]float64{1.0, 2.0}, []float64{1.5, 2.0})
	expected := []float64{-0.5, 0.0}

	for i := range expected {
		if math.Abs(grad[i]-expected[i]) > 1e-12 {
			t.Errorf("Backward[%d] = %v, want %v", i, grad[i], expected[i])
		}
	}
}

// TestL1Loss tests L1 forward and subgradient.
func TestL1Loss(t *testing.T) {
	l1 := L1Loss{}

	if got := l1.Forward([]float64{1, 2, 3}, []float64{0, 2, 5}); math.Abs(got-1.0) > 1e-12 {
		t.Errorf("L1Loss.Forward() = %v, want 1", got)
	}

	grad := make([]float64, 3)
	l1.BackwardInPlace([]float64{1, 2, 3}, []float64{0, 2, 5}, grad)
	expected := []float64{1.0 / 3, 0, -1.0 / 3}
	for i := range expected {
		if math.Abs(grad[i]-expected[i]) > 1e-12 {
			t.Errorf("grad[%d] = %v, want %v", i, grad[i], expected[i])
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		kind    string
		want    string
		wantErr bool
	}{
		{"SEL", KindSquared, false},
		{"sel", KindSquared, false},
		{"AEL", KindAbsolute, false},
		{"MAE", KindAbsolute, false},
		{"Huber", "", true},
	}

	for _, tt := range tests {
		l, err := Parse(tt.kind)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Parse(%q) expected error", tt.kind)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.kind, err)
		}
		if got := Kind(l); got != tt.want {
			t.Errorf("Kind(Parse(%q)) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
