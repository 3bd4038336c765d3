package scale

import (
	"math"
	"testing"
)

func TestFit(t *testing.T) {
	s := Fit([]float64{1, 2, 3, 4})
	if s.Mean != 2.5 {
		t.Errorf("Mean = %v, want 2.5", s.Mean)
	}
	// Population std of 1..4 is sqrt(1.25).
	if math.Abs(s.Scale-math.Sqrt(1.25)) > 1e-12 {
		t.Errorf("Scale = %v, want %v", s.Scale, math.Sqrt(1.25))
	}
}

func TestTransformStandardizes(t *testing.T) {
	values := []float64{0.01, -0.02, 0.005, 0.03, -0.01, 0.0}
	s := Fit(values)
	z := make([]float64, len(values))
	for i, v := range values {
		z[i] = s.Apply(v)
	}

	var sum, sq float64
	for _, v := range z {
		sum += v
		sq += v * v
	}
	n := float64(len(z))
	if math.Abs(sum/n) > 1e-12 {
		t.Errorf("mean of standardized = %v, want 0", sum/n)
	}
	if math.Abs(sq/n-1) > 1e-12 {
		t.Errorf("variance of standardized = %v, want 1", sq/n)
	}
}

func TestInverseRoundTrip(t *testing.T) {
	s := Fit([]float64{3, 7, 11, -2})
	for _, x := range []float64{-5, 0, 0.25, 1e3} {
		if got := s.Inverse(s.Apply(x)); math.Abs(got-x) > 1e-9 {
			t.Errorf("Inverse(Apply(%v)) = %v", x, got)
		}
	}
}

func TestFitDegenerate(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		mean   float64
	}{
		{"constant", []float64{4, 4, 4}, 4},
		{"single", []float64{2}, 2},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Fit(tt.values)
			if s.Scale != 1 {
				t.Errorf("Scale = %v, want 1", s.Scale)
			}
			if s.Mean != tt.mean {
				t.Errorf("Mean = %v, want %v", s.Mean, tt.mean)
			}
			if v := s.Apply(10); math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("Apply not finite: %v", v)
			}
		})
	}
}
