// Package scale provides the standardization transform applied to log returns.
package scale

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Standard maps x to (x - Mean) / Scale. It is fit once and then only applied.
type Standard struct {
	Mean  float64
	Scale float64
}

// Fit estimates mean and population standard deviation of values.
// A zero or undefined deviation yields Scale 1 so Apply stays finite.
func Fit(values []float64) Standard {
	if len(values) == 0 {
		return Standard{Scale: 1}
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if std == 0 || math.IsNaN(std) || math.IsInf(std, 0) {
		std = 1
	}
	return Standard{Mean: mean, Scale: std}
}

// Apply standardizes a single value.
func (s Standard) Apply(x float64) float64 {
	return (x - s.Mean) / s.Scale
}

// Inverse undoes Apply.
func (s Standard) Inverse(x float64) float64 {
	return x*s.Scale + s.Mean
}
