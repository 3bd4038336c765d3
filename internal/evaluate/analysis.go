package evaluate

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RollingWindow returns the window RollingRMSE uses for n points:
// a tenth of n, clamped to [1, 20].
func RollingWindow(n int) int {
	w := n / 10
	if w > 20 {
		w = 20
	}
	if w < 1 {
		w = 1
	}
	return w
}

// RollingRMSE returns the RMSE of every contiguous window of RollingWindow(n)
// points. It is empty when the series is not longer than the window or the
// inputs differ in length.
func RollingRMSE(truth, pred []float64) []float64 {
	n := len(truth)
	if n != len(pred) {
		return nil
	}
	w := RollingWindow(n)
	if n <= w {
		return nil
	}

	out := make([]float64, 0, n-w+1)
	for k := 0; k+w <= n; k++ {
		var sse float64
		for i := k; i < k+w; i++ {
			d := truth[i] - pred[i]
			sse += d * d
		}
		out = append(out, math.Sqrt(sse/float64(w)))
	}
	return out
}

// ErrorStats describes the distribution of pred - truth.
type ErrorStats struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Errors returns the per-step forecast error pred - truth.
func Errors(truth, pred []float64) []float64 {
	if len(truth) != len(pred) {
		return nil
	}
	errs := make([]float64, len(truth))
	floats.SubTo(errs, pred, truth)
	return errs
}

// Describe summarizes the forecast errors. Mismatched or empty input
// yields a zero Count and NaN statistics.
func Describe(truth, pred []float64) ErrorStats {
	errs := Errors(truth, pred)
	if len(errs) == 0 {
		nan := math.NaN()
		return ErrorStats{Mean: nan, StdDev: nan, Min: nan, Max: nan}
	}
	mean, std := stat.MeanStdDev(errs, nil)
	if len(errs) == 1 {
		std = 0
	}
	return ErrorStats{
		Count:  len(errs),
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(errs),
		Max:    floats.Max(errs),
	}
}
