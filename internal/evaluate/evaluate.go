// Package evaluate scores price forecasts. It never fails: degenerate input
// produces sentinel metrics so a grid search can still rank every run.
package evaluate

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds the aggregate error metrics of one forecast.
// MAPE is a percentage.
type Summary struct {
	MSE  float64
	RMSE float64
	MAE  float64
	MAPE float64
	R2   float64
}

// Worst is the sentinel for a run that produced no usable output.
func Worst() Summary {
	inf := math.Inf(1)
	return Summary{MSE: inf, RMSE: inf, MAE: inf, MAPE: inf, R2: math.Inf(-1)}
}

// Finite reports whether RMSE is a usable ranking key.
func (s Summary) Finite() bool {
	return !math.IsNaN(s.RMSE) && !math.IsInf(s.RMSE, 0)
}

const (
	mapeMask    = 1e-7
	zeroPredTol = 1e-8
	penalty     = 1e12
)

// Evaluate computes MSE, RMSE, MAE, MAPE and R² of pred against truth.
//
// Empty or mismatched input returns Worst. Non-finite predictions are
// replaced before scoring: NaN by the mean of truth, +Inf by twice the
// maximum of truth (or 1e12 when that maximum is not positive) and -Inf by
// twice the minimum (or -1e12 when not negative). True values with magnitude
// at most 1e-7 are left out of MAPE; if none remain, MAPE is 0 when every
// prediction is within 1e-8 of zero and +Inf otherwise.
func Evaluate(truth, pred []float64) Summary {
	n := len(truth)
	if n == 0 || n != len(pred) {
		return Worst()
	}

	pred = fillNonFinite(truth, pred)

	var sse, sae float64
	for i := range truth {
		d := truth[i] - pred[i]
		sse += d * d
		sae += math.Abs(d)
	}
	mse := sse / float64(n)

	return Summary{
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		MAE:  sae / float64(n),
		MAPE: mape(truth, pred),
		R2:   r2(truth, pred, sse),
	}
}

// fillNonFinite returns pred, or a patched copy when it holds NaN or ±Inf.
func fillNonFinite(truth, pred []float64) []float64 {
	clean := true
	for _, v := range pred {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			clean = false
			break
		}
	}
	if clean {
		return pred
	}

	nanFill, posFill, negFill := 0.0, penalty, -penalty
	if allFinite(truth) {
		nanFill = stat.Mean(truth, nil)
		if hi := floats.Max(truth); hi > 0 {
			posFill = hi * 2
		}
		if lo := floats.Min(truth); lo < 0 {
			negFill = lo * 2
		}
	}

	out := make([]float64, len(pred))
	for i, v := range pred {
		switch {
		case math.IsNaN(v):
			out[i] = nanFill
		case math.IsInf(v, 1):
			out[i] = posFill
		case math.IsInf(v, -1):
			out[i] = negFill
		default:
			out[i] = v
		}
	}
	return out
}

func allFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func mape(truth, pred []float64) float64 {
	var sum float64
	kept := 0
	for i, t := range truth {
		if math.Abs(t) > mapeMask {
			sum += math.Abs((t - pred[i]) / t)
			kept++
		}
	}

	if kept == 0 {
		for _, p := range pred {
			if math.Abs(p) > zeroPredTol {
				return math.Inf(1)
			}
		}
		return 0
	}

	m := sum / float64(kept) * 100
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return math.Inf(1)
	}
	return m
}

// r2 is 1 - SSE/SST. A constant truth scores 1 for a perfect fit and 0 otherwise.
func r2(truth, pred []float64, sse float64) float64 {
	mean := stat.Mean(truth, nil)
	var sst float64
	for _, t := range truth {
		d := t - mean
		sst += d * d
	}
	if sst == 0 {
		if sse == 0 {
			return 1
		}
		return 0
	}
	return 1 - sse/sst
}
