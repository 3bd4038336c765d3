package series

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Window is the length of the rolling volatility and moving-average windows.
const Window = 20

// Feature column order of Derived.Features rows.
const (
	FeaturePriceChange = iota
	FeaturePriceChangePct
	FeatureVolatility
	FeatureMA20
	FeatureMA20Diff
	NumFeatures
)

// FeatureNames lists the auxiliary feature columns in row order.
var FeatureNames = [NumFeatures]string{
	"price_change",
	"price_change_pct",
	"volatility",
	"MA20",
	"MA20_diff",
}

// Derived holds log returns and auxiliary features aligned index-for-index
// with Dates and Price. Leading rows without enough history are dropped.
type Derived struct {
	Dates     []time.Time
	Price     []float64
	LogReturn []float64
	Features  [][NumFeatures]float64
}

// Len returns the number of aligned rows.
func (d *Derived) Len() int { return len(d.Price) }

// Derive computes ln(p[t]/p[t-1]) and the technical features for every row
// that has a full rolling window behind it.
//
//	price_change     p[t] - p[t-1]
//	price_change_pct p[t]/p[t-1] - 1
//	volatility       sample std of price_change_pct over the last Window rows
//	MA20             mean of price over the last Window rows
//	MA20_diff        p[t] - MA20
func Derive(ts *TimeSeries) (*Derived, error) {
	n := ts.Len()
	// pct change starts at 1, so a full volatility window ends at row Window.
	first := Window
	if n <= first {
		return nil, integrity(ReasonEmpty, ts.Column, "%d rows, need more than %d for rolling features", n, first)
	}

	p := ts.Prices
	pct := make([]float64, n)
	for t := 1; t < n; t++ {
		pct[t] = p[t]/p[t-1] - 1
	}

	rows := n - first
	d := &Derived{
		Dates:     make([]time.Time, rows),
		Price:     make([]float64, rows),
		LogReturn: make([]float64, rows),
		Features:  make([][NumFeatures]float64, rows),
	}
	for t := first; t < n; t++ {
		k := t - first
		ma := stat.Mean(p[t-Window+1:t+1], nil)
		d.Dates[k] = ts.Dates[t]
		d.Price[k] = p[t]
		d.LogReturn[k] = math.Log(p[t] / p[t-1])
		d.Features[k] = [NumFeatures]float64{
			FeaturePriceChange:    p[t] - p[t-1],
			FeaturePriceChangePct: pct[t],
			FeatureVolatility:     stat.StdDev(pct[t-Window+1:t+1], nil),
			FeatureMA20:           ma,
			FeatureMA20Diff:       p[t] - ma,
		}
	}

	for k := range d.LogReturn {
		if math.IsNaN(d.LogReturn[k]) || math.IsInf(d.LogReturn[k], 0) {
			return nil, integrity(ReasonNonNumeric, ts.Column, "log return at %s", d.Dates[k].Format("2006-01-02"))
		}
	}
	return d, nil
}
