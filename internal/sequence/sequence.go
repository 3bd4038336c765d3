// Package sequence turns a derived series into fixed-length lookback windows
// paired with the next-step log return.
package sequence

import (
	"fmt"
	"strings"

	"github.com/FlavioCFOliveira/rollcast/internal/scale"
	"github.com/FlavioCFOliveira/rollcast/internal/series"
)

// Mode selects which columns feed a window.
type Mode int

const (
	// LogReturnOnly uses the standardized log return alone.
	LogReturnOnly Mode = iota
	// Tabular appends the standardized technical features to each time step.
	Tabular
)

func (m Mode) String() string {
	switch m {
	case LogReturnOnly:
		return "log_return"
	case Tabular:
		return "tabular"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "log_return" or "tabular".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "log_return", "logreturn", "log_return_only":
		return LogReturnOnly, nil
	case "tabular", "features":
		return Tabular, nil
	default:
		return 0, fmt.Errorf("unknown feature mode %q", s)
	}
}

// Table is the read access the builder needs. Row i may only depend on data
// at or before i.
type Table interface {
	Len() int
	LogReturnAt(i int) float64
	FeaturesAt(i int) [series.NumFeatures]float64
}

// Scalers holds one transform per row column; column 0 is the log return.
type Scalers []scale.Standard

// Target returns the transform of the log-return column.
func (s Scalers) Target() scale.Standard { return s[0] }

// Builder produces windows in a fixed Mode.
type Builder struct {
	mode Mode
}

// NewBuilder returns a Builder for mode.
func NewBuilder(mode Mode) Builder {
	return Builder{mode: mode}
}

// Mode returns the builder's mode.
func (b Builder) Mode() Mode { return b.mode }

// Width returns the number of values per time step.
func (b Builder) Width() int {
	if b.mode == Tabular {
		return 1 + series.NumFeatures
	}
	return 1
}

// InputDim returns the flattened window length for lookback.
func (b Builder) InputDim(lookback int) int {
	return lookback * b.Width()
}

// FitScalers fits one transform per column on rows [0, n).
func (b Builder) FitScalers(t Table, n int) Scalers {
	cols := make([][]float64, b.Width())
	for c := range cols {
		cols[c] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		cols[0][i] = t.LogReturnAt(i)
		if b.mode == Tabular {
			f := t.FeaturesAt(i)
			for k := 0; k < series.NumFeatures; k++ {
				cols[1+k][i] = f[k]
			}
		}
	}

	sc := make(Scalers, len(cols))
	for c := range cols {
		sc[c] = scale.Fit(cols[c])
	}
	return sc
}

// Row writes the standardized row i into dst and returns it.
func (b Builder) Row(t Table, i int, sc Scalers, dst []float64) []float64 {
	dst = dst[:b.Width()]
	dst[0] = sc[0].Apply(t.LogReturnAt(i))
	if b.mode == Tabular {
		f := t.FeaturesAt(i)
		for k := 0; k < series.NumFeatures; k++ {
			dst[1+k] = sc[1+k].Apply(f[k])
		}
	}
	return dst
}

// Rows returns the standardized rows [0, n).
func (b Builder) Rows(t Table, n int, sc Scalers) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = b.Row(t, i, sc, make([]float64, b.Width()))
	}
	return rows
}

// Window writes the flattened rows [end-lookback, end) into dst and returns it.
// It reads nothing at or after end.
func (b Builder) Window(t Table, end, lookback int, sc Scalers, dst []float64) []float64 {
	w := b.Width()
	if cap(dst) < lookback*w {
		dst = make([]float64, lookback*w)
	}
	dst = dst[:lookback*w]
	for j := 0; j < lookback; j++ {
		b.Row(t, end-lookback+j, sc, dst[j*w:(j+1)*w])
	}
	return dst
}

// Build pairs every window rows[i:i+lookback], flattened in (time, column)
// order, with column 0 of rows[i+lookback]. Fewer than lookback+1 rows, or a
// lookback below 1, yields no pairs.
func Build(rows [][]float64, lookback int) (windows [][]float64, targets []float64) {
	if lookback < 1 || len(rows) <= lookback {
		return nil, nil
	}

	count := len(rows) - lookback
	windows = make([][]float64, count)
	targets = make([]float64, count)
	for i := 0; i < count; i++ {
		var flat []float64
		for _, r := range rows[i : i+lookback] {
			flat = append(flat, r...)
		}
		windows[i] = flat
		targets[i] = rows[i+lookback][0]
	}
	return windows, targets
}
