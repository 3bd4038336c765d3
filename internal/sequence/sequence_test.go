package sequence

import (
	"math"
	"testing"

	"github.com/FlavioCFOliveira/rollcast/internal/series"
)

// table is an in-memory Table that records the highest index read.
type table struct {
	logret   []float64
	features [][series.NumFeatures]float64
	maxRead  int
}

func newTable(n int) *table {
	tb := &table{logret: make([]float64, n), features: make([][series.NumFeatures]float64, n), maxRead: -1}
	for i := 0; i < n; i++ {
		tb.logret[i] = float64(i)
		for k := 0; k < series.NumFeatures; k++ {
			tb.features[i][k] = float64(i*10 + k)
		}
	}
	return tb
}

func (tb *table) Len() int { return len(tb.logret) }

func (tb *table) touch(i int) {
	if i > tb.maxRead {
		tb.maxRead = i
	}
}

func (tb *table) LogReturnAt(i int) float64 {
	tb.touch(i)
	return tb.logret[i]
}

func (tb *table) FeaturesAt(i int) [series.NumFeatures]float64 {
	tb.touch(i)
	return tb.features[i]
}

func identity(width int) Scalers {
	sc := make(Scalers, width)
	for i := range sc {
		sc[i].Scale = 1
	}
	return sc
}

func TestBuildPairs(t *testing.T) {
	rows := [][]float64{{0}, {1}, {2}, {3}, {4}}
	windows, targets := Build(rows, 2)

	if len(windows) != 3 || len(targets) != 3 {
		t.Fatalf("got %d windows, %d targets, want 3", len(windows), len(targets))
	}
	for i := range windows {
		if windows[i][0] != float64(i) || windows[i][1] != float64(i+1) {
			t.Errorf("window %d = %v", i, windows[i])
		}
		if targets[i] != float64(i+2) {
			t.Errorf("target %d = %v, want %d", i, targets[i], i+2)
		}
	}
}

// Values equal their row index, so every target must exceed every value in its window.
func TestBuildNoLeakage(t *testing.T) {
	for _, lookback := range []int{1, 3, 7} {
		rows := make([][]float64, 30)
		for i := range rows {
			rows[i] = []float64{float64(i), float64(i)}
		}
		windows, targets := Build(rows, lookback)
		for i := range windows {
			for _, v := range windows[i] {
				if v >= targets[i] {
					t.Fatalf("lookback %d pair %d: window value %v not before target %v", lookback, i, v, targets[i])
				}
			}
		}
	}
}

func TestBuildFlattensTimeMajor(t *testing.T) {
	rows := [][]float64{{1, 10}, {2, 20}, {3, 30}}
	windows, targets := Build(rows, 2)
	want := []float64{1, 10, 2, 20}
	if len(windows) != 1 {
		t.Fatalf("windows = %d, want 1", len(windows))
	}
	for i := range want {
		if windows[0][i] != want[i] {
			t.Fatalf("window = %v, want %v", windows[0], want)
		}
	}
	if targets[0] != 3 {
		t.Errorf("target = %v, want 3", targets[0])
	}
}

func TestBuildEmpty(t *testing.T) {
	rows := [][]float64{{1}, {2}, {3}}
	tests := []struct {
		name     string
		lookback int
	}{
		{"equal length", 3},
		{"longer", 5},
		{"zero lookback", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, y := Build(rows, tt.lookback)
			if len(w) != 0 || len(y) != 0 {
				t.Errorf("got %d pairs, want 0", len(w))
			}
		})
	}
}

func TestModeWidth(t *testing.T) {
	if NewBuilder(LogReturnOnly).InputDim(20) != 20 {
		t.Error("log-return input dim should equal lookback")
	}
	if NewBuilder(Tabular).InputDim(20) != 20*(1+series.NumFeatures) {
		t.Error("tabular input dim wrong")
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": LogReturnOnly, "log_return": LogReturnOnly, "Tabular": Tabular} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMode("wavelet"); err == nil {
		t.Error("expected error")
	}
}

func TestWindowReadsOnlyBeforeEnd(t *testing.T) {
	for _, mode := range []Mode{LogReturnOnly, Tabular} {
		tb := newTable(50)
		b := NewBuilder(mode)
		w := b.Window(tb, 30, 5, identity(b.Width()), nil)

		if len(w) != b.InputDim(5) {
			t.Fatalf("%v: window length %d", mode, len(w))
		}
		if tb.maxRead != 29 {
			t.Errorf("%v: max index read = %d, want 29", mode, tb.maxRead)
		}
		if w[0] != 25 {
			t.Errorf("%v: first value = %v, want 25", mode, w[0])
		}
	}
}

func TestRowsMatchBuildTargets(t *testing.T) {
	tb := newTable(12)
	b := NewBuilder(Tabular)
	sc := b.FitScalers(tb, 10)
	rows := b.Rows(tb, 10, sc)
	if tb.maxRead != 9 {
		t.Errorf("max index read = %d, want 9", tb.maxRead)
	}

	windows, targets := Build(rows, 4)
	if len(windows) != 6 {
		t.Fatalf("windows = %d, want 6", len(windows))
	}
	for i := range targets {
		if math.Abs(sc.Target().Inverse(targets[i])-float64(i+4)) > 1e-9 {
			t.Errorf("target %d does not invert to log return %d", i, i+4)
		}
	}
	// Window for pair i equals Window(end=i+4).
	w := b.Window(tb, 6, 4, sc, nil)
	for j := range w {
		if math.Abs(w[j]-windows[2][j]) > 1e-12 {
			t.Fatalf("Window/Build mismatch at %d", j)
		}
	}
}
