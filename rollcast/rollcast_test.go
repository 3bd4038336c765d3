package rollcast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeSeries(t *testing.T, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("date,rate\n")
	day := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%s,%.4f\n", day.AddDate(0, 0, i).Format("2006-01-02"), 108+2*math.Sin(float64(i)/12))
	}
	path := filepath.Join(t.TempDir(), "usd_jpy.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func tinySpace() Space {
	return Space{
		Lookbacks:     []int{5, 100},
		Hidden:        [][]int{{4}},
		Losses:        []string{"SEL"},
		Activations:   []string{"tanh"},
		LearningRates: []float64{0.01},
		Epochs:        []int{10},
		BatchSizes:    []int{16},
	}
}

func TestRun(t *testing.T) {
	ts, err := LoadCSV(writeSeries(t, 120), LoadOptions{TargetCol: "rate"})
	if err != nil {
		t.Fatal(err)
	}
	d, err := Derive(ts)
	if err != nil {
		t.Fatal(err)
	}

	outcomes, err := Run(context.Background(), d, tinySpace(), 20, Options{Workers: 1, Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	// lookback 100 does not fit the 80 rows before the test window
	if len(outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(outcomes))
	}
	o := outcomes[0]
	if o.Status != Success {
		t.Fatalf("status = %v (%v)", o.Status, o.Err)
	}
	if len(o.Predicted) != 19 {
		t.Errorf("steps = %d, want 19", len(o.Predicted))
	}
	if best, ok := Best(outcomes); !ok || best.Label != o.Label {
		t.Errorf("best = %q, %v", best.Label, ok)
	}
}

func TestRunNoFeasibleConfiguration(t *testing.T) {
	ts, err := LoadCSV(writeSeries(t, 60), LoadOptions{TargetCol: "rate"})
	if err != nil {
		t.Fatal(err)
	}
	d, err := Derive(ts)
	if err != nil {
		t.Fatal(err)
	}
	space := tinySpace()
	space.Lookbacks = []int{30}
	if _, err := Run(context.Background(), d, space, 20, Options{}); !errors.Is(err, ErrNoConfigurations) {
		t.Errorf("err = %v, want ErrNoConfigurations", err)
	}
}

func TestRunTooShort(t *testing.T) {
	ts, err := LoadCSV(writeSeries(t, 40), LoadOptions{TargetCol: "rate"})
	if err != nil {
		t.Fatal(err)
	}
	d, err := Derive(ts)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Run(context.Background(), d, tinySpace(), 20, Options{}); err == nil {
		t.Error("expected length error")
	}
}
