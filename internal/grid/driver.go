package grid

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/FlavioCFOliveira/rollcast/internal/evaluate"
	"github.com/FlavioCFOliveira/rollcast/internal/forecast"
	"github.com/FlavioCFOliveira/rollcast/internal/logger"
	"github.com/FlavioCFOliveira/rollcast/internal/sequence"
	"github.com/FlavioCFOliveira/rollcast/internal/series"
)

// PredLen is the forecast horizon. Only one-step forecasts are supported.
const PredLen = 1

// ErrNoConfigurations is returned when every lookback was infeasible.
var ErrNoConfigurations = errors.New("no feasible configurations")

// CheckLength fails with a DataIntegrityError when n rows cannot hold a
// test window of testSize plus the forecast horizon.
func CheckLength(n, testSize int) error {
	if n <= testSize+PredLen {
		return &series.DataIntegrityError{
			Reason: series.ReasonTooShort,
			Detail: fmt.Sprintf("%d rows cannot hold a test window of %d plus a %d-step forecast", n, testSize, PredLen),
		}
	}
	return nil
}

// Driver runs configurations over one series on a pool of workers. Each
// configuration gets its own model and random source; runs share nothing.
type Driver struct {
	Engine   *forecast.Engine
	Source   forecast.Source
	TestSize int
	Mode     sequence.Mode
	// Workers defaults to runtime.NumCPU().
	Workers int
	// Timeout bounds a single configuration; zero means no limit.
	Timeout time.Duration
	Seed    int64
	// HistoryDir, when set, receives <label>/history_<label>.csv per fit.
	HistoryDir string
	Log        *logger.Logger
	// OnOutcome, if set, is called once per finished configuration from a
	// single goroutine.
	OnOutcome func(Outcome)
}

type indexed struct {
	idx     int
	outcome Outcome
}

// Run executes every configuration and returns the outcomes in input order.
// A canceled ctx marks the configurations not yet finished as Canceled.
func (d *Driver) Run(ctx context.Context, configs []Configuration) []Outcome {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	workers := d.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(configs) {
		workers = len(configs)
	}

	jobs := make(chan int)
	results := make(chan indexed)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results <- indexed{idx: idx, outcome: d.runOne(ctx, configs[idx], log)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range configs {
			jobs <- i
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// Single collector: the only writer of outcomes.
	outcomes := make([]Outcome, len(configs))
	done := 0
	for r := range results {
		outcomes[r.idx] = r.outcome
		done++
		o := r.outcome
		log.Info("configuration finished",
			logger.String("config", o.Label),
			logger.String("status", o.Status.String()),
			logger.Float("rmse", o.Metrics.RMSE),
			logger.Duration("elapsed", o.Elapsed),
			logger.Int("done", done),
			logger.Int("total", len(configs)),
		)
		if d.OnOutcome != nil {
			d.OnOutcome(o)
		}
	}
	return outcomes
}

func (d *Driver) runOne(ctx context.Context, cfg Configuration, log *logger.Logger) (out Outcome) {
	label := cfg.Label()
	out = Outcome{Config: cfg, Label: label, Metrics: evaluate.Worst()}
	start := time.Now()
	defer func() { out.Elapsed = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		out.Status, out.Err = Canceled, err
		return out
	}

	runCtx := ctx
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	res, err := d.Engine.Run(runCtx, d.Source, forecast.Config{
		Lookback: cfg.Lookback,
		TestSize: d.TestSize,
		Mode:     d.Mode,
		Model:    cfg.Model(),
		Seed:     SeedFor(d.Seed, label),

		HistoryPath: d.historyPath(label),
	})
	out.Fit = res.Fit
	out.model = res.Model

	switch {
	case errors.Is(err, forecast.ErrInsufficientHistory):
		out.Status, out.Err = InsufficientHistory, err
		return out
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		out.Status, out.Err = Canceled, err
		log.Warn("configuration canceled", logger.String("config", label), logger.Error(err))
		return out
	case err != nil:
		out.Status, out.Err = Failed, err
		log.Warn("configuration failed", logger.String("config", label), logger.Error(err))
		return out
	}

	out.True, out.Predicted = res.True, res.Predicted
	out.Metrics = evaluate.Evaluate(res.True, res.Predicted)
	out.Status = Success
	if len(res.True) == 0 {
		out.Status, out.Err = Failed, errors.New("forecast produced no steps")
	} else if !out.Metrics.Finite() || hasNonFinite(res.Predicted) {
		out.Status = Diverged
	}
	return out
}

func (d *Driver) historyPath(label string) string {
	if d.HistoryDir == "" {
		return ""
	}
	dir := filepath.Join(d.HistoryDir, label)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	return filepath.Join(dir, "history_"+label+".csv")
}

func hasNonFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// SeedFor derives a per-configuration seed so a run does not depend on which
// worker picks it up or in what order.
func SeedFor(base int64, label string) int64 {
	h := fnv.New64a()
	h.Write([]byte(label))
	return base ^ int64(h.Sum64())
}
