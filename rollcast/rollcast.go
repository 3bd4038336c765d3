// Package rollcast is the public entry point for running rolling one-step
// forecasts from Go code without the CLI.
package rollcast

import (
	"context"

	"github.com/FlavioCFOliveira/rollcast/internal/evaluate"
	"github.com/FlavioCFOliveira/rollcast/internal/forecast"
	"github.com/FlavioCFOliveira/rollcast/internal/grid"
	"github.com/FlavioCFOliveira/rollcast/internal/logger"
	"github.com/FlavioCFOliveira/rollcast/internal/net"
	"github.com/FlavioCFOliveira/rollcast/internal/predictor"
	"github.com/FlavioCFOliveira/rollcast/internal/sequence"
	"github.com/FlavioCFOliveira/rollcast/internal/series"
)

// Re-export common types for easier access
type (
	Series        = series.TimeSeries
	Derived       = series.Derived
	LoadOptions   = series.LoadOptions
	Configuration = grid.Configuration
	Space         = grid.Space
	Outcome       = grid.Outcome
	Status        = grid.Status
	Summary       = evaluate.Summary
	Training      = predictor.Training
	Mode          = sequence.Mode
	Logger        = logger.Logger
)

const (
	LogReturnOnly = sequence.LogReturnOnly
	Tabular       = sequence.Tabular
)

const (
	Success             = grid.Success
	InsufficientHistory = grid.InsufficientHistory
	Diverged            = grid.Diverged
	Canceled            = grid.Canceled
	Failed              = grid.Failed
)

var (
	ErrInsufficientHistory = forecast.ErrInsufficientHistory
	ErrNoConfigurations    = grid.ErrNoConfigurations
)

// Data
func LoadCSV(path string, opts LoadOptions) (*Series, error) {
	return series.LoadCSV(path, opts)
}

func Derive(ts *Series) (*Derived, error) {
	return series.Derive(ts)
}

// Grid
func DefaultSpace() Space {
	return grid.DefaultSpace()
}

func DefaultTraining() Training {
	return predictor.DefaultTraining()
}

func Evaluate(truth, pred []float64) Summary {
	return evaluate.Evaluate(truth, pred)
}

func Best(outcomes []Outcome) (Outcome, bool) {
	return grid.Best(outcomes)
}

// Options tune Run. The zero value runs the default training policy on
// log returns with one worker per CPU and no logging.
type Options struct {
	Mode     Mode
	Training *Training
	Workers  int
	Seed     int64
	Log      *Logger
}

// Run enumerates the feasible configurations of space for d, forecasts the
// last testSize prices with each and returns the outcomes ranked by RMSE.
func Run(ctx context.Context, d *Derived, space Space, testSize int, opts Options) ([]Outcome, error) {
	if err := grid.CheckLength(d.Len(), testSize); err != nil {
		return nil, err
	}
	configs := space.Enumerate(d.Len(), testSize, opts.Log)
	if len(configs) == 0 {
		return nil, grid.ErrNoConfigurations
	}
	training := predictor.DefaultTraining()
	if opts.Training != nil {
		training = *opts.Training
	}
	driver := &grid.Driver{
		Engine:   forecast.NewEngine(training, opts.Log),
		Source:   d,
		TestSize: testSize,
		Mode:     opts.Mode,
		Workers:  opts.Workers,
		Seed:     opts.Seed,
		Log:      opts.Log,
	}
	return grid.Rank(driver.Run(ctx, configs)), nil
}

// Model persistence

// LoadModel reads a network written by a saved outcome's model.
func LoadModel(filename string) (*net.Network, error) {
	return net.Load(filename)
}
