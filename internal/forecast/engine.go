// Package forecast implements the walk-forward one-step-ahead forecast: an
// initial fit on the history before the test window, then per step a
// prediction, an online update on the newly known return, and the reveal of
// the next true price.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/FlavioCFOliveira/rollcast/internal/logger"
	"github.com/FlavioCFOliveira/rollcast/internal/predictor"
	"github.com/FlavioCFOliveira/rollcast/internal/sequence"
	"github.com/FlavioCFOliveira/rollcast/internal/series"
)

// ErrInsufficientHistory is returned with an empty Result when the history
// before the test window is shorter than the lookback.
var ErrInsufficientHistory = errors.New("insufficient history before test window")

// Source is the read-only view of a derived series the engine consumes.
// *series.Derived implements it.
type Source interface {
	sequence.Table
	PriceAt(i int) float64
}

var _ Source = (*series.Derived)(nil)

// Observer is notified as the walk advances. StepBegin(i) fires before any
// read for step i; Reveal(i+1) fires right before the true price at i+1 is
// read to be recorded.
type Observer interface {
	StepBegin(i int)
	Reveal(i int)
}

type nopObserver struct{}

func (nopObserver) StepBegin(int) {}
func (nopObserver) Reveal(int)    {}

// UpdateObserver is an optional Observer extension, told about each online
// update with its step and standardized label.
type UpdateObserver interface {
	Updated(i int, label float64)
}

// Config determines one run.
type Config struct {
	Lookback int
	TestSize int
	Mode     sequence.Mode
	Model    predictor.Config
	// Seed drives weight initialization and batch shuffling.
	Seed int64
	// HistoryPath overrides Training.HistoryPath for this run.
	HistoryPath string
	// Frozen skips the online updates; the model stays as the initial fit
	// left it.
	Frozen bool
}

// Result is the forecast of one run. True[k] and Predicted[k] are the actual
// and forecast price of the same step.
type Result struct {
	True      []float64
	Predicted []float64
	Steps     int
	TestStart int
	Fit       predictor.FitReport
	// Updates counts the online updates, MeanUpdateLoss averages their loss.
	Updates        int
	MeanUpdateLoss float64
	// Model is the predictor after the last update.
	Model *predictor.Predictor
}

// Engine runs rolling forecasts. Each Run owns its model and scalers, so one
// Engine may serve concurrent runs as long as Observer is safe for that.
type Engine struct {
	Training predictor.Training
	Observer Observer
	Log      *logger.Logger
}

// NewEngine returns an Engine with the given training policy.
func NewEngine(training predictor.Training, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{Training: training, Observer: nopObserver{}, Log: log}
}

// Run forecasts the last cfg.TestSize-1 prices of src one step at a time.
//
// With N = src.Len(), T = cfg.TestSize and L = cfg.Lookback, the
// standardization and the initial fit use rows [0, N-T) only. Step i, for
// i = N-T .. N-2, predicts from rows [i-L, i), reconstructs
// price[i]*exp(prediction), updates the model on the return at i when
// i+1 < N-1 and cfg.Frozen is unset, and then records (price[i+1],
// prediction). No step reads a row after i before the reveal of i+1.
//
// When N-T < L the result is empty and the error is ErrInsufficientHistory.
// A canceled ctx stops the run and returns what was recorded so far.
func (e *Engine) Run(ctx context.Context, src Source, cfg Config) (Result, error) {
	if cfg.Lookback < 1 {
		return Result{}, fmt.Errorf("forecast: lookback %d", cfg.Lookback)
	}
	if cfg.TestSize < 1 {
		return Result{}, fmt.Errorf("forecast: test size %d", cfg.TestSize)
	}

	n := src.Len()
	testStart := n - cfg.TestSize
	if testStart < cfg.Lookback {
		return Result{TestStart: testStart}, ErrInsufficientHistory
	}

	obs := e.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	updated, _ := obs.(UpdateObserver)
	log := e.Log
	if log == nil {
		log = logger.Nop()
	}

	builder := sequence.NewBuilder(cfg.Mode)
	rng := rand.New(rand.NewSource(cfg.Seed))
	training := e.Training
	if cfg.HistoryPath != "" {
		training.HistoryPath = cfg.HistoryPath
	}
	model, err := predictor.New(cfg.Model, builder.InputDim(cfg.Lookback), training, rng, log)
	if err != nil {
		return Result{}, err
	}

	// Initialization: everything is fit on rows before the test window.
	scalers := builder.FitScalers(src, testStart)
	windows, targets := sequence.Build(builder.Rows(src, testStart, scalers), cfg.Lookback)
	if len(windows) == 0 {
		log.Warn("no initial training windows", logger.Int("lookback", cfg.Lookback), logger.Int("history", testStart))
	}

	fitStart := time.Now()
	report, err := model.Fit(ctx, windows, targets)
	res := Result{TestStart: testStart, Fit: report, Model: model}
	if err != nil {
		return res, err
	}
	log.Debug("initial fit done",
		logger.Int("samples", report.Samples),
		logger.Int("epochs", report.Epochs),
		logger.Float("best_loss", report.BestLoss),
		logger.Float("lr", report.FinalLR),
		logger.Duration("elapsed", time.Since(fitStart)),
	)

	target := scalers.Target()
	steps := n - 1 - testStart
	res.True = make([]float64, 0, steps)
	res.Predicted = make([]float64, 0, steps)

	var window []float64
	var updateLoss float64
	updates := 0
	for i := testStart; i <= n-2; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		obs.StepBegin(i)

		window = builder.Window(src, i, cfg.Lookback, scalers, window)
		predicted := series.Reconstruct(src.PriceAt(i), target.Inverse(model.Predict(window)))

		if i+1 < n-1 && !cfg.Frozen {
			label := target.Apply(src.LogReturnAt(i))
			updateLoss += model.Update(window, label)
			updates++
			if updated != nil {
				updated.Updated(i, label)
			}
		}

		obs.Reveal(i + 1)
		res.True = append(res.True, src.PriceAt(i+1))
		res.Predicted = append(res.Predicted, predicted)
		res.Steps++
	}

	res.Updates = updates
	if updates > 0 {
		res.MeanUpdateLoss = updateLoss / float64(updates)
	}
	if nonFinite(res.Predicted) > 0 {
		log.Warn("forecast contains non-finite predictions", logger.Int("count", nonFinite(res.Predicted)))
	}
	return res, nil
}

func nonFinite(x []float64) int {
	c := 0
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			c++
		}
	}
	return c
}
