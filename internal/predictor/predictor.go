// Package predictor wraps a feed-forward network with the training policy used
// by the rolling forecast: batch fitting with early stopping, plateau learning
// rate decay and gradient clipping, plus single-sample online updates.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/FlavioCFOliveira/rollcast/internal/activations"
	"github.com/FlavioCFOliveira/rollcast/internal/logger"
	"github.com/FlavioCFOliveira/rollcast/internal/loss"
	"github.com/FlavioCFOliveira/rollcast/internal/net"
	"github.com/FlavioCFOliveira/rollcast/internal/opt"
)

// Config is the model part of a grid configuration.
type Config struct {
	Hidden       []int
	Activation   string
	Loss         string
	LearningRate float64
	Momentum     float64
	WeightDecay  float64
	Epochs       int
	BatchSize    int
}

// Training holds the fit policy shared by every configuration.
type Training struct {
	Patience        int
	PlateauPatience int
	PlateauFactor   float64
	MinLR           float64
	ClipNorm        float64
	// LogInterval logs every n-th epoch at debug level; 0 disables.
	LogInterval int
	// HistoryPath, when set, receives a per-epoch CSV of the fit.
	HistoryPath string
}

// DefaultTraining returns patience 20, halving after 10 flat epochs, clip 1.0.
func DefaultTraining() Training {
	return Training{
		Patience:        20,
		PlateauPatience: 10,
		PlateauFactor:   0.5,
		ClipNorm:        1.0,
		LogInterval:     10,
	}
}

// FitReport summarizes an initial fit.
type FitReport struct {
	Samples      int
	Epochs       int
	EarlyStopped bool
	BestLoss     float64
	BestEpoch    int
	FinalLR      float64
	LRReductions int
}

// Predictor owns one network and its optimizer state. It is not safe for
// concurrent use.
type Predictor struct {
	cfg      Config
	training Training
	inputDim int
	rng      *rand.Rand
	log      *logger.Logger

	net *net.Network
	sgd *opt.SGD

	label [1]float64
}

// New builds an untrained predictor for windows of inputDim values. Initial
// weights and batch shuffling both draw from rng.
func New(cfg Config, inputDim int, training Training, rng *rand.Rand, log *logger.Logger) (*Predictor, error) {
	if inputDim < 1 {
		return nil, fmt.Errorf("predictor: input dimension %d", inputDim)
	}
	if len(cfg.Hidden) == 0 {
		return nil, errors.New("predictor: at least one hidden layer required")
	}
	for _, h := range cfg.Hidden {
		if h < 1 {
			return nil, fmt.Errorf("predictor: hidden width %d", h)
		}
	}
	if rng == nil {
		return nil, errors.New("predictor: nil random source")
	}
	if log == nil {
		log = logger.Nop()
	}

	act, err := activations.Parse(cfg.Activation)
	if err != nil {
		return nil, err
	}
	l, err := loss.Parse(cfg.Loss)
	if err != nil {
		return nil, err
	}

	sgd := opt.NewSGD(cfg.LearningRate, cfg.Momentum, cfg.WeightDecay)
	network := net.New(net.NewMLP(inputDim, cfg.Hidden, act, rng), l, sgd)
	network.MaxGradNorm = training.ClipNorm

	return &Predictor{
		cfg:      cfg,
		training: training,
		inputDim: inputDim,
		rng:      rng,
		log:      log,
		net:      network,
		sgd:      sgd,
	}, nil
}

// InputDim returns the expected window length.
func (p *Predictor) InputDim() int { return p.inputDim }

// Fit trains on (windows, targets) for up to Config.Epochs shuffled passes.
// The parameters left in place are those of the lowest-loss epoch.
func (p *Predictor) Fit(ctx context.Context, windows [][]float64, targets []float64) (FitReport, error) {
	report := FitReport{Samples: len(windows), BestEpoch: -1}
	if len(windows) != len(targets) {
		return report, fmt.Errorf("predictor: %d windows for %d targets", len(windows), len(targets))
	}
	for i, w := range windows {
		if len(w) != p.inputDim {
			return report, fmt.Errorf("predictor: window %d has %d values, want %d", i, len(w), p.inputDim)
		}
	}

	y := make([][]float64, len(targets))
	for i, v := range targets {
		y[i] = []float64{v}
	}

	plateau := opt.NewReduceLROnPlateau(p.sgd, p.training.PlateauFactor, p.training.PlateauPatience, 0, p.training.MinLR)
	stopper := net.NewEarlyStopping(p.training.Patience, 0, p.log)
	callbacks := []net.Callback{
		net.NewSchedulerCallback(plateau, p.log),
		stopper,
		net.Logger{Interval: p.training.LogInterval, Log: p.log},
	}
	if p.training.HistoryPath != "" {
		callbacks = append(callbacks, net.NewCSVLogger(p.training.HistoryPath, false, p.log))
	}

	hist, err := p.net.Fit(ctx, windows, y, net.FitOptions{
		Epochs:    p.cfg.Epochs,
		BatchSize: p.cfg.BatchSize,
		Rand:      p.rng,
		Callbacks: callbacks,
	})

	report.Epochs = hist.Epochs()
	report.EarlyStopped = hist.Stopped
	report.BestLoss, report.BestEpoch = stopper.BestLoss()
	report.FinalLR = p.sgd.GetLR()
	report.LRReductions = plateau.Reductions()
	if err != nil {
		return report, err
	}

	if report.EarlyStopped {
		p.log.Debug("fit stopped early",
			logger.Int("epoch", stopper.StoppedEpoch),
			logger.Float("best_loss", report.BestLoss),
		)
	}
	return report, nil
}

// Predict returns the model output for one window.
func (p *Predictor) Predict(window []float64) float64 {
	return p.net.Forward(window)[0]
}

// Update takes one gradient step on a single labeled window and returns the
// loss before the step. Early stopping and the plateau schedule are untouched.
func (p *Predictor) Update(window []float64, target float64) float64 {
	p.label[0] = target
	return p.net.Train(window, p.label[:])
}

// Snapshot returns a copy of the current parameters.
func (p *Predictor) Snapshot() []float64 {
	return p.net.Params()
}

// LearningRate returns the optimizer's current rate.
func (p *Predictor) LearningRate() float64 { return p.sgd.GetLR() }

// Save writes the model state to path.
func (p *Predictor) Save(path string) error {
	return p.net.Save(path)
}
