// Package grid enumerates hyperparameter configurations, runs one rolling
// forecast per configuration and ranks the outcomes.
package grid

import (
	"strconv"
	"strings"

	"github.com/FlavioCFOliveira/rollcast/internal/logger"
	"github.com/FlavioCFOliveira/rollcast/internal/predictor"
)

// Configuration fully determines one training run. Treat it as immutable.
type Configuration struct {
	Lookback     int
	Hidden       []int
	Loss         string
	Activation   string
	LearningRate float64
	Momentum     float64
	WeightDecay  float64
	Epochs       int
	BatchSize    int
}

// DefaultMomentum is the momentum the label leaves implicit.
const DefaultMomentum = 0.9

// Label names the configuration, e.g. lb20_hs8x4_ltSEL_attanh_lr0.005_ep100_bs32.
// Momentum and weight decay are appended only when they differ from 0.9 and 0.
func (c Configuration) Label() string {
	var b strings.Builder
	b.WriteString("lb")
	b.WriteString(strconv.Itoa(c.Lookback))
	b.WriteString("_hs")
	b.WriteString(c.hiddenJoined("x"))
	b.WriteString("_lt")
	b.WriteString(c.Loss)
	b.WriteString("_at")
	b.WriteString(c.Activation)
	b.WriteString("_lr")
	b.WriteString(formatFloat(c.LearningRate))
	b.WriteString("_ep")
	b.WriteString(strconv.Itoa(c.Epochs))
	b.WriteString("_bs")
	b.WriteString(strconv.Itoa(c.BatchSize))
	if c.Momentum != DefaultMomentum {
		b.WriteString("_mo")
		b.WriteString(formatFloat(c.Momentum))
	}
	if c.WeightDecay != 0 {
		b.WriteString("_wd")
		b.WriteString(formatFloat(c.WeightDecay))
	}
	return b.String()
}

// HiddenString renders the hidden widths as "[8, 4]".
func (c Configuration) HiddenString() string {
	return "[" + c.hiddenJoined(", ") + "]"
}

func (c Configuration) hiddenJoined(sep string) string {
	parts := make([]string, len(c.Hidden))
	for i, h := range c.Hidden {
		parts[i] = strconv.Itoa(h)
	}
	return strings.Join(parts, sep)
}

// Model returns the predictor part of the configuration.
func (c Configuration) Model() predictor.Config {
	return predictor.Config{
		Hidden:       append([]int(nil), c.Hidden...),
		Activation:   c.Activation,
		Loss:         c.Loss,
		LearningRate: c.LearningRate,
		Momentum:     c.Momentum,
		WeightDecay:  c.WeightDecay,
		Epochs:       c.Epochs,
		BatchSize:    c.BatchSize,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Space is the set of values searched per hyperparameter.
type Space struct {
	Lookbacks     []int
	Hidden        [][]int
	Losses        []string
	Activations   []string
	LearningRates []float64
	Momentums     []float64
	Epochs        []int
	BatchSizes    []int
	WeightDecay   float64
}

// DefaultSpace returns the stock search grid.
func DefaultSpace() Space {
	return Space{
		Lookbacks:     []int{20, 40, 60},
		Hidden:        [][]int{{8}, {16}, {8, 4}, {16, 8}},
		Losses:        []string{"SEL"},
		Activations:   []string{"tanh"},
		LearningRates: []float64{0.001, 0.005, 0.01},
		Momentums:     []float64{DefaultMomentum},
		Epochs:        []int{100, 200},
		BatchSizes:    []int{32},
	}
}

// Size returns the number of cells before the feasibility filter.
func (s Space) Size() int {
	return len(s.Lookbacks) * len(s.Hidden) * len(s.Losses) * len(s.Activations) *
		len(s.LearningRates) * len(s.momentums()) * len(s.Epochs) * len(s.BatchSizes)
}

func (s Space) momentums() []float64 {
	if len(s.Momentums) == 0 {
		return []float64{DefaultMomentum}
	}
	return s.Momentums
}

// Feasible reports whether a lookback leaves at least one training pair in
// the n-testSize rows before the test window.
func Feasible(n, testSize, lookback int) bool {
	return lookback >= 1 && n-testSize >= lookback+1
}

// Enumerate returns every cell of the space whose lookback is feasible for a
// series of n rows and the given test size. Skipped lookbacks are logged.
func (s Space) Enumerate(n, testSize int, log *logger.Logger) []Configuration {
	if log == nil {
		log = logger.Nop()
	}

	var out []Configuration
	for _, lb := range s.Lookbacks {
		if !Feasible(n, testSize, lb) {
			log.Info("skipping lookback",
				logger.Int("lookback", lb),
				logger.Int("history", n-testSize),
				logger.Int("required", lb+1),
			)
			continue
		}
		for _, hs := range s.Hidden {
			for _, lt := range s.Losses {
				for _, at := range s.Activations {
					for _, lr := range s.LearningRates {
						for _, mo := range s.momentums() {
							for _, ep := range s.Epochs {
								for _, bs := range s.BatchSizes {
									out = append(out, Configuration{
										Lookback:     lb,
										Hidden:       append([]int(nil), hs...),
										Loss:         lt,
										Activation:   at,
										LearningRate: lr,
										Momentum:     mo,
										WeightDecay:  s.WeightDecay,
										Epochs:       ep,
										BatchSize:    bs,
									})
								}
							}
						}
					}
				}
			}
		}
	}
	return out
}
