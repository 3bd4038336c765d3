package grid

import (
	"math"
	"sort"
	"time"

	"github.com/FlavioCFOliveira/rollcast/internal/evaluate"
	"github.com/FlavioCFOliveira/rollcast/internal/predictor"
)

// Status is the typed result of one configuration run.
type Status int

const (
	// Success means the forecast completed with finite metrics.
	Success Status = iota
	// InsufficientHistory means the lookback did not fit before the test window.
	InsufficientHistory
	// Diverged means the forecast completed but produced non-finite
	// predictions or metrics. Its Metrics are scored on filled predictions.
	Diverged
	// Canceled means the run hit its timeout or the grid was canceled.
	Canceled
	// Failed means the run could not be set up or trained, e.g. an unknown
	// activation or loss name.
	Failed
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case InsufficientHistory:
		return "insufficient_history"
	case Diverged:
		return "diverged"
	case Canceled:
		return "canceled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is what one configuration produced. Metrics is evaluate.Worst for
// every status but Success and Diverged.
type Outcome struct {
	Config    Configuration
	Label     string
	Status    Status
	Metrics   evaluate.Summary
	True      []float64
	Predicted []float64
	Fit       predictor.FitReport
	Elapsed   time.Duration
	// Err carries the cause of a non-success status, if any.
	Err error

	model *predictor.Predictor
}

// Model returns the trained predictor, or nil when the run produced none.
func (o Outcome) Model() *predictor.Predictor { return o.model }

// rankKey orders by status tier first (Success, then Diverged, then the
// rest) and by RMSE within a tier, non-finite RMSE last.
type rankKey struct {
	tier int
	rmse float64
}

func keyOf(o Outcome) rankKey {
	k := rankKey{tier: 2, rmse: math.Inf(1)}
	switch o.Status {
	case Success:
		k.tier = 0
	case Diverged:
		k.tier = 1
	}
	if o.Metrics.Finite() {
		k.rmse = o.Metrics.RMSE
	}
	return k
}

func (k rankKey) less(other rankKey) bool {
	if k.tier != other.tier {
		return k.tier < other.tier
	}
	return k.rmse < other.rmse
}

// Rank returns the outcomes with successes first by ascending RMSE, then
// diverged runs by their filled RMSE, then everything else. Ties keep their
// input order.
func Rank(outcomes []Outcome) []Outcome {
	ranked := append([]Outcome(nil), outcomes...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return keyOf(ranked[i]).less(keyOf(ranked[j]))
	})
	return ranked
}

// Best returns the successful outcome with the lowest finite RMSE. The
// boolean is false when no run succeeded.
func Best(outcomes []Outcome) (Outcome, bool) {
	bestIdx := -1
	for i, o := range outcomes {
		if o.Status != Success || !o.Metrics.Finite() {
			continue
		}
		if bestIdx < 0 || keyOf(o).less(keyOf(outcomes[bestIdx])) {
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return Outcome{}, false
	}
	return outcomes[bestIdx], true
}

// Count tallies outcomes per status.
func Count(outcomes []Outcome) map[Status]int {
	counts := make(map[Status]int)
	for _, o := range outcomes {
		counts[o.Status]++
	}
	return counts
}
