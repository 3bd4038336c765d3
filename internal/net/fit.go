package net

import (
	"context"
	"errors"
	"math/rand"
)

// FitOptions controls a multi-epoch training run.
type FitOptions struct {
	Epochs    int
	BatchSize int
	// Rand shuffles the sample order each epoch. Nil keeps the input order.
	Rand      *rand.Rand
	Callbacks []Callback
}

// History summarizes a Fit call.
type History struct {
	// Losses holds the mean batch loss of every completed epoch.
	Losses  []float64
	Stopped bool
}

// Epochs returns the number of completed epochs.
func (h History) Epochs() int { return len(h.Losses) }

// Fit trains the network for up to opts.Epochs passes over (x, y) in
// mini-batches. Training ends early when a Stopper callback asks for it or
// ctx is done; OnTrainEnd always runs so callbacks can restore state.
func (n *Network) Fit(ctx context.Context, x, y [][]float64, opts FitOptions) (History, error) {
	var hist History
	if len(x) != len(y) {
		return hist, errors.New("net: inputs and targets differ in length")
	}
	if len(x) == 0 || opts.Epochs <= 0 {
		return hist, nil
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 || batchSize > len(x) {
		batchSize = len(x)
	}

	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}
	batchX := make([][]float64, 0, batchSize)
	batchY := make([][]float64, 0, batchSize)

	for _, cb := range opts.Callbacks {
		cb.OnTrainBegin(n)
	}
	defer func() {
		for _, cb := range opts.Callbacks {
			cb.OnTrainEnd(n)
		}
	}()

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return hist, err
		}
		for _, cb := range opts.Callbacks {
			cb.OnEpochBegin(epoch, n)
		}

		if opts.Rand != nil {
			opts.Rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		var epochLoss float64
		batches := 0
		for start := 0; start < len(order); start += batchSize {
			end := start + batchSize
			if end > len(order) {
				end = len(order)
			}
			batchX, batchY = batchX[:0], batchY[:0]
			for _, idx := range order[start:end] {
				batchX = append(batchX, x[idx])
				batchY = append(batchY, y[idx])
			}

			for _, cb := range opts.Callbacks {
				cb.OnBatchBegin(batches, n)
			}
			l := n.TrainBatch(batchX, batchY)
			for _, cb := range opts.Callbacks {
				cb.OnBatchEnd(batches, l, n)
			}
			epochLoss += l
			batches++
		}

		avg := epochLoss / float64(batches)
		hist.Losses = append(hist.Losses, avg)
		for _, cb := range opts.Callbacks {
			cb.OnEpochEnd(epoch, avg, n)
		}

		for _, cb := range opts.Callbacks {
			if s, ok := cb.(Stopper); ok && s.StopTraining() {
				hist.Stopped = true
				return hist, nil
			}
		}
	}

	return hist, nil
}
