package loss

import (
	"math/rand"
	"testing"
)

// The forecaster's network has one output, so losses run per sample over a
// batch of 32 scaled log returns.
func benchmarkBatch(b *testing.B, l Loss) {
	rng := rand.New(rand.NewSource(1))
	preds := make([][]float64, 32)
	targets := make([][]float64, 32)
	for i := range preds {
		preds[i] = []float64{rng.NormFloat64()}
		targets[i] = []float64{rng.NormFloat64()}
	}
	grad := make([]float64, 1)
	inPlace, _ := l.(BackwardInPlacer)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for k := range preds {
			_ = l.Forward(preds[k], targets[k])
			if inPlace != nil {
				inPlace.BackwardInPlace(preds[k], targets[k], grad)
			} else {
				grad = l.Backward(preds[k], targets[k])
			}
		}
	}
}

func BenchmarkSquaredBatch(b *testing.B)  { benchmarkBatch(b, MSE{}) }
func BenchmarkAbsoluteBatch(b *testing.B) { benchmarkBatch(b, L1Loss{}) }
