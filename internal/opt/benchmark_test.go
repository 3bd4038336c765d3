package opt

import (
	"math/rand"
	"testing"
)

// Parameter count of the largest default network: lookback 60, hidden [16, 8].
const benchParams = 60*16 + 16 + 16*8 + 8 + 8 + 1

func benchVectors() (params, grads []float64) {
	rng := rand.New(rand.NewSource(1))
	params = make([]float64, benchParams)
	grads = make([]float64, benchParams)
	for i := range params {
		params[i] = rng.NormFloat64() * 0.1
		grads[i] = rng.NormFloat64() * 0.01
	}
	return params, grads
}

func BenchmarkSGDStepInPlace(b *testing.B) {
	params, grads := benchVectors()
	sgd := NewSGD(0.01, 0, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sgd.StepInPlace(params, grads)
	}
}

func BenchmarkSGDMomentumWeightDecay(b *testing.B) {
	params, grads := benchVectors()
	sgd := NewSGD(0.01, 0.9, 1e-4)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sgd.StepInPlace(params, grads)
	}
}

// Each step clips a fresh gradient, as the training loop does.
func BenchmarkClipThenStep(b *testing.B) {
	params, grads := benchVectors()
	scratch := make([]float64, len(grads))
	sgd := NewSGD(0.01, 0.9, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		copy(scratch, grads)
		ClipGradNorm(scratch, 1.0)
		sgd.StepInPlace(params, scratch)
	}
}
