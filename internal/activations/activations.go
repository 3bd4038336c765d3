// Package activations provides the activation functions used by the forecaster's hidden layers.
package activations

import (
	"fmt"
	"math"
	"strings"
)

// Activation is an activation function with derivative.
type Activation interface {
	// Activate computes f(x)
	Activate(x float64) float64

	// Derivative computes f'(x) where x is the pre-activation value
	Derivative(x float64) float64
}

// Tanh activation function.
type Tanh struct{}

// Activate computes tanh(x)
func (t Tanh) Activate(x float64) float64 {
	return math.Tanh(x)
}

// Derivative computes 1 - tanh(x)^2
func (t Tanh) Derivative(x float64) float64 {
	tanhX := math.Tanh(x)
	return 1 - tanhX*tanhX
}

// Sigmoid activation function.
type Sigmoid struct{}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Activate computes sigmoid(x)
func (s Sigmoid) Activate(x float64) float64 {
	return sigmoid(x)
}

// Derivative computes sigmoid(x) * (1 - sigmoid(x))
func (s Sigmoid) Derivative(x float64) float64 {
	sigma := sigmoid(x)
	return sigma * (1 - sigma)
}

// Linear is the identity activation. Output layers always use it.
type Linear struct{}

func (l Linear) Activate(x float64) float64 { return x }

func (l Linear) Derivative(x float64) float64 { return 1 }

// ReLU activation function.
type ReLU struct{}

// Activate computes max(0, x)
func (r ReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Derivative returns 1 if x > 0, else 0
func (r ReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

// Parse maps a configuration name ("tanh", "sigmoid", "linear", "relu") to an Activation.
func Parse(name string) (Activation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tanh":
		return Tanh{}, nil
	case "sigmoid":
		return Sigmoid{}, nil
	case "linear", "identity":
		return Linear{}, nil
	case "relu":
		return ReLU{}, nil
	default:
		return nil, fmt.Errorf("unsupported activation: %q", name)
	}
}

// Name returns the canonical configuration name of an activation.
func Name(act Activation) string {
	switch act.(type) {
	case Tanh:
		return "tanh"
	case Sigmoid:
		return "sigmoid"
	case Linear:
		return "linear"
	case ReLU:
		return "relu"
	default:
		return "linear"
	}
}
