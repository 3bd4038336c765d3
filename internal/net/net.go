// Package net provides core neural network types.
package net

import (
	"encoding/gob"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/FlavioCFOliveira/rollcast/internal/activations"
	"github.com/FlavioCFOliveira/rollcast/internal/layer"
	"github.com/FlavioCFOliveira/rollcast/internal/loss"
	"github.com/FlavioCFOliveira/rollcast/internal/opt"
)

// Network is a collection of layers that can be forwarded and backwarded.
type Network struct {
	layers []layer.Layer
	loss   loss.Loss
	opt    opt.Optimizer

	// MaxGradNorm caps the global L2 norm of the gradients before each step.
	// Zero disables clipping.
	MaxGradNorm float64

	// Pre-allocated buffers reused across training steps
	lossGradBuf []float64
	paramBuf    []float64
	gradBuf     []float64
}

// New creates a new neural network with the given layers.
func New(layers []layer.Layer, loss loss.Loss, optimizer opt.Optimizer) *Network {
	return &Network{
		layers: layers,
		loss:   loss,
		opt:    optimizer,
	}
}

// NewMLP builds a stack of Dense layers in -> hidden... -> 1 with act on the
// hidden layers and a linear output, drawing initial weights from rng.
func NewMLP(in int, hidden []int, act activations.Activation, rng *rand.Rand) []layer.Layer {
	layers := make([]layer.Layer, 0, len(hidden)+1)
	prev := in
	for _, h := range hidden {
		layers = append(layers, layer.NewDense(prev, h, act, rng))
		prev = h
	}
	layers = append(layers, layer.NewDense(prev, 1, activations.Linear{}, rng))
	return layers
}

// Forward performs a forward pass through all layers.
// The returned slice belongs to the last layer and is overwritten by the next pass.
func (n *Network) Forward(x []float64) []float64 {
	curr := x
	for i := range n.layers {
		curr = n.layers[i].Forward(curr)
	}
	return curr
}

// Backward performs a backward pass through all layers.
func (n *Network) Backward(grad []float64) []float64 {
	curr := grad
	for i := len(n.layers) - 1; i >= 0; i-- {
		curr = n.layers[i].Backward(curr)
	}
	return curr
}

// ZeroGrad clears the accumulated gradients of every layer.
func (n *Network) ZeroGrad() {
	for _, l := range n.layers {
		l.ZeroGrad()
	}
}

// Step applies one optimizer step to the accumulated gradients.
// Parameters of all layers are updated as one flat vector so momentum state
// and gradient clipping see the whole model.
func (n *Network) Step() {
	n.paramBuf = n.paramBuf[:0]
	n.gradBuf = n.gradBuf[:0]
	for _, l := range n.layers {
		n.paramBuf = append(n.paramBuf, l.Params()...)
		n.gradBuf = append(n.gradBuf, l.Gradients()...)
	}

	if n.MaxGradNorm > 0 {
		opt.ClipGradNorm(n.gradBuf, n.MaxGradNorm)
	}
	n.opt.StepInPlace(n.paramBuf, n.gradBuf)

	n.SetParams(n.paramBuf)
}

// Train performs a single-sample gradient step and returns the sample loss.
func (n *Network) Train(x []float64, y []float64) float64 {
	n.ZeroGrad()
	l := n.accumulate(x, y)
	n.Step()
	return l
}

// TrainBatch performs one gradient step on a batch of samples.
// Gradients are accumulated and averaged over the batch; the mean loss is returned.
func (n *Network) TrainBatch(batchX [][]float64, batchY [][]float64) float64 {
	batchSize := len(batchX)
	if batchSize == 0 {
		return 0
	}

	n.ZeroGrad()
	var totalLoss float64
	for i := 0; i < batchSize; i++ {
		totalLoss += n.accumulate(batchX[i], batchY[i])
	}

	if batchSize > 1 {
		inv := 1.0 / float64(batchSize)
		for _, l := range n.layers {
			g := l.Gradients()
			for j := range g {
				g[j] *= inv
			}
			l.SetGradients(g)
		}
	}

	n.Step()
	return totalLoss / float64(batchSize)
}

// accumulate runs forward and backward for one sample without stepping.
func (n *Network) accumulate(x, y []float64) float64 {
	yPred := n.Forward(x)
	l := n.loss.Forward(yPred, y)

	yPredLen := len(yPred)
	if cap(n.lossGradBuf) < yPredLen {
		n.lossGradBuf = make([]float64, yPredLen)
	}
	grad := n.lossGradBuf[:yPredLen]

	if backwardInPlace, ok := n.loss.(loss.BackwardInPlacer); ok {
		backwardInPlace.BackwardInPlace(yPred, y, grad)
	} else {
		grad = n.loss.Backward(yPred, y)
	}

	n.Backward(grad)
	return l
}

// Params returns all network parameters flattened (copy).
func (n *Network) Params() []float64 {
	var params []float64
	for _, l := range n.layers {
		params = append(params, l.Params()...)
	}
	return params
}

// SetParams loads a flattened parameter vector produced by Params.
func (n *Network) SetParams(params []float64) {
	offset := 0
	for _, l := range n.layers {
		size := paramCount(l)
		l.SetParams(params[offset : offset+size])
		offset += size
	}
}

// Gradients returns all network gradients flattened (copy).
func (n *Network) Gradients() []float64 {
	var gradients []float64
	for _, l := range n.layers {
		gradients = append(gradients, l.Gradients()...)
	}
	return gradients
}

// Layers returns the network's layers slice.
func (n *Network) Layers() []layer.Layer {
	return n.layers
}

// Loss returns the network's loss function.
func (n *Network) Loss() loss.Loss {
	return n.loss
}

// Optimizer returns the network's optimizer.
func (n *Network) Optimizer() opt.Optimizer {
	return n.opt
}

func paramCount(l layer.Layer) int {
	return l.InSize()*l.OutSize() + l.OutSize()
}

// Save saves the network to a file using gob encoding.
// The optimizer's momentum buffer is not saved.
func (n *Network) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return n.Encode(file)
}

// Load loads a network from a file written by Save.
func Load(filename string) (*Network, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Decode(file)
}

// modelState is the gob payload of a saved network.
type modelState struct {
	Loss         string
	LearningRate float64
	Momentum     float64
	WeightDecay  float64
	Layers       []LayerConfig
}

// Encode writes the network to an io.Writer using gob encoding.
func (n *Network) Encode(w io.Writer) error {
	state := modelState{
		Loss:   loss.Kind(n.loss),
		Layers: make([]LayerConfig, 0, len(n.layers)),
	}
	if sgd, ok := n.opt.(*opt.SGD); ok {
		state.LearningRate = sgd.LearningRate
		state.Momentum = sgd.Momentum
		state.WeightDecay = sgd.WeightDecay
	} else if n.opt != nil {
		state.LearningRate = n.opt.GetLR()
	}

	for _, l := range n.layers {
		cfg, err := ExtractLayerConfig(l)
		if err != nil {
			return err
		}
		state.Layers = append(state.Layers, cfg)
	}

	if err := gob.NewEncoder(w).Encode(state); err != nil {
		return fmt.Errorf("failed to encode model state: %w", err)
	}
	return nil
}

// Decode reads a network written by Encode.
func Decode(r io.Reader) (*Network, error) {
	var state modelState
	if err := gob.NewDecoder(r).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode model state: %w", err)
	}

	l, err := loss.Parse(state.Loss)
	if err != nil {
		return nil, err
	}

	layers := make([]layer.Layer, 0, len(state.Layers))
	for i := range state.Layers {
		created, err := state.Layers[i].CreateLayer()
		if err != nil {
			return nil, fmt.Errorf("failed to create layer %d: %w", i, err)
		}
		layers = append(layers, created)
	}

	optimizer := opt.NewSGD(state.LearningRate, state.Momentum, state.WeightDecay)
	return New(layers, l, optimizer), nil
}

// LayerConfig holds the configuration needed to reconstruct a layer.
type LayerConfig struct {
	Type       string
	InSize     int
	OutSize    int
	Activation string
	Params     []float64
}

// ExtractLayerConfig extracts the configuration from a layer.
func ExtractLayerConfig(l layer.Layer) (LayerConfig, error) {
	dense, ok := l.(*layer.Dense)
	if !ok {
		return LayerConfig{}, fmt.Errorf("unsupported layer type %T", l)
	}
	return LayerConfig{
		Type:       "Dense",
		InSize:     dense.InSize(),
		OutSize:    dense.OutSize(),
		Activation: activations.Name(dense.Activation()),
		Params:     dense.Params(),
	}, nil
}

// CreateLayer creates a new layer from the configuration.
func (c *LayerConfig) CreateLayer() (layer.Layer, error) {
	if c.Type != "Dense" {
		return nil, fmt.Errorf("unsupported layer type: %s", c.Type)
	}
	if want := c.InSize*c.OutSize + c.OutSize; len(c.Params) != want {
		return nil, fmt.Errorf("dense %dx%d: got %d params, want %d", c.InSize, c.OutSize, len(c.Params), want)
	}

	act, err := activations.Parse(c.Activation)
	if err != nil {
		return nil, err
	}

	// Weights are overwritten below; the source only has to be valid.
	dense := layer.NewDense(c.InSize, c.OutSize, act, rand.New(rand.NewSource(1)))
	dense.SetParams(c.Params)
	return dense, nil
}
