package net

import (
	"math"

	"github.com/FlavioCFOliveira/rollcast/internal/logger"
	"github.com/FlavioCFOliveira/rollcast/internal/opt"
)

// Callback defines the interface for training callbacks.
type Callback interface {
	OnTrainBegin(n *Network)
	OnTrainEnd(n *Network)
	OnEpochBegin(epoch int, n *Network)
	OnEpochEnd(epoch int, loss float64, n *Network)
	OnBatchBegin(batch int, n *Network)
	OnBatchEnd(batch int, loss float64, n *Network)
}

// Stopper is implemented by callbacks that can end training early.
type Stopper interface {
	StopTraining() bool
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (c BaseCallback) OnTrainBegin(n *Network)                        {}
func (c BaseCallback) OnTrainEnd(n *Network)                          {}
func (c BaseCallback) OnEpochBegin(epoch int, n *Network)             {}
func (c BaseCallback) OnEpochEnd(epoch int, loss float64, n *Network) {}
func (c BaseCallback) OnBatchBegin(batch int, n *Network)             {}
func (c BaseCallback) OnBatchEnd(batch int, loss float64, n *Network) {}

// SchedulerCallback is a callback that wraps a learning rate scheduler.
type SchedulerCallback struct {
	BaseCallback
	scheduler opt.Scheduler
	log       *logger.Logger
	lastLR    float64
}

func NewSchedulerCallback(scheduler opt.Scheduler, log *logger.Logger) *SchedulerCallback {
	if log == nil {
		log = logger.Nop()
	}
	return &SchedulerCallback{scheduler: scheduler, log: log}
}

func (c *SchedulerCallback) OnTrainBegin(n *Network) {
	c.lastLR = c.scheduler.GetLR()
}

func (c *SchedulerCallback) OnEpochEnd(epoch int, loss float64, n *Network) {
	c.scheduler.Step()
	c.scheduler.StepWithLoss(loss)
	if lr := c.scheduler.GetLR(); lr != c.lastLR {
		c.log.Debug("learning rate reduced",
			logger.Int("epoch", epoch),
			logger.Float("from", c.lastLR),
			logger.Float("to", lr),
		)
		c.lastLR = lr
	}
}

// EarlyStopping stops training when the epoch loss has stopped improving.
// With RestoreBest set, the parameters of the best epoch are loaded back
// into the network when training ends.
type EarlyStopping struct {
	BaseCallback
	Patience    int
	Threshold   float64
	RestoreBest bool

	log          *logger.Logger
	bestLoss     float64
	bestEpoch    int
	bestParams   []float64
	numBadEpochs int
	Stopped      bool
	StoppedEpoch int
}

func NewEarlyStopping(patience int, threshold float64, log *logger.Logger) *EarlyStopping {
	if log == nil {
		log = logger.Nop()
	}
	return &EarlyStopping{
		Patience:    patience,
		Threshold:   threshold,
		RestoreBest: true,
		log:         log,
		bestLoss:    math.Inf(1),
		bestEpoch:   -1,
	}
}

func (c *EarlyStopping) OnTrainBegin(n *Network) {
	c.bestLoss = math.Inf(1)
	c.bestEpoch = -1
	c.bestParams = nil
	c.numBadEpochs = 0
	c.Stopped = false
	c.StoppedEpoch = 0
}

func (c *EarlyStopping) OnEpochEnd(epoch int, loss float64, n *Network) {
	if loss < c.bestLoss-c.Threshold {
		c.bestLoss = loss
		c.bestEpoch = epoch
		c.numBadEpochs = 0
		if c.RestoreBest {
			c.bestParams = n.Params()
		}
		return
	}

	c.numBadEpochs++
	if c.Patience > 0 && c.numBadEpochs >= c.Patience {
		c.log.Debug("early stopping",
			logger.Int("epoch", epoch),
			logger.Float("loss", loss),
			logger.Float("best_loss", c.bestLoss),
			logger.Int("patience", c.Patience),
		)
		c.Stopped = true
		c.StoppedEpoch = epoch
	}
}

func (c *EarlyStopping) OnTrainEnd(n *Network) {
	if c.RestoreBest && c.bestParams != nil {
		n.SetParams(c.bestParams)
	}
}

func (c *EarlyStopping) StopTraining() bool { return c.Stopped }

// BestLoss returns the lowest epoch loss seen and the epoch it occurred in.
func (c *EarlyStopping) BestLoss() (float64, int) { return c.bestLoss, c.bestEpoch }

// Logger logs training progress.
type Logger struct {
	BaseCallback
	Interval int
	Log      *logger.Logger
}

func (c Logger) OnEpochEnd(epoch int, loss float64, n *Network) {
	if c.Log == nil || c.Interval <= 0 || epoch%c.Interval != 0 {
		return
	}
	c.Log.Debug("epoch finished",
		logger.Int("epoch", epoch),
		logger.Float("loss", loss),
		logger.Float("lr", n.opt.GetLR()),
	)
}
