package net

import (
	"encoding/csv"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/FlavioCFOliveira/rollcast/internal/logger"
)

// CSVLogger records one row per epoch of a fit: epoch, mean loss, best loss
// so far, learning rate after the epoch's callbacks and seconds since the
// fit began. Register it after the scheduler so lr reflects any reduction.
//
// The history is advisory. A file that cannot be opened or written is
// reported through Log and the fit carries on.
type CSVLogger struct {
	BaseCallback
	Filename string
	// Append keeps earlier fits in the file; the header is written once.
	Append bool
	Log    *logger.Logger

	file  *os.File
	w     *csv.Writer
	start time.Time
	best  float64
}

var historyHeader = []string{"epoch", "loss", "best_loss", "lr", "time_seconds"}

// NewCSVLogger returns a CSVLogger writing to filename.
func NewCSVLogger(filename string, append bool, log *logger.Logger) *CSVLogger {
	if log == nil {
		log = logger.Nop()
	}
	return &CSVLogger{Filename: filename, Append: append, Log: log}
}

func (c *CSVLogger) OnTrainBegin(*Network) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if c.Append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(c.Filename, flags, 0o644)
	if err != nil {
		c.fail("open", err)
		return
	}
	c.file, c.w = f, csv.NewWriter(f)
	c.start = time.Now()
	c.best = math.Inf(1)

	if info, err := f.Stat(); err == nil && info.Size() == 0 {
		c.write(historyHeader)
	}
}

func (c *CSVLogger) OnEpochEnd(epoch int, loss float64, n *Network) {
	if c.w == nil {
		return
	}
	if loss < c.best {
		c.best = loss
	}
	c.write([]string{
		strconv.Itoa(epoch),
		strconv.FormatFloat(loss, 'g', 8, 64),
		strconv.FormatFloat(c.best, 'g', 8, 64),
		strconv.FormatFloat(n.opt.GetLR(), 'g', -1, 64),
		strconv.FormatFloat(time.Since(c.start).Seconds(), 'f', 3, 64),
	})
}

func (c *CSVLogger) OnTrainEnd(*Network) {
	if c.file == nil {
		return
	}
	c.w.Flush()
	if err := c.file.Close(); err != nil {
		c.fail("close", err)
	}
	c.file, c.w = nil, nil
}

func (c *CSVLogger) write(record []string) {
	if err := c.w.Write(record); err != nil {
		c.fail("write", err)
		return
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.fail("flush", err)
	}
}

func (c *CSVLogger) fail(op string, err error) {
	c.Log.Warn("training history "+op+" failed", logger.String("path", c.Filename), logger.Error(err))
}
