// Package store persists grid runs, per-configuration outcomes and forecasts.
package store

import (
	"context"
	"time"

	"github.com/FlavioCFOliveira/rollcast/internal/grid"
)

// Run describes one grid execution.
type Run struct {
	ID        string
	StartedAt time.Time
	DataPath  string
	TargetCol string
	Rows      int
	TestSize  int
	Configs   int
}

// Store records grid results. Implementations must be safe for concurrent use.
type Store interface {
	// BeginRun registers a run and returns its ID. An empty run.ID is
	// replaced by a fresh UUID.
	BeginRun(ctx context.Context, run Run) (string, error)
	RecordOutcome(ctx context.Context, runID string, o grid.Outcome) error
	FinishRun(ctx context.Context, runID string, best string) error
	Close() error
}

// Noop discards everything. It is used when no database is configured.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (Noop) BeginRun(_ context.Context, run Run) (string, error) { return runID(run), nil }
func (Noop) RecordOutcome(context.Context, string, grid.Outcome) error { return nil }
func (Noop) FinishRun(context.Context, string, string) error           { return nil }
func (Noop) Close() error                                               { return nil }
