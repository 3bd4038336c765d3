package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/FlavioCFOliveira/rollcast/internal/grid"
	"github.com/FlavioCFOliveira/rollcast/internal/logger"
)

var _ Store = (*SQLite)(nil)

// SQLite persists results to a SQLite database.
type SQLite struct {
	db  *sql.DB
	mu  sync.Mutex
	log *logger.Logger
}

// OpenSQLite opens (or creates) the database at path and runs migrations.
func OpenSQLite(path string, log *logger.Logger) (*SQLite, error) {
	if log == nil {
		log = logger.Nop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLite{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("sqlite store opened", logger.String("path", path))
	return s, nil
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER,
			data_path   TEXT,
			target_col  TEXT,
			row_count   INTEGER,
			test_size   INTEGER,
			configs     INTEGER,
			best_label  TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS outcomes (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id        TEXT NOT NULL REFERENCES runs(id),
			label         TEXT NOT NULL,
			status        TEXT NOT NULL,
			lookback      INTEGER,
			hidden        TEXT,
			loss          TEXT,
			activation    TEXT,
			learning_rate REAL,
			momentum      REAL,
			epochs        INTEGER,
			batch_size    INTEGER,
			mse           REAL,
			rmse          REAL,
			mae           REAL,
			mape          REAL,
			r2            REAL,
			fit_epochs    INTEGER,
			best_loss     REAL,
			elapsed_ms    INTEGER,
			error         TEXT,
			UNIQUE(run_id, label)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id)`,

		`CREATE TABLE IF NOT EXISTS forecasts (
			outcome_id INTEGER NOT NULL REFERENCES outcomes(id),
			step       INTEGER NOT NULL,
			true_price REAL,
			predicted  REAL,
			PRIMARY KEY (outcome_id, step)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func runID(run Run) string {
	if run.ID != "" {
		return run.ID
	}
	return uuid.NewString()
}

func (s *SQLite) BeginRun(ctx context.Context, run Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := runID(run)
	started := run.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs
		(id, started_at, data_path, target_col, row_count, test_size, configs)
		VALUES (?,?,?,?,?,?,?)`,
		id, started.Unix(), run.DataPath, run.TargetCol, run.Rows, run.TestSize, run.Configs,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

func (s *SQLite) RecordOutcome(ctx context.Context, runID string, o grid.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var errText sql.NullString
	if o.Err != nil {
		errText = sql.NullString{String: o.Err.Error(), Valid: true}
	}
	c := o.Config
	m := o.Metrics
	res, err := tx.ExecContext(ctx, `INSERT INTO outcomes
		(run_id, label, status, lookback, hidden, loss, activation, learning_rate, momentum,
		 epochs, batch_size, mse, rmse, mae, mape, r2, fit_epochs, best_loss, elapsed_ms, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		runID, o.Label, o.Status.String(), c.Lookback, c.HiddenString(), c.Loss, c.Activation,
		c.LearningRate, c.Momentum, c.Epochs, c.BatchSize,
		nullable(m.MSE), nullable(m.RMSE), nullable(m.MAE), nullable(m.MAPE), nullable(m.R2),
		o.Fit.Epochs, nullable(o.Fit.BestLoss), o.Elapsed.Milliseconds(), errText,
	)
	if err != nil {
		return fmt.Errorf("insert outcome %s: %w", o.Label, err)
	}
	outcomeID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("outcome id: %w", err)
	}

	if len(o.True) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO forecasts (outcome_id, step, true_price, predicted) VALUES (?,?,?,?)`)
		if err != nil {
			return fmt.Errorf("prepare forecast insert: %w", err)
		}
		defer stmt.Close()
		for i := range o.True {
			if _, err := stmt.ExecContext(ctx, outcomeID, i, nullable(o.True[i]), nullable(o.Predicted[i])); err != nil {
				return fmt.Errorf("insert forecast step %d: %w", i, err)
			}
		}
	}

	return tx.Commit()
}

func (s *SQLite) FinishRun(ctx context.Context, runID string, best string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var bestLabel sql.NullString
	if best != "" {
		bestLabel = sql.NullString{String: best, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET finished_at = ?, best_label = ? WHERE id = ?`,
		time.Now().Unix(), bestLabel, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: unknown run %q", runID)
	}
	return nil
}

// OutcomeRow is a stored outcome as read back by Outcomes.
type OutcomeRow struct {
	Label  string
	Status string
	RMSE   sql.NullFloat64
	Steps  int
}

// Outcomes lists the outcomes of a run ordered by RMSE, unscored last.
func (s *SQLite) Outcomes(ctx context.Context, runID string) ([]OutcomeRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT o.label, o.status, o.rmse,
			(SELECT COUNT(*) FROM forecasts f WHERE f.outcome_id = o.id)
		FROM outcomes o WHERE o.run_id = ?
		ORDER BY o.rmse IS NULL, o.rmse, o.id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []OutcomeRow
	for rows.Next() {
		var r OutcomeRow
		if err := rows.Scan(&r.Label, &r.Status, &r.RMSE, &r.Steps); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// BestLabel returns the best label recorded by FinishRun, or "".
func (s *SQLite) BestLabel(ctx context.Context, runID string) (string, error) {
	var best sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT best_label FROM runs WHERE id = ?`, runID).Scan(&best)
	if err != nil {
		return "", fmt.Errorf("query run: %w", err)
	}
	return best.String, nil
}

func (s *SQLite) Close() error {
	s.log.Info("closing sqlite store")
	return s.db.Close()
}

// nullable maps non-finite values to NULL; SQLite has no NaN.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
