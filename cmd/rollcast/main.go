// Command rollcast runs the rolling one-step FFNN forecast grid over an FX
// price series and ranks the configurations by RMSE.
//
// Usage:
//
//	rollcast -config rollcast.yaml
//	rollcast -data ./data/usd_jpy.csv -target-col rate -test-size 150 -workers 8
//	rollcast -config rollcast.yaml -cron "0 0 6 * * 1-5"
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/FlavioCFOliveira/rollcast/internal/config"
	"github.com/FlavioCFOliveira/rollcast/internal/forecast"
	"github.com/FlavioCFOliveira/rollcast/internal/grid"
	"github.com/FlavioCFOliveira/rollcast/internal/logger"
	"github.com/FlavioCFOliveira/rollcast/internal/metrics"
	"github.com/FlavioCFOliveira/rollcast/internal/report"
	"github.com/FlavioCFOliveira/rollcast/internal/scheduler"
	"github.com/FlavioCFOliveira/rollcast/internal/series"
	"github.com/FlavioCFOliveira/rollcast/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "rollcast:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "YAML configuration file")
		dataPath   = flag.String("data", "", "CSV price series (overrides data.data_path)")
		targetCol  = flag.String("target-col", "", "price column (overrides data.target_col)")
		testSize   = flag.Int("test-size", 0, "held-out test window (overrides forecast.test_size)")
		workers    = flag.Int("workers", 0, "parallel configurations (overrides run.workers)")
		outDir     = flag.String("out", "", "results directory (overrides run.results_dir)")
		dbPath     = flag.String("db", "", "SQLite result store (overrides store.sqlite_path)")
		cronSpec   = flag.String("cron", "", "six-field cron spec; rerun the grid on schedule")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["data"] {
		cfg.Data.DataPath, cfg.Data.RootPath = *dataPath, ""
	}
	if set["target-col"] {
		cfg.Data.TargetCol = *targetCol
	}
	if set["test-size"] {
		cfg.Forecast.TestSize = *testSize
	}
	if set["workers"] {
		cfg.Run.Workers = *workers
	}
	if set["out"] {
		cfg.Run.ResultsDir = *outDir
	}
	if set["db"] {
		cfg.Store.SQLitePath = *dbPath
	}
	if set["cron"] {
		cfg.Schedule.Cron = *cronSpec
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Logger())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store = store.NewNoop()
	if cfg.Store.SQLitePath != "" {
		db, err := store.OpenSQLite(cfg.Store.SQLitePath, log)
		if err != nil {
			return err
		}
		st = db
	}
	defer st.Close()

	app := &app{cfg: cfg, log: log, store: st, metrics: metrics.New()}

	if cfg.Schedule.Cron == "" {
		return app.runGrid(ctx)
	}

	sched, err := scheduler.New(cfg.Schedule.Cron, app.runGrid, log)
	if err != nil {
		return err
	}
	sched.Start(ctx)
	if cfg.Schedule.RunOnStart {
		sched.RunNow()
	}
	log.Info("waiting for schedule", logger.String("cron", cfg.Schedule.Cron))
	<-ctx.Done()
	sched.Stop()
	return nil
}

type app struct {
	cfg     *config.Config
	log     *logger.Logger
	store   store.Store
	metrics *metrics.Recorder
}

func (a *app) resultsDir() string {
	if a.cfg.Run.ResultsDir != "" {
		return a.cfg.Run.ResultsDir
	}
	return report.ResultsDir(a.cfg.Data.TargetSuffix, a.cfg.Forecast.TestSize)
}

// recordOutcome and finishRun write through a context detached from ctx's
// cancellation, so an interrupted run is still recorded with what finished.
func (a *app) recordOutcome(ctx context.Context, runID string, o grid.Outcome, log *logger.Logger) {
	if runID == "" {
		return
	}
	if err := a.store.RecordOutcome(context.WithoutCancel(ctx), runID, o); err != nil {
		log.Warn("outcome not recorded", logger.String("config", o.Label), logger.Error(err))
	}
}

func (a *app) finishRun(ctx context.Context, runID, best string, log *logger.Logger) {
	if runID == "" {
		return
	}
	if err := a.store.FinishRun(context.WithoutCancel(ctx), runID, best); err != nil {
		log.Warn("run not finalized", logger.Error(err))
	}
}

// runGrid loads the series, runs every feasible configuration and writes the
// summary. Only data and configuration problems are returned as errors;
// per-configuration failures are ranked last.
func (a *app) runGrid(ctx context.Context) error {
	cfg, log := a.cfg, a.log
	started := time.Now()

	path := cfg.DataFile()
	ts, err := series.LoadCSV(path, series.LoadOptions{TargetCol: cfg.Data.TargetCol, DateCol: cfg.Data.DateCol})
	if err != nil {
		return err
	}
	derived, err := series.Derive(ts)
	if err != nil {
		return err
	}
	n := derived.Len()
	log.Info("series loaded",
		logger.String("path", path),
		logger.String("column", cfg.Data.TargetCol),
		logger.Int("raw_rows", ts.Len()),
		logger.Int("rows", n),
	)

	testSize := cfg.Forecast.TestSize
	if err := grid.CheckLength(n, testSize); err != nil {
		return err
	}
	space := cfg.Space()
	configs := space.Enumerate(n, testSize, log)
	if len(configs) == 0 {
		return grid.ErrNoConfigurations
	}
	log.Info("grid enumerated", logger.Int("configurations", len(configs)), logger.Int("cells", space.Size()))

	runID, err := a.store.BeginRun(ctx, store.Run{
		StartedAt: started,
		DataPath:  path,
		TargetCol: cfg.Data.TargetCol,
		Rows:      n,
		TestSize:  testSize,
		Configs:   len(configs),
	})
	if err != nil {
		log.Warn("run not recorded", logger.Error(err))
	}
	log = log.With(logger.String("run_id", runID))

	dir := a.resultsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn("results directory not created", logger.String("dir", dir), logger.Error(err))
	}

	driver := &grid.Driver{
		Engine:   forecast.NewEngine(cfg.TrainingPolicy(), log),
		Source:   derived,
		TestSize: testSize,
		Mode:     cfg.Mode(),
		Workers:  cfg.Workers(),
		Timeout:  cfg.Run.ConfigTimeout,
		Seed:     cfg.Training.Seed,
		Log:      log,
		OnOutcome: func(o grid.Outcome) {
			a.metrics.ObserveOutcome(o)
			a.recordOutcome(ctx, runID, o, log)
			report.WriteArtifacts(dir, o, log)
		},
	}
	if cfg.Run.SaveHistory {
		driver.HistoryDir = dir
	}
	outcomes := driver.Run(ctx, configs)

	summary := filepath.Join(dir, report.SummaryFile(cfg.Data.TargetSuffix))
	if err := report.WriteSummary(summary, outcomes); err != nil {
		log.Warn("summary not saved", logger.String("path", summary), logger.Error(err))
	} else {
		log.Info("summary saved", logger.String("path", summary))
	}

	fmt.Println()
	if err := report.PrintTable(os.Stdout, outcomes); err != nil {
		log.Warn("table not printed", logger.Error(err))
	}
	fmt.Println()
	report.PrintBest(os.Stdout, outcomes)

	best, _ := grid.Best(outcomes)
	a.finishRun(ctx, runID, best.Label, log)
	a.metrics.FinishRun(outcomes)
	if p := cfg.Metrics.Textfile; p != "" {
		if err := a.metrics.WriteTextfile(p); err != nil {
			log.Warn("metrics textfile not written", logger.String("path", p), logger.Error(err))
		}
	}

	counts := grid.Count(outcomes)
	log.Info("grid finished",
		logger.Int("success", counts[grid.Success]),
		logger.Int("diverged", counts[grid.Diverged]),
		logger.Int("failed", counts[grid.Failed]),
		logger.Int("insufficient_history", counts[grid.InsufficientHistory]),
		logger.Int("canceled", counts[grid.Canceled]),
		logger.Duration("elapsed", time.Since(started)),
	)
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return nil
}
