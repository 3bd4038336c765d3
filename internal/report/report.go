// Package report writes grid results as CSV files and a console table.
// Every writer is advisory: callers log failures and carry on.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/FlavioCFOliveira/rollcast/internal/evaluate"
	"github.com/FlavioCFOliveira/rollcast/internal/grid"
	"github.com/FlavioCFOliveira/rollcast/internal/logger"
)

// SummaryHeader is the column order of the summary table.
var SummaryHeader = []string{
	"Config_Label", "Lookback", "Hidden_Sizes", "LR", "Epochs", "Batch_Size",
	"MSE", "RMSE", "MAE", "MAPE", "R2", "Time(s)", "Status",
}

// SummaryFile returns the summary table name for a target suffix.
func SummaryFile(suffix string) string {
	return "summary_table_FFNN_" + suffix + ".csv"
}

// ResultsDir returns the per-run results directory name.
func ResultsDir(suffix string, testSize int) string {
	return fmt.Sprintf("ffnn_results_%s_%dstep_last%dtest", suffix, grid.PredLen, testSize)
}

// WriteSummary writes one row per outcome, ranked by RMSE with non-finite last.
func WriteSummary(path string, outcomes []grid.Outcome) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := EncodeSummary(f, outcomes); err != nil {
		return fmt.Errorf("write summary %s: %w", path, err)
	}
	return f.Close()
}

// EncodeSummary writes the ranked summary table to w.
func EncodeSummary(w io.Writer, outcomes []grid.Outcome) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SummaryHeader); err != nil {
		return err
	}
	for _, o := range grid.Rank(outcomes) {
		if err := cw.Write(summaryRow(o)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func summaryRow(o grid.Outcome) []string {
	c := o.Config
	m := o.Metrics
	return []string{
		o.Label,
		strconv.Itoa(c.Lookback),
		c.HiddenString(),
		strconv.FormatFloat(c.LearningRate, 'g', -1, 64),
		strconv.Itoa(c.Epochs),
		strconv.Itoa(c.BatchSize),
		FormatMetric(m.MSE),
		FormatMetric(m.RMSE),
		FormatMetric(m.MAE),
		FormatMAPE(m.MAPE),
		FormatMetric(m.R2),
		strconv.FormatFloat(o.Elapsed.Seconds(), 'f', 2, 64),
		o.Status.String(),
	}
}

// FormatMetric renders v with eight decimals, or inf, -inf, nan.
func FormatMetric(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'f', 8, 64)
}

// FormatMAPE renders a percentage as "1.2345%", "inf%" or "nan".
func FormatMAPE(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf%"
	case math.IsNaN(v), math.IsInf(v, -1):
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', 4, 64) + "%"
}

// WriteForecast writes step, true, predicted and error (predicted - true).
func WriteForecast(path string, o grid.Outcome) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	cw.Write([]string{"step", "true", "predicted", "error"})
	errs := evaluate.Errors(o.True, o.Predicted)
	for i := range errs {
		cw.Write([]string{
			strconv.Itoa(i),
			strconv.FormatFloat(o.True[i], 'f', -1, 64),
			strconv.FormatFloat(o.Predicted[i], 'f', -1, 64),
			strconv.FormatFloat(errs[i], 'f', -1, 64),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write forecast %s: %w", path, err)
	}
	return f.Close()
}

// WriteErrorAnalysis writes the rolling RMSE series followed by the error
// distribution statistics.
func WriteErrorAnalysis(path string, o grid.Outcome) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	window := evaluate.RollingWindow(len(o.True))
	cw := csv.NewWriter(f)
	cw.Write([]string{"window_start", "rolling_rmse", "window"})
	for i, v := range evaluate.RollingRMSE(o.True, o.Predicted) {
		cw.Write([]string{strconv.Itoa(i), FormatMetric(v), strconv.Itoa(window)})
	}

	st := evaluate.Describe(o.True, o.Predicted)
	cw.Write(nil)
	cw.Write([]string{"stat", "value"})
	cw.Write([]string{"count", strconv.Itoa(st.Count)})
	cw.Write([]string{"mean", FormatMetric(st.Mean)})
	cw.Write([]string{"std", FormatMetric(st.StdDev)})
	cw.Write([]string{"min", FormatMetric(st.Min)})
	cw.Write([]string{"max", FormatMetric(st.Max)})
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write error analysis %s: %w", path, err)
	}
	return f.Close()
}

// WriteArtifacts stores forecast, error analysis and model state of one
// outcome under root/<label>/. Failures are logged; the first is returned.
func WriteArtifacts(root string, o grid.Outcome, log *logger.Logger) error {
	if log == nil {
		log = logger.Nop()
	}
	if o.Status != grid.Success && o.Status != grid.Diverged {
		return nil
	}

	dir := filepath.Join(root, o.Label)
	var first error
	record := func(what string, err error) {
		if err == nil {
			return
		}
		log.Warn("artifact not saved", logger.String("config", o.Label), logger.String("artifact", what), logger.Error(err))
		if first == nil {
			first = err
		}
	}

	record("forecast", WriteForecast(filepath.Join(dir, "forecast_"+o.Label+".csv"), o))
	record("error_analysis", WriteErrorAnalysis(filepath.Join(dir, "error_analysis_"+o.Label+".csv"), o))
	if m := o.Model(); m != nil {
		record("model", m.Save(filepath.Join(dir, "model_"+o.Label+".gob")))
	}
	return first
}

// PrintTable writes the ranked outcomes as an aligned text table.
func PrintTable(w io.Writer, outcomes []grid.Outcome) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Config_Label\tRMSE\tMAE\tMAPE\tR2\tTime(s)\tStatus")
	for _, o := range grid.Rank(outcomes) {
		m := o.Metrics
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\t%s\n",
			o.Label, FormatMetric(m.RMSE), FormatMetric(m.MAE), FormatMAPE(m.MAPE),
			FormatMetric(m.R2), o.Elapsed.Seconds(), o.Status)
	}
	return tw.Flush()
}

// PrintBest writes the best configuration and its metrics, or a notice when
// no configuration succeeded with a finite RMSE.
func PrintBest(w io.Writer, outcomes []grid.Outcome) {
	best, ok := grid.Best(outcomes)
	if !ok {
		fmt.Fprintln(w, "no finite RMSE: every configuration failed or diverged")
		return
	}
	c := best.Config
	m := best.Metrics
	fmt.Fprintf(w, "best configuration: %s\n", best.Label)
	fmt.Fprintf(w, "  lookback=%d hidden=%s loss=%s activation=%s lr=%g momentum=%g epochs=%d batch=%d\n",
		c.Lookback, c.HiddenString(), c.Loss, c.Activation, c.LearningRate, c.Momentum, c.Epochs, c.BatchSize)
	fmt.Fprintf(w, "  MSE: %.4f\n  RMSE: %.4f\n  MAE: %.4f\n  MAPE: %.2f%%\n  R2: %.4f\n",
		m.MSE, m.RMSE, m.MAE, m.MAPE, m.R2)
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}
