package report

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FlavioCFOliveira/rollcast/internal/evaluate"
	"github.com/FlavioCFOliveira/rollcast/internal/grid"
)

func sampleOutcome(label string, lookback int, rmse float64, status grid.Status) grid.Outcome {
	return grid.Outcome{
		Config: grid.Configuration{
			Lookback: lookback, Hidden: []int{8, 4}, Loss: "SEL", Activation: "tanh",
			LearningRate: 0.005, Momentum: 0.9, Epochs: 100, BatchSize: 32,
		},
		Label:   label,
		Status:  status,
		Metrics: evaluate.Summary{MSE: rmse * rmse, RMSE: rmse, MAE: rmse, MAPE: 1.5, R2: 0.9},
		Elapsed: 1500 * time.Millisecond,
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{FormatMetric(0.5), "0.50000000"},
		{FormatMetric(math.Inf(1)), "inf"},
		{FormatMetric(math.Inf(-1)), "-inf"},
		{FormatMetric(math.NaN()), "nan"},
		{FormatMAPE(1.23456), "1.2346%"},
		{FormatMAPE(math.Inf(1)), "inf%"},
		{FormatMAPE(math.NaN()), "nan"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestEncodeSummaryRanksRows(t *testing.T) {
	worst := sampleOutcome("lb60", 60, 0, grid.InsufficientHistory)
	worst.Metrics = evaluate.Worst()
	outcomes := []grid.Outcome{
		worst,
		sampleOutcome("lb40", 40, 0.8, grid.Success),
		sampleOutcome("lb20", 20, 0.3, grid.Success),
	}

	var buf bytes.Buffer
	if err := EncodeSummary(&buf, outcomes); err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Fatalf("rows = %d, want 4", len(records))
	}
	if strings.Join(records[0], ",") != strings.Join(SummaryHeader, ",") {
		t.Errorf("header = %v", records[0])
	}
	order := []string{records[1][0], records[2][0], records[3][0]}
	if order[0] != "lb20" || order[1] != "lb40" || order[2] != "lb60" {
		t.Errorf("order = %v", order)
	}
	row := records[1]
	if row[2] != "[8, 4]" || row[3] != "0.005" || row[9] != "1.5000%" || row[11] != "1.50" || row[12] != "success" {
		t.Errorf("row = %v", row)
	}
	if records[3][7] != "inf" || records[3][9] != "inf%" || records[3][10] != "-inf" {
		t.Errorf("worst row = %v", records[3])
	}
}

func TestWriteSummaryCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), ResultsDir("usd_jpy", 150), SummaryFile("usd_jpy"))
	if err := WriteSummary(path, []grid.Outcome{sampleOutcome("a", 20, 1, grid.Success)}); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	if !strings.HasSuffix(path, filepath.Join("ffnn_results_usd_jpy_1step_last150test", "summary_table_FFNN_usd_jpy.csv")) {
		t.Errorf("unexpected path %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error(err)
	}
}

func TestWriteForecast(t *testing.T) {
	o := sampleOutcome("a", 20, 1, grid.Success)
	o.True = []float64{100, 101}
	o.Predicted = []float64{100.5, 100.5}

	path := filepath.Join(t.TempDir(), "f.csv")
	if err := WriteForecast(path, o); err != nil {
		t.Fatal(err)
	}
	records := readCSV(t, path)
	if len(records) != 3 {
		t.Fatalf("rows = %d, want 3", len(records))
	}
	if records[1][3] != "0.5" || records[2][3] != "-0.5" {
		t.Errorf("errors column = %v, %v", records[1], records[2])
	}
}

func TestWriteArtifactsSkipsFailedRuns(t *testing.T) {
	dir := t.TempDir()
	o := sampleOutcome("lb60", 60, 0, grid.InsufficientHistory)
	if err := WriteArtifacts(dir, o, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "lb60")); !os.IsNotExist(err) {
		t.Error("no directory should be created for a failed run")
	}
}

func TestWriteArtifacts(t *testing.T) {
	dir := t.TempDir()
	o := sampleOutcome("lb20", 20, 1, grid.Success)
	o.True = make([]float64, 30)
	o.Predicted = make([]float64, 30)
	for i := range o.True {
		o.True[i] = float64(i)
		o.Predicted[i] = float64(i) + 1
	}
	if err := WriteArtifacts(dir, o, nil); err != nil {
		t.Fatal(err)
	}

	analysis := readCSV(t, filepath.Join(dir, "lb20", "error_analysis_lb20.csv"))
	// window 3 over 30 points -> 28 rolling rows after the header
	if analysis[1][1] != "1.00000000" || analysis[28][0] != "27" {
		t.Errorf("rolling rows = %v ... %v", analysis[1], analysis[28])
	}
	if _, err := os.Stat(filepath.Join(dir, "lb20", "forecast_lb20.csv")); err != nil {
		t.Error(err)
	}
}

func TestPrintTableAndBest(t *testing.T) {
	outcomes := []grid.Outcome{
		sampleOutcome("slow", 40, 2, grid.Success),
		sampleOutcome("fast", 20, 1, grid.Success),
	}
	var buf bytes.Buffer
	if err := PrintTable(&buf, outcomes); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "fast") {
		t.Errorf("table = %q", buf.String())
	}

	buf.Reset()
	PrintBest(&buf, outcomes)
	if !strings.Contains(buf.String(), "best configuration: fast") {
		t.Errorf("best = %q", buf.String())
	}

	buf.Reset()
	w := sampleOutcome("x", 20, 0, grid.Diverged)
	w.Metrics = evaluate.Worst()
	PrintBest(&buf, []grid.Outcome{w})
	if !strings.Contains(buf.String(), "no finite RMSE") {
		t.Errorf("best = %q", buf.String())
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return records
}
