// Package series loads a dated price series and derives the log returns and
// technical features the forecaster consumes.
package series

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimeSeries is an ordered, duplicate-free sequence of (timestamp, price).
// It is not modified after construction.
type TimeSeries struct {
	Column string
	Dates  []time.Time
	Prices []float64
}

// Len returns the number of observations.
func (ts *TimeSeries) Len() int { return len(ts.Prices) }

// LoadOptions names the columns to read.
type LoadOptions struct {
	// TargetCol is the price column. Required.
	TargetCol string
	// DateCol is the timestamp column; empty means "date", falling back to "Date".
	DateCol string
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"2006/1/2",
	"01/02/2006",
	"20060102",
}

// LoadCSV reads a series from a CSV file with a header row.
func LoadCSV(path string, opts LoadOptions) (*TimeSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open series: %w", err)
	}
	defer f.Close()

	return ReadCSV(f, opts)
}

// ReadCSV parses a series from r. Rows are sorted by timestamp; rows whose
// price cell is empty or NaN are dropped.
func ReadCSV(r io.Reader, opts LoadOptions) (*TimeSeries, error) {
	if opts.TargetCol == "" {
		return nil, errors.New("series: target column not set")
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, integrity(ReasonEmpty, "", "no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	dateIdx, dateName := -1, opts.DateCol
	targetIdx := -1
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch {
		case opts.DateCol != "" && h == opts.DateCol:
			dateIdx = i
		case opts.DateCol == "" && h == "date":
			dateIdx, dateName = i, h
		case opts.DateCol == "" && h == "Date" && dateIdx < 0:
			dateIdx, dateName = i, h
		}
		if h == opts.TargetCol {
			targetIdx = i
		}
	}
	if dateIdx < 0 {
		name := opts.DateCol
		if name == "" {
			name = "date"
		}
		return nil, integrity(ReasonMissingColumn, name, "header %v", header)
	}
	if targetIdx < 0 {
		return nil, integrity(ReasonMissingColumn, opts.TargetCol, "header %v", header)
	}

	type row struct {
		at    time.Time
		price float64
	}
	var rows []row
	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line++
		if len(rec) <= dateIdx || len(rec) <= targetIdx {
			continue
		}

		cell := strings.TrimSpace(rec[targetIdx])
		if isMissing(cell) {
			continue
		}
		price, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, integrity(ReasonNonNumeric, opts.TargetCol, "line %d: %q", line, cell)
		}
		if math.IsNaN(price) {
			continue
		}

		at, err := parseTime(strings.TrimSpace(rec[dateIdx]))
		if err != nil {
			return nil, integrity(ReasonBadTimestamp, dateName, "line %d: %v", line, err)
		}
		rows = append(rows, row{at: at, price: price})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].at.Before(rows[j].at) })

	dates := make([]time.Time, len(rows))
	prices := make([]float64, len(rows))
	for i, r := range rows {
		dates[i] = r.at
		prices[i] = r.price
	}
	return New(opts.TargetCol, dates, prices)
}

// New validates and wraps aligned dates and prices. Dates must be strictly
// increasing and prices finite and positive.
func New(column string, dates []time.Time, prices []float64) (*TimeSeries, error) {
	if len(dates) != len(prices) {
		return nil, fmt.Errorf("series: %d dates for %d prices", len(dates), len(prices))
	}
	if len(prices) == 0 {
		return nil, integrity(ReasonEmpty, column, "no observations")
	}
	for i, p := range prices {
		if !(p > 0) || math.IsInf(p, 0) {
			return nil, integrity(ReasonNonPositivePrice, column, "row %d: %v", i, p)
		}
		if i > 0 && !dates[i].After(dates[i-1]) {
			return nil, integrity(ReasonDuplicateTimestamp, "", "row %d: %s", i, dates[i].Format(time.RFC3339))
		}
	}
	return &TimeSeries{Column: column, Dates: dates, Prices: prices}, nil
}

func isMissing(cell string) bool {
	switch strings.ToLower(cell) {
	case "", "na", "n/a", "nan", "null", "none":
		return true
	}
	return false
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
