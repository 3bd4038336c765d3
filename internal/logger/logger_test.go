package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, zerolog.DebugLevel).With(String("config", "lb20"))

	log.Info("run finished",
		Int("steps", 49),
		Float("rmse", 0.25),
		Bool("best", true),
		Duration("elapsed", 2*time.Second),
		Error(errors.New("boom")),
	)

	var event map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}

	if event["config"] != "lb20" {
		t.Errorf("config = %v, want lb20", event["config"])
	}
	if event["steps"] != float64(49) {
		t.Errorf("steps = %v, want 49", event["steps"])
	}
	if event["error"] != "boom" {
		t.Errorf("error = %v, want boom", event["error"])
	}
	if event["message"] != "run finished" {
		t.Errorf("message = %v", event["message"])
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, zerolog.WarnLevel)

	log.Debug("hidden")
	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}

	log.Warn("shown")
	if buf.Len() == 0 {
		t.Error("expected warn output")
	}
	if log.Enabled(zerolog.DebugLevel) {
		t.Error("debug should not be enabled")
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	log.Error("nothing", String("k", "v"))
	if log.Enabled(zerolog.ErrorLevel) {
		t.Error("nop logger should not be enabled")
	}
}
