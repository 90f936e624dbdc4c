package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestStandardLoggerLevels(t *testing.T) {
	var buf bytes.Buffer

	logger := NewStandardLogger(
		WithOutput(&buf),
		WithLevel(LevelDebug),
	)

	logger.Debug("opening table %s", "people")
	if !strings.Contains(buf.String(), "[DEBUG]") || !strings.Contains(buf.String(), "opening table people") {
		t.Errorf("Debug logging failed, got: %s", buf.String())
	}
	buf.Reset()

	logger.Info("packed %d records", 7)
	if !strings.Contains(buf.String(), "[INFO]") || !strings.Contains(buf.String(), "packed 7 records") {
		t.Errorf("Info logging failed, got: %s", buf.String())
	}
	buf.Reset()

	logger.Warn("memo blocks leaked")
	if !strings.Contains(buf.String(), "[WARN]") {
		t.Errorf("Warn logging failed, got: %s", buf.String())
	}
	buf.Reset()

	logger.Error("rewrite failed")
	if !strings.Contains(buf.String(), "[ERROR]") {
		t.Errorf("Error logging failed, got: %s", buf.String())
	}
}

func TestStandardLoggerFiltering(t *testing.T) {
	var buf bytes.Buffer

	logger := NewStandardLogger(WithOutput(&buf), WithLevel(LevelWarn))

	logger.Debug("hidden")
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected below-level messages to be dropped, got: %s", buf.String())
	}

	logger.SetLevel(LevelDebug)
	logger.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("expected debug message after SetLevel, got: %s", buf.String())
	}
}

func TestStandardLoggerWithField(t *testing.T) {
	var buf bytes.Buffer

	logger := NewStandardLogger(WithOutput(&buf))
	tableLogger := logger.WithField("table", "people").WithField("dialect", "db3")

	tableLogger.Info("appended record")
	output := buf.String()
	if !strings.Contains(output, "table=people") || !strings.Contains(output, "dialect=db3") {
		t.Errorf("expected context fields in output, got: %s", output)
	}

	// parent logger must not inherit the child's fields
	buf.Reset()
	logger.Info("plain")
	if strings.Contains(buf.String(), "table=people") {
		t.Errorf("parent logger gained child fields: %s", buf.String())
	}
}

func TestDiscardLogger(t *testing.T) {
	var d Discard
	d.Info("dropped %d", 1)
	if l := d.WithField("k", "v"); l == nil {
		t.Error("Discard.WithField returned nil")
	}
}
