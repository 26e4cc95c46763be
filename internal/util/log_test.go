package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger("debug")
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}

	logger = NewLogger("invalid")
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", logger.GetLevel())
	}

	logger = NewLogger("")
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info for empty level, got %s", logger.GetLevel())
	}
}

func TestConsoleLoggerWritesText(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", true)
	logger.Info().Str("asset", "WIF").Msg("signal")
	out := buf.String()
	if !strings.Contains(out, "signal") || !strings.Contains(out, "WIF") {
		t.Fatalf("unexpected console output: %s", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("expected non-JSON console output, got %s", out)
	}
}
