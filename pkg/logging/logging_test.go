package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/natefinch/lumberjack.v2"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"TRACE":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		" Warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for name, want := range tests {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %v, expected %v", name, got, want)
		}
	}
}

func TestWriterStderr(t *testing.T) {
	if w := Writer(Config{}); w != os.Stderr {
		t.Errorf("Expected stderr writer, got %T", w)
	}
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dicfield.log")
	cfg := Config{File: path, Level: "warn", MaxSize: 1, MaxBackups: 1}

	w, ok := Writer(cfg).(*lumberjack.Logger)
	if !ok {
		t.Fatalf("Expected a rotating file writer")
	}
	defer w.Close()

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}))
	logger.Info("hidden")
	logger.Warn("visible", "points", 42)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Errorf("Info record written at warn level: %s", out)
	}
	if !strings.Contains(out, "visible") || !strings.Contains(out, "points=42") {
		t.Errorf("Missing warn record: %s", out)
	}

	if New(cfg).Enabled(context.Background(), slog.LevelInfo) {
		t.Errorf("Logger from New should not be enabled for info at warn level")
	}
}

func TestDiscard(t *testing.T) {
	if !Discard().Enabled(context.Background(), slog.LevelInfo) {
		t.Errorf("Discard logger should accept records")
	}
}
