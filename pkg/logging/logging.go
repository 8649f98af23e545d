// Package logging builds the slog loggers used across dicfield, writing to
// stderr or to a size-rotated log file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	File       string // log file path, empty for stderr
	Level      string // DEBUG, INFO, WARN, ERROR
	MaxSize    int    // MB before rotation
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// New returns a text logger configured by cfg. When cfg.File is set, output
// goes to a rotating file instead of stderr.
func New(cfg Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(Writer(cfg), &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}))
}

// Writer returns the destination described by cfg.
func Writer(cfg Config) io.Writer {
	if cfg.File == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}
}

// ParseLevel maps a level name to a slog level. Unknown names fall back to INFO.
func ParseLevel(name string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG", "TRACE":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
