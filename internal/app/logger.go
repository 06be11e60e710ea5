package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a configured slog.Logger based on configuration.
func NewLogger(cfg *ClientConfig) *slog.Logger {
	return NewLoggerTo(os.Stdout, cfg, slog.LevelInfo)
}

// NewLoggerTo builds the logger on w, dropping records below level.
func NewLoggerTo(w io.Writer, cfg *ClientConfig, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true, Level: level}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
