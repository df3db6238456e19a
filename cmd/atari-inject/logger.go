package main

import (
	"io"
	"log/slog"

	"github.com/npratt/atari/internal/config"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// TUILoggerResult holds a logger redirected to a rotating file, so TUI mode
// doesn't have log lines corrupting the alt-screen display.
type TUILoggerResult struct {
	Logger   *slog.Logger
	Writer   *lumberjack.Logger
	FilePath string
}

// Close closes the underlying rotating log file.
func (r *TUILoggerResult) Close() error {
	if r.Writer != nil {
		return r.Writer.Close()
	}
	return nil
}

// SetupTUILogger creates a logger that writes to a lumberjack-rotated file
// instead of stderr, sized per rot.
func SetupTUILogger(logPath string, level slog.Leveler, rot config.LogRotationConfig) (*TUILoggerResult, error) {
	w := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    rot.MaxSizeMB,
		MaxBackups: rot.MaxBackups,
		MaxAge:     rot.MaxAgeDays,
		Compress:   rot.Compress,
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))

	return &TUILoggerResult{Logger: logger, Writer: w, FilePath: logPath}, nil
}

// SetupTUILoggerWithWriter creates a logger writing to w, useful for tests
// that want to capture output without touching the filesystem.
func SetupTUILoggerWithWriter(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
