// Package logging configures the application's slog-based loggers.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

var structuredLogger *slog.Logger
var humanReadableLogger *slog.Logger

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

func replaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		label, exists := levelNames[level]
		if !exists {
			label = level.String()
		}
		a.Value = slog.StringValue(label)
	}
	return a
}

// Init initializes the logging system with structured and human-readable
// loggers: JSON output to stdout for machine consumption, text output to
// stderr for humans. The structured logger becomes the slog default.
func Init() {
	structuredLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: replaceLevelNames,
	}))

	humanReadableLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       slog.LevelInfo,
		ReplaceAttr: replaceLevelNames,
	}))

	slog.SetDefault(structuredLogger)
}

// StructuredLogger returns the JSON logger, initializing on first use.
func StructuredLogger() *slog.Logger {
	if structuredLogger == nil {
		Init()
	}
	return structuredLogger
}

// HumanReadableLogger returns the text logger, initializing on first use.
func HumanReadableLogger() *slog.Logger {
	if humanReadableLogger == nil {
		Init()
	}
	return humanReadableLogger
}

// NewFileLogger creates a service-specific logger writing JSON records to a
// rotating log file. It returns the logger, a close function for the
// underlying writer, and an error if the log directory cannot be created.
func NewFileLogger(filePath, serviceName string, level slog.Leveler) (*slog.Logger, func() error, error) {
	// lumberjack doesn't create directories
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	logWriter := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   false,
	}

	handler := slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})

	logger := slog.New(handler).With("service", serviceName)
	return logger, logWriter.Close, nil
}

// ForService returns a file logger for the named service under logs/,
// falling back to the default structured logger when file creation fails.
func ForService(serviceName string, level slog.Leveler) (*slog.Logger, func() error) {
	logger, closeFn, err := NewFileLogger(filepath.Join("logs", serviceName+".log"), serviceName, level)
	if err != nil {
		slog.Warn("Failed to create file logger, using default", "service", serviceName, "error", err)
		return StructuredLogger().With("service", serviceName), func() error { return nil }
	}
	return logger, closeFn
}
