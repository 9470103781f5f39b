package main

import (
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"gravmag/pkg/config"
)

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// numeric slog levels, e.g. -4 for debug
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}
	return defaultLevel
}

// configureLogger builds the file logger and makes it the slog default. It
// logs at the configured level, or at Debug when verbose. The returned
// function closes the log file.
func configureLogger(cfg *config.Config) (*slog.Logger, func() error) {
	level := parseSlogLevel(cfg.Log.Level, slog.LevelInfo)
	if cfg.Log.Verbose {
		level = slog.LevelDebug
	}

	writer := &lumberjack.Logger{
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}
	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{
		AddSource: cfg.Log.Verbose,
		Level:     level,
	})

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, writer.Close
}

// newConsoleLogger builds the logger for messages meant for the person
// running the command.
func newConsoleLogger(w io.Writer, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}
