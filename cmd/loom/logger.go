package main

import (
	"fmt"
	"log/slog"
	"os"
)

const (
	logLevelEnvVar  = "LOOM_LOG_LEVEL"
	logFileEnvVar   = "LOOM_LOG_FILE"
	logFormatEnvVar = "LOOM_LOG_FORMAT"
)

// initLoggerFromCLI installs the process-wide slog default logger.
// Priority: CLI flags > env vars > defaults (LoggerConfig.SetDefaults).
// It runs before config-file loading so earlier startup errors (a bad
// --config path, say) are still logged consistently.
func initLoggerFromCLI(cliLevel, cliFile, cliFormat string) (func(), error) {
	level := firstNonEmpty(cliLevel, os.Getenv(logLevelEnvVar), "info")
	file := firstNonEmpty(cliFile, os.Getenv(logFileEnvVar))
	format := firstNonEmpty(cliFormat, os.Getenv(logFormatEnvVar), "text")

	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	out := os.Stderr
	var cleanup func()
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", file, err)
		}
		out = f
		cleanup = func() { f.Close() }
	}

	opts := &slog.HandlerOptions{Level: slogLevel}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))

	return cleanup, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
