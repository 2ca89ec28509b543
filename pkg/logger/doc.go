// Package logger builds configured log/slog loggers.
//
// It is a thin factory over slog's JSON and text handlers with functional
// options for level, format, output and static attributes:
//
//	log := logger.New(
//		logger.WithService("webhooks"),
//		logger.WithLevel(slog.LevelDebug),
//		logger.WithTextFormatter(),
//	)
//
// Production defaults (JSON, info level, stdout) apply when no options are
// given.
package logger
