// Package logging builds the structured logrus.Logger shared by the
// orchestrator and dashboard: JSON formatting when running live,
// human-readable text in dry-run, level from config with a safe fallback
// to info.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logger. liveFormat selects JSON output (for log
// aggregation in production); otherwise text with full timestamps.
func New(level string, liveFormat bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if liveFormat {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.WithError(err).Warn("invalid log level; defaulting to info")
	}

	return logger
}
