// Package logger wraps zap for the server process.
package logger

import (
	"go.uber.org/zap"
)

// ZapLogger holds the process-wide structured logger.
type ZapLogger struct {
	// Log is a no-op logger until Init succeeds.
	Log *zap.Logger
}

// New returns a ZapLogger backed by a no-op logger.
func New() *ZapLogger {
	return &ZapLogger{Log: zap.NewNop()}
}

// Init replaces Log with a production JSON logger at the given level
// ("debug", "info", "warn", "error").
func (l *ZapLogger) Init(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	zl, err := cfg.Build()
	if err != nil {
		return err
	}
	l.Log = zl
	return nil
}
