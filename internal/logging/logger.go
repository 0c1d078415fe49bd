// Package logging builds the zap logger of a headless run. Logs go to stderr
// unless told otherwise, so the report on stdout stays clean.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger.
type Logger struct {
	*zap.Logger
}

// New builds a JSON logger at level, or a colored console logger when dev is
// set. outputs defaults to stderr.
func New(level string, dev bool, outputs ...string) (*Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = lvl
	// Every drop burst matters; never sample.
	cfg.Sampling = nil
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cfg.OutputPaths = []string{"stderr"}
	if len(outputs) > 0 {
		cfg.OutputPaths = outputs
	}

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: l.Named("queuelab")}, nil
}

// NewNop returns a logger that discards everything. The TUI uses it since
// log lines would tear the alternate screen.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}
