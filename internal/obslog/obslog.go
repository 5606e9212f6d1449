// Package obslog configures the structured logger shared by internal/ops and
// internal/climd, replacing the teacher's ad hoc fmt.Printf progress output
// with zap so operators can pipe lab runs into log aggregation the same way
// as any other service.
package obslog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger: console-encoded and human-readable when verbose
// is true (development config), JSON otherwise (production config, suited to
// piping into a log collector).
func New(verbose bool) (*zap.Logger, error) {
	if verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}
	return zap.NewProduction()
}

// Nop returns a logger that discards everything, for tests and library
// callers that don't want log output.
func Nop() *zap.Logger {
	return zap.NewNop()
}
