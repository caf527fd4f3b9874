// Package corelog provides the process-lifecycle logger used across the
// runtime. Per Design Notes §9 ("Singletons"), the logger is constructed
// once at start-up and passed by reference into the components that need
// it (in this module, only the logging middleware via
// middleware.LoggingWith) rather than pulled
// from an implicit global inside hot paths — that keeps tests isolatable
// and lets a host program substitute its own sink.
package corelog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-profile zap logger. Set debug to true for a
// development profile (console encoding, debug level, caller info).
func New(debug bool) (*zap.Logger, error) {
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return cfg.Build()
	}
	return zap.NewProduction()
}

// Noop returns a logger that discards everything — used as the default
// for components constructed without an explicit logger (tests, or a
// host program that hasn't wired corelog yet).
func Noop() *zap.Logger {
	return zap.NewNop()
}
