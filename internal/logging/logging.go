// Package logging constructs the zap logger the orchestrator and its
// collaborators use to correlate concurrent executions, replacing the
// teacher's terminal-attended fmt.Printf convention for this service-shaped
// component (see SPEC_FULL.md §2).
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger. debug=true switches to development encoding
// (human-readable, colorized level, stack traces on warn+); otherwise it
// builds a production JSON encoder suitable for ingestion.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// ForExecution returns a child logger with the execution id attached to
// every subsequent field, the correlation key every orchestrator log line
// carries.
func ForExecution(base *zap.Logger, executionID string) *zap.Logger {
	return base.With(zap.String("execution_id", executionID))
}

// ForPhase further scopes a logger to one phase within an execution.
func ForPhase(base *zap.Logger, phaseID, phaseName string) *zap.Logger {
	return base.With(zap.String("phase_id", phaseID), zap.String("phase_name", phaseName))
}
