// Package logger provides structured logging for the chat service.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys shared by every component, so log queries can join a turn's
// lines across the engine, middleware and stores.
const (
	KeyCorrelation = "correlation_id"
	KeyTenant      = "tenant_id"
	KeySession     = "session_id"
	KeyActor       = "actor"
)

// Logger is a wrapper around zap.Logger.
type Logger struct {
	*zap.Logger
}

// Options select the level and encoding of a Logger.
type Options struct {
	// Level is one of debug, info, warn (or warning), error, fatal.
	Level string

	// Format is "json" for production or "console" for local runs.
	Format string
}

// New builds a logger writing to stdout.
func New(opts Options) (*Logger, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var config zap.Config
	switch strings.ToLower(opts.Format) {
	case "", "json":
		config = zap.NewProductionConfig()
		config.Sampling = nil
		config.EncoderConfig.TimeKey = "ts"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder
	case "console":
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("logger: unknown format %q", opts.Format)
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{"stdout"}

	l, err := config.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: l}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// With creates a child logger with additional fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// Named creates a child logger for a component.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name)}
}

// ForTurn scopes a logger to one conversational turn.
func (l *Logger) ForTurn(correlationID, tenantID, sessionID, actor string) *Logger {
	return l.With(Correlation(correlationID), Tenant(tenantID), Session(sessionID), Actor(actor))
}

// ForSession scopes a logger to a session outside any turn.
func (l *Logger) ForSession(tenantID, sessionID string) *Logger {
	return l.With(Tenant(tenantID), Session(sessionID))
}

// Field constructors for the shared keys.

func Correlation(id string) zap.Field { return zap.String(KeyCorrelation, id) }
func Tenant(id string) zap.Field      { return zap.String(KeyTenant, id) }
func Session(id string) zap.Field     { return zap.String(KeySession, id) }
func Actor(kind string) zap.Field     { return zap.String(KeyActor, kind) }

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("logger: %w", err)
	}
	return lvl, nil
}
