// Package logging builds the process zap logger and adapts it to the small
// key/value Logger contract used by internal/core.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger. format is "json" or "console"; level is any zap
// level name.
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// Adapter exposes a zap logger through Debug/Info/Warn/Error with
// alternating key/value arguments.
type Adapter struct {
	s *zap.SugaredLogger
}

// NewAdapter wraps l. A nil l yields a no-op adapter.
func NewAdapter(l *zap.Logger) *Adapter {
	if l == nil {
		l = zap.NewNop()
	}
	return &Adapter{s: l.Sugar()}
}

func (a *Adapter) Debug(msg string, args ...any) { a.s.Debugw(msg, args...) }
func (a *Adapter) Info(msg string, args ...any)  { a.s.Infow(msg, args...) }
func (a *Adapter) Warn(msg string, args ...any)  { a.s.Warnw(msg, args...) }
func (a *Adapter) Error(msg string, args ...any) { a.s.Errorw(msg, args...) }

// With returns an adapter that adds args to every entry.
func (a *Adapter) With(args ...any) *Adapter { return &Adapter{s: a.s.With(args...)} }

// Sync flushes buffered entries.
func (a *Adapter) Sync() error { return a.s.Sync() }
