// Package logging provides the structured logger used throughout the planner.
// It is a small facade over go.uber.org/zap, following the same shape as
// viam-rdk's logging package but trimmed to what this module needs.
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// Logger is the logging interface used by every package in this module.
type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	With(args ...interface{}) Logger
}

type impl struct {
	sugar *zap.SugaredLogger
}

func (l *impl) Debugf(template string, args ...interface{}) { l.sugar.Debugf(template, args...) }
func (l *impl) Infof(template string, args ...interface{})  { l.sugar.Infof(template, args...) }
func (l *impl) Warnf(template string, args ...interface{})  { l.sugar.Warnf(template, args...) }
func (l *impl) Errorf(template string, args ...interface{}) { l.sugar.Errorf(template, args...) }

func (l *impl) With(args ...interface{}) Logger {
	return &impl{sugar: l.sugar.With(args...)}
}

// NewLogger returns a new logger that writes Info+ logs to stdout.
func NewLogger(name string) Logger {
	cfg := zap.Config{
		Level:    zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			MessageKey:     "msg",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	l, err := cfg.Build()
	if err != nil {
		// Config above is static and known-good; fall back to a no-op logger
		// rather than propagating a construction error from a leaf utility.
		l = zap.NewNop()
	}
	return &impl{sugar: l.Named(name).Sugar()}
}

// NewDebugLogger returns a new logger that also writes Debug level logs.
func NewDebugLogger(name string) Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		l = zap.NewNop()
	}
	return &impl{sugar: l.Named(name).Sugar()}
}

// NewTestLogger returns a logger that writes to the test's own output sink.
func NewTestLogger(tb testing.TB) Logger {
	return &impl{sugar: zaptest.NewLogger(tb).Sugar()}
}
