// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pmlog provides structured logging in the go-ethereum-derived
// calling convention the wider luxfi stack uses (Debug/Info/Warn/Error/Crit
// taking a message followed by alternating key, value pairs), backed by
// zap rather than an in-monorepo logger.
package pmlog

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the calling convention every package in this module logs
// through. It intentionally mirrors the luxfi/log surface rather than
// zap's native SugaredLogger method set, so callers read the same way
// regardless of which backend is wired in.
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})

	// With returns a derived Logger that always includes ctx's key/value
	// pairs, for scoping a logger to a component (e.g. "component", "stream").
	With(ctx ...interface{}) Logger
}

type zapLogger struct {
	s *zap.SugaredLogger
}

// New builds a production JSON logger at the given level name (one of
// "trace", "debug", "info", "warn", "error"). "trace" maps to zap's debug
// level since zap has no finer level of its own.
func New(level string) (Logger, error) {
	cfg := zap.NewProductionConfig()
	zl, err := levelFromString(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = zap.NewAtomicLevelAt(zl)
	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{s: base.Sugar()}, nil
}

// NewDevelopment builds a human-readable console logger, suitable for local
// runs and tests.
func NewDevelopment() Logger {
	base, err := zap.NewDevelopment()
	if err != nil {
		// zap.NewDevelopment only fails on sink construction, which cannot
		// happen with the default config.
		panic(err)
	}
	return &zapLogger{s: base.Sugar()}
}

// Discard returns a Logger that drops everything, for tests that do not
// want log noise.
func Discard() Logger {
	return &zapLogger{s: zap.NewNop().Sugar()}
}

func levelFromString(level string) (zapcore.Level, error) {
	switch level {
	case "trace", "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("pmlog: unknown level %q", level)
	}
}

func (l *zapLogger) Trace(msg string, ctx ...interface{}) { l.s.Debugw(msg, ctx...) }
func (l *zapLogger) Debug(msg string, ctx ...interface{}) { l.s.Debugw(msg, ctx...) }
func (l *zapLogger) Info(msg string, ctx ...interface{})  { l.s.Infow(msg, ctx...) }
func (l *zapLogger) Warn(msg string, ctx ...interface{})  { l.s.Warnw(msg, ctx...) }
func (l *zapLogger) Error(msg string, ctx ...interface{}) { l.s.Errorw(msg, ctx...) }
func (l *zapLogger) Crit(msg string, ctx ...interface{})  { l.s.Fatalw(msg, ctx...) }

func (l *zapLogger) With(ctx ...interface{}) Logger {
	return &zapLogger{s: l.s.With(ctx...)}
}
