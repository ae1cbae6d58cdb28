// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package klogiface adapts github.com/joeycumines/go-rtos's Logger interface
// onto github.com/joeycumines/logiface, using the zerolog backend from
// github.com/joeycumines/logiface-zerolog. It exists to demonstrate (and
// exercise) the same logging-framework interop the logiface module itself
// tests against: a kernel Logger is not required to be the built-in
// DefaultLogger.
package klogiface

import (
	"github.com/joeycumines/logiface"
	izerolog "github.com/joeycumines/logiface-zerolog"
	"github.com/rs/zerolog"
	rtos "github.com/joeycumines/go-rtos"
)

// Logger adapts a *logiface.Logger[*izerolog.Event] to rtos.Logger.
type Logger struct {
	inner *logiface.Logger[*izerolog.Event]
}

// New builds a Logger backed by zl via logiface-zerolog.
func New(zl zerolog.Logger) *Logger {
	l := logiface.New[*izerolog.Event](izerolog.WithZerolog(zl)).Logger()
	return &Logger{inner: l}
}

func (l *Logger) IsEnabled(level rtos.LogLevel) bool {
	return l.inner.Level() >= toLogifaceLevel(level)
}

func (l *Logger) Log(entry rtos.LogEntry) {
	b := l.inner.Build(toLogifaceLevel(entry.Level))
	if b == nil {
		return
	}
	b = b.Str("category", entry.Category)
	if entry.TaskID != 0 {
		b = b.Int("task", int(entry.TaskID))
	}
	if entry.ObjectID != 0 {
		b = b.Int("obj", int(entry.ObjectID))
	}
	if entry.Tick != 0 {
		b = b.Uint64("tick", entry.Tick)
	}
	for k, v := range entry.Context {
		if s, ok := v.(string); ok {
			b = b.Str(k, s)
		}
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	b.Log(entry.Message)
}

func toLogifaceLevel(level rtos.LogLevel) logiface.Level {
	switch level {
	case rtos.LevelDebug:
		return logiface.LevelDebug
	case rtos.LevelInfo:
		return logiface.LevelInformational
	case rtos.LevelWarn:
		return logiface.LevelWarning
	case rtos.LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}
