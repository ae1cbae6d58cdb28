// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package klogiface

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rtos "github.com/joeycumines/go-rtos"
)

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	l := New(zl)

	entry := rtos.NewLogEntry(rtos.LevelWarn, "heap", "allocation failed").
		Task(7).
		Field("size", 128).
		Err(errors.New("arena exhausted")).
		Build()
	l.Log(entry)

	out := buf.String()
	assert.Contains(t, out, `"category":"heap"`)
	assert.Contains(t, out, `"task":7`)
	assert.Contains(t, out, `"message":"allocation failed"`)
	assert.Contains(t, out, "arena exhausted")
}

func TestLoggerDefaultLevelIsInformational(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	l := New(zl)

	// The logiface logger's own level gate defaults to Informational,
	// independent of the wrapped zerolog.Logger's level.
	require.False(t, l.IsEnabled(rtos.LevelDebug))
	require.True(t, l.IsEnabled(rtos.LevelInfo))
	require.True(t, l.IsEnabled(rtos.LevelError))

	l.Log(rtos.NewLogEntry(rtos.LevelDebug, "task", "created").Build())
	assert.Empty(t, buf.String())

	l.Log(rtos.NewLogEntry(rtos.LevelError, "task", "crashed").Build())
	assert.Contains(t, buf.String(), "crashed")
}

func TestLoggerOmitsZeroIDs(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	l := New(zl)

	l.Log(rtos.NewLogEntry(rtos.LevelInfo, "scheduler", "tick").Build())

	out := buf.String()
	assert.NotContains(t, out, `"task"`)
	assert.NotContains(t, out, `"obj"`)
}
