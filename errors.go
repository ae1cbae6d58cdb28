// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

import (
	"errors"
	"fmt"
)

// Kind is the closed taxonomy of fallible-operation outcomes. Kernel-internal
// invariant violations (a frame index out of range, a corrupted run queue)
// are not representable here: they panic, because they indicate a bug in
// the kernel itself rather than a usage error.
type Kind int

const (
	// KindUnknown is the zero value and never returned by the kernel.
	KindUnknown Kind = iota
	// KindOutOfMemory covers task/stack/object allocation failure and frame
	// exhaustion with no evictable victim.
	KindOutOfMemory
	// KindTooManyTasks covers task-table exhaustion.
	KindTooManyTasks
	// KindTooManyObjects covers exhaustion of a synchronization or IPC
	// object table.
	KindTooManyObjects
	// KindNotFound covers lookup by id/key/fd that does not exist.
	KindNotFound
	// KindAlreadyExists covers create with a duplicate key.
	KindAlreadyExists
	// KindInvalidArgument covers a bad size, nil buffer, or bad priority.
	KindInvalidArgument
	// KindInvalidState covers destroy-with-waiters, unlock-not-owner, and
	// double close.
	KindInvalidState
	// KindWouldBlock is returned by a non-blocking variant that would have
	// blocked.
	KindWouldBlock
	// KindTimedOut is returned when a timed wait expires.
	KindTimedOut
	// KindCanceled is returned by a queue or pipe operation whose wait
	// ended with WaitCanceled.
	KindCanceled
	// KindBrokenPipe is returned by a pipe write once the reader has
	// closed its end.
	KindBrokenPipe
	// KindAccessDenied is returned on the caller-facing path of a memory
	// protection violation (the task-terminating path never returns to the
	// caller at all).
	KindAccessDenied
	// KindCorrupt covers heap magic mismatch and footer/header
	// inconsistency.
	KindCorrupt
)

// String renders the Kind as the taxonomy name used in spec tables and logs.
func (k Kind) String() string {
	switch k {
	case KindOutOfMemory:
		return "OutOfMemory"
	case KindTooManyTasks:
		return "TooManyTasks"
	case KindTooManyObjects:
		return "TooManyObjects"
	case KindNotFound:
		return "NotFound"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindInvalidState:
		return "InvalidState"
	case KindWouldBlock:
		return "WouldBlock"
	case KindTimedOut:
		return "TimedOut"
	case KindCanceled:
		return "Canceled"
	case KindBrokenPipe:
		return "BrokenPipe"
	case KindAccessDenied:
		return "AccessDenied"
	case KindCorrupt:
		return "Corrupt"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by every fallible kernel
// operation. Op names the failing method (e.g. "Mutex.Lock"); Cause, when
// set, is chained via Unwrap so errors.Is/As see through to the underlying
// failure.
type Error struct {
	Op    string
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("rtos: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("rtos: %s: %s: %s", e.Op, e.Kind, e.Msg)
}

// Unwrap exposes the chained cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, which is the
// comparison callers almost always want (e.g. errors.Is(err, rtos.ErrTimedOut)).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// newErr constructs an *Error for the given operation and kind.
func newErr(op string, kind Kind, msg string) error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

func wrapErr(op string, kind Kind, msg string, cause error) error {
	return &Error{Op: op, Kind: kind, Msg: msg, Cause: cause}
}

// Sentinel errors, one per Kind, for errors.Is comparisons against a bare
// kind rather than a specific operation (e.g. errors.Is(err, rtos.ErrNotFound)).
var (
	ErrOutOfMemory    = &Error{Op: "*", Kind: KindOutOfMemory}
	ErrTooManyTasks   = &Error{Op: "*", Kind: KindTooManyTasks}
	ErrTooManyObjects = &Error{Op: "*", Kind: KindTooManyObjects}
	ErrNotFound       = &Error{Op: "*", Kind: KindNotFound}
	ErrAlreadyExists  = &Error{Op: "*", Kind: KindAlreadyExists}
	ErrInvalidArg     = &Error{Op: "*", Kind: KindInvalidArgument}
	ErrInvalidState   = &Error{Op: "*", Kind: KindInvalidState}
	ErrWouldBlock     = &Error{Op: "*", Kind: KindWouldBlock}
	ErrTimedOut       = &Error{Op: "*", Kind: KindTimedOut}
	ErrCanceled       = &Error{Op: "*", Kind: KindCanceled}
	ErrBrokenPipe     = &Error{Op: "*", Kind: KindBrokenPipe}
	ErrAccessDenied   = &Error{Op: "*", Kind: KindAccessDenied}
	ErrCorrupt        = &Error{Op: "*", Kind: KindCorrupt}
)

// KindOf extracts the Kind from err, if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindUnknown, false
}
