// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

// TaskState is a task's position in spec.md §3's state machine: a task is
// RUNNING iff it is the scheduler's current task iff it is on no queue; a
// BLOCKED task is on exactly one wait list or the sleep list.
type TaskState uint32

const (
	TaskReady TaskState = iota
	TaskRunning
	TaskBlocked
	TaskSuspended
	TaskTerminated
)

func (s TaskState) String() string {
	switch s {
	case TaskReady:
		return "Ready"
	case TaskRunning:
		return "Running"
	case TaskBlocked:
		return "Blocked"
	case TaskSuspended:
		return "Suspended"
	case TaskTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Priority is a 5-level ordinal. The priority policy orders by it and the
// fair policy maps it to a weight (niceWeights); round-robin and MLFQ
// ignore it, and the real-time policy orders by its rtExt fields
// (scheduler.go's schedExt).
type Priority int

const (
	PriorityIdle Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// WaitResult is returned by every blocking primitive (spec.md §5
// "Cancellation").
type WaitResult int

const (
	WaitCompleted WaitResult = iota
	WaitTimedOut
	WaitCanceled
)

func (r WaitResult) String() string {
	switch r {
	case WaitCompleted:
		return "Completed"
	case WaitTimedOut:
		return "TimedOut"
	case WaitCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}
