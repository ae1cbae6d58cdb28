// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

import "sync/atomic"

// atomicState is a lock-free state machine over a small closed set of
// uint32 values, cache-line padded to avoid false sharing between the
// driver goroutine and task goroutines polling it. It is the shared
// machinery behind both KernelState (kernel.go) and TaskState (task.go).
type atomicState struct {
	_ [64]byte
	v atomic.Uint32
	_ [60]byte
}

func newAtomicState(initial uint32) *atomicState {
	s := &atomicState{}
	s.v.Store(initial)
	return s
}

func (s *atomicState) Load() uint32 {
	return s.v.Load()
}

func (s *atomicState) Store(v uint32) {
	s.v.Store(v)
}

// TryTransition atomically moves from `from` to `to`, reporting success.
func (s *atomicState) TryTransition(from, to uint32) bool {
	return s.v.CompareAndSwap(from, to)
}

// TransitionAny moves from any of validFrom to to, trying each in order.
func (s *atomicState) TransitionAny(validFrom []uint32, to uint32) bool {
	for _, from := range validFrom {
		if s.v.CompareAndSwap(from, to) {
			return true
		}
	}
	return false
}

// KernelState is the run state of the kernel's driver loop.
type KernelState uint32

const (
	// KernelCreated is the state between New and Run.
	KernelCreated KernelState = iota
	// KernelRunning indicates the driver loop is actively dispatching tasks.
	KernelRunning
	// KernelIdle indicates the driver loop has no READY task and is parked
	// on the idle task.
	KernelIdle
	// KernelStopping indicates Shutdown was called but drain is incomplete.
	KernelStopping
	// KernelStopped is terminal.
	KernelStopped
)

func (s KernelState) String() string {
	switch s {
	case KernelCreated:
		return "Created"
	case KernelRunning:
		return "Running"
	case KernelIdle:
		return "Idle"
	case KernelStopping:
		return "Stopping"
	case KernelStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
