// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

import "sync"

// cancelSignal is a list of cancel handlers attached to every Task.
// Kernel.block clears the task's signal and registers a handler on it
// before parking. Kernel.Delete does not fire the signal: it calls
// cancelBlocked directly, which takes the task off its wait list and
// records WaitCanceled (spec.md §4.2 "Cancellation / timeouts").
type cancelSignal struct {
	mu        sync.Mutex
	canceled  bool
	reason    any
	handlers  []func(reason any)
}

func newCancelSignal() *cancelSignal {
	return &cancelSignal{}
}

// Canceled reports whether Cancel has been called.
func (s *cancelSignal) Canceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

// Reason returns the value passed to Cancel, or nil.
func (s *cancelSignal) Reason() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// OnCancel registers handler to run when Cancel fires. If the signal is
// already canceled, handler runs immediately.
func (s *cancelSignal) OnCancel(handler func(reason any)) {
	if handler == nil {
		return
	}
	s.mu.Lock()
	if s.canceled {
		reason := s.reason
		s.mu.Unlock()
		handler(reason)
		return
	}
	s.handlers = append(s.handlers, handler)
	s.mu.Unlock()
}

// Cancel marks the signal canceled and runs every registered handler
// exactly once. Repeat calls are no-ops; the first reason wins.
func (s *cancelSignal) Cancel(reason any) {
	s.mu.Lock()
	if s.canceled {
		s.mu.Unlock()
		return
	}
	s.canceled = true
	s.reason = reason
	handlers := make([]func(reason any), len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	for _, h := range handlers {
		h(reason)
	}
}

// reset clears a signal for reuse across a task's lifetime: the task's
// one cancelSignal is cleared each time it blocks, so a cancel delivered
// during one wait never leaks into the next.
func (s *cancelSignal) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canceled = false
	s.reason = nil
	s.handlers = s.handlers[:0]
}
