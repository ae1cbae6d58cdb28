// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

import "sync"

// Semaphore is a counting semaphore (spec.md §4.3). Invariant: count > 0
// implies the wait list is empty.
type Semaphore struct {
	mu       sync.Mutex
	k        *Kernel
	id       int64
	name     string
	count    int
	waitList waitList
}

// NewSemaphore registers a semaphore initialized to n (n >= 0).
func (k *Kernel) NewSemaphore(name string, n int) (*Semaphore, error) {
	if n < 0 {
		return nil, newErr("NewSemaphore", KindInvalidArgument, "initial count must be >= 0")
	}
	s := &Semaphore{k: k, name: name, count: n}
	id, err := k.sems.Insert(s)
	if err != nil {
		return nil, err
	}
	s.id = id
	return s, nil
}

// Wait decrements count, blocking while it is zero.
func (s *Semaphore) Wait(t *Task) WaitResult {
	s.mu.Lock()
	if s.count > 0 {
		s.count--
		s.mu.Unlock()
		return WaitCompleted
	}
	s.k.metrics.SemaphoreContentions.Add(1)
	return s.k.block(t, &s.waitList, &s.mu, false, 0)
}

// TryWait never blocks.
func (s *Semaphore) TryWait() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count > 0 {
		s.count--
		return true
	}
	return false
}

// Post increments count, or — if a waiter is present — wakes exactly one
// without incrementing (the count passes directly to the waiter, per
// spec.md §4.3).
func (s *Semaphore) Post() {
	s.mu.Lock()
	next := s.waitList.popFront()
	if next == nil {
		s.count++
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.k.wake(next, WaitCompleted)
}

// Destroy unregisters s. Fails if waiters remain.
func (s *Semaphore) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waitList.len() > 0 {
		return newErr("Destroy", KindInvalidState, "semaphore destroyed with waiters")
	}
	s.k.sems.Remove(s.id)
	return nil
}

func (s *Semaphore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
