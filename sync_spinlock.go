// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

import (
	"runtime"
	"sync/atomic"
)

// Spinlock is for very short critical sections at interrupt priority
// (spec.md §4.3): it disables interrupts while held, never blocks, and
// must not be held across any blocking primitive.
type Spinlock struct {
	k      *Kernel
	id     int64
	name   string
	locked atomic.Bool
}

// NewSpinlock returns a new, unlocked Spinlock. Unlike the other
// primitives it is not registered in an object table.
func (k *Kernel) NewSpinlock(name string) (*Spinlock, error) {
	s := &Spinlock{k: k, name: name}
	return s, nil
}

// Lock disables interrupts and busy-waits for ownership, returning the
// prior interrupt state for Unlock to restore.
func (s *Spinlock) Lock() uint64 {
	prior := s.k.platform.DisableInterrupts()
	counted := false
	for !s.locked.CompareAndSwap(false, true) {
		if !counted {
			s.k.metrics.SpinContentions.Add(1)
			counted = true
		}
		runtime.Gosched()
	}
	return prior
}

// TryLock never blocks.
func (s *Spinlock) TryLock() (prior uint64, ok bool) {
	prior = s.k.platform.DisableInterrupts()
	if s.locked.CompareAndSwap(false, true) {
		return prior, true
	}
	s.k.platform.RestoreInterrupts(prior)
	return 0, false
}

// Unlock releases ownership and restores the interrupt state captured by
// Lock/TryLock.
func (s *Spinlock) Unlock(prior uint64) {
	s.locked.Store(false)
	s.k.platform.RestoreInterrupts(prior)
}
