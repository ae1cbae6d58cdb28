// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

import "sync"

// Cond is a condition variable always paired with a Mutex at wait time
// (spec.md §4.3). Spurious wakes are permitted; callers loop on their own
// predicate exactly as with a POSIX condvar.
type Cond struct {
	mu       sync.Mutex
	k        *Kernel
	id       int64
	name     string
	waitList waitList
}

// NewCond registers a new condition variable.
func (k *Kernel) NewCond(name string) (*Cond, error) {
	c := &Cond{k: k, name: name}
	id, err := k.conds.Insert(c)
	if err != nil {
		return nil, err
	}
	c.id = id
	return c, nil
}

// Wait atomically releases m, blocks on c's wait list, and reacquires m
// before returning.
func (c *Cond) Wait(t *Task, m *Mutex) WaitResult {
	c.mu.Lock()
	if err := m.Unlock(t); err != nil {
		c.mu.Unlock()
		return WaitCompleted
	}
	c.k.metrics.CondContentions.Add(1)
	result := c.k.block(t, &c.waitList, &c.mu, false, 0)
	m.Lock(t)
	return result
}

// TimedWait is Wait bounded by ms ticks; it returns WaitTimedOut if no
// signal arrived within the bound. m is reacquired either way.
func (c *Cond) TimedWait(t *Task, m *Mutex, ms uint64) WaitResult {
	c.mu.Lock()
	if err := m.Unlock(t); err != nil {
		c.mu.Unlock()
		return WaitCompleted
	}
	c.k.metrics.CondContentions.Add(1)
	result := c.k.block(t, &c.waitList, &c.mu, true, ms)
	m.Lock(t)
	return result
}

// Signal wakes one waiter, FIFO.
func (c *Cond) Signal() {
	c.mu.Lock()
	next := c.waitList.popFront()
	c.mu.Unlock()
	if next != nil {
		c.k.wake(next, WaitCompleted)
	}
}

// Broadcast wakes every waiter.
func (c *Cond) Broadcast() {
	c.mu.Lock()
	all := c.waitList.drain()
	c.mu.Unlock()
	for _, t := range all {
		c.k.wake(t, WaitCompleted)
	}
}

// Destroy unregisters c. Fails if waiters remain.
func (c *Cond) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.waitList.len() > 0 {
		return newErr("Destroy", KindInvalidState, "condition variable destroyed with waiters")
	}
	c.k.conds.Remove(c.id)
	return nil
}
