// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

import "sync"

// Mutex is a recursive, optionally priority-inheriting lock (spec.md
// §4.3). Invariant: owner == nil iff !locked; recursiveDepth >= 1 iff
// locked.
type Mutex struct {
	mu   sync.Mutex
	k    *Kernel
	id   int64
	name string

	locked         bool
	owner          *Task
	recursiveDepth int
	waitList       waitList

	priorityInheritance bool
	ownerOrigPriority   Priority
	boosted             bool
}

// NewMutex registers a new, unlocked Mutex.
func (k *Kernel) NewMutex(name string) (*Mutex, error) {
	m := &Mutex{k: k, name: name, priorityInheritance: k.opts.priorityInheritance}
	id, err := k.mutexes.Insert(m)
	if err != nil {
		return nil, err
	}
	m.id = id
	return m, nil
}

// Lock blocks until m is available, then records t as owner. Recursive
// locks by the current owner simply increment recursiveDepth.
func (m *Mutex) Lock(t *Task) WaitResult {
	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.owner = t
		m.recursiveDepth = 1
		m.mu.Unlock()
		return WaitCompleted
	}
	if m.owner == t {
		m.recursiveDepth++
		m.mu.Unlock()
		return WaitCompleted
	}

	m.k.metrics.MutexContentions.Add(1)
	if m.priorityInheritance && t.priority > m.owner.priority {
		if !m.boosted {
			m.ownerOrigPriority = m.owner.priority
			m.boosted = true
		}
		donatePriority(m.k, m.owner, t.priority)
	}

	return m.k.block(t, &m.waitList, &m.mu, false, 0)
}

// TryLock never blocks; it reports whether t now holds m.
func (m *Mutex) TryLock(t *Task) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.locked {
		m.locked = true
		m.owner = t
		m.recursiveDepth = 1
		return true
	}
	if m.owner == t {
		m.recursiveDepth++
		return true
	}
	return false
}

// Unlock must be called by the owner. At recursiveDepth 0, ownership
// transfers to the next FIFO waiter, if any.
func (m *Mutex) Unlock(t *Task) error {
	m.mu.Lock()
	if !m.locked || m.owner != t {
		m.mu.Unlock()
		return newErr("Unlock", KindInvalidState, "unlock called by non-owner")
	}

	m.recursiveDepth--
	if m.recursiveDepth > 0 {
		m.mu.Unlock()
		return nil
	}

	if m.boosted {
		t.priority = m.ownerOrigPriority
		m.boosted = false
	}

	next := m.waitList.popFront()
	if next == nil {
		m.locked = false
		m.owner = nil
		m.mu.Unlock()
		return nil
	}
	m.owner = next
	m.recursiveDepth = 1
	m.mu.Unlock()

	m.k.wake(next, WaitCompleted)
	return nil
}

// Destroy unregisters m. Fails with InvalidState if waiters remain
// (spec.md §4.3 "Failure modes").
func (m *Mutex) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.waitList.len() > 0 {
		return newErr("Destroy", KindInvalidState, "mutex destroyed with waiters")
	}
	m.k.mutexes.Remove(m.id)
	return nil
}

func (m *Mutex) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}
