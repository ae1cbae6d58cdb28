// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

// RWLock is a writer-preferring reader/writer lock (spec.md §4.3): a
// waiting writer blocks new readers. It is built directly on Mutex and
// Cond rather than duplicating their wait-list/block machinery.
type RWLock struct {
	k    *Kernel
	id   int64
	name string

	guard     *Mutex
	readersCV *Cond
	writersCV *Cond

	readerCount    int
	writerActive   bool
	writersWaiting int
}

// NewRWLock registers a new, unlocked RWLock.
func (k *Kernel) NewRWLock(name string) (*RWLock, error) {
	guard, err := k.NewMutex(name + ".guard")
	if err != nil {
		return nil, err
	}
	readersCV, err := k.NewCond(name + ".readers")
	if err != nil {
		return nil, err
	}
	writersCV, err := k.NewCond(name + ".writers")
	if err != nil {
		return nil, err
	}
	rw := &RWLock{k: k, name: name, guard: guard, readersCV: readersCV, writersCV: writersCV}
	id, err := k.rwlocks.Insert(rw)
	if err != nil {
		return nil, err
	}
	rw.id = id
	return rw, nil
}

// ReadLock blocks while a writer is active or waiting.
func (r *RWLock) ReadLock(t *Task) WaitResult {
	r.guard.Lock(t)
	for r.writerActive || r.writersWaiting > 0 {
		r.k.metrics.RWLockContentions.Add(1)
		if res := r.readersCV.Wait(t, r.guard); res != WaitCompleted {
			return res
		}
	}
	r.readerCount++
	r.guard.Unlock(t)
	return WaitCompleted
}

// ReadUnlock decrements the reader count; at zero it signals one waiting
// writer.
func (r *RWLock) ReadUnlock(t *Task) error {
	r.guard.Lock(t)
	if r.readerCount > 0 {
		r.readerCount--
	}
	zero := r.readerCount == 0
	if err := r.guard.Unlock(t); err != nil {
		return err
	}
	if zero {
		r.writersCV.Signal()
	}
	return nil
}

// WriteLock blocks while any reader is present or a writer is active.
func (r *RWLock) WriteLock(t *Task) WaitResult {
	r.guard.Lock(t)
	r.writersWaiting++
	for r.writerActive || r.readerCount > 0 {
		r.k.metrics.RWLockContentions.Add(1)
		if res := r.writersCV.Wait(t, r.guard); res != WaitCompleted {
			r.writersWaiting--
			r.guard.Unlock(t)
			return res
		}
	}
	r.writersWaiting--
	r.writerActive = true
	r.guard.Unlock(t)
	return WaitCompleted
}

// WriteUnlock signals one waiting writer first; if none waits, it
// broadcasts readers.
func (r *RWLock) WriteUnlock(t *Task) error {
	r.guard.Lock(t)
	r.writerActive = false
	hasWriters := r.writersWaiting > 0
	if err := r.guard.Unlock(t); err != nil {
		return err
	}
	if hasWriters {
		r.writersCV.Signal()
	} else {
		r.readersCV.Broadcast()
	}
	return nil
}

// Destroy unregisters the lock's internal primitives.
func (r *RWLock) Destroy() error {
	if err := r.guard.Destroy(); err != nil {
		return err
	}
	if err := r.readersCV.Destroy(); err != nil {
		return err
	}
	if err := r.writersCV.Destroy(); err != nil {
		return err
	}
	r.k.rwlocks.Remove(r.id)
	return nil
}
