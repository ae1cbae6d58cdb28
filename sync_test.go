// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func driveUntil(t *testing.T, platform *SimPlatform, done chan error, condition func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			return
		case <-deadline:
			t.Fatal("timed out driving kernel")
		default:
			if condition() {
				return
			}
			platform.Advance(1)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestMutexExcludesConcurrentOwners(t *testing.T) {
	k, platform := newTestKernel(t)
	m, err := k.NewMutex("m")
	require.NoError(t, err)

	var inCritical atomic.Int32
	var violated atomic.Bool
	const n = 4

	for i := 0; i < n; i++ {
		_, err := k.CreateTask("worker", PriorityNormal, 4096, func(tk *Task) {
			m.Lock(tk)
			if inCritical.Add(1) > 1 {
				violated.Store(true)
			}
			tk.Sleep(1)
			inCritical.Add(-1)
			m.Unlock(tk)
		})
		require.NoError(t, err)
	}

	done := make(chan error, 1)
	go func() { done <- k.Run() }()
	driveUntil(t, platform, done, func() bool {
		if k.tasks.Len() == 0 {
			k.Shutdown()
		}
		return false
	})

	assert.False(t, violated.Load())
	assert.False(t, m.Locked())
}

func TestMutexRecursiveLock(t *testing.T) {
	k, _ := newTestKernel(t)
	m, err := k.NewMutex("m")
	require.NoError(t, err)

	t1, err := k.CreateTask("t1", PriorityNormal, 256, func(tk *Task) {})
	require.NoError(t, err)

	assert.Equal(t, WaitCompleted, m.Lock(t1))
	assert.Equal(t, WaitCompleted, m.Lock(t1))
	require.NoError(t, m.Unlock(t1))
	assert.True(t, m.Locked())
	require.NoError(t, m.Unlock(t1))
	assert.False(t, m.Locked())
}

func TestMutexUnlockByNonOwnerFails(t *testing.T) {
	k, _ := newTestKernel(t)
	m, err := k.NewMutex("m")
	require.NoError(t, err)

	t1, err := k.CreateTask("t1", PriorityNormal, 256, func(tk *Task) {})
	require.NoError(t, err)
	t2, err := k.CreateTask("t2", PriorityNormal, 256, func(tk *Task) {})
	require.NoError(t, err)

	m.Lock(t1)
	err = m.Unlock(t2)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindInvalidState, kind)
}

func TestMutexPriorityInheritance(t *testing.T) {
	k, platform := newTestKernel(t, WithPriorityInheritance(true))
	m, err := k.NewMutex("m")
	require.NoError(t, err)

	var lowPriorityWhileHolding atomic.Int32
	lowDone := make(chan struct{})
	low, err := k.CreateTask("low", PriorityLow, 4096, func(tk *Task) {
		m.Lock(tk)
		lowPriorityWhileHolding.Store(int32(tk.Priority()))
		tk.Sleep(3)
		lowPriorityWhileHolding.Store(int32(tk.Priority()))
		m.Unlock(tk)
		close(lowDone)
	})
	require.NoError(t, err)

	_, err = k.CreateTask("high", PriorityCritical, 4096, func(tk *Task) {
		tk.Sleep(1)
		m.Lock(tk)
		m.Unlock(tk)
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- k.Run() }()
	driveUntil(t, platform, done, func() bool {
		select {
		case <-lowDone:
			return true
		default:
		}
		if k.tasks.Len() == 0 {
			k.Shutdown()
		}
		return false
	})

	assert.Equal(t, int32(PriorityCritical), lowPriorityWhileHolding.Load())
	assert.Equal(t, PriorityLow, low.Priority())
}

func TestMutexDestroyFailsWithWaiters(t *testing.T) {
	k, platform := newTestKernel(t)
	m, err := k.NewMutex("m")
	require.NoError(t, err)

	holder, err := k.CreateTask("holder", PriorityNormal, 4096, func(tk *Task) {
		m.Lock(tk)
		tk.Sleep(1_000_000)
	})
	require.NoError(t, err)

	blocked := make(chan struct{})
	_, err = k.CreateTask("waiter", PriorityNormal, 4096, func(tk *Task) {
		close(blocked)
		m.Lock(tk)
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- k.Run() }()
	driveUntil(t, platform, done, func() bool {
		select {
		case <-blocked:
			return true
		default:
			return false
		}
	})
	// Give the waiter a chance to actually enter the mutex's wait list.
	platform.Advance(2)
	time.Sleep(5 * time.Millisecond)

	err = m.Destroy()
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindInvalidState, kind)

	k.Delete(holder)
	k.Shutdown()
}

func TestSemaphorePostWithNoWaiterIncrementsCount(t *testing.T) {
	k, _ := newTestKernel(t)
	sem, err := k.NewSemaphore("sem", 0)
	require.NoError(t, err)

	sem.Post()
	assert.Equal(t, 1, sem.Count())
	assert.True(t, sem.TryWait())
	assert.False(t, sem.TryWait())
}

func TestSemaphoreWakesOneWaiterFIFO(t *testing.T) {
	k, platform := newTestKernel(t)
	sem, err := k.NewSemaphore("sem", 0)
	require.NoError(t, err)

	var order []string
	var mu sync.Mutex
	entered := make(chan string, 2)

	for _, name := range []string{"a", "b"} {
		name := name
		_, err := k.CreateTask(name, PriorityNormal, 4096, func(tk *Task) {
			entered <- name
			sem.Wait(tk)
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		})
		require.NoError(t, err)
	}

	done := make(chan error, 1)
	go func() { done <- k.Run() }()

	for i := 0; i < 2; i++ {
		select {
		case <-entered:
		case <-time.After(2 * time.Second):
			t.Fatal("tasks never reached sem.Wait")
		}
	}
	// Give both goroutines a moment to actually park inside Wait's block
	// call before posting.
	time.Sleep(10 * time.Millisecond)

	sem.Post()
	time.Sleep(10 * time.Millisecond)
	sem.Post()

	driveUntil(t, platform, done, func() bool {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n >= 2 {
			k.Shutdown()
		}
		return false
	})

	assert.Equal(t, []string{"a", "b"}, order)
}

func TestCondWaitSignal(t *testing.T) {
	k, platform := newTestKernel(t)
	m, err := k.NewMutex("m")
	require.NoError(t, err)
	c, err := k.NewCond("c")
	require.NoError(t, err)

	ready := false
	woke := make(chan struct{})
	_, err = k.CreateTask("waiter", PriorityNormal, 4096, func(tk *Task) {
		m.Lock(tk)
		for !ready {
			c.Wait(tk, m)
		}
		m.Unlock(tk)
		close(woke)
	})
	require.NoError(t, err)

	_, err = k.CreateTask("signaler", PriorityNormal, 4096, func(tk *Task) {
		tk.Sleep(2)
		m.Lock(tk)
		ready = true
		m.Unlock(tk)
		c.Signal()
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- k.Run() }()
	driveUntil(t, platform, done, func() bool {
		select {
		case <-woke:
			k.Shutdown()
			return false
		default:
		}
		if k.tasks.Len() == 0 {
			k.Shutdown()
		}
		return false
	})
}

func TestCondTimedWaitTimesOut(t *testing.T) {
	k, platform := newTestKernel(t)
	m, err := k.NewMutex("m")
	require.NoError(t, err)
	c, err := k.NewCond("c")
	require.NoError(t, err)

	var result WaitResult
	resultSet := make(chan struct{})
	_, err = k.CreateTask("waiter", PriorityNormal, 4096, func(tk *Task) {
		m.Lock(tk)
		result = c.TimedWait(tk, m, 3)
		m.Unlock(tk)
		close(resultSet)
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- k.Run() }()
	driveUntil(t, platform, done, func() bool {
		select {
		case <-resultSet:
			return true
		default:
		}
		if k.tasks.Len() == 0 {
			k.Shutdown()
		}
		return false
	})
	assert.Equal(t, WaitTimedOut, result)
}

func TestRWLockWriterExcludesReaders(t *testing.T) {
	k, platform := newTestKernel(t)
	rw, err := k.NewRWLock("rw")
	require.NoError(t, err)

	var readerSawWriter atomic.Bool
	var writerActive atomic.Bool

	_, err = k.CreateTask("writer", PriorityNormal, 4096, func(tk *Task) {
		rw.WriteLock(tk)
		writerActive.Store(true)
		tk.Sleep(3)
		writerActive.Store(false)
		rw.WriteUnlock(tk)
	})
	require.NoError(t, err)

	_, err = k.CreateTask("reader", PriorityNormal, 4096, func(tk *Task) {
		tk.Sleep(1)
		rw.ReadLock(tk)
		if writerActive.Load() {
			readerSawWriter.Store(true)
		}
		rw.ReadUnlock(tk)
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- k.Run() }()
	driveUntil(t, platform, done, func() bool {
		if k.tasks.Len() == 0 {
			k.Shutdown()
		}
		return false
	})

	assert.False(t, readerSawWriter.Load())
}

func TestSpinlockMutualExclusion(t *testing.T) {
	k, platform := newTestKernel(t)
	s, err := k.NewSpinlock("s")
	require.NoError(t, err)

	prior, ok := s.TryLock()
	require.True(t, ok)
	_, ok = s.TryLock()
	assert.False(t, ok)
	s.Unlock(prior)

	prior, ok = s.TryLock()
	require.True(t, ok)
	s.Unlock(prior)

	_ = platform
}
