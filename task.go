// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

import "sync"

// Task is the kernel's unit of scheduling (spec.md §3 "Task"). Every Task
// owns exactly one goroutine, parked on a Context handoff whenever it is
// not the single logical CPU's current holder — see doc.go for the full
// execution model this resolves to in Go.
type Task struct {
	id       int64
	name     string
	priority Priority
	state    *atomicState
	ext      schedExt

	ctx   Context
	stack []byte

	kernel *Kernel

	// waitList is non-nil while Blocked on a synchronization object's FIFO
	// (nil while Blocked only via Sleep, or not Blocked at all). waitLock
	// is that object's own lock, already held by the caller of Kernel.block;
	// the tick handler and Delete's cancellation path take it before
	// touching waitList, since they run from a different goroutine than
	// the blocked task.
	waitList *waitList
	waitLock sync.Locker
	// heapIndex is this task's slot in the kernel's timeout heap, or -1.
	heapIndex int
	// wakeDeadline is the tick at which a timed wait/sleep expires.
	wakeDeadline uint64
	// waitResult is set by whatever wakes the task, and read immediately
	// after it resumes from its blocking call.
	waitResult WaitResult

	cancel *cancelSignal

	ticksUsed uint64

	mu sync.Mutex
}

// ID returns the task's stable handle.
func (t *Task) ID() int64 { return t.id }

// Name returns the task's name.
func (t *Task) Name() string { return t.name }

// Priority returns the task's current priority. While the task holds a
// priority-inheritance Mutex that a higher-priority task waits on, this is
// the donated priority rather than the one CreateTask was given.
func (t *Task) Priority() Priority { return t.priority }

// State returns the task's current state.
func (t *Task) State() TaskState { return TaskState(t.state.Load()) }

// TicksUsed returns the task's cumulative tick count.
func (t *Task) TicksUsed() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticksUsed
}

// waitList is a FIFO of blocked tasks, backing every synchronization
// object's wait_list (spec.md §3). Removal by id is O(n); kernel object
// wait lists are expected to hold a small number of waiters, so this
// trades asymptotic elegance for the same straightforward slice-cursor
// idiom the teacher's chunked queue uses.
type waitList struct {
	tasks []*Task
}

func (w *waitList) pushBack(t *Task) {
	w.tasks = append(w.tasks, t)
}

func (w *waitList) popFront() *Task {
	if len(w.tasks) == 0 {
		return nil
	}
	t := w.tasks[0]
	w.tasks = w.tasks[1:]
	return t
}

func (w *waitList) remove(t *Task) bool {
	for i, cur := range w.tasks {
		if cur == t {
			w.tasks = append(w.tasks[:i], w.tasks[i+1:]...)
			return true
		}
	}
	return false
}

func (w *waitList) len() int { return len(w.tasks) }

func (w *waitList) drain() []*Task {
	all := w.tasks
	w.tasks = nil
	return all
}

// CreateTask allocates a new Task running entry, in the READY state.
// stackSize bytes are reserved for it (spec.md §4.1); entry receives the
// Task itself so it can call blocking operations (t.Sleep, t.Yield,
// t.CheckPoint) on its own behalf.
func (k *Kernel) CreateTask(name string, priority Priority, stackSize int, entry func(t *Task)) (*Task, error) {
	if stackSize <= 0 {
		return nil, newErr("CreateTask", KindInvalidArgument, "stackSize must be positive")
	}
	if k.tasks.Len() >= k.opts.maxTasks {
		return nil, newErr("CreateTask", KindTooManyTasks, "task table full")
	}

	stack := make([]byte, stackSize)
	t := &Task{
		name:      truncateName(name),
		priority:  priority,
		state:     newAtomicState(uint32(TaskReady)),
		heapIndex: -1,
		cancel:    newCancelSignal(),
		kernel:    k,
	}
	t.ext = k.newSchedExt(priority)

	id, err := k.tasks.Insert(t)
	if err != nil {
		return nil, wrapErr("CreateTask", KindOf2(err), "task table full", err)
	}
	t.id = id

	t.ctx = k.platform.ContextInit(stack, func() {
		entry(t)
	}, func() {
		k.taskExit(t)
	})
	t.stack = stack

	k.scheduler.enqueue(t)
	k.logger().Log(NewLogEntry(LevelDebug, "task", "created").Task(id).Build())
	return t, nil
}

func truncateName(name string) string {
	if len(name) > 31 {
		return name[:31]
	}
	return name
}

// KindOf2 is a small adapter so CreateTask can wrap an objectTable error
// (already a *Error) without losing its Kind.
func KindOf2(err error) Kind {
	if k, ok := KindOf(err); ok {
		return k
	}
	return KindOutOfMemory
}

// Delete moves t to TERMINATED, removing it from whatever queue or wait
// list it occupies (spec.md §4.1 "delete"). If t is the calling task
// (self-delete), Delete marks it and hands control back to the driver
// loop in Run, which reaps it. If t is currently blocked, it is taken off
// its wait list with a WaitCanceled result but is never resumed, so its
// blocking call does not return.
func (k *Kernel) Delete(t *Task) {
	k.mu.Lock()
	current := k.current
	k.mu.Unlock()

	if t == current {
		t.state.Store(uint32(TaskTerminated))
		k.handback(t)
		return
	}

	prev := t.State()
	t.state.Store(uint32(TaskTerminated))
	switch prev {
	case TaskBlocked:
		k.cancelBlocked(t)
	case TaskReady, TaskSuspended:
		k.scheduler.remove(t)
		k.removeFromTimeoutHeap(t)
	}
	k.tasks.Remove(t.id)
}

// Suspend moves t from READY/BLOCKED to SUSPENDED. Suspending the current
// task forces a reschedule. Suspending a Blocked task only takes effect
// once it would have become READY (its waitResult/wake path checks
// suspended state before re-enqueuing).
func (k *Kernel) Suspend(t *Task) {
	prev := TaskState(t.state.Load())
	if prev == TaskTerminated || prev == TaskSuspended {
		return
	}
	if prev == TaskReady {
		k.scheduler.remove(t)
	}
	t.state.Store(uint32(TaskSuspended))

	k.mu.Lock()
	isCurrent := t == k.current
	k.mu.Unlock()
	if isCurrent {
		k.handback(t)
	}
}

// Resume moves a SUSPENDED task back to READY.
func (k *Kernel) Resume(t *Task) {
	if !t.state.TryTransition(uint32(TaskSuspended), uint32(TaskReady)) {
		return
	}
	k.scheduler.enqueue(t)
}

// Sleep blocks the calling task for ms ticks (spec.md treats 1 tick as
// nominally 1ms). Must be called from within the task's own goroutine.
func (t *Task) Sleep(ms uint64) {
	k := t.kernel
	t.mu.Lock()
	t.waitList = nil
	t.wakeDeadline = k.platform.NowTicks() + ms
	t.waitResult = WaitCompleted
	t.mu.Unlock()

	t.state.Store(uint32(TaskBlocked))
	k.pushTimeout(t)
	k.handback(t)
}

// Yield invokes the scheduler without changing t's own state; t remains
// READY but moves to the back of whatever structure its policy uses.
func (t *Task) Yield() {
	k := t.kernel
	k.scheduler.remove(t)
	k.scheduler.enqueue(t)
	k.handback(t)
}

// CheckPoint is a cooperative preemption point expected inside tight task
// loops: if the scheduler has requested a reschedule (tick-driven
// time-slice exhaustion, a higher-priority wakeup), control returns to the
// kernel driver and is handed back once this task is chosen to run again.
func (t *Task) CheckPoint() {
	k := t.kernel
	if k.consumeReschedule() {
		k.scheduler.remove(t)
		k.scheduler.enqueue(t)
		k.handback(t)
	}
}

// Canceled reports whether this task is TERMINATED, whether through
// Delete or by returning from its entry function.
func (t *Task) Canceled() bool {
	return t.State() == TaskTerminated
}
