// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

import (
	"container/heap"
	"sync"
	"time"

	catrate "github.com/joeycumines/go-catrate"
)

// Kernel is the single-logical-CPU RTOS core: it owns the task table, the
// active scheduler policy, the timeout heap backing both Sleep and every
// timed blocking primitive, and the Platform it drives ticks and context
// switches through. There is exactly one Kernel per simulated machine;
// spec.md §9 centralizes what the original C kept as module-global
// mutable state (current_task, task_list, ipc_stats, free_list) into this
// one explicitly-passed object.
type Kernel struct {
	platform Platform
	opts     *kernelOptions
	metrics  *Metrics
	log      Logger

	tasks     *objectTable[*Task]
	scheduler *Scheduler

	mu             sync.Mutex
	current        *Task
	driverCtx      Context
	state          *atomicState
	rescheduleFlag bool
	timeoutHeap    taskHeap
	stopping       bool

	idleTask *Task

	mutexes  *objectTable[*Mutex]
	sems     *objectTable[*Semaphore]
	conds    *objectTable[*Cond]
	rwlocks  *objectTable[*RWLock]
	queues   *objectTable[*MessageQueue]
	segments *objectTable[*SharedSegment]

	frames *FrameAllocator
	heap   *Heap
	vm     *AddressSpace

	logLimiter *catrate.Limiter
}

// New constructs a Kernel bound to platform, applying opts. The returned
// Kernel is in KernelCreated state; call Run to start the driver loop.
func New(platform Platform, opts ...Option) (*Kernel, error) {
	if platform == nil {
		return nil, newErr("New", KindInvalidArgument, "platform must not be nil")
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		platform: platform,
		opts:     cfg,
		metrics:  &Metrics{},
		log:      cfg.logger,
		tasks:    newObjectTable[*Task](cfg.maxTasks),
		state:    newAtomicState(uint32(KernelCreated)),
	}
	k.mutexes = newObjectTable[*Mutex](0)
	k.sems = newObjectTable[*Semaphore](0)
	k.conds = newObjectTable[*Cond](0)
	k.rwlocks = newObjectTable[*RWLock](0)
	k.queues = newObjectTable[*MessageQueue](0)
	k.segments = newObjectTable[*SharedSegment](0)

	k.scheduler = newScheduler(k.newPolicy(cfg.policy), k.metrics)
	k.frames = newFrameAllocator(cfg.frameCount, cfg.pageSize, cfg.replacement, platform, k.metrics)
	k.heap = newHeap(k.frames, platform, cfg.heapArenaPages, k.metrics)
	k.vm = newAddressSpace(k.heap, platform, k.metrics)

	// Faults and exhaustion conditions recur every tick under sustained
	// pressure; cap each distinct category to one log line per window so
	// a misbehaving task can't flood the log.
	k.logLimiter = catrate.NewLimiter(map[time.Duration]int{
		time.Second: 1,
	})

	platform.OnTick(k.onTick)
	platform.OnPageFault(k.onPageFault)

	k.idleTask = &Task{
		name:      "idle",
		priority:  PriorityIdle,
		state:     newAtomicState(uint32(TaskRunning)),
		heapIndex: -1,
		cancel:    newCancelSignal(),
		kernel:    k,
	}

	return k, nil
}

func (k *Kernel) logger() Logger {
	if k.log == nil {
		return NewNoOpLogger()
	}
	return k.log
}

func (k *Kernel) newSchedExt(priority Priority) schedExt {
	switch k.scheduler.Kind() {
	case PolicyRealtime:
		return &rtExt{}
	case PolicyFair:
		weight := niceWeight(priority)
		return &fairExt{weight: weight, minGranularity: k.opts.fairMinGranularity, heapIndex: -1}
	case PolicyMLFQ:
		return &mlfqExt{currentQueue: 0, sliceRemaining: k.opts.mlfqBaseSlice}
	case PolicyRoundRobin:
		return &rrExt{sliceRemaining: k.opts.rrTimeSlice}
	default:
		return &priorityExt{}
	}
}

func (k *Kernel) newPolicy(kind PolicyKind) policy {
	switch kind {
	case PolicyPriority:
		return newPriorityPolicy()
	case PolicyRealtime:
		return newRealtimePolicy(k.opts.rtMode, k.metrics)
	case PolicyMLFQ:
		return newMLFQPolicy(k.opts.mlfqQueues, k.opts.mlfqBaseSlice, k.opts.mlfqBoostPeriod)
	case PolicyFair:
		return newFairPolicy(k.opts.fairMinGranularity)
	default:
		return newRoundRobinPolicy(k.opts.rrTimeSlice)
	}
}

// Current returns the currently RUNNING task, or nil outside of task
// context (e.g. before Run starts dispatching).
func (k *Kernel) Current() *Task {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.current
}

// Allocate reserves n bytes from the kernel heap (spec.md §4.5).
func (k *Kernel) Allocate(n int) (uintptr, []byte, error) {
	addr, buf, err := k.heap.Allocate(n)
	if err != nil {
		k.logRateLimited("heap_exhausted", NewLogEntry(LevelWarn, "heap", "allocation failed").
			Err(err).Field("size", n))
	}
	return addr, buf, err
}

// Free releases a block previously returned by Allocate.
func (k *Kernel) Free(addr uintptr) error {
	return k.heap.Free(addr)
}

// Protect updates the permission flags of the VM area(s) covering
// [addr, addr+length) (spec.md §4.4 "protect").
func (k *Kernel) Protect(addr uintptr, length int, prot PageFlags) error {
	return k.vm.protect(addr, length, prot)
}

// Metrics returns the Kernel's statistics counters.
func (k *Kernel) Metrics() *Metrics { return k.metrics }

// State returns the driver loop's run state.
func (k *Kernel) State() KernelState { return KernelState(k.state.Load()) }

// Run starts the driver loop: it dispatches the highest-priority READY
// task (per the active policy), blocks until that task hands control
// back, and repeats, running the idle task when no task is READY. Run
// returns when Shutdown has been called and every non-idle task has
// terminated.
func (k *Kernel) Run() error {
	if !k.state.TryTransition(uint32(KernelCreated), uint32(KernelRunning)) {
		return newErr("Run", KindInvalidState, "kernel already running or stopped")
	}
	k.driverCtx = k.platform.RootContext()

	for {
		k.mu.Lock()
		stopping := k.stopping
		remaining := k.tasks.Len()
		k.mu.Unlock()
		if stopping && remaining == 0 {
			break
		}

		next := k.scheduler.next()
		if next == nil {
			k.state.Store(uint32(KernelIdle))
			next = k.idleTask
		} else {
			k.state.Store(uint32(KernelRunning))
		}
		if stopping {
			k.state.Store(uint32(KernelStopping))
		}

		k.mu.Lock()
		k.current = next
		k.mu.Unlock()
		next.state.Store(uint32(TaskRunning))
		k.metrics.ContextSwitches.Add(1)

		if next == k.idleTask {
			// The idle task never blocks meaningfully; give the platform
			// a chance to deliver a tick and loop.
			continue
		}

		prev := k.driverCtx
		k.platform.ContextSwitch(&prev, next.ctx)
		k.driverCtx = prev

		if next.State() == TaskTerminated {
			k.tasks.Remove(next.id)
			k.scheduler.remove(next)
			k.logger().Log(NewLogEntry(LevelDebug, "task", "terminated").Task(next.id).Build())
		}
	}

	k.state.Store(uint32(KernelStopped))
	return nil
}

// Shutdown requests the driver loop to stop once every task has
// terminated. It does not forcibly terminate running tasks; combine with
// Delete for tasks that must stop immediately.
func (k *Kernel) Shutdown() {
	k.mu.Lock()
	k.stopping = true
	k.mu.Unlock()
}

// handback transfers control from t's goroutine back to the driver loop
// and blocks until the driver dispatches t again.
func (k *Kernel) handback(t *Task) {
	tc := t.ctx
	k.platform.ContextSwitch(&tc, k.driverCtx)
}

func (k *Kernel) taskExit(t *Task) {
	t.state.Store(uint32(TaskTerminated))
	k.handback(t)
}

func (k *Kernel) requestReschedule() {
	k.mu.Lock()
	k.rescheduleFlag = true
	k.mu.Unlock()
}

func (k *Kernel) consumeReschedule() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	flag := k.rescheduleFlag
	k.rescheduleFlag = false
	return flag
}

// block suspends the calling task on wl. The caller MUST hold lock on
// entry (the object's own bookkeeping mutex); block releases it before
// parking the task's goroutine, so the tick handler and Delete's
// cancellation path can safely re-acquire it to mutate wl from a
// different goroutine while this task is parked. timeoutTicks is ignored
// when hasTimeout is false (wait forever).
func (k *Kernel) block(t *Task, wl *waitList, lock sync.Locker, hasTimeout bool, timeoutTicks uint64) WaitResult {
	t.mu.Lock()
	t.waitList = wl
	t.waitLock = lock
	t.waitResult = WaitCompleted
	if hasTimeout {
		t.wakeDeadline = k.platform.NowTicks() + timeoutTicks
	}
	t.mu.Unlock()

	t.state.Store(uint32(TaskBlocked))
	wl.pushBack(t)

	t.cancel.reset()
	t.cancel.OnCancel(func(reason any) {
		k.cancelBlocked(t)
	})

	if hasTimeout {
		k.pushTimeout(t)
	}

	lock.Unlock()
	k.handback(t)

	t.mu.Lock()
	result := t.waitResult
	t.mu.Unlock()
	return result
}

// wake removes t from BLOCKED (it must already be off wl, popped by the
// caller) and makes it READY with the given result.
func (k *Kernel) wake(t *Task, result WaitResult) {
	t.mu.Lock()
	t.waitList = nil
	t.waitLock = nil
	t.waitResult = result
	t.mu.Unlock()

	k.removeFromTimeoutHeap(t)
	if t.state.TryTransition(uint32(TaskBlocked), uint32(TaskReady)) {
		k.scheduler.enqueue(t)
	}
}

// cancelBlocked is invoked (possibly from a different task's goroutine,
// via Delete) to unblock t with a Canceled result.
func (k *Kernel) cancelBlocked(t *Task) {
	t.mu.Lock()
	wl := t.waitList
	lock := t.waitLock
	t.mu.Unlock()

	if wl != nil {
		if lock != nil {
			lock.Lock()
		}
		wl.remove(t)
		if lock != nil {
			lock.Unlock()
		}
	}
	k.wake(t, WaitCanceled)
}

func (k *Kernel) pushTimeout(t *Task) {
	k.mu.Lock()
	defer k.mu.Unlock()
	heap.Push(&k.timeoutHeap, t)
}

func (k *Kernel) removeFromTimeoutHeap(t *Task) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if t.heapIndex >= 0 && t.heapIndex < len(k.timeoutHeap) {
		heap.Remove(&k.timeoutHeap, t.heapIndex)
	}
}

// onTick is the Platform-delivered timer callback; it runs spec.md §4.2's
// tick ordering steps 1-4 (the reschedule-flag/invoke-scheduler steps 5-6
// happen at the next CheckPoint/Yield/blocking-call safepoint).
func (k *Kernel) onTick() {
	now := k.platform.NowTicks()
	k.expireTimeouts(now)
	k.frames.sampleTick()

	k.mu.Lock()
	current := k.current
	k.mu.Unlock()

	var runningTask *Task
	if current != nil && current != k.idleTask {
		runningTask = current
		runningTask.mu.Lock()
		runningTask.ticksUsed++
		runningTask.mu.Unlock()
	}

	if k.scheduler.tick(now, runningTask) {
		k.requestReschedule()
	}
}

func (k *Kernel) expireTimeouts(now uint64) {
	for {
		k.mu.Lock()
		if len(k.timeoutHeap) == 0 || k.timeoutHeap[0].wakeDeadline > now {
			k.mu.Unlock()
			break
		}
		t := heap.Pop(&k.timeoutHeap).(*Task)
		k.mu.Unlock()

		t.mu.Lock()
		wl := t.waitList
		lock := t.waitLock
		t.waitList = nil
		t.waitLock = nil
		t.waitResult = WaitTimedOut
		t.mu.Unlock()

		if wl != nil {
			if lock != nil {
				lock.Lock()
			}
			wl.remove(t)
			if lock != nil {
				lock.Unlock()
			}
		}

		if t.state.TryTransition(uint32(TaskBlocked), uint32(TaskReady)) {
			k.scheduler.enqueue(t)
		}
	}
}

func (k *Kernel) onPageFault(virt uintptr, kind PageFlags) {
	if err := k.vm.handlePageFault(virt, kind); err != nil {
		current := k.Current()
		k.logRateLimited("page_fault", NewLogEntry(LevelWarn, "mm", "page fault terminated task").
			Err(err).Field("virt", virt))
		if current != nil {
			k.Delete(current)
		}
	}
}

// logRateLimited emits entry through the kernel logger at most once per
// second per category, so a task that repeatedly faults or exhausts a
// resource can't flood the log with identical lines.
func (k *Kernel) logRateLimited(category string, entry LogEntryBuilder) {
	if _, ok := k.logLimiter.Allow(category); !ok {
		return
	}
	k.logger().Log(entry.Build())
}

// taskHeap orders tasks by wakeDeadline, backing the unified sleep +
// timed-wait timeout facility.
type taskHeap []*Task

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].wakeDeadline < h[j].wakeDeadline }
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*Task)
	t.heapIndex = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.heapIndex = -1
	*h = old[:n-1]
	return t
}
