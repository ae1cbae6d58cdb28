// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

import "sync"

// PolicyKind selects one of the five scheduling policies spec.md §4.2
// names. Exactly one is active at a time.
type PolicyKind int

const (
	PolicyRoundRobin PolicyKind = iota
	PolicyPriority
	PolicyRealtime
	PolicyMLFQ
	PolicyFair
)

func (k PolicyKind) String() string {
	switch k {
	case PolicyRoundRobin:
		return "RoundRobin"
	case PolicyPriority:
		return "Priority"
	case PolicyRealtime:
		return "Realtime"
	case PolicyMLFQ:
		return "MLFQ"
	case PolicyFair:
		return "Fair"
	default:
		return "Unknown"
	}
}

// RTMode selects the ordering used by the real-time policy: EDF (earliest
// deadline first) or RM (rate-monotonic, fixed priority by period). Both
// are implemented by original_source/src/scheduler_rt.c; spec.md names
// only EDF, RM is a supplemented selectable mode of the same policy.
type RTMode int

const (
	RTModeEDF RTMode = iota
	RTModeRM
)

// schedExt is the tagged-union policy extension attached to every Task
// (spec.md §3 "Policy extensions"). This resolves the open question in
// spec.md §9 about the undeclared next_wait/wake_time/scheduler_data
// fields: each policy owns a concrete Go type implementing schedExt and
// stores it on Task.ext. The round-robin, real-time, MLFQ and fair
// policies replace an extension of another kind with a fresh one of their
// own, so that state does not carry across a policy switch.
type schedExt interface {
	schedExtKind() PolicyKind
}

type rrExt struct {
	sliceRemaining uint64
}

func (*rrExt) schedExtKind() PolicyKind { return PolicyRoundRobin }

type priorityExt struct{}

func (*priorityExt) schedExtKind() PolicyKind { return PolicyPriority }

type rtExt struct {
	period           uint64
	relativeDeadline uint64
	worstCaseExec    uint64
	nextRelease      uint64
	absoluteDeadline uint64
	execTimeUsed     uint64
	// heapIndex is this task's slot in realtimePolicy.rq, or -1 while not
	// enqueued (e.g. currently running).
	heapIndex int
}

func (*rtExt) schedExtKind() PolicyKind { return PolicyRealtime }

type mlfqExt struct {
	currentQueue   int
	sliceRemaining uint64
	boostCounter   uint64
}

func (*mlfqExt) schedExtKind() PolicyKind { return PolicyMLFQ }

// NICE0Load is the fixed-point weight of a default-niced (weight 1024)
// task under the fair policy, following the teacher corpus's and the
// original CFS convention.
const NICE0Load = 1024

type fairExt struct {
	vruntime       uint64
	weight         uint32
	minGranularity uint64
	heapIndex      int
	// remainder carries the fractional part of NICE0Load/weight that
	// truncated division would otherwise drop each tick.
	remainder uint64
}

func (*fairExt) schedExtKind() PolicyKind { return PolicyFair }

// policy is the interface each scheduling algorithm implements. The
// Scheduler facade dispatches to whichever policy is active; switchPolicy
// itself does not touch any task's ext field.
type policy interface {
	kind() PolicyKind
	// enqueue inserts t (already READY) into the run structure.
	enqueue(t *Task)
	// remove takes t out of the run structure without running it
	// (suspend, delete, or block).
	remove(t *Task)
	// next pops and returns the task that should run next, or nil.
	next() *Task
	// tick performs per-tick accounting on the currently running task (may
	// be nil if the idle task is running) and reports whether a
	// preemption should be considered at the next safepoint.
	tick(now uint64, current *Task) bool
}

// Scheduler owns the active policy and counts its invocations in the
// kernel's Metrics. It is embedded in Kernel and has no public API beyond
// Kind; the tick counter is the Platform's (NowTicks).
type Scheduler struct {
	mu       sync.Mutex
	active   policy
	kind     PolicyKind
	metrics  *Metrics
	feasible func() (sum float64, ok bool)
}

func newScheduler(p policy, metrics *Metrics) *Scheduler {
	return &Scheduler{active: p, kind: p.kind(), metrics: metrics}
}

func (s *Scheduler) enqueue(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active.enqueue(t)
}

func (s *Scheduler) remove(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active.remove(t)
}

func (s *Scheduler) next() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.SchedulerInvocations.Add(1)
	return s.active.next()
}

func (s *Scheduler) tick(now uint64, current *Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.tick(now, current)
}

// switchPolicy installs a new active policy. It does not move tasks:
// tasks already queued in the old policy stay there, and nothing in the
// package calls switchPolicy or re-enqueues READY tasks against the new
// policy.
func (s *Scheduler) switchPolicy(p policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = p
	s.kind = p.kind()
}

func (s *Scheduler) Kind() PolicyKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind
}
