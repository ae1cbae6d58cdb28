// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

import "sync/atomic"

// Metrics tracks runtime statistics for a Kernel. Every field is an atomic
// counter or gauge; Snapshot returns a consistent-enough (not a single
// atomic transaction, but individually-atomic) point-in-time copy. This is
// the low-overhead, always-on counterpart to the teacher's latency/TPS
// Metrics type, scoped down to the counters spec.md §3 and §8 actually name
// (see DESIGN.md for why the P-Square percentile machinery was dropped).
type Metrics struct {
	// Scheduler.
	ContextSwitches     atomic.Uint64
	Preemptions         atomic.Uint64
	SchedulerInvocations atomic.Uint64
	MissedDeadlines     atomic.Uint64

	// Synchronization contention, incremented exactly once per block.
	MutexContentions    atomic.Uint64
	SemaphoreContentions atomic.Uint64
	CondContentions     atomic.Uint64
	RWLockContentions   atomic.Uint64
	SpinContentions     atomic.Uint64

	// Memory.
	PageFaults     atomic.Uint64
	PageIns        atomic.Uint64
	PageOuts       atomic.Uint64
	ReplacedPages  atomic.Uint64
	HeapBytesInUse atomic.Int64
	HeapAllocCount atomic.Uint64
	HeapFreeCount  atomic.Uint64

	// IPC.
	MessagesSent     atomic.Uint64
	MessagesReceived atomic.Uint64
	PipeBytesWritten atomic.Uint64
	PipeBytesRead    atomic.Uint64
}

// MetricsSnapshot is a plain-value copy of Metrics, safe to pass around or
// compare in tests.
type MetricsSnapshot struct {
	ContextSwitches      uint64
	Preemptions          uint64
	SchedulerInvocations uint64
	MissedDeadlines      uint64

	MutexContentions     uint64
	SemaphoreContentions uint64
	CondContentions      uint64
	RWLockContentions    uint64
	SpinContentions      uint64

	PageFaults     uint64
	PageIns        uint64
	PageOuts       uint64
	ReplacedPages  uint64
	HeapBytesInUse int64
	HeapAllocCount uint64
	HeapFreeCount  uint64

	MessagesSent     uint64
	MessagesReceived uint64
	PipeBytesWritten uint64
	PipeBytesRead    uint64
}

// Snapshot copies every counter into a plain struct.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ContextSwitches:      m.ContextSwitches.Load(),
		Preemptions:          m.Preemptions.Load(),
		SchedulerInvocations: m.SchedulerInvocations.Load(),
		MissedDeadlines:      m.MissedDeadlines.Load(),
		MutexContentions:     m.MutexContentions.Load(),
		SemaphoreContentions: m.SemaphoreContentions.Load(),
		CondContentions:      m.CondContentions.Load(),
		RWLockContentions:    m.RWLockContentions.Load(),
		SpinContentions:      m.SpinContentions.Load(),
		PageFaults:           m.PageFaults.Load(),
		PageIns:              m.PageIns.Load(),
		PageOuts:             m.PageOuts.Load(),
		ReplacedPages:        m.ReplacedPages.Load(),
		HeapBytesInUse:       m.HeapBytesInUse.Load(),
		HeapAllocCount:       m.HeapAllocCount.Load(),
		HeapFreeCount:        m.HeapFreeCount.Load(),
		MessagesSent:         m.MessagesSent.Load(),
		MessagesReceived:     m.MessagesReceived.Load(),
		PipeBytesWritten:     m.PipeBytesWritten.Load(),
		PipeBytesRead:        m.PipeBytesRead.Load(),
	}
}
