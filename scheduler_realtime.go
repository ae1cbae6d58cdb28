// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

import (
	"container/heap"
	"math"
)

// realtimePolicy orders READY real-time tasks by earliest absolute
// deadline (EDF) or, in RM mode, by smallest fixed period (spec.md §4.2
// "EDF (real-time)"; RM mode is the supplemented
// original_source/src/scheduler_rt.c sibling algorithm, see SPEC_FULL.md
// §3). Both share the same release/deadline bookkeeping; only the
// ordering key differs.
type realtimePolicy struct {
	mode    RTMode
	metrics *Metrics
	rq      rtHeap
	all     map[*Task]struct{}
}

func newRealtimePolicy(mode RTMode, metrics *Metrics) *realtimePolicy {
	return &realtimePolicy{mode: mode, metrics: metrics, all: make(map[*Task]struct{})}
}

func (p *realtimePolicy) kind() PolicyKind { return PolicyRealtime }

func (p *realtimePolicy) ext(t *Task) *rtExt {
	e, ok := t.ext.(*rtExt)
	if !ok {
		e = &rtExt{heapIndex: -1}
		t.ext = e
	}
	return e
}

// ConfigureRT sets a task's period/deadline/budget and releases its first
// instance. It must be called once on every task scheduled under the
// real-time policy, before it first becomes READY.
func ConfigureRT(t *Task, now, period, relativeDeadline, worstCaseExec uint64) {
	e := &rtExt{
		period:           period,
		relativeDeadline: relativeDeadline,
		worstCaseExec:    worstCaseExec,
		nextRelease:      now,
		absoluteDeadline: now + relativeDeadline,
		heapIndex:        -1,
	}
	t.ext = e
}

func (p *realtimePolicy) enqueue(t *Task) {
	p.all[t] = struct{}{}
	heap.Push(&p.rq, rtHeapItem{task: t, mode: p.mode})
}

func (p *realtimePolicy) remove(t *Task) {
	e := p.ext(t)
	if e.heapIndex >= 0 && e.heapIndex < len(p.rq.items) && p.rq.items[e.heapIndex].task == t {
		heap.Remove(&p.rq, e.heapIndex)
	}
}

func (p *realtimePolicy) next() *Task {
	if p.rq.Len() == 0 {
		return nil
	}
	it := heap.Pop(&p.rq).(rtHeapItem)
	return it.task
}

func (p *realtimePolicy) tick(now uint64, current *Task) bool {
	preempt := false
	for t := range p.all {
		e := p.ext(t)
		if e.nextRelease <= now {
			e.absoluteDeadline = now + e.relativeDeadline
			e.execTimeUsed = 0
			if e.period > 0 {
				e.nextRelease += e.period
			}
			// t's ordering key just changed; if it's sitting in the heap,
			// restore the invariant instead of leaving it at a stale slot.
			if e.heapIndex >= 0 && e.heapIndex < len(p.rq.items) && p.rq.items[e.heapIndex].task == t {
				heap.Fix(&p.rq, e.heapIndex)
			}
		}
		if now > e.absoluteDeadline {
			p.metrics.MissedDeadlines.Add(1)
		}
	}
	if current != nil {
		e := p.ext(current)
		e.execTimeUsed++
		if e.worstCaseExec > 0 && e.execTimeUsed >= e.worstCaseExec {
			preempt = true
		}
	}
	if p.rq.Len() > 0 && current != nil {
		e := p.ext(current)
		if p.mode == RTModeEDF {
			if head := p.rq.items[0].task; p.ext(head).absoluteDeadline < e.absoluteDeadline {
				preempt = true
			}
		} else {
			if head := p.rq.items[0].task; p.ext(head).period < e.period {
				preempt = true
			}
		}
	}
	return preempt
}

// Feasible runs the Liu-Layland utilization bound test: sum(exec/period)
// <= n*(2^(1/n) - 1). It is an advisory only (a false "infeasible" can
// still happen to meet every deadline; EDF itself is exactly schedulable
// up to utilization 1).
func (p *realtimePolicy) Feasible() (utilization float64, ok bool) {
	n := 0
	sum := 0.0
	for t := range p.all {
		e := p.ext(t)
		if e.period == 0 {
			continue
		}
		sum += float64(e.worstCaseExec) / float64(e.period)
		n++
	}
	if n == 0 {
		return 0, true
	}
	bound := float64(n) * (math.Pow(2, 1.0/float64(n)) - 1)
	return sum, sum <= bound
}

type rtHeapItem struct {
	task *Task
	mode RTMode
}

type rtHeap struct {
	items []rtHeapItem
}

func (h rtHeap) Len() int { return len(h.items) }

func (h rtHeap) Less(i, j int) bool {
	ti, tj := h.items[i].task, h.items[j].task
	ei, _ := ti.ext.(*rtExt)
	ej, _ := tj.ext.(*rtExt)
	if ei == nil || ej == nil {
		return false
	}
	if h.items[i].mode == RTModeRM {
		return ei.period < ej.period
	}
	return ei.absoluteDeadline < ej.absoluteDeadline
}

func (h rtHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].task.ext.(*rtExt).heapIndex = i
	h.items[j].task.ext.(*rtExt).heapIndex = j
}

func (h *rtHeap) Push(x any) {
	it := x.(rtHeapItem)
	it.task.ext.(*rtExt).heapIndex = len(h.items)
	h.items = append(h.items, it)
}

func (h *rtHeap) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	it.task.ext.(*rtExt).heapIndex = -1
	h.items = old[:n-1]
	return it
}
