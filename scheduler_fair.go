// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

import "container/heap"

// niceWeights mirrors a fixed NICE->weight table (spec.md §4.2 "CFS-like
// fair"); Priority's 5 ordinals stand in for nice levels, NICE0Load
// (PriorityNormal) being the default weight.
var niceWeights = [5]uint32{
	PriorityIdle:     64,
	PriorityLow:      512,
	PriorityNormal:   NICE0Load,
	PriorityHigh:     2048,
	PriorityCritical: 4096,
}

func niceWeight(p Priority) uint32 {
	if int(p) < 0 || int(p) >= len(niceWeights) {
		return NICE0Load
	}
	return niceWeights[p]
}

// fairPolicy is a CFS-style weighted-fair scheduler: a min-heap keyed by
// vruntime stands in for the order-statistic balanced BST spec.md §9
// calls for (any equivalent-complexity structure qualifies; a heap gives
// O(log n) insert/extract-min for next()/enqueue, and tick() reads the
// leftmost entry in O(1) without removing it).
type fairPolicy struct {
	minGranularity uint64
	rq             fairHeap
}

func newFairPolicy(minGranularity uint64) *fairPolicy {
	return &fairPolicy{minGranularity: minGranularity}
}

func (p *fairPolicy) kind() PolicyKind { return PolicyFair }

func (p *fairPolicy) ext(t *Task) *fairExt {
	e, ok := t.ext.(*fairExt)
	if !ok {
		e = &fairExt{weight: niceWeight(t.priority), minGranularity: p.minGranularity, heapIndex: -1}
		t.ext = e
	}
	return e
}

func (p *fairPolicy) enqueue(t *Task) {
	e := p.ext(t)
	e.heapIndex = -1
	heap.Push(&p.rq, t)
}

func (p *fairPolicy) remove(t *Task) {
	e := p.ext(t)
	if e.heapIndex >= 0 && e.heapIndex < len(p.rq.tasks) && p.rq.tasks[e.heapIndex] == t {
		heap.Remove(&p.rq, e.heapIndex)
	}
}

func (p *fairPolicy) next() *Task {
	if p.rq.Len() == 0 {
		return nil
	}
	return heap.Pop(&p.rq).(*Task)
}

func (p *fairPolicy) tick(now uint64, current *Task) bool {
	if current == nil {
		return false
	}
	e := p.ext(current)
	weight := e.weight
	if weight == 0 {
		weight = NICE0Load
	}
	// NICE0Load/weight truncates to 0 for any weight above NICE0Load
	// (PriorityHigh, PriorityCritical), which would stall vruntime forever.
	// Carry the remainder across ticks so the long-run rate is still exact.
	owed := uint64(NICE0Load) + e.remainder
	e.vruntime += owed / uint64(weight)
	e.remainder = owed % uint64(weight)

	if p.rq.Len() == 0 {
		return false
	}
	minV := p.ext(p.rq.tasks[0]).vruntime
	return e.vruntime > minV+p.minGranularity
}

type fairHeap struct {
	tasks []*Task
}

func (h fairHeap) Len() int { return len(h.tasks) }

func (h fairHeap) Less(i, j int) bool {
	ei := h.tasks[i].ext.(*fairExt)
	ej := h.tasks[j].ext.(*fairExt)
	return ei.vruntime < ej.vruntime
}

func (h fairHeap) Swap(i, j int) {
	h.tasks[i], h.tasks[j] = h.tasks[j], h.tasks[i]
	h.tasks[i].ext.(*fairExt).heapIndex = i
	h.tasks[j].ext.(*fairExt).heapIndex = j
}

func (h *fairHeap) Push(x any) {
	t := x.(*Task)
	t.ext.(*fairExt).heapIndex = len(h.tasks)
	h.tasks = append(h.tasks, t)
}

func (h *fairHeap) Pop() any {
	old := h.tasks
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.ext.(*fairExt).heapIndex = -1
	h.tasks = old[:n-1]
	return t
}
