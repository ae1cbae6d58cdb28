// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

// roundRobinPolicy is a single FIFO of READY tasks; each gets baseSlice
// ticks before being re-queued at the tail (spec.md §4.2 "Round-robin").
type roundRobinPolicy struct {
	baseSlice uint64
	ready     []*Task
}

func newRoundRobinPolicy(baseSlice uint64) *roundRobinPolicy {
	return &roundRobinPolicy{baseSlice: baseSlice}
}

func (p *roundRobinPolicy) kind() PolicyKind { return PolicyRoundRobin }

func (p *roundRobinPolicy) ext(t *Task) *rrExt {
	e, ok := t.ext.(*rrExt)
	if !ok {
		e = &rrExt{sliceRemaining: p.baseSlice}
		t.ext = e
	}
	return e
}

func (p *roundRobinPolicy) enqueue(t *Task) {
	e := p.ext(t)
	if e.sliceRemaining == 0 {
		e.sliceRemaining = p.baseSlice
	}
	p.ready = append(p.ready, t)
}

func (p *roundRobinPolicy) remove(t *Task) {
	for i, cur := range p.ready {
		if cur == t {
			p.ready = append(p.ready[:i], p.ready[i+1:]...)
			return
		}
	}
}

func (p *roundRobinPolicy) next() *Task {
	if len(p.ready) == 0 {
		return nil
	}
	t := p.ready[0]
	p.ready = p.ready[1:]
	return t
}

func (p *roundRobinPolicy) tick(now uint64, current *Task) bool {
	if current == nil {
		return false
	}
	e := p.ext(current)
	if e.sliceRemaining > 0 {
		e.sliceRemaining--
	}
	return e.sliceRemaining == 0
}
