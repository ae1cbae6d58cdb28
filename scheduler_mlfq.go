// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

// mlfqPolicy is N FIFOs with geometrically growing slices (base*2^q). New
// tasks enter queue 0; slice exhaustion demotes by one queue (capped at
// N-1); every boostPeriod ticks every task is promoted back to queue 0
// (spec.md §4.2 "MLFQ").
type mlfqPolicy struct {
	queues      [][]*Task
	baseSlice   uint64
	boostPeriod uint64
	sinceBoost  uint64
	all         map[*Task]struct{}
}

func newMLFQPolicy(n int, baseSlice, boostPeriod uint64) *mlfqPolicy {
	return &mlfqPolicy{
		queues:      make([][]*Task, n),
		baseSlice:   baseSlice,
		boostPeriod: boostPeriod,
		all:         make(map[*Task]struct{}),
	}
}

func (p *mlfqPolicy) kind() PolicyKind { return PolicyMLFQ }

func (p *mlfqPolicy) ext(t *Task) *mlfqExt {
	e, ok := t.ext.(*mlfqExt)
	if !ok {
		e = &mlfqExt{currentQueue: 0, sliceRemaining: p.sliceFor(0)}
		t.ext = e
	}
	return e
}

func (p *mlfqPolicy) sliceFor(q int) uint64 {
	return p.baseSlice << uint(q)
}

func (p *mlfqPolicy) enqueue(t *Task) {
	p.all[t] = struct{}{}
	e := p.ext(t)
	if e.sliceRemaining == 0 {
		e.sliceRemaining = p.sliceFor(e.currentQueue)
	}
	p.queues[e.currentQueue] = append(p.queues[e.currentQueue], t)
}

func (p *mlfqPolicy) remove(t *Task) {
	e := p.ext(t)
	q := p.queues[e.currentQueue]
	for i, cur := range q {
		if cur == t {
			p.queues[e.currentQueue] = append(q[:i], q[i+1:]...)
			return
		}
	}
}

func (p *mlfqPolicy) next() *Task {
	for i, q := range p.queues {
		if len(q) > 0 {
			t := q[0]
			p.queues[i] = q[1:]
			return t
		}
	}
	return nil
}

func (p *mlfqPolicy) tick(now uint64, current *Task) bool {
	preempt := false

	if current != nil {
		e := p.ext(current)
		if e.sliceRemaining > 0 {
			e.sliceRemaining--
		}
		if e.sliceRemaining == 0 {
			if e.currentQueue < len(p.queues)-1 {
				e.currentQueue++
			}
			e.sliceRemaining = p.sliceFor(e.currentQueue)
			preempt = true
		}
	}

	p.sinceBoost++
	if p.sinceBoost >= p.boostPeriod {
		p.sinceBoost = 0
		p.boostAll()
		preempt = true
	}

	return preempt
}

// boostAll promotes every task (ready or currently running) to queue 0,
// the anti-starvation/anti-gaming measure spec.md §4.2 requires.
func (p *mlfqPolicy) boostAll() {
	for q := 1; q < len(p.queues); q++ {
		for _, t := range p.queues[q] {
			e := p.ext(t)
			e.currentQueue = 0
			e.sliceRemaining = p.sliceFor(0)
			p.queues[0] = append(p.queues[0], t)
		}
		p.queues[q] = nil
	}
	// Covers tasks not currently sitting in any queue (e.g. the one
	// running right now): the drain above only reaches queued tasks.
	for t := range p.all {
		if e, ok := t.ext.(*mlfqExt); ok && e.currentQueue != 0 {
			e.currentQueue = 0
			e.sliceRemaining = p.sliceFor(0)
		}
	}
}
