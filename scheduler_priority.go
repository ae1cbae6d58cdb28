// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

// priorityPolicy keeps one FIFO per priority level; next() returns the
// head of the highest non-empty level (spec.md §4.2 "Priority"). Ties are
// FIFO; there is no time-slicing between equal-priority tasks.
type priorityPolicy struct {
	levels [5][]*Task // indexed by Priority
}

func newPriorityPolicy() *priorityPolicy {
	return &priorityPolicy{}
}

func (p *priorityPolicy) kind() PolicyKind { return PolicyPriority }

func (p *priorityPolicy) effectivePriority(t *Task) Priority {
	return t.priority
}

func (p *priorityPolicy) enqueue(t *Task) {
	lvl := p.effectivePriority(t)
	p.levels[lvl] = append(p.levels[lvl], t)
}

func (p *priorityPolicy) remove(t *Task) {
	for lvl := range p.levels {
		q := p.levels[lvl]
		for i, cur := range q {
			if cur == t {
				p.levels[lvl] = append(q[:i], q[i+1:]...)
				return
			}
		}
	}
}

func (p *priorityPolicy) next() *Task {
	for lvl := len(p.levels) - 1; lvl >= 0; lvl-- {
		q := p.levels[lvl]
		if len(q) > 0 {
			t := q[0]
			p.levels[lvl] = q[1:]
			return t
		}
	}
	return nil
}

func (p *priorityPolicy) tick(now uint64, current *Task) bool {
	return false
}

// donatePriority implements the priority-inheritance hook spec.md §4.3
// requires: when a higher-priority task blocks on a mutex held by a
// lower-priority owner, the owner's effective priority is raised to the
// waiter's until release. A READY owner is moved between priorityPolicy
// levels here, by remove then enqueue around the change to its priority
// (a temporary boost, restored by Mutex.Unlock).
func donatePriority(k *Kernel, owner *Task, boosted Priority) {
	if owner.priority >= boosted {
		return
	}
	if owner.State() == TaskReady {
		k.scheduler.remove(owner)
		owner.priority = boosted
		k.scheduler.enqueue(owner)
	} else {
		owner.priority = boosted
	}
}
