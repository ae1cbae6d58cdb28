// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

// kernelOptions holds configuration resolved by New.
type kernelOptions struct {
	policy              PolicyKind
	rtMode              RTMode
	priorityInheritance bool
	metricsEnabled      bool
	logger              Logger
	maxTasks            int
	frameCount          int
	pageSize            int
	replacement         ReplacementKind
	heapArenaPages      int
	mlfqQueues          int
	mlfqBaseSlice       uint64
	mlfqBoostPeriod     uint64
	fairMinGranularity  uint64
	rrTimeSlice         uint64
}

// Option configures a Kernel instance, constructed via New.
type Option interface {
	apply(*kernelOptions) error
}

type optionFunc func(*kernelOptions) error

func (f optionFunc) apply(o *kernelOptions) error { return f(o) }

// WithPolicy selects the initial scheduling policy.
func WithPolicy(kind PolicyKind) Option {
	return optionFunc(func(o *kernelOptions) error {
		o.policy = kind
		return nil
	})
}

// WithRealtimeMode selects EDF or Rate-Monotonic ordering for the real-time
// policy (see original_source/scheduler_rt.c, which implements both).
func WithRealtimeMode(mode RTMode) Option {
	return optionFunc(func(o *kernelOptions) error {
		o.rtMode = mode
		return nil
	})
}

// WithPriorityInheritance enables the mutex priority-donation hook required
// by spec.md §4.3. Disabled by default, matching the original C, which
// alludes to it in contention counters without implementing it.
func WithPriorityInheritance(enabled bool) Option {
	return optionFunc(func(o *kernelOptions) error {
		o.priorityInheritance = enabled
		return nil
	})
}

// WithMetrics records enabled in the Kernel's options. The flag is not
// consulted: a Kernel always collects Metrics.
func WithMetrics(enabled bool) Option {
	return optionFunc(func(o *kernelOptions) error {
		o.metricsEnabled = enabled
		return nil
	})
}

// WithLogger installs a structured Logger. Defaults to a NoOpLogger.
func WithLogger(logger Logger) Option {
	return optionFunc(func(o *kernelOptions) error {
		o.logger = logger
		return nil
	})
}

// WithMaxTasks bounds the task table; CreateTask returns TooManyTasks past it.
func WithMaxTasks(n int) Option {
	return optionFunc(func(o *kernelOptions) error {
		if n <= 0 {
			return newErr("WithMaxTasks", KindInvalidArgument, "n must be positive")
		}
		o.maxTasks = n
		return nil
	})
}

// WithFrameTable sizes the physical frame table (frameCount frames of
// pageSize bytes each) backing the page allocator.
func WithFrameTable(frameCount, pageSize int) Option {
	return optionFunc(func(o *kernelOptions) error {
		if frameCount <= 0 || pageSize <= 0 {
			return newErr("WithFrameTable", KindInvalidArgument, "frameCount and pageSize must be positive")
		}
		o.frameCount = frameCount
		o.pageSize = pageSize
		return nil
	})
}

// WithReplacement selects the page-replacement algorithm.
func WithReplacement(kind ReplacementKind) Option {
	return optionFunc(func(o *kernelOptions) error {
		o.replacement = kind
		return nil
	})
}

// WithHeapArena bounds the number of pages the heap allocator may claim
// from the page allocator over its lifetime.
func WithHeapArena(pages int) Option {
	return optionFunc(func(o *kernelOptions) error {
		if pages <= 0 {
			return newErr("WithHeapArena", KindInvalidArgument, "pages must be positive")
		}
		o.heapArenaPages = pages
		return nil
	})
}

// WithMLFQ configures the multi-level feedback queue policy.
func WithMLFQ(queues int, baseSlice, boostPeriod uint64) Option {
	return optionFunc(func(o *kernelOptions) error {
		if queues <= 1 || baseSlice == 0 || boostPeriod == 0 {
			return newErr("WithMLFQ", KindInvalidArgument, "queues must be > 1, baseSlice and boostPeriod must be nonzero")
		}
		o.mlfqQueues = queues
		o.mlfqBaseSlice = baseSlice
		o.mlfqBoostPeriod = boostPeriod
		return nil
	})
}

// WithFairMinGranularity sets the CFS-style policy's min_granularity, in
// ticks.
func WithFairMinGranularity(ticks uint64) Option {
	return optionFunc(func(o *kernelOptions) error {
		if ticks == 0 {
			return newErr("WithFairMinGranularity", KindInvalidArgument, "ticks must be nonzero")
		}
		o.fairMinGranularity = ticks
		return nil
	})
}

// WithRoundRobinSlice sets the round-robin policy's per-task time slice, in
// ticks.
func WithRoundRobinSlice(ticks uint64) Option {
	return optionFunc(func(o *kernelOptions) error {
		if ticks == 0 {
			return newErr("WithRoundRobinSlice", KindInvalidArgument, "ticks must be nonzero")
		}
		o.rrTimeSlice = ticks
		return nil
	})
}

func resolveOptions(opts []Option) (*kernelOptions, error) {
	cfg := &kernelOptions{
		policy:             PolicyRoundRobin,
		rtMode:             RTModeEDF,
		logger:             NewNoOpLogger(),
		maxTasks:           256,
		frameCount:         1024,
		pageSize:           4096,
		replacement:        ReplacementClock,
		heapArenaPages:     64,
		mlfqQueues:         4,
		mlfqBaseSlice:      4,
		mlfqBoostPeriod:    1000,
		fairMinGranularity: 4,
		rrTimeSlice:        10,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
