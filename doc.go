// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package rtos implements the core of a small preemptive-multitasking
// kernel: a pluggable scheduler family, blocking synchronization
// primitives, a two-layer memory manager (frame allocator with pluggable
// page replacement, plus a best-fit heap), and inter-task communication
// (message queues, shared memory segments, pipes).
//
// The kernel never touches real hardware. Everything that would require a
// context switch, an MMU, or an interrupt controller is expressed through
// the Platform interface, which callers supply (or obtain from
// NewSimPlatform for tests and examples). Because Go cannot switch
// raw stacks, each Task owns a goroutine and the kernel hands it a one-shot
// run token; the goroutine holds the token until it blocks, yields, calls
// CheckPoint, or returns. Exactly one goroutine holds the token at a time,
// which is the single logical CPU the rest of the package assumes.
package rtos
