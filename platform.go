// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

// Context is an opaque platform-managed execution context. The kernel never
// dereferences its contents; it exists purely as a token passed between
// ContextInit and ContextSwitch.
type Context interface{}

// PageFlags describes page permissions and sharing for map/protect calls.
type PageFlags uint32

const (
	PageRead PageFlags = 1 << iota
	PageWrite
	PageExec
	PageShared
)

// SwapHandle is an opaque identifier for a page image Platform has moved out
// of physical memory. The kernel does not examine it: FrameAllocator
// discards the handle SwapOut returns and never calls SwapIn.
type SwapHandle interface{}

// TickFunc is invoked once per platform tick, on whatever goroutine the
// platform's timer source runs. It must return quickly.
type TickFunc func()

// PageFaultFunc is invoked by the platform when address translation for virt
// fails; kind indicates whether the access was a read, write, or execute.
type PageFaultFunc func(virt uintptr, kind PageFlags)

// Platform is the trait the kernel consumes in place of direct hardware or
// OS access (spec.md §6). A real deployment backs it with interrupt
// controller, MMU, and timer drivers; SimPlatform, in simplatform.go, backs
// it entirely in Go for testing and for hosting the kernel as a library.
type Platform interface {
	// NowTicks returns the monotonic tick counter.
	NowTicks() uint64

	// DisableInterrupts returns an opaque prior state; RestoreInterrupts
	// reverses it. Calls may nest.
	DisableInterrupts() uint64
	RestoreInterrupts(prior uint64)

	// ContextInit builds a Context for a task about to run for the first
	// time: entry executes on stack, and exitTrampoline runs if entry
	// returns.
	ContextInit(stack []byte, entry func(), exitTrampoline func()) Context

	// RootContext returns a Context representing the calling goroutine
	// itself (no new goroutine is spawned). Kernel.Run calls this once,
	// when it starts, to obtain the context it switches away
	// from and back into as it dispatches tasks.
	RootContext() Context

	// ContextSwitch transfers control from the caller's saved context into
	// next and blocks until the caller's context is resumed. *prev is
	// updated in place (real hardware context-switch trailers can mutate
	// saved-register state; SimPlatform leaves it unchanged).
	ContextSwitch(prev *Context, next Context)

	// MapPage establishes virt -> phys with the given permissions.
	MapPage(virt, phys uintptr, flags PageFlags) error
	// UnmapPage removes any mapping at virt.
	UnmapPage(virt uintptr) error
	// UpdateProtection rewrites the permissions of an existing mapping.
	UpdateProtection(virt uintptr, flags PageFlags) error

	// SwapOut moves the page mapped at virt to backing storage.
	SwapOut(virt uintptr) (SwapHandle, error)
	// SwapIn restores a previously swapped-out page to virt.
	SwapIn(handle SwapHandle, virt uintptr) error

	// AllocatePhysicalPages reserves n contiguous physical pages, returning
	// the base physical address.
	AllocatePhysicalPages(n int) (base uintptr, err error)
	// FreePhysicalPages releases pages previously returned by
	// AllocatePhysicalPages.
	FreePhysicalPages(base uintptr, n int)

	// PageSize is the platform's fixed page size in bytes.
	PageSize() int

	// OnTick registers the kernel's tick callback. Called once at kernel
	// construction.
	OnTick(fn TickFunc)
	// OnPageFault registers the kernel's page-fault callback. Called once
	// at kernel construction.
	OnPageFault(fn PageFaultFunc)
}
