// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

import (
	"sync"
	"sync/atomic"
)

// simContext is a goroutine-per-task Context: a context switch is a
// synchronous handoff over a pair of unbuffered channels, matching the
// token-passing model described in doc.go. ContextInit spawns the
// goroutine parked on resume; ContextSwitch wakes next and parks the
// caller on prev until it is switched back to.
type simContext struct {
	resume chan struct{}
}

func newSimContext() *simContext {
	return &simContext{resume: make(chan struct{})}
}

// SimPlatform is an in-process, single-host implementation of Platform. It
// backs the kernel with goroutines instead of real hardware: ticks come
// from explicit Advance calls, address translation is a plain map, and
// swap-out keeps a page-sized buffer in memory rather than writing to a
// real block device.
type SimPlatform struct {
	pageSize int

	tick atomic.Uint64

	irqMu    sync.Mutex
	irqDepth uint64

	mapMu  sync.Mutex
	mapped map[uintptr]PageFlags

	physMu   sync.Mutex
	physNext uintptr
	physFree []uintptr

	swapMu   sync.Mutex
	swapNext int64
	swapped  map[int64][]byte

	onTick      TickFunc
	onPageFault PageFaultFunc
}

// NewSimPlatform constructs a SimPlatform with the given page size in
// bytes.
func NewSimPlatform(pageSize int) *SimPlatform {
	return &SimPlatform{
		pageSize: pageSize,
		mapped:   make(map[uintptr]PageFlags),
		swapped:  make(map[int64][]byte),
		physNext: pageSize, // reserve address 0 as "unmapped"
	}
}

func (p *SimPlatform) NowTicks() uint64 { return p.tick.Load() }

// Advance increments the tick counter by n and invokes the registered tick
// callback n times. Callers drive the simulated clock explicitly, or via a
// goroutine of their own construction; SimPlatform does not start one
// itself.
func (p *SimPlatform) Advance(n uint64) {
	for i := uint64(0); i < n; i++ {
		p.tick.Add(1)
		if p.onTick != nil {
			p.onTick()
		}
	}
}

func (p *SimPlatform) DisableInterrupts() uint64 {
	p.irqMu.Lock()
	defer p.irqMu.Unlock()
	prior := p.irqDepth
	p.irqDepth++
	return prior
}

func (p *SimPlatform) RestoreInterrupts(prior uint64) {
	p.irqMu.Lock()
	defer p.irqMu.Unlock()
	p.irqDepth = prior
}

func (p *SimPlatform) ContextInit(stack []byte, entry func(), exitTrampoline func()) Context {
	ctx := newSimContext()
	go func() {
		<-ctx.resume
		entry()
		exitTrampoline()
	}()
	return ctx
}

func (p *SimPlatform) RootContext() Context {
	return newSimContext()
}

func (p *SimPlatform) ContextSwitch(prev *Context, next Context) {
	nc := next.(*simContext)
	nc.resume <- struct{}{}
	if prev != nil {
		if pc, ok := (*prev).(*simContext); ok {
			<-pc.resume
		}
	}
}

func (p *SimPlatform) MapPage(virt, phys uintptr, flags PageFlags) error {
	p.mapMu.Lock()
	defer p.mapMu.Unlock()
	p.mapped[virt] = flags
	return nil
}

func (p *SimPlatform) UnmapPage(virt uintptr) error {
	p.mapMu.Lock()
	defer p.mapMu.Unlock()
	delete(p.mapped, virt)
	return nil
}

func (p *SimPlatform) UpdateProtection(virt uintptr, flags PageFlags) error {
	p.mapMu.Lock()
	defer p.mapMu.Unlock()
	if _, ok := p.mapped[virt]; !ok {
		return newErr("UpdateProtection", KindNotFound, "no mapping at address")
	}
	p.mapped[virt] = flags
	return nil
}

func (p *SimPlatform) SwapOut(virt uintptr) (SwapHandle, error) {
	p.swapMu.Lock()
	defer p.swapMu.Unlock()
	p.swapNext++
	id := p.swapNext
	p.swapped[id] = make([]byte, p.pageSize)
	return id, nil
}

func (p *SimPlatform) SwapIn(handle SwapHandle, virt uintptr) error {
	p.swapMu.Lock()
	defer p.swapMu.Unlock()
	id, ok := handle.(int64)
	if !ok {
		return newErr("SwapIn", KindInvalidArgument, "handle not owned by this platform")
	}
	if _, ok := p.swapped[id]; !ok {
		return newErr("SwapIn", KindNotFound, "swap handle not found")
	}
	delete(p.swapped, id)
	return nil
}

func (p *SimPlatform) AllocatePhysicalPages(n int) (uintptr, error) {
	if n <= 0 {
		return 0, newErr("AllocatePhysicalPages", KindInvalidArgument, "n must be positive")
	}
	p.physMu.Lock()
	defer p.physMu.Unlock()
	base := p.physNext
	p.physNext += uintptr(n * p.pageSize)
	return base, nil
}

func (p *SimPlatform) FreePhysicalPages(base uintptr, n int) {
	p.physMu.Lock()
	defer p.physMu.Unlock()
	p.physFree = append(p.physFree, base)
}

func (p *SimPlatform) PageSize() int { return p.pageSize }

func (p *SimPlatform) OnTick(fn TickFunc) { p.onTick = fn }

func (p *SimPlatform) OnPageFault(fn PageFaultFunc) { p.onPageFault = fn }

// Fault invokes the registered page-fault callback, simulating a platform
// trap. Tests and VM-area exercises call this directly rather than
// triggering a real access violation.
func (p *SimPlatform) Fault(virt uintptr, kind PageFlags) {
	if p.onPageFault != nil {
		p.onPageFault(virt, kind)
	}
}
