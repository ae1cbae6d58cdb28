// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

import "sync"

// frame is a physical page container in the frame table (spec.md §4.4).
// inUse is authoritative for free/allocated status; vaddr is only
// meaningful while inUse is true (see DESIGN.md for why this differs
// from the original's "vaddr==0 means free" convention).
type frame struct {
	vaddr    uintptr
	inUse    bool
	accessed bool
	dirty    bool
	refCount int

	insertOrder uint64
	lastTouched uint64
	nfuReg      uint8
}

// FrameAllocator manages a fixed-size physical frame table and the
// pluggable page-replacement algorithm that selects a victim once the
// free list is exhausted (spec.md §4.4).
type FrameAllocator struct {
	mu          sync.Mutex
	platform    Platform
	metrics     *Metrics
	pageSize    int
	replacement ReplacementKind

	frames    []frame
	freeList  []int
	fifoOrder []int
	clockHand int
	clock     uint64
}

func newFrameAllocator(frameCount, pageSize int, replacement ReplacementKind, platform Platform, metrics *Metrics) *FrameAllocator {
	a := &FrameAllocator{
		platform:    platform,
		metrics:     metrics,
		pageSize:    pageSize,
		replacement: replacement,
		frames:      make([]frame, frameCount),
	}
	a.freeList = make([]int, frameCount)
	for i := range a.freeList {
		a.freeList[i] = i
	}
	return a
}

// Alloc assigns a frame to virt, demand-paging per spec.md §4.4's
// alloc-under-pressure algorithm when the free list is empty. The
// returned index is a stable handle into the frame table.
func (a *FrameAllocator) Alloc(virt uintptr) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n := len(a.freeList); n > 0 {
		idx := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		a.claim(idx, virt)
		return idx, nil
	}

	a.metrics.PageFaults.Add(1)
	victim := a.selectVictim()
	if victim < 0 {
		return -1, newErr("Alloc", KindOutOfMemory, "no evictable frame")
	}
	f := &a.frames[victim]
	if f.dirty {
		if _, err := a.platform.SwapOut(f.vaddr); err != nil {
			return -1, newErr("Alloc", KindOutOfMemory, "swap-out failed: "+err.Error())
		}
		a.metrics.PageOuts.Add(1)
	}
	a.platform.UnmapPage(f.vaddr)
	a.claim(victim, virt)
	a.metrics.PageIns.Add(1)
	a.metrics.ReplacedPages.Add(1)
	return victim, nil
}

func (a *FrameAllocator) claim(idx int, virt uintptr) {
	a.clock++
	f := &a.frames[idx]
	*f = frame{
		vaddr:       virt,
		inUse:       true,
		insertOrder: a.clock,
		lastTouched: a.clock,
	}
	a.fifoOrder = append(a.fifoOrder, idx)
}

// Free releases the frame at idx back to the free list.
func (a *FrameAllocator) Free(idx int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if idx < 0 || idx >= len(a.frames) || !a.frames[idx].inUse {
		return
	}
	a.frames[idx] = frame{}
	a.freeList = append(a.freeList, idx)
	for i, v := range a.fifoOrder {
		if v == idx {
			a.fifoOrder = append(a.fifoOrder[:i], a.fifoOrder[i+1:]...)
			break
		}
	}
}

// Touch records an access to the frame at idx, for policies that track
// recency (LRU, clock, NFU).
func (a *FrameAllocator) Touch(idx int, write bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if idx < 0 || idx >= len(a.frames) || !a.frames[idx].inUse {
		return
	}
	a.clock++
	f := &a.frames[idx]
	f.accessed = true
	f.lastTouched = a.clock
	if write {
		f.dirty = true
	}
}

// SetVaddr updates the virtual address a frame is currently mapped at,
// used once a shared-memory attach (or any mapping installed after the
// frame was reserved) picks the actual address.
func (a *FrameAllocator) SetVaddr(idx int, virt uintptr) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if idx >= 0 && idx < len(a.frames) && a.frames[idx].inUse {
		a.frames[idx].vaddr = virt
	}
}

func (a *FrameAllocator) FreeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.freeList)
}

func (a *FrameAllocator) InUseCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.frames) - len(a.freeList)
}

func (a *FrameAllocator) PageSize() int { return a.pageSize }
