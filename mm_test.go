// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameAllocatorAllocAndFree(t *testing.T) {
	platform := NewSimPlatform(64)
	metrics := &Metrics{}
	a := newFrameAllocator(4, 64, ReplacementFIFO, platform, metrics)

	assert.Equal(t, 4, a.FreeCount())
	idx, err := a.Alloc(0x1000)
	require.NoError(t, err)
	assert.Equal(t, 3, a.FreeCount())
	assert.Equal(t, 1, a.InUseCount())

	a.Free(idx)
	assert.Equal(t, 4, a.FreeCount())
	assert.Equal(t, 0, a.InUseCount())
}

func TestFrameAllocatorEvictsUnderPressureFIFO(t *testing.T) {
	platform := NewSimPlatform(64)
	metrics := &Metrics{}
	a := newFrameAllocator(2, 64, ReplacementFIFO, platform, metrics)

	first, err := a.Alloc(0x1000)
	require.NoError(t, err)
	_, err = a.Alloc(0x2000)
	require.NoError(t, err)

	// Free list is now empty; a third Alloc must evict the oldest frame.
	evicted, err := a.Alloc(0x3000)
	require.NoError(t, err)
	assert.Equal(t, first, evicted)
	assert.Equal(t, uint64(1), metrics.ReplacedPages.Load())
}

func TestFrameAllocatorClockSkipsAccessedFrames(t *testing.T) {
	platform := NewSimPlatform(64)
	metrics := &Metrics{}
	a := newFrameAllocator(2, 64, ReplacementClock, platform, metrics)

	first, err := a.Alloc(0x1000)
	require.NoError(t, err)
	second, err := a.Alloc(0x2000)
	require.NoError(t, err)

	// The clock hand starts at frame index 0; touching whichever frame
	// landed there marks it accessed so the sweep spares it on the first
	// pass and evicts the other frame instead.
	a.Touch(second, false)

	victim, err := a.Alloc(0x3000)
	require.NoError(t, err)
	assert.Equal(t, first, victim)
}

func TestFrameAllocatorLRUEvictsLeastRecentlyTouched(t *testing.T) {
	platform := NewSimPlatform(64)
	metrics := &Metrics{}
	a := newFrameAllocator(2, 64, ReplacementLRU, platform, metrics)

	first, err := a.Alloc(0x1000)
	require.NoError(t, err)
	_, err = a.Alloc(0x2000)
	require.NoError(t, err)

	a.Touch(first, false) // first is now the most recently touched

	victim, err := a.Alloc(0x3000)
	require.NoError(t, err)
	assert.NotEqual(t, first, victim)
}

func TestFrameAllocatorNFUEvictsColdestFrame(t *testing.T) {
	platform := NewSimPlatform(64)
	metrics := &Metrics{}
	a := newFrameAllocator(2, 64, ReplacementNFU, platform, metrics)

	first, err := a.Alloc(0x1000)
	require.NoError(t, err)
	second, err := a.Alloc(0x2000)
	require.NoError(t, err)

	a.Touch(second, false)
	a.sampleTick()

	victim, err := a.Alloc(0x3000)
	require.NoError(t, err)
	assert.Equal(t, first, victim)
}

func newTestHeap(t *testing.T, maxPages int) (*Heap, *SimPlatform) {
	t.Helper()
	platform := NewSimPlatform(64)
	metrics := &Metrics{}
	frames := newFrameAllocator(maxPages+8, 64, ReplacementFIFO, platform, metrics)
	return newHeap(frames, platform, maxPages, metrics), platform
}

func TestHeapAllocateGrowsArenaLazily(t *testing.T) {
	h, _ := newTestHeap(t, 4)
	assert.Equal(t, 0, h.ArenaSize())

	addr, buf, err := h.Allocate(32)
	require.NoError(t, err)
	assert.NotZero(t, addr)
	assert.Len(t, buf, 32)
	assert.Equal(t, 64, h.ArenaSize())
}

func TestHeapAllocateFailsPastMaxPages(t *testing.T) {
	h, _ := newTestHeap(t, 1)
	_, _, err := h.Allocate(64)
	require.NoError(t, err)

	_, _, err = h.Allocate(64)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindOutOfMemory, kind)
}

func TestHeapFreeCoalescesNeighbors(t *testing.T) {
	h, _ := newTestHeap(t, 4)
	a, _, err := h.Allocate(32)
	require.NoError(t, err)
	b, _, err := h.Allocate(32)
	require.NoError(t, err)

	require.NoError(t, h.Free(a))
	require.NoError(t, h.Free(b))

	// Both freed blocks should have merged into one, large enough for a
	// request that would otherwise need the arena to grow again.
	_, _, err = h.Allocate(60)
	require.NoError(t, err)
	assert.Equal(t, 64, h.ArenaSize())
}

func TestHeapFreeDetectsCorruption(t *testing.T) {
	h, _ := newTestHeap(t, 4)
	addr, _, err := h.Allocate(32)
	require.NoError(t, err)

	require.NoError(t, h.Free(addr))
	err = h.Free(addr) // double free: magic already cleared
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindCorrupt, kind)
}

func newTestAddressSpace(t *testing.T, frameCount int) (*AddressSpace, *FrameAllocator, *SimPlatform) {
	t.Helper()
	platform := NewSimPlatform(64)
	metrics := &Metrics{}
	frames := newFrameAllocator(frameCount, 64, ReplacementFIFO, platform, metrics)
	heap := newHeap(frames, platform, 0, metrics)
	vm := newAddressSpace(heap, platform, metrics)
	return vm, frames, platform
}

func TestAddressSpaceFaultMapsWithinArea(t *testing.T) {
	vm, _, _ := newTestAddressSpace(t, 4)
	vm.AddArea(0x50000000, 0x50001000, PageRead|PageWrite)

	err := vm.handlePageFault(0x50000010, PageRead)
	require.NoError(t, err)

	// A second fault on the same page hits the existing mapping, not a
	// fresh allocation.
	err = vm.handlePageFault(0x50000020, PageWrite)
	require.NoError(t, err)
}

func TestAddressSpaceFaultOutsideAreaDenied(t *testing.T) {
	vm, _, _ := newTestAddressSpace(t, 4)
	vm.AddArea(0x50000000, 0x50001000, PageRead)

	err := vm.handlePageFault(0x60000000, PageRead)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindAccessDenied, kind)
}

func TestAddressSpaceFaultExceedsPermissionDenied(t *testing.T) {
	vm, _, _ := newTestAddressSpace(t, 4)
	vm.AddArea(0x50000000, 0x50001000, PageRead)

	err := vm.handlePageFault(0x50000000, PageWrite)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindAccessDenied, kind)
}

func TestAddressSpaceProtectUpdatesMappedPages(t *testing.T) {
	vm, _, platform := newTestAddressSpace(t, 4)
	vm.AddArea(0x50000000, 0x50001000, PageRead|PageWrite)
	require.NoError(t, vm.handlePageFault(0x50000000, PageRead))

	require.NoError(t, vm.protect(0x50000000, 0x1000, PageRead))
	// A write now violates the narrowed permission.
	err := vm.handlePageFault(0x50000000, PageWrite)
	require.Error(t, err)
	_ = platform
}

func TestAddressSpaceRemoveAreaUnmapsPages(t *testing.T) {
	vm, frames, _ := newTestAddressSpace(t, 4)
	vm.AddArea(0x50000000, 0x50001000, PageRead|PageWrite)
	require.NoError(t, vm.handlePageFault(0x50000000, PageRead))
	assert.Equal(t, 3, frames.FreeCount())

	vm.RemoveArea(0x50000000)
	assert.Equal(t, 4, frames.FreeCount())
}
