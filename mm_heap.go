// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

import "sync"

// heapMagic marks a live, allocated block; a free or freshly freed block
// clears it (spec.md §4.5).
const heapMagic = 0xDEADBEEF

// minBlockPayload is the smallest payload a split-off remainder block may
// carry; a remainder smaller than this stays attached to the block being
// allocated instead of becoming its own free block.
const minBlockPayload = 16

const alignment = 8

// heapBlock is one node of the address-ordered block list backing the
// heap arena. prev/next are physical neighbors, enabling O(1) boundary-tag
// coalescing on free; there is no separate free list, so the best-fit
// search walks this list.
type heapBlock struct {
	offset int
	size   int
	magic  uint32
	free   bool
	prev   *heapBlock
	next   *heapBlock
}

// Heap is a best-fit, boundary-tag-coalescing general-purpose allocator
// (spec.md §4.5) that seeds its arena from FrameAllocator/Platform pages
// on demand, rather than from a single pre-sized slab.
type Heap struct {
	mu       sync.Mutex
	frames   *FrameAllocator
	platform Platform
	metrics  *Metrics
	pageSize int

	baseVirt uintptr
	nextVirt uintptr
	arena    []byte
	maxPages int

	blocks        []*heapBlock
	blockByOffset map[int]*heapBlock
}

const heapBaseVirt = 0x10000000

// newHeap builds an initially empty heap that grows lazily, page by
// page, up to maxPages total (WithHeapArena's bound on the pages the
// heap allocator may ever claim).
func newHeap(frames *FrameAllocator, platform Platform, maxPages int, metrics *Metrics) *Heap {
	return &Heap{
		frames:        frames,
		platform:      platform,
		metrics:       metrics,
		pageSize:      frames.PageSize(),
		baseVirt:      heapBaseVirt,
		nextVirt:      heapBaseVirt,
		maxPages:      maxPages,
		blockByOffset: make(map[int]*heapBlock),
	}
}

// grow requests n additional pages from the frame allocator, maps them
// contiguously past the current arena, and extends (or creates) the
// trailing free block. It fails once maxPages would be exceeded.
func (h *Heap) grow(n int) error {
	if h.maxPages > 0 && len(h.arena)/h.pageSize+n > h.maxPages {
		return newErr("grow", KindOutOfMemory, "heap arena bound exceeded")
	}
	for i := 0; i < n; i++ {
		virt := h.nextVirt
		idx, err := h.frames.Alloc(virt)
		if err != nil {
			return err
		}
		phys := uintptr(idx) * uintptr(h.pageSize)
		if err := h.platform.MapPage(virt, phys, PageRead|PageWrite); err != nil {
			h.frames.Free(idx)
			return err
		}
		h.arena = append(h.arena, make([]byte, h.pageSize)...)
		h.nextVirt += uintptr(h.pageSize)
	}

	added := n * h.pageSize
	if last := h.lastBlock(); last != nil && last.free {
		delete(h.blockByOffset, last.offset)
		last.size += added
		h.blockByOffset[last.offset] = last
		return nil
	}

	offset := len(h.arena) - added
	b := &heapBlock{offset: offset, size: added, free: true}
	if last := h.lastBlock(); last != nil {
		last.next = b
		b.prev = last
	}
	h.blocks = append(h.blocks, b)
	h.blockByOffset[offset] = b
	return nil
}

func (h *Heap) lastBlock() *heapBlock {
	if len(h.blocks) == 0 {
		return nil
	}
	return h.blocks[len(h.blocks)-1]
}

func roundUp(n, to int) int {
	if r := n % to; r != 0 {
		n += to - r
	}
	return n
}

// Allocate reserves n bytes, returning the payload's virtual address and
// a slice viewing it directly (spec.md §4.5 "allocate"). It grows the
// arena by whole pages when no free block fits.
func (h *Heap) Allocate(n int) (uintptr, []byte, error) {
	if n <= 0 {
		return 0, nil, newErr("Allocate", KindInvalidArgument, "size must be positive")
	}
	n = roundUp(n, alignment)

	h.mu.Lock()
	defer h.mu.Unlock()

	b := h.findBestFit(n)
	if b == nil {
		pages := (n + h.pageSize - 1) / h.pageSize
		if err := h.grow(pages); err != nil {
			return 0, nil, newErr("Allocate", KindOutOfMemory, "arena growth failed: "+err.Error())
		}
		b = h.findBestFit(n)
		if b == nil {
			return 0, nil, newErr("Allocate", KindOutOfMemory, "no block fits after growth")
		}
	}

	h.splitIfWorthwhile(b, n)
	b.free = false
	b.magic = heapMagic

	h.metrics.HeapAllocCount.Add(1)
	h.metrics.HeapBytesInUse.Add(int64(b.size))

	addr := h.baseVirt + uintptr(b.offset)
	return addr, h.arena[b.offset : b.offset+b.size], nil
}

func (h *Heap) findBestFit(n int) *heapBlock {
	var best *heapBlock
	for _, b := range h.blocks {
		if !b.free || b.size < n {
			continue
		}
		if best == nil || b.size < best.size {
			best = b
		}
	}
	return best
}

func (h *Heap) splitIfWorthwhile(b *heapBlock, n int) {
	remainder := b.size - n
	if remainder < minBlockPayload {
		return
	}
	newOffset := b.offset + n
	rem := &heapBlock{offset: newOffset, size: remainder, free: true, prev: b, next: b.next}
	if b.next != nil {
		b.next.prev = rem
	}
	b.next = rem
	b.size = n

	idx := h.indexOf(b)
	tail := append([]*heapBlock{rem}, h.blocks[idx+1:]...)
	h.blocks = append(h.blocks[:idx+1], tail...)
	h.blockByOffset[newOffset] = rem
}

func (h *Heap) indexOf(b *heapBlock) int {
	for i, cur := range h.blocks {
		if cur == b {
			return i
		}
	}
	return -1
}

// Free releases the block at addr, coalescing with either physical
// neighbor that is also free. Freeing an address whose block does not
// carry heapMagic is a diagnostic no-op (spec.md §4.5 "Lifecycle"),
// reported as KindCorrupt rather than silently ignored.
func (h *Heap) Free(addr uintptr) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if addr < h.baseVirt {
		return newErr("Free", KindInvalidArgument, "address below heap arena")
	}
	offset := int(addr - h.baseVirt)
	b, ok := h.blockByOffset[offset]
	if !ok || b.magic != heapMagic || b.free {
		return newErr("Free", KindCorrupt, "free of non-magic or already-free pointer")
	}

	h.metrics.HeapFreeCount.Add(1)
	h.metrics.HeapBytesInUse.Add(-int64(b.size))

	b.free = true
	b.magic = 0

	if b.next != nil && b.next.free {
		h.mergeInto(b, b.next)
	}
	if b.prev != nil && b.prev.free {
		h.mergeInto(b.prev, b)
	}
	return nil
}

// mergeInto absorbs victim into keep (keep.offset < victim.offset),
// removing victim from both the address list and the offset index.
func (h *Heap) mergeInto(keep, victim *heapBlock) {
	keep.size += victim.size
	keep.next = victim.next
	if victim.next != nil {
		victim.next.prev = keep
	}
	delete(h.blockByOffset, victim.offset)
	idx := h.indexOf(victim)
	if idx >= 0 {
		h.blocks = append(h.blocks[:idx], h.blocks[idx+1:]...)
	}
}

// ArenaSize returns the total number of bytes (allocated + free) the
// heap currently manages.
func (h *Heap) ArenaSize() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.arena)
}
