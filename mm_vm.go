// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

import "sync"

// vmArea is a contiguous permission region within a task's address space
// (spec.md §4.4 "Protection"). Shared-memory attach registers one; heap
// growth does not.
type vmArea struct {
	start uintptr
	end   uintptr
	flags PageFlags
}

func (a *vmArea) covers(virt uintptr) bool { return virt >= a.start && virt < a.end }

// AddressSpace tracks VM areas and demand-pages them on fault, backing
// the page-fault handler Platform invokes (spec.md §4.4). The heap's own
// arena is eagerly mapped at grow time and does not fault through here.
// Attached shared-memory segments register an area here, but Attach maps
// their pages eagerly; task stacks are not tracked here.
type AddressSpace struct {
	mu       sync.Mutex
	frames   *FrameAllocator
	platform Platform
	metrics  *Metrics

	areas    []*vmArea
	mappings map[uintptr]int // page-aligned virt -> frame index

	nextSharedVirt uintptr
}

const sharedRegionBase = 0x40000000

// newAddressSpace builds the VM-area tracker used for demand-paged
// regions. The heap's own arena is exempt: Heap.grow maps its pages
// eagerly via Platform directly and never faults through here.
func newAddressSpace(heap *Heap, platform Platform, metrics *Metrics) *AddressSpace {
	vm := &AddressSpace{
		frames:         heap.frames,
		platform:       platform,
		metrics:        metrics,
		mappings:       make(map[uintptr]int),
		nextSharedVirt: sharedRegionBase,
	}
	return vm
}

// reserveRange bump-allocates size bytes of unused virtual address space,
// for a shared-memory attach to map frames into.
func (vm *AddressSpace) reserveRange(size int) uintptr {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	base := vm.nextSharedVirt
	vm.nextSharedVirt += uintptr(size)
	return base
}

// AddArea registers a new permission region, e.g. for an attached shared
// memory segment or a task stack guard region.
func (vm *AddressSpace) AddArea(start, end uintptr, flags PageFlags) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.areas = append(vm.areas, &vmArea{start: start, end: end, flags: flags})
}

// RemoveArea unregisters the region starting at start, unmapping any
// pages it had faulted in.
func (vm *AddressSpace) RemoveArea(start uintptr) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	for i, a := range vm.areas {
		if a.start != start {
			continue
		}
		for page := a.start; page < a.end; page += uintptr(vm.frames.PageSize()) {
			if idx, ok := vm.mappings[page]; ok {
				vm.platform.UnmapPage(page)
				vm.frames.Free(idx)
				delete(vm.mappings, page)
			}
		}
		vm.areas = append(vm.areas[:i], vm.areas[i+1:]...)
		return
	}
}

func (vm *AddressSpace) find(virt uintptr) *vmArea {
	for _, a := range vm.areas {
		if a.covers(virt) {
			return a
		}
	}
	return nil
}

// protect rewrites the permission flags of every area overlapping
// [addr, addr+length) and re-applies them to already-faulted-in pages
// (spec.md §4.4 "protect(addr, len, prot)").
func (vm *AddressSpace) protect(addr uintptr, length int, prot PageFlags) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	end := addr + uintptr(length)
	found := false
	for _, a := range vm.areas {
		if a.end <= addr || a.start >= end {
			continue
		}
		found = true
		a.flags = prot
		for page := a.start; page < a.end; page += uintptr(vm.frames.PageSize()) {
			if _, ok := vm.mappings[page]; ok {
				if err := vm.platform.UpdateProtection(page, prot); err != nil {
					return err
				}
			}
		}
	}
	if !found {
		return newErr("protect", KindNotFound, "no VM area covers the given range")
	}
	return nil
}

// handlePageFault locates the area covering virt, validates kind against
// its permissions, and demand-allocates a backing frame (spec.md §4.4
// "Protection"). A fault outside every area, or one that violates the
// area's permissions, returns AccessDenied; Kernel.onPageFault terminates
// the faulting task on that path.
func (vm *AddressSpace) handlePageFault(virt uintptr, kind PageFlags) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	a := vm.find(virt)
	if a == nil {
		return newErr("handlePageFault", KindAccessDenied, "no VM area covers the faulting address")
	}
	if kind&^a.flags != 0 {
		return newErr("handlePageFault", KindAccessDenied, "access kind exceeds area permissions")
	}

	pageSize := uintptr(vm.frames.PageSize())
	page := virt - (virt % pageSize)
	if idx, ok := vm.mappings[page]; ok {
		vm.frames.Touch(idx, kind&PageWrite != 0)
		return nil
	}

	idx, err := vm.frames.Alloc(page)
	if err != nil {
		return err
	}
	phys := uintptr(idx) * pageSize
	if err := vm.platform.MapPage(page, phys, a.flags); err != nil {
		vm.frames.Free(idx)
		return err
	}
	vm.mappings[page] = idx
	vm.frames.Touch(idx, kind&PageWrite != 0)
	return nil
}
