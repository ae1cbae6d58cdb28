// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

import "sync"

// SharedSegment is a key-indexed, ref-counted shared-memory region
// (spec.md §4.6). Its physical pages are allocated eagerly at create
// time; attach/detach only manage virtual mappings and the reference
// count.
type SharedSegment struct {
	k   *Kernel
	id  int64
	key int64

	mu        sync.Mutex
	size      int
	frameIdxs []int
	refCount  int
	attached  map[uintptr]bool
}

// NewSharedSegment allocates ceil(size/pageSize) physical pages under
// key. It fails with AlreadyExists if key is already in use.
func (k *Kernel) NewSharedSegment(key int64, size int) (*SharedSegment, error) {
	if size <= 0 {
		return nil, newErr("NewSharedSegment", KindInvalidArgument, "size must be positive")
	}
	if _, _, ok := k.segments.GetByKey(key); ok {
		return nil, newErr("NewSharedSegment", KindAlreadyExists, "segment key already in use")
	}

	pageSize := k.frames.PageSize()
	pages := (size + pageSize - 1) / pageSize
	frameIdxs := make([]int, 0, pages)
	for i := 0; i < pages; i++ {
		idx, err := k.frames.Alloc(0)
		if err != nil {
			for _, prior := range frameIdxs {
				k.frames.Free(prior)
			}
			return nil, err
		}
		frameIdxs = append(frameIdxs, idx)
	}

	seg := &SharedSegment{
		k:         k,
		key:       key,
		size:      size,
		frameIdxs: frameIdxs,
		attached:  make(map[uintptr]bool),
	}
	id, err := k.segments.InsertKeyed(key, seg)
	if err != nil {
		for _, idx := range frameIdxs {
			k.frames.Free(idx)
		}
		return nil, err
	}
	seg.id = id
	return seg, nil
}

// Attach maps the segment into the address space and returns its base
// virtual address, incrementing ref_count.
func (s *SharedSegment) Attach() (uintptr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pageSize := s.k.frames.PageSize()
	base := s.k.vm.reserveRange(len(s.frameIdxs) * pageSize)
	for i, idx := range s.frameIdxs {
		virt := base + uintptr(i*pageSize)
		phys := uintptr(idx) * uintptr(pageSize)
		if err := s.k.platform.MapPage(virt, phys, PageRead|PageWrite|PageShared); err != nil {
			return 0, err
		}
		s.k.frames.SetVaddr(idx, virt)
	}
	s.k.vm.AddArea(base, base+uintptr(len(s.frameIdxs)*pageSize), PageRead|PageWrite|PageShared)
	s.attached[base] = true
	s.refCount++
	return base, nil
}

// Detach tears down the mapping previously returned by Attach and
// decrements ref_count.
func (s *SharedSegment) Detach(addr uintptr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached[addr] {
		return newErr("Detach", KindNotFound, "address is not an attachment of this segment")
	}
	pageSize := s.k.frames.PageSize()
	for i := range s.frameIdxs {
		s.k.platform.UnmapPage(addr + uintptr(i*pageSize))
	}
	s.k.vm.RemoveArea(addr)
	delete(s.attached, addr)
	s.refCount--
	return nil
}

// Delete frees the segment's physical pages. It fails with InvalidState
// unless ref_count is zero (spec.md §4.6).
func (s *SharedSegment) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refCount != 0 {
		return newErr("Delete", KindInvalidState, "segment deleted while attached")
	}
	for _, idx := range s.frameIdxs {
		s.k.frames.Free(idx)
	}
	s.k.segments.Remove(s.id)
	return nil
}

func (s *SharedSegment) RefCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refCount
}
