// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

// pipe is the byte-stream ring buffer shared by a Reader/Writer pair
// (spec.md §4.6 "Pipe"). Closing a side is idempotent. Closing both
// sides releases nothing: the guard Mutex and both Conds stay registered
// with the Kernel.
type pipe struct {
	guard    *Mutex
	notFull  *Cond
	notEmpty *Cond
	buf      *ring[byte]

	readerClosed bool
	writerClosed bool
}

// PipeReader and PipeWriter are the two handles spec.md §4.6 returns
// from pipe creation. Each wraps the same underlying pipe, so Close on
// one only affects that side.
type PipeReader struct {
	k *Kernel
	p *pipe
}

type PipeWriter struct {
	k *Kernel
	p *pipe
}

// NewPipe creates a pipe with an internal ring buffer of capacity
// bufSize bytes, returning its read and write handles.
func (k *Kernel) NewPipe(bufSize int) (*PipeReader, *PipeWriter, error) {
	if bufSize <= 0 {
		return nil, nil, newErr("NewPipe", KindInvalidArgument, "bufSize must be positive")
	}
	guard, err := k.NewMutex("pipe.guard")
	if err != nil {
		return nil, nil, err
	}
	notFull, err := k.NewCond("pipe.notFull")
	if err != nil {
		return nil, nil, err
	}
	notEmpty, err := k.NewCond("pipe.notEmpty")
	if err != nil {
		return nil, nil, err
	}
	p := &pipe{guard: guard, notFull: notFull, notEmpty: notEmpty, buf: newRing[byte](bufSize)}
	return &PipeReader{k: k, p: p}, &PipeWriter{k: k, p: p}, nil
}

// Write blocks while the ring is full and the writer side is still
// open; it fails with BrokenPipe once the reader has closed (spec.md
// §4.6 "write"). It returns the number of bytes accepted, which may be
// fewer than len(buf) if the reader closes mid-write.
func (w *PipeWriter) Write(t *Task, buf []byte) (int, error) {
	p := w.p
	written := 0
	p.guard.Lock(t)
	for written < len(buf) {
		if p.readerClosed {
			p.guard.Unlock(t)
			if written > 0 {
				return written, nil
			}
			return 0, newErr("Write", KindBrokenPipe, "reader closed")
		}
		if p.buf.Full() {
			if res := p.notFull.Wait(t, p.guard); res != WaitCompleted {
				p.guard.Unlock(t)
				return written, waitResultErr("Write", res)
			}
			continue
		}
		p.buf.Push(buf[written])
		written++
	}
	p.guard.Unlock(t)
	p.notEmpty.Signal()
	w.k.metrics.PipeBytesWritten.Add(uint64(written))
	return written, nil
}

// Close is idempotent; the first call wakes every reader blocked on
// notEmpty so it observes EOF.
func (w *PipeWriter) Close() {
	p := w.p
	t := w.k.Current()
	p.guard.Lock(t)
	already := p.writerClosed
	p.writerClosed = true
	p.guard.Unlock(t)
	if !already {
		p.notEmpty.Broadcast()
	}
}

// Read blocks while the ring is empty and the writer side is still
// open; once the writer has closed and the buffer has drained it
// returns (0, nil), the pipe's EOF (spec.md §4.6 "read").
func (r *PipeReader) Read(t *Task, buf []byte) (int, error) {
	p := r.p
	p.guard.Lock(t)
	for p.buf.Empty() {
		if p.writerClosed {
			p.guard.Unlock(t)
			return 0, nil
		}
		if res := p.notEmpty.Wait(t, p.guard); res != WaitCompleted {
			p.guard.Unlock(t)
			return 0, waitResultErr("Read", res)
		}
	}
	n := 0
	for n < len(buf) && !p.buf.Empty() {
		b, _ := p.buf.Pop()
		buf[n] = b
		n++
	}
	p.guard.Unlock(t)
	p.notFull.Signal()
	r.k.metrics.PipeBytesRead.Add(uint64(n))
	return n, nil
}

// Close is idempotent; the first call wakes every writer blocked on
// notFull so it observes the closed reader.
func (r *PipeReader) Close() {
	p := r.p
	t := r.k.Current()
	p.guard.Lock(t)
	already := p.readerClosed
	p.readerClosed = true
	p.guard.Unlock(t)
	if !already {
		p.notFull.Broadcast()
	}
}
