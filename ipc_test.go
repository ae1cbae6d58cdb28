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

func TestMessageQueueSendReceiveFIFO(t *testing.T) {
	k, _ := newTestKernel(t)
	q, err := k.NewMessageQueue(1, 4, 16)
	require.NoError(t, err)

	tk, err := k.CreateTask("t", PriorityNormal, 256, func(*Task) {})
	require.NoError(t, err)

	require.NoError(t, q.Send(tk, 1, []byte("first"), 0))
	require.NoError(t, q.Send(tk, 1, []byte("second"), 0))

	typ, data, err := q.Receive(tk, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, typ)
	assert.Equal(t, "first", string(data))

	_, data, err = q.Receive(tk, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestMessageQueueReceiveEmptyWouldBlock(t *testing.T) {
	k, _ := newTestKernel(t)
	q, err := k.NewMessageQueue(1, 4, 16)
	require.NoError(t, err)
	tk, err := k.CreateTask("t", PriorityNormal, 256, func(*Task) {})
	require.NoError(t, err)

	_, _, err = q.Receive(tk, 0, 0)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindWouldBlock, kind)
}

func TestMessageQueueSendFullWouldBlock(t *testing.T) {
	k, _ := newTestKernel(t)
	q, err := k.NewMessageQueue(1, 1, 16)
	require.NoError(t, err)
	tk, err := k.CreateTask("t", PriorityNormal, 256, func(*Task) {})
	require.NoError(t, err)

	require.NoError(t, q.Send(tk, 1, []byte("x"), 0))
	err = q.Send(tk, 1, []byte("y"), 0)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindWouldBlock, kind)
}

func TestMessageQueueReceiveMatchesType(t *testing.T) {
	k, _ := newTestKernel(t)
	q, err := k.NewMessageQueue(1, 4, 16)
	require.NoError(t, err)
	tk, err := k.CreateTask("t", PriorityNormal, 256, func(*Task) {})
	require.NoError(t, err)

	require.NoError(t, q.Send(tk, 1, []byte("a"), 0))
	require.NoError(t, q.Send(tk, 2, []byte("b"), 0))

	typ, data, err := q.Receive(tk, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, typ)
	assert.Equal(t, "b", string(data))

	// The type-1 message is still queued, head-of-line now.
	typ, data, err = q.Receive(tk, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, typ)
	assert.Equal(t, "a", string(data))
}

func TestMessageQueueRejectsOversizedMessage(t *testing.T) {
	k, _ := newTestKernel(t)
	q, err := k.NewMessageQueue(1, 4, 4)
	require.NoError(t, err)
	tk, err := k.CreateTask("t", PriorityNormal, 256, func(*Task) {})
	require.NoError(t, err)

	err = q.Send(tk, 1, []byte("too long"), 0)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindInvalidArgument, kind)
}

func TestMessageQueueDuplicateKeyRejected(t *testing.T) {
	k, _ := newTestKernel(t)
	_, err := k.NewMessageQueue(7, 4, 16)
	require.NoError(t, err)
	_, err = k.NewMessageQueue(7, 4, 16)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindAlreadyExists, kind)
}

func TestSharedSegmentAttachDetachRefCount(t *testing.T) {
	k, _ := newTestKernel(t)
	seg, err := k.NewSharedSegment(1, 128)
	require.NoError(t, err)
	assert.Equal(t, 0, seg.RefCount())

	addr, err := seg.Attach()
	require.NoError(t, err)
	assert.NotZero(t, addr)
	assert.Equal(t, 1, seg.RefCount())

	addr2, err := seg.Attach()
	require.NoError(t, err)
	assert.NotEqual(t, addr, addr2)
	assert.Equal(t, 2, seg.RefCount())

	require.NoError(t, seg.Detach(addr))
	assert.Equal(t, 1, seg.RefCount())
	require.NoError(t, seg.Detach(addr2))
	assert.Equal(t, 0, seg.RefCount())
}

func TestSharedSegmentDeleteFailsWithRefsRemaining(t *testing.T) {
	k, _ := newTestKernel(t)
	seg, err := k.NewSharedSegment(1, 64)
	require.NoError(t, err)
	addr, err := seg.Attach()
	require.NoError(t, err)

	err = seg.Delete()
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindInvalidState, kind)

	require.NoError(t, seg.Detach(addr))
	require.NoError(t, seg.Delete())
}

func TestSharedSegmentDetachUnknownAddress(t *testing.T) {
	k, _ := newTestKernel(t)
	seg, err := k.NewSharedSegment(1, 64)
	require.NoError(t, err)

	err = seg.Detach(0xdeadbeef)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, kind)
}

func TestPipeWriteReadBasic(t *testing.T) {
	k, _ := newTestKernel(t)
	r, w, err := k.NewPipe(16)
	require.NoError(t, err)
	tk, err := k.CreateTask("t", PriorityNormal, 256, func(*Task) {})
	require.NoError(t, err)

	n, err := w.Write(tk, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 16)
	n, err = r.Read(tk, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestPipeReadReturnsEOFAfterWriterClosedAndDrained(t *testing.T) {
	k, _ := newTestKernel(t)
	r, w, err := k.NewPipe(16)
	require.NoError(t, err)
	tk, err := k.CreateTask("t", PriorityNormal, 256, func(*Task) {})
	require.NoError(t, err)

	_, err = w.Write(tk, []byte("hi"))
	require.NoError(t, err)
	w.Close()

	buf := make([]byte, 16)
	n, err := r.Read(tk, buf)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(buf[:n]))

	n, err = r.Read(tk, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPipeWriteBrokenPipeAfterReaderClosed(t *testing.T) {
	k, _ := newTestKernel(t)
	r, w, err := k.NewPipe(16)
	require.NoError(t, err)
	tk, err := k.CreateTask("t", PriorityNormal, 256, func(*Task) {})
	require.NoError(t, err)

	r.Close()
	_, err = w.Write(tk, []byte("x"))
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindBrokenPipe, kind)
}

func TestPipeCloseIsIdempotent(t *testing.T) {
	k, _ := newTestKernel(t)
	r, w, err := k.NewPipe(16)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		w.Close()
		w.Close()
		r.Close()
		r.Close()
	})
}
