// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtos

// WaitForever passed as a queue/pipe timeout blocks with no bound
// (spec.md §4.6 "~0 means forever").
const WaitForever uint64 = ^uint64(0)

type queuedMessage struct {
	typ  int
	data []byte
}

// MessageQueue is a typed, bounded IPC channel identified by a numeric
// key (spec.md §4.6). Its guard is a kernel Mutex, not a raw sync.Mutex,
// so it can pair with Cond for not_full/not_empty the same way any
// application-level condition variable would.
type MessageQueue struct {
	k       *Kernel
	id      int64
	key     int64
	maxSize int

	guard    *Mutex
	notFull  *Cond
	notEmpty *Cond
	buf      *ring[queuedMessage]
}

// NewMessageQueue registers a queue under key, holding at most maxMsgs
// messages of at most maxSize bytes each. Fails with AlreadyExists if
// key is already in use.
func (k *Kernel) NewMessageQueue(key int64, maxMsgs, maxSize int) (*MessageQueue, error) {
	if maxMsgs <= 0 || maxSize <= 0 {
		return nil, newErr("NewMessageQueue", KindInvalidArgument, "maxMsgs and maxSize must be positive")
	}
	if _, _, ok := k.queues.GetByKey(key); ok {
		return nil, newErr("NewMessageQueue", KindAlreadyExists, "queue key already in use")
	}

	guard, err := k.NewMutex("queue.guard")
	if err != nil {
		return nil, err
	}
	notFull, err := k.NewCond("queue.notFull")
	if err != nil {
		return nil, err
	}
	notEmpty, err := k.NewCond("queue.notEmpty")
	if err != nil {
		return nil, err
	}

	q := &MessageQueue{
		k: k, key: key, maxSize: maxSize,
		guard: guard, notFull: notFull, notEmpty: notEmpty,
		buf: newRing[queuedMessage](maxMsgs),
	}
	id, err := k.queues.InsertKeyed(key, q)
	if err != nil {
		return nil, err
	}
	q.id = id
	return q, nil
}

// Send blocks on not_full while the ring is full, copies msg into the
// next slot, and signals not_empty (spec.md §4.6 "send").
func (q *MessageQueue) Send(t *Task, typ int, msg []byte, timeout uint64) error {
	if len(msg) > q.maxSize {
		return newErr("Send", KindInvalidArgument, "message exceeds max_size")
	}
	cp := append([]byte(nil), msg...)

	q.guard.Lock(t)
	for q.buf.Full() {
		if timeout == 0 {
			q.guard.Unlock(t)
			return newErr("Send", KindWouldBlock, "queue full")
		}
		res := waitOn(q.notFull, t, q.guard, timeout)
		if res != WaitCompleted {
			q.guard.Unlock(t)
			return waitResultErr("Send", res)
		}
	}
	q.buf.Push(queuedMessage{typ: typ, data: cp})
	q.guard.Unlock(t)
	q.notEmpty.Signal()
	q.k.metrics.MessagesSent.Add(1)
	return nil
}

// Receive blocks on not_empty while no matching message is queued. typ
// == 0 takes the head regardless of type; otherwise the ring is scanned
// for the first message with a matching type, removed in place with the
// remainder compacted forward (spec.md §4.6 "receive").
func (q *MessageQueue) Receive(t *Task, typ int, timeout uint64) (int, []byte, error) {
	q.guard.Lock(t)
	for {
		if idx, ok := q.findMatch(typ); ok {
			m, _ := q.buf.RemoveAt(idx)
			q.guard.Unlock(t)
			q.notFull.Signal()
			q.k.metrics.MessagesReceived.Add(1)
			return m.typ, m.data, nil
		}
		if timeout == 0 {
			q.guard.Unlock(t)
			return 0, nil, newErr("Receive", KindWouldBlock, "queue empty")
		}
		res := waitOn(q.notEmpty, t, q.guard, timeout)
		if res != WaitCompleted {
			q.guard.Unlock(t)
			return 0, nil, waitResultErr("Receive", res)
		}
	}
}

func (q *MessageQueue) findMatch(typ int) (int, bool) {
	if typ == 0 {
		if q.buf.Empty() {
			return 0, false
		}
		return 0, true
	}
	for i := 0; i < q.buf.Len(); i++ {
		m, _ := q.buf.At(i)
		if m.typ == typ {
			return i, true
		}
	}
	return 0, false
}

// Destroy unregisters q. Its internal mutex/condvars refuse to destroy
// while any task is blocked on them.
func (q *MessageQueue) Destroy() error {
	if err := q.notFull.Destroy(); err != nil {
		return err
	}
	if err := q.notEmpty.Destroy(); err != nil {
		return err
	}
	if err := q.guard.Destroy(); err != nil {
		return err
	}
	q.k.queues.Remove(q.id)
	return nil
}

// waitOn blocks on c, bounded by timeout ticks unless timeout is
// WaitForever, in which case it waits indefinitely.
func waitOn(c *Cond, t *Task, m *Mutex, timeout uint64) WaitResult {
	if timeout == WaitForever {
		return c.Wait(t, m)
	}
	return c.TimedWait(t, m, timeout)
}

func waitResultErr(op string, res WaitResult) error {
	switch res {
	case WaitTimedOut:
		return newErr(op, KindTimedOut, "timed out")
	case WaitCanceled:
		return newErr(op, KindCanceled, "canceled")
	default:
		return nil
	}
}
