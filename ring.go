// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Ring is a CAS-based bounded FIFO queue over a power-of-two ring
// buffer (Dmitry Vyukov's bounded MPMC algorithm).
//
// Per-slot sequence numbers provide full ABA safety: a slot is
// enqueueable when its sequence equals the producer cursor, and
// dequeueable when it equals the consumer cursor plus one. Cursor
// advances may be relaxed; the sequence publication carries the
// acquire/release pairing, so a dequeue that observes a published
// sequence observes the element.
//
// The sp/sc operations skip the cursor CAS under the exclusive-caller
// contract; the mp/mc operations are always safe.
//
// Memory: n slots (64+ bytes per slot), entirely lock-free.
type Ring[T any] struct {
	_        pad
	tail     atomix.Uint64 // Producer cursor
	_        pad
	head     atomix.Uint64 // Consumer cursor
	_        pad
	buffer   []ringSlot[T]
	mask     uint64
	capacity uint64
}

type ringSlot[T any] struct {
	seq  atomix.Uint64
	data T
	_    padShort // Pad to cache line
}

// NewRing creates a bounded ring queue with exactly the given capacity.
// Returns ErrRingCapacity unless capacity is a power of two >= 2.
func NewRing[T any](capacity int) (*Ring[T], error) {
	if capacity < 2 || !isPow2(capacity) {
		return nil, ErrRingCapacity
	}

	n := uint64(capacity)
	q := &Ring[T]{
		buffer:   make([]ringSlot[T], n),
		mask:     n - 1,
		capacity: n,
	}

	for i := uint64(0); i < n; i++ {
		q.buffer[i].seq.StoreRelaxed(i)
	}

	return q, nil
}

// SPEnqueue adds an element to the queue (exclusive producer).
// Returns ErrWouldBlock if the queue is full.
func (q *Ring[T]) SPEnqueue(elem *T) error {
	tail := q.tail.LoadRelaxed()
	slot := &q.buffer[tail&q.mask]
	seq := slot.seq.LoadAcquire()

	if int64(seq)-int64(tail) != 0 {
		return ErrWouldBlock
	}
	q.tail.StoreRelaxed(tail + 1)
	slot.data = *elem
	slot.seq.StoreRelease(tail + 1)
	return nil
}

// MPEnqueue adds an element to the queue.
// Returns ErrWouldBlock if the queue is full.
func (q *Ring[T]) MPEnqueue(elem *T) error {
	sw := spin.Wait{}
	for {
		tail := q.tail.LoadAcquire()
		slot := &q.buffer[tail&q.mask]
		seq := slot.seq.LoadAcquire()
		diff := int64(seq) - int64(tail)

		if diff == 0 {
			if q.tail.CompareAndSwapAcqRel(tail, tail+1) {
				slot.data = *elem
				slot.seq.StoreRelease(tail + 1)
				return nil
			}
		} else if diff < 0 {
			return ErrWouldBlock
		}
		sw.Once()
	}
}

// SCDequeue removes and returns an element (exclusive consumer).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *Ring[T]) SCDequeue() (T, error) {
	head := q.head.LoadRelaxed()
	slot := &q.buffer[head&q.mask]
	seq := slot.seq.LoadAcquire()

	if int64(seq)-int64(head+1) != 0 {
		var zero T
		return zero, ErrWouldBlock
	}
	q.head.StoreRelaxed(head + 1)
	elem := slot.data
	var zero T
	slot.data = zero
	slot.seq.StoreRelease(head + q.capacity)
	return elem, nil
}

// MCDequeue removes and returns an element from the queue.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *Ring[T]) MCDequeue() (T, error) {
	sw := spin.Wait{}
	for {
		head := q.head.LoadAcquire()
		slot := &q.buffer[head&q.mask]
		seq := slot.seq.LoadAcquire()
		diff := int64(seq) - int64(head+1)

		if diff == 0 {
			if q.head.CompareAndSwapAcqRel(head, head+1) {
				elem := slot.data
				var zero T
				slot.data = zero
				slot.seq.StoreRelease(head + q.capacity)
				return elem, nil
			}
		} else if diff < 0 {
			var zero T
			return zero, ErrWouldBlock
		}
		sw.Once()
	}
}

// MCDequeueUncontended attempts a single slot claim.
// Returns ErrWouldBlock if the queue is empty, ErrContended if a peer
// consumer won the slot or is mid-publication.
func (q *Ring[T]) MCDequeueUncontended() (T, error) {
	head := q.head.LoadAcquire()
	slot := &q.buffer[head&q.mask]
	seq := slot.seq.LoadAcquire()
	diff := int64(seq) - int64(head+1)

	var zero T
	if diff < 0 {
		return zero, ErrWouldBlock
	}
	if diff == 0 && q.head.CompareAndSwapAcqRel(head, head+1) {
		elem := slot.data
		slot.data = zero
		slot.seq.StoreRelease(head + q.capacity)
		return elem, nil
	}
	return zero, ErrContended
}

// Cap returns the queue capacity.
func (q *Ring[T]) Cap() int {
	return int(q.capacity)
}
