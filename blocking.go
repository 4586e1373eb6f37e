// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conq

import (
	"sync"

	"code.hybscloud.com/atomix"
)

// Blocking wrappers convert a nonblocking core into a blocking queue
// by parking callers on condition variables. The wrapper performs no
// ordering work of its own; the inner queue determines ordering.
//
// The fast path never touches the mutex: waiters register themselves
// in an atomic counter under the lock before parking, and peers only
// take the lock to signal when the counter is nonzero. Cancellation is
// the caller's responsibility, e.g. by enqueueing a sentinel element.

// BlockingUnbounded wraps an unbounded core. Enqueue always succeeds,
// so only the not-empty condition exists.
type BlockingUnbounded[T any] struct {
	inner    Unbounded[T]
	mu       sync.Mutex
	notEmpty *sync.Cond
	waiting  atomix.Int32
}

// NewBlockingUnbounded wraps inner with blocking dequeue semantics.
// The wrapper assumes exclusive use of inner.
func NewBlockingUnbounded[T any](inner Unbounded[T]) *BlockingUnbounded[T] {
	q := &BlockingUnbounded[T]{inner: inner}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue adds an element and wakes one parked consumer. Never fails.
func (q *BlockingUnbounded[T]) Enqueue(elem *T) {
	q.inner.MPEnqueue(elem)
	q.signalNotEmpty()
}

// TryDequeue removes and returns an element without parking; identical
// to the inner contract.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *BlockingUnbounded[T]) TryDequeue() (T, error) {
	return q.inner.MCDequeue()
}

// DequeueBlocking removes and returns an element, parking the caller
// until one is available.
func (q *BlockingUnbounded[T]) DequeueBlocking() T {
	if elem, err := q.inner.MCDequeue(); err == nil {
		return elem
	}
	q.mu.Lock()
	q.waiting.Add(1)
	for {
		elem, err := q.inner.MCDequeue()
		if err == nil {
			q.waiting.Add(-1)
			q.mu.Unlock()
			return elem
		}
		q.notEmpty.Wait()
	}
}

func (q *BlockingUnbounded[T]) signalNotEmpty() {
	if q.waiting.Load() > 0 {
		q.mu.Lock()
		q.notEmpty.Signal()
		q.mu.Unlock()
	}
}

// BlockingBounded wraps a bounded core with both not-empty and
// not-full conditions.
type BlockingBounded[T any] struct {
	inner            Bounded[T]
	mu               sync.Mutex
	notEmpty         *sync.Cond
	notFull          *sync.Cond
	waitingConsumers atomix.Int32
	waitingProducers atomix.Int32
}

// NewBlockingBounded wraps inner with blocking enqueue and dequeue
// semantics. The wrapper assumes exclusive use of inner.
func NewBlockingBounded[T any](inner Bounded[T]) *BlockingBounded[T] {
	q := &BlockingBounded[T]{inner: inner}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// TryEnqueue adds an element without parking; identical to the inner
// contract, additionally waking one parked consumer on success.
// Returns ErrWouldBlock if the queue is full.
func (q *BlockingBounded[T]) TryEnqueue(elem *T) error {
	if err := q.inner.MPEnqueue(elem); err != nil {
		return err
	}
	q.signalNotEmpty()
	return nil
}

// EnqueueBlocking adds an element, parking the caller until a slot is
// available.
func (q *BlockingBounded[T]) EnqueueBlocking(elem *T) {
	if q.inner.MPEnqueue(elem) == nil {
		q.signalNotEmpty()
		return
	}
	q.mu.Lock()
	q.waitingProducers.Add(1)
	for {
		if q.inner.MPEnqueue(elem) == nil {
			q.waitingProducers.Add(-1)
			q.mu.Unlock()
			q.signalNotEmpty()
			return
		}
		q.notFull.Wait()
	}
}

// TryDequeue removes and returns an element without parking; identical
// to the inner contract, additionally waking one parked producer on
// success.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *BlockingBounded[T]) TryDequeue() (T, error) {
	elem, err := q.inner.MCDequeue()
	if err != nil {
		return elem, err
	}
	q.signalNotFull()
	return elem, nil
}

// DequeueBlocking removes and returns an element, parking the caller
// until one is available.
func (q *BlockingBounded[T]) DequeueBlocking() T {
	if elem, err := q.inner.MCDequeue(); err == nil {
		q.signalNotFull()
		return elem
	}
	q.mu.Lock()
	q.waitingConsumers.Add(1)
	for {
		elem, err := q.inner.MCDequeue()
		if err == nil {
			q.waitingConsumers.Add(-1)
			q.mu.Unlock()
			q.signalNotFull()
			return elem
		}
		q.notEmpty.Wait()
	}
}

// Cap returns the inner queue capacity.
func (q *BlockingBounded[T]) Cap() int {
	return q.inner.Cap()
}

func (q *BlockingBounded[T]) signalNotEmpty() {
	if q.waitingConsumers.Load() > 0 {
		q.mu.Lock()
		q.notEmpty.Signal()
		q.mu.Unlock()
	}
}

func (q *BlockingBounded[T]) signalNotFull() {
	if q.waitingProducers.Load() > 0 {
		q.mu.Lock()
		q.notFull.Signal()
		q.mu.Unlock()
	}
}
