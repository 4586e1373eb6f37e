// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conq

// Cache is an unbounded queue that stores elements in a small ring and
// overflows into a list queue.
//
// Producers try the ring first and fall through to the list on full;
// consumers drain the ring before probing the list. Ordering between
// the ring and the list is NOT preserved: under bursty load an element
// that overflowed into the list can be dequeued after elements
// enqueued later into the ring. Callers that need FIFO ordering must
// not use Cache; it is a best-effort latency optimization for bursty
// workloads where most traffic stays inside the ring.
type Cache[T any] struct {
	ring *Ring[T]
	list *List[T]
}

// NewCache creates a cache queue with a ring front of the given
// capacity. Returns ErrRingCapacity unless cacheSize is a power of
// two >= 2.
func NewCache[T any](cacheSize int) (*Cache[T], error) {
	ring, err := NewRing[T](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Cache[T]{ring: ring, list: NewList[T]()}, nil
}

// SPEnqueue adds an element (exclusive producer). Never fails.
func (q *Cache[T]) SPEnqueue(elem *T) error {
	if q.ring.SPEnqueue(elem) == nil {
		return nil
	}
	return q.list.SPEnqueue(elem)
}

// MPEnqueue adds an element. Never fails.
func (q *Cache[T]) MPEnqueue(elem *T) error {
	if q.ring.MPEnqueue(elem) == nil {
		return nil
	}
	return q.list.MPEnqueue(elem)
}

// SCDequeue removes and returns an element (exclusive consumer).
// Returns (zero-value, ErrWouldBlock) if both tiers are empty.
func (q *Cache[T]) SCDequeue() (T, error) {
	if elem, err := q.ring.SCDequeue(); err == nil {
		return elem, nil
	}
	return q.list.SCDequeue()
}

// MCDequeue removes and returns an element.
// Returns (zero-value, ErrWouldBlock) if both tiers are empty.
func (q *Cache[T]) MCDequeue() (T, error) {
	if elem, err := q.ring.MCDequeue(); err == nil {
		return elem, nil
	}
	return q.list.MCDequeue()
}

// MCDequeueUncontended removes and returns an element without waiting
// on either tier's consumer serialization.
// Returns ErrContended if a tier was contended and neither yielded an
// element, ErrWouldBlock if both tiers are empty.
func (q *Cache[T]) MCDequeueUncontended() (T, error) {
	elem, rerr := q.ring.MCDequeueUncontended()
	if rerr == nil {
		return elem, nil
	}
	elem, lerr := q.list.MCDequeueUncontended()
	if lerr == nil {
		return elem, nil
	}
	if IsContended(rerr) || IsContended(lerr) {
		var zero T
		return zero, ErrContended
	}
	var zero T
	return zero, ErrWouldBlock
}
