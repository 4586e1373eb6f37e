// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conq

import (
	"sync"

	"code.hybscloud.com/conq/internal/tlos"
)

// Sharded queues split one logical queue across K padded subqueues to
// reduce contention.
//
// Producer affinity: each producing goroutine is assigned one subqueue
// index on first enqueue, drawn from a shared pool, and keeps it until
// the goroutine detaches (DetachGoroutine) or the queue is closed.
// All of that goroutine's elements land in the same subqueue, so
// per-producer FIFO order survives sharding; there is no total order
// across subqueues.
//
// Consumer hitlists: each consuming goroutine keeps a per-queue
// permutation of the subqueue indices, walked in order on dequeue.
// A successful dequeue rotates the hit index to the front, so every
// consumer adapts toward the subqueues that recently had elements.
// The first pass over the hitlist uses uncontended dequeues so that
// consumers spread out instead of serializing on one subqueue's tail
// token; a second pass uses the contended dequeue before reporting
// empty.

// paddedUnbounded keeps neighboring subqueue headers off one cache
// line.
type paddedUnbounded[T any] struct {
	q Unbounded[T]
	_ pad
}

// paddedBounded keeps neighboring subqueue headers off one cache line.
type paddedBounded[T any] struct {
	q Bounded[T]
	_ pad
}

// shardState carries the producer-affinity index pool and the TLOS
// stores shared by both sharded queue variants.
type shardState struct {
	hits   *tlos.Store[[]int]
	assign *tlos.Store[int]

	mu      sync.Mutex
	nextIdx int
	free    []int
}

func newShardState(subqueues int) *shardState {
	s := &shardState{}
	s.hits = tlos.NewStore(func() []int {
		hl := make([]int, subqueues)
		for i := range hl {
			hl[i] = i
		}
		return hl
	}, nil)
	s.assign = tlos.NewStore(func() int {
		s.mu.Lock()
		defer s.mu.Unlock()
		if n := len(s.free); n > 0 {
			idx := s.free[n-1]
			s.free = s.free[:n-1]
			return idx
		}
		idx := s.nextIdx % subqueues
		s.nextIdx++
		return idx
	}, func(idx int) {
		s.mu.Lock()
		s.free = append(s.free, idx)
		s.mu.Unlock()
	})
	return s
}

func (s *shardState) close() {
	s.assign.Close()
	s.hits.Close()
}

// promote rotates the hit at position i to the front of the hitlist,
// shifting the entries before it one position back.
func promote(hl []int, i int) {
	if i == 0 {
		return
	}
	hit := hl[i]
	copy(hl[1:i+1], hl[:i])
	hl[0] = hit
}

// MultiUnbounded is a sharded unbounded queue: K padded subqueues with
// producer affinity and consumer hitlists.
type MultiUnbounded[T any] struct {
	qs []paddedUnbounded[T]
	st *shardState
}

// NewMultiUnbounded creates a sharded queue over subqueues inner
// queues produced by the factory. Panics if subqueues < 1.
func NewMultiUnbounded[T any](subqueues int, inner func() Unbounded[T]) *MultiUnbounded[T] {
	if subqueues < 1 {
		panic("conq: subqueues must be >= 1")
	}
	q := &MultiUnbounded[T]{qs: make([]paddedUnbounded[T], subqueues)}
	for i := range q.qs {
		q.qs[i].q = inner()
	}
	q.st = newShardState(subqueues)
	return q
}

// NewMultiList creates a sharded queue over single-element-node list
// subqueues.
func NewMultiList[T any](subqueues int) *MultiUnbounded[T] {
	return NewMultiUnbounded(subqueues, func() Unbounded[T] { return NewList[T]() })
}

// NewMultiBlockList creates a sharded queue over block-node list
// subqueues.
func NewMultiBlockList[T any](subqueues int) *MultiUnbounded[T] {
	return NewMultiUnbounded(subqueues, func() Unbounded[T] { return NewBlockList[T]() })
}

// SPEnqueue adds an element via the caller's assigned subqueue
// (exclusive producer). Never fails.
func (q *MultiUnbounded[T]) SPEnqueue(elem *T) error {
	return q.qs[*q.st.assign.Get()].q.SPEnqueue(elem)
}

// MPEnqueue adds an element via the caller's assigned subqueue.
// Never fails.
func (q *MultiUnbounded[T]) MPEnqueue(elem *T) error {
	return q.qs[*q.st.assign.Get()].q.MPEnqueue(elem)
}

// SCDequeue removes and returns an element (exclusive consumer),
// walking the caller's hitlist.
// Returns (zero-value, ErrWouldBlock) if every subqueue is empty.
func (q *MultiUnbounded[T]) SCDequeue() (T, error) {
	hl := *q.st.hits.Get()
	for i := range hl {
		if elem, err := q.qs[hl[i]].q.SCDequeue(); err == nil {
			promote(hl, i)
			return elem, nil
		}
	}
	var zero T
	return zero, ErrWouldBlock
}

// MCDequeue removes and returns an element, walking the caller's
// hitlist with uncontended probes first and contended dequeues second.
// Returns (zero-value, ErrWouldBlock) only when every subqueue
// reported empty under the contended probe.
func (q *MultiUnbounded[T]) MCDequeue() (T, error) {
	hl := *q.st.hits.Get()
	for i := range hl {
		if elem, err := q.qs[hl[i]].q.MCDequeueUncontended(); err == nil {
			promote(hl, i)
			return elem, nil
		}
	}
	for i := range hl {
		if elem, err := q.qs[hl[i]].q.MCDequeue(); err == nil {
			promote(hl, i)
			return elem, nil
		}
	}
	var zero T
	return zero, ErrWouldBlock
}

// MCDequeueUncontended walks the caller's hitlist with uncontended
// probes only.
// Returns ErrContended if any subqueue was contended, ErrWouldBlock if
// all were empty.
func (q *MultiUnbounded[T]) MCDequeueUncontended() (T, error) {
	hl := *q.st.hits.Get()
	contended := false
	for i := range hl {
		elem, err := q.qs[hl[i]].q.MCDequeueUncontended()
		if err == nil {
			promote(hl, i)
			return elem, nil
		}
		if IsContended(err) {
			contended = true
		}
	}
	var zero T
	if contended {
		return zero, ErrContended
	}
	return zero, ErrWouldBlock
}

// Close reclaims the queue's per-goroutine state: assigned producer
// indices return to the pool and hitlists are released. Callers must
// have stopped using the queue.
func (q *MultiUnbounded[T]) Close() {
	q.st.close()
}

// MultiBounded is a sharded bounded queue: K padded fixed-capacity
// subqueues with producer affinity and consumer hitlists.
//
// An enqueue fails with ErrWouldBlock when the caller's assigned
// subqueue is full, even if other subqueues have room; spilling into
// a peer subqueue would break per-producer ordering.
type MultiBounded[T any] struct {
	qs  []paddedBounded[T]
	st  *shardState
	cap int
}

// NewMultiBounded creates a sharded queue over subqueues inner queues
// of the given capacity each. Panics if subqueues < 1.
func NewMultiBounded[T any](capacity, subqueues int, inner func(capacity int) Bounded[T]) *MultiBounded[T] {
	if subqueues < 1 {
		panic("conq: subqueues must be >= 1")
	}
	q := &MultiBounded[T]{qs: make([]paddedBounded[T], subqueues)}
	total := 0
	for i := range q.qs {
		q.qs[i].q = inner(capacity)
		total += q.qs[i].q.Cap()
	}
	q.cap = total
	q.st = newShardState(subqueues)
	return q
}

// NewMultiRing creates a sharded queue over ring subqueues of the
// given capacity each. Returns ErrRingCapacity unless capacity is a
// power of two >= 2.
func NewMultiRing[T any](capacity, subqueues int) (*MultiBounded[T], error) {
	if capacity < 2 || !isPow2(capacity) {
		return nil, ErrRingCapacity
	}
	return NewMultiBounded(capacity, subqueues, func(n int) Bounded[T] {
		r, _ := NewRing[T](n)
		return r
	}), nil
}

// NewMultiBoundedList creates a sharded queue over bounded list
// subqueues of the given capacity each.
func NewMultiBoundedList[T any](capacity, subqueues int) *MultiBounded[T] {
	return NewMultiBounded(capacity, subqueues, func(n int) Bounded[T] {
		return NewBoundedList[T](n)
	})
}

// SPEnqueue adds an element via the caller's assigned subqueue
// (exclusive producer).
// Returns ErrWouldBlock if that subqueue is full.
func (q *MultiBounded[T]) SPEnqueue(elem *T) error {
	return q.qs[*q.st.assign.Get()].q.SPEnqueue(elem)
}

// MPEnqueue adds an element via the caller's assigned subqueue.
// Returns ErrWouldBlock if that subqueue is full.
func (q *MultiBounded[T]) MPEnqueue(elem *T) error {
	return q.qs[*q.st.assign.Get()].q.MPEnqueue(elem)
}

// SCDequeue removes and returns an element (exclusive consumer),
// walking the caller's hitlist.
// Returns (zero-value, ErrWouldBlock) if every subqueue is empty.
func (q *MultiBounded[T]) SCDequeue() (T, error) {
	hl := *q.st.hits.Get()
	for i := range hl {
		if elem, err := q.qs[hl[i]].q.SCDequeue(); err == nil {
			promote(hl, i)
			return elem, nil
		}
	}
	var zero T
	return zero, ErrWouldBlock
}

// MCDequeue removes and returns an element, walking the caller's
// hitlist with uncontended probes first and contended dequeues second.
// Returns (zero-value, ErrWouldBlock) only when every subqueue
// reported empty under the contended probe.
func (q *MultiBounded[T]) MCDequeue() (T, error) {
	hl := *q.st.hits.Get()
	for i := range hl {
		if elem, err := q.qs[hl[i]].q.MCDequeueUncontended(); err == nil {
			promote(hl, i)
			return elem, nil
		}
	}
	for i := range hl {
		if elem, err := q.qs[hl[i]].q.MCDequeue(); err == nil {
			promote(hl, i)
			return elem, nil
		}
	}
	var zero T
	return zero, ErrWouldBlock
}

// MCDequeueUncontended walks the caller's hitlist with uncontended
// probes only.
// Returns ErrContended if any subqueue was contended, ErrWouldBlock if
// all were empty.
func (q *MultiBounded[T]) MCDequeueUncontended() (T, error) {
	hl := *q.st.hits.Get()
	contended := false
	for i := range hl {
		elem, err := q.qs[hl[i]].q.MCDequeueUncontended()
		if err == nil {
			promote(hl, i)
			return elem, nil
		}
		if IsContended(err) {
			contended = true
		}
	}
	var zero T
	if contended {
		return zero, ErrContended
	}
	return zero, ErrWouldBlock
}

// Cap returns the aggregate capacity across all subqueues. A producer
// observes ErrWouldBlock when its own subqueue fills, which can happen
// well below the aggregate.
func (q *MultiBounded[T]) Cap() int {
	return q.cap
}

// Close reclaims the queue's per-goroutine state: assigned producer
// indices return to the pool and hitlists are released. Callers must
// have stopped using the queue.
func (q *MultiBounded[T]) Close() {
	q.st.close()
}
