// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conq

import (
	"sync"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// listAllocNodes is the number of nodes carved out of one allocation
// when the freelist runs dry.
const listAllocNodes = 8

// listNode carries a single element. The node lives in exactly one of
// the main list, the freelist, or a transient exclusive hold at any
// instant; next transitions 0 -> non-0 once per residency.
type listNode[T any] struct {
	data T
	next atomix.Uintptr
}

func listRef[T any](n *listNode[T]) uintptr {
	return uintptr(unsafe.Pointer(n))
}

func listAt[T any](p uintptr) *listNode[T] {
	return (*listNode[T])(unsafe.Pointer(p))
}

// swapPtr emulates an exchange on an atomix.Uintptr.
func swapPtr(p *atomix.Uintptr, v uintptr) uintptr {
	for {
		old := p.LoadAcquire()
		if p.CompareAndSwapAcqRel(old, v) {
			return old
		}
	}
}

// List is an unbounded FIFO queue over a singly-linked list of
// single-element nodes.
//
// Dequeued nodes are retired to a freelist and reused by later
// enqueues; when the freelist drains, a block of listAllocNodes nodes
// is allocated and chained in. Nodes are never freed before the queue
// itself becomes unreachable, which sidesteps the ABA/use-after-free
// hazard of lock-free linked queues without hazard pointers or epochs.
//
// Both lists use a resident sentinel: the tail node's payload is dead
// and the element to dequeue lives in tail.next.
//
// Consumers serialize on a tail token (the tail pointer exchanged with
// zero); producers never contend with consumers for it. List preserves
// per-producer FIFO order unconditionally.
type List[T any] struct {
	_        pad
	head     atomix.Uintptr // main list producer end
	freeTail atomix.Uintptr // freelist acquisition end
	_        pad
	tail     atomix.Uintptr // main list consumer end, doubles as the tail token
	freeHead atomix.Uintptr // freelist retirement end
	_        pad
	storeMu  sync.Mutex
	blocks   [][]listNode[T]
}

// NewList creates an empty unbounded list queue.
func NewList[T any]() *List[T] {
	q := &List[T]{}
	vec := make([]listNode[T], 2)
	q.blocks = append(q.blocks, vec)
	q.head.StoreRelaxed(listRef(&vec[0]))
	q.tail.StoreRelaxed(listRef(&vec[0]))
	q.freeHead.StoreRelaxed(listRef(&vec[1]))
	q.freeTail.StoreRelaxed(listRef(&vec[1]))
	return q
}

// SPEnqueue adds an element to the queue (exclusive producer).
// Never fails.
func (q *List[T]) SPEnqueue(elem *T) error {
	node := q.acquire()
	node.data = *elem
	node.next.StoreRelaxed(0)
	prev := listAt[T](q.head.LoadRelaxed())
	prev.next.StoreRelease(listRef(node))
	q.head.StoreRelaxed(listRef(node))
	return nil
}

// MPEnqueue adds an element to the queue. Never fails.
func (q *List[T]) MPEnqueue(elem *T) error {
	node := q.acquire()
	node.data = *elem
	node.next.StoreRelaxed(0)
	prev := swapPtr(&q.head, listRef(node))
	listAt[T](prev).next.StoreRelease(listRef(node))
	return nil
}

// SCDequeue removes and returns an element (exclusive consumer).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *List[T]) SCDequeue() (T, error) {
	tail := listAt[T](q.tail.LoadRelaxed())
	return q.dequeueFrom(tail, false)
}

// MCDequeue removes and returns an element, spinning while another
// consumer holds the tail token.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *List[T]) MCDequeue() (T, error) {
	sw := spin.Wait{}
	for {
		p := swapPtr(&q.tail, 0)
		if p != 0 {
			return q.dequeueFrom(listAt[T](p), true)
		}
		sw.Once()
	}
}

// MCDequeueUncontended removes and returns an element without waiting
// for the tail token.
// Returns ErrContended if another consumer holds the token and
// ErrWouldBlock if the queue is empty.
func (q *List[T]) MCDequeueUncontended() (T, error) {
	p := swapPtr(&q.tail, 0)
	if p == 0 {
		var zero T
		return zero, ErrContended
	}
	return q.dequeueFrom(listAt[T](p), true)
}

// dequeueFrom consumes tail.next and republishes the tail pointer.
// token indicates the caller holds the tail token and must republish
// even on the empty path.
func (q *List[T]) dequeueFrom(tail *listNode[T], token bool) (T, error) {
	next := tail.next.LoadAcquire()
	if next == 0 {
		if token {
			q.tail.StoreRelease(listRef(tail))
		}
		var zero T
		return zero, ErrWouldBlock
	}
	node := listAt[T](next)
	elem := node.data
	var zero T
	node.data = zero
	q.tail.StoreRelease(next)
	q.freePut(tail)
	return elem, nil
}

// acquire returns a node exclusively held by the caller, recycling from
// the freelist before allocating.
func (q *List[T]) acquire() *listNode[T] {
	if node := q.freeGet(); node != nil {
		return node
	}
	return q.allocate()
}

// freeGet claims the freelist tail sentinel and advances the tail to
// its successor. The sentinel's payload is dead, so it is reusable as a
// fresh node. Returns nil when only the sentinel remains.
func (q *List[T]) freeGet() *listNode[T] {
	node := listAt[T](q.freeTail.LoadRelaxed())
	for {
		next := node.next.LoadAcquire()
		if next == 0 {
			return nil
		}
		if q.freeTail.CompareAndSwapAcqRel(listRef(node), next) {
			return node
		}
		node = listAt[T](q.freeTail.LoadRelaxed())
	}
}

// freePut retires a node onto the freelist.
func (q *List[T]) freePut(node *listNode[T]) {
	node.next.StoreRelaxed(0)
	prev := swapPtr(&q.freeHead, listRef(node))
	listAt[T](prev).next.StoreRelease(listRef(node))
}

// allocate carves a fresh block: the first node goes to the caller, the
// remainder is chained onto the freelist in one segment. The block is
// retained in blocks; the lists hold uintptr borrows the garbage
// collector cannot see.
func (q *List[T]) allocate() *listNode[T] {
	vec := make([]listNode[T], listAllocNodes)
	for i := 2; i < listAllocNodes; i++ {
		vec[i].next.StoreRelaxed(listRef(&vec[i-1]))
	}

	q.storeMu.Lock()
	q.blocks = append(q.blocks, vec)
	q.storeMu.Unlock()

	prev := swapPtr(&q.freeHead, listRef(&vec[1]))
	listAt[T](prev).next.StoreRelease(listRef(&vec[listAllocNodes-1]))
	return &vec[0]
}
