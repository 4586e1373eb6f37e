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

const (
	// blockCap is the number of elements carried by one block node.
	blockCap = 1024
	// blockAllocNodes is the number of block nodes carved out of one
	// allocation when the freelist runs dry.
	blockAllocNodes = 8
)

// blockNode carries up to blockCap elements. wdx is the write index
// (next free element slot), rdx the read index; the node is drained
// when rdx == wdx and full when wdx == blockCap.
//
// Both indices are plain ints: they are mutated only by the goroutine
// that holds the node exclusively, or that holds the token of the list
// the node currently resides in. Cross-goroutine visibility rides on
// the release/acquire publication of the next links and the tokens.
type blockNode[T any] struct {
	data [blockCap]T
	next atomix.Uintptr
	wdx  int
	rdx  int
}

func blockRef[T any](n *blockNode[T]) uintptr {
	return uintptr(unsafe.Pointer(n))
}

func blockAt[T any](p uintptr) *blockNode[T] {
	return (*blockNode[T])(unsafe.Pointer(p))
}

// BlockList is an unbounded FIFO queue over a singly-linked list of
// block nodes, each holding up to blockCap elements.
//
// Producers fill block nodes taken from the in-progress stack (to
// continue a partially filled node), then the freelist, then a fresh
// allocation. A node is promoted onto the main list only when full;
// until then it is parked on the in-progress stack, where consumers
// steal from it once the main list drains.
//
// The in-progress stack hands producers the most recently parked
// node, so a lone producer keeps filling one node until it is full
// and promoted: per-producer FIFO order is strict under a single
// producer. Stealing consumers take elements from the oldest parked
// node, in insertion order. When several producers trade partial
// nodes back and forth, order across blocks is best-effort; use List
// or Ring when strict per-producer ordering matters under many
// producers.
type BlockList[T any] struct {
	_        pad
	head     atomix.Uintptr // main list producer end
	freeTail atomix.Uintptr // freelist acquisition end
	_        pad
	tail     atomix.Uintptr // main list consumer end, doubles as the tail token
	freeHead atomix.Uintptr // freelist retirement end
	_        pad
	ipTop    atomix.Uintptr // in-progress stack top, doubles as its token
	_        pad
	ipBottom uintptr // resident sentinel terminating the in-progress stack
	storeMu  sync.Mutex
	blocks   [][]blockNode[T]
}

// NewBlockList creates an empty unbounded block-list queue.
func NewBlockList[T any]() *BlockList[T] {
	q := &BlockList[T]{}
	vec := make([]blockNode[T], 3)
	q.blocks = append(q.blocks, vec)
	q.head.StoreRelaxed(blockRef(&vec[0]))
	q.tail.StoreRelaxed(blockRef(&vec[0]))
	q.freeHead.StoreRelaxed(blockRef(&vec[1]))
	q.freeTail.StoreRelaxed(blockRef(&vec[1]))
	q.ipBottom = blockRef(&vec[2])
	q.ipTop.StoreRelaxed(q.ipBottom)
	return q
}

// SPEnqueue adds an element to the queue (exclusive producer).
// Never fails.
func (q *BlockList[T]) SPEnqueue(elem *T) error {
	node := q.fill(elem)
	if node == nil {
		return nil
	}
	node.next.StoreRelaxed(0)
	prev := blockAt[T](q.head.LoadRelaxed())
	prev.next.StoreRelease(blockRef(node))
	q.head.StoreRelaxed(blockRef(node))
	return nil
}

// MPEnqueue adds an element to the queue. Never fails.
func (q *BlockList[T]) MPEnqueue(elem *T) error {
	node := q.fill(elem)
	if node == nil {
		return nil
	}
	node.next.StoreRelaxed(0)
	prev := swapPtr(&q.head, blockRef(node))
	blockAt[T](prev).next.StoreRelease(blockRef(node))
	return nil
}

// fill stores elem into an exclusively held block node. A node that
// became full is returned for promotion onto the main list; a node
// with room left is parked on the in-progress stack and nil is
// returned.
func (q *BlockList[T]) fill(elem *T) *blockNode[T] {
	node := q.acquire()
	node.data[node.wdx] = *elem
	node.wdx++
	if node.wdx != blockCap {
		q.ipPut(node)
		return nil
	}
	return node
}

// SCDequeue removes and returns an element (exclusive consumer).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *BlockList[T]) SCDequeue() (T, error) {
	tail := blockAt[T](q.tail.LoadRelaxed())
	return q.dequeueCommon(tail)
}

// MCDequeue removes and returns an element, spinning while another
// consumer holds the tail token.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *BlockList[T]) MCDequeue() (T, error) {
	sw := spin.Wait{}
	for {
		p := swapPtr(&q.tail, 0)
		if p != 0 {
			return q.dequeueCommon(blockAt[T](p))
		}
		sw.Once()
	}
}

// MCDequeueUncontended removes and returns an element without waiting
// for the tail token.
// Returns ErrContended if another consumer holds the token and
// ErrWouldBlock if the queue is empty.
func (q *BlockList[T]) MCDequeueUncontended() (T, error) {
	p := swapPtr(&q.tail, 0)
	if p == 0 {
		var zero T
		return zero, ErrContended
	}
	return q.dequeueCommon(blockAt[T](p))
}

// dequeueCommon consumes one element starting at the main-list tail,
// advancing over drained nodes. The caller owns the tail token (or is
// the exclusive consumer); the tail pointer is republished on every
// path.
func (q *BlockList[T]) dequeueCommon(tail *blockNode[T]) (T, error) {
	for {
		if tail.rdx != tail.wdx {
			elem := tail.data[tail.rdx]
			var zero T
			tail.data[tail.rdx] = zero
			tail.rdx++
			if tail.rdx == tail.wdx {
				next := tail.next.LoadAcquire()
				if next != 0 {
					q.tail.StoreRelease(next)
					q.freePut(tail)
					return elem, nil
				}
			}
			q.tail.StoreRelease(blockRef(tail))
			return elem, nil
		}

		next := tail.next.LoadAcquire()
		if next == 0 {
			q.tail.StoreRelease(blockRef(tail))
			return q.stealInProgress()
		}
		q.freePut(tail)
		tail = blockAt[T](next)
	}
}

// stealInProgress consumes one element from the oldest parked node
// once the main list has drained. The caller walks the stack under
// its token; a node drained by the steal is unlinked and recycled.
func (q *BlockList[T]) stealInProgress() (T, error) {
	top := q.ipToken()
	if blockRef(top) == q.ipBottom {
		q.ipTop.StoreRelease(q.ipBottom)
		var zero T
		return zero, ErrWouldBlock
	}

	// Walk down to the oldest node, remembering its successor so a
	// drained node can be unlinked.
	var newer *blockNode[T]
	oldest := top
	for {
		next := oldest.next.LoadAcquire()
		if next == q.ipBottom {
			break
		}
		newer = oldest
		oldest = blockAt[T](next)
	}

	elem := oldest.data[oldest.rdx]
	var zero T
	oldest.data[oldest.rdx] = zero
	oldest.rdx++
	if oldest.rdx == oldest.wdx {
		if newer != nil {
			newer.next.StoreRelaxed(q.ipBottom)
			q.ipTop.StoreRelease(blockRef(top))
		} else {
			q.ipTop.StoreRelease(q.ipBottom)
		}
		q.freePut(oldest)
		return elem, nil
	}
	q.ipTop.StoreRelease(blockRef(top))
	return elem, nil
}

// acquire returns a block node exclusively held by the caller:
// in-progress first (continue filling), then the freelist, then a
// fresh allocation.
func (q *BlockList[T]) acquire() *blockNode[T] {
	if node := q.ipGet(); node != nil {
		return node
	}
	if node := q.freeGet(); node != nil {
		return node
	}
	return q.allocate()
}

// ipToken acquires the in-progress stack token, yield-spinning while
// a peer holds it. The returned node is the stack top: the most
// recently parked node, or the resident sentinel when the stack is
// empty.
func (q *BlockList[T]) ipToken() *blockNode[T] {
	sw := spin.Wait{}
	for {
		p := swapPtr(&q.ipTop, 0)
		if p != 0 {
			return blockAt[T](p)
		}
		sw.Once()
	}
}

// ipGet pops the most recently parked node for continued filling. The
// node keeps its unconsumed elements; they drain when it reaches a
// consumer again. Returns nil when no partial node is parked.
func (q *BlockList[T]) ipGet() *blockNode[T] {
	top := q.ipToken()
	if blockRef(top) == q.ipBottom {
		q.ipTop.StoreRelease(q.ipBottom)
		return nil
	}
	q.ipTop.StoreRelease(top.next.LoadAcquire())
	return top
}

// ipPut parks a partially filled node on the in-progress stack.
func (q *BlockList[T]) ipPut(node *blockNode[T]) {
	top := q.ipToken()
	node.next.StoreRelaxed(blockRef(top))
	q.ipTop.StoreRelease(blockRef(node))
}

// freeGet claims the freelist tail sentinel; its indices were reset on
// retirement. Returns nil when only the sentinel remains.
func (q *BlockList[T]) freeGet() *blockNode[T] {
	node := blockAt[T](q.freeTail.LoadRelaxed())
	for {
		next := node.next.LoadAcquire()
		if next == 0 {
			return nil
		}
		if q.freeTail.CompareAndSwapAcqRel(blockRef(node), next) {
			return node
		}
		node = blockAt[T](q.freeTail.LoadRelaxed())
	}
}

// freePut retires a drained node onto the freelist.
func (q *BlockList[T]) freePut(node *blockNode[T]) {
	node.rdx = 0
	node.wdx = 0
	node.next.StoreRelaxed(0)
	prev := swapPtr(&q.freeHead, blockRef(node))
	blockAt[T](prev).next.StoreRelease(blockRef(node))
}

// allocate carves a fresh block of nodes: the first goes to the
// caller, the remainder is chained onto the freelist in one segment.
func (q *BlockList[T]) allocate() *blockNode[T] {
	vec := make([]blockNode[T], blockAllocNodes)
	for i := 2; i < blockAllocNodes; i++ {
		vec[i].next.StoreRelaxed(blockRef(&vec[i-1]))
	}

	q.storeMu.Lock()
	q.blocks = append(q.blocks, vec)
	q.storeMu.Unlock()

	prev := swapPtr(&q.freeHead, blockRef(&vec[1]))
	blockAt[T](prev).next.StoreRelease(blockRef(&vec[blockAllocNodes-1]))
	return &vec[0]
}
