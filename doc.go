// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package conq provides concurrent FIFO queues for multi-producer /
// multi-consumer message passing between goroutines of one process.
//
// The package is a matrix of two orthogonal dimensions:
//
//   - Capacity discipline: bounded (fixed capacity, enqueue may fail)
//     or unbounded (enqueue always succeeds, nodes allocated on
//     demand).
//   - Sharding: monolithic (single lock-free queue) or multi-queue
//     (K subqueues with producer affinity and consumer hitlists).
//
// An optional outer wrapper adds blocking semantics around any
// nonblocking core.
//
// # Queue Cores
//
// Bounded:
//
//	Ring[T]         power-of-two ring buffer with per-slot sequence
//	                stamps (Vyukov's bounded MPMC algorithm)
//	BoundedList[T]  fixed node pool over a linked list; any capacity
//
// Unbounded:
//
//	List[T]         singly-linked list of single-element nodes with a
//	                recycling freelist
//	BlockList[T]    linked list of 1024-element block nodes; fewer
//	                allocations, relaxed cross-block ordering under
//	                many producers
//	Cache[T]        small ring in front of a List; unordered,
//	                best-effort latency optimization for bursts
//
// Sharded:
//
//	MultiUnbounded[T], MultiBounded[T]
//
// # Role Operations
//
// Every queue exposes the same five operations. The sp/sc forms are
// optimizations carrying a stricter caller-side contract; the mp/mc
// forms are always safe:
//
//	SPEnqueue  caller guarantees no concurrent producer
//	MPEnqueue  safe under concurrent producers
//	SCDequeue  caller guarantees no concurrent consumer
//	MCDequeue  safe under concurrent consumers; spins on the
//	           consumer tail token
//	MCDequeueUncontended  like MCDequeue but returns ErrContended
//	           instead of waiting for the tail token
//
// Violating an sp/sc contract causes undefined behavior including data
// corruption.
//
// # Basic Usage
//
//	q, err := conq.NewRing[int](1024)
//	if err != nil {
//	    // capacity was not a power of two
//	}
//
//	v := 42
//	if err := q.MPEnqueue(&v); err != nil {
//	    // queue full - handle backpressure
//	}
//
//	elem, err := q.MCDequeue()
//	if err == nil {
//	    fmt.Println(elem)
//	}
//
// Retry with adaptive backoff:
//
//	backoff := iox.Backoff{}
//	for {
//	    err := q.MPEnqueue(&item)
//	    if err == nil {
//	        backoff.Reset()
//	        break
//	    }
//	    backoff.Wait()
//	}
//
// # Sharding
//
// A sharded queue splits one logical queue across K padded subqueues.
// Each producing goroutine is bound to one subqueue on first enqueue,
// so its elements stay in FIFO order among themselves; there is no
// total order across producers. Each consuming goroutine walks a
// per-queue hitlist that adapts toward recently non-empty subqueues:
//
//	q := conq.NewMultiList[Event](8)
//
//	// producer goroutines
//	q.MPEnqueue(&ev)
//
//	// consumer goroutines
//	ev, err := q.MCDequeue()
//
// Goroutines that stop using a sharded queue before it is closed
// should release their affinity state:
//
//	go func() {
//	    defer conq.DetachGoroutine()
//	    // ... enqueue/dequeue ...
//	}()
//
// and the queue owner reclaims everything that remains:
//
//	q.Close()
//
// # Blocking
//
// The blocking wrappers park callers on condition variables instead of
// returning ErrWouldBlock:
//
//	bq := conq.NewBlockingBounded[Task](conq.BuildBounded[Task](conq.New(1024)))
//
//	// producer
//	bq.EnqueueBlocking(&task)
//
//	// consumer
//	task := bq.DequeueBlocking()
//
// The core provides no cancellation or timeouts; unblock parked
// consumers by enqueueing sentinel elements.
//
// # Builder
//
// The builder selects a variant from constraints:
//
//	q := conq.BuildBounded[Job](conq.New(4096))                       // Ring
//	q := conq.BuildBounded[Job](conq.New(1000).ListBacked())          // BoundedList
//	q := conq.BuildUnbounded[Job](conq.NewUnbounded())                // List
//	q := conq.BuildUnbounded[Job](conq.NewUnbounded().Blocked())      // BlockList
//	q := conq.BuildUnbounded[Job](conq.NewUnbounded().Subqueues(8))   // MultiUnbounded
//
// # Error Handling
//
// Queues return [ErrWouldBlock] when an operation cannot proceed
// (bounded queue full, any queue empty) and [ErrContended] when an
// uncontended dequeue refuses to wait for a peer consumer. Both are
// control flow signals, not failures, and both are sourced from or
// wrap [code.hybscloud.com/iox] errors for ecosystem consistency:
//
//	conq.IsWouldBlock(err)  // true if full/empty/contended
//	conq.IsContended(err)   // true only for refused uncontended dequeue
//	conq.IsSemantic(err)    // true if control flow signal
//	conq.IsNonFailure(err)  // true if nil or control flow signal
//
// [ErrRingCapacity] surfaces at ring construction only.
//
// # Ordering Guarantees
//
// FIFO is preserved per queue core, and per subqueue in the sharded
// case. A dequeue that returns element x synchronizes-with the enqueue
// of x: all writes that preceded the enqueue are visible to the
// dequeuer. This is the single inter-thread ordering guarantee; rely
// on no more. BlockList relaxes cross-block per-producer order under
// many producers, and Cache preserves no order at all; both document
// the trade.
//
// The interface intentionally excludes length because accurate counts
// in lock-free algorithms require expensive cross-core
// synchronization. Track counts in application logic when needed.
//
// # Race Detection
//
// Go's race detector is not designed for lock-free algorithm
// verification. The detector tracks explicit synchronization
// primitives but cannot observe happens-before relationships
// established through atomic memory orderings on separate variables,
// so it reports false positives for the queue cores. Tests
// incompatible with race detection skip themselves when RaceEnabled
// is true.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit
// memory ordering, [code.hybscloud.com/spin] for CPU pause
// instructions, github.com/eapache/queue and github.com/petermattis/goid
// inside the per-goroutine state registry backing the sharded queues.
package conq
