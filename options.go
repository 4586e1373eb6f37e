// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conq

// Options configures queue creation and variant selection.
type Options struct {
	// Capacity discipline: 0 means unbounded.
	capacity int

	// Sharding: number of subqueues, 1 means monolithic.
	subqueues int

	// Variant hints
	blocked    bool // blocked-node list instead of single-element nodes
	listBacked bool // bounded list instead of ring
}

// Builder creates queues with fluent configuration.
//
// The builder selects the algorithm from the capacity discipline and
// the variant hints:
//
//	Bounded, monolithic            → Ring (ListBacked: BoundedList)
//	Bounded, Subqueues(k)          → MultiBounded over rings or lists
//	Unbounded, monolithic          → List (Blocked: BlockList)
//	Unbounded, Subqueues(k)        → MultiUnbounded over lists
//
// Bounded capacities round up to the next power of 2 when a ring backs
// the queue, so builder construction never fails; use NewRing directly
// for the strict power-of-two contract.
//
// Example:
//
//	q := conq.BuildUnbounded[Event](conq.NewUnbounded().Subqueues(8))
//	b := conq.BuildBounded[Request](conq.New(4096))
type Builder struct {
	opts Options
}

// New creates a builder for a bounded queue with the given capacity.
// Panics if capacity < 2.
func New(capacity int) *Builder {
	if capacity < 2 {
		panic("conq: capacity must be >= 2")
	}
	return &Builder{opts: Options{capacity: capacity, subqueues: 1}}
}

// NewUnbounded creates a builder for an unbounded queue.
func NewUnbounded() *Builder {
	return &Builder{opts: Options{subqueues: 1}}
}

// Subqueues shards the queue across k subqueues with producer affinity
// and consumer hitlists. Panics if k < 1.
func (b *Builder) Subqueues(k int) *Builder {
	if k < 1 {
		panic("conq: subqueues must be >= 1")
	}
	b.opts.subqueues = k
	return b
}

// Blocked selects block-node storage (1024 elements per node) for
// unbounded queues. Fewer allocations and better locality under
// sustained throughput; see BlockList for the ordering trade-off.
// Ignored for bounded queues.
func (b *Builder) Blocked() *Builder {
	b.opts.blocked = true
	return b
}

// ListBacked selects a fixed node pool instead of a ring for bounded
// queues, lifting the power-of-two capacity constraint.
// Ignored for unbounded queues.
func (b *Builder) ListBacked() *Builder {
	b.opts.listBacked = true
	return b
}

// BuildUnbounded creates an unbounded queue from the builder
// configuration. Panics if the builder was created with New (bounded).
func BuildUnbounded[T any](b *Builder) Unbounded[T] {
	if b.opts.capacity != 0 {
		panic("conq: BuildUnbounded requires NewUnbounded()")
	}
	inner := func() Unbounded[T] { return NewList[T]() }
	if b.opts.blocked {
		inner = func() Unbounded[T] { return NewBlockList[T]() }
	}
	if b.opts.subqueues > 1 {
		return NewMultiUnbounded(b.opts.subqueues, inner)
	}
	return inner()
}

// BuildBounded creates a bounded queue from the builder configuration.
// Panics if the builder was created with NewUnbounded.
func BuildBounded[T any](b *Builder) Bounded[T] {
	if b.opts.capacity == 0 {
		panic("conq: BuildBounded requires New(capacity)")
	}
	capacity := b.opts.capacity
	inner := func(n int) Bounded[T] {
		r, _ := NewRing[T](n)
		return r
	}
	if b.opts.listBacked {
		inner = func(n int) Bounded[T] { return NewBoundedList[T](n) }
	} else {
		capacity = roundToPow2(capacity)
	}
	if b.opts.subqueues > 1 {
		return NewMultiBounded(capacity, b.opts.subqueues, inner)
	}
	return inner(capacity)
}
