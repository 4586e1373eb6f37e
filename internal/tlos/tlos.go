// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tlos implements a thread-local object store: per-(goroutine,
// owner-instance) values with deterministic reclamation in both
// directions.
//
// A Store claims one slot index in every goroutine's slot vector. The
// index is unique per live Store and recycled through a reuse pool
// after the Store is closed; a goroutine detects recycled indices by
// owner-id mismatch and re-initializes the slot, so stale state never
// leaks between owners.
//
// Reclamation runs twice: Store.Close walks every live goroutine
// vector and invokes the return callback where the owner id matches,
// and Detach walks the calling goroutine's vector and invokes the
// callback for every still-live owner. A callback fires at most once
// per (goroutine, owner) pair, under every interleaving of Close and
// Detach.
//
// Goroutine identity comes from the runtime's goroutine id; ids are
// never reused, so a goroutine that exits without calling Detach can
// never corrupt a later goroutine's slots — its state is simply
// reclaimed by the owners' Close calls instead.
package tlos

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/petermattis/goid"
)

// box is one (goroutine, owner) slot. ownerID == 0 means unused.
type box struct {
	ownerID uint64
	value   any
	ret     func(any)
}

// vector is one goroutine's slot vector. mu orders slot access by the
// owning goroutine against reclamation walks by Store.Close.
type vector struct {
	mu    sync.Mutex
	boxes []box
}

// registry is the process-wide bookkeeping: owner-id allocation, the
// slot-index pool, and the set of live goroutine vectors. A single
// short mutex guards id and index state; vectors are looked up
// lock-free on the Get fast path.
var registry struct {
	mu        sync.Mutex
	nextID    uint64
	owners    []uint64
	available *queue.Queue
	vectors   sync.Map // goroutine id (int64) -> *vector
}

func init() {
	registry.nextID = 1
	registry.available = queue.New()
}

// Store provides one value of type T per goroutine that calls Get.
//
// The zero Store is not usable; construct with NewStore. A Store must
// be closed exactly once; using it after Close is a programming error.
type Store[T any] struct {
	defaultFn func() T
	returnFn  func(T)
	id        uint64
	index     int
}

// NewStore creates a store. defaultFn produces the initial value the
// first time a goroutine calls Get (nil means zero value); returnFn is
// invoked with the goroutine's value when the state is reclaimed (nil
// means no callback).
func NewStore[T any](defaultFn func() T, returnFn func(T)) *Store[T] {
	s := &Store[T]{defaultFn: defaultFn, returnFn: returnFn}

	registry.mu.Lock()
	s.id = registry.nextID
	registry.nextID++
	if registry.available.Length() > 0 {
		s.index = registry.available.Remove().(int)
		registry.owners[s.index] = s.id
	} else {
		s.index = len(registry.owners)
		registry.owners = append(registry.owners, s.id)
	}
	registry.mu.Unlock()
	return s
}

// vectorOf returns the calling goroutine's vector, creating and
// registering it on first use.
func vectorOf(gid int64) *vector {
	if v, ok := registry.vectors.Load(gid); ok {
		return v.(*vector)
	}
	v, _ := registry.vectors.LoadOrStore(gid, &vector{})
	return v.(*vector)
}

// Get returns the calling goroutine's value for this store,
// initializing it from the default factory on first access (or after
// the slot was reclaimed).
//
// The returned pointer stays valid for the calling goroutine until the
// slot is reclaimed by Relinquish, Detach, or Close.
func (s *Store[T]) Get() *T {
	v := vectorOf(goid.Get())
	v.mu.Lock()
	if len(v.boxes) <= s.index {
		v.boxes = append(v.boxes, make([]box, s.index+1-len(v.boxes))...)
	}
	b := &v.boxes[s.index]
	if b.ownerID != s.id {
		// Unused, or a prior owner of this index has already been
		// closed; re-initialize without invoking the old callback.
		val := new(T)
		if s.defaultFn != nil {
			*val = s.defaultFn()
		}
		b.value = val
		b.ownerID = s.id
		if s.returnFn != nil {
			rf := s.returnFn
			b.ret = func(x any) { rf(*x.(*T)) }
		} else {
			b.ret = nil
		}
	}
	ptr := b.value.(*T)
	v.mu.Unlock()
	return ptr
}

// Relinquish manually reclaims the calling goroutine's value for this
// store, invoking the return callback. Reports whether a callback was
// invoked; a later Get re-initializes the slot.
func (s *Store[T]) Relinquish() bool {
	vi, ok := registry.vectors.Load(goid.Get())
	if !ok {
		return false
	}
	v := vi.(*vector)
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.boxes) <= s.index {
		return false
	}
	b := &v.boxes[s.index]
	if b.ownerID != s.id || b.ret == nil {
		return false
	}
	b.ret(b.value)
	b.ownerID = 0
	b.value = nil
	b.ret = nil
	return true
}

// Close reclaims every goroutine's state for this store, invoking the
// return callback once per goroutine that initialized a slot, and
// releases the store's slot index to the reuse pool.
func (s *Store[T]) Close() {
	registry.mu.Lock()
	registry.vectors.Range(func(_, vi any) bool {
		v := vi.(*vector)
		v.mu.Lock()
		if s.index < len(v.boxes) {
			b := &v.boxes[s.index]
			if b.ownerID == s.id {
				if b.ret != nil {
					b.ret(b.value)
				}
				b.ownerID = 0
				b.value = nil
				b.ret = nil
			}
		}
		v.mu.Unlock()
		return true
	})

	registry.available.Add(s.index)
	registry.owners[s.index] = 0
	// Last live store: drop the pools so indices do not accumulate
	// across store generations.
	if registry.available.Length() == len(registry.owners) {
		registry.available = queue.New()
		registry.owners = registry.owners[:0]
	}
	registry.mu.Unlock()
}

// Detach reclaims all of the calling goroutine's stored values and
// unregisters its vector. For every slot whose owner is still live,
// the owner's return callback is invoked. Call from a goroutine that
// used TLOS-backed state before it exits; the effect of using any
// store from the same goroutine afterwards is a fresh registration.
func Detach() {
	vi, ok := registry.vectors.LoadAndDelete(goid.Get())
	if !ok {
		return
	}
	v := vi.(*vector)

	registry.mu.Lock()
	v.mu.Lock()
	for i := range v.boxes {
		b := &v.boxes[i]
		// Owners slice can be shorter if a Close flushed the pools.
		if b.ret != nil && b.ownerID != 0 && i < len(registry.owners) && registry.owners[i] == b.ownerID {
			b.ret(b.value)
		}
		b.ownerID = 0
		b.value = nil
		b.ret = nil
	}
	v.mu.Unlock()
	registry.mu.Unlock()
}
