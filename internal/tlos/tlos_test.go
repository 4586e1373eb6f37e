// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tlos_test

import (
	"sync"
	"testing"

	"code.hybscloud.com/conq/internal/tlos"
)

// inGoroutine runs fn to completion on a fresh goroutine, giving it a
// distinct goroutine identity.
func inGoroutine(fn func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	<-done
}

// TestGetInitializesOnce verifies the default factory runs once per
// goroutine and the returned pointer is stable.
func TestGetInitializesOnce(t *testing.T) {
	calls := 0
	s := tlos.NewStore(func() int { calls++; return 7 }, nil)
	defer s.Close()

	p1 := s.Get()
	if *p1 != 7 {
		t.Fatalf("initial value: got %d, want 7", *p1)
	}
	*p1 = 11

	p2 := s.Get()
	if p1 != p2 {
		t.Fatal("Get returned a different pointer for the same goroutine")
	}
	if *p2 != 11 {
		t.Fatalf("mutation lost: got %d, want 11", *p2)
	}
	if calls != 1 {
		t.Fatalf("default factory calls: got %d, want 1", calls)
	}

	// A different goroutine gets its own value.
	inGoroutine(func() {
		defer tlos.Detach()
		if v := s.Get(); *v != 7 {
			t.Errorf("other goroutine value: got %d, want 7", *v)
		}
	})
	if calls != 2 {
		t.Fatalf("default factory calls: got %d, want 2", calls)
	}
}

// TestCloseReclaimsAllGoroutines verifies owner destruction invokes the
// return callback exactly once for every goroutine that touched the
// store.
func TestCloseReclaimsAllGoroutines(t *testing.T) {
	var mu sync.Mutex
	returned := []int{}

	s := tlos.NewStore(func() int { return 0 }, func(v int) {
		mu.Lock()
		returned = append(returned, v)
		mu.Unlock()
	})

	for i := 1; i <= 3; i++ {
		i := i
		inGoroutine(func() {
			*s.Get() = i * 10
		})
	}

	s.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(returned) != 3 {
		t.Fatalf("callbacks: got %d, want 3 (%v)", len(returned), returned)
	}
	seen := map[int]bool{}
	for _, v := range returned {
		if seen[v] {
			t.Fatalf("duplicate callback for %d", v)
		}
		seen[v] = true
	}
	for _, want := range []int{10, 20, 30} {
		if !seen[want] {
			t.Fatalf("missing callback for %d (%v)", want, returned)
		}
	}
}

// TestDetachReclaims verifies goroutine-exit reclamation fires once per
// live owner and never again on a later Close.
func TestDetachReclaims(t *testing.T) {
	var mu sync.Mutex
	count := 0

	s := tlos.NewStore(func() int { return 5 }, func(int) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	inGoroutine(func() {
		s.Get()
		tlos.Detach()
		// Detach already returned the value; a second Detach from the
		// same goroutine is a no-op.
		tlos.Detach()
	})

	mu.Lock()
	if count != 1 {
		mu.Unlock()
		t.Fatalf("callbacks after Detach: got %d, want 1", count)
	}
	mu.Unlock()

	s.Close()

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("callbacks after Close: got %d, want 1 (no double reclaim)", count)
	}
}

// TestCloseThenDetach verifies the reverse interleaving: after the
// owner is closed, a goroutine's Detach must not invoke the dead
// owner's callback.
func TestCloseThenDetach(t *testing.T) {
	var mu sync.Mutex
	count := 0

	s := tlos.NewStore(func() int { return 5 }, func(int) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	ready := make(chan struct{})
	release := make(chan struct{})
	detached := make(chan struct{})
	go func() {
		s.Get()
		close(ready)
		<-release
		tlos.Detach()
		close(detached)
	}()

	// The goroutine has initialized its slot; close the owner first.
	<-ready
	s.Close()

	// Detach now runs against a dead owner and must stay silent.
	close(release)
	<-detached

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("callbacks: got %d, want exactly 1", count)
	}
}

// TestRelinquish verifies manual reclamation and re-initialization.
func TestRelinquish(t *testing.T) {
	calls, returns := 0, 0
	s := tlos.NewStore(func() int { calls++; return calls }, func(int) { returns++ })
	defer s.Close()

	if v := s.Get(); *v != 1 {
		t.Fatalf("first value: got %d, want 1", *v)
	}
	if !s.Relinquish() {
		t.Fatal("Relinquish: got false, want true")
	}
	if returns != 1 {
		t.Fatalf("returns: got %d, want 1", returns)
	}
	// Slot is unused again; Relinquish without state reports false.
	if s.Relinquish() {
		t.Fatal("second Relinquish: got true, want false")
	}
	// Get re-initializes.
	if v := s.Get(); *v != 2 {
		t.Fatalf("reinitialized value: got %d, want 2", *v)
	}
}

// TestIndexReuse verifies a new store reusing a closed store's slot
// index re-initializes cleanly instead of seeing stale state.
func TestIndexReuse(t *testing.T) {
	s1 := tlos.NewStore(func() int { return 1 }, nil)
	*s1.Get() = 111
	s1.Close()

	// s2 may claim s1's released index; the owner-id mismatch must
	// force re-initialization.
	s2 := tlos.NewStore(func() int { return 2 }, nil)
	defer s2.Close()
	if v := s2.Get(); *v != 2 {
		t.Fatalf("reused-index value: got %d, want 2", *v)
	}
}

// TestManyStoresManyGoroutines stresses interleaved stores and
// goroutines for callback exactly-once accounting.
func TestManyStoresManyGoroutines(t *testing.T) {
	const stores, workers = 8, 16

	var mu sync.Mutex
	counts := make(map[int]int)

	ss := make([]*tlos.Store[int], stores)
	for i := range ss {
		i := i
		ss[i] = tlos.NewStore(func() int { return i }, func(v int) {
			mu.Lock()
			counts[v]++
			mu.Unlock()
		})
	}

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			if w%2 == 0 {
				defer tlos.Detach()
			}
			for _, s := range ss {
				s.Get()
			}
		}(w)
	}
	wg.Wait()

	for _, s := range ss {
		s.Close()
	}

	mu.Lock()
	defer mu.Unlock()
	for i := range stores {
		if counts[i] != workers {
			t.Fatalf("store %d: callbacks %d, want %d", i, counts[i], workers)
		}
	}
}
