// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conq_test

import (
	"testing"

	"code.hybscloud.com/conq"
)

// TestBuilderSelection verifies the builder dispatches to the expected
// concrete algorithm for each configuration.
func TestBuilderSelection(t *testing.T) {
	if _, ok := conq.BuildBounded[int](conq.New(1024)).(*conq.Ring[int]); !ok {
		t.Error("New(1024) should build *Ring")
	}
	if _, ok := conq.BuildBounded[int](conq.New(1000).ListBacked()).(*conq.BoundedList[int]); !ok {
		t.Error("New(1000).ListBacked() should build *BoundedList")
	}
	if _, ok := conq.BuildBounded[int](conq.New(8).Subqueues(4)).(*conq.MultiBounded[int]); !ok {
		t.Error("New(8).Subqueues(4) should build *MultiBounded")
	}
	if _, ok := conq.BuildUnbounded[int](conq.NewUnbounded()).(*conq.List[int]); !ok {
		t.Error("NewUnbounded() should build *List")
	}
	if _, ok := conq.BuildUnbounded[int](conq.NewUnbounded().Blocked()).(*conq.BlockList[int]); !ok {
		t.Error("NewUnbounded().Blocked() should build *BlockList")
	}
	if _, ok := conq.BuildUnbounded[int](conq.NewUnbounded().Subqueues(4)).(*conq.MultiUnbounded[int]); !ok {
		t.Error("NewUnbounded().Subqueues(4) should build *MultiUnbounded")
	}
}

// TestBuilderRounding verifies bounded ring capacities round up to the
// next power of two.
func TestBuilderRounding(t *testing.T) {
	tests := []struct{ in, want int }{
		{2, 2},
		{3, 4},
		{4, 4},
		{1000, 1024},
		{1024, 1024},
	}
	for _, tt := range tests {
		q := conq.BuildBounded[int](conq.New(tt.in))
		if q.Cap() != tt.want {
			t.Errorf("New(%d).Cap: got %d, want %d", tt.in, q.Cap(), tt.want)
		}
	}

	// ListBacked keeps the exact capacity.
	q := conq.BuildBounded[int](conq.New(1000).ListBacked())
	if q.Cap() != 1000 {
		t.Errorf("ListBacked Cap: got %d, want 1000", q.Cap())
	}
}

// TestBuilderMisuse pins the panic contracts.
func TestBuilderMisuse(t *testing.T) {
	expectPanic := func(name string, fn func()) {
		defer func() {
			if recover() == nil {
				t.Errorf("%s: expected panic", name)
			}
		}()
		fn()
	}

	expectPanic("New(1)", func() { conq.New(1) })
	expectPanic("Subqueues(0)", func() { conq.New(8).Subqueues(0) })
	expectPanic("BuildBounded on unbounded", func() { conq.BuildBounded[int](conq.NewUnbounded()) })
	expectPanic("BuildUnbounded on bounded", func() { conq.BuildUnbounded[int](conq.New(8)) })
	expectPanic("NewBoundedList(0)", func() { conq.NewBoundedList[int](0) })
	expectPanic("NewMultiUnbounded(0)", func() {
		conq.NewMultiUnbounded(0, func() conq.Unbounded[int] { return conq.NewList[int]() })
	})
}

// TestBuilderBuiltQueuesWork smoke-tests a built sharded queue
// end to end.
func TestBuilderBuiltQueuesWork(t *testing.T) {
	q := conq.BuildUnbounded[int](conq.NewUnbounded().Subqueues(2))
	if mq, ok := q.(*conq.MultiUnbounded[int]); ok {
		defer mq.Close()
	}

	for i := range 10 {
		v := i
		if err := q.MPEnqueue(&v); err != nil {
			t.Fatalf("MPEnqueue(%d): %v", i, err)
		}
	}
	for i := range 10 {
		val, err := q.MCDequeue()
		if err != nil || val != i {
			t.Fatalf("MCDequeue(%d): got (%d, %v)", i, val, err)
		}
	}
}
