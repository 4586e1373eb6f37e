// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conq_test

import (
	"fmt"

	"code.hybscloud.com/conq"
)

// Example demonstrates the basic nonblocking contract on a ring queue.
func Example() {
	q, err := conq.NewRing[string](4)
	if err != nil {
		panic(err)
	}

	for _, s := range []string{"a", "b", "c", "d"} {
		if err := q.MPEnqueue(&s); err != nil {
			fmt.Println("full:", s)
		}
	}

	e := "e"
	if err := q.MPEnqueue(&e); conq.IsWouldBlock(err) {
		fmt.Println("full:", e)
	}

	for {
		s, err := q.MCDequeue()
		if err != nil {
			break
		}
		fmt.Println(s)
	}

	// Output:
	// full: e
	// a
	// b
	// c
	// d
}

// Example_backpressure demonstrates falling through from a full
// bounded queue into an unbounded overflow tier, the policy the Cache
// queue packages up.
func Example_backpressure() {
	ring, _ := conq.NewRing[int](2)
	overflow := conq.NewList[int]()

	for i := 1; i <= 5; i++ {
		v := i
		if ring.MPEnqueue(&v) != nil {
			overflow.MPEnqueue(&v)
		}
	}

	fast, slow := 0, 0
	for {
		if _, err := ring.MCDequeue(); err != nil {
			break
		}
		fast++
	}
	for {
		if _, err := overflow.MCDequeue(); err != nil {
			break
		}
		slow++
	}
	fmt.Println(fast, slow)

	// Output:
	// 2 3
}
