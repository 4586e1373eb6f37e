// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conq

import "code.hybscloud.com/conq/internal/tlos"

// DetachGoroutine releases all per-goroutine queue state held by the
// calling goroutine: sharded-queue producer indices return to their
// pools and consumer hitlists are reclaimed.
//
// Go provides no goroutine destructor, so this is the explicit
// equivalent of thread-exit cleanup: worker goroutines that produced
// into or consumed from sharded queues should defer it. Skipping the
// call is safe — Close on each queue reclaims the same state — but a
// long-lived process that keeps spawning short-lived producers against
// one queue would otherwise pin all subqueue indices to dead
// goroutines.
//
//	go func() {
//		defer conq.DetachGoroutine()
//		for job := range jobs {
//			q.MPEnqueue(&job)
//		}
//	}()
func DetachGoroutine() {
	tlos.Detach()
}
