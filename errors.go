// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conq

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// For enqueue: the queue is full (backpressure).
// For dequeue: the queue is empty (no data available).
//
// ErrWouldBlock is a control flow signal, not a failure. The caller
// should retry the operation later (with backoff or yield), fall
// through to an unbounded queue, or promote to a blocking wrapper,
// rather than propagating the error.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
var ErrWouldBlock = iox.ErrWouldBlock

// ErrContended indicates an uncontended dequeue refused to wait because
// another consumer currently holds the queue's tail token.
//
// Only MCDequeueUncontended surfaces this; MCDequeue spins until the
// token is acquired instead. The sharded queues interpret ErrContended
// as "try another shard".
//
// ErrContended wraps [iox.ErrWouldBlock], so IsWouldBlock reports true
// for it; use [IsContended] to distinguish contention from emptiness.
var ErrContended = fmt.Errorf("conq: tail token held: %w", iox.ErrWouldBlock)

// ErrRingCapacity is returned by NewRing, NewCache and NewMultiRing
// when the requested capacity is not a power of two.
//
// It surfaces at construction only, never mid-operation.
var ErrRingCapacity = errors.New("conq: ring capacity must be a power of two and >= 2")

// IsWouldBlock reports whether err indicates the operation would block.
// It reports true for both ErrWouldBlock and ErrContended.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsContended reports whether err indicates a refused uncontended
// dequeue rather than an empty queue.
func IsContended(err error) bool {
	return errors.Is(err, ErrContended)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Returns true for nil, ErrWouldBlock, or ErrContended.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
