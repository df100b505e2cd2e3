// ring.go: Bounded lock-free ring buffer
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import (
	"sync/atomic"

	goerrors "github.com/agilira/go-errors"
)

// cacheLineBytes is the false-sharing isolation hint for the ring cursors.
// Padding in Go must be a compile-time constant, so the start-up hint is a
// constant here: 64 bytes covers every mainstream CPU this store targets.
const cacheLineBytes = 64

// paddedUint64 is an atomic counter isolated on its own cache line so the
// producer and consumer cursors never false-share.
type paddedUint64 struct {
	atomic.Uint64
	_ [cacheLineBytes - 8]byte
}

// ring is a fixed-capacity FIFO of request handles.
//
// The hard guarantee is single-producer / single-consumer: enqueue
// publishes with release semantics, dequeue acquires, and a successful
// dequeue is the happens-before point for the item's contents. Any
// multi-producer or multi-consumer use must be serialized externally;
// the dispatcher provides exactly that for the flush pipeline.
type ring struct {
	items []*request
	mask  uint64

	head paddedUint64 // consumer cursor
	tail paddedUint64 // producer cursor
}

// newRing creates a ring. Capacity must be a power of two and at least 2.
func newRing(capacity int) (*ring, error) {
	if capacity < 2 || capacity&(capacity-1) != 0 {
		return nil, goerrors.New(CodeInvalidArgument, "mnemosyne: ring capacity must be a power of two >= 2")
	}
	return &ring{
		items: make([]*request, capacity),
		mask:  uint64(capacity) - 1,
	}, nil
}

// enqueue publishes one item. Returns false when the ring is full; a full
// ring is a normal condition, not an error. One slot is always kept open
// to distinguish full from empty, so a ring of capacity n holds n-1 items.
func (r *ring) enqueue(it *request) bool {
	tail := r.tail.Load()
	if tail-r.head.Load() >= r.mask {
		return false
	}
	r.items[tail&r.mask] = it
	r.tail.Store(tail + 1) // publish
	return true
}

// dequeue removes and returns one item, or (nil, false) when empty.
func (r *ring) dequeue() (*request, bool) {
	head := r.head.Load()
	if head >= r.tail.Load() {
		return nil, false
	}
	idx := head & r.mask
	it := r.items[idx]
	r.items[idx] = nil
	r.head.Store(head + 1)
	return it, true
}

// count is the approximate occupancy. It converges monotonically but may
// momentarily disagree with concurrent enqueue/dequeue.
func (r *ring) count() int {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail <= head {
		return 0
	}
	return int(tail - head)
}

// peekAt returns the i-th pending item without consuming it. Consumer side
// only; i must be below count().
func (r *ring) peekAt(i int) *request {
	return r.items[(r.head.Load()+uint64(i))&r.mask]
}

// advance consumes n items previously observed via peekAt. Consumer side
// only. Combined with peekAt it gives the dispatcher allocation-free
// batched draining.
func (r *ring) advance(n int) {
	head := r.head.Load()
	for i := 0; i < n; i++ {
		r.items[(head+uint64(i))&r.mask] = nil
	}
	r.head.Store(head + uint64(n))
}

// capacity returns the fixed slot count.
func (r *ring) capacity() int {
	return len(r.items)
}
