// dispatcher.go: Batching notify-dispatcher over the ring
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import "sync"

// dispatcher layers a blocking, batched consumer API on top of the SPSC
// ring. The producer mutex turns any number of appending goroutines into
// the ring's single producer; the consumer mutex does the same for the
// flush workers. A semaphore-counting notifier carries exactly one wake
// token per enqueue, so a consumer that drains several items per wake
// later absorbs the leftover tokens as spurious wakes.
type dispatcher struct {
	ring *ring
	sem  *notifier

	prodMu sync.Mutex
	consMu sync.Mutex
}

func newDispatcher(capacity int) (*dispatcher, error) {
	r, err := newRing(capacity)
	if err != nil {
		return nil, err
	}
	sem, err := newNotifier()
	if err != nil {
		return nil, err
	}
	return &dispatcher{ring: r, sem: sem}, nil
}

// enqueue publishes one request and posts one wake token. Safe for any
// number of producers. Returns false when the ring is full.
func (d *dispatcher) enqueue(req *request) bool {
	d.prodMu.Lock()
	ok := d.ring.enqueue(req)
	d.prodMu.Unlock()
	if ok {
		// A post failure would strand the item until the next wake; the
		// shutdown path posts extra tokens, so it cannot strand forever.
		_ = d.sem.post(1)
	}
	return ok
}

// next blocks until at least one wake token arrives, then drains up to
// len(batch) items into the caller's buffer and returns the count. A zero
// count is a spurious wake (tokens outlived a previously batched drain, or
// shutdown). A non-nil error is a transient notifier failure.
func (d *dispatcher) next(batch []*request) (int, error) {
	if err := d.sem.wait(); err != nil {
		return 0, err
	}

	d.consMu.Lock()
	n := d.ring.count()
	if n > len(batch) {
		n = len(batch)
	}
	for i := 0; i < n; i++ {
		batch[i] = d.ring.peekAt(i)
	}
	d.ring.advance(n)
	d.consMu.Unlock()
	return n, nil
}

// wake posts extra tokens outside any enqueue. The shutdown path uses it
// to pop every blocked worker out of next.
func (d *dispatcher) wake(tokens uint64) {
	_ = d.sem.post(tokens)
}

// drain removes whatever is left in the ring without blocking. Only the
// teardown path calls it, after the workers have been joined.
func (d *dispatcher) drain() []*request {
	d.consMu.Lock()
	defer d.consMu.Unlock()
	var left []*request
	for {
		it, ok := d.ring.dequeue()
		if !ok {
			return left
		}
		left = append(left, it)
	}
}

// close tears down the notifier. Every waiter must be joined first.
func (d *dispatcher) close() error {
	return d.sem.close()
}
