// worker.go: Flush worker pool
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import "time"

// workerErrorBackoff is the idle pause after a transient dispatch error.
const workerErrorBackoff = time.Millisecond

// runWorker is one flush worker's loop: drain a batch from the
// dispatcher, append it to the data file with a single vectored write,
// commit the locators to both indexes, apply the durability policy,
// release the requests. Errors are reported and counted; they never
// terminate the worker, and a request is always released exactly once.
func (s *Store) runWorker() {
	defer s.workerWg.Done()
	s.workerReady.Store(true)

	batch := make([]*request, s.cfg.BatchSize)
	entries := make([]indexEntry, 0, s.cfg.BatchSize)
	bufs := make([][]byte, 0, s.cfg.BatchSize)

	for {
		n, err := s.disp.next(batch)
		if err != nil {
			s.reportError("dispatch", err)
			time.Sleep(workerErrorBackoff)
			continue
		}
		if n == 0 {
			s.metrics.spuriousWakes.Add(1)
			// Spurious wake. During shutdown it means the ring has been
			// drained and there is nothing left to own.
			if !s.running.Load() && s.disp.ring.count() == 0 {
				return
			}
			continue
		}

		s.flushBatch(batch[:n], &entries, &bufs)

		// A sole sentinel is just the shutdown wake; loop around and let
		// the empty-ring check above decide.
	}
}

// flushBatch commits one dequeued batch. Sentinels inside the batch are
// skipped; live records are appended contiguously in dequeue order.
func (s *Store) flushBatch(batch []*request, entries *[]indexEntry, bufs *[][]byte) {
	*entries = (*entries)[:0]
	*bufs = (*bufs)[:0]

	var total int64
	live := 0
	for _, req := range batch {
		if req == s.sentinel {
			continue
		}
		live++
		total += req.size()
	}
	if live == 0 {
		return
	}

	// Reserve the file range up front; the reservation is what keeps the
	// file strictly append-only across workers.
	base := s.writeEnd.Add(total) - total

	off := base
	for _, req := range batch {
		if req == s.sentinel {
			continue
		}
		*bufs = append(*bufs, req.buf)
		*entries = append(*entries, indexEntry{
			key: req.key(),
			loc: locator{offset: uint64(off), vlen: req.vlen},
		})
		off += req.size()
	}

	committed := true
	if err := writeRecordsAt(s.file, *bufs, base, s.pool); err != nil {
		s.metrics.flushErrors.Add(1)
		s.reportError("flush", err)
		committed = false
	}

	if committed {
		// One ordered-map transaction per batch: a crash mid-commit
		// leaves a prefix of the batch indexed, never a torn entry.
		if err := s.index.putBatch(*entries); err != nil {
			s.metrics.indexErrors.Add(1)
			s.reportError("index", err)
		} else {
			s.fast.putBatch(*entries)
		}

		s.applyDurability()

		s.metrics.batches.Add(1)
		s.metrics.records.Add(uint64(live))
		s.metrics.bytesWritten.Add(uint64(total))
	}

	// Release every live request exactly once, committed or not.
	for i, req := range batch {
		if req == s.sentinel {
			continue
		}
		batch[i] = nil
		req.buf = nil
		s.outstanding.Add(-1)
	}
}

// releaseRequest gives back a request that never reached a worker (the
// shutdown-drain and append-abort paths).
func (s *Store) releaseRequest(req *request) {
	if req == nil || req == s.sentinel {
		return
	}
	req.buf = nil
	s.outstanding.Add(-1)
}
