// durability.go: Fsync policy scheduling
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import (
	"time"

	goerrors "github.com/agilira/go-errors"
)

// applyDurability runs after each committed batch and applies the
// configured fsync policy. The interval and every-N knobs are read from
// atomics so live config updates take effect between batches.
func (s *Store) applyDurability() {
	switch s.cfg.FsyncPolicy {
	case FsyncNone:

	case FsyncEachBatch:
		s.fsync()

	case FsyncInterval:
		if s.cfg.BackgroundFsync {
			// The dedicated goroutine owns the clock.
			return
		}
		interval := s.fsyncIntervalNs.Load()
		now := s.timeCache.CachedTime().UnixNano()
		last := s.lastFsyncNs.Load()
		if now-last < interval {
			return
		}
		// One worker wins the claim; the rest skip this window.
		if s.lastFsyncNs.CompareAndSwap(last, now) {
			s.fsync()
		}

	case FsyncEveryN:
		n := uint64(s.fsyncEveryN.Load())
		if n == 0 {
			n = 1
		}
		if s.batchesSinceFsync.Add(1) >= n {
			s.batchesSinceFsync.Store(0)
			s.fsync()
		}
	}
}

// fsync forces the data file to stable storage. Failures are reported,
// counted and otherwise absorbed; durability degrades, the pipeline keeps
// running.
func (s *Store) fsync() {
	if err := s.file.Sync(); err != nil {
		s.reportError("fsync", goerrors.Wrap(err, CodeIO, "mnemosyne: fsync failed"))
		return
	}
	s.metrics.fsyncs.Add(1)
}

// runBackgroundFsync is the dedicated fsync goroutine used with the
// FsyncInterval policy when BackgroundFsync is set. It sleeps for the
// configured interval between fsyncs, exits promptly when the store stops
// running, and issues one final fsync on the way out.
func (s *Store) runBackgroundFsync() {
	defer s.fsyncWg.Done()

	interval := time.Duration(s.fsyncIntervalNs.Load())
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.fsyncStop:
			s.fsync()
			return
		case <-ticker.C:
			s.fsync()
			// Pick up live interval changes between ticks.
			if next := time.Duration(s.fsyncIntervalNs.Load()); next > 0 && next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}
