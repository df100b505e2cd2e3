// metrics.go: Atomic operational counters and Stats snapshot
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import "sync/atomic"

// counters are the store's internal metrics. All fields are atomic with
// relaxed ordering requirements; nothing synchronizes through them.
type counters struct {
	appends          atomic.Uint64 // accepted append requests
	appendRetryWaves atomic.Uint64 // one increment per 1,000 enqueue retries
	appendsRejected  atomic.Uint64 // appends failed at validation or shutdown
	batches          atomic.Uint64 // flushed batches
	records          atomic.Uint64 // flushed records
	bytesWritten     atomic.Uint64 // data-file bytes appended
	fsyncs           atomic.Uint64 // fsync calls issued
	flushErrors      atomic.Uint64 // failed batch appends
	indexErrors      atomic.Uint64 // failed ordered-map transactions
	spuriousWakes    atomic.Uint64 // dispatcher wakes that drained nothing
	gets             atomic.Uint64 // Get calls
	fastHits         atomic.Uint64 // Get served from the fast-index
	getMisses        atomic.Uint64 // Get returning not-found
	rebuiltRecords   atomic.Uint64 // records re-indexed by rebuild
	truncatedBytes   atomic.Uint64 // torn-tail bytes dropped by rebuild
	scanPruned       atomic.Uint64 // entries pruned by integrity scans
	closeLeaks       atomic.Uint64 // requests still outstanding at close
}

// Stats is a point-in-time snapshot of store metrics for telemetry and
// monitoring. Safe to query frequently; collection is a handful of atomic
// loads.
type Stats struct {
	Appends          uint64 `json:"appends"`
	AppendRetryWaves uint64 `json:"append_retry_waves"`
	AppendsRejected  uint64 `json:"appends_rejected"`
	Batches          uint64 `json:"batches"`
	Records          uint64 `json:"records"`
	BytesWritten     uint64 `json:"bytes_written"`
	Fsyncs           uint64 `json:"fsyncs"`
	FlushErrors      uint64 `json:"flush_errors"`
	IndexErrors      uint64 `json:"index_errors"`
	SpuriousWakes    uint64 `json:"spurious_wakes"`
	Gets             uint64 `json:"gets"`
	FastIndexHits    uint64 `json:"fast_index_hits"`
	GetMisses        uint64 `json:"get_misses"`
	RebuiltRecords   uint64 `json:"rebuilt_records"`
	TruncatedBytes   uint64 `json:"truncated_bytes"`
	ScanPruned       uint64 `json:"scan_pruned"`
	CloseLeaks       uint64 `json:"close_leaks"`

	Outstanding   int64  `json:"outstanding"`    // requests between enqueue and release
	RingOccupancy int    `json:"ring_occupancy"` // approximate
	FastIndexSize int    `json:"fast_index_size"`
	FileEnd       int64  `json:"file_end"` // data-file append position
	Sequence      uint64 `json:"sequence"` // line-sink monotonic counter
}

// Stats returns a snapshot of the store's metrics.
func (s *Store) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		Appends:          s.metrics.appends.Load(),
		AppendRetryWaves: s.metrics.appendRetryWaves.Load(),
		AppendsRejected:  s.metrics.appendsRejected.Load(),
		Batches:          s.metrics.batches.Load(),
		Records:          s.metrics.records.Load(),
		BytesWritten:     s.metrics.bytesWritten.Load(),
		Fsyncs:           s.metrics.fsyncs.Load(),
		FlushErrors:      s.metrics.flushErrors.Load(),
		IndexErrors:      s.metrics.indexErrors.Load(),
		SpuriousWakes:    s.metrics.spuriousWakes.Load(),
		Gets:             s.metrics.gets.Load(),
		FastIndexHits:    s.metrics.fastHits.Load(),
		GetMisses:        s.metrics.getMisses.Load(),
		RebuiltRecords:   s.metrics.rebuiltRecords.Load(),
		TruncatedBytes:   s.metrics.truncatedBytes.Load(),
		ScanPruned:       s.metrics.scanPruned.Load(),
		CloseLeaks:       s.metrics.closeLeaks.Load(),
		Outstanding:      s.outstanding.Load(),
		RingOccupancy:    s.disp.ring.count(),
		FastIndexSize:    s.fast.size(),
		FileEnd:          s.writeEnd.Load(),
		Sequence:         s.seq.Load(),
	}
}
