// sink.go: Log-line ingestion sink
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import "encoding/binary"

// lineKeySize is the fixed sink key layout: ts_ns(8) || seq(8) in native
// byte order, where seq is the store's monotonic counter. The timestamp
// orders lines coarsely, the sequence breaks ties and guarantees
// uniqueness across concurrent writers.
const lineKeySize = 16

// LineSink adapts the store into an io.Writer so asynchronous loggers can
// use it as their durable ingestion sink. Every Write becomes one append
// whose key is the timestamp/sequence pair and whose value is the line.
//
//	sink, _ := store.LineSink()
//	logger.SetOutput(sink)
type LineSink struct {
	store *Store
}

// LineSink attaches a log-line sink to the store. Fails once Close has
// begun.
func (s *Store) LineSink() (*LineSink, error) {
	if s == nil {
		return nil, ErrNilStore
	}
	if !s.running.Load() {
		return nil, ErrShutdown
	}
	return &LineSink{store: s}, nil
}

// Write appends one log line under a fresh ts_ns||seq key. Implements
// io.Writer: returns len(p) once the line has been accepted for flushing.
func (k *LineSink) Write(p []byte) (int, error) {
	var key [lineKeySize]byte
	ts := k.store.timeCache.CachedTime().UnixNano()
	seq := k.store.seq.Add(1)
	binary.NativeEndian.PutUint64(key[0:8], uint64(ts))
	binary.NativeEndian.PutUint64(key[8:16], seq)

	if err := k.store.Append(key[:], p); err != nil {
		return 0, err
	}
	return len(p), nil
}
