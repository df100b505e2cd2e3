// mnemosyne.go: Public API - durable key/value log store
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	goerrors "github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// dataFileName is the append-only data file inside the store directory.
const dataFileName = "aof.log"

// Append enqueue backoff bounds. Retrying beats failing under bursty load;
// the running-flag check keeps the loop cancelable within one iteration.
const (
	appendBackoffStart = 50 * time.Microsecond
	appendBackoffStep  = 10 * time.Microsecond
	appendBackoffCap   = 2 * time.Millisecond
	appendRetryWave    = 1000 // retries per counter increment
)

// Store is an embeddable, high-throughput durable key/value log store.
//
// Writes are staged in a lock-free ring, coalesced by a batching
// dispatcher and appended to a single append-only data file by a pool of
// flush workers; every committed record's locator lands in a persistent
// ordered-map index and an in-process fast-index. Reads are served from
// the fast-index with an ordered-map fallback.
//
// Visibility: Append is acknowledged at enqueue, and Get sees a write only
// after a worker has flushed it and updated the indexes. Callers that need
// read-your-write should use WaitForFlush or poll Get.
//
// Basic usage:
//
//	store, err := mnemosyne.OpenDir("/var/lib/app/kv", "idx", 0, 1024)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	store.Append([]byte("alpha"), []byte("one"))
type Store struct {
	cfg Config

	file  *os.File
	index *orderedIndex
	fast  *fastIndex
	disp  *dispatcher
	pool  *scratchPool

	// writeEnd is the next append offset. Workers reserve file ranges
	// with fetch-add, so the file stays strictly append-only with any
	// number of flush workers.
	writeEnd atomic.Int64

	// running publishes start-up and signals shutdown; Go atomics give it
	// the release-on-write / acquire-on-read it needs.
	running     atomic.Bool
	workerReady atomic.Bool

	// outstanding counts request objects alive between enqueue and
	// release. It must return to zero before Close completes.
	outstanding atomic.Int64

	// seq is the monotonic counter used by the log-line sink.
	seq atomic.Uint64

	sentinel *request

	workerWg sync.WaitGroup

	// Live-tunable durability knobs (see watch.go).
	fsyncIntervalNs   atomic.Int64
	fsyncEveryN       atomic.Int64
	lastFsyncNs       atomic.Int64
	batchesSinceFsync atomic.Uint64

	fsyncStop chan struct{}
	fsyncWg   sync.WaitGroup

	timeCache *timecache.TimeCache

	watchMu sync.Mutex
	watcher configWatcher

	metrics counters

	closeOnce sync.Once
	closeErr  error
}

// Open creates a store from cfg, creating the directory, data file and
// index as needed. When cfg.RebuildOnOpen is set, both indexes are
// reconstructed from the data file before the workers start.
func Open(cfg *Config) (*Store, error) {
	resolved, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(resolved.Dir, 0755); err != nil {
		return nil, goerrors.Wrap(err, CodeIO, "mnemosyne: cannot create store directory")
	}

	file, err := os.OpenFile(filepath.Join(resolved.Dir, dataFileName),
		os.O_CREATE|os.O_RDWR, resolved.FileMode)
	if err != nil {
		return nil, goerrors.Wrap(err, CodeIO, "mnemosyne: cannot open data file")
	}

	index, err := openOrderedIndex(resolved.Dir, resolved.Bucket, resolved.MapSize, resolved.FileMode)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	disp, err := newDispatcher(resolved.RingCapacity)
	if err != nil {
		_ = index.close()
		_ = file.Close()
		return nil, err
	}

	s := &Store{
		cfg:       resolved,
		file:      file,
		index:     index,
		fast:      newFastIndex(),
		disp:      disp,
		pool:      newScratchPool(resolved.Workers*2+2, 64<<10),
		sentinel:  newSentinel(),
		fsyncStop: make(chan struct{}),
		timeCache: timecache.NewWithResolution(time.Millisecond),
	}
	s.fsyncIntervalNs.Store(int64(resolved.FsyncInterval))
	s.fsyncEveryN.Store(int64(resolved.FsyncEveryN))

	st, err := file.Stat()
	if err != nil {
		s.teardown()
		return nil, goerrors.Wrap(err, CodeIO, "mnemosyne: cannot stat data file")
	}
	s.writeEnd.Store(st.Size())

	if resolved.RebuildOnOpen {
		if err := s.rebuild(); err != nil {
			s.teardown()
			return nil, err
		}
	}

	s.running.Store(true)
	for i := 0; i < resolved.Workers; i++ {
		s.workerWg.Add(1)
		go s.runWorker()
	}
	// Publish start-up: Append is accepted the moment Open returns, so at
	// least one worker must be in its loop before then.
	for !s.workerReady.Load() {
		runtime.Gosched()
	}

	if resolved.FsyncPolicy == FsyncInterval && resolved.BackgroundFsync {
		s.fsyncWg.Add(1)
		go s.runBackgroundFsync()
	}

	return s, nil
}

// OpenDir is the convenience constructor: directory, bucket name, ordered
// map size hint and ring capacity, defaults for everything else.
func OpenDir(dir, bucket string, mapSize int64, ringCapacity int) (*Store, error) {
	return Open(&Config{
		Dir:          dir,
		Bucket:       bucket,
		MapSize:      mapSize,
		RingCapacity: ringCapacity,
	})
}

// Append stages one key/value pair for asynchronous flushing. The key and
// value are copied into a single owned buffer before Append returns, so
// the caller may reuse its slices immediately.
//
// A full ring is absorbed by bounded exponential backoff rather than
// surfaced; the only fast failures are invalid arguments and shutdown.
// There is no per-request completion signal: use WaitForFlush or poll Get.
func (s *Store) Append(key, value []byte) error {
	if s == nil {
		return ErrNilStore
	}
	if len(key) == 0 {
		s.metrics.appendsRejected.Add(1)
		return goerrors.New(CodeInvalidArgument, "mnemosyne: key cannot be empty")
	}
	if len(key) > s.cfg.MaxKeyBytes {
		s.metrics.appendsRejected.Add(1)
		return goerrors.New(CodeInvalidArgument, "mnemosyne: key exceeds MaxKeyBytes")
	}
	if len(value) > s.cfg.MaxValueBytes {
		s.metrics.appendsRejected.Add(1)
		return goerrors.New(CodeInvalidArgument, "mnemosyne: value exceeds MaxValueBytes")
	}
	if !s.running.Load() {
		s.metrics.appendsRejected.Add(1)
		return ErrShutdown
	}

	req := newRequest(key, value)
	s.outstanding.Add(1)

	backoff := appendBackoffStart
	retries := 0
	for {
		if !s.running.Load() {
			// Shutdown observed mid-retry: give the request back.
			s.outstanding.Add(-1)
			s.metrics.appendsRejected.Add(1)
			return ErrShutdown
		}
		if s.disp.enqueue(req) {
			s.metrics.appends.Add(1)
			return nil
		}
		retries++
		if retries%appendRetryWave == 0 {
			s.metrics.appendRetryWaves.Add(1)
		}
		time.Sleep(backoff)
		backoff = backoff + backoff/2 + appendBackoffStep
		if backoff > appendBackoffCap {
			backoff = appendBackoffCap
		}
	}
}

// Get returns a copy of the most recently flushed value for key. The
// returned slice is owned by the caller. Absent keys, stale index entries
// and index/file mismatches all come back as ErrNotFound; callers that
// need to tell those apart run IntegrityScan.
func (s *Store) Get(key []byte) ([]byte, error) {
	if s == nil {
		return nil, ErrNilStore
	}
	if len(key) == 0 {
		return nil, goerrors.New(CodeInvalidArgument, "mnemosyne: key cannot be empty")
	}
	if len(key) > s.cfg.MaxKeyBytes {
		return nil, goerrors.New(CodeInvalidArgument, "mnemosyne: key exceeds MaxKeyBytes")
	}
	s.metrics.gets.Add(1)

	loc, ok := s.fast.get(key)
	if ok {
		s.metrics.fastHits.Add(1)
	} else {
		raw, found, err := s.index.get(key)
		if err != nil {
			return nil, err
		}
		if !found {
			s.metrics.getMisses.Add(1)
			return nil, ErrNotFound
		}
		loc, err = decodeLocator(raw)
		if err != nil {
			s.metrics.getMisses.Add(1)
			return nil, ErrNotFound
		}
		// Back-fill the fast path for the next reader.
		s.fast.put(key, loc)
	}

	value, err := s.readValue(loc)
	if err != nil {
		return nil, err
	}
	if value == nil {
		s.metrics.getMisses.Add(1)
		return nil, ErrNotFound
	}
	return value, nil
}

// readValue fetches a locator's value bytes from the data file. A nil
// result with nil error means the locator does not match the on-disk
// record (stale or corrupt entry).
func (s *Store) readValue(loc locator) ([]byte, error) {
	var hdr [recordHeaderSize]byte
	if _, err := s.file.ReadAt(hdr[:], int64(loc.offset)); err != nil {
		// Short read at the offset: entry points past the committed file.
		return nil, nil
	}
	klen, vlen := parseRecordHeader(hdr[:])
	if klen == 0 || klen > headerKeySanityCap {
		return nil, nil
	}
	if vlen != loc.vlen {
		// Index/file mismatch reads as not-found.
		return nil, nil
	}

	value := make([]byte, vlen)
	if vlen == 0 {
		return value, nil
	}
	if _, err := s.file.ReadAt(value, int64(loc.offset)+recordHeaderSize+int64(klen)); err != nil {
		return nil, nil
	}
	return value, nil
}

// WaitForFlush blocks until every accepted append has been flushed and
// indexed (the outstanding-request counter reaches zero), or the timeout
// elapses. This is the recommended wait for read-your-write callers.
func (s *Store) WaitForFlush(timeout time.Duration) error {
	if s == nil {
		return ErrNilStore
	}
	deadline := time.Now().Add(timeout)
	for s.outstanding.Load() > 0 {
		if time.Now().After(deadline) {
			return goerrors.New(CodeExhausted, "mnemosyne: flush wait timed out")
		}
		time.Sleep(100 * time.Microsecond)
	}
	return nil
}

// Close shuts the store down: it clears the running flag, wakes and joins
// every worker, drains any stragglers, and tears down the index,
// data file and timers. Close is idempotent and nil-safe; Append fails
// fast with ErrShutdown once Close has begun.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.running.Store(false)

		// Wake the workers: the sentinel carries one token, the extra
		// wakes pop every other blocked worker out of next.
		for !s.disp.enqueue(s.sentinel) {
			time.Sleep(100 * time.Microsecond)
		}
		s.disp.wake(uint64(s.cfg.Workers))

		s.workerWg.Wait()

		close(s.fsyncStop)
		s.fsyncWg.Wait()

		// Final drain: anything still in the ring was never flushed.
		for _, req := range s.disp.drain() {
			if req != s.sentinel {
				s.metrics.closeLeaks.Add(1)
			}
			s.releaseRequest(req)
		}
		if leaked := s.outstanding.Load(); leaked > 0 {
			s.metrics.closeLeaks.Add(uint64(leaked))
			s.reportError("close", goerrors.New(CodeExhausted,
				"mnemosyne: requests still outstanding at close"))
		}

		s.stopWatcher()

		if err := s.file.Sync(); err != nil {
			s.reportError("close", goerrors.Wrap(err, CodeIO, "mnemosyne: final fsync failed"))
		}
		s.closeErr = s.teardown()
	})
	return s.closeErr
}

// teardown releases every owned resource. Safe to call on a partially
// constructed store.
func (s *Store) teardown() error {
	var firstErr error
	if s.index != nil {
		if err := s.index.close(); err != nil && firstErr == nil {
			firstErr = goerrors.Wrap(err, CodeIO, "mnemosyne: index close failed")
		}
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = goerrors.Wrap(err, CodeIO, "mnemosyne: data file close failed")
		}
	}
	if s.disp != nil {
		_ = s.disp.close()
	}
	if s.timeCache != nil {
		s.timeCache.Stop()
	}
	return firstErr
}

// reportError invokes the error callback if set.
func (s *Store) reportError(operation string, err error) {
	if s.cfg.ErrorCallback != nil {
		s.cfg.ErrorCallback(operation, err)
	}
}
