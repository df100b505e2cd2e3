// Package mnemosyne provides an embeddable, durable key/value log store,
// designed, originally, as the ingestion sink for Iris.
//
// Mnemosyne appends every record to a single append-only data file and
// indexes it twice: durably in an embedded ordered-map (bbolt) and in an
// in-process fast-index for reads. Writes are staged in a lock-free ring
// buffer, coalesced by a batching dispatcher and committed by a pool of
// flush workers with a single vectored write per batch, so producers never
// block on the filesystem.
//
// # Quick Start
//
// Open a store, append, read back once flushed:
//
//	store, err := mnemosyne.OpenDir("/var/lib/app/kv", "idx", 0, 1024)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	store.Append([]byte("alpha"), []byte("one"))
//	store.WaitForFlush(time.Second)
//	value, _ := store.Get([]byte("alpha"))
//
// # Configuration
//
// Full control through Config:
//
//	store, err := mnemosyne.Open(&mnemosyne.Config{
//		Dir:               "/var/lib/app/kv",
//		Bucket:            "idx",
//		MapSizeStr:        "1GB",
//		RingCapacity:      4096,
//		BatchSize:         64,
//		FsyncPolicy:       mnemosyne.FsyncInterval,
//		FsyncIntervalStr:  "100ms",
//		BackgroundFsync:   true,
//		RebuildOnOpen:     true,
//		TruncateOnRebuild: true,
//		Workers:           2,
//		ErrorCallback: func(operation string, err error) {
//			log.Printf("store error (%s): %v", operation, err)
//		},
//	})
//
// # Durability
//
// Four fsync policies trade latency for crash safety: FsyncNone,
// FsyncEachBatch, FsyncInterval (optionally on a dedicated background
// goroutine) and FsyncEveryN. Whatever the policy, a record becomes
// visible to Get only after a worker has committed it and updated both
// indexes; Append itself is acknowledged at enqueue.
//
// # Crash Recovery
//
// With RebuildOnOpen set, the data file is scanned at open and both
// indexes are reconstructed from the complete records found. A torn tail
// from a mid-write crash stops the scan and, with TruncateOnRebuild, is
// cut off so the file ends on a record boundary. IntegrityScan
// cross-checks every index entry against the file on demand and can prune
// entries nothing backs.
//
// # Logger Integration
//
// LineSink adapts the store into an io.Writer whose keys are
// timestamp/sequence pairs, ready to sit under an asynchronous logger:
//
//	sink, _ := store.LineSink()
//	log.SetOutput(sink)
//
// # Thread Safety
//
// All Store methods are safe for concurrent use. Append may be called
// from any number of goroutines; the dispatcher serializes them onto the
// ring, and the fast-index read/write lock is never held across I/O.
package mnemosyne
