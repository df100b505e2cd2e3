// index.go: Persistent ordered-map index backed by bbolt
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	goerrors "github.com/agilira/go-errors"
	bolt "go.etcd.io/bbolt"
)

// indexFileName is the ordered-map environment file inside the store
// directory. bbolt owns its own lock discipline for it.
const indexFileName = "index.db"

// errStopIteration is the early-stop code for orderedIndex.iterate.
var errStopIteration = errors.New("mnemosyne: stop iteration")

// indexEntry pairs a key with its locator for batched transactions.
type indexEntry struct {
	key []byte
	loc locator
}

// orderedIndex is the durable key -> locator mapping. Each put and get
// is a single serializable transaction; putBatch and deleteBatch group
// many writes into one transaction, so a crash mid-batch leaves a prefix
// of the batch committed, never a torn entry.
type orderedIndex struct {
	db     *bolt.DB
	bucket []byte
}

// openOrderedIndex opens (or creates) the environment file and the bucket.
// mapSize is a pre-mapping hint; 0 defers to bbolt's default growth.
func openOrderedIndex(dir, bucket string, mapSize int64, mode os.FileMode) (*orderedIndex, error) {
	opts := &bolt.Options{Timeout: time.Second}
	if mapSize > 0 {
		opts.InitialMmapSize = int(mapSize)
	}
	db, err := bolt.Open(filepath.Join(dir, indexFileName), mode, opts)
	if err != nil {
		return nil, goerrors.Wrap(err, CodeIO, "mnemosyne: cannot open index environment")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, goerrors.Wrap(err, CodeIO, "mnemosyne: cannot create index bucket")
	}
	return &orderedIndex{db: db, bucket: []byte(bucket)}, nil
}

// put stores one locator, last-writer-wins.
func (ix *orderedIndex) put(key []byte, loc locator) error {
	var buf [locatorSize]byte
	loc.encode(buf[:])
	err := ix.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(ix.bucket).Put(key, buf[:])
	})
	if err != nil {
		return goerrors.Wrap(err, CodeIO, "mnemosyne: index put failed")
	}
	return nil
}

// putBatch stores many locators inside one transaction.
func (ix *orderedIndex) putBatch(entries []indexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	err := ix.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(ix.bucket)
		for _, e := range entries {
			// bbolt keeps the value slice until commit, so each entry
			// needs its own buffer.
			buf := make([]byte, locatorSize)
			e.loc.encode(buf)
			if err := b.Put(e.key, buf); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return goerrors.Wrap(err, CodeIO, "mnemosyne: index batch put failed")
	}
	return nil
}

// get returns the raw locator bytes for key, or (nil, false) when absent.
// The caller validates the payload via decodeLocator.
func (ix *orderedIndex) get(key []byte) ([]byte, bool, error) {
	var out []byte
	err := ix.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(ix.bucket).Get(key)
		if v != nil {
			out = make([]byte, len(v))
			copy(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, false, goerrors.Wrap(err, CodeIO, "mnemosyne: index get failed")
	}
	return out, out != nil, nil
}

// deleteBatch removes many keys inside one transaction.
func (ix *orderedIndex) deleteBatch(keys [][]byte) error {
	if len(keys) == 0 {
		return nil
	}
	err := ix.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(ix.bucket)
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return goerrors.Wrap(err, CodeIO, "mnemosyne: index batch delete failed")
	}
	return nil
}

// iterate walks every entry under a read-consistent snapshot in key order.
// fn may return errStopIteration to stop early without error; mutating the
// bucket from fn is not allowed, so pruning callers buffer their victims
// and delete after the walk.
func (ix *orderedIndex) iterate(fn func(key, value []byte) error) error {
	err := ix.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(ix.bucket).ForEach(fn)
	})
	if errors.Is(err, errStopIteration) {
		return nil
	}
	if err != nil {
		return goerrors.Wrap(err, CodeIO, "mnemosyne: index iteration failed")
	}
	return nil
}

// close closes the environment. The bucket handle needs no separate
// teardown; it dies with the environment.
func (ix *orderedIndex) close() error {
	return ix.db.Close()
}
