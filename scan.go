// scan.go: Index/file integrity scanner
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import "bytes"

// ScanStats aggregates one integrity scan.
type ScanStats struct {
	Scanned uint64 `json:"scanned"` // index entries visited
	Valid   uint64 `json:"valid"`   // entries backed by a matching record
	Pruned  uint64 `json:"pruned"`  // entries removed (prune mode only)
	Errors  uint64 `json:"errors"`  // mismatches left in place
}

// IntegrityScan cross-checks every ordered-map entry against the on-disk
// record it points to: locator shape, bounds, header lengths, key bytes
// and value length all have to line up. With prune set, failed entries are
// removed from both indexes; otherwise they are only counted.
//
// Pruning candidates are collected during a read-consistent iteration and
// deleted afterwards, so the walk never mutates the bucket under its own
// cursor.
func (s *Store) IntegrityScan(prune bool) (ScanStats, error) {
	var stats ScanStats
	if s == nil {
		return stats, ErrNilStore
	}

	end, err := s.dataFileEnd()
	if err != nil {
		return stats, err
	}

	var bad [][]byte
	err = s.index.iterate(func(key, value []byte) error {
		stats.Scanned++
		if s.entryIsValid(key, value, end) {
			stats.Valid++
			return nil
		}
		if prune {
			k := make([]byte, len(key))
			copy(k, key)
			bad = append(bad, k)
			return nil
		}
		stats.Errors++
		return nil
	})
	if err != nil {
		return stats, err
	}

	if prune && len(bad) > 0 {
		if err := s.index.deleteBatch(bad); err != nil {
			return stats, err
		}
		s.fast.deleteBatch(bad)
		stats.Pruned = uint64(len(bad))
		s.metrics.scanPruned.Add(stats.Pruned)
	}
	return stats, nil
}

// entryIsValid runs the full cross-check for one index entry against the
// data file, which must end at end.
func (s *Store) entryIsValid(key, value []byte, end int64) bool {
	loc, err := decodeLocator(value)
	if err != nil {
		return false
	}
	if int64(loc.offset)+recordHeaderSize > end {
		return false
	}

	var hdr [recordHeaderSize]byte
	if _, err := s.file.ReadAt(hdr[:], int64(loc.offset)); err != nil {
		return false
	}
	klen, vlen := parseRecordHeader(hdr[:])
	if int64(loc.offset)+recordSize(int(klen), int(vlen)) > end {
		return false
	}
	if int(klen) != len(key) {
		return false
	}

	diskKey := s.pool.get(int(klen))
	defer s.pool.put(diskKey)
	if _, err := s.file.ReadAt(diskKey, int64(loc.offset)+recordHeaderSize); err != nil {
		return false
	}
	if !bytes.Equal(diskKey, key) {
		return false
	}

	return vlen == loc.vlen
}
