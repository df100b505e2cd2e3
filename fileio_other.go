// fileio_other.go: Flattened positional appends for non-Linux platforms
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package mnemosyne

import "os"

// writeRecordsAt appends a batch of encoded records at off. Platforms
// without a positional scatter-write get one flattened WriteAt, which
// preserves the contiguity and ordering guarantees of the Linux path.
func writeRecordsAt(f *os.File, bufs [][]byte, off int64, pool *scratchPool) error {
	total := 0
	for _, b := range bufs {
		total += len(b)
	}
	return writeRecordsFlattened(f, bufs, off, 0, total, pool)
}
