// fileio_linux.go: Positional vectored appends via pwritev
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

//go:build linux

package mnemosyne

import (
	"os"

	goerrors "github.com/agilira/go-errors"
	"golang.org/x/sys/unix"
)

// writeRecordsAt appends a batch of encoded records at off with a single
// vectored positional write. The iovec order is authoritative: records
// land contiguously, in slice order. Short writes resume mid-batch until
// everything is on disk. Kernels without pwritev get the flattened
// single-write fallback.
func writeRecordsAt(f *os.File, bufs [][]byte, off int64, pool *scratchPool) error {
	fd := int(f.Fd())
	total := 0
	for _, b := range bufs {
		total += len(b)
	}

	written := 0
	iovs := bufs
	for written < total {
		n, err := unix.Pwritev(fd, iovs, off+int64(written))
		if err == unix.EINTR {
			continue
		}
		if err == unix.ENOSYS || err == unix.EOPNOTSUPP {
			return writeRecordsFlattened(f, bufs[:], off, written, total, pool)
		}
		if err != nil {
			return goerrors.Wrap(err, CodeIO, "mnemosyne: vectored append failed")
		}
		if n <= 0 {
			return goerrors.New(CodeIO, "mnemosyne: vectored append made no progress")
		}
		written += n
		iovs = advanceIovecs(bufs, written)
	}
	return nil
}

// advanceIovecs rebuilds the iovec view so the next pwritev resumes at the
// first unwritten byte.
func advanceIovecs(bufs [][]byte, written int) [][]byte {
	skipped := 0
	for i, b := range bufs {
		if skipped+len(b) > written {
			out := make([][]byte, 0, len(bufs)-i)
			out = append(out, b[written-skipped:])
			out = append(out, bufs[i+1:]...)
			return out
		}
		skipped += len(b)
	}
	return nil
}
