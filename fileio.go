// fileio.go: Shared flattened-write fallback
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import (
	"os"

	goerrors "github.com/agilira/go-errors"
)

// writeRecordsFlattened copies the batch into one contiguous scratch
// buffer and issues a single positional write, resuming at skip bytes.
// Fallback path for kernels without pwritev and for non-Linux builds.
func writeRecordsFlattened(f *os.File, bufs [][]byte, off int64, skip, total int, pool *scratchPool) error {
	flat := pool.get(total)
	defer pool.put(flat)

	pos := 0
	for _, b := range bufs {
		pos += copy(flat[pos:], b)
	}

	for skip < total {
		n, err := f.WriteAt(flat[skip:], off+int64(skip))
		if err != nil {
			return goerrors.Wrap(err, CodeIO, "mnemosyne: flattened append failed")
		}
		if n <= 0 {
			return goerrors.New(CodeIO, "mnemosyne: flattened append made no progress")
		}
		skip += n
	}
	return nil
}
