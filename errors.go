// errors.go: Error codes and sentinel errors
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import (
	"errors"

	goerrors "github.com/agilira/go-errors"
)

// Error codes used across the store. Every failure surfaced by Open and the
// Store methods carries one of these codes; helpers below classify wrapped
// errors. ParseSize and ParseDuration return plain errors without a code.
const (
	// CodeInvalidArgument covers nil stores, empty keys, over-limit lengths
	// and invalid configuration (e.g. non power-of-two ring capacity).
	CodeInvalidArgument goerrors.ErrorCode = "MNEMOSYNE_INVALID_ARGUMENT"

	// CodeNotFound is returned when a key is absent from both indexes, or
	// when an index entry references a record the data file cannot back.
	CodeNotFound goerrors.ErrorCode = "MNEMOSYNE_NOT_FOUND"

	// CodeShutdown is returned for operations issued after Close began.
	CodeShutdown goerrors.ErrorCode = "MNEMOSYNE_SHUTDOWN"

	// CodeIO covers short reads, failed vectored writes, fsync and
	// ordered-map failures.
	CodeIO goerrors.ErrorCode = "MNEMOSYNE_IO_ERROR"

	// CodeExhausted is returned when WaitForFlush times out and reported
	// through ErrorCallback when requests are still outstanding at close.
	// Append retries a full ring without a budget, and ordered-map or
	// filesystem failures carry CodeIO.
	CodeExhausted goerrors.ErrorCode = "MNEMOSYNE_RESOURCE_EXHAUSTED"

	// CodeCorruption is reported by rebuild when the data file ends in a
	// torn or unparseable tail, and returned for index values that are not
	// 12-byte locators. The integrity scan counts mismatches in ScanStats
	// instead of returning this code.
	CodeCorruption goerrors.ErrorCode = "MNEMOSYNE_CORRUPTION"
)

// Sentinel errors for the common fast-path conditions. These are stable
// instances: direct comparison and errors.Is both work.
var (
	ErrNotFound = goerrors.New(CodeNotFound, "mnemosyne: key not found")
	ErrShutdown = goerrors.New(CodeShutdown, "mnemosyne: store is not running")
	ErrNilStore = goerrors.New(CodeInvalidArgument, "mnemosyne: nil store")
)

// IsNotFound reports whether err carries CodeNotFound.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsShutdown reports whether err carries CodeShutdown.
func IsShutdown(err error) bool { return hasCode(err, CodeShutdown) }

// IsInvalidArgument reports whether err carries CodeInvalidArgument.
func IsInvalidArgument(err error) bool { return hasCode(err, CodeInvalidArgument) }

func hasCode(err error, code goerrors.ErrorCode) bool {
	var ge *goerrors.Error
	if errors.As(err, &ge) {
		return ge.Code == code
	}
	return false
}
