// record.go: On-disk record and locator encoding
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import (
	"encoding/binary"

	goerrors "github.com/agilira/go-errors"
)

// On-disk record layout (little-endian, self-describing):
//
//	off+0        u32 klen
//	off+4        u32 vlen
//	off+8        klen bytes key
//	off+8+klen   vlen bytes value
//
// A record is committed once header and payload are both on disk; a torn
// tail at the end of the file is tolerated and handled by rebuild.
const (
	recordHeaderSize = 8

	// HardKeyMax is the absolute key length ceiling. Config.MaxKeyBytes may
	// lower it but never raise it.
	HardKeyMax = 32 << 20 // 32 MiB

	// HardValueMax is the absolute value length ceiling.
	HardValueMax = 128 << 20 // 128 MiB

	// headerKeySanityCap bounds the klen the read path will trust from a
	// raw header probe before declaring the index entry stale.
	headerKeySanityCap = 16 << 20 // 16 MiB
)

// recordSize returns the total on-disk footprint of a record.
func recordSize(klen, vlen int) int64 {
	return recordHeaderSize + int64(klen) + int64(vlen)
}

// putRecordHeader writes the 8-byte record header into dst.
func putRecordHeader(dst []byte, klen, vlen uint32) {
	binary.LittleEndian.PutUint32(dst[0:4], klen)
	binary.LittleEndian.PutUint32(dst[4:8], vlen)
}

// parseRecordHeader decodes klen and vlen from an 8-byte header.
func parseRecordHeader(hdr []byte) (klen, vlen uint32) {
	return binary.LittleEndian.Uint32(hdr[0:4]), binary.LittleEndian.Uint32(hdr[4:8])
}

// locator is the index value: the byte offset of a record's header start
// and the record's value length.
type locator struct {
	offset uint64
	vlen   uint32
}

// locatorSize is the exact encoded size of a locator. Index entries of any
// other length are treated as corrupt.
const locatorSize = 12

// encode writes the locator as offset(u64 LE) || vlen(u32 LE).
func (l locator) encode(dst []byte) {
	binary.LittleEndian.PutUint64(dst[0:8], l.offset)
	binary.LittleEndian.PutUint32(dst[8:12], l.vlen)
}

// decodeLocator parses an index value. Anything but exactly 12 bytes is
// rejected as corrupt.
func decodeLocator(v []byte) (locator, error) {
	if len(v) != locatorSize {
		return locator{}, goerrors.New(CodeCorruption, "mnemosyne: index value is not a 12-byte locator")
	}
	return locator{
		offset: binary.LittleEndian.Uint64(v[0:8]),
		vlen:   binary.LittleEndian.Uint32(v[8:12]),
	}, nil
}
