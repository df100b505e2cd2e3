// request.go: Append request ownership model
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

// request is one pending append: a single contiguous buffer holding the
// fully encoded on-disk record (header + key + value). The buffer is
// allocated by Append, owned by the ring from enqueue to dequeue, consumed
// by a flush worker, and dropped after release. Nothing else ever aliases
// it, so the happens-before edge of a successful dequeue is the only
// synchronization its contents need.
type request struct {
	buf  []byte // klen(4) | vlen(4) | key | value
	klen uint32
	vlen uint32
}

// newRequest encodes key and value into one owned record buffer.
func newRequest(key, value []byte) *request {
	r := &request{
		buf:  make([]byte, recordSize(len(key), len(value))),
		klen: uint32(len(key)),
		vlen: uint32(len(value)),
	}
	putRecordHeader(r.buf, r.klen, r.vlen)
	copy(r.buf[recordHeaderSize:], key)
	copy(r.buf[recordHeaderSize+len(key):], value)
	return r
}

// key returns the key bytes inside the record buffer.
func (r *request) key() []byte {
	return r.buf[recordHeaderSize : recordHeaderSize+r.klen]
}

// size is the record's on-disk footprint.
func (r *request) size() int64 {
	return int64(len(r.buf))
}

// newSentinel builds the distinguished shutdown request. A sentinel has an
// empty key and value; workers recognize it by pointer identity, never by
// content.
func newSentinel() *request {
	return &request{buf: make([]byte, recordHeaderSize)}
}
