// debug.go: Test-only index manipulation helpers
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import goerrors "github.com/agilira/go-errors"

// DebugPutIndex writes a raw locator for key into both indexes, bypassing
// the append pipeline. Test-only: it can create entries no record backs,
// which is exactly what integrity-scan tests need.
func (s *Store) DebugPutIndex(key []byte, offset uint64, length uint32) error {
	if s == nil {
		return ErrNilStore
	}
	if len(key) == 0 {
		return goerrors.New(CodeInvalidArgument, "mnemosyne: key cannot be empty")
	}
	loc := locator{offset: offset, vlen: length}
	if err := s.index.put(key, loc); err != nil {
		return err
	}
	s.fast.put(key, loc)
	return nil
}

// DebugLookup returns the raw locator for key, consulting the fast-index
// first and the ordered-map second. Test-only.
func (s *Store) DebugLookup(key []byte) (offset uint64, length uint32, err error) {
	if s == nil {
		return 0, 0, ErrNilStore
	}
	if len(key) == 0 {
		return 0, 0, goerrors.New(CodeInvalidArgument, "mnemosyne: key cannot be empty")
	}
	if loc, ok := s.fast.get(key); ok {
		return loc.offset, loc.vlen, nil
	}
	raw, found, err := s.index.get(key)
	if err != nil {
		return 0, 0, err
	}
	if !found {
		return 0, 0, ErrNotFound
	}
	loc, err := decodeLocator(raw)
	if err != nil {
		return 0, 0, err
	}
	return loc.offset, loc.vlen, nil
}
