// rebuild.go: Crash-recovery index reconstruction
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import goerrors "github.com/agilira/go-errors"

// rebuildTxnRecords bounds how many locators one rebuild transaction
// carries before it is committed.
const rebuildTxnRecords = 512

// rebuild walks the data file from offset zero and reconstructs both
// indexes from the records found. Each record is accepted only after its
// header parses, its lengths pass the configured and hard maxima, its key
// is readable, and a probe of the value's final byte proves the payload is
// fully present. The walk stops at the first incomplete record; the offset
// before it is the last good end, and when TruncateOnRebuild is set the
// torn tail past it is cut off.
//
// Rebuild is idempotent: re-running it over the same file rewrites the
// same locators, last writer wins. It runs before the workers start, so it
// owns the file and both indexes exclusively.
func (s *Store) rebuild() error {
	end := s.writeEnd.Load()
	var off int64

	var hdr [recordHeaderSize]byte
	var probe [1]byte
	pending := make([]indexEntry, 0, rebuildTxnRecords)

	flush := func() error {
		if err := s.index.putBatch(pending); err != nil {
			return err
		}
		s.fast.putBatch(pending)
		pending = pending[:0]
		return nil
	}

	for off+recordHeaderSize <= end {
		if _, err := s.file.ReadAt(hdr[:], off); err != nil {
			break
		}
		klen, vlen := parseRecordHeader(hdr[:])

		if klen == 0 || int(klen) > s.cfg.MaxKeyBytes || klen > HardKeyMax {
			break
		}
		if int(vlen) > s.cfg.MaxValueBytes || vlen > HardValueMax {
			break
		}
		next := off + recordSize(int(klen), int(vlen))
		if next > end {
			break
		}

		key := make([]byte, klen)
		if _, err := s.file.ReadAt(key, off+recordHeaderSize); err != nil {
			break
		}
		if vlen > 0 {
			// Probe the value's last byte to prove the payload is there.
			if _, err := s.file.ReadAt(probe[:], next-1); err != nil {
				break
			}
		}

		pending = append(pending, indexEntry{
			key: key,
			loc: locator{offset: uint64(off), vlen: vlen},
		})
		if len(pending) >= rebuildTxnRecords {
			if err := flush(); err != nil {
				return err
			}
		}

		s.metrics.rebuiltRecords.Add(1)
		off = next
	}
	if err := flush(); err != nil {
		return err
	}

	lastGoodEnd := off
	if lastGoodEnd < end {
		torn := end - lastGoodEnd
		s.reportError("rebuild", goerrors.New(CodeCorruption,
			"mnemosyne: torn tail found at end of data file"))
		if s.cfg.TruncateOnRebuild {
			if err := s.file.Truncate(lastGoodEnd); err != nil {
				return goerrors.Wrap(err, CodeIO, "mnemosyne: torn tail truncation failed")
			}
			s.metrics.truncatedBytes.Add(uint64(torn))
			s.writeEnd.Store(lastGoodEnd)
		}
		// Without truncation the append position stays at the physical
		// end of file; the file remains strictly append-only.
	}
	return nil
}

// dataFileEnd returns the data file's current physical size.
func (s *Store) dataFileEnd() (int64, error) {
	st, err := s.file.Stat()
	if err != nil {
		return 0, goerrors.Wrap(err, CodeIO, "mnemosyne: cannot stat data file")
	}
	return st.Size(), nil
}
