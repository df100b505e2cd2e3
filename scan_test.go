// scan_test.go: Integrity scanner tests
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import (
	"fmt"
	"testing"
)

func TestIntegrityScan_HealthyStore(t *testing.T) {
	store := openTestStore(t, nil)

	const distinct = 20
	for i := 0; i < distinct; i++ {
		key := fmt.Sprintf("hk_%d", i)
		if err := store.Append([]byte(key), []byte("value")); err != nil {
			t.Fatal(err)
		}
	}
	// Overwrites must not inflate the distinct count.
	if err := store.Append([]byte("hk_0"), []byte("newer")); err != nil {
		t.Fatal(err)
	}
	if err := store.WaitForFlush(testFlushTimeout); err != nil {
		t.Fatal(err)
	}

	stats, err := store.IntegrityScan(false)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Errors != 0 {
		t.Errorf("Errors = %d, want 0 on a healthy store", stats.Errors)
	}
	if stats.Pruned != 0 {
		t.Errorf("Pruned = %d, want 0 without prune", stats.Pruned)
	}
	if stats.Valid != distinct {
		t.Errorf("Valid = %d, want %d distinct keys", stats.Valid, distinct)
	}
	if stats.Scanned != distinct {
		t.Errorf("Scanned = %d, want %d", stats.Scanned, distinct)
	}
}

func TestIntegrityScan_PrunesStaleEntry(t *testing.T) {
	store := openTestStore(t, nil)

	if err := store.Append([]byte("ik"), []byte("val")); err != nil {
		t.Fatal(err)
	}
	if err := store.WaitForFlush(testFlushTimeout); err != nil {
		t.Fatal(err)
	}

	// Plant an index entry far beyond the end of the data file.
	if err := store.DebugPutIndex([]byte("stale"), 5*1024*1024, 55); err != nil {
		t.Fatal(err)
	}

	stats, err := store.IntegrityScan(true)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pruned < 1 {
		t.Fatalf("Pruned = %d, want >= 1", stats.Pruned)
	}
	if stats.Valid != 1 {
		t.Errorf("Valid = %d, want 1", stats.Valid)
	}

	if _, err := store.Get([]byte("stale")); !IsNotFound(err) {
		t.Fatalf("Get(stale) after prune returned %v, want not-found", err)
	}
	if value, err := store.Get([]byte("ik")); err != nil || string(value) != "val" {
		t.Fatalf("Get(ik) = %q, %v; prune must not touch valid entries", value, err)
	}
}

func TestIntegrityScan_CountsWithoutPruning(t *testing.T) {
	store := openTestStore(t, nil)

	if err := store.Append([]byte("ok"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := store.WaitForFlush(testFlushTimeout); err != nil {
		t.Fatal(err)
	}
	if err := store.DebugPutIndex([]byte("ghost"), 1<<30, 9); err != nil {
		t.Fatal(err)
	}

	stats, err := store.IntegrityScan(false)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Errors != 1 {
		t.Fatalf("Errors = %d, want 1", stats.Errors)
	}
	if stats.Pruned != 0 {
		t.Fatalf("Pruned = %d, want 0 without prune", stats.Pruned)
	}

	// The entry must still be there: scanning without prune is read-only.
	if _, _, err := store.DebugLookup([]byte("ghost")); err != nil {
		t.Fatalf("DebugLookup(ghost) after read-only scan failed: %v", err)
	}
}

func TestIntegrityScan_MismatchedLengthPruned(t *testing.T) {
	store := openTestStore(t, nil)

	if err := store.Append([]byte("victim"), []byte("payload")); err != nil {
		t.Fatal(err)
	}
	if err := store.WaitForFlush(testFlushTimeout); err != nil {
		t.Fatal(err)
	}

	// Point the entry at the real record but lie about the value length.
	off, _, err := store.DebugLookup([]byte("victim"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.DebugPutIndex([]byte("victim"), off, 3); err != nil {
		t.Fatal(err)
	}

	stats, err := store.IntegrityScan(true)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pruned != 1 {
		t.Fatalf("Pruned = %d, want 1 for the length mismatch", stats.Pruned)
	}
}
