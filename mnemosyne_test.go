// mnemosyne_test.go: Store end-to-end tests
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"
)

const testFlushTimeout = 5 * time.Second

// openTestStore opens a store in a fresh temp directory and registers
// cleanup. mutate tweaks the base config before open.
func openTestStore(t *testing.T, mutate func(*Config)) *Store {
	t.Helper()
	cfg := &Config{
		Dir:          t.TempDir(),
		Bucket:       "idx",
		RingCapacity: 256,
		BatchSize:    32,
		FsyncPolicy:  FsyncNone,
	}
	if mutate != nil {
		mutate(cfg)
	}
	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// mustGetEventually polls Get until the key becomes visible, honoring the
// store's flush-then-visible contract.
func mustGetEventually(t *testing.T, s *Store, key []byte) []byte {
	t.Helper()
	deadline := time.Now().Add(testFlushTimeout)
	for {
		value, err := s.Get(key)
		if err == nil {
			return value
		}
		if !IsNotFound(err) {
			t.Fatalf("Get(%q) failed: %v", key, err)
		}
		if time.Now().After(deadline) {
			t.Fatalf("Get(%q) never became visible", key)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAppendGet_SingleRecord(t *testing.T) {
	store := openTestStore(t, nil)

	if err := store.Append([]byte("alpha"), []byte("one")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	value := mustGetEventually(t, store, []byte("alpha"))
	if !bytes.Equal(value, []byte("one")) {
		t.Fatalf("Get = %q, want %q", value, "one")
	}
	if len(value) != 3 {
		t.Fatalf("value length = %d, want 3", len(value))
	}
}

func TestAppend_LastWriterWins(t *testing.T) {
	store := openTestStore(t, nil)

	if err := store.Append([]byte("key"), []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := store.Append([]byte("key"), []byte("second")); err != nil {
		t.Fatal(err)
	}
	if err := store.WaitForFlush(testFlushTimeout); err != nil {
		t.Fatal(err)
	}

	value := mustGetEventually(t, store, []byte("key"))
	if !bytes.Equal(value, []byte("second")) {
		t.Fatalf("Get = %q, want the later append %q", value, "second")
	}
}

func TestGet_MissingKey(t *testing.T) {
	store := openTestStore(t, nil)

	_, err := store.Get([]byte("never-written"))
	if !IsNotFound(err) {
		t.Fatalf("Get on missing key returned %v, want not-found", err)
	}
}

func TestGet_EmptyValue(t *testing.T) {
	store := openTestStore(t, nil)

	if err := store.Append([]byte("empty"), nil); err != nil {
		t.Fatal(err)
	}
	value := mustGetEventually(t, store, []byte("empty"))
	if len(value) != 0 {
		t.Fatalf("value length = %d, want 0", len(value))
	}
}

func TestAppend_Validation(t *testing.T) {
	store := openTestStore(t, func(cfg *Config) {
		cfg.MaxKeyBytes = 16
		cfg.MaxValueBytes = 32
	})

	tests := []struct {
		name  string
		key   []byte
		value []byte
		ok    bool
	}{
		{"EmptyKey", nil, []byte("v"), false},
		{"KeyAtMax", bytes.Repeat([]byte("k"), 16), []byte("v"), true},
		{"KeyOverMax", bytes.Repeat([]byte("k"), 17), []byte("v"), false},
		{"ValueAtMax", []byte("k"), bytes.Repeat([]byte("v"), 32), true},
		{"ValueOverMax", []byte("k"), bytes.Repeat([]byte("v"), 33), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Append(tt.key, tt.value)
			if tt.ok && err != nil {
				t.Fatalf("Append failed: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("Append accepted an invalid argument")
				}
				if !IsInvalidArgument(err) {
					t.Errorf("error code = %v, want invalid argument", err)
				}
			}
		})
	}
}

func TestAppend_AfterCloseFailsFast(t *testing.T) {
	store := openTestStore(t, nil)
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	err := store.Append([]byte("k"), []byte("v"))
	if !IsShutdown(err) {
		t.Fatalf("Append after Close returned %v, want shutdown", err)
	}
	if _, err := store.LineSink(); !IsShutdown(err) {
		t.Fatalf("LineSink after Close returned %v, want shutdown", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	store := openTestStore(t, nil)
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close returned %v", err)
	}

	var nilStore *Store
	if err := nilStore.Close(); err != nil {
		t.Fatalf("nil Close returned %v", err)
	}
}

func TestClose_NoOutstandingRequests(t *testing.T) {
	store := openTestStore(t, nil)

	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("key_%d", i)
		if err := store.Append([]byte(key), []byte("value")); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	stats := store.Stats()
	if stats.Outstanding != 0 {
		t.Fatalf("outstanding = %d after Close, want 0", stats.Outstanding)
	}
	if stats.CloseLeaks != 0 {
		t.Fatalf("close leaks = %d, want 0", stats.CloseLeaks)
	}
}

func TestReopen_Persistence(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Dir: dir, Bucket: "idx", RingCapacity: 256}

	store, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Append([]byte("persist"), []byte("value")); err != nil {
		t.Fatal(err)
	}
	if err := store.WaitForFlush(testFlushTimeout); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	value, err := reopened.Get([]byte("persist"))
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if !bytes.Equal(value, []byte("value")) {
		t.Fatalf("Get after reopen = %q, want %q", value, "value")
	}
}

func TestOpenDir_Convenience(t *testing.T) {
	store, err := OpenDir(t.TempDir(), "idx", 0, 512)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.Append([]byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	value := mustGetEventually(t, store, []byte("k"))
	if !bytes.Equal(value, []byte("v")) {
		t.Fatalf("Get = %q, want %q", value, "v")
	}
}

func TestConcurrentAppends(t *testing.T) {
	store := openTestStore(t, func(cfg *Config) {
		cfg.Workers = 2
	})

	const threads = 4
	const perThread = 60

	var wg sync.WaitGroup
	for th := 0; th < threads; th++ {
		wg.Add(1)
		go func(th int) {
			defer wg.Done()
			for i := 0; i < perThread; i++ {
				id := th*1000 + i
				key := fmt.Sprintf("ckey_%d", id)
				value := fmt.Sprintf("cval_%d", id)
				if err := store.Append([]byte(key), []byte(value)); err != nil {
					t.Errorf("Append(%s) failed: %v", key, err)
					return
				}
			}
		}(th)
	}
	wg.Wait()

	// Flush-marker sync: WaitForFlush returns once every accepted append,
	// the marker included, has been committed; with two workers the
	// marker's visibility alone would not prove that for earlier batches.
	if err := store.Append([]byte("flush_marker"), []byte("done")); err != nil {
		t.Fatal(err)
	}
	if err := store.WaitForFlush(testFlushTimeout); err != nil {
		t.Fatal(err)
	}
	mustGetEventually(t, store, []byte("flush_marker"))

	for th := 0; th < threads; th++ {
		for i := 0; i < perThread; i += 13 {
			id := th*1000 + i
			key := fmt.Sprintf("ckey_%d", id)
			want := fmt.Sprintf("cval_%d", id)
			value, err := store.Get([]byte(key))
			if err != nil {
				t.Fatalf("Get(%s) failed: %v", key, err)
			}
			if !bytes.Equal(value, []byte(want)) {
				t.Fatalf("Get(%s) = %q, want %q", key, value, want)
			}
		}
	}
}

func TestStats_CountsFlushedRecords(t *testing.T) {
	store := openTestStore(t, nil)

	const appends = 50
	for i := 0; i < appends; i++ {
		key := fmt.Sprintf("k%d", i)
		if err := store.Append([]byte(key), []byte("v")); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.WaitForFlush(testFlushTimeout); err != nil {
		t.Fatal(err)
	}

	stats := store.Stats()
	if stats.Appends != appends {
		t.Errorf("Appends = %d, want %d", stats.Appends, appends)
	}
	if stats.Records != appends {
		t.Errorf("Records = %d, want %d", stats.Records, appends)
	}
	if stats.Batches == 0 {
		t.Error("Batches = 0 after flushes")
	}
	if stats.Outstanding != 0 {
		t.Errorf("Outstanding = %d after WaitForFlush, want 0", stats.Outstanding)
	}
	if stats.FileEnd == 0 {
		t.Error("FileEnd = 0 after flushes")
	}
}

func TestDurabilityPolicies_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"None", func(cfg *Config) { cfg.FsyncPolicy = FsyncNone }},
		{"EachBatch", func(cfg *Config) { cfg.FsyncPolicy = FsyncEachBatch }},
		{"Interval", func(cfg *Config) {
			cfg.FsyncPolicy = FsyncInterval
			cfg.FsyncInterval = 10 * time.Millisecond
		}},
		{"IntervalBackground", func(cfg *Config) {
			cfg.FsyncPolicy = FsyncInterval
			cfg.FsyncInterval = 10 * time.Millisecond
			cfg.BackgroundFsync = true
		}},
		{"EveryN", func(cfg *Config) {
			cfg.FsyncPolicy = FsyncEveryN
			cfg.FsyncEveryN = 2
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := openTestStore(t, tt.mutate)
			for i := 0; i < 10; i++ {
				key := fmt.Sprintf("k%d", i)
				if err := store.Append([]byte(key), []byte("v")); err != nil {
					t.Fatal(err)
				}
			}
			if err := store.WaitForFlush(testFlushTimeout); err != nil {
				t.Fatal(err)
			}
			value, err := store.Get([]byte("k9"))
			if err != nil || !bytes.Equal(value, []byte("v")) {
				t.Fatalf("Get = %q, %v", value, err)
			}
			if err := store.Close(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestFsyncPolicy_String(t *testing.T) {
	tests := []struct {
		policy FsyncPolicy
		want   string
	}{
		{FsyncNone, "none"},
		{FsyncEachBatch, "each_batch"},
		{FsyncInterval, "interval"},
		{FsyncEveryN, "every_n"},
		{FsyncPolicy(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.policy.String(); got != tt.want {
			t.Errorf("FsyncPolicy(%d).String() = %q, want %q", tt.policy, got, tt.want)
		}
	}
}

func TestErrorCallback_SilentOnHealthyStore(t *testing.T) {
	var mu sync.Mutex
	var ops []string

	store := openTestStore(t, func(cfg *Config) {
		cfg.ErrorCallback = func(operation string, err error) {
			mu.Lock()
			ops = append(ops, operation)
			mu.Unlock()
		}
	})

	// A healthy store should not report anything.
	if err := store.Append([]byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := store.WaitForFlush(testFlushTimeout); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(ops) != 0 {
		t.Fatalf("callback fired on a healthy store: %v", ops)
	}
}
