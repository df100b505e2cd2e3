// config.go: Store configuration and parsing utilities
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/agilira/go-errors"
)

// FsyncPolicy selects when a flush worker forces buffered writes to
// stable storage.
type FsyncPolicy int

const (
	// FsyncNone never fsyncs from the workers. A crash may lose any
	// batches still buffered by the OS.
	FsyncNone FsyncPolicy = iota

	// FsyncEachBatch fsyncs after every successful batch commit.
	FsyncEachBatch

	// FsyncInterval fsyncs at most once per FsyncInterval. With
	// BackgroundFsync set, a dedicated goroutine issues the fsyncs
	// instead of the workers.
	FsyncInterval

	// FsyncEveryN fsyncs after every FsyncEveryN batches.
	FsyncEveryN
)

// String returns a string representation of the FsyncPolicy.
func (p FsyncPolicy) String() string {
	switch p {
	case FsyncNone:
		return "none"
	case FsyncEachBatch:
		return "each_batch"
	case FsyncInterval:
		return "interval"
	case FsyncEveryN:
		return "every_n"
	default:
		return "unknown"
	}
}

// Config holds all store options. Dir and Bucket are required; every other
// field has a working default. String-based fields (MapSizeStr,
// FsyncIntervalStr, MaxKeyBytesStr, MaxValueBytesStr) take precedence over
// their numeric equivalents.
type Config struct {
	// Dir is the base directory for the data file and the ordered-map
	// index. Created with mode 0755 if missing.
	Dir string `json:"dir"`

	// Bucket is the name of the ordered-map bucket holding the locators.
	Bucket string `json:"bucket"`

	// MapSize is the ordered-map size hint in bytes. 0 uses the
	// implementation default.
	MapSize int64 `json:"map_size"`

	// MapSizeStr is MapSize as a string (e.g. "1GB"). Preferred.
	MapSizeStr string `json:"map_size_str"`

	// RingCapacity is the dispatcher ring slot count. Must be a power of
	// two >= 2. 0 defaults to 1024.
	RingCapacity int `json:"ring_capacity"`

	// BatchSize is the maximum records per flush. 0 defaults to 32.
	BatchSize int `json:"batch_size"`

	// FsyncPolicy selects the durability policy.
	FsyncPolicy FsyncPolicy `json:"fsync_policy"`

	// FsyncInterval is used when FsyncPolicy is FsyncInterval.
	FsyncInterval time.Duration `json:"fsync_interval"`

	// FsyncIntervalStr is FsyncInterval as a string (e.g. "100ms", "2s").
	FsyncIntervalStr string `json:"fsync_interval_str"`

	// FsyncEveryN is used when FsyncPolicy is FsyncEveryN. 0 means 1.
	FsyncEveryN int `json:"fsync_every_n"`

	// RebuildOnOpen scans the data file at open and reconstructs both
	// indexes from the records found.
	RebuildOnOpen bool `json:"rebuild_on_open"`

	// TruncateOnRebuild truncates a torn tail discovered during rebuild.
	TruncateOnRebuild bool `json:"truncate_on_rebuild"`

	// BackgroundFsync spawns a dedicated fsync goroutine when the policy
	// is FsyncInterval.
	BackgroundFsync bool `json:"background_fsync"`

	// MaxKeyBytes caps key lengths. 0 means HardKeyMax; values above
	// HardKeyMax are clamped to it.
	MaxKeyBytes int `json:"max_key_bytes"`

	// MaxKeyBytesStr is MaxKeyBytes as a string (e.g. "64KB").
	MaxKeyBytesStr string `json:"max_key_bytes_str"`

	// MaxValueBytes caps value lengths. 0 means HardValueMax; values above
	// HardValueMax are clamped to it.
	MaxValueBytes int `json:"max_value_bytes"`

	// MaxValueBytesStr is MaxValueBytes as a string (e.g. "16MB").
	MaxValueBytesStr string `json:"max_value_bytes_str"`

	// Workers is the flush worker count. 0 defaults to 1.
	Workers int `json:"workers"`

	// FileMode is the permission mode for created files (default 0664).
	// Directories are always created 0755.
	FileMode os.FileMode `json:"file_mode"`

	// ErrorCallback is an optional hook called when background operations
	// fail. Parameters are the operation that failed ("flush", "fsync",
	// "index", "rebuild", "close", "dispatch") and the specific error.
	// Worker errors never terminate a worker; they are reported here.
	ErrorCallback func(operation string, err error) `json:"-"`
}

// withDefaults validates cfg and resolves string fields, returning a copy
// with every default applied.
func (c *Config) withDefaults() (Config, error) {
	if c == nil {
		return Config{}, goerrors.New(CodeInvalidArgument, "mnemosyne: config cannot be nil")
	}
	cfg := *c
	if cfg.Dir == "" {
		return Config{}, goerrors.New(CodeInvalidArgument, "mnemosyne: Dir is required")
	}
	if cfg.Bucket == "" {
		return Config{}, goerrors.New(CodeInvalidArgument, "mnemosyne: Bucket is required")
	}

	if cfg.MapSizeStr != "" {
		size, err := ParseSize(cfg.MapSizeStr)
		if err != nil {
			return Config{}, goerrors.Wrap(err, CodeInvalidArgument, "mnemosyne: invalid MapSizeStr")
		}
		cfg.MapSize = size
	}
	if cfg.MaxKeyBytesStr != "" {
		size, err := ParseSize(cfg.MaxKeyBytesStr)
		if err != nil {
			return Config{}, goerrors.Wrap(err, CodeInvalidArgument, "mnemosyne: invalid MaxKeyBytesStr")
		}
		cfg.MaxKeyBytes = int(size)
	}
	if cfg.MaxValueBytesStr != "" {
		size, err := ParseSize(cfg.MaxValueBytesStr)
		if err != nil {
			return Config{}, goerrors.Wrap(err, CodeInvalidArgument, "mnemosyne: invalid MaxValueBytesStr")
		}
		cfg.MaxValueBytes = int(size)
	}
	if cfg.FsyncIntervalStr != "" {
		d, err := ParseDuration(cfg.FsyncIntervalStr)
		if err != nil {
			return Config{}, goerrors.Wrap(err, CodeInvalidArgument, "mnemosyne: invalid FsyncIntervalStr")
		}
		cfg.FsyncInterval = d
	}

	if cfg.RingCapacity == 0 {
		cfg.RingCapacity = 1024
	}
	if cfg.RingCapacity < 2 || cfg.RingCapacity&(cfg.RingCapacity-1) != 0 {
		return Config{}, goerrors.New(CodeInvalidArgument, "mnemosyne: RingCapacity must be a power of two >= 2")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.FsyncEveryN <= 0 {
		cfg.FsyncEveryN = 1
	}
	if cfg.FsyncPolicy == FsyncInterval && cfg.FsyncInterval <= 0 {
		cfg.FsyncInterval = time.Second
	}
	if cfg.MaxKeyBytes <= 0 || cfg.MaxKeyBytes > HardKeyMax {
		cfg.MaxKeyBytes = HardKeyMax
	}
	if cfg.MaxValueBytes <= 0 || cfg.MaxValueBytes > HardValueMax {
		cfg.MaxValueBytes = HardValueMax
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0664
	}
	return cfg, nil
}

// ParseSize converts size strings like "100MB", "1GB" to bytes.
// Supports case-insensitive input and single-letter units (K, M, G, T).
func ParseSize(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	// Handle plain numbers (bytes)
	if val, err := strconv.ParseInt(s, 10, 64); err == nil {
		return val, nil
	}

	s = strings.ToUpper(s)

	var multiplier int64
	var numStr string

	switch {
	// Two-letter suffixes (KB, MB, GB, TB)
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = s[:len(s)-2]
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = s[:len(s)-2]
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = s[:len(s)-2]
	case strings.HasSuffix(s, "TB"):
		multiplier = 1024 * 1024 * 1024 * 1024
		numStr = s[:len(s)-2]
	// Single-letter suffixes (K, M, G, T)
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		numStr = s[:len(s)-1]
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		numStr = s[:len(s)-1]
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		numStr = s[:len(s)-1]
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		numStr = s[:len(s)-1]
	default:
		return 0, fmt.Errorf("unknown size suffix in %q", s)
	}

	val, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size number in %q: %v", s, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("negative size in %q", s)
	}

	return val * multiplier, nil
}

// ParseDuration converts duration strings like "7d", "24h" to
// time.Duration. Supports Go durations plus common extensions.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}

	// Try standard Go duration first
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	// Handle custom suffixes
	s = strings.ToLower(s)

	var multiplier time.Duration
	var numStr string

	switch {
	case strings.HasSuffix(s, "d"):
		multiplier = 24 * time.Hour
		numStr = s[:len(s)-1]
	case strings.HasSuffix(s, "w"):
		multiplier = 7 * 24 * time.Hour
		numStr = s[:len(s)-1]
	case strings.HasSuffix(s, "y"):
		multiplier = 365 * 24 * time.Hour
		numStr = s[:len(s)-1]
	default:
		return 0, fmt.Errorf("unknown duration suffix in %q", s)
	}

	val, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration number in %q: %v", s, err)
	}

	return time.Duration(val) * multiplier, nil
}
