// watch.go: Live configuration watching via Argus
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import (
	"github.com/agilira/argus"
	goerrors "github.com/agilira/go-errors"
)

// configWatcher is the Argus watcher handle held by the store.
type configWatcher = *argus.Watcher

// WatchConfig attaches an Argus watcher to path and live-applies the
// durability knobs that are safe to change on a running store:
//
//	fsync_interval_ms  (number) - FsyncInterval policy window
//	fsync_every_n      (number) - FsyncEveryN policy period
//
// Structural options (directory, bucket, ring capacity, workers) are fixed
// at open and ignored here. Only one watcher per store; attaching a second
// one replaces the first.
func (s *Store) WatchConfig(path string) error {
	if s == nil {
		return ErrNilStore
	}
	if !s.running.Load() {
		return ErrShutdown
	}

	watcher, err := argus.UniversalConfigWatcher(path, func(cfg map[string]interface{}) {
		s.applyDynamicConfig(cfg)
	})
	if err != nil {
		return goerrors.Wrap(err, CodeInvalidArgument, "mnemosyne: cannot watch config file")
	}

	s.watchMu.Lock()
	old := s.watcher
	s.watcher = watcher
	s.watchMu.Unlock()
	if old != nil {
		old.Stop()
	}
	return nil
}

// applyDynamicConfig folds one watched-config snapshot into the live
// durability knobs. Unknown keys and wrong-typed values are ignored.
func (s *Store) applyDynamicConfig(cfg map[string]interface{}) {
	if ms, ok := numericField(cfg, "fsync_interval_ms"); ok && ms > 0 {
		s.fsyncIntervalNs.Store(ms * 1e6)
	}
	if n, ok := numericField(cfg, "fsync_every_n"); ok && n > 0 {
		s.fsyncEveryN.Store(n)
	}
}

// numericField extracts an integer from the loosely-typed config map.
func numericField(cfg map[string]interface{}, key string) (int64, bool) {
	switch v := cfg[key].(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

// stopWatcher detaches the config watcher, if any.
func (s *Store) stopWatcher() {
	s.watchMu.Lock()
	w := s.watcher
	s.watcher = nil
	s.watchMu.Unlock()
	if w != nil {
		w.Stop()
	}
}
