// notify_linux.go: Semaphore-counting eventfd wakeups
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

//go:build linux

package mnemosyne

import (
	"encoding/binary"

	goerrors "github.com/agilira/go-errors"
	"golang.org/x/sys/unix"
)

// notifier is a counting semaphore backed by an eventfd in EFD_SEMAPHORE
// mode: each post adds tokens, each wait blocks until a token is available
// and consumes exactly one. Many producers can wake one consumer without
// per-item condition variables, and the consumer batches opportunistically
// after each wake.
type notifier struct {
	fd int
}

func newNotifier() (*notifier, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_SEMAPHORE)
	if err != nil {
		return nil, goerrors.Wrap(err, CodeIO, "mnemosyne: eventfd creation failed")
	}
	return &notifier{fd: fd}, nil
}

// post adds n wake tokens.
func (n *notifier) post(tokens uint64) error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], tokens)
	for {
		_, err := unix.Write(n.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return goerrors.Wrap(err, CodeIO, "mnemosyne: eventfd write failed")
		}
		return nil
	}
}

// wait blocks until one token is available and consumes it. An interrupted
// read returns nil so the caller treats it as a spurious wake and rechecks
// its own state.
func (n *notifier) wait() error {
	var buf [8]byte
	_, err := unix.Read(n.fd, buf[:])
	if err == unix.EINTR {
		return nil
	}
	if err != nil {
		return goerrors.Wrap(err, CodeIO, "mnemosyne: eventfd read failed")
	}
	return nil
}

// close releases the eventfd. Callers must have joined every waiter first.
func (n *notifier) close() error {
	return unix.Close(n.fd)
}
