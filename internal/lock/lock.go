// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package lock

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrAlreadyRunning indicates another instance holds the PID lock.
var ErrAlreadyRunning = errors.New("already running")

// Lock is a held singleton lock. Release it on shutdown.
type Lock struct {
	file *os.File
	path string
	held bool
}

// Acquire takes the advisory lock on the PID file and records this
// process's PID in it. When the lock is held elsewhere, force proceeds
// without it; otherwise ErrAlreadyRunning is returned with the owner's
// PID attached.
func Acquire(path string, force bool) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open pid file: %w", err)
	}

	if err := flock(f); err != nil {
		if !force {
			owner := ""
			if pid, ok := OwnerPID(path); ok {
				owner = fmt.Sprintf(" (pid %d)", pid)
			}
			f.Close()
			return nil, fmt.Errorf("%w%s", ErrAlreadyRunning, owner)
		}
		// Forced start: keep the file open but do not claim the lock.
		return &Lock{file: f, path: path}, nil
	}

	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0)
		_ = f.Sync()
	}
	return &Lock{file: f, path: path, held: true}, nil
}

// Held reports whether this process actually owns the lock.
func (l *Lock) Held() bool {
	return l != nil && l.held
}

// Release drops the lock and removes the PID file when it was held.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	if l.held {
		_ = funlock(l.file)
		_ = os.Remove(l.path)
	}
	_ = l.file.Close()
	l.file = nil
}

// OwnerPID reads the PID recorded in the lock file.
func OwnerPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
