// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package errlog provides the rotating error log for the meltdown core.
//
// Every recoverable failure in the application funnels through this
// package: JSON load failures, network errors, worker panics. The log
// rotates at a small fixed size so a misbehaving model loop cannot fill
// the disk.
package errlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

// =============================================================================
// ROTATING WRITER
// =============================================================================

const (
	// maxLogSize is the size at which the log rotates.
	maxLogSize = 2 * 1024

	// maxLogFiles is how many rotated files are kept (error.log.1 .. .4).
	maxLogFiles = 5
)

// rotatingWriter appends to a log file and rotates it when it exceeds
// maxLogSize. Rotation shifts error.log -> error.log.1 -> ... and drops
// the oldest file.
type rotatingWriter struct {
	mu   sync.Mutex
	path string
}

// Write implements io.Writer.
func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if info, err := os.Stat(w.path); err == nil && info.Size()+int64(len(p)) > maxLogSize {
		w.rotate()
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return f.Write(p)
}

// rotate shifts the numbered log files up by one slot.
func (w *rotatingWriter) rotate() {
	oldest := w.path + "." + strconv.Itoa(maxLogFiles-1)
	os.Remove(oldest)
	for i := maxLogFiles - 2; i >= 1; i-- {
		os.Rename(w.path+"."+strconv.Itoa(i), w.path+"."+strconv.Itoa(i+1))
	}
	os.Rename(w.path, w.path+".1")
}

// =============================================================================
// LOGGER
// =============================================================================

// Logger writes structured error lines to a rotating per-profile log.
type Logger struct {
	log zerolog.Logger
}

// New creates a logger writing to dir/error.log. The directory is
// created if needed. A nil *Logger is safe to call: every method
// becomes a no-op, which keeps error paths unconditional.
func New(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create error log directory: %w", err)
	}
	w := &rotatingWriter{path: filepath.Join(dir, "error.log")}
	return &Logger{
		log: zerolog.New(w).With().Timestamp().Logger(),
	}, nil
}

// Error logs an error with a short context message.
func (l *Logger) Error(context string, err error) {
	if l == nil {
		return
	}
	l.log.Error().Err(err).Msg(context)
}

// Errorf logs a formatted error line.
func (l *Logger) Errorf(format string, args ...any) {
	if l == nil {
		return
	}
	l.log.Error().Msgf(format, args...)
}

// Warn logs a one-line diagnostic for a tolerated failure.
func (l *Logger) Warn(msg string) {
	if l == nil {
		return
	}
	l.log.Warn().Msg(msg)
}

// Recover is intended for use at the top of worker goroutines:
//
//	defer log.Recover("stream worker")
//
// An uncaught panic is logged and swallowed so a worker failure can
// never drag down the owner goroutine.
func (l *Logger) Recover(worker string) {
	if r := recover(); r != nil {
		l.Errorf("%s panicked: %v", worker, r)
	}
}
