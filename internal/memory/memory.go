// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package memory persists small "last used" records and recent-string
// lists for the meltdown core.
//
// Everything in this package is best-effort: loads tolerate missing or
// malformed files by substituting empty containers, and writes are
// atomic so a crash can never leave a half-written record.
package memory

import (
	"os"
	"sync"

	"github.com/jeranaias/meltdown/internal/util"
)

// =============================================================================
// MEMORY RECORD
// =============================================================================

// Record is the tiny key-value store for last-used hints.
type Record struct {
	LastLog     string `json:"last_log"`
	LastProgram string `json:"last_program"`
	LastConfig  string `json:"last_config"`
	LastSession string `json:"last_session"`
}

// Memory owns the on-disk record and persists on every change.
type Memory struct {
	mu   sync.Mutex
	path string
	rec  Record
}

// Open loads memory.json from path. A missing or malformed file yields
// an empty record and a diagnostic string for the caller to log.
func Open(path string) (*Memory, string) {
	m := &Memory{path: path}
	if err := util.ReadJSON(path, &m.rec); err != nil && !os.IsNotExist(err) {
		m.rec = Record{}
		return m, "memory.json unreadable, starting empty: " + err.Error()
	}
	return m, ""
}

// Get returns a copy of the current record.
func (m *Memory) Get() Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec
}

// SetLastLog records the last saved log path.
func (m *Memory) SetLastLog(v string) { m.set(func(r *Record) { r.LastLog = v }) }

// SetLastProgram records the last response program.
func (m *Memory) SetLastProgram(v string) { m.set(func(r *Record) { r.LastProgram = v }) }

// SetLastConfig records the last named config snapshot.
func (m *Memory) SetLastConfig(v string) { m.set(func(r *Record) { r.LastConfig = v }) }

// SetLastSession records the last named session snapshot.
func (m *Memory) SetLastSession(v string) { m.set(func(r *Record) { r.LastSession = v }) }

func (m *Memory) set(mut func(*Record)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mut(&m.rec)
	// Persist on any change; the record is a handful of strings.
	_ = util.WriteJSON(m.path, &m.rec)
}
