// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the meltdown core.
package util

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// CLOCK
// =============================================================================

// Now returns the current time as fractional seconds since the Unix epoch.
func Now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// NowInt returns the current time as whole seconds since the Unix epoch.
func NowInt() int64 {
	return time.Now().Unix()
}

// =============================================================================
// ID MINTING
// =============================================================================

// EphemeralPrefix marks conversations that are never persisted and never
// used as model history. The prefix is reserved: MintID never produces it.
const EphemeralPrefix = "ignore"

var (
	idMu      sync.Mutex
	idLast    string
	idCounter int
)

// MintID returns an opaque identifier derived from the current clock.
// Identifiers minted in the same clock tick get a small counter suffix
// so they remain unique within the process.
func MintID() string {
	idMu.Lock()
	defer idMu.Unlock()

	id := strconv.FormatFloat(Now(), 'f', 6, 64)
	if id == idLast {
		idCounter++
		return id + "_" + strconv.Itoa(idCounter)
	}
	idLast = id
	idCounter = 0
	return id
}

// IsEphemeralID reports whether an identifier names an ephemeral
// conversation.
func IsEphemeralID(id string) bool {
	return strings.HasPrefix(id, EphemeralPrefix)
}
