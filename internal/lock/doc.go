// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lock enforces the per-profile process singleton with an
// advisory file lock on a PID file in the temp directory. A second
// instance sees ErrAlreadyRunning; --force bypasses the check.
package lock
