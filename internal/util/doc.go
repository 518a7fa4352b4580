// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the meltdown core.
//
// This package contains the clock and identifier primitives shared by
// the session store and engine, plus crash-safe file writing and
// UTF-8 aware string helpers.
//
// # Key Functions
//
// Clock & IDs:
//   - Now, NowInt: seconds since epoch
//   - MintID: opaque conversation/turn identifiers
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - WriteJSON, ReadJSON: persistence helpers with indent
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - DisplayWidth: terminal cell width of a string
package util
