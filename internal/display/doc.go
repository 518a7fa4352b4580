// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package display implements the per-tab output buffer.
//
// A Buffer is an append-only list of lines. Role boundaries are tagged
// with invisible Unicode markers at column 0 so later formatting passes
// can find the user and assistant sections without parsing visible
// text. The exact marker sequences are part of the buffer format and
// round-trip through text logs.
//
// # Key Types
//
//   - Buffer: the line store with print/prompt/insert primitives and
//     marker bookkeeping
//   - Snippet: an extracted code-fence widget (language + literal body)
//   - Scroll: auto-scroll state with the clamped timer delay
//
// # Usage
//
//	buf := display.NewBuffer()
//	buf.Prompt(display.RoleUser, "You:")
//	buf.Insert("hello")
//	for _, m := range buf.Markers(false) {
//	    // format the section starting at m.Line
//	}
package display
