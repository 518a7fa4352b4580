// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine owns the model lifecycle and the streaming hot path:
// load, unload, stream, cancel, history assembly, token budgeting,
// attachments, tool-call follow-up and the post-stream hooks.
//
// # Key Types
//
//   - Engine: single-flight model loading and at-most-one streaming
//   - Tab: the conversation plus display buffer a stream writes into
//   - Options: collaborators injected at construction
//   - Hooks: what runs after a stream ends (format pass, after_stream)
//
// # Concurrency
//
// A single owner goroutine holds all display and session state. The
// streaming worker never touches it directly: every write is posted
// through Options.Post. One engine mutex serializes model loads and
// active completion calls; StopStream sets an atomic cancel flag that
// the worker observes at chunk boundaries.
package engine
