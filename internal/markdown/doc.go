// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package markdown formats buffered chat output in place.
//
// The pipeline is deterministic and idempotent: it rewrites the text of
// role sections (the line ranges between two markers) and emits style
// spans for the rewritten region. Once a section has been processed its
// markers are consumed, so streaming output is only ever formatted
// once; re-running the pipeline over an already-formatted buffer leaves
// the bytes unchanged.
//
// Sections are processed last-first so edits that change a section's
// line count cannot invalidate the start lines of the sections still
// waiting.
//
// # Key Types
//
//   - Pipeline: holds the options and the rule/role matrix
//   - Span: one styled range (line + rune columns + tag)
//   - Options: joiner, list chars, labels and rule enablement
//
// # Usage
//
//	p := markdown.New(markdown.DefaultOptions(), log)
//	spans := p.Format(buf, markdown.ModeNormal)
package markdown
