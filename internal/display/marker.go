// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package display

import "strings"

// =============================================================================
// MARKERS
// =============================================================================

// Invisible sentinels embedded at column 0. These byte sequences are
// part of the buffer format and must round-trip unchanged.
const (
	// MarkUser begins a user prompt line (ZWSP + ZWNJ).
	MarkUser = "​‌"

	// MarkAI begins an assistant prompt line (ZWSP + ZWJ).
	MarkAI = "​‍"

	// MarkSeparator precedes a visual separator line (ZWSP + WJ).
	MarkSeparator = "​⁠"

	// MarkSpace is a non-breaking space used inside prompt labels so
	// they survive whitespace-insensitive rewrites.
	MarkSpace = " "

	// MarkWidget begins a line that stands in for an embedded snippet
	// widget; the rest of the line is the widget id.
	MarkWidget = "​⁡"

	// MarkerOrdered and MarkerUnordered prefix rewritten list items so
	// the hanging-indent pass can find them.
	MarkerOrdered   = "⁣"
	MarkerUnordered = "⁤"
)

// Role identifies which side of the exchange a marker belongs to.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Marker is one role boundary found in a buffer.
type Marker struct {
	Who  Role
	Line int
}

// MarkerFor returns the sentinel for a role.
func MarkerFor(who Role) string {
	if who == RoleAI {
		return MarkAI
	}
	return MarkUser
}

// PromptLabel composes the visible prompt label from an avatar, a
// display name and the delimiter. Interior spaces become MarkSpace so
// the first plain space on a prompt line always separates the label
// from inserted content.
func PromptLabel(avatar, name, delimiter string) string {
	label := name + delimiter
	if avatar != "" {
		label = avatar + MarkSpace + label
	}
	return strings.ReplaceAll(label, " ", MarkSpace)
}

// RoleOf reports the role tag of a line, if any.
func RoleOf(line string) (Role, bool) {
	switch {
	case strings.HasPrefix(line, MarkUser):
		return RoleUser, true
	case strings.HasPrefix(line, MarkAI):
		return RoleAI, true
	}
	return "", false
}

// StripMarkers removes every sentinel from a string. Used when text
// leaves the buffer for logs or the clipboard.
func StripMarkers(s string) string {
	for _, m := range []string{MarkUser, MarkAI, MarkSeparator, MarkWidget, MarkerOrdered, MarkerUnordered} {
		s = strings.ReplaceAll(s, m, "")
	}
	return strings.ReplaceAll(s, MarkSpace, " ")
}
