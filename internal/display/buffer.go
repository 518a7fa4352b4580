// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package display

import "strings"

// =============================================================================
// BUFFER
// =============================================================================

// Buffer is one tab's output: an append-only list of lines plus the
// marker counters, snippet widgets and link table attached to it.
// A Buffer is owned by the main goroutine and is not synchronized.
type Buffer struct {
	lines []string

	// Markers already handed out by Markers(false), per role.
	checkedUser int
	checkedAI   int

	snippets map[string]*Snippet
	urls     map[string]string

	// Modified is set once any prompt lands in the tab; the engine
	// prints a separator before the next user prompt when set.
	Modified bool

	Scroll Scroll
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{
		snippets: make(map[string]*Snippet),
		urls:     make(map[string]string),
		Scroll:   NewScroll(),
	}
}

// =============================================================================
// APPEND PRIMITIVES
// =============================================================================

// Print appends text, keeping at most one blank line between prior
// content and the new text. Leading blank lines of the new text are
// dropped; the text's own interior blank lines are preserved.
func (b *Buffer) Print(text string) {
	add := strings.Split(text, "\n")
	for len(add) > 0 && strings.TrimSpace(add[0]) == "" {
		add = add[1:]
	}
	if len(add) == 0 {
		return
	}
	if len(b.lines) > 0 {
		b.trimTrailingBlanks()
		b.lines = append(b.lines, "")
	}
	b.lines = append(b.lines, add...)
}

// Prompt appends a role-tagged prompt line. Spaces inside the label are
// replaced by the non-breaking MarkSpace so reformatting passes leave
// the label intact.
func (b *Buffer) Prompt(who Role, label string) {
	line := MarkerFor(who) + strings.ReplaceAll(label, " ", MarkSpace)
	if len(b.lines) > 0 {
		b.trimTrailingBlanks()
		b.lines = append(b.lines, "")
	}
	b.lines = append(b.lines, line)
	b.Modified = true
}

// Separator appends a tagged separator line.
func (b *Buffer) Separator(sep string) {
	b.Print(MarkSeparator + sep)
}

// Insert appends raw text at the current end of the buffer, continuing
// the last line. Used by the streaming loop; never inserts markers.
func (b *Buffer) Insert(text string) {
	if text == "" {
		return
	}
	parts := strings.Split(text, "\n")
	if len(b.lines) == 0 {
		b.lines = append(b.lines, parts[0])
	} else {
		b.lines[len(b.lines)-1] += parts[0]
	}
	b.lines = append(b.lines, parts[1:]...)
}

// RemoveLastAI deletes the most recent assistant-tagged line. Used to
// replace the "Thinking…" placeholder with the real prompt once the
// first content chunk arrives.
func (b *Buffer) RemoveLastAI() bool {
	for i := len(b.lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(b.lines[i], MarkAI) {
			b.lines = append(b.lines[:i], b.lines[i+1:]...)
			return true
		}
	}
	return false
}

func (b *Buffer) trimTrailingBlanks() {
	for len(b.lines) > 0 && strings.TrimSpace(b.lines[len(b.lines)-1]) == "" {
		b.lines = b.lines[:len(b.lines)-1]
	}
}

// =============================================================================
// MARKERS
// =============================================================================

// Markers returns the role boundaries in line order. With includeAll
// false, only markers not yet handed out are returned; either way every
// current marker is recorded as processed.
func (b *Buffer) Markers(includeAll bool) []Marker {
	var out []Marker
	seenUser, seenAI := 0, 0
	for i, line := range b.lines {
		who, ok := RoleOf(line)
		if !ok {
			continue
		}
		include := includeAll
		switch who {
		case RoleUser:
			include = include || seenUser >= b.checkedUser
			seenUser++
		case RoleAI:
			include = include || seenAI >= b.checkedAI
			seenAI++
		}
		if include {
			out = append(out, Marker{Who: who, Line: i})
		}
	}
	b.checkedUser = seenUser
	b.checkedAI = seenAI
	return out
}

// Reset clears the buffer, the marker counters and the widget tables.
func (b *Buffer) Reset() {
	b.lines = nil
	b.checkedUser = 0
	b.checkedAI = 0
	b.snippets = make(map[string]*Snippet)
	b.urls = make(map[string]string)
	b.Modified = false
}

// =============================================================================
// LINE ACCESS
// =============================================================================

// Len returns the number of lines.
func (b *Buffer) Len() int { return len(b.lines) }

// Line returns line i, or "" when out of range.
func (b *Buffer) Line(i int) string {
	if i < 0 || i >= len(b.lines) {
		return ""
	}
	return b.lines[i]
}

// Lines returns a copy of the buffer's lines.
func (b *Buffer) Lines() []string {
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Splice replaces lines [start, end) with repl. Out-of-range bounds are
// clamped. The formatting pipeline edits sections in reverse order so
// earlier line numbers stay valid.
func (b *Buffer) Splice(start, end int, repl []string) {
	if start < 0 {
		start = 0
	}
	if end > len(b.lines) {
		end = len(b.lines)
	}
	if start > end {
		return
	}
	out := make([]string, 0, len(b.lines)-(end-start)+len(repl))
	out = append(out, b.lines[:start]...)
	out = append(out, repl...)
	out = append(out, b.lines[end:]...)
	b.lines = out
}

// String renders the buffer as newline-joined text.
func (b *Buffer) String() string {
	return strings.Join(b.lines, "\n")
}

// =============================================================================
// LINK TABLE
// =============================================================================

// AddURL registers a link target and returns its id. The formatting
// pipeline tags the visible label with the id so a click can resolve
// back to the URL.
func (b *Buffer) AddURL(url string) string {
	id := mintWidgetID()
	b.urls[id] = url
	return id
}

// URL resolves a registered link id.
func (b *Buffer) URL(id string) (string, bool) {
	u, ok := b.urls[id]
	return u, ok
}
