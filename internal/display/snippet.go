// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package display

import (
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/google/uuid"

	"github.com/jeranaias/meltdown/internal/util"
)

// =============================================================================
// SNIPPETS
// =============================================================================

// Snippet is an extracted code-fence widget. The body is the literal
// fence content; it is never reformatted.
type Snippet struct {
	ID       string
	Language string
	Body     string

	// Inline marks single-line backtick fences rendered in the flow
	// rather than as a block.
	Inline bool
}

// Width returns the display width of the widest body line.
func (s *Snippet) Width() int {
	max := 0
	for _, line := range strings.Split(s.Body, "\n") {
		if w := util.DisplayWidth(line); w > max {
			max = w
		}
	}
	return max
}

// AddSnippet registers a snippet widget and returns it. The language is
// canonicalized against the highlighter's lexer registry so "py",
// "python3" and "Python" collapse to one name; unknown languages pass
// through lowercased.
func (b *Buffer) AddSnippet(language, body string, inline bool) *Snippet {
	s := &Snippet{
		ID:       mintWidgetID(),
		Language: CanonicalLanguage(language),
		Body:     body,
		Inline:   inline,
	}
	b.snippets[s.ID] = s
	return s
}

// Snippet resolves a widget id.
func (b *Buffer) Snippet(id string) (*Snippet, bool) {
	s, ok := b.snippets[id]
	return s, ok
}

// WidgetLine renders the buffer line standing in for a snippet widget.
func WidgetLine(id string) string {
	return MarkWidget + id
}

// WidgetID extracts the snippet id from a widget line, if it is one.
func WidgetID(line string) (string, bool) {
	if strings.HasPrefix(line, MarkWidget) {
		return strings.TrimPrefix(line, MarkWidget), true
	}
	return "", false
}

// CanonicalLanguage normalizes a fence language tag.
func CanonicalLanguage(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return ""
	}
	if lexer := lexers.Get(language); lexer != nil {
		return strings.ToLower(lexer.Config().Name)
	}
	return language
}

func mintWidgetID() string {
	return uuid.NewString()
}
