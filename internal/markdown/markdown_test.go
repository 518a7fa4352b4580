// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/meltdown/internal/display"
)

func newPipeline() *Pipeline {
	return New(DefaultOptions(), nil)
}

func aiBuffer(content string) *display.Buffer {
	b := display.NewBuffer()
	b.Prompt(display.RoleAI, "AI:")
	b.Insert(" ")
	b.Insert("\n" + content)
	return b
}

func tags(spans []Span) []string {
	var out []string
	for _, s := range spans {
		out = append(out, s.Tag)
	}
	return out
}

func TestFormatIdempotent(t *testing.T) {
	b := aiBuffer("Hello **world**\n\n```py\nprint(1)\n```\n\nBye")
	p := newPipeline()

	p.Format(b, ModeAll)
	first := b.String()
	p.Format(b, ModeAll)
	assert.Equal(t, first, b.String(), "second pass leaves bytes unchanged")
	p.Format(b, ModeAll)
	assert.Equal(t, first, b.String())
}

func TestSnippetExtraction(t *testing.T) {
	b := aiBuffer("before\n```go\nfmt.Println(1)\nfmt.Println(2)\n```\nafter")
	p := newPipeline()
	p.Format(b, ModeAll)

	lines := b.Lines()
	widgetLine := -1
	for i, line := range lines {
		if _, ok := display.WidgetID(line); ok {
			widgetLine = i
		}
	}
	require.GreaterOrEqual(t, widgetLine, 0, "fence replaced by a widget line")
	assert.Equal(t, "", lines[widgetLine-1], "one blank line above the widget")
	assert.Equal(t, "", lines[widgetLine+1], "one blank line below the widget")

	id, _ := display.WidgetID(lines[widgetLine])
	s, ok := b.Snippet(id)
	require.True(t, ok)
	assert.Equal(t, "go", s.Language)
	assert.Equal(t, "fmt.Println(1)\nfmt.Println(2)", s.Body)
	assert.False(t, s.Inline)
	assert.NotContains(t, b.String(), "```")
}

func TestInlineSnippet(t *testing.T) {
	b := aiBuffer("see ```x := 1``` here")
	p := newPipeline()
	p.Format(b, ModeAll)

	assert.NotContains(t, b.String(), "```")
	found := false
	for _, line := range b.Lines() {
		if i := strings.Index(line, display.MarkWidget); i >= 0 {
			id := line[i+len(display.MarkWidget):]
			if j := strings.IndexAny(id, " \t"); j >= 0 {
				id = id[:j]
			}
			s, ok := b.Snippet(id)
			require.True(t, ok)
			assert.True(t, s.Inline)
			assert.Equal(t, "", s.Language)
			assert.Equal(t, "x := 1", s.Body)
			found = true
		}
	}
	assert.True(t, found)
}

func TestThinkBlockWithContent(t *testing.T) {
	b := aiBuffer("<think>\nplanning\n</think>\nDone.")
	p := newPipeline()
	p.Format(b, ModeAll)

	out := b.String()
	assert.Contains(t, out, "Thinking started")
	assert.Contains(t, out, "Thinking ended")
	assert.NotContains(t, out, "<think>")
	assert.NotContains(t, out, "</think>")
}

func TestThinkBlockEmptyRemoved(t *testing.T) {
	b := aiBuffer("<think>\n\n</think>\nDone.")
	p := newPipeline()
	p.Format(b, ModeAll)

	out := b.String()
	assert.NotContains(t, out, "Thinking")
	assert.NotContains(t, out, "think>")
	assert.Contains(t, out, "Done.")
}

// streamedBuffer lays content out the way the stream worker does: the
// first chunk lands on the assistant prompt line itself, right after
// the label.
func streamedBuffer(content string) *display.Buffer {
	b := display.NewBuffer()
	b.Prompt(display.RoleAI, display.PromptLabel("🫠", "Melt", ":"))
	b.Insert(" ")
	b.Insert(content)
	return b
}

func aiLine(t *testing.T, b *display.Buffer) (int, string) {
	t.Helper()
	for i, line := range b.Lines() {
		if who, ok := display.RoleOf(line); ok && who == display.RoleAI {
			return i, line
		}
	}
	t.Fatal("no assistant prompt line in buffer")
	return -1, ""
}

func TestThinkBlockEmptyRemovedOnPromptLine(t *testing.T) {
	b := streamedBuffer("<think>\n\n</think>\nDone.")
	p := newPipeline()
	p.Format(b, ModeAll)

	out := b.String()
	assert.NotContains(t, out, "think>")
	assert.NotContains(t, out, "Thinking")

	_, line := aiLine(t, b)
	assert.True(t, strings.HasSuffix(line, " Done."),
		"response moves up onto the prompt line: %q", line)

	p.Format(b, ModeAll)
	assert.Equal(t, out, b.String())
}

func TestThinkBlockWithContentOnPromptLine(t *testing.T) {
	b := streamedBuffer("<think>\nplanning\n</think>\nDone.")
	p := newPipeline()
	p.Format(b, ModeAll)

	out := b.String()
	assert.Contains(t, out, "Thinking started")
	assert.Contains(t, out, "Thinking ended")
	assert.Contains(t, out, "planning")
	assert.NotContains(t, out, "<think>")
	assert.NotContains(t, out, "</think>")

	_, line := aiLine(t, b)
	assert.True(t, strings.HasSuffix(line, "Thinking started"),
		"think label keeps the prompt label in front: %q", line)
}

func TestRoleTokens(t *testing.T) {
	b := aiBuffer("<|user|>\nquestion\n<|assistant|>\nanswer")
	p := newPipeline()
	p.Format(b, ModeAll)

	out := b.String()
	assert.Contains(t, out, "User:")
	assert.Contains(t, out, "Assistant:")
	assert.NotContains(t, out, "<|")
}

func TestWhitespaceCleanup(t *testing.T) {
	b := aiBuffer("a   \n\n\n\nb")
	p := newPipeline()
	p.Format(b, ModeAll)
	assert.NotContains(t, b.String(), "\n\n\n")
	assert.NotContains(t, b.String(), "a ")
}

func TestLineJoin(t *testing.T) {
	b := aiBuffer("one\ntwo\n\nthree")
	p := newPipeline()
	p.Format(b, ModeAll)
	assert.Contains(t, b.String(), "one"+DefaultOptions().Joiner+"two")
	assert.NotContains(t, b.String(), "two"+DefaultOptions().Joiner+"three")
}

func TestOrderedList(t *testing.T) {
	b := aiBuffer("intro\n1. first\n2. second\n3) third\nafter? no: list runs to next blank")
	p := newPipeline()
	p.Format(b, ModeAll)

	var items []string
	for _, line := range b.Lines() {
		if strings.HasPrefix(line, display.MarkerOrdered) {
			items = append(items, strings.TrimPrefix(line, display.MarkerOrdered))
		}
	}
	require.GreaterOrEqual(t, len(items), 3)
	assert.Equal(t, "1. first", items[0])
	assert.Equal(t, "2. second", items[1])
	assert.Equal(t, "3. third", items[2], "paren numbering canonicalized")
}

func TestUnorderedListSpacingAlways(t *testing.T) {
	opts := DefaultOptions()
	opts.ListSpacing = SpacingAlways
	p := New(opts, nil)

	b := aiBuffer("- alpha\n- beta")
	p.Format(b, ModeAll)

	out := b.String()
	assert.Contains(t, out, display.MarkerUnordered+"• alpha\n\n"+display.MarkerUnordered+"• beta")

	p.Format(b, ModeAll)
	assert.Equal(t, out, b.String(), "list rewrite is idempotent")
}

func TestListIdempotentAutoSpacing(t *testing.T) {
	b := aiBuffer("1. short\n2. long item\nthat wraps\n3. tail")
	p := newPipeline()
	p.Format(b, ModeAll)
	first := b.String()
	p.Format(b, ModeAll)
	assert.Equal(t, first, b.String())
}

func TestInlineEmphasis(t *testing.T) {
	b := aiBuffer("**bold** and *ital* but 2*3*4 stays and __under__ too")
	p := newPipeline()
	spans := p.Format(b, ModeAll)

	out := b.String()
	assert.Contains(t, out, "bold and ital")
	assert.Contains(t, out, "2*3*4", "math-like asterisks untouched")
	assert.Contains(t, out, "under too")
	assert.NotContains(t, out, "**")

	tl := tags(spans)
	assert.Contains(t, tl, "bold")
	assert.Contains(t, tl, "italic")
}

func TestQuoteAndHighlight(t *testing.T) {
	b := aiBuffer("say \"hello there\" and run `ls -la` now")
	p := newPipeline()
	spans := p.Format(b, ModeAll)

	out := b.String()
	assert.Contains(t, out, "\"hello there\"", "quotes preserved")
	assert.Contains(t, out, "ls -la")
	assert.NotContains(t, out, "`")

	tl := tags(spans)
	assert.Contains(t, tl, "quote")
	assert.Contains(t, tl, "highlight")
}

func TestMarkdownLink(t *testing.T) {
	b := aiBuffer("read [the docs](https://example.com/docs) today")
	p := newPipeline()
	spans := p.Format(b, ModeAll)

	assert.Contains(t, b.String(), "read the docs today")
	assert.NotContains(t, b.String(), "example.com")

	var linkSpan *Span
	for i := range spans {
		if spans[i].Tag == "link" {
			linkSpan = &spans[i]
		}
	}
	require.NotNil(t, linkSpan)
	url, ok := b.URL(linkSpan.Ref)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/docs", url)
}

func TestBareURLAndPath(t *testing.T) {
	b := aiBuffer("visit https://example.com or ~/docs/notes.txt here")
	p := newPipeline()
	spans := p.Format(b, ModeAll)

	tl := tags(spans)
	assert.Contains(t, tl, "url")
	assert.Contains(t, tl, "path")
	assert.Contains(t, b.String(), "https://example.com", "bare URLs only tagged")
}

func TestUseLink(t *testing.T) {
	b := aiBuffer("try %@tell me more%@ next")
	p := newPipeline()
	spans := p.Format(b, ModeAll)

	assert.Contains(t, b.String(), "try tell me more next")
	var found bool
	for _, s := range spans {
		if s.Tag == "uselink" {
			assert.Equal(t, "tell me more", s.Ref)
			found = true
		}
	}
	assert.True(t, found)
}

func TestHeadersAndSeparator(t *testing.T) {
	b := aiBuffer("# Title\nbody\n## Sub\n----")
	p := newPipeline()
	spans := p.Format(b, ModeAll)

	out := b.String()
	assert.Contains(t, out, "Title")
	assert.NotContains(t, out, "# ")
	assert.Contains(t, out, DefaultOptions().SeparatorLine)
	assert.NotContains(t, out, "----")

	tl := tags(spans)
	assert.Contains(t, tl, "h1")
	assert.Contains(t, tl, "h2")
	assert.Contains(t, tl, "separator")
}

func TestUserSectionSkipsEmphasis(t *testing.T) {
	b := display.NewBuffer()
	b.Prompt(display.RoleUser, "You:")
	b.Insert(" ")
	b.Insert("\n**not bold for user**")
	p := newPipeline()
	p.Format(b, ModeAll)
	assert.Contains(t, b.String(), "**not bold for user**")
}

func TestModeNormalProcessesOnce(t *testing.T) {
	p := newPipeline()
	b := aiBuffer("**one**")
	p.Format(b, ModeNormal)
	assert.Contains(t, b.String(), "one")
	assert.NotContains(t, b.String(), "**")

	// New section appended after the first pass.
	b.Prompt(display.RoleAI, "AI:")
	b.Insert(" ")
	b.Insert("\n**two**")
	p.Format(b, ModeNormal)
	assert.NotContains(t, b.String(), "**")
}

func TestModeLastOnlyLastSection(t *testing.T) {
	p := newPipeline()
	b := display.NewBuffer()
	b.Prompt(display.RoleAI, "AI:")
	b.Insert("\n**first**")
	b.Prompt(display.RoleAI, "AI:")
	b.Insert("\n**second**")
	p.Format(b, ModeLast)

	out := b.String()
	assert.Contains(t, out, "**first**", "earlier section untouched")
	assert.Contains(t, out, "second")
	assert.NotContains(t, out, "**second**")
}
