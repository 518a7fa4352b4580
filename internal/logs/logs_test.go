// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logs

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/meltdown/internal/session"
)

func sampleConversation() *session.Conversation {
	conv := session.NewConversation("Trip planning", "log-test-1")
	conv.AddTurn(&session.Turn{UserText: "where to go", AIText: "Portugal.", Model: "gpt-4o"}, 0)
	conv.AddTurn(&session.Turn{UserText: "when", AIText: "June.", Model: "claude-3-opus"}, 0)
	return conv
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatMarkdown, ParseFormat("md"))
	assert.Equal(t, FormatMarkdown, ParseFormat("markdown"))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatText, ParseFormat("bogus"))
}

func TestRenderTextHeaderAndPairs(t *testing.T) {
	conv := sampleConversation()
	out, err := Render(conv, FormatText, false)
	require.NoError(t, err)
	text := string(out)

	assert.Contains(t, text, "Name: Trip planning\n")
	assert.Contains(t, text, "Created: ")
	assert.Contains(t, text, "Models: gpt-4o, claude-3-opus\n")
	assert.Contains(t, text, "Saved: ")
	assert.Contains(t, text, "User: where to go\nAI: Portugal.\n---\n")
	assert.Contains(t, text, "User: when\nAI: June.\n---\n")
}

func TestRenderTextModelReferences(t *testing.T) {
	conv := sampleConversation()
	out, err := Render(conv, FormatText, true)
	require.NoError(t, err)
	text := string(out)

	assert.Contains(t, text, "Models: gpt-4o (1), claude-3-opus (2)\n")
	assert.Contains(t, text, "AI (1): Portugal.")
	assert.Contains(t, text, "AI (2): June.")
}

func TestRenderTextSingleModelNoReferences(t *testing.T) {
	conv := session.NewConversation("One model", "log-test-2")
	conv.AddTurn(&session.Turn{UserText: "hi", AIText: "hello", Model: "gpt-4o"}, 0)

	out, err := Render(conv, FormatText, true)
	require.NoError(t, err)
	assert.Contains(t, string(out), "AI: hello")
	assert.NotContains(t, string(out), "AI (1)")
}

func TestRenderMarkdown(t *testing.T) {
	conv := sampleConversation()
	out, err := Render(conv, FormatMarkdown, true)
	require.NoError(t, err)
	text := string(out)

	assert.True(t, strings.HasPrefix(text, "# Trip planning\n\n"))
	assert.Contains(t, text, "**Created:** ")
	assert.Contains(t, text, "**User:** where to go\n\n")
	assert.Contains(t, text, "**AI (gpt-4o):** Portugal.")
	assert.Contains(t, text, "**AI (claude-3-opus):** June.")
	assert.Contains(t, text, "---\n\n")
}

func TestJSONLogRoundTrip(t *testing.T) {
	conv := sampleConversation()
	dir := t.TempDir()

	path, err := Save(dir, conv, FormatJSON, "", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Trip_planning.json"), path)

	back, err := ReadJSONLog(path)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, back.ID)
	assert.Equal(t, conv.Name, back.Name)
	require.Len(t, back.Turns, 2)
	assert.Equal(t, conv.Turns[0].UserText, back.Turns[0].UserText)
	assert.Equal(t, conv.Turns[0].AIText, back.Turns[0].AIText)
	assert.Equal(t, conv.Turns[1].Model, back.Turns[1].Model)
}

func TestSaveAllWritesOneFilePerConversation(t *testing.T) {
	dir := t.TempDir()
	convs := []*session.Conversation{
		sampleConversation(),
		session.NewConversation("Second chat", "log-test-3"),
	}

	paths, err := SaveAll(dir, convs, FormatText, false)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "Trip_planning.txt"), paths[0])
	assert.Equal(t, filepath.Join(dir, "Second_chat.txt"), paths[1])
}

func TestFileNameFallsBackToID(t *testing.T) {
	conv := session.NewConversation("...", "fallback-id")
	assert.Equal(t, "fallback-id", FileName(conv))
}
