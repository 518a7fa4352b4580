// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package memory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// MEMORY RECORD TESTS
// =============================================================================

func TestMemory_PersistsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")

	m, diag := Open(path)
	assert.Empty(t, diag)

	m.SetLastSession("work")
	m.SetLastConfig("coding")

	// Reopen from disk.
	m2, diag := Open(path)
	assert.Empty(t, diag)
	rec := m2.Get()
	assert.Equal(t, "work", rec.LastSession)
	assert.Equal(t, "coding", rec.LastConfig)
	assert.Empty(t, rec.LastLog)
}

func TestMemory_MalformedStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	m, diag := Open(path)
	assert.NotEmpty(t, diag)
	assert.Equal(t, Record{}, m.Get())
}

// =============================================================================
// RECENT LIST TESTS
// =============================================================================

func TestRecentList_AddDedupesAndBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.json")
	l, _ := OpenRecent(path, 3)

	l.Add("a")
	l.Add("b")
	l.Add("a") // moves to front
	assert.Equal(t, []string{"a", "b"}, l.Items())

	l.Add("c")
	l.Add("d") // pushes b out
	assert.Equal(t, []string{"d", "c", "a"}, l.Items())

	l.Add("  ") // blanks ignored
	assert.Len(t, l.Items(), 3)

	// Round-trips.
	l2, _ := OpenRecent(path, 3)
	assert.Equal(t, l.Items(), l2.Items())
}

func TestRecentList_Match(t *testing.T) {
	l, _ := OpenRecent(filepath.Join(t.TempDir(), "inputs.json"), 0)
	l.Add("llama-3.1-8b")
	l.Add("qwen2.5-coder")

	got := l.Match("qwen")
	require.NotEmpty(t, got)
	assert.Equal(t, "qwen2.5-coder", got[0])

	assert.Equal(t, l.Items(), l.Match(""))
}

// =============================================================================
// COMMAND RECENCY TESTS
// =============================================================================

func TestCommandRecency_TouchAndRank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.json")
	c, _ := OpenCommandRecency(path, nil)

	c.Touch("clear")
	c.Touch("save")

	ranked := c.Ranked([]string{"clear", "save", "quit"})
	assert.Equal(t, []string{"save", "clear", "quit"}, ranked)
}

func TestCommandRecency_UnknownKeysDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"save": {"date": 1.0}, "ghost": {"date": 2.0}}`), 0644))

	c, diag := OpenCommandRecency(path, func(name string) bool { return name == "save" })
	assert.Empty(t, diag)
	ranked := c.Ranked([]string{"save", "ghost"})
	// ghost has no stamp left, so save ranks first.
	assert.Equal(t, "save", ranked[0])
}

// =============================================================================
// VOCABULARY TESTS
// =============================================================================

func TestVocabulary_LearnAndComplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autocomplete.json")
	v, _ := OpenVocabulary(path, 0)

	v.Learn("What is the capital of Zimbabwe?")
	got := v.Complete("capi")
	require.NotEmpty(t, got)
	assert.Equal(t, "capital", got[0])

	// Short words are not learned.
	for _, w := range v.Complete("") {
		assert.GreaterOrEqual(t, len(w), 3)
	}
}

func TestVocabulary_Bounded(t *testing.T) {
	v, _ := OpenVocabulary(filepath.Join(t.TempDir(), "autocomplete.json"), 2)
	v.Learn("alpha bravo charlie")
	assert.Len(t, v.Complete(""), 2)
}
