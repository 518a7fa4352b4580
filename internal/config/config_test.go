// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPaths(t *testing.T) *Paths {
	t.Helper()
	p, err := NewPaths(t.TempDir(), "test")
	require.NoError(t, err)
	return p
}

// =============================================================================
// LOAD & SAVE TESTS
// =============================================================================

func TestLoad_Defaults(t *testing.T) {
	cfg, diag := Load(testPaths(t))
	assert.Empty(t, diag)
	assert.Equal(t, "/", cfg.Prefix)
	assert.Equal(t, "&", cfg.AndChar)
	assert.Equal(t, 0.7, cfg.SimilarThreshold)
	assert.Equal(t, 10, cfg.HistoryWindow)
	assert.True(t, cfg.Stream)
}

func TestLoad_UnknownKeysIgnoredMissingDefaulted(t *testing.T) {
	p := testPaths(t)
	require.NoError(t, os.MkdirAll(p.ConfigDir(), 0755))
	require.NoError(t, os.WriteFile(p.ConfigFile(),
		[]byte(`{"model": "gpt-4o", "bogus_key": 42}`), 0644))

	cfg, diag := Load(p)
	assert.Empty(t, diag)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, 2048, cfg.MaxTokens) // missing key defaulted
}

func TestLoad_MalformedFallsBack(t *testing.T) {
	p := testPaths(t)
	require.NoError(t, os.MkdirAll(p.ConfigDir(), 0755))
	require.NoError(t, os.WriteFile(p.ConfigFile(), []byte("{nope"), 0644))

	cfg, diag := Load(p)
	assert.NotEmpty(t, diag)
	assert.Equal(t, Default().MaxTokens, cfg.MaxTokens)
}

func TestLoad_TOMLOverride(t *testing.T) {
	p := testPaths(t)
	require.NoError(t, os.MkdirAll(p.ConfigDir(), 0755))
	require.NoError(t, os.WriteFile(p.ConfigFile(),
		[]byte(`{"temperature": 0.5}`), 0644))
	require.NoError(t, os.WriteFile(p.ConfigOverrideFile(),
		[]byte("temperature = 0.2\n"), 0644))

	cfg, _ := Load(p)
	assert.Equal(t, 0.2, cfg.Temperature)
}

func TestSave_FourSpaceIndentRoundTrip(t *testing.T) {
	p := testPaths(t)
	cfg := Default()
	cfg.Model = "claude-opus"
	require.NoError(t, Save(p, cfg))

	data, err := os.ReadFile(p.ConfigFile())
	require.NoError(t, err)
	assert.Contains(t, string(data), "    \"model\"")

	loaded, diag := Load(p)
	assert.Empty(t, diag)
	assert.Equal(t, cfg, loaded)
}

// =============================================================================
// CLAMP & HELPERS
// =============================================================================

func TestClamp_AutoScrollDelay(t *testing.T) {
	cfg := Default()
	cfg.AutoScrollDelayMs = 50
	cfg.clamp()
	assert.Equal(t, 100, cfg.AutoScrollDelayMs)

	cfg.AutoScrollDelayMs = 9000
	cfg.clamp()
	assert.Equal(t, 2000, cfg.AutoScrollDelayMs)
}

func TestStopSequences(t *testing.T) {
	cfg := Default()
	assert.Nil(t, cfg.StopSequences())

	cfg.Stop = "###;; STOP ;;"
	assert.Equal(t, []string{"###", "STOP"}, cfg.StopSequences())
}

func TestSearchEnabled(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.SearchEnabled())
	cfg.Search = "yes"
	assert.True(t, cfg.SearchEnabled())
}

// =============================================================================
// SNAPSHOT TESTS
// =============================================================================

func TestSnapshots_RoundTrip(t *testing.T) {
	p := testPaths(t)
	cfg := Default()
	cfg.NameAI = "Sage"

	require.NoError(t, SaveSnapshot(p, cfg, "sage"))
	assert.Equal(t, []string{"sage"}, ListSnapshots(p))

	loaded, err := LoadSnapshot(p, "sage")
	require.NoError(t, err)
	assert.Equal(t, "Sage", loaded.NameAI)

	require.NoError(t, DeleteSnapshot(p, "sage"))
	assert.Empty(t, ListSnapshots(p))

	_, err = LoadSnapshot(p, "sage")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestSnapshots_NameSanitized(t *testing.T) {
	p := testPaths(t)
	require.NoError(t, SaveSnapshot(p, Default(), "../evil"))
	// Stays inside the snapshot dir.
	entries, err := os.ReadDir(p.SnapshotDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), "..")
}
