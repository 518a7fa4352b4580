// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package listener

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu    sync.Mutex
	lines []string
}

func (c *collector) add(line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
}

func (c *collector) wait(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		c.mu.Lock()
		got := append([]string(nil), c.lines...)
		c.mu.Unlock()
		if len(got) >= n {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("wanted %d lines, got %v", n, got)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestListenerDeliversAndTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mlt_test.input")
	var got collector

	l := New(path, got.add, nil)
	require.NoError(t, l.Start())
	defer l.Stop()

	require.NoError(t, os.WriteFile(path, []byte("hello from outside\n"), 0o644))

	lines := got.wait(t, 1)
	assert.Equal(t, []string{"hello from outside"}, lines)

	// Mailbox is truncated after consumption.
	deadline := time.Now().Add(3 * time.Second)
	for {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		if len(data) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("mailbox not truncated: %q", data)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestListenerSplitsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mlt_test.input")
	var got collector

	l := New(path, got.add, nil)
	require.NoError(t, l.Start())
	defer l.Stop()

	require.NoError(t, os.WriteFile(path, []byte("first\n\nsecond\n"), 0o644))

	lines := got.wait(t, 2)
	assert.Equal(t, []string{"first", "second"}, lines)
}

func TestListenerIgnoresWhitespaceOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mlt_test.input")
	var got collector

	l := New(path, got.add, nil)
	require.NoError(t, l.Start())

	require.NoError(t, os.WriteFile(path, []byte("  \n\t\n"), 0o644))
	time.Sleep(50 * time.Millisecond)
	l.Stop()

	got.mu.Lock()
	defer got.mu.Unlock()
	assert.Empty(t, got.lines)
}

func TestListenerStartIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mlt_test.input")
	l := New(path, func(string) {}, nil)
	require.NoError(t, l.Start())
	require.NoError(t, l.Start())
	l.Stop()
	l.Stop()
}
