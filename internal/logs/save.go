// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/jeranaias/meltdown/internal/session"
	"github.com/jeranaias/meltdown/internal/util"
)

// =============================================================================
// SAVING
// =============================================================================

// Save renders one conversation into dir and returns the written path.
// An empty name derives the file name from the conversation.
func Save(dir string, conv *session.Conversation, f Format, name string, references bool) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}
	if name == "" {
		name = FileName(conv)
	}
	data, err := Render(conv, f, references)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name+"."+Ext(f))
	if err := util.AtomicWriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// SaveAll saves every conversation, one file each, and returns the
// written paths. A failure stops the walk.
func SaveAll(dir string, convs []*session.Conversation, f Format, references bool) ([]string, error) {
	paths := make([]string, 0, len(convs))
	for _, conv := range convs {
		path, err := Save(dir, conv, f, "", references)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// FileName derives a filesystem-safe name for a conversation.
func FileName(conv *session.Conversation) string {
	name := sanitize(conv.Name)
	if name == "" {
		name = conv.ID
	}
	return name
}

// sanitize keeps letters, digits, dashes and spaces (spaces become
// underscores); everything else is dropped.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return b.String()
}

// =============================================================================
// LOADING
// =============================================================================

// ReadJSONLog loads a JSON log back into a conversation. Unknown keys
// are ignored; missing keys default.
func ReadJSONLog(path string) (*session.Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	conv := &session.Conversation{}
	if err := json.Unmarshal(data, conv); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if conv.Turns == nil {
		conv.Turns = make([]*session.Turn, 0)
	}
	return conv, nil
}
