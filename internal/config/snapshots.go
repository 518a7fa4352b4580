// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for meltdown.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jeranaias/meltdown/internal/util"
)

// =============================================================================
// NAMED CONFIG SNAPSHOTS
// =============================================================================

// ErrSnapshotNotFound is returned when a named snapshot does not exist.
var ErrSnapshotNotFound = errors.New("config snapshot not found")

// SaveSnapshot writes the current configuration under a name in
// config/<profile>/configs/.
func SaveSnapshot(paths *Paths, cfg *Config, name string) error {
	name = sanitizeSnapshotName(name)
	if name == "" {
		return errors.New("snapshot name is empty")
	}
	return util.WriteJSON(filepath.Join(paths.SnapshotDir(), name+".json"), cfg)
}

// LoadSnapshot reads a named snapshot over the defaults. Unknown keys
// are ignored; missing keys take their defaults.
func LoadSnapshot(paths *Paths, name string) (*Config, error) {
	name = sanitizeSnapshotName(name)
	cfg := Default()
	err := util.ReadJSON(filepath.Join(paths.SnapshotDir(), name+".json"), cfg)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	cfg.clamp()
	return cfg, nil
}

// DeleteSnapshot removes a named snapshot. Unknown names are a no-op.
func DeleteSnapshot(paths *Paths, name string) error {
	name = sanitizeSnapshotName(name)
	err := os.Remove(filepath.Join(paths.SnapshotDir(), name+".json"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ListSnapshots returns the snapshot names, sorted.
func ListSnapshots(paths *Paths) []string {
	entries, err := os.ReadDir(paths.SnapshotDir())
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names
}

// sanitizeSnapshotName strips path separators so a snapshot name can
// never escape the snapshot directory.
func sanitizeSnapshotName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	return name
}
