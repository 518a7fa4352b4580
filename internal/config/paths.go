// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for meltdown.
package config

import (
	"os"
	"path/filepath"
)

// =============================================================================
// PROFILE PATHS
// =============================================================================

// Paths resolves the per-profile filesystem layout:
//
//	config/<profile>/config.json       configuration values
//	config/<profile>/configs/*.json    named config snapshots
//	data/<profile>/session.json        persisted conversations
//	data/<profile>/sessions/*.json     named session snapshots
//	data/<profile>/*.json              recent lists, memory, commands
//	data/<profile>/*_key.txt           provider API keys
//	data/<profile>/errors/error.log    rotating error log
//	data/<profile>/logs/               saved conversation logs
type Paths struct {
	// Root is the base directory, default ~/.meltdown.
	Root string

	// Profile is the active profile name, default "main".
	Profile string
}

// NewPaths resolves the layout for a profile. An empty root defaults to
// ~/.meltdown; an empty profile defaults to "main".
func NewPaths(root, profile string) (*Paths, error) {
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		root = filepath.Join(home, ".meltdown")
	}
	if profile == "" {
		profile = "main"
	}
	return &Paths{Root: root, Profile: profile}, nil
}

// ConfigDir returns config/<profile>.
func (p *Paths) ConfigDir() string {
	return filepath.Join(p.Root, "config", p.Profile)
}

// ConfigFile returns the canonical config.json path.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir(), "config.json")
}

// ConfigOverrideFile returns the optional config.toml override path.
func (p *Paths) ConfigOverrideFile() string {
	return filepath.Join(p.ConfigDir(), "config.toml")
}

// SnapshotDir returns config/<profile>/configs.
func (p *Paths) SnapshotDir() string {
	return filepath.Join(p.ConfigDir(), "configs")
}

// DataDir returns data/<profile>.
func (p *Paths) DataDir() string {
	return filepath.Join(p.Root, "data", p.Profile)
}

// DataFile returns a file directly under the data dir.
func (p *Paths) DataFile(name string) string {
	return filepath.Join(p.DataDir(), name)
}

// SessionFile returns the persisted session path.
func (p *Paths) SessionFile() string {
	return p.DataFile("session.json")
}

// SessionSnapshotDir returns data/<profile>/sessions.
func (p *Paths) SessionSnapshotDir() string {
	return filepath.Join(p.DataDir(), "sessions")
}

// LogDir returns data/<profile>/logs.
func (p *Paths) LogDir() string {
	return filepath.Join(p.DataDir(), "logs")
}

// ErrorDir returns data/<profile>/errors.
func (p *Paths) ErrorDir() string {
	return filepath.Join(p.DataDir(), "errors")
}

// KeyFile returns the API key file for a provider ("openai", "google",
// "anthropic").
func (p *Paths) KeyFile(provider string) string {
	return p.DataFile(provider + "_key.txt")
}

// PIDFile returns the advisory singleton lock path in the system temp
// directory, namespaced by program and profile.
func (p *Paths) PIDFile(program string) string {
	name := "mlt_" + program
	if p.Profile != "main" {
		name += "_" + p.Profile
	}
	return filepath.Join(os.TempDir(), name+".pid")
}

// MailboxFile returns the listener mailbox path in the system temp
// directory.
func (p *Paths) MailboxFile(program string) string {
	name := "mlt_" + program
	if p.Profile != "main" {
		name += "_" + p.Profile
	}
	return filepath.Join(os.TempDir(), name+".input")
}
