// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for meltdown.
//
// # Key Types
//
//   - Config: flat configuration record, one JSON key per field
//   - Paths: per-profile filesystem layout resolver
//
// # Loading
//
// Configuration file locations (in order of precedence):
//   - config/<profile>/config.toml (optional hand-edited override)
//   - config/<profile>/config.json (canonical, machine-written)
//   - Built-in defaults
//
// Loading never fails startup: malformed files fall back to defaults
// with a single diagnostic line.
//
// # Snapshots
//
// Named snapshots live under config/<profile>/configs/ and round-trip
// the full Config record:
//
//	config.SaveSnapshot(paths, cfg, "coding")
//	cfg, err := config.LoadSnapshot(paths, "coding")
package config
