// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cmdqueue

import (
	"github.com/sahilm/fuzzy"

	"github.com/jeranaias/meltdown/internal/memory"
)

// =============================================================================
// PALETTE
// =============================================================================

// PaletteEntry is one row in the command palette.
type PaletteEntry struct {
	Name string
	Info string
}

// Palette lists commands for the picker: recently used first when the
// query is empty, fuzzy-ranked when it is not. Commands marked
// SkipPalette never appear.
type Palette struct {
	reg     *Registry
	recency *memory.CommandRecency
}

// NewPalette wires the command table to the recency store. recency may
// be nil.
func NewPalette(reg *Registry, recency *memory.CommandRecency) *Palette {
	return &Palette{reg: reg, recency: recency}
}

// Entries returns the palette rows for a query.
func (p *Palette) Entries(query string) []PaletteEntry {
	var names []string
	for _, name := range p.reg.SortedNames() {
		if cmd, ok := p.reg.Get(name); ok && !cmd.SkipPalette {
			names = append(names, name)
		}
	}

	if query == "" {
		if p.recency != nil {
			names = p.recency.Ranked(names)
		}
		return p.entriesFor(names)
	}

	matches := fuzzy.Find(query, names)
	ranked := make([]string, 0, len(matches))
	for _, m := range matches {
		ranked = append(ranked, m.Str)
	}
	return p.entriesFor(ranked)
}

func (p *Palette) entriesFor(names []string) []PaletteEntry {
	out := make([]PaletteEntry, 0, len(names))
	for _, name := range names {
		cmd, ok := p.reg.Get(name)
		if !ok {
			continue
		}
		out = append(out, PaletteEntry{Name: name, Info: cmd.Info})
	}
	return out
}
