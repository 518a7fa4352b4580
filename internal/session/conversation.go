// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides the persistent multi-tab conversation store.
package session

import (
	"github.com/jeranaias/meltdown/internal/util"
)

// =============================================================================
// TURN TYPE
// =============================================================================

// Turn is one user/AI exchange with its sampling metadata. The JSON
// keys are the on-disk conversation format and must round-trip.
type Turn struct {
	CreatedAt float64 `json:"date"`
	Duration  float64 `json:"duration"`

	UserText string `json:"user"`
	AIText   string `json:"ai"`
	File     string `json:"file"` // local path or URL, empty when absent

	Model         string  `json:"model"`
	Seed          int     `json:"seed"`
	HistoryWindow int     `json:"history"`
	MaxTokens     int     `json:"max_tokens"`
	Temperature   float64 `json:"temperature"`
	TopK          int     `json:"top_k"`
	TopP          float64 `json:"top_p"`
	ChatFormat    string  `json:"format"`
}

// Valid reports whether the turn satisfies its creation invariant:
// user text or an attached file must be present.
func (t *Turn) Valid() bool {
	return t.UserText != "" || t.File != ""
}

// Complete reports whether the turn has finished streaming.
func (t *Turn) Complete() bool {
	return t.AIText != ""
}

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is an ordered list of turns plus identity and pin state.
type Conversation struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	CreatedAt    float64 `json:"created"`
	LastModified float64 `json:"last_modified"`
	Pinned       bool    `json:"pin"`
	Turns        []*Turn `json:"items"`
}

// NewConversation creates a conversation with a minted ID unless one is
// supplied.
func NewConversation(name, id string) *Conversation {
	if id == "" {
		id = util.MintID()
	}
	now := util.Now()
	return &Conversation{
		ID:           id,
		Name:         name,
		CreatedAt:    now,
		LastModified: now,
		Turns:        make([]*Turn, 0),
	}
}

// IsEphemeral reports whether the conversation is never persisted and
// never used as history.
func (c *Conversation) IsEphemeral() bool {
	return util.IsEphemeralID(c.ID)
}

// IsEmpty reports whether the conversation has no turns.
func (c *Conversation) IsEmpty() bool {
	return len(c.Turns) == 0
}

// AddTurn appends a turn and truncates to the most recent maxTurns
// turns (0 = unbounded). Ordering is preserved.
func (c *Conversation) AddTurn(t *Turn, maxTurns int) {
	c.Turns = append(c.Turns, t)
	if maxTurns > 0 && len(c.Turns) > maxTurns {
		c.Turns = c.Turns[len(c.Turns)-maxTurns:]
	}
	c.LastModified = util.Now()
}

// LastTurn returns the most recent turn, or nil when empty.
func (c *Conversation) LastTurn() *Turn {
	if len(c.Turns) == 0 {
		return nil
	}
	return c.Turns[len(c.Turns)-1]
}

// Clear removes all turns and bumps the modification time.
func (c *Conversation) Clear() {
	c.Turns = make([]*Turn, 0)
	c.LastModified = util.Now()
}

// Clone returns a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.Turns = make([]*Turn, len(c.Turns))
	for i, t := range c.Turns {
		tc := *t
		clone.Turns[i] = &tc
	}
	return &clone
}

// Models returns the distinct model ids used across the turns, in
// first-use order. Log writers use this for model references.
func (c *Conversation) Models() []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range c.Turns {
		if t.Model != "" && !seen[t.Model] {
			seen[t.Model] = true
			out = append(out, t.Model)
		}
	}
	return out
}
