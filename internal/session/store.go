// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"os"

	"github.com/jeranaias/meltdown/internal/util"
)

// =============================================================================
// STORE
// =============================================================================

// Position selects where a new conversation is inserted.
type Position string

const (
	PositionStart Position = "start"
	PositionEnd   Position = "end"
)

// Options bound the store's growth. Zero values mean unlimited.
type Options struct {
	// MaxTurns caps the turns kept per conversation.
	MaxTurns int

	// MaxTabs caps the conversations kept on load (0 = unlimited).
	MaxTabs int

	// MaxNameLength caps conversation names in runes.
	MaxNameLength int

	// NoEmpty drops conversations with zero turns on save.
	NoEmpty bool
}

// Store holds the ordered conversations. Insertion order is tab order.
// The store is owned by the main goroutine and is not synchronized.
type Store struct {
	opts  Options
	order []*Conversation
	index map[string]*Conversation
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	if opts.MaxNameLength <= 0 {
		opts.MaxNameLength = 50
	}
	return &Store{
		opts:  opts,
		index: make(map[string]*Conversation),
	}
}

// =============================================================================
// CONVERSATION OPERATIONS
// =============================================================================

// ErrTabLimit is returned by Add when MaxTabs is reached.
var ErrTabLimit = errors.New("tab limit reached")

// Add mints a conversation (or adopts the given id) and inserts it at
// the requested position. Names are truncated to MaxNameLength.
// Ephemeral conversations never count against MaxTabs.
func (s *Store) Add(name, id string, pos Position) (*Conversation, error) {
	if id != "" && s.index[id] != nil {
		return nil, errors.New("conversation id already present")
	}
	conv := NewConversation(util.TruncateRunes(util.SingleLine(name), s.opts.MaxNameLength), id)

	if s.opts.MaxTabs > 0 && !conv.IsEphemeral() && s.countPersistent() >= s.opts.MaxTabs {
		return nil, ErrTabLimit
	}

	if pos == PositionStart {
		s.order = append([]*Conversation{conv}, s.order...)
	} else {
		s.order = append(s.order, conv)
	}
	s.index[conv.ID] = conv
	return conv, nil
}

// Remove drops a conversation. Unknown ids are a no-op.
func (s *Store) Remove(id string) {
	conv := s.index[id]
	if conv == nil {
		return
	}
	delete(s.index, id)
	for i, c := range s.order {
		if c == conv {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// Get returns a conversation by id, or nil.
func (s *Store) Get(id string) *Conversation {
	return s.index[id]
}

// Clear empties a conversation's turns. Unknown ids are a no-op.
func (s *Store) Clear(id string) {
	if conv := s.index[id]; conv != nil {
		conv.Clear()
	}
}

// AddTurn appends a turn to a conversation, enforcing the configured
// turn cap and auto-naming unnamed non-ephemeral conversations from the
// first user prompt.
func (s *Store) AddTurn(id string, t *Turn) bool {
	conv := s.index[id]
	if conv == nil || !t.Valid() {
		return false
	}
	conv.AddTurn(t, s.opts.MaxTurns)
	if conv.Name == "" && !conv.IsEphemeral() {
		conv.Name = util.TruncateRunes(util.SingleLine(t.UserText), s.opts.MaxNameLength)
	}
	return true
}

// Rename sets a conversation's name, truncated to MaxNameLength.
func (s *Store) Rename(id, name string) {
	if conv := s.index[id]; conv != nil {
		conv.Name = util.TruncateRunes(util.SingleLine(name), s.opts.MaxNameLength)
		conv.LastModified = util.Now()
	}
}

// =============================================================================
// ORDERING & PINS
// =============================================================================

// SetPin updates a conversation's pin state. When reorder is true all
// pinned conversations move to the front, preserving relative order on
// both sides.
func (s *Store) SetPin(id string, pinned, reorder bool) {
	conv := s.index[id]
	if conv == nil {
		return
	}
	conv.Pinned = pinned
	conv.LastModified = util.Now()
	if reorder {
		s.pinnedFirst()
	}
}

// pinnedFirst stable-partitions the order: pinned then unpinned.
func (s *Store) pinnedFirst() {
	pinned := make([]*Conversation, 0, len(s.order))
	rest := make([]*Conversation, 0, len(s.order))
	for _, c := range s.order {
		if c.Pinned {
			pinned = append(pinned, c)
		} else {
			rest = append(rest, c)
		}
	}
	s.order = append(pinned, rest...)
}

// Reorder applies an authoritative tab-order update. Ids not in the
// store are skipped; stored conversations missing from the sequence
// keep their relative order at the end.
func (s *Store) Reorder(ids []string) {
	seen := map[string]bool{}
	out := make([]*Conversation, 0, len(s.order))
	for _, id := range ids {
		if conv := s.index[id]; conv != nil && !seen[id] {
			out = append(out, conv)
			seen[id] = true
		}
	}
	for _, c := range s.order {
		if !seen[c.ID] {
			out = append(out, c)
		}
	}
	s.order = out
}

// All returns the conversations in tab order.
func (s *Store) All() []*Conversation {
	out := make([]*Conversation, len(s.order))
	copy(out, s.order)
	return out
}

// IDs returns the conversation ids in tab order.
func (s *Store) IDs() []string {
	out := make([]string, len(s.order))
	for i, c := range s.order {
		out[i] = c.ID
	}
	return out
}

// Len returns the number of conversations.
func (s *Store) Len() int {
	return len(s.order)
}

func (s *Store) countPersistent() int {
	n := 0
	for _, c := range s.order {
		if !c.IsEphemeral() {
			n++
		}
	}
	return n
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Serializable returns the conversations eligible for persistence:
// ephemerals are always dropped, and empty conversations are dropped
// when the NoEmpty policy is active. Insertion order is preserved.
func (s *Store) Serializable() []*Conversation {
	out := make([]*Conversation, 0, len(s.order))
	for _, c := range s.order {
		if c.IsEphemeral() {
			continue
		}
		if s.opts.NoEmpty && c.IsEmpty() {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Save writes the store to path as a JSON array of conversations.
func (s *Store) Save(path string) error {
	return util.WriteJSON(path, s.Serializable())
}

// Load replaces the store contents from path. On failure the store
// resets to empty and the error is returned so the caller can log one
// diagnostic and optionally create a single fresh tab; startup must
// continue either way. MaxTabs caps the number of loaded conversations
// when positive.
func (s *Store) Load(path string) error {
	s.order = nil
	s.index = make(map[string]*Conversation)

	var convs []*Conversation
	if err := util.ReadJSON(path, &convs); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, c := range convs {
		if c == nil || c.ID == "" || c.IsEphemeral() {
			continue
		}
		if s.opts.MaxTabs > 0 && len(s.order) >= s.opts.MaxTabs {
			break
		}
		if s.opts.MaxTurns > 0 && len(c.Turns) > s.opts.MaxTurns {
			c.Turns = c.Turns[len(c.Turns)-s.opts.MaxTurns:]
		}
		if s.index[c.ID] != nil {
			continue
		}
		s.order = append(s.order, c)
		s.index[c.ID] = c
	}
	return nil
}
