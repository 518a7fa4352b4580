// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session manages the multi-tab conversation store and its
// on-disk form.
//
// A Session is an ordered list of conversations; each conversation is
// an ordered list of turns. Conversations whose id starts with the
// ephemeral prefix are held in memory but never persisted.
//
// # Key Types
//
//   - Turn: one user/assistant exchange plus the sampling parameters
//     that produced it
//   - Conversation: a named, optionally pinned sequence of turns
//   - Store: the tab-ordered collection with persistence
//
// # Usage
//
//	store := session.NewStore(session.Options{MaxTurns: 200})
//	if err := store.Load(paths.SessionFile()); err != nil {
//	    log.Warn("session reset: " + err.Error())
//	}
//	conv, _ := store.Add("", "", session.PositionEnd)
//	store.AddTurn(conv.ID, turn)
//	store.Save(paths.SessionFile())
package session
