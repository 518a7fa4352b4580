// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package memory

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"

	"github.com/jeranaias/meltdown/internal/util"
)

// =============================================================================
// RECENT LIST
// =============================================================================

// RecentList is a bounded most-recent-first list of unique strings,
// backing models.json, inputs.json, systems.json and files.json.
type RecentList struct {
	mu    sync.Mutex
	path  string
	max   int
	items []string
}

// OpenRecent loads a recent list from path, bounded to max entries
// (0 = unlimited). Missing or malformed files start empty.
func OpenRecent(path string, max int) (*RecentList, string) {
	l := &RecentList{path: path, max: max}
	if err := util.ReadJSON(path, &l.items); err != nil && !os.IsNotExist(err) {
		l.items = nil
		return l, "recent list unreadable, starting empty: " + err.Error()
	}
	if max > 0 && len(l.items) > max {
		l.items = l.items[:max]
	}
	return l, ""
}

// Add moves value to the front, deduplicating, and persists.
// Blank values are ignored.
func (l *RecentList) Add(value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, 0, len(l.items)+1)
	out = append(out, value)
	for _, v := range l.items {
		if v != value {
			out = append(out, v)
		}
	}
	if l.max > 0 && len(out) > l.max {
		out = out[:l.max]
	}
	l.items = out
	_ = util.WriteJSON(l.path, l.items)
}

// Items returns a copy of the list, most recent first.
func (l *RecentList) Items() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.items))
	copy(out, l.items)
	return out
}

// Match ranks the list against a query for completion. An empty query
// returns the list in recency order.
func (l *RecentList) Match(query string) []string {
	items := l.Items()
	if query == "" {
		return items
	}
	matches := fuzzy.Find(query, items)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, items[m.Index])
	}
	return out
}

// =============================================================================
// COMMAND RECENCY
// =============================================================================

// commandStamp is the on-disk value of commands.json entries.
type commandStamp struct {
	Date float64 `json:"date"`
}

// CommandRecency tracks when each command was last dispatched, for
// palette ordering. Keys not present in the running command table are
// dropped by the caller on load.
type CommandRecency struct {
	mu    sync.Mutex
	path  string
	dates map[string]commandStamp
}

// OpenCommandRecency loads commands.json. known filters the loaded keys
// to the running command table; nil keeps everything.
func OpenCommandRecency(path string, known func(name string) bool) (*CommandRecency, string) {
	c := &CommandRecency{path: path, dates: map[string]commandStamp{}}
	diag := ""
	if err := util.ReadJSON(path, &c.dates); err != nil && !os.IsNotExist(err) {
		c.dates = map[string]commandStamp{}
		diag = "commands.json unreadable, starting empty: " + err.Error()
	}
	if known != nil {
		for name := range c.dates {
			if !known(name) {
				delete(c.dates, name)
			}
		}
	}
	return c, diag
}

// Touch records a dispatch of name at the current clock and persists.
func (c *CommandRecency) Touch(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dates[name] = commandStamp{Date: util.Now()}
	_ = util.WriteJSON(c.path, c.dates)
}

// Ranked returns command names most-recently-used first; names without
// a stamp sort last in lexical order.
func (c *CommandRecency) Ranked(names []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(names))
	copy(out, names)
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := c.dates[out[i]].Date, c.dates[out[j]].Date
		if di != dj {
			return di > dj
		}
		return out[i] < out[j]
	})
	return out
}

// =============================================================================
// AUTOCOMPLETE VOCABULARY
// =============================================================================

// Vocabulary is the learned input word list behind autocomplete.json.
type Vocabulary struct {
	mu    sync.Mutex
	path  string
	max   int
	words []string
	index map[string]bool
}

// OpenVocabulary loads autocomplete.json bounded to max words.
func OpenVocabulary(path string, max int) (*Vocabulary, string) {
	v := &Vocabulary{path: path, max: max, index: map[string]bool{}}
	diag := ""
	if err := util.ReadJSON(path, &v.words); err != nil && !os.IsNotExist(err) {
		v.words = nil
		diag = "autocomplete.json unreadable, starting empty: " + err.Error()
	}
	for _, w := range v.words {
		v.index[w] = true
	}
	return v, diag
}

// Learn extracts words of three or more letters from submitted text and
// persists any new ones.
func (v *Vocabulary) Learn(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	changed := false
	for _, w := range strings.Fields(text) {
		w = strings.Trim(strings.ToLower(w), ".,;:!?\"'()[]{}")
		if len(w) < 3 || v.index[w] {
			continue
		}
		v.words = append(v.words, w)
		v.index[w] = true
		changed = true
	}
	if v.max > 0 && len(v.words) > v.max {
		drop := v.words[:len(v.words)-v.max]
		for _, w := range drop {
			delete(v.index, w)
		}
		v.words = v.words[len(v.words)-v.max:]
		changed = true
	}
	if changed {
		_ = util.WriteJSON(v.path, v.words)
	}
}

// Complete returns learned words ranked against a prefix query.
func (v *Vocabulary) Complete(query string) []string {
	v.mu.Lock()
	words := make([]string, len(v.words))
	copy(words, v.words)
	v.mu.Unlock()

	if query == "" {
		return words
	}
	matches := fuzzy.Find(strings.ToLower(query), words)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, words[m.Index])
	}
	return out
}
