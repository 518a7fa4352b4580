// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/jeranaias/meltdown/internal/config"
	"github.com/jeranaias/meltdown/internal/display"
	"github.com/jeranaias/meltdown/internal/engine"
	"github.com/jeranaias/meltdown/internal/logs"
	"github.com/jeranaias/meltdown/internal/markdown"
	"github.com/jeranaias/meltdown/internal/session"
	"github.com/jeranaias/meltdown/internal/util"
)

// =============================================================================
// TAB RESOLUTION
// =============================================================================

// tab resolves a conversation id (empty means current) into the pair
// the engine and the display operations work on.
func (a *App) tab(id string) *engine.Tab {
	if id == "" {
		id = a.current
	}
	conv := a.store.Get(id)
	if conv == nil {
		return nil
	}
	return &engine.Tab{Conv: conv, Buf: a.buffer(id)}
}

func (a *App) buffer(id string) *display.Buffer {
	buf, ok := a.buffers[id]
	if !ok {
		buf = display.NewBuffer()
		a.buffers[id] = buf
	}
	return buf
}

// say prints a feedback line into the tab.
func (a *App) say(tab *engine.Tab, msg string) {
	if tab == nil {
		return
	}
	tab.Buf.Print(msg)
}

func (a *App) freshTabName() string {
	return fmt.Sprintf("Tab %d", a.store.Len()+1)
}

// rebuild replays a conversation's turns into a fresh buffer and
// formats the whole thing.
func (a *App) rebuild(conv *session.Conversation) {
	buf := display.NewBuffer()
	a.buffers[conv.ID] = buf

	userLabel := display.PromptLabel(a.cfg.AvatarUser, a.cfg.NameUser, a.cfg.Delimiter)
	aiLabel := display.PromptLabel(a.cfg.AvatarAI, a.cfg.NameAI, a.cfg.Delimiter)
	for _, turn := range conv.Turns {
		if buf.Modified {
			buf.Separator("")
		}
		buf.Prompt(display.RoleUser, userLabel)
		buf.Insert(" " + turn.UserText)
		buf.Prompt(display.RoleAI, aiLabel)
		buf.Insert(" " + turn.AIText)
	}
	if buf.Modified {
		a.pipeline.Format(buf, markdown.ModeAll)
	}
}

// =============================================================================
// TABS
// =============================================================================

// NewTab creates a conversation and selects it. Returns the new id, or
// "" when the tab limit is reached.
func (a *App) NewTab(name string, pos session.Position) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = a.freshTabName()
	}
	conv, err := a.store.Add(name, "", pos)
	if err != nil {
		a.say(a.tab(""), "Tab limit reached.")
		return ""
	}
	a.buffers[conv.ID] = display.NewBuffer()
	a.current = conv.ID
	a.markDirty()
	return conv.ID
}

// SelectTab makes id current. Unknown ids are ignored.
func (a *App) SelectTab(id string) bool {
	if a.store.Get(id) == nil {
		return false
	}
	a.current = id
	return true
}

// SelectIndex selects the tab at a 1-based position.
func (a *App) SelectIndex(n int) bool {
	ids := a.store.IDs()
	if n < 1 || n > len(ids) {
		return false
	}
	return a.SelectTab(ids[n-1])
}

// CycleTab moves the selection forward or backward with wraparound.
func (a *App) CycleTab(forward bool) {
	ids := a.store.IDs()
	if len(ids) == 0 {
		return
	}
	at := 0
	for i, id := range ids {
		if id == a.current {
			at = i
			break
		}
	}
	if forward {
		at = (at + 1) % len(ids)
	} else {
		at = (at - 1 + len(ids)) % len(ids)
	}
	a.current = ids[at]
}

// RenameTab renames the tab. Empty ids target the current tab.
func (a *App) RenameTab(id, name string) {
	if id == "" {
		id = a.current
	}
	a.store.Rename(id, name)
	a.markDirty()
}

// Pin sets the pin state and reorders pinned tabs first.
func (a *App) Pin(id string, pinned bool) {
	if id == "" {
		id = a.current
	}
	a.store.SetPin(id, pinned, true)
	a.markDirty()
}

// Close removes the tab. Non-empty tabs ask for force when confirm is
// configured. Closing the last tab leaves a fresh one behind.
func (a *App) Close(id string, force bool) {
	tab := a.tab(id)
	if tab == nil {
		return
	}
	if a.cfg.ConfirmClose && !force && !tab.Conv.IsEmpty() {
		a.say(tab, "Add force to confirm.")
		return
	}
	closing := tab.Conv.ID
	a.store.Remove(closing)
	delete(a.buffers, closing)
	if a.store.Len() == 0 {
		if conv, err := a.store.Add(a.freshTabName(), "", session.PositionEnd); err == nil {
			a.buffers[conv.ID] = display.NewBuffer()
			a.current = conv.ID
		}
	} else if closing == a.current {
		a.current = a.store.IDs()[0]
	}
	a.markDirty()
}

// Clear wipes the tab's turns and display.
func (a *App) Clear(id string, force bool) {
	tab := a.tab(id)
	if tab == nil {
		return
	}
	if a.cfg.ConfirmClear && !force && !tab.Conv.IsEmpty() {
		a.say(tab, "Add force to confirm.")
		return
	}
	a.store.Clear(tab.Conv.ID)
	tab.Buf.Reset()
	a.markDirty()
}

// =============================================================================
// DISPLAY
// =============================================================================

// Print writes a line into the tab. formatLast runs the markdown pass
// over the newest section; modified marks the session dirty.
func (a *App) Print(text, id string, modified, formatLast bool) {
	tab := a.tab(id)
	if tab == nil {
		return
	}
	tab.Buf.Print(text)
	if formatLast {
		a.pipeline.Format(tab.Buf, markdown.ModeLast)
	}
	if modified {
		a.markDirty()
	}
}

// Insert appends text to the tab's last line.
func (a *App) Insert(text, id string) {
	tab := a.tab(id)
	if tab == nil {
		return
	}
	tab.Buf.Insert(text)
}

// FormatText runs the markdown pipeline over the tab. Mode is one of
// normal, last, all, view; anything else falls back to normal.
func (a *App) FormatText(id, mode string) {
	tab := a.tab(id)
	if tab == nil {
		return
	}
	a.pipeline.Format(tab.Buf, parseMode(mode))
}

func parseMode(mode string) markdown.Mode {
	switch markdown.Mode(strings.ToLower(strings.TrimSpace(mode))) {
	case markdown.ModeLast:
		return markdown.ModeLast
	case markdown.ModeAll:
		return markdown.ModeAll
	case markdown.ModeView:
		return markdown.ModeView
	default:
		return markdown.ModeNormal
	}
}

// Refresh re-runs the full formatting pass over the existing buffer.
func (a *App) Refresh(id string) {
	a.FormatText(id, string(markdown.ModeAll))
}

// Replay rebuilds the tab's display from its stored turns.
func (a *App) Replay(id string) {
	tab := a.tab(id)
	if tab == nil {
		return
	}
	a.rebuild(tab.Conv)
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit is the input hot path: variable declarations and command
// invocations are consumed here, anything else becomes a model prompt
// for the tab.
func (a *App) Submit(text, id string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	tab := a.tab(id)
	if tab == nil {
		return
	}

	if m := a.varRe.FindStringSubmatch(text); m != nil {
		a.words.Set(m[1], strings.TrimSpace(m[2]))
		a.say(tab, "Variable "+varPrefix(a.cfg)+m[1]+" set.")
		return
	}

	if a.dispatcher.Submit(text) {
		return
	}

	a.vocab.Learn(text)
	a.inputs.Add(text)
	a.autoName(tab.Conv, text)

	file := a.pendingFile
	a.pendingFile = ""
	if err := a.engine.Stream(text, file, tab); err != nil {
		a.log.Error("stream", err)
	}
}

// autoName names a fresh tab after its first prompt. Tabs the user has
// renamed keep their name.
func (a *App) autoName(conv *session.Conversation, prompt string) {
	if conv.IsEphemeral() || !conv.IsEmpty() {
		return
	}
	if !strings.HasPrefix(conv.Name, "Tab ") {
		return
	}
	name := util.TruncateRunes(util.SingleLine(prompt), autoNameRunes)
	if name != "" {
		a.store.Rename(conv.ID, name)
		a.markDirty()
	}
}

// StopStream cancels the in-flight stream, if any.
func (a *App) StopStream() { a.engine.StopStream() }

// CopyLast puts the tab's last AI response on the clipboard.
func (a *App) CopyLast(id string) {
	tab := a.tab(id)
	if tab == nil {
		return
	}
	if a.clipboard == nil {
		a.say(tab, "No clipboard available.")
		return
	}
	turn := tab.Conv.LastTurn()
	if turn == nil || turn.AIText == "" {
		a.say(tab, "Nothing to copy.")
		return
	}
	if err := a.clipboard(turn.AIText); err != nil {
		a.log.Error("clipboard", err)
		return
	}
	a.say(tab, "Copied.")
}

// Open hands a path or URL to the configured or platform opener.
func (a *App) Open(target string) {
	target = strings.TrimSpace(target)
	if target == "" {
		return
	}
	open := a.opener
	if open == nil {
		open = platformOpen
	}
	if err := open(target); err != nil {
		a.log.Error("open", err)
		a.say(a.tab(""), "Could not open "+target)
	}
}

func platformOpen(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	return cmd.Start()
}

// Attach records a file or URL to send with the next prompt.
func (a *App) Attach(path string) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}
	a.pendingFile = path
	a.files.Add(path)
	a.say(a.tab(""), "Attached: "+path)
}

// SetModel records the model, persists the config and updates recents.
// Loading still happens on demand.
func (a *App) SetModel(name string) {
	name = strings.TrimSpace(name)
	a.cfg.Model = name
	a.engine.SetModel(name)
	if name != "" {
		a.models.Add(name)
	}
	a.saveConfig()
}

// SetSystem records the system prompt and persists the config.
func (a *App) SetSystem(text string) {
	a.cfg.System = strings.TrimSpace(text)
	if a.cfg.System != "" {
		a.systems.Add(a.cfg.System)
	}
	a.saveConfig()
}

func (a *App) saveConfig() {
	if err := config.Save(a.paths, a.cfg); err != nil {
		a.log.Error("config save", err)
	}
}

// SaveConfig writes a named config snapshot and remembers the name.
func (a *App) SaveConfig(name string) {
	if err := config.SaveSnapshot(a.paths, a.cfg, name); err != nil {
		a.log.Error("config snapshot", err)
		a.say(a.tab(""), "Could not save the config.")
		return
	}
	a.mem.SetLastConfig(name)
	a.say(a.tab(""), "Config saved: "+name)
}

// LoadConfig applies a named config snapshot in place and rewires the
// pieces that cache config-derived state.
func (a *App) LoadConfig(name string) {
	cfg, err := config.LoadSnapshot(a.paths, name)
	if err != nil {
		a.log.Error("config snapshot load", err)
		a.say(a.tab(""), "Could not load the config.")
		return
	}
	*a.cfg = *cfg
	a.pipeline = markdown.New(pipelineOptions(a.cfg), a.log)
	a.dispatcher.SetAliases(a.cfg.Aliases)
	a.engine.SetModel(a.cfg.Model)
	a.mem.SetLastConfig(name)
	a.saveConfig()
	a.say(a.tab(""), "Config loaded: "+name)
}

// =============================================================================
// LOGS & SNAPSHOTS
// =============================================================================

// SaveLog writes the tab's conversation in the given format and
// remembers the path in memory.json.
func (a *App) SaveLog(id string, format logs.Format, name string) string {
	tab := a.tab(id)
	if tab == nil {
		return ""
	}
	path, err := logs.Save(a.paths.LogDir(), tab.Conv, format, name, a.cfg.LogReferences)
	if err != nil {
		a.log.Error("log save", err)
		a.say(tab, "Could not save the log.")
		return ""
	}
	a.mem.SetLastLog(path)
	a.say(tab, "Log saved: "+path)
	return path
}

// SaveAllLogs writes every conversation, one file each.
func (a *App) SaveAllLogs(format logs.Format) {
	paths, err := logs.SaveAll(a.paths.LogDir(), a.store.Serializable(), format, a.cfg.LogReferences)
	if err != nil {
		a.log.Error("log save all", err)
	}
	a.say(a.tab(""), fmt.Sprintf("Saved %d logs.", len(paths)))
}

// SaveSession writes a named session snapshot.
func (a *App) SaveSession(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "session"
	}
	path := filepath.Join(a.paths.SessionSnapshotDir(), name+".json")
	if err := a.store.Save(path); err != nil {
		a.log.Error("session snapshot", err)
		a.say(a.tab(""), "Could not save the session.")
		return
	}
	a.mem.SetLastSession(name)
	a.say(a.tab(""), "Session saved: "+path)
}

// LoadSession replaces the live session from a named snapshot and
// rebuilds every tab.
func (a *App) LoadSession(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	path := filepath.Join(a.paths.SessionSnapshotDir(), name+".json")
	if err := a.store.Load(path); err != nil {
		a.log.Error("session snapshot load", err)
		a.say(a.tab(""), "Could not load the session.")
		return
	}
	a.buffers = make(map[string]*display.Buffer)
	ids := a.store.IDs()
	if len(ids) == 0 {
		if conv, err := a.store.Add(a.freshTabName(), "", session.PositionEnd); err == nil {
			ids = []string{conv.ID}
		}
	}
	if len(ids) == 0 {
		return
	}
	a.current = ids[0]
	for _, conv := range a.store.All() {
		a.rebuild(conv)
	}
	a.mem.SetLastSession(name)
	a.markDirty()
}
