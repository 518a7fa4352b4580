// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"github.com/jeranaias/meltdown/internal/cmdqueue"
	"github.com/jeranaias/meltdown/internal/logs"
	"github.com/jeranaias/meltdown/internal/session"
)

// registerCommands fills the command table. Actions run on the owner
// goroutine because the dispatcher ticks there.
func (a *App) registerCommands() {
	reg := func(c cmdqueue.Command) { a.registry.Register(c) }

	// Tabs
	reg(cmdqueue.Command{
		Name: "new", Info: "Open a new tab",
		Action: func(arg cmdqueue.Arg) { a.NewTab(arg.Str, session.PositionEnd) },
	})
	reg(cmdqueue.Command{
		Name: "close", Info: "Close the current tab", Type: cmdqueue.ArgForce,
		Action: func(arg cmdqueue.Arg) { a.Close("", arg.Force) },
	})
	reg(cmdqueue.Command{
		Name: "clear", Info: "Clear the current tab", Type: cmdqueue.ArgForce,
		Action: func(arg cmdqueue.Arg) { a.Clear("", arg.Force) },
	})
	reg(cmdqueue.Command{
		Name: "select", Info: "Select a tab by number", Type: cmdqueue.ArgInt, ArgRequired: true,
		Action: func(arg cmdqueue.Arg) { a.SelectIndex(arg.Int) },
	})
	reg(cmdqueue.Command{
		Name: "next", Info: "Select the next tab",
		Action: func(cmdqueue.Arg) { a.CycleTab(true) },
	})
	reg(cmdqueue.Command{
		Name: "prev", Info: "Select the previous tab",
		Action: func(cmdqueue.Arg) { a.CycleTab(false) },
	})
	reg(cmdqueue.Command{
		Name: "rename", Info: "Rename the current tab", ArgRequired: true,
		Action: func(arg cmdqueue.Arg) { a.RenameTab("", arg.Str) },
	})
	reg(cmdqueue.Command{
		Name: "pin", Info: "Pin the current tab",
		Action: func(cmdqueue.Arg) { a.Pin("", true) },
	})
	reg(cmdqueue.Command{
		Name: "unpin", Info: "Unpin the current tab",
		Action: func(cmdqueue.Arg) { a.Pin("", false) },
	})

	// Display
	reg(cmdqueue.Command{
		Name: "echo", Info: "Print text into the tab", ArgRequired: true,
		Action: func(arg cmdqueue.Arg) { a.Print(arg.Str, "", true, true) },
	})
	reg(cmdqueue.Command{
		Name: "insert", Info: "Append text to the last line", ArgRequired: true,
		Action: func(arg cmdqueue.Arg) { a.Insert(arg.Str, "") },
	})
	reg(cmdqueue.Command{
		Name: "format", Info: "Run the formatter (normal, last, all, view)",
		Action: func(arg cmdqueue.Arg) { a.FormatText("", arg.Str) },
	})
	reg(cmdqueue.Command{
		Name: "refresh", Info: "Re-format the whole tab",
		Action: func(cmdqueue.Arg) { a.Refresh("") },
	})
	reg(cmdqueue.Command{
		Name: "replay", Info: "Rebuild the tab from its turns",
		Action: func(cmdqueue.Arg) { a.Replay("") },
	})

	// Model
	reg(cmdqueue.Command{
		Name: "model", Info: "Set the model (path or remote id)",
		Action: func(arg cmdqueue.Arg) {
			if arg.Str == "" {
				a.say(a.tab(""), "Model: "+a.engine.Model())
				return
			}
			a.SetModel(arg.Str)
		},
	})
	reg(cmdqueue.Command{
		Name: "load", Info: "Load the configured model",
		Action: func(cmdqueue.Arg) {
			if err := a.engine.Load(a.tab(""), false); err != nil {
				a.log.Error("load", err)
			}
		},
	})
	reg(cmdqueue.Command{
		Name: "unload", Info: "Unload the model",
		Action: func(cmdqueue.Arg) { a.engine.Unload(a.tab(""), true) },
	})
	reg(cmdqueue.Command{
		Name: "stop", Info: "Stop the active stream",
		Action: func(cmdqueue.Arg) { a.StopStream() },
	})
	reg(cmdqueue.Command{
		Name: "system", Info: "Set the system prompt", ArgRequired: true,
		Action: func(arg cmdqueue.Arg) { a.SetSystem(arg.Str) },
	})
	reg(cmdqueue.Command{
		Name: "file", Info: "Attach a file or URL to the next prompt", ArgRequired: true,
		Action: func(arg cmdqueue.Arg) { a.Attach(arg.Str) },
	})

	// Logs
	reg(cmdqueue.Command{
		Name: "log", Info: "Save the tab as a text log",
		Action: func(arg cmdqueue.Arg) { a.SaveLog("", logs.FormatText, arg.Str) },
	})
	reg(cmdqueue.Command{
		Name: "logjson", Info: "Save the tab as a JSON log",
		Action: func(arg cmdqueue.Arg) { a.SaveLog("", logs.FormatJSON, arg.Str) },
	})
	reg(cmdqueue.Command{
		Name: "logmarkdown", Info: "Save the tab as a markdown log",
		Action: func(arg cmdqueue.Arg) { a.SaveLog("", logs.FormatMarkdown, arg.Str) },
	})
	reg(cmdqueue.Command{
		Name: "saveall", Info: "Save every tab (text, json or markdown)",
		Action: func(arg cmdqueue.Arg) { a.SaveAllLogs(logs.ParseFormat(arg.Str)) },
	})

	// Snapshots
	reg(cmdqueue.Command{
		Name: "session", Info: "Save a named session snapshot",
		Action: func(arg cmdqueue.Arg) { a.SaveSession(arg.Str) },
	})
	reg(cmdqueue.Command{
		Name: "loadsession", Info: "Load a named session snapshot", ArgRequired: true,
		Action: func(arg cmdqueue.Arg) { a.LoadSession(arg.Str) },
	})
	reg(cmdqueue.Command{
		Name: "saveconfig", Info: "Save a named config snapshot", ArgRequired: true,
		Action: func(arg cmdqueue.Arg) { a.SaveConfig(arg.Str) },
	})
	reg(cmdqueue.Command{
		Name: "loadconfig", Info: "Load a named config snapshot", ArgRequired: true,
		Action: func(arg cmdqueue.Arg) { a.LoadConfig(arg.Str) },
	})

	// Misc
	reg(cmdqueue.Command{
		Name: "copy", Info: "Copy the last response to the clipboard",
		Action: func(cmdqueue.Arg) { a.CopyLast("") },
	})
	reg(cmdqueue.Command{
		Name: "open", Info: "Open a path or URL", ArgRequired: true,
		Action: func(arg cmdqueue.Arg) { a.Open(arg.Str) },
	})
	reg(cmdqueue.Command{
		Name: "sleep", Info: "Pause this queue for N seconds", SkipPalette: true,
		Action: func(cmdqueue.Arg) {},
	})
	reg(cmdqueue.Command{
		Name: "exit", Info: "Quit", Type: cmdqueue.ArgForce,
		Action: func(arg cmdqueue.Arg) {
			if a.cfg.ConfirmExit && !arg.Force {
				a.say(a.tab(""), "Add force to confirm.")
				return
			}
			a.Quit()
		},
	})
}
