// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app wires the conversational core together: the session
// store, per-tab display buffers, the markdown pipeline, the command
// dispatcher, the keyword engine, recents memory, and the model
// engine, all owned by one event-loop goroutine.
//
// # Key Types
//
//   - App: the assembled services and the owner event loop.
//   - Options: construction-time wiring (config, paths, factories).
//   - Status: the periodic snapshot a frontend can render from.
//
// # Usage
//
//	a, err := app.New(app.Options{Config: cfg, Paths: paths, Log: log})
//	if err != nil { ... }
//	go a.Run()
//	a.Do(func() { a.Submit("hello", "") })
//	a.Quit()
//
// All mutable state belongs to the Run goroutine. External callers
// reach it through Post or Do; workers started by the engine post
// their display and session writes the same way.
package app
