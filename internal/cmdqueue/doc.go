// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cmdqueue parses and dispatches slash commands.
//
// Input that starts with the configured prefix character is parsed
// into one or more command items (chained with the and-char) and
// appended to the queue list. A cooperative dispatcher drains the
// queues one item per queue per tick, honoring sleep delays, expanding
// aliases and falling back to similarity matching for misspelled
// names.
//
// # Key Types
//
//   - Registry: the command table with typed argument coercion
//   - Dispatcher: the queue list plus the tick loop
//   - Arg: one coerced command argument
//
// # Usage
//
//	reg := cmdqueue.NewRegistry()
//	reg.Register(cmdqueue.Command{Name: "clear", Action: onClear})
//	d := cmdqueue.NewDispatcher(reg, cmdqueue.DispatchOptions{})
//	if d.Submit(input) {
//	    return // was a command
//	}
package cmdqueue
