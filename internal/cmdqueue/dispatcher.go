// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cmdqueue

import (
	"strconv"
	"strings"

	"github.com/jeranaias/meltdown/internal/errlog"
)

// =============================================================================
// QUEUES
// =============================================================================

// TickMs is the cooperative dispatch period in milliseconds.
const TickMs = 25

// maxAliasExpansions bounds alias expansion per queue per tick so a
// self-referential alias cannot spin forever.
const maxAliasExpansions = 10

// Queue is one submitted invocation: its remaining items plus the
// countdown set by sleep.
type Queue struct {
	items  []Item
	waitMs int
}

// DispatchOptions configures a Dispatcher. Zero values get defaults.
type DispatchOptions struct {
	Prefix           string  // default "/"
	AndChar          string  // default "&"
	SimilarThreshold float64 // default 0.7

	// Aliases maps a name to a full invocation body.
	Aliases map[string]string

	// Subst is applied to string arguments before the action runs.
	Subst func(string) string

	// OnDispatch is called with the resolved command name each time an
	// action runs; the palette recency store hooks in here.
	OnDispatch func(name string)

	Log *errlog.Logger
}

// Dispatcher owns the queue list. It is driven from one goroutine: the
// owner calls Submit for input and Tick every TickMs.
type Dispatcher struct {
	reg    *Registry
	opts   DispatchOptions
	queues []*Queue
}

// NewDispatcher creates a dispatcher over a command table.
func NewDispatcher(reg *Registry, opts DispatchOptions) *Dispatcher {
	if opts.Prefix == "" {
		opts.Prefix = "/"
	}
	opts.Prefix = string([]rune(opts.Prefix)[0])
	if opts.AndChar == "" {
		opts.AndChar = "&"
	}
	if opts.SimilarThreshold <= 0 {
		opts.SimilarThreshold = 0.7
	}
	return &Dispatcher{reg: reg, opts: opts}
}

// SetAliases replaces the alias table (config reload).
func (d *Dispatcher) SetAliases(aliases map[string]string) {
	d.opts.Aliases = aliases
}

// Submit enqueues input when it is a command invocation. Returns false
// for plain text, which the caller sends to the model instead.
func (d *Dispatcher) Submit(input string) bool {
	if !IsCommand(input, d.opts.Prefix) {
		return false
	}
	items := ParseInvocation(input, d.opts.Prefix, d.opts.AndChar)
	if len(items) == 0 {
		return true
	}
	d.queues = append(d.queues, &Queue{items: items})
	return true
}

// Pending reports whether any queue still holds work.
func (d *Dispatcher) Pending() bool {
	return len(d.queues) > 0
}

// Tick runs one cooperative pass: every queue either burns down its
// wait or fires at most one item. Empty queues are dropped afterwards.
func (d *Dispatcher) Tick() {
	for _, q := range d.queues {
		d.tickQueue(q)
	}
	kept := d.queues[:0]
	for _, q := range d.queues {
		if len(q.items) > 0 || q.waitMs > 0 {
			kept = append(kept, q)
		}
	}
	d.queues = kept
}

func (d *Dispatcher) tickQueue(q *Queue) {
	if q.waitMs > 0 {
		q.waitMs -= TickMs
		if q.waitMs < 0 {
			q.waitMs = 0
		}
		return
	}

	expansions := 0
	for len(q.items) > 0 {
		item := q.items[0]
		q.items = q.items[1:]

		if item.Cmd == "sleep" {
			q.waitMs = sleepMs(item.Arg)
			return
		}

		if cmd, ok := d.reg.Get(item.Cmd); ok {
			d.run(cmd, item.Arg)
			return
		}
		if body, ok := d.opts.Aliases[item.Cmd]; ok {
			if expansions++; expansions > maxAliasExpansions {
				d.opts.Log.Warn("alias expansion limit reached: " + item.Cmd)
				return
			}
			q.items = append(ParseInvocation(body, d.opts.Prefix, d.opts.AndChar), q.items...)
			continue
		}
		if name, ok := BestMatch(item.Cmd, d.reg.Names(), d.opts.SimilarThreshold); ok {
			cmd, _ := d.reg.Get(name)
			d.run(cmd, item.Arg)
			return
		}
		if name, ok := BestMatch(item.Cmd, aliasNames(d.opts.Aliases), d.opts.SimilarThreshold); ok {
			if expansions++; expansions > maxAliasExpansions {
				return
			}
			q.items = append(ParseInvocation(d.opts.Aliases[name], d.opts.Prefix, d.opts.AndChar), q.items...)
			continue
		}
		// Unknown command: drop silently and let the next item fire on
		// the next tick.
		return
	}
}

func (d *Dispatcher) run(cmd *Command, rawArg string) {
	arg, ok := cmd.coerce(rawArg, d.opts.Subst)
	if !ok {
		d.opts.Log.Warn("bad argument for /" + cmd.Name + ": " + rawArg)
		return
	}
	if d.opts.OnDispatch != nil {
		d.opts.OnDispatch(cmd.Name)
	}
	if cmd.Action != nil {
		cmd.Action(arg)
	}
}

// sleepMs interprets a sleep argument as seconds (default 1).
func sleepMs(arg string) int {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 1000
	}
	secs, err := strconv.ParseFloat(arg, 64)
	if err != nil || secs < 0 {
		return 1000
	}
	return int(secs * 1000)
}

func aliasNames(aliases map[string]string) []string {
	out := make([]string, 0, len(aliases))
	for name := range aliases {
		out = append(out, name)
	}
	return out
}
