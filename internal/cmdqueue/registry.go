// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cmdqueue

import (
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// COMMAND TABLE
// =============================================================================

// ArgType selects how a command's argument string is coerced.
type ArgType string

const (
	ArgStr   ArgType = "str"
	ArgInt   ArgType = "int"
	ArgFloat ArgType = "float"

	// ArgForce maps the literal word "force" to true and an empty
	// argument to false; anything else fails coercion.
	ArgForce ArgType = "force"
)

// Arg is one coerced argument handed to a command action.
type Arg struct {
	Raw   string
	Str   string
	Int   int
	Float float64
	Force bool
}

// Command is one entry in the table.
type Command struct {
	Name string

	// Info is the one-line help text shown in the palette.
	Info string

	// Type defaults to ArgStr.
	Type ArgType

	// ArgRequired rejects dispatch with an empty argument.
	ArgRequired bool

	// SkipPalette hides the command from the palette listing.
	SkipPalette bool

	Action func(Arg)
}

// coerce turns the raw argument into a typed Arg. subst is applied to
// string arguments only.
func (c *Command) coerce(raw string, subst func(string) string) (Arg, bool) {
	raw = strings.TrimSpace(raw)
	if c.ArgRequired && raw == "" {
		return Arg{}, false
	}
	arg := Arg{Raw: raw}
	switch c.Type {
	case ArgInt:
		if raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return Arg{}, false
			}
			arg.Int = n
		}
	case ArgFloat:
		if raw != "" {
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return Arg{}, false
			}
			arg.Float = f
		}
	case ArgForce:
		switch raw {
		case "":
		case "force":
			arg.Force = true
		default:
			return Arg{}, false
		}
	default:
		if subst != nil {
			raw = subst(raw)
		}
		arg.Str = raw
		arg.Raw = raw
	}
	return arg, true
}

// Registry holds the command table in registration order.
type Registry struct {
	order    []string
	commands map[string]*Command
}

// NewRegistry creates an empty table.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]*Command)}
}

// Register adds or replaces a command.
func (r *Registry) Register(c Command) {
	if c.Type == "" {
		c.Type = ArgStr
	}
	if _, seen := r.commands[c.Name]; !seen {
		r.order = append(r.order, c.Name)
	}
	r.commands[c.Name] = &c
}

// Get looks up a command by exact name.
func (r *Registry) Get(name string) (*Command, bool) {
	c, ok := r.commands[name]
	return c, ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// SortedNames returns the registered names alphabetically.
func (r *Registry) SortedNames() []string {
	out := r.Names()
	sort.Strings(out)
	return out
}
