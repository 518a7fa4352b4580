// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package keywords substitutes ((keyword)) placeholders and @variables
// in text before it reaches the model.
//
// Substitution is a pure function of the input text, the configured
// names and the declared variables, except for ((noun)) which draws
// from the bundled word list, and ((date))/((now)) which read the
// clock.
package keywords

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"
)

// =============================================================================
// ENGINE
// =============================================================================

// Context supplies the values keywords resolve to. Zero fields leave
// the keyword in place.
type Context struct {
	NameUser string
	NameAI   string

	// TabName resolves ((name)).
	TabName string

	// Selection resolves ((words)); empty when no selection context
	// exists.
	Selection string

	// Now overrides the clock in tests. Nil uses time.Now.
	Now func() time.Time
}

// Engine holds the user-declared variables and the noun list.
type Engine struct {
	prefix string
	vars   map[string]string
	nouns  []string

	varRe *regexp.Regexp
}

// New creates an engine. prefix is the single variable sigil (default
// "@"); nouns may be nil.
func New(prefix string, nouns []string) *Engine {
	if prefix == "" {
		prefix = "@"
	}
	prefix = string([]rune(prefix)[0])
	return &Engine{
		prefix: prefix,
		vars:   make(map[string]string),
		nouns:  nouns,
		varRe:  regexp.MustCompile(`(^|\s)` + regexp.QuoteMeta(prefix) + `(\w+)\b`),
	}
}

// Set declares or replaces a variable.
func (e *Engine) Set(name, value string) {
	e.vars[name] = value
}

// Unset removes a variable. Unknown names are a no-op.
func (e *Engine) Unset(name string) {
	delete(e.vars, name)
}

// Get returns a variable's value.
func (e *Engine) Get(name string) (string, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// Names returns the declared variable names.
func (e *Engine) Names() []string {
	out := make([]string, 0, len(e.vars))
	for name := range e.vars {
		out = append(out, name)
	}
	return out
}

// Apply substitutes keywords and variables in text. Unknown variables
// and keywords with no value are left untouched.
func (e *Engine) Apply(text string, ctx Context) string {
	text = e.applyKeywords(text, ctx)
	text = e.applyVariables(text)
	return text
}

func (e *Engine) applyKeywords(text string, ctx Context) string {
	if !strings.Contains(text, "((") {
		return text
	}

	now := time.Now
	if ctx.Now != nil {
		now = ctx.Now
	}

	replace := func(keyword, value string) {
		if value != "" {
			text = strings.ReplaceAll(text, keyword, value)
		}
	}

	replace("((name_user))", ctx.NameUser)
	replace("((name_ai))", ctx.NameAI)
	replace("((name))", ctx.TabName)
	replace("((words))", ctx.Selection)
	replace("((date))", now().Format("2006-01-02"))
	replace("((now))", now().Format("15:04:05"))
	if strings.Contains(text, "((noun))") && len(e.nouns) > 0 {
		for strings.Contains(text, "((noun))") {
			text = strings.Replace(text, "((noun))", e.nouns[rand.Intn(len(e.nouns))], 1)
		}
	}
	return text
}

func (e *Engine) applyVariables(text string) string {
	if len(e.vars) == 0 || !strings.Contains(text, e.prefix) {
		return text
	}
	return e.varRe.ReplaceAllStringFunc(text, func(match string) string {
		m := e.varRe.FindStringSubmatch(match)
		if value, ok := e.vars[m[2]]; ok {
			return m[1] + value
		}
		return match
	})
}

// Describe renders the variable table for user feedback.
func (e *Engine) Describe() string {
	if len(e.vars) == 0 {
		return "No variables set"
	}
	var b strings.Builder
	for name, value := range e.vars {
		fmt.Fprintf(&b, "%s%s = %s\n", e.prefix, name, value)
	}
	return strings.TrimRight(b.String(), "\n")
}
