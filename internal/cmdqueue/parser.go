// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cmdqueue

import (
	"strings"
	"unicode"
)

// =============================================================================
// PARSER
// =============================================================================

// Item is one parsed command: the name without its prefix and the raw
// argument remainder.
type Item struct {
	Cmd string
	Arg string
}

// IsCommand reports whether input is a command invocation: the prefix
// character followed by a letter.
func IsCommand(input, prefix string) bool {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, prefix) {
		return false
	}
	rest := []rune(strings.TrimPrefix(input, prefix))
	return len(rest) > 0 && unicode.IsLetter(rest[0])
}

// ParseInvocation splits a chained invocation into items. The chain
// splits only where the and-char immediately precedes a space plus the
// prefix, so an and-char inside an argument survives:
//
//	/say tom & jerry & /clear  →  [say "tom & jerry", clear]
func ParseInvocation(input, prefix, andChar string) []Item {
	input = strings.TrimSpace(input)
	boundary := andChar + " " + prefix

	var parts []string
	for {
		i := strings.Index(input, boundary)
		if i < 0 {
			parts = append(parts, input)
			break
		}
		parts = append(parts, input[:i])
		input = input[i+len(andChar)+1:] // keep the prefix
	}

	var items []Item
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if !IsCommand(part, prefix) {
			continue
		}
		part = strings.TrimPrefix(part, prefix)
		name, arg, _ := strings.Cut(part, " ")
		items = append(items, Item{Cmd: name, Arg: strings.TrimSpace(arg)})
	}
	return items
}
