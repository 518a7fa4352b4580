// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jeranaias/meltdown/internal/display"
)

// =============================================================================
// STRUCTURAL RULES
// =============================================================================

var (
	fenceOpenRe   = regexp.MustCompile("^```([A-Za-z0-9_+.#-]*)\\s*$")
	fenceCloseRe  = regexp.MustCompile("^```\\s*$")
	inlineFenceRe = regexp.MustCompile("```([^`\\n]+)```")

	orderedItemRe   = regexp.MustCompile(`^(\d+)[.)]\s+(.*)$`)
	unorderedItemRe = regexp.MustCompile(`^[*-]\s+(.*)$`)
	headerRe        = regexp.MustCompile(`^(#{1,3}) (.+)$`)
	separatorRe     = regexp.MustCompile(`^-{3,}$`)
)

func hasPrefix(s, prefix string) bool { return strings.HasPrefix(s, prefix) }

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// promptSplit separates a prompt line into its marker-and-label prefix
// and the content inserted after it. Labels use MarkSpace internally,
// so the first plain space is the label/content boundary. Lines
// without a role marker come back whole as content.
func promptSplit(line string) (prefix, rest string) {
	if _, ok := display.RoleOf(line); !ok {
		return "", line
	}
	if i := strings.IndexByte(line, ' '); i >= 0 {
		return line[:i+1], line[i+1:]
	}
	return line, ""
}

// thinkBlocks replaces <think>…</think> token lines with visible
// labels, or removes the whole block when it holds no content. The
// opening token often streams onto the assistant prompt line itself,
// so matching strips the marker-and-label prefix first.
func (p *Pipeline) thinkBlocks(lines []string) []string {
	for {
		start, end := -1, -1
		startPrefix := ""
		for i, line := range lines {
			prefix, rest := promptSplit(line)
			trimmed := strings.TrimSpace(rest)
			if start < 0 && trimmed == ThinkStartToken {
				start, startPrefix = i, prefix
				continue
			}
			if start >= 0 && trimmed == ThinkEndToken {
				end = i
				break
			}
		}
		if start < 0 || end < 0 {
			return lines
		}

		empty := true
		for _, line := range lines[start+1 : end] {
			if strings.TrimSpace(line) != "" {
				empty = false
				break
			}
		}
		if empty {
			if startPrefix == "" {
				lines = append(lines[:start], lines[end+1:]...)
				continue
			}
			// The block opened on a prompt line. Keep the label and
			// pull the first line after the block up onto it so the
			// response still begins on the prompt line.
			merged := strings.TrimRight(startPrefix, " ")
			tail := lines[end+1:]
			if len(tail) > 0 && strings.TrimSpace(tail[0]) != "" {
				if _, ok := display.RoleOf(tail[0]); !ok {
					merged = startPrefix + strings.TrimSpace(tail[0])
					tail = tail[1:]
				}
			}
			lines = append(append(lines[:start], merged), tail...)
			continue
		}
		lines[start] = startPrefix + p.opts.ThinkStartLabel
		lines[end] = p.opts.ThinkEndLabel
	}
}

// roleTokens replaces chat-template role tokens with visible labels.
func (p *Pipeline) roleTokens(lines []string) []string {
	for i, line := range lines {
		prefix, rest := promptSplit(line)
		var label string
		switch strings.TrimSpace(rest) {
		case RoleUserToken:
			label = p.opts.LabelUser
		case RoleAssistantToken:
			label = p.opts.LabelAssistant
		case RoleSystemToken:
			label = p.opts.LabelSystem
		default:
			continue
		}
		lines[i] = prefix + label
	}
	return lines
}

// fenceFlags marks the lines inside (and including) triple-backtick
// fences so text rules leave them alone.
func fenceFlags(lines []string) []bool {
	flags := make([]bool, len(lines))
	inFence := false
	for i, line := range lines {
		if !inFence && fenceOpenRe.MatchString(line) {
			inFence = true
			flags[i] = true
			continue
		}
		if inFence {
			flags[i] = true
			if fenceCloseRe.MatchString(line) {
				inFence = false
			}
		}
	}
	return flags
}

// cleanup strips trailing spaces and collapses blank-line runs to one.
// Fenced regions pass through verbatim.
func (p *Pipeline) cleanup(lines []string) []string {
	fenced := fenceFlags(lines)
	out := make([]string, 0, len(lines))
	prevBlank := false
	for i, line := range lines {
		if fenced[i] {
			out = append(out, line)
			prevBlank = false
			continue
		}
		line = strings.TrimRight(line, " \t")
		blank := line == ""
		if blank && prevBlank {
			continue
		}
		out = append(out, line)
		prevBlank = blank
	}
	return out
}

// protectedFromJoin reports lines that keep their own line: item lines,
// headers, separators, widget stand-ins, role-tagged prompt lines and
// the think/role labels.
func (p *Pipeline) protectedFromJoin(line string) bool {
	if _, ok := display.RoleOf(line); ok {
		return true
	}
	if _, ok := display.WidgetID(line); ok {
		return true
	}
	if hasPrefix(line, display.MarkerOrdered) || hasPrefix(line, display.MarkerUnordered) {
		return true
	}
	if hasPrefix(line, display.MarkSeparator) {
		return true
	}
	switch line {
	case p.opts.ThinkStartLabel, p.opts.ThinkEndLabel,
		p.opts.LabelUser, p.opts.LabelAssistant, p.opts.LabelSystem:
		return true
	}
	return orderedItemRe.MatchString(line) ||
		unorderedItemRe.MatchString(line) ||
		headerRe.MatchString(line) ||
		separatorRe.MatchString(line)
}

// joinLines merges runs of consecutive flow lines with the configured
// joiner. Fences, lists, headers and labels keep their own lines, so a
// second pass finds nothing left to merge.
func (p *Pipeline) joinLines(lines []string) []string {
	fenced := fenceFlags(lines)
	out := make([]string, 0, len(lines))
	i := 0
	for i < len(lines) {
		line := lines[i]
		if fenced[i] || line == "" || p.protectedFromJoin(line) {
			out = append(out, line)
			i++
			continue
		}
		run := []string{line}
		j := i + 1
		for j < len(lines) && !fenced[j] && lines[j] != "" && !p.protectedFromJoin(lines[j]) {
			run = append(run, lines[j])
			j++
		}
		out = append(out, strings.Join(run, p.opts.Joiner))
		i = j
	}
	return out
}

// extractSnippets removes fenced blocks from the flow and replaces each
// with a widget stand-in line, enforcing one blank line on either side.
// An unterminated fence is left as-is.
func (p *Pipeline) extractSnippets(buf *display.Buffer, lines []string) []string {
	out := make([]string, 0, len(lines))

	appendBlank := func() {
		if len(out) > 0 && strings.TrimSpace(out[len(out)-1]) != "" {
			out = append(out, "")
		}
	}

	i := 0
	for i < len(lines) {
		line := lines[i]
		m := fenceOpenRe.FindStringSubmatch(line)
		if m == nil {
			out = append(out, inlineSnippets(buf, line))
			i++
			continue
		}

		close := -1
		for j := i + 1; j < len(lines); j++ {
			if fenceCloseRe.MatchString(lines[j]) {
				close = j
				break
			}
		}
		if close < 0 {
			out = append(out, line)
			i++
			continue
		}

		body := strings.Join(lines[i+1:close], "\n")
		s := buf.AddSnippet(m[1], body, false)
		appendBlank()
		out = append(out, display.WidgetLine(s.ID))
		i = close + 1
		if i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			out = append(out, "")
		}
	}
	return out
}

// inlineSnippets converts single-line ```text``` fences to inline
// widgets with an empty language.
func inlineSnippets(buf *display.Buffer, line string) string {
	return inlineFenceRe.ReplaceAllStringFunc(line, func(match string) string {
		inner := strings.TrimSuffix(strings.TrimPrefix(match, "```"), "```")
		s := buf.AddSnippet("", inner, true)
		return display.MarkWidget + s.ID
	})
}

// =============================================================================
// LISTS
// =============================================================================

type listItem struct {
	ordered   bool
	number    int
	text      string
	extra     []string // continuation lines
	multiline bool
}

// itemStart parses a line as the first line of a list item, accepting
// both raw markdown items and items already rewritten with the hidden
// prefix markers.
func (p *Pipeline) itemStart(line string) (listItem, bool) {
	switch {
	case hasPrefix(line, display.MarkerOrdered):
		line = strings.TrimPrefix(line, display.MarkerOrdered)
		if m := p.markedItemRe.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[1])
			return listItem{ordered: true, number: n, text: m[2]}, true
		}
		return listItem{}, false
	case hasPrefix(line, display.MarkerUnordered):
		line = strings.TrimPrefix(line, display.MarkerUnordered)
		if rest, ok := strings.CutPrefix(line, p.opts.UnorderedChar+" "); ok {
			return listItem{ordered: false, text: rest}, true
		}
		return listItem{}, false
	}
	if m := orderedItemRe.FindStringSubmatch(line); m != nil {
		n, _ := strconv.Atoi(m[1])
		return listItem{ordered: true, number: n, text: m[2]}, true
	}
	if m := unorderedItemRe.FindStringSubmatch(line); m != nil {
		return listItem{ordered: false, text: m[1]}, true
	}
	return listItem{}, false
}

// rewriteLists canonicalizes maximal list runs: hidden prefix marker,
// configured bullet or number char, configured spacing between items.
func (p *Pipeline) rewriteLists(lines []string) []string {
	out := make([]string, 0, len(lines))
	i := 0
	for i < len(lines) {
		first, ok := p.itemStart(lines[i])
		if !ok {
			out = append(out, lines[i])
			i++
			continue
		}

		contMarker := display.MarkerOrdered
		if !first.ordered {
			contMarker = display.MarkerUnordered
		}

		items := []listItem{first}
		j := i + 1
		for j < len(lines) {
			if it, ok := p.itemStart(lines[j]); ok && it.ordered == first.ordered {
				items = append(items, it)
				j++
				continue
			}
			// Single blank between items stays in the run.
			if lines[j] == "" && j+1 < len(lines) {
				if it, ok := p.itemStart(lines[j+1]); ok && it.ordered == first.ordered {
					j++
					continue
				}
				break
			}
			// Continuation line, raw or already marked on a prior pass.
			if rest, ok := strings.CutPrefix(lines[j], contMarker); ok {
				last := &items[len(items)-1]
				last.extra = append(last.extra, rest)
				last.multiline = true
				j++
				continue
			}
			if lines[j] != "" && !p.protectedFromJoin(lines[j]) {
				last := &items[len(items)-1]
				last.extra = append(last.extra, lines[j])
				last.multiline = true
				j++
				continue
			}
			break
		}

		out = append(out, p.renderList(items)...)
		i = j
	}
	return out
}

func (p *Pipeline) renderList(items []listItem) []string {
	spaced := p.opts.ListSpacing == SpacingAlways
	if p.opts.ListSpacing == SpacingAuto {
		for _, it := range items {
			if it.multiline {
				spaced = true
				break
			}
		}
	}

	number := 1
	if items[0].ordered && items[0].number > 0 {
		number = items[0].number
	}

	var out []string
	for idx, it := range items {
		if idx > 0 && spaced {
			out = append(out, "")
		}
		if it.ordered {
			out = append(out, display.MarkerOrdered+strconv.Itoa(number)+p.opts.OrderedChar+" "+it.text)
			number++
			for _, extra := range it.extra {
				out = append(out, display.MarkerOrdered+extra)
			}
		} else {
			out = append(out, display.MarkerUnordered+p.opts.UnorderedChar+" "+it.text)
			for _, extra := range it.extra {
				out = append(out, display.MarkerUnordered+extra)
			}
		}
	}
	return out
}
