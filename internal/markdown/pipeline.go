// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"regexp"

	"github.com/jeranaias/meltdown/internal/display"
	"github.com/jeranaias/meltdown/internal/errlog"
)

// =============================================================================
// MODES, RULES, SPANS
// =============================================================================

// Mode selects which sections a Format call touches.
type Mode string

const (
	// ModeNormal formats only sections whose markers have not been
	// processed yet. This is the streaming hot path.
	ModeNormal Mode = "normal"

	// ModeLast formats only the most recent section.
	ModeLast Mode = "last"

	// ModeAll formats every section.
	ModeAll Mode = "all"

	// ModeView formats every section for a read-only view.
	ModeView Mode = "view"
)

// Rule identifies one transformation in the pipeline.
type Rule int

const (
	RuleThink Rule = iota
	RuleRoleTokens
	RuleCleanup
	RuleJoin
	RuleSnippets
	RuleLists
	RuleBold
	RuleItalic
	RuleQuote
	RuleHighlight
	RuleUseLink
	RuleLink
	RuleURL
	RulePath
	RuleHeaders
	RuleSeparator
)

// Applies says which roles a rule runs for.
type Applies int

const (
	AppliesNone Applies = iota
	AppliesUser
	AppliesAI
	AppliesBoth
)

func (a Applies) includes(who display.Role) bool {
	switch a {
	case AppliesBoth:
		return true
	case AppliesUser:
		return who == display.RoleUser
	case AppliesAI:
		return who == display.RoleAI
	}
	return false
}

// Span is one styled range emitted by a Format pass. Columns are rune
// offsets into the final line text. Ref carries the link id for link
// spans and the target for url/path spans.
type Span struct {
	Line  int
	Start int
	End   int
	Tag   string
	Ref   string
}

// Model-emitted tokens replaced by visible labels.
const (
	ThinkStartToken    = "<think>"
	ThinkEndToken      = "</think>"
	RoleUserToken      = "<|user|>"
	RoleAssistantToken = "<|assistant|>"
	RoleSystemToken    = "<|system|>"
)

// List spacing modes.
const (
	SpacingNever  = "never"
	SpacingAlways = "always"
	SpacingAuto   = "auto"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures the pipeline. Zero values are filled by
// DefaultOptions; construct from the user config at wiring time.
type Options struct {
	// Joiner replaces the newline between consecutive flow lines.
	Joiner string

	// OrderedChar follows the digit of a rewritten ordered item.
	OrderedChar string

	// UnorderedChar replaces the bullet of an unordered item.
	UnorderedChar string

	// ListSpacing is one of never, always, auto.
	ListSpacing string

	// SeparatorLine replaces a ^-{3,}$ line.
	SeparatorLine string

	ThinkStartLabel string
	ThinkEndLabel   string

	LabelUser      string
	LabelAssistant string
	LabelSystem    string

	// Rules maps each rule to the roles it runs for. Missing entries
	// disable the rule.
	Rules map[Rule]Applies
}

// DefaultOptions returns the stock rule matrix: structural and emphasis
// rules on assistant output, link and highlight detection on both.
func DefaultOptions() Options {
	return Options{
		Joiner:          " ⏎ ",
		OrderedChar:     ".",
		UnorderedChar:   "•",
		ListSpacing:     SpacingAuto,
		SeparatorLine:   "────────────────────",
		ThinkStartLabel: "Thinking started",
		ThinkEndLabel:   "Thinking ended",
		LabelUser:       "User:",
		LabelAssistant:  "Assistant:",
		LabelSystem:     "System:",
		Rules: map[Rule]Applies{
			RuleThink:      AppliesAI,
			RuleRoleTokens: AppliesAI,
			RuleCleanup:    AppliesBoth,
			RuleJoin:       AppliesAI,
			RuleSnippets:   AppliesAI,
			RuleLists:      AppliesAI,
			RuleBold:       AppliesAI,
			RuleItalic:     AppliesAI,
			RuleQuote:      AppliesAI,
			RuleHighlight:  AppliesBoth,
			RuleUseLink:    AppliesAI,
			RuleLink:       AppliesBoth,
			RuleURL:        AppliesBoth,
			RulePath:       AppliesBoth,
			RuleHeaders:    AppliesAI,
			RuleSeparator:  AppliesAI,
		},
	}
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline applies the formatting rules to a display buffer.
type Pipeline struct {
	opts Options
	log  *errlog.Logger

	// markedItemRe matches an ordered item already rewritten with the
	// configured number char.
	markedItemRe *regexp.Regexp
}

// New creates a pipeline. log may be nil.
func New(opts Options, log *errlog.Logger) *Pipeline {
	if opts.Joiner == "" {
		opts.Joiner = DefaultOptions().Joiner
	}
	if opts.OrderedChar == "" {
		opts.OrderedChar = "."
	}
	if opts.UnorderedChar == "" {
		opts.UnorderedChar = "•"
	}
	if opts.ListSpacing == "" {
		opts.ListSpacing = SpacingAuto
	}
	if opts.SeparatorLine == "" {
		opts.SeparatorLine = DefaultOptions().SeparatorLine
	}
	if opts.ThinkStartLabel == "" {
		opts.ThinkStartLabel = DefaultOptions().ThinkStartLabel
	}
	if opts.ThinkEndLabel == "" {
		opts.ThinkEndLabel = DefaultOptions().ThinkEndLabel
	}
	if opts.Rules == nil {
		opts.Rules = DefaultOptions().Rules
	}
	return &Pipeline{
		opts:         opts,
		log:          log,
		markedItemRe: regexp.MustCompile(`^(\d+)` + regexp.QuoteMeta(opts.OrderedChar) + ` (.*)$`),
	}
}

func (p *Pipeline) enabled(rule Rule, who display.Role) bool {
	return p.opts.Rules[rule].includes(who)
}

type section struct {
	who   display.Role
	start int
	end   int // exclusive
}

// Format rewrites the selected sections in place and returns the style
// spans for the rewritten text. It never panics past this entry point;
// a failing rule is logged and skipped.
func (p *Pipeline) Format(buf *display.Buffer, mode Mode) []Span {
	sections := p.sections(buf, mode)
	var spans []Span

	for i := len(sections) - 1; i >= 0; i-- {
		sec := sections[i]
		lines := make([]string, 0, sec.end-sec.start)
		for n := sec.start; n < sec.end; n++ {
			lines = append(lines, buf.Line(n))
		}

		lines, local := p.formatSection(buf, sec.who, lines)

		delta := len(lines) - (sec.end - sec.start)
		if delta != 0 {
			for j := range spans {
				if spans[j].Line >= sec.end {
					spans[j].Line += delta
				}
			}
		}
		buf.Splice(sec.start, sec.end, lines)

		for _, s := range local {
			s.Line += sec.start
			spans = append(spans, s)
		}
	}

	spans = append(spans, p.indentPass(buf)...)
	return spans
}

// sections builds the per-role line ranges for the requested mode. The
// end of a section is the line before the next marker, or the end of
// the buffer.
func (p *Pipeline) sections(buf *display.Buffer, mode Mode) []section {
	markers := buf.Markers(mode != ModeNormal)
	if mode == ModeLast && len(markers) > 1 {
		markers = markers[len(markers)-1:]
	}

	var out []section
	for _, m := range markers {
		end := buf.Len()
		for n := m.Line + 1; n < buf.Len(); n++ {
			if _, ok := display.RoleOf(buf.Line(n)); ok {
				end = n
				break
			}
		}
		out = append(out, section{who: m.Who, start: m.Line, end: end})
	}
	return out
}

// formatSection runs the structural rules (which may change the line
// count) and then the per-line rules over one section. A panicking
// rule leaves the section as it was.
func (p *Pipeline) formatSection(buf *display.Buffer, who display.Role, lines []string) (out []string, spans []Span) {
	orig := make([]string, len(lines))
	copy(orig, lines)
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorf("markdown: section rule panic: %v", r)
			out = orig
			spans = nil
		}
	}()

	if p.enabled(RuleThink, who) {
		lines = p.thinkBlocks(lines)
	}
	if p.enabled(RuleRoleTokens, who) {
		lines = p.roleTokens(lines)
	}
	if p.enabled(RuleCleanup, who) {
		lines = p.cleanup(lines)
	}
	if p.enabled(RuleJoin, who) {
		lines = p.joinLines(lines)
	}
	if p.enabled(RuleSnippets, who) {
		lines = p.extractSnippets(buf, lines)
	}
	if p.enabled(RuleLists, who) {
		lines = p.rewriteLists(lines)
	}

	for i, line := range lines {
		if _, isWidget := display.WidgetID(line); isWidget {
			continue
		}
		text, lineSpans := p.formatLine(buf, who, line)
		lines[i] = text
		for _, s := range lineSpans {
			s.Line = i
			spans = append(spans, s)
		}
	}
	return lines, spans
}

// indentPass tags rewritten list items across the whole buffer so the
// presentation layer can hang-indent them.
func (p *Pipeline) indentPass(buf *display.Buffer) []Span {
	var spans []Span
	for i := 0; i < buf.Len(); i++ {
		line := buf.Line(i)
		var tag string
		switch {
		case hasPrefix(line, display.MarkerOrdered):
			tag = "list_ordered"
		case hasPrefix(line, display.MarkerUnordered):
			tag = "list_unordered"
		default:
			continue
		}
		spans = append(spans, Span{Line: i, Start: 0, End: runeLen(line), Tag: tag})
	}
	return spans
}
