// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/jeranaias/meltdown/internal/display"
)

// =============================================================================
// INLINE RULES
// =============================================================================

var (
	boldAsteriskRe   = regexp.MustCompile(`\*\*([^\s*](?:[^*]*[^\s*])?)\*\*`)
	boldUnderscoreRe = regexp.MustCompile(`(^|[\s(])__([^\s_](?:[^_]*[^\s_])?)__($|[\s).,!?;:])`)
	italicAsteriskRe = regexp.MustCompile(`\*([^\s*](?:[^*]*[^\s*])?)\*`)
	italicUnderRe    = regexp.MustCompile(`(^|[\s(])_([^\s_](?:[^_]*[^\s_])?)_($|[\s).,!?;:])`)
	quoteRe          = regexp.MustCompile(`"[^"]+"`)
	highlightRe      = regexp.MustCompile("`([^`\\n]+)`")
	useLinkRe        = regexp.MustCompile(`%@([^%]+?)%@`)
	mdLinkRe         = regexp.MustCompile(`\[([^\]\n]+)\]\(([^)\s]+)\)`)
	bareURLRe        = regexp.MustCompile(`(^|\s)((?:https?://|www\.|ftp://|sftp://|ssh://)\S+)`)
	unixPathRe       = regexp.MustCompile(`(^|\s)(~?/[^\s/]+/[^\s]+)`)
)

// lineEditor performs in-place edits on one line while keeping the
// spans recorded so far pointing at the right characters. Offsets are
// bytes during editing and converted to runes at the end.
type lineEditor struct {
	text  string
	spans []Span
}

// replace swaps text[a:b] for repl and optionally tags the result.
func (e *lineEditor) replace(a, b int, repl, tag, ref string) {
	delta := len(repl) - (b - a)
	for i := range e.spans {
		s := &e.spans[i]
		if s.Start >= b {
			s.Start += delta
		} else if s.Start > a {
			s.Start = a
		}
		if s.End >= b {
			s.End += delta
		} else if s.End > a+len(repl) {
			s.End = a + len(repl)
		}
	}
	e.text = e.text[:a] + repl + e.text[b:]
	if tag != "" {
		e.spans = append(e.spans, Span{Start: a, End: a + len(repl), Tag: tag, Ref: ref})
	}
}

// tag records a span without changing the text.
func (e *lineEditor) tag(a, b int, tag, ref string) {
	e.spans = append(e.spans, Span{Start: a, End: b, Tag: tag, Ref: ref})
}

// result converts span offsets from bytes to runes.
func (e *lineEditor) result() (string, []Span) {
	for i := range e.spans {
		s := &e.spans[i]
		if s.Start < 0 {
			s.Start = 0
		}
		if s.End > len(e.text) {
			s.End = len(e.text)
		}
		s.Start = utf8.RuneCountInString(e.text[:s.Start])
		s.End = utf8.RuneCountInString(e.text[:s.End])
	}
	return e.text, e.spans
}

// formatLine applies the per-line rules for one role. The emitted
// spans carry zero Line; the caller sets it.
func (p *Pipeline) formatLine(buf *display.Buffer, who display.Role, line string) (string, []Span) {
	e := &lineEditor{text: line}

	if p.enabled(RuleBold, who) {
		stripDelimited(e, boldAsteriskRe, "bold")
		stripWordBounded(e, boldUnderscoreRe, "bold")
	}
	if p.enabled(RuleItalic, who) {
		stripItalicAsterisk(e)
		stripWordBounded(e, italicUnderRe, "italic")
	}
	if p.enabled(RuleQuote, who) {
		for _, m := range quoteRe.FindAllStringIndex(e.text, -1) {
			e.tag(m[0], m[1], "quote", "")
		}
	}
	if p.enabled(RuleHighlight, who) {
		stripDelimited(e, highlightRe, "highlight")
	}
	if p.enabled(RuleUseLink, who) {
		matches := useLinkRe.FindAllStringSubmatchIndex(e.text, -1)
		for i := len(matches) - 1; i >= 0; i-- {
			m := matches[i]
			inner := e.text[m[2]:m[3]]
			e.replace(m[0], m[1], inner, "uselink", inner)
		}
	}
	if p.enabled(RuleLink, who) {
		matches := mdLinkRe.FindAllStringSubmatchIndex(e.text, -1)
		for i := len(matches) - 1; i >= 0; i-- {
			m := matches[i]
			label := e.text[m[2]:m[3]]
			id := buf.AddURL(e.text[m[4]:m[5]])
			e.replace(m[0], m[1], label, "link", id)
		}
	}
	if p.enabled(RuleURL, who) {
		for _, m := range bareURLRe.FindAllStringSubmatchIndex(e.text, -1) {
			e.tag(m[4], m[5], "url", e.text[m[4]:m[5]])
		}
	}
	if p.enabled(RulePath, who) {
		for _, m := range unixPathRe.FindAllStringSubmatchIndex(e.text, -1) {
			e.tag(m[4], m[5], "path", e.text[m[4]:m[5]])
		}
	}
	if p.enabled(RuleHeaders, who) {
		if m := headerRe.FindStringSubmatch(e.text); m != nil {
			e.replace(0, len(e.text), m[2], "h"+strconv.Itoa(len(m[1])), "")
		}
	}
	if p.enabled(RuleSeparator, who) {
		if separatorRe.MatchString(e.text) {
			e.replace(0, len(e.text), p.opts.SeparatorLine, "separator", "")
		}
	}

	return e.result()
}

// stripDelimited removes a symmetric delimiter around submatch 1.
func stripDelimited(e *lineEditor, re *regexp.Regexp, tag string) {
	matches := re.FindAllStringSubmatchIndex(e.text, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		e.replace(m[0], m[1], e.text[m[2]:m[3]], tag, "")
	}
}

// stripWordBounded handles the underscore forms, whose regex captures
// the boundary characters around the emphasis. Replaces only the
// delimited part, keeping the boundary characters.
func stripWordBounded(e *lineEditor, re *regexp.Regexp, tag string) {
	for {
		m := re.FindStringSubmatchIndex(e.text)
		if m == nil {
			return
		}
		e.replace(m[3], m[6], e.text[m[4]:m[5]], tag, "")
	}
}

// stripItalicAsterisk removes single-asterisk emphasis, refusing
// math-like matches where an asterisk sits between two digits.
func stripItalicAsterisk(e *lineEditor) {
	matches := italicAsteriskRe.FindAllStringSubmatchIndex(e.text, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		inner := e.text[m[2]:m[3]]
		if digitBefore(e.text, m[0]) && startsWithDigit(inner) {
			continue
		}
		if endsWithDigit(inner) && digitAt(e.text, m[1]) {
			continue
		}
		e.replace(m[0], m[1], inner, "italic", "")
	}
}

func digitBefore(s string, i int) bool {
	return i > 0 && s[i-1] >= '0' && s[i-1] <= '9'
}

func digitAt(s string, i int) bool {
	return i < len(s) && s[i] >= '0' && s[i] <= '9'
}

func startsWithDigit(s string) bool { return s != "" && s[0] >= '0' && s[0] <= '9' }

func endsWithDigit(s string) bool { return s != "" && s[len(s)-1] >= '0' && s[len(s)-1] <= '9' }
