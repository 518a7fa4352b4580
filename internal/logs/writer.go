// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logs

import (
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/jeranaias/meltdown/internal/session"
)

// =============================================================================
// FORMATS
// =============================================================================

// Format selects a log rendering.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Ext returns the file extension for a format, without the dot.
func Ext(f Format) string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

// ParseFormat normalizes a user-supplied format name. Unknown names
// fall back to text.
func ParseFormat(name string) Format {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return FormatJSON
	case "markdown", "md":
		return FormatMarkdown
	default:
		return FormatText
	}
}

const timeLayout = "2006-01-02 15:04:05"

func stamp(epoch float64) string {
	return time.Unix(int64(epoch), 0).Format(timeLayout)
}

// =============================================================================
// RENDERING
// =============================================================================

// Render produces the log bytes for one conversation. When references
// is set and the conversation spans more than one model, AI labels
// carry a per-model reference.
func Render(conv *session.Conversation, f Format, references bool) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.MarshalIndent(conv, "", "    ")
	case FormatMarkdown:
		return []byte(renderMarkdown(conv, references)), nil
	default:
		return []byte(renderText(conv, references)), nil
	}
}

// modelRefs maps each model id to its 1-based reference number when
// references apply, or returns nil when they do not.
func modelRefs(conv *session.Conversation, references bool) map[string]int {
	models := conv.Models()
	if !references || len(models) < 2 {
		return nil
	}
	refs := make(map[string]int, len(models))
	for i, m := range models {
		refs[m] = i + 1
	}
	return refs
}

func renderText(conv *session.Conversation, references bool) string {
	refs := modelRefs(conv, references)

	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", conv.Name)
	fmt.Fprintf(&b, "Created: %s\n", stamp(conv.CreatedAt))
	fmt.Fprintf(&b, "Models: %s\n", modelsHeader(conv, refs))
	fmt.Fprintf(&b, "Saved: %s\n", time.Now().Format(timeLayout))
	b.WriteString("---\n")

	for _, t := range conv.Turns {
		fmt.Fprintf(&b, "User: %s\n", t.UserText)
		fmt.Fprintf(&b, "%s: %s\n", aiLabel("AI", t.Model, refs), t.AIText)
		b.WriteString("---\n")
	}
	return b.String()
}

func renderMarkdown(conv *session.Conversation, references bool) string {
	refs := modelRefs(conv, references)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", conv.Name)
	fmt.Fprintf(&b, "**Created:** %s\n\n", stamp(conv.CreatedAt))
	b.WriteString("---\n\n")

	for _, t := range conv.Turns {
		fmt.Fprintf(&b, "**User:** %s\n\n", t.UserText)
		label := "**AI:**"
		if refs != nil && t.Model != "" {
			label = fmt.Sprintf("**AI (%s):**", t.Model)
		}
		fmt.Fprintf(&b, "%s %s\n\n", label, t.AIText)
		b.WriteString("---\n\n")
	}
	return b.String()
}

// modelsHeader lists the conversation's models, numbered when
// references apply.
func modelsHeader(conv *session.Conversation, refs map[string]int) string {
	models := conv.Models()
	if len(models) == 0 {
		return "none"
	}
	if refs == nil {
		return strings.Join(models, ", ")
	}
	parts := make([]string, len(models))
	for i, m := range models {
		parts[i] = fmt.Sprintf("%s (%d)", m, refs[m])
	}
	return strings.Join(parts, ", ")
}

// aiLabel numbers the AI label with the turn model's reference.
func aiLabel(base, model string, refs map[string]int) string {
	if refs == nil || model == "" {
		return base
	}
	return fmt.Sprintf("%s (%d)", base, refs[model])
}
