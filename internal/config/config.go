// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for meltdown.
//
// The canonical on-disk form is a flat JSON object with one entry per
// defaulted field, written with four-space indent. Unknown keys are
// ignored on load; missing keys take their defaults. An optional
// config.toml in the profile directory overrides loaded values, which
// keeps hand-edited overrides separate from the machine-written file.
package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/meltdown/internal/util"
)

// =============================================================================
// CONFIG STRUCTURE
// =============================================================================

// Config holds every tunable of the conversational core. Flat by
// contract: the persisted form is a single JSON object.
type Config struct {
	// Model selection
	Model      string `json:"model" toml:"model"`
	ChatFormat string `json:"format" toml:"format"`
	Mode       string `json:"mode" toml:"mode"` // "text" or "image"

	// Sampling
	Temperature float64 `json:"temperature" toml:"temperature"`
	TopK        int     `json:"top_k" toml:"top_k"`
	TopP        float64 `json:"top_p" toml:"top_p"`
	Seed        int     `json:"seed" toml:"seed"`
	MaxTokens   int     `json:"max_tokens" toml:"max_tokens"`
	Stop        string  `json:"stop" toml:"stop"` // ";;"-separated stop sequences

	// Prompt assembly
	System        string `json:"system" toml:"system"`
	Before        string `json:"before" toml:"before"`
	After         string `json:"after" toml:"after"`
	HistoryWindow int    `json:"history" toml:"history"`
	TokenLimit    float64 `json:"token_limit" toml:"token_limit"`

	// Streaming
	Stream     bool    `json:"stream" toml:"stream"`
	FlushDelay float64 `json:"delay" toml:"delay"` // seconds between display flushes
	Search     string  `json:"search" toml:"search"` // "yes" enables the web_search tool
	Durations  bool    `json:"durations" toml:"durations"`

	// Names and labels
	NameUser      string `json:"name_user" toml:"name_user"`
	NameAI        string `json:"name_ai" toml:"name_ai"`
	AvatarUser    string `json:"avatar_user" toml:"avatar_user"`
	AvatarAI      string `json:"avatar_ai" toml:"avatar_ai"`
	Delimiter     string `json:"delimiter" toml:"delimiter"`
	LabelUser     string `json:"label_user" toml:"label_user"`
	LabelAI       string `json:"label_ai" toml:"label_ai"`
	LabelSystem   string `json:"label_system" toml:"label_system"`
	ThinkStarted  string `json:"think_started" toml:"think_started"`
	ThinkEnded    string `json:"think_ended" toml:"think_ended"`

	// Session limits
	MaxTabs       int `json:"max_tabs" toml:"max_tabs"` // 0 = unlimited
	MaxTurns      int `json:"max_items" toml:"max_items"`
	MaxNameLength int `json:"max_name_length" toml:"max_name_length"`
	MaxFileList   int `json:"max_file_list" toml:"max_file_list"`
	NoEmpty       bool `json:"no_empty" toml:"no_empty"`

	// Markdown
	MarkdownJoiner  string `json:"markdown_joiner" toml:"markdown_joiner"`
	OrderedChar     string `json:"ordered_char" toml:"ordered_char"`
	UnorderedChar   string `json:"unordered_char" toml:"unordered_char"`
	ListSpacing     string `json:"list_spacing" toml:"list_spacing"` // never | always | auto
	Separator       string `json:"separator" toml:"separator"`

	// Commands
	Prefix           string  `json:"prefix" toml:"prefix"`
	AndChar          string  `json:"and_char" toml:"and_char"`
	SimilarThreshold float64 `json:"similar_threshold" toml:"similar_threshold"`
	Aliases          map[string]string `json:"aliases" toml:"aliases"`

	// Variables
	VarPrefix string `json:"var_prefix" toml:"var_prefix"`

	// Engine lifecycle
	AutoUnloadMinutes int     `json:"auto_unload" toml:"auto_unload"` // 0 = never
	StopStreamTimeout float64 `json:"stop_stream_timeout" toml:"stop_stream_timeout"`

	// Post-stream hooks
	ResponseFile    string `json:"response_file" toml:"response_file"`
	ResponseProgram string `json:"response_program" toml:"response_program"`
	AfterStream     string `json:"after_stream" toml:"after_stream"`

	// Display
	AutoScrollDelayMs int  `json:"autoscroll_delay" toml:"autoscroll_delay"`
	ConfirmClose      bool `json:"confirm_close" toml:"confirm_close"`
	ConfirmClear      bool `json:"confirm_clear" toml:"confirm_clear"`
	ConfirmExit       bool `json:"confirm_exit" toml:"confirm_exit"`

	// Logs
	LogReferences bool `json:"log_references" toml:"log_references"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model:      "",
		ChatFormat: "auto",
		Mode:       "text",

		Temperature: 0.8,
		TopK:        40,
		TopP:        0.95,
		Seed:        -1,
		MaxTokens:   2048,
		Stop:        "",

		System:        "",
		Before:        "",
		After:         "",
		HistoryWindow: 10,
		TokenLimit:    0.9,

		Stream:     true,
		FlushDelay: 0.1,
		Search:     "no",
		Durations:  false,

		NameUser:     "You",
		NameAI:       "Melt",
		AvatarUser:   "👤",
		AvatarAI:     "🫠",
		Delimiter:    ":",
		LabelUser:    "User",
		LabelAI:      "AI",
		LabelSystem:  "System",
		ThinkStarted: "Thinking...",
		ThinkEnded:   "Done thinking",

		MaxTabs:       0,
		MaxTurns:      100,
		MaxNameLength: 50,
		MaxFileList:   100,
		NoEmpty:       false,

		MarkdownJoiner: " ⏎ ",
		OrderedChar:    ".",
		UnorderedChar:  "•",
		ListSpacing:    "auto",
		Separator:      "—————",

		Prefix:           "/",
		AndChar:          "&",
		SimilarThreshold: 0.7,
		Aliases:          map[string]string{},

		VarPrefix: "@",

		AutoUnloadMinutes: 0,
		StopStreamTimeout: 5,

		ResponseFile:    "",
		ResponseProgram: "",
		AfterStream:     "",

		AutoScrollDelayMs: 500,
		ConfirmClose:      true,
		ConfirmClear:      true,
		ConfirmExit:       false,

		LogReferences: false,
	}
}

// =============================================================================
// LOAD & SAVE
// =============================================================================

// Load reads the profile's config.json over the defaults and then
// applies the optional config.toml override. Load never fails startup:
// a missing or malformed file leaves the defaults in place and the
// returned diagnostic (if non-empty) should be logged once.
func Load(paths *Paths) (*Config, string) {
	cfg := Default()
	diag := ""

	if err := util.ReadJSON(paths.ConfigFile(), cfg); err != nil && !os.IsNotExist(err) {
		cfg = Default()
		diag = "config.json unreadable, using defaults: " + err.Error()
	}

	if _, err := os.Stat(paths.ConfigOverrideFile()); err == nil {
		if _, err := toml.DecodeFile(paths.ConfigOverrideFile(), cfg); err != nil && diag == "" {
			diag = "config.toml override ignored: " + err.Error()
		}
	}

	cfg.clamp()
	return cfg, diag
}

// Save writes the configuration atomically with four-space indent.
func Save(paths *Paths, cfg *Config) error {
	return util.WriteJSON(paths.ConfigFile(), cfg)
}

// clamp normalizes values that have hard bounds.
func (c *Config) clamp() {
	if c.AutoScrollDelayMs < 100 {
		c.AutoScrollDelayMs = 100
	}
	if c.AutoScrollDelayMs > 2000 {
		c.AutoScrollDelayMs = 2000
	}
	if c.SimilarThreshold <= 0 || c.SimilarThreshold > 1 {
		c.SimilarThreshold = 0.7
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 2048
	}
	if c.HistoryWindow < 0 {
		c.HistoryWindow = 0
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = 100
	}
	if len(c.Prefix) != 1 {
		c.Prefix = "/"
	}
	if len(c.AndChar) != 1 {
		c.AndChar = "&"
	}
	if len(c.VarPrefix) != 1 {
		c.VarPrefix = "@"
	}
	switch c.ListSpacing {
	case "never", "always", "auto":
	default:
		c.ListSpacing = "auto"
	}
	if c.Aliases == nil {
		c.Aliases = map[string]string{}
	}
}

// StopSequences splits the ";;"-separated stop string into trimmed,
// non-empty sequences.
func (c *Config) StopSequences() []string {
	if c.Stop == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(c.Stop, ";;") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SearchEnabled reports whether the web_search tool is on.
func (c *Config) SearchEnabled() bool {
	return c.Search == "yes"
}
