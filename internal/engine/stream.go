// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/jeranaias/meltdown/internal/display"
	"github.com/jeranaias/meltdown/internal/provider"
	"github.com/jeranaias/meltdown/internal/session"
	"github.com/jeranaias/meltdown/internal/util"
)

const placeholderText = "Thinking…"

// longURLThreshold disqualifies a history pair: a single bare URL token
// longer than this is treated as bad context.
const longURLThreshold = 100

// =============================================================================
// STREAM WORKER
// =============================================================================

// doStream runs one completion end to end on the worker goroutine.
func (e *Engine) doStream(prompt, file string, tab *Tab) {
	start := time.Now()
	cfg := e.cfg

	e.mu.Lock()
	client := e.client
	loaded := e.loaded
	e.mu.Unlock()
	if client == nil {
		return
	}

	msgs, promptText := e.buildMessages(prompt, file, tab)

	userLabel := display.PromptLabel(cfg.AvatarUser, cfg.NameUser, cfg.Delimiter)
	aiLabel := display.PromptLabel(cfg.AvatarAI, cfg.NameAI, cfg.Delimiter)
	e.opts.Post(func() {
		if tab.Buf.Modified {
			tab.Buf.Separator("")
		}
		tab.Buf.Prompt(display.RoleUser, userLabel)
		tab.Buf.Insert(" " + promptText)
		tab.Buf.Prompt(display.RoleAI, aiLabel)
		tab.Buf.Insert(" " + placeholderText)
	})

	gen := provider.GenConfig{
		Model:       loaded.Name,
		Messages:    msgs,
		Stream:      cfg.Stream,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		TopK:        cfg.TopK,
		Seed:        cfg.Seed,
		MaxTokens:   cfg.MaxTokens,
		Stop:        cfg.StopSequences(),
	}
	if cfg.SearchEnabled() {
		gen.Tools = []provider.Tool{provider.FunctionTool(
			"web_search",
			"Search the web and return a short text summary of the results.",
			map[string]string{"query": "string"},
		)}
		gen.ToolChoice = "auto"
	}

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()
	if !gen.Stream {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, completionTimeout)
		defer timeoutCancel()
	}

	cleaner := newStreamCleaner()
	flushDelay := time.Duration(cfg.FlushDelay * float64(time.Second))
	var pending strings.Builder
	lastFlush := time.Now()
	first := true
	var shown strings.Builder

	flush := func() {
		if pending.Len() == 0 {
			return
		}
		text := pending.String()
		pending.Reset()
		shown.WriteString(text)
		e.opts.Post(func() { tab.Buf.Insert(text) })
		lastFlush = time.Now()
	}

	onChunk := func(chunk provider.Chunk) {
		if e.cancel.Load() {
			cancelCtx()
			return
		}
		text := cleaner.clean(chunk.Content())
		if text == "" {
			return
		}
		if first {
			first = false
			e.opts.Post(func() {
				tab.Buf.RemoveLastAI()
				tab.Buf.Prompt(display.RoleAI, aiLabel)
				tab.Buf.Insert(" ")
			})
		}
		pending.WriteString(text)
		if time.Since(lastFlush) >= flushDelay {
			flush()
		}
	}

	e.engineLock.Lock()
	resp, err := client.Complete(ctx, gen, onChunk)
	e.engineLock.Unlock()

	cancelled := e.cancel.Load()
	if err != nil && !cancelled {
		e.log.Error("completion", err)
		e.say(tab, "Error: "+err.Error())
		return
	}
	if resp == nil {
		return
	}

	var aiText string
	switch {
	case cancelled:
		// Flush nothing more; keep what reached the display.
		aiText = shown.String()
	case !gen.Stream:
		aiText = cleaner.clean(resp.Text())
		e.opts.Post(func() {
			tab.Buf.RemoveLastAI()
			tab.Buf.Prompt(display.RoleAI, aiLabel)
			tab.Buf.Insert(" " + aiText)
		})
	default:
		flush()
		aiText = shown.String()
	}

	if !cancelled && len(resp.ToolCalls()) > 0 {
		if follow := e.followUp(ctx, client, gen, msgs, resp); follow != "" {
			aiText = follow
			e.opts.Post(func() {
				tab.Buf.RemoveLastAI()
				tab.Buf.Prompt(display.RoleAI, aiLabel)
				tab.Buf.Insert(" " + follow)
			})
		}
	}

	e.finalize(tab, prompt, file, aiText, loaded, time.Since(start))
}

// finalize writes the completed turn into the session and runs the
// post-stream hooks on the owner goroutine.
func (e *Engine) finalize(tab *Tab, prompt, file, aiText string, loaded loadedModel, took time.Duration) {
	cfg := e.cfg
	seconds := took.Seconds()

	turn := &session.Turn{
		CreatedAt:     util.Now(),
		Duration:      seconds,
		UserText:      prompt,
		AIText:        aiText,
		File:          file,
		Model:         loaded.Name,
		Seed:          cfg.Seed,
		HistoryWindow: cfg.HistoryWindow,
		MaxTokens:     cfg.MaxTokens,
		Temperature:   cfg.Temperature,
		TopK:          cfg.TopK,
		TopP:          cfg.TopP,
		ChatFormat:    loaded.Format,
	}

	e.lastUsed.Store(time.Now().UnixNano())

	e.opts.Post(func() {
		tab.Conv.AddTurn(turn, cfg.MaxTurns)
		if cfg.Durations {
			tab.Buf.Print(fmt.Sprintf("Duration: %.1f seconds", seconds))
		}
		e.streamEnded(tab, aiText)
	})
}

// streamEnded runs the markdown pass and the configured hooks.
func (e *Engine) streamEnded(tab *Tab, aiText string) {
	cfg := e.cfg

	if e.opts.Hooks.Format != nil {
		e.opts.Hooks.Format(tab)
	}

	if cfg.ResponseFile != "" {
		if err := os.WriteFile(cfg.ResponseFile, []byte(aiText), 0o644); err != nil {
			e.log.Error("response file", err)
		}
	}

	if cfg.ResponseProgram != "" {
		cmd := exec.Command(cfg.ResponseProgram, aiText)
		if err := cmd.Start(); err != nil {
			e.log.Error("response program", err)
		} else {
			go func() {
				defer e.log.Recover("response program")
				_ = cmd.Wait()
			}()
		}
	}

	if cfg.AfterStream != "" && e.opts.Hooks.Submit != nil {
		invocation := cfg.AfterStream
		time.AfterFunc(afterStreamDelay, func() {
			e.opts.Post(func() { e.opts.Hooks.Submit(invocation) })
		})
	}
}

// =============================================================================
// MESSAGE ASSEMBLY
// =============================================================================

// buildMessages assembles the request messages: system, history window,
// attachment, then the prompt. Returns the messages and the display
// form of the prompt.
func (e *Engine) buildMessages(prompt, file string, tab *Tab) ([]provider.Message, string) {
	cfg := e.cfg
	subst := e.opts.Subst

	var msgs []provider.Message
	if cfg.System != "" {
		msgs = append(msgs, provider.Message{Role: "system", Content: subst(cfg.System)})
	}

	turns := tab.Conv.Turns
	if cfg.HistoryWindow > 0 && len(turns) > 0 {
		first := len(turns) - cfg.HistoryWindow
		if first < 0 {
			first = 0
		}
		for _, t := range turns[first:] {
			if t.UserText == "" || t.AIText == "" {
				continue
			}
			if hasLongURL(t.UserText) || hasLongURL(t.AIText) {
				continue
			}
			msgs = append(msgs,
				provider.Message{Role: "user", Content: subst(t.UserText)},
				provider.Message{Role: "assistant", Content: t.AIText},
			)
		}
	}

	promptText := e.trimBudget(subst(prompt))
	userMsg := provider.Message{
		Role:    "user",
		Content: subst(cfg.Before) + promptText + subst(cfg.After),
	}

	if file != "" {
		if cfg.Mode == "image" {
			userMsg.Images = []string{e.imageAttachment(file)}
		} else if content, err := e.fetchAttachment(file); err != nil {
			e.log.Error("attachment", err)
		} else {
			msgs = append(msgs, provider.Message{Role: "user", Content: e.trimBudget(content)})
		}
	}

	return append(msgs, userMsg), promptText
}

// hasLongURL reports whether any single whitespace-delimited token is a
// bare URL longer than the threshold.
func hasLongURL(text string) bool {
	for _, token := range strings.Fields(text) {
		if len(token) <= longURLThreshold {
			continue
		}
		if strings.HasPrefix(token, "http://") || strings.HasPrefix(token, "https://") ||
			strings.HasPrefix(token, "www.") {
			return true
		}
	}
	return false
}

// fetchAttachment reads an attached file: HTTP GET for URLs, disk read
// otherwise.
func (e *Engine) fetchAttachment(file string) (string, error) {
	if strings.HasPrefix(file, "http://") || strings.HasPrefix(file, "https://") {
		ctx, cancel := context.WithTimeout(context.Background(), attachmentTimeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, file, nil)
		if err != nil {
			return "", err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("GET %s: HTTP %d", file, resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// imageAttachment returns the attachment as a data URL for local files;
// remote URLs pass through directly.
func (e *Engine) imageAttachment(file string) string {
	if strings.HasPrefix(file, "http://") || strings.HasPrefix(file, "https://") {
		return file
	}
	data, err := os.ReadFile(file)
	if err != nil {
		e.log.Error("attachment", err)
		return file
	}
	mimeType := mime.TypeByExtension(filepath.Ext(file))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// =============================================================================
// TOOL-CALL FOLLOW-UP
// =============================================================================

// followUp invokes the buffered tool calls synchronously and runs a
// second, non-streaming completion over their results. Returns the
// follow-up content, or empty on failure.
func (e *Engine) followUp(ctx context.Context, client provider.InferenceClient, gen provider.GenConfig, msgs []provider.Message, resp *provider.Response) string {
	var toolMsgs []provider.Message
	for _, call := range resp.ToolCalls() {
		if call.Function.Name != "web_search" || e.opts.Search == nil {
			continue
		}
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			e.log.Error("tool arguments", err)
			continue
		}
		result, err := e.opts.Search(args.Query)
		if err != nil {
			e.log.Error("web_search", err)
			continue
		}
		toolMsgs = append(toolMsgs, provider.Message{
			Role:       "tool",
			ToolCallID: call.ID,
			Name:       call.Function.Name,
			Content:    result,
		})
	}
	if len(toolMsgs) == 0 {
		return ""
	}

	var follow []provider.Message
	for _, m := range msgs {
		if m.Role == "system" {
			follow = append(follow, m)
			break
		}
	}
	if last := lastUserMessage(msgs); last != nil {
		follow = append(follow, *last)
	}
	follow = append(follow, provider.Message{
		Role:      "assistant",
		Content:   resp.Text(),
		ToolCalls: resp.ToolCalls(),
	})
	follow = append(follow, toolMsgs...)
	follow = append(follow, provider.Message{
		Role:    "user",
		Content: "Answer the original question using the tool output above.",
	})

	gen.Messages = follow
	gen.Stream = false
	gen.Tools = nil
	gen.ToolChoice = ""

	followCtx, cancel := context.WithTimeout(ctx, followUpTimeout)
	defer cancel()

	e.engineLock.Lock()
	second, err := client.Complete(followCtx, gen, nil)
	e.engineLock.Unlock()
	if err != nil {
		e.log.Error("follow-up completion", err)
		return ""
	}
	return newStreamCleaner().clean(second.Text())
}

func lastUserMessage(msgs []provider.Message) *provider.Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return &msgs[i]
		}
	}
	return nil
}

// =============================================================================
// STREAM CLEANER
// =============================================================================

// streamCleaner normalizes streamed text: leading whitespace before the
// first real token is dropped, duplicated spaces collapse, and runs of
// blank lines collapse to one.
type streamCleaner struct {
	started    bool
	lastSpace  bool
	blankLines int
}

func newStreamCleaner() *streamCleaner {
	return &streamCleaner{}
}

func (c *streamCleaner) clean(text string) string {
	if text == "" {
		return ""
	}
	var out strings.Builder
	for _, r := range text {
		if !c.started {
			if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
				continue
			}
			c.started = true
		}
		switch r {
		case '\r':
			continue
		case ' ', '\t':
			if c.lastSpace {
				continue
			}
			c.lastSpace = true
			out.WriteRune(' ')
		case '\n':
			if c.blankLines >= 2 {
				continue
			}
			c.blankLines++
			c.lastSpace = false
			out.WriteRune('\n')
		default:
			c.blankLines = 0
			c.lastSpace = false
			out.WriteRune(r)
		}
	}
	return out.String()
}
