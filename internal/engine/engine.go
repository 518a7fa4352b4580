// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/jeranaias/meltdown/internal/config"
	"github.com/jeranaias/meltdown/internal/display"
	"github.com/jeranaias/meltdown/internal/errlog"
	"github.com/jeranaias/meltdown/internal/provider"
	"github.com/jeranaias/meltdown/internal/session"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// streamStartInterval throttles stream starts ("Slow down!").
	streamStartInterval = 250 * time.Millisecond

	// autoUnloadCheck is the idle-model poll interval.
	autoUnloadCheck = 10 * time.Second

	// completionTimeout bounds a non-streaming completion call.
	completionTimeout = 20 * time.Second

	// followUpTimeout bounds the tool-call follow-up completion.
	followUpTimeout = 20 * time.Second

	// attachmentTimeout bounds an HTTP GET for an attached URL.
	attachmentTimeout = 10 * time.Second

	// afterStreamDelay defers the after_stream command invocation.
	afterStreamDelay = 100 * time.Millisecond
)

var errBusy = errors.New("engine busy")

// =============================================================================
// COLLABORATORS
// =============================================================================

// Tab is the pair a stream writes into: the session conversation and
// the tab's display buffer. Both are owned by the main goroutine.
type Tab struct {
	Conv *session.Conversation
	Buf  *display.Buffer
}

// Hooks run after a stream finishes, on the owner goroutine.
type Hooks struct {
	// Format runs the markdown pass over the tab's new region.
	Format func(*Tab)
	// Submit schedules a command invocation (after_stream).
	Submit func(invocation string)
}

// LocalFactory instantiates a local inference backend for a model file.
type LocalFactory func(path, format, mode string) (provider.InferenceClient, error)

// RemoteFactory instantiates a remote client for a provider and key.
type RemoteFactory func(providerName, key string) provider.InferenceClient

// Options wires an Engine to its collaborators. Config, Paths and Post
// are required; nil factories disable the corresponding backend.
type Options struct {
	Config *config.Config
	Paths  *config.Paths
	Log    *errlog.Logger

	// Subst applies keyword and variable substitution.
	Subst func(string) string

	// Post runs fn on the owner goroutine. Workers use it for every
	// display or session write.
	Post func(fn func())

	// Search implements the web_search tool.
	Search func(query string) (string, error)

	Local  LocalFactory
	Remote RemoteFactory

	Hooks Hooks
}

// =============================================================================
// ENGINE
// =============================================================================

// loadedModel records what is currently loaded.
type loadedModel struct {
	Name     string
	Format   string
	Provider string
	Type     string // "local" or "remote"
}

// Engine is the model lifecycle owner. One per process.
type Engine struct {
	opts Options
	cfg  *config.Config
	log  *errlog.Logger

	// engineLock serializes model instantiation and completion calls.
	engineLock sync.Mutex

	mu       sync.Mutex
	model    string // configured via SetModel; may differ from loaded
	loaded   loadedModel
	client   provider.InferenceClient
	loading  bool
	starting bool
	worker   chan struct{} // closed when the active worker exits

	cancel   atomic.Bool
	limiter  *rate.Limiter
	group    singleflight.Group
	lastUsed atomic.Int64 // unix nanos of last load or stream

	stopAuto chan struct{}
	autoOnce sync.Once
}

// New builds an engine. The configured model starts from the config.
func New(opts Options) *Engine {
	if opts.Subst == nil {
		opts.Subst = func(s string) string { return s }
	}
	if opts.Post == nil {
		opts.Post = func(fn func()) { fn() }
	}
	e := &Engine{
		opts:    opts,
		cfg:     opts.Config,
		log:     opts.Log,
		model:   opts.Config.Model,
		limiter: rate.NewLimiter(rate.Every(streamStartInterval), 1),
	}
	e.lastUsed.Store(time.Now().UnixNano())
	return e
}

// SetModel records the configured model identifier. State only; the
// next load or stream picks it up.
func (e *Engine) SetModel(name string) {
	e.mu.Lock()
	e.model = strings.TrimSpace(name)
	e.mu.Unlock()
}

// Model returns the configured model identifier.
func (e *Engine) Model() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model
}

// Loaded reports the loaded model name and type, empty when unloaded.
func (e *Engine) Loaded() (name, typ string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return "", ""
	}
	return e.loaded.Name, e.loaded.Type
}

// Streaming reports whether a stream worker is active.
func (e *Engine) Streaming() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.worker != nil
}

// say posts a line into the tab's display buffer.
func (e *Engine) say(tab *Tab, msg string) {
	if tab == nil || tab.Buf == nil {
		return
	}
	e.opts.Post(func() { tab.Buf.Print(msg) })
}

// =============================================================================
// LOAD / UNLOAD
// =============================================================================

// Load makes the configured model ready. Idempotent: when the same
// model and chat format are already loaded it returns immediately.
// Concurrent calls for the same model collapse into one.
func (e *Engine) Load(tab *Tab, quiet bool) error {
	e.mu.Lock()
	model := e.model
	format := e.cfg.ChatFormat
	ready := e.client != nil && e.loaded.Name == model && e.loaded.Format == format
	e.mu.Unlock()

	if model == "" {
		e.say(tab, "No model configured.")
		return errors.New("no model configured")
	}
	if ready {
		return nil
	}

	_, err, _ := e.group.Do(model+"\x00"+format, func() (any, error) {
		return nil, e.doLoad(tab, model, format, quiet)
	})
	return err
}

func (e *Engine) doLoad(tab *Tab, model, format string, quiet bool) error {
	e.mu.Lock()
	e.loading = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.loading = false
		e.mu.Unlock()
	}()

	e.StopStream()
	e.dropClient()

	if !quiet {
		e.say(tab, "Loading "+displayName(model)+" ...")
	}

	providerName, perr := provider.InferProvider(model)
	var client provider.InferenceClient
	var loaded loadedModel

	if perr == nil {
		key, err := provider.ReadKey(e.opts.Paths.KeyFile(provider.KeyName(providerName)))
		if err != nil {
			e.say(tab, "No API key for "+providerName+".")
			return err
		}
		remote := e.opts.Remote
		if remote == nil {
			remote = func(p, k string) provider.InferenceClient { return provider.NewRemote(p, k) }
		}
		client = remote(providerName, key)
		loaded = loadedModel{Name: model, Format: format, Provider: providerName, Type: "remote"}
	} else {
		info, err := os.Stat(model)
		if err != nil || info.IsDir() {
			e.say(tab, "Model file not found: "+model)
			return fmt.Errorf("model file not found: %s", model)
		}
		if e.cfg.Mode == "image" && !hasProjectionSibling(model) {
			e.say(tab, "No multimodal projection file next to "+displayName(model)+".")
			return errors.New("missing multimodal projection file")
		}
		if e.opts.Local == nil {
			e.say(tab, "No local inference backend available.")
			return errors.New("no local backend")
		}
		e.engineLock.Lock()
		client, err = e.opts.Local(model, format, e.cfg.Mode)
		e.engineLock.Unlock()
		if err != nil {
			e.say(tab, "Model failed to load: "+err.Error())
			return err
		}
		loaded = loadedModel{Name: model, Format: format, Type: "local"}
	}

	e.mu.Lock()
	e.client = client
	e.loaded = loaded
	e.mu.Unlock()
	e.lastUsed.Store(time.Now().UnixNano())

	if !quiet {
		e.say(tab, "Model loaded")
	}
	return nil
}

// Unload cancels any in-flight stream and drops the loaded model.
func (e *Engine) Unload(tab *Tab, announce bool) {
	e.StopStream()
	if e.dropClient() && announce {
		e.say(tab, "Model unloaded")
	}
}

// dropClient clears the loaded model reference. Reports whether a
// model was actually loaded.
func (e *Engine) dropClient() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	had := e.client != nil
	e.client = nil
	e.loaded = loadedModel{}
	return had
}

// hasProjectionSibling reports whether a multimodal projection file
// sits next to the model file.
func hasProjectionSibling(model string) bool {
	entries, err := os.ReadDir(filepath.Dir(model))
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.Contains(strings.ToLower(entry.Name()), "mmproj") {
			return true
		}
	}
	return false
}

func displayName(model string) string {
	return filepath.Base(model)
}

// =============================================================================
// STREAM CONTROL
// =============================================================================

// Stream runs the hot path: reject when busy, load on demand, then
// spawn the cancellable worker that performs the completion.
func (e *Engine) Stream(prompt, file string, tab *Tab) error {
	e.mu.Lock()
	busy := e.starting || e.loading || e.worker != nil
	if !busy {
		e.starting = true
	}
	e.mu.Unlock()

	if busy || !e.limiter.Allow() {
		if !busy {
			e.mu.Lock()
			e.starting = false
			e.mu.Unlock()
		}
		e.log.Warn("Slow down!")
		return errBusy
	}

	release := func() {
		e.mu.Lock()
		e.starting = false
		e.mu.Unlock()
	}

	if tab.Conv.IsEphemeral() {
		release()
		return errors.New("ephemeral tab cannot stream")
	}
	if e.cfg.MaxTurns > 0 && len(tab.Conv.Turns) >= e.cfg.MaxTurns {
		e.say(tab, "Conversation limit reached.")
		release()
		return errors.New("conversation limit reached")
	}

	e.mu.Lock()
	needLoad := e.client == nil
	e.mu.Unlock()
	if needLoad {
		if err := e.Load(tab, false); err != nil {
			release()
			return err
		}
	}

	done := make(chan struct{})
	e.mu.Lock()
	e.worker = done
	e.starting = false
	e.mu.Unlock()
	e.cancel.Store(false)

	go func() {
		defer close(done)
		defer func() {
			e.mu.Lock()
			if e.worker == done {
				e.worker = nil
			}
			e.mu.Unlock()
		}()
		defer e.log.Recover("stream")
		e.doStream(prompt, file, tab)
	}()
	return nil
}

// StopStream cancels the active stream and joins the worker up to the
// configured stop timeout. Safe to call when idle; on a join timeout
// the worker is abandoned (the engine lock still enforces at-most-one
// active completion).
func (e *Engine) StopStream() {
	e.mu.Lock()
	worker := e.worker
	e.mu.Unlock()
	if worker == nil {
		return
	}

	e.cancel.Store(true)

	timeout := time.Duration(e.cfg.StopStreamTimeout * float64(time.Second))
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-worker:
	case <-time.After(timeout):
		e.log.Warn("stream worker did not stop in time")
	}
}

// =============================================================================
// AUTO-UNLOAD
// =============================================================================

// StartAutoUnload begins the idle-model check. Call Close to stop it.
func (e *Engine) StartAutoUnload() {
	e.autoOnce.Do(func() {
		e.stopAuto = make(chan struct{})
		go func() {
			defer e.log.Recover("auto-unload")
			ticker := time.NewTicker(autoUnloadCheck)
			defer ticker.Stop()
			for {
				select {
				case <-e.stopAuto:
					return
				case <-ticker.C:
					e.checkAutoUnload()
				}
			}
		}()
	})
}

func (e *Engine) checkAutoUnload() {
	minutes := e.cfg.AutoUnloadMinutes
	if minutes <= 0 {
		return
	}
	e.mu.Lock()
	idleCandidate := e.client != nil && e.worker == nil && !e.loading
	e.mu.Unlock()
	if !idleCandidate {
		return
	}
	idle := time.Since(time.Unix(0, e.lastUsed.Load()))
	if idle >= time.Duration(minutes)*time.Minute {
		e.Unload(nil, false)
	}
}

// Close stops the stream and background work and unloads the model.
func (e *Engine) Close() {
	if e.stopAuto != nil {
		close(e.stopAuto)
		e.stopAuto = nil
	}
	e.Unload(nil, false)
}
