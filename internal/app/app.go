// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"regexp"
	"sync"
	"time"

	"github.com/jeranaias/meltdown/internal/cmdqueue"
	"github.com/jeranaias/meltdown/internal/config"
	"github.com/jeranaias/meltdown/internal/display"
	"github.com/jeranaias/meltdown/internal/engine"
	"github.com/jeranaias/meltdown/internal/errlog"
	"github.com/jeranaias/meltdown/internal/keywords"
	"github.com/jeranaias/meltdown/internal/markdown"
	"github.com/jeranaias/meltdown/internal/memory"
	"github.com/jeranaias/meltdown/internal/session"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// saveDebounce delays the session write after the last mutation.
	saveDebounce = 500 * time.Millisecond

	// checkInterval drives the periodic status snapshot.
	checkInterval = 200 * time.Millisecond

	// postQueueSize bounds the owner mailbox. Workers block when it
	// fills, which keeps display updates ordered.
	postQueueSize = 1024

	// autoNameRunes caps a conversation name taken from its first
	// prompt.
	autoNameRunes = 30
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options wires an App. Config, Paths and Log are required; the rest
// default to the real implementations.
type Options struct {
	Config *config.Config
	Paths  *config.Paths
	Log    *errlog.Logger

	// Local instantiates a local inference backend. Nil disables
	// local models.
	Local engine.LocalFactory

	// Remote overrides the remote client factory (tests).
	Remote engine.RemoteFactory

	// Search implements the web_search tool. Nil disables it.
	Search func(query string) (string, error)

	// Clipboard copies text for the copy command. Nil disables it.
	Clipboard func(text string) error

	// Opener opens a path or URL for the open command. Nil uses the
	// platform opener.
	Opener func(target string) error

	// Status receives the periodic snapshot. May be nil.
	Status func(Status)
}

// Status is what the periodic tick reports to a frontend.
type Status struct {
	Model     string
	Loaded    string
	Streaming bool
	TabName   string
	TabCount  int
}

// =============================================================================
// APP
// =============================================================================

// App owns every mutable service. All methods except Post, Do, After,
// CancelAlarm and Quit must run on the Run goroutine.
type App struct {
	cfg   *config.Config
	paths *config.Paths
	log   *errlog.Logger

	store   *session.Store
	buffers map[string]*display.Buffer
	current string

	pipeline   *markdown.Pipeline
	registry   *cmdqueue.Registry
	dispatcher *cmdqueue.Dispatcher
	palette    *cmdqueue.Palette
	words      *keywords.Engine
	engine     *engine.Engine

	mem        *memory.Memory
	models     *memory.RecentList
	inputs     *memory.RecentList
	systems    *memory.RecentList
	files      *memory.RecentList
	cmdRecency *memory.CommandRecency
	vocab      *memory.Vocabulary

	status    func(Status)
	clipboard func(text string) error
	opener    func(target string) error

	// pendingFile is the attachment consumed by the next submit.
	pendingFile string

	varRe     *regexp.Regexp
	saveTimer *time.Timer

	alarmMu   sync.Mutex
	alarms    map[uint64]*time.Timer
	nextAlarm uint64

	post     chan func()
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

// New assembles the services. Load failures of persisted state are
// tolerated and logged; New fails only when the profile directories
// cannot be created.
func New(opts Options) (*App, error) {
	cfg, paths, log := opts.Config, opts.Paths, opts.Log

	a := &App{
		cfg:       cfg,
		paths:     paths,
		log:       log,
		buffers:   make(map[string]*display.Buffer),
		status:    opts.Status,
		clipboard: opts.Clipboard,
		opener:    opts.Opener,
		alarms:    make(map[uint64]*time.Timer),
		post:      make(chan func(), postQueueSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	a.varRe = regexp.MustCompile(`^` + regexp.QuoteMeta(varPrefix(cfg)) + `(\w+)\s*=\s*(.+)$`)

	a.words = keywords.New(varPrefix(cfg), defaultNouns)

	a.pipeline = markdown.New(pipelineOptions(cfg), log)

	a.openMemory()

	a.store = session.NewStore(session.Options{
		MaxTurns:      cfg.MaxTurns,
		MaxTabs:       cfg.MaxTabs,
		MaxNameLength: cfg.MaxNameLength,
		NoEmpty:       cfg.NoEmpty,
	})
	if err := a.store.Load(paths.SessionFile()); err != nil {
		log.Error("session load", err)
	}
	if a.store.Len() == 0 {
		conv, err := a.store.Add(a.freshTabName(), "", session.PositionEnd)
		if err != nil {
			return nil, err
		}
		a.current = conv.ID
	} else {
		a.current = a.store.IDs()[0]
	}
	for _, conv := range a.store.All() {
		a.rebuild(conv)
	}

	a.registry = cmdqueue.NewRegistry()
	a.registerCommands()
	var diag string
	a.cmdRecency, diag = memory.OpenCommandRecency(paths.DataFile("commands.json"), func(name string) bool {
		_, ok := a.registry.Get(name)
		return ok
	})
	a.note(diag)
	a.dispatcher = cmdqueue.NewDispatcher(a.registry, cmdqueue.DispatchOptions{
		Prefix:           cfg.Prefix,
		AndChar:          cfg.AndChar,
		SimilarThreshold: cfg.SimilarThreshold,
		Aliases:          cfg.Aliases,
		Subst:            a.subst,
		OnDispatch:       func(name string) { a.cmdRecency.Touch(name) },
		Log:              log,
	})
	a.palette = cmdqueue.NewPalette(a.registry, a.cmdRecency)

	a.engine = engine.New(engine.Options{
		Config: cfg,
		Paths:  paths,
		Log:    log,
		Subst:  a.subst,
		Post:   a.Post,
		Search: opts.Search,
		Local:  opts.Local,
		Remote: opts.Remote,
		Hooks: engine.Hooks{
			Format: func(tab *engine.Tab) {
				a.pipeline.Format(tab.Buf, markdown.ModeLast)
				a.markDirty()
			},
			Submit: func(invocation string) { a.Submit(invocation, "") },
		},
	})
	a.engine.SetModel(cfg.Model)
	a.engine.StartAutoUnload()

	return a, nil
}

// openMemory loads memory.json, the recent lists and the autocomplete
// vocabulary, logging any diagnostics. The command recency map is
// opened later, once the command table exists.
func (a *App) openMemory() {
	data := a.paths.DataFile
	max := a.cfg.MaxFileList

	var diag string
	a.mem, diag = memory.Open(data("memory.json"))
	a.note(diag)
	a.models, diag = memory.OpenRecent(data("models.json"), max)
	a.note(diag)
	a.inputs, diag = memory.OpenRecent(data("inputs.json"), max)
	a.note(diag)
	a.systems, diag = memory.OpenRecent(data("systems.json"), max)
	a.note(diag)
	a.files, diag = memory.OpenRecent(data("files.json"), max)
	a.note(diag)
	a.vocab, diag = memory.OpenVocabulary(data("autocomplete.json"), max)
	a.note(diag)
}

func (a *App) note(diag string) {
	if diag != "" {
		a.log.Warn(diag)
	}
}

// =============================================================================
// EVENT LOOP
// =============================================================================

// Run is the owner loop. It returns after Quit, once pending state has
// been flushed.
func (a *App) Run() {
	defer close(a.done)

	dispatch := time.NewTicker(cmdqueue.TickMs * time.Millisecond)
	defer dispatch.Stop()
	check := time.NewTicker(checkInterval)
	defer check.Stop()

	for {
		select {
		case fn := <-a.post:
			fn()
		case <-dispatch.C:
			a.dispatcher.Tick()
		case <-check.C:
			a.periodic()
		case <-a.quit:
			a.shutdown()
			return
		}
	}
}

// Post enqueues fn onto the owner loop. Safe from any goroutine. After
// Quit the closure is dropped.
func (a *App) Post(fn func()) {
	select {
	case a.post <- fn:
	case <-a.quit:
	}
}

// Do posts fn and waits for it to run.
func (a *App) Do(fn func()) {
	ran := make(chan struct{})
	a.Post(func() {
		defer close(ran)
		fn()
	})
	select {
	case <-ran:
	case <-a.done:
	}
}

// Quit stops the loop. Idempotent.
func (a *App) Quit() {
	a.quitOnce.Do(func() { close(a.quit) })
}

// Wait blocks until the loop has exited.
func (a *App) Wait() { <-a.done }

func (a *App) periodic() {
	if a.status == nil {
		return
	}
	name, _ := a.engine.Loaded()
	tabName := ""
	if conv := a.store.Get(a.current); conv != nil {
		tabName = conv.Name
	}
	a.status(Status{
		Model:     a.engine.Model(),
		Loaded:    name,
		Streaming: a.engine.Streaming(),
		TabName:   tabName,
		TabCount:  a.store.Len(),
	})
}

func (a *App) shutdown() {
	a.engine.Close()
	if a.saveTimer != nil {
		a.saveTimer.Stop()
	}
	a.saveSession()
	a.alarmMu.Lock()
	for _, t := range a.alarms {
		t.Stop()
	}
	a.alarms = map[uint64]*time.Timer{}
	a.alarmMu.Unlock()
}

// =============================================================================
// DEBOUNCED SESSION SAVE
// =============================================================================

// markDirty schedules a session save after the debounce window. A
// further mutation inside the window reschedules the timer.
func (a *App) markDirty() {
	if a.saveTimer != nil {
		a.saveTimer.Stop()
	}
	a.saveTimer = time.AfterFunc(saveDebounce, func() {
		a.Post(a.saveSession)
	})
}

func (a *App) saveSession() {
	if err := a.store.Save(a.paths.SessionFile()); err != nil {
		a.log.Error("session save", err)
	}
}

// =============================================================================
// ALARMS
// =============================================================================

// After schedules fn on the owner loop delayMs from now and returns a
// handle for CancelAlarm. Safe from any goroutine.
func (a *App) After(delayMs int, fn func()) uint64 {
	a.alarmMu.Lock()
	a.nextAlarm++
	handle := a.nextAlarm
	a.alarms[handle] = time.AfterFunc(time.Duration(delayMs)*time.Millisecond, func() {
		a.alarmMu.Lock()
		delete(a.alarms, handle)
		a.alarmMu.Unlock()
		a.Post(fn)
	})
	a.alarmMu.Unlock()
	return handle
}

// CancelAlarm stops a pending alarm. Unknown handles are ignored.
func (a *App) CancelAlarm(handle uint64) {
	a.alarmMu.Lock()
	if t, ok := a.alarms[handle]; ok {
		t.Stop()
		delete(a.alarms, handle)
	}
	a.alarmMu.Unlock()
}

// =============================================================================
// SUBSTITUTION
// =============================================================================

// subst applies keyword and variable substitution with the current
// tab's context.
func (a *App) subst(text string) string {
	ctx := keywords.Context{
		NameUser: a.cfg.NameUser,
		NameAI:   a.cfg.NameAI,
	}
	if conv := a.store.Get(a.current); conv != nil {
		ctx.TabName = conv.Name
	}
	return a.words.Apply(text, ctx)
}

func varPrefix(cfg *config.Config) string {
	if cfg.VarPrefix == "" {
		return "@"
	}
	return string([]rune(cfg.VarPrefix)[0])
}

// pipelineOptions maps config onto the markdown rule options.
func pipelineOptions(cfg *config.Config) markdown.Options {
	opts := markdown.DefaultOptions()
	if cfg.MarkdownJoiner != "" {
		opts.Joiner = cfg.MarkdownJoiner
	}
	if cfg.OrderedChar != "" {
		opts.OrderedChar = cfg.OrderedChar
	}
	if cfg.UnorderedChar != "" {
		opts.UnorderedChar = cfg.UnorderedChar
	}
	if cfg.ListSpacing != "" {
		opts.ListSpacing = cfg.ListSpacing
	}
	if cfg.Separator != "" {
		opts.SeparatorLine = cfg.Separator
	}
	if cfg.ThinkStarted != "" {
		opts.ThinkStartLabel = cfg.ThinkStarted
	}
	if cfg.ThinkEnded != "" {
		opts.ThinkEndLabel = cfg.ThinkEnded
	}
	if cfg.LabelUser != "" {
		opts.LabelUser = cfg.LabelUser + cfg.Delimiter
	}
	if cfg.LabelAI != "" {
		opts.LabelAssistant = cfg.LabelAI + cfg.Delimiter
	}
	if cfg.LabelSystem != "" {
		opts.LabelSystem = cfg.LabelSystem + cfg.Delimiter
	}
	return opts
}

// Palette exposes the command palette for frontend listings.
func (a *App) Palette() *cmdqueue.Palette { return a.palette }

// Complete exposes the learned vocabulary for prompt completion.
func (a *App) Complete(query string) []string { return a.vocab.Complete(query) }

// Engine exposes the model engine for status queries.
func (a *App) Engine() *engine.Engine { return a.engine }

// Pending reports whether the dispatcher still holds queued commands.
// Owner goroutine only.
func (a *App) Pending() bool { return a.dispatcher.Pending() }

// Done is closed once the event loop has exited.
func (a *App) Done() <-chan struct{} { return a.done }

// CurrentLines returns the current tab id and its display lines. Owner
// goroutine only.
func (a *App) CurrentLines() (string, []string) {
	return a.current, a.buffer(a.current).Lines()
}
