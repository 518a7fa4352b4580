// meltdown - local and remote LLM chat with tabs, a command queue and
// an idempotent markdown display pipeline.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/meltdown/internal/app"
	"github.com/jeranaias/meltdown/internal/config"
	"github.com/jeranaias/meltdown/internal/errlog"
	"github.com/jeranaias/meltdown/internal/listener"
	"github.com/jeranaias/meltdown/internal/lock"
)

const program = "meltdown"

func main() {
	os.Exit(run())
}

func run() int {
	profile := flag.String("profile", "main", "profile name")
	root := flag.String("root", "", "state directory (default ~/.meltdown)")
	force := flag.Bool("force", false, "bypass the single-instance lock")
	flag.Parse()

	paths, err := config.NewPaths(*root, *profile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "meltdown:", err)
		return 1
	}

	instance, err := lock.Acquire(paths.PIDFile(program), *force)
	if err != nil {
		fmt.Fprintln(os.Stderr, "meltdown is already running; use --force to bypass")
		return 0
	}
	defer instance.Release()

	log, err := errlog.New(paths.ErrorDir())
	if err != nil {
		fmt.Fprintln(os.Stderr, "meltdown:", err)
		return 1
	}

	cfg, diag := config.Load(paths)
	if diag != "" {
		log.Warn(diag)
	}

	a, err := app.New(app.Options{Config: cfg, Paths: paths, Log: log})
	if err != nil {
		fmt.Fprintln(os.Stderr, "meltdown:", err)
		return 1
	}
	go a.Run()
	defer func() {
		a.Quit()
		a.Wait()
	}()

	mailbox := listener.New(paths.MailboxFile(program), func(line string) {
		a.Post(func() { a.Submit(line, "") })
	}, log)
	if err := mailbox.Start(); err != nil {
		log.Error("listener", err)
	}
	defer mailbox.Stop()

	out := newPrinter(a)

	// One-shot mode: the positional argument is submitted and the
	// process exits once the answer lands.
	if input := strings.TrimSpace(strings.Join(flag.Args(), " ")); input != "" {
		a.Do(func() { a.Submit(input, "") })
		waitQuiet(a)
		out.flush()
		return 0
	}

	return repl(a, paths, out)
}

// =============================================================================
// REPL
// =============================================================================

func repl(a *app.App, paths *config.Paths, out *printer) int {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	historyFile := filepath.Join(paths.DataDir(), "history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.OpenFile(historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	line.SetCompleter(func(prefix string) []string {
		words := strings.Fields(prefix)
		if len(words) == 0 {
			return nil
		}
		last := words[len(words)-1]
		head := strings.TrimSuffix(prefix, last)
		var completions []string
		for _, w := range a.Complete(last) {
			completions = append(completions, head+w)
		}
		return completions
	})

	out.flush()
	for {
		input, err := line.Prompt("> ")
		if err != nil {
			// Ctrl+C or Ctrl+D.
			fmt.Println()
			return 0
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		a.Do(func() { a.Submit(input, "") })
		waitQuiet(a)
		out.flush()

		select {
		case <-a.Done():
			// An /exit command stopped the loop.
			return 0
		default:
		}
	}
}

// waitQuiet blocks until the stream worker and the command queues have
// drained.
func waitQuiet(a *app.App) {
	for {
		select {
		case <-a.Done():
			return
		default:
		}
		idle := false
		a.Do(func() { idle = !a.Engine().Streaming() && !a.Pending() })
		if idle {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

// printer echoes new display-buffer lines of the current tab to
// stdout, remembering how far each tab has been printed.
type printer struct {
	a       *app.App
	printed map[string]int
}

func newPrinter(a *app.App) *printer {
	return &printer{a: a, printed: make(map[string]int)}
}

func (p *printer) flush() {
	var id string
	var lines []string
	p.a.Do(func() {
		id, lines = p.a.CurrentLines()
	})
	from := p.printed[id]
	if from > len(lines) {
		from = 0
	}
	for _, line := range lines[from:] {
		fmt.Println(line)
	}
	p.printed[id] = len(lines)
}
