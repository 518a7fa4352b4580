// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package listener watches the mailbox file other processes write to.
// Non-empty content is consumed (the file is truncated) and each line
// is delivered to the submit callback. A filesystem watcher gives the
// fast path; a one-second poll backstops filesystems without events.
package listener

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/meltdown/internal/errlog"
)

// pollInterval backstops missed filesystem events.
const pollInterval = time.Second

// Listener consumes lines from a mailbox file.
type Listener struct {
	path    string
	deliver func(line string)
	log     *errlog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stop    chan struct{}
	done    chan struct{}
}

// New builds a listener for a mailbox path. Deliver is called once per
// non-empty line, from the listener goroutine.
func New(path string, deliver func(line string), log *errlog.Logger) *Listener {
	return &Listener{path: path, deliver: deliver, log: log}
}

// Start creates the mailbox file if needed and begins watching.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop != nil {
		return nil
	}

	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		if err := os.WriteFile(l.path, nil, 0o644); err != nil {
			return err
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: truncate-and-rewrite cycles drop per-file
	// watches on some platforms.
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return err
	}

	l.watcher = watcher
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(watcher, l.stop, l.done)
	return nil
}

// Stop ends the watch and waits for the listener goroutine.
func (l *Listener) Stop() {
	l.mu.Lock()
	stop, done, watcher := l.stop, l.done, l.watcher
	l.stop, l.done, l.watcher = nil, nil, nil
	l.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
	watcher.Close()
}

func (l *Listener) run(watcher *fsnotify.Watcher, stop chan struct{}, done chan struct{}) {
	defer close(done)
	defer l.log.Recover("listener")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != l.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				l.consume()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.log.Error("listener watch", err)
		case <-ticker.C:
			l.consume()
		}
	}
}

// consume reads and truncates the mailbox, delivering each line.
func (l *Listener) consume() {
	data, err := os.ReadFile(l.path)
	if err != nil || len(strings.TrimSpace(string(data))) == 0 {
		return
	}
	if err := os.Truncate(l.path, 0); err != nil {
		l.log.Error("listener truncate", err)
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			l.deliver(line)
		}
	}
}
