// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package controls

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads a catalog override file into an Assessor.
//
// # Description
//
// Watches the directory containing the override file (editors often
// replace files via rename, which drops a watch on the file itself)
// and swaps the assessor's catalog whenever the override changes and
// parses cleanly. A broken override is logged and ignored; the last
// good catalog stays in effect.
type Watcher struct {
	assessor *Assessor
	path     string
	logger   *slog.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	done    chan struct{}
	running bool
}

// NewWatcher creates a watcher for the given override path. The file
// does not need to exist yet; it is loaded when it appears.
func NewWatcher(assessor *Assessor, path string, logger *slog.Logger) *Watcher {
	return &Watcher{assessor: assessor, path: filepath.Clean(path), logger: logger}
}

// Start loads the override if present and begins watching for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	w.fsw = fsw
	w.done = make(chan struct{})
	w.running = true

	w.tryReload()
	go w.loop(fsw, w.done)
	return nil
}

// Stop halts the watcher. Safe to call when not running.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	close(w.done)
	w.fsw.Close()
	w.running = false
}

func (w *Watcher) loop(fsw *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.tryReload()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("catalog watcher error", "error", err)
		}
	}
}

// tryReload parses the override and swaps it in if valid.
func (w *Watcher) tryReload() {
	cat, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("catalog override not loaded", "path", w.path, "error", err)
		return
	}
	w.assessor.SetCatalog(cat)
	w.logger.Info("control catalog reloaded",
		"path", w.path,
		"categories", len(cat.Categories),
		"checks", cat.CheckCount(),
	)
}
