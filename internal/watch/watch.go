// Package watch reports file changes under a project root.
package watch

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/fakeyudi/projector/internal/logging"
)

// Event is a change to one path.
type Event struct {
	Path string
}

// Watcher watches a directory tree, skipping ignored paths.
type Watcher struct {
	Root           string
	IgnorePatterns []string

	patterns []string
}

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
}

// Run starts a recursive fsnotify watcher on Root and calls onChange for every
// write, create, remove, or rename until ctx is cancelled. onChange runs on the
// watcher goroutine.
func (w *Watcher) Run(ctx context.Context, onChange func(Event)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	w.patterns, err = w.loadIgnorePatterns()
	if err != nil {
		logging.Logger.Warn("failed to load ignore patterns", "root", w.Root, "error", err)
	}

	if err := w.addTree(watcher, w.Root); err != nil {
		return err
	}
	logging.Logger.Debug("watching project", "root", w.Root)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if w.isIgnored(event.Name) {
				continue
			}
			// A new directory needs watching too.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addTree(watcher, event.Name)
				}
			}
			onChange(Event{Path: event.Name})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Logger.Warn("watcher error", "root", w.Root, "error", err)
		}
	}
}

// addTree adds dir and every non-ignored subdirectory.
func (w *Watcher) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.Root && (skipDirs[d.Name()] || w.isIgnored(path)) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// isIgnored reports whether path matches any ignore pattern.
func (w *Watcher) isIgnored(path string) bool {
	rel := path
	if w.Root != "" {
		if r, err := filepath.Rel(w.Root, path); err == nil {
			rel = r
		}
	}
	base := filepath.Base(path)

	for _, pattern := range w.patterns {
		pattern = strings.TrimSuffix(pattern, "/")
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
		if matched, _ := filepath.Match(strings.TrimPrefix(pattern, "/"), rel); matched {
			return true
		}
	}
	return false
}

// loadIgnorePatterns merges the configured patterns with those from
// .gitignore and .projectorignore in the root.
func (w *Watcher) loadIgnorePatterns() ([]string, error) {
	patterns := append([]string(nil), w.IgnorePatterns...)
	for _, name := range []string{".gitignore", ".projectorignore"} {
		extra, err := readPatternFile(filepath.Join(w.Root, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return patterns, err
		}
		patterns = append(patterns, extra...)
	}
	return patterns, nil
}

// readPatternFile reads a gitignore-style file and returns non-empty,
// non-comment, non-negated lines.
func readPatternFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, scanner.Err()
}
