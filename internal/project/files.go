package project

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/fakeyudi/projector/internal/invalidate"
	"github.com/fakeyudi/projector/internal/logging"
	"github.com/fakeyudi/projector/internal/recent"
	"github.com/fakeyudi/projector/internal/state"
)

// untitled is the display name of a file that has never been saved.
const untitled = "Untitled"

// loadFileText returns the text of path, or "" for a new file (empty path).
// ok is false if the file can't be read or isn't text.
func loadFileText(path string) (text string, ok bool) {
	if path == "" {
		return "", true
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return "", false
	}
	return string(data), true
}

// withinRoot reports whether path is inside root.
func withinRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// LoadFile makes path the active file. An empty path starts a new, unsaved
// file. If the current file has unsaved edits the display surface is asked
// whether to save them first.
func (p *Project) LoadFile(ctx context.Context, path string) error {
	p.mu.Lock()
	loaded := p.root != nil
	p.mu.Unlock()
	if !loaded {
		return ErrNotLoaded
	}
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		path = abs
		if !withinRoot(p.rootPath, path) {
			return fmt.Errorf("%w: %s is not under %s", ErrOutsideRoot, path, p.rootPath)
		}
	}

	if p.Snapshot().Bool(state.Dirty) {
		choice, err := p.currentSurface().PromptSaveChanges(ctx)
		if err != nil {
			return fmt.Errorf("prompting to save changes: %w", err)
		}
		switch choice {
		case ChoiceCancel:
			return nil
		case ChoiceSave:
			if !p.Save(ctx) {
				return nil
			}
		}
	}

	files := recent.New[string](p.currentConfig().MaxRecentFiles)
	p.update(func(snap state.Snapshot) state.Changes {
		list := snap.Strings(state.RecentFiles)
		if n := len(list); n > 0 && list[n-1] == "" {
			list = list[:n-1]
		}
		return state.Changes{state.RecentFiles: files.Add(list, path)}
	})

	p.LoadMostRecentFile()
	return nil
}

// LoadMostRecentFile loads the most recent file that can still be read,
// dropping unreadable entries from the recent files list.
func (p *Project) LoadMostRecentFile() {
	p.update(func(snap state.Snapshot) state.Changes {
		files := snap.Strings(state.RecentFiles)
		path, text := "", ""
		for len(files) > 0 {
			candidate := files[len(files)-1]
			t, ok := loadFileText(candidate)
			if !ok {
				logging.Logger.Debug("dropping unreadable recent file", "path", candidate)
				files = files[:len(files)-1]
				continue
			}
			path, text = candidate, t
			break
		}

		p.filePath = path
		var filePath any
		fileName := untitled
		if path != "" {
			filePath = path
			fileName = filepath.Base(path)
		}
		return state.Changes{
			state.Dirty:       false,
			state.FilePath:    filePath,
			state.FileName:    fileName,
			state.RecentFiles: files,
			state.Text:        text,
			state.TextSource:  "file",
		}
	})
}

// Save writes the text to the active file. Failures are reported to the
// display surface and yield false.
func (p *Project) Save(ctx context.Context) bool {
	p.mu.Lock()
	path := p.filePath
	text := p.snap.String(state.Text)
	p.mu.Unlock()

	err := ErrUntitled
	if path != "" {
		err = os.WriteFile(path, []byte(text), 0o644)
	}
	if err != nil {
		logging.Logger.Error("save failed", "path", path, "error", err)
		detail := fmt.Sprintf("Failed to save file %q: %v", path, err)
		if err := p.currentSurface().ShowError(ctx, "Save Failed", detail); err != nil {
			logging.Logger.Warn("failed to show error", "error", err)
		}
		return false
	}

	p.SetState(state.Changes{state.Dirty: false})
	p.invalidate(ctx, path)
	return true
}

// SaveAs saves the text to path. A path inside the project becomes the
// active file; a path outside it is opened as a new project.
func (p *Project) SaveAs(ctx context.Context, path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	p.mu.Lock()
	if p.root == nil {
		p.mu.Unlock()
		return false, ErrNotLoaded
	}
	oldPath := p.filePath
	p.filePath = abs
	p.mu.Unlock()

	saved := p.Save(ctx)

	if withinRoot(p.rootPath, abs) {
		return saved, p.LoadFile(ctx, abs)
	}

	files := recent.New[string](0)
	p.update(func(snap state.Snapshot) state.Changes {
		return state.Changes{state.RecentFiles: files.Remove(snap.Strings(state.RecentFiles), oldPath)}
	})
	if p.opts.Windows == nil {
		return saved, nil
	}
	return saved, p.opts.Windows.OpenFile(ctx, abs)
}

// FileOpen asks the display surface to choose a file, then opens it.
func (p *Project) FileOpen(ctx context.Context) error {
	path, err := p.currentSurface().ChooseFile(ctx)
	if err != nil || path == "" {
		return err
	}
	if p.opts.Windows == nil {
		return p.LoadFile(ctx, path)
	}
	return p.opts.Windows.OpenFile(ctx, path)
}

// OnChange handles a change to path reported by the file watcher.
func (p *Project) OnChange(ctx context.Context, path string) {
	p.mu.Lock()
	loaded := p.root != nil
	active := p.filePath
	p.mu.Unlock()
	if !loaded {
		return
	}

	rel, err := filepath.Rel(p.rootPath, path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	// Root-level dot folders such as .git.
	if first, _, nested := strings.Cut(rel, "/"); nested && strings.HasPrefix(first, ".") {
		return
	}

	if path != active {
		p.invalidate(ctx, path)

		if rel == "package.json" || rel == ".projectorconfig" {
			logging.Logger.Info("project metadata changed, reloading", "root", p.rootPath)
			if err := p.LoadProject(ctx); err != nil {
				logging.Logger.Error("failed to reload project", "root", p.rootPath, "error", err)
				return
			}
			if p.opts.Windows != nil {
				if err := p.opts.Windows.AddRecentProject(p); err != nil {
					logging.Logger.Warn("failed to update recent projects", "error", err)
				}
			}
			return
		}
		if sitePath, ok := p.Snapshot().Nullable(state.SitePath); ok && rel == sitePath {
			p.resetSite()
		}
		if !p.refresh.Pending() {
			p.restartRefresh()
		}
		return
	}

	snap := p.Snapshot()
	if snap.Bool(state.Dirty) {
		// Unsaved edits win over external changes.
		return
	}
	if text, ok := loadFileText(path); ok && text == snap.String(state.Text) {
		// Our own save.
		return
	}

	p.LoadMostRecentFile()
	p.invalidate(ctx, path)
	if !p.refresh.Pending() {
		p.Refresh(ctx)
	}
}

// invalidate drops whatever caches a change to path makes stale.
func (p *Project) invalidate(ctx context.Context, path string) {
	actions := invalidate.Actions(path)
	if actions == invalidate.None {
		return
	}
	logging.Logger.Debug("invalidating caches", "path", path, "actions", actions.String())
	if actions.Has(invalidate.ResetModules) {
		p.opts.Evaluator.ResetModules()
	}
	if actions.Has(invalidate.ReloadSite) {
		p.resetSite()
	}
	if actions.Has(invalidate.ClearDisplayCache) {
		if err := p.currentSurface().ClearCache(ctx); err != nil {
			logging.Logger.Warn("failed to clear display cache", "error", err)
		}
	}
}
