// Package project is the runtime for one open project folder. A Project owns
// the project's state snapshot, its navigation history, its file watcher and
// its cached site, and pushes every state change to the attached display
// surface.
package project

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fakeyudi/projector/internal/config"
	"github.com/fakeyudi/projector/internal/evaluator"
	"github.com/fakeyudi/projector/internal/logging"
	"github.com/fakeyudi/projector/internal/navigation"
	"github.com/fakeyudi/projector/internal/refresh"
	"github.com/fakeyudi/projector/internal/runner"
	"github.com/fakeyudi/projector/internal/settings"
	"github.com/fakeyudi/projector/internal/state"
	"github.com/fakeyudi/projector/internal/tree"
	"github.com/fakeyudi/projector/internal/watch"
)

var (
	// ErrNotLoaded is returned by operations that need LoadProject first.
	ErrNotLoaded = errors.New("project not loaded")
	// ErrOutsideRoot is returned when a file lies outside the project root.
	ErrOutsideRoot = errors.New("file is outside the project root")
	// ErrUntitled is returned when saving a file that has no path yet.
	ErrUntitled = errors.New("file has no path")
)

// Evaluator runs commands and unpacks project files.
type Evaluator interface {
	evaluator.Evaluator
	tree.Unpacker
	IsTraversal(command string) (bool, error)
	ResetModules()
}

// SettingsStore persists per-project settings.
type SettingsStore interface {
	ProjectSettings(root string) (settings.ProjectSettings, error)
	SetProjectSettings(root string, ps settings.ProjectSettings) error
}

// WindowManager opens projects in other windows.
type WindowManager interface {
	OpenFile(ctx context.Context, path string) error
	AddRecentProject(p *Project) error
}

// Options configure a Project.
type Options struct {
	Evaluator Evaluator
	Settings  SettingsStore
	Windows   WindowManager
	// Open shows an external URL, such as in the user's browser.
	Open   func(ctx context.Context, url string) error
	Config config.Config
}

// Project is one open project.
type Project struct {
	rootPath string
	opts     Options
	runner   *runner.Controller
	refresh  refresh.Scheduler

	mu       sync.Mutex
	snap     state.Snapshot
	root     *tree.Dir
	cfg      config.Config
	filePath string
	surface  Surface
	unwatch  context.CancelFunc

	siteMu     sync.Mutex
	site       any
	siteLoaded bool
}

// New returns an unloaded Project rooted at rootPath.
func New(rootPath string, opts Options) *Project {
	if opts.Evaluator == nil {
		opts.Evaluator = evaluator.New()
	}
	if opts.Open == nil {
		opts.Open = func(_ context.Context, url string) error {
			logging.Logger.Info("no opener configured", "url", url)
			return nil
		}
	}
	opts.Config = config.Merge(&opts.Config, nil)
	return &Project{
		rootPath: rootPath,
		opts:     opts,
		runner:   runner.New(opts.Evaluator, opts.Config.MaxRecentCommands),
		cfg:      opts.Config,
		surface:  NopSurface{},
		snap: state.New(state.Changes{
			state.Command:        "",
			state.Text:           nil,
			state.TextSource:     "file",
			state.Dirty:          false,
			state.FilePath:       nil,
			state.FileName:       nil,
			state.RecentCommands: []string{},
			state.RecentFiles:    []string{},
			state.BackStack:      []string{},
			state.ForwardStack:   []string{},
			state.BackEnabled:    false,
			state.ForwardEnabled: false,
			state.RunVersion:     0,
			state.ResultVersion:  0,
			state.LoadedVersion:  0,
			state.LastRunCrashed: false,
			state.Error:          nil,
			state.SitePath:       nil,
			state.ProjectName:    "New project",
			state.PageTitle:      "",
			state.LastScroll:     nil,
		}),
	}
}

// Root returns the project root path.
func (p *Project) Root() string { return p.rootPath }

// Name returns the project name.
func (p *Project) Name() string { return p.Snapshot().String(state.ProjectName) }

// Snapshot returns the current state.
func (p *Project) Snapshot() state.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// FilePath returns the active file, or "" for an unsaved file.
func (p *Project) FilePath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filePath
}

// SetState applies changes and, if anything changed, triggers persistence,
// the refresh timer, and a broadcast to the display surface.
func (p *Project) SetState(changes state.Changes) state.Changed {
	return p.update(func(state.Snapshot) state.Changes { return changes })
}

// update computes changes from the current snapshot while holding the lock,
// then runs side effects for whatever changed.
func (p *Project) update(fn func(snap state.Snapshot) state.Changes) state.Changed {
	p.mu.Lock()
	changes := fn(p.snap)
	if len(changes) == 0 {
		p.mu.Unlock()
		return nil
	}
	next, changed := state.Set(p.snap, changes)
	p.snap = next
	surface := p.surface
	p.mu.Unlock()

	if !changed.Empty() {
		p.render(surface, next, changed)
	}
	return changed
}

func (p *Project) render(surface Surface, snap state.Snapshot, changed state.Changed) {
	ctx := context.Background()

	if changed[state.Dirty] && snap.Bool(state.Dirty) {
		p.restartRefresh()
	}
	if changed.Has(state.LastRunCrashed, state.RecentCommands, state.RecentFiles) {
		p.saveSettings(snap)
	}
	if changed.Has(state.ProjectName, state.PageTitle, state.Dirty) {
		if err := surface.SetWindowState(ctx, Title(snap), snap.Bool(state.Dirty)); err != nil {
			logging.Logger.Warn("failed to update window state", "root", p.rootPath, "error", err)
		}
	}
	if err := surface.SetState(ctx, snap); err != nil {
		logging.Logger.Warn("failed to broadcast state", "root", p.rootPath, "error", err)
	}
}

func (p *Project) saveSettings(snap state.Snapshot) {
	if p.opts.Settings == nil {
		return
	}
	ps := settings.ProjectSettings{
		RecentCommands: snap.Strings(state.RecentCommands),
		RecentFiles:    snap.Strings(state.RecentFiles),
		LastRunCrashed: snap.Bool(state.LastRunCrashed),
	}
	if err := p.opts.Settings.SetProjectSettings(p.rootPath, ps); err != nil {
		logging.Logger.Error("failed to save project settings", "root", p.rootPath, "error", err)
	}
}

// Title is the window title for snap.
func Title(snap state.Snapshot) string {
	title := snap.String(state.ProjectName)
	if page := snap.String(state.PageTitle); page != "" {
		title += " — " + page
	}
	return title
}

// Attach makes s the project's display surface and sends it the current
// state.
func (p *Project) Attach(s Surface) {
	p.mu.Lock()
	p.surface = s
	snap := p.snap
	p.mu.Unlock()

	ctx := context.Background()
	if err := s.SetWindowState(ctx, Title(snap), snap.Bool(state.Dirty)); err != nil {
		logging.Logger.Warn("failed to update window state", "root", p.rootPath, "error", err)
	}
	if err := s.SetState(ctx, snap); err != nil {
		logging.Logger.Warn("failed to send initial state", "root", p.rootPath, "error", err)
	}
}

// Detach drops the display surface if it is still s.
func (p *Project) Detach(s Surface) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.surface == s {
		p.surface = NopSurface{}
	}
}

func (p *Project) currentSurface() Surface {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.surface
}

// LoadProject (re)loads the project: metadata, settings, the active file and
// the file watcher. Unless the last run crashed, the restored command runs.
func (p *Project) LoadProject(ctx context.Context) error {
	root := tree.NewDir(p.rootPath)
	meta, err := readMetadata(ctx, p.opts.Evaluator, p.rootPath)
	if err != nil {
		return err
	}

	projCfg, err := config.LoadProject(p.rootPath)
	if err != nil {
		return fmt.Errorf("loading project config: %w", err)
	}
	cfg := config.Merge(&p.opts.Config, projCfg)

	var ps settings.ProjectSettings
	if p.opts.Settings != nil {
		if ps, err = p.opts.Settings.ProjectSettings(p.rootPath); err != nil {
			return fmt.Errorf("loading project settings: %w", err)
		}
	}
	if ps.RecentCommands == nil {
		ps.RecentCommands = []string{}
	}
	if ps.RecentFiles == nil {
		ps.RecentFiles = []string{}
	}

	var command string
	if n := len(ps.RecentCommands); n > 0 {
		command = ps.RecentCommands[n-1]
	} else {
		command = navigation.HomeCommand(meta.SitePath)
	}

	p.mu.Lock()
	p.root = root
	p.cfg = cfg
	p.mu.Unlock()
	p.resetSite()

	var sitePath any
	if meta.SitePath != "" {
		sitePath = meta.SitePath
	}
	p.SetState(state.Changes{
		state.Command:        command,
		state.LastRunCrashed: ps.LastRunCrashed,
		state.ProjectName:    meta.Name,
		state.RecentCommands: ps.RecentCommands,
		state.RecentFiles:    ps.RecentFiles,
		state.SitePath:       sitePath,
	})
	logging.Logger.Info("project loaded", "root", p.rootPath, "name", meta.Name, "site", meta.SitePath)

	p.startWatching(cfg)

	switch {
	case len(ps.RecentFiles) > 0:
		p.LoadMostRecentFile()
	case meta.SitePath != "":
		if err := p.LoadFile(ctx, filepath.Join(p.rootPath, meta.SitePath)); err != nil {
			logging.Logger.Warn("failed to load site file", "root", p.rootPath, "error", err)
		}
	}

	if !ps.LastRunCrashed && command != "" {
		// Evaluation errors are already recorded in state.
		_ = p.Run(ctx)
	}
	return nil
}

func (p *Project) startWatching(cfg config.Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unwatch != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.unwatch = cancel
	w := &watch.Watcher{Root: p.rootPath, IgnorePatterns: cfg.IgnorePatterns}
	go func() {
		if err := w.Run(ctx, func(e watch.Event) { p.OnChange(ctx, e.Path) }); err != nil {
			logging.Logger.Error("file watcher stopped", "root", p.rootPath, "error", err)
		}
	}()
}

// Close stops the watcher and the refresh timer and detaches the display
// surface.
func (p *Project) Close() {
	p.refresh.Cancel()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unwatch != nil {
		p.unwatch()
		p.unwatch = nil
	}
	p.surface = NopSurface{}
	logging.Logger.Debug("project closed", "root", p.rootPath)
}

// Parent is the tree commands are evaluated against.
func (p *Project) Parent(context.Context) (tree.Tree, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.root == nil {
		return nil, ErrNotLoaded
	}
	return p.root, nil
}

func (p *Project) currentConfig() config.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}
