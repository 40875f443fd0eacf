// Package app manages the set of open project windows. Each window pairs a
// loaded project with the resource server its display surface reads from.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fakeyudi/projector/internal/config"
	"github.com/fakeyudi/projector/internal/evaluator"
	"github.com/fakeyudi/projector/internal/logging"
	"github.com/fakeyudi/projector/internal/project"
	"github.com/fakeyudi/projector/internal/resource"
	"github.com/fakeyudi/projector/internal/settings"
)

// ErrNoWindow is returned for an unknown window id.
var ErrNoWindow = errors.New("no such window")

// Window is one open project and its resource server.
type Window struct {
	ID       string
	Project  *project.Project
	OpenedAt time.Time

	server *http.Server
	url    string
}

// URL is the base URL of the window's resource server, with a trailing slash.
func (w *Window) URL() string { return w.url }

// Options configure an App.
type Options struct {
	Config   config.Config
	Settings *settings.Manager
	// Open shows external links. Nil logs and ignores them.
	Open func(ctx context.Context, url string) error
}

// App owns every open window. It implements project.WindowManager.
type App struct {
	cfg      config.Config
	settings *settings.Manager
	engine   *evaluator.Engine
	open     func(ctx context.Context, url string) error

	// opening serializes OpenProject so one root never gets two windows.
	opening sync.Mutex

	mu      sync.RWMutex
	windows map[string]*Window
}

// New returns an App with no windows. All windows share one evaluator, and
// so one module cache.
func New(opts Options) *App {
	return &App{
		cfg:      opts.Config,
		settings: opts.Settings,
		engine:   evaluator.New(),
		open:     opts.Open,
		windows:  make(map[string]*Window),
	}
}

// Engine returns the evaluator shared by every window.
func (a *App) Engine() *evaluator.Engine { return a.engine }

// Window returns the window with id.
func (a *App) Window(id string) (*Window, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	w, ok := a.windows[id]
	return w, ok
}

// Windows returns the open windows, oldest first.
func (a *App) Windows() []*Window {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Window, 0, len(a.windows))
	for _, w := range a.windows {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}

func (a *App) windowForRoot(root string) *Window {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, w := range a.windows {
		if w.Project.Root() == root {
			return w
		}
	}
	return nil
}

// OpenProject opens the project containing path, reusing its window if one
// is already open.
func (a *App) OpenProject(ctx context.Context, path string) (*Window, error) {
	root, err := project.FindRoot(path)
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	a.opening.Lock()
	defer a.opening.Unlock()
	if w := a.windowForRoot(root); w != nil {
		return w, nil
	}

	projCfg, err := config.LoadProject(root)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}
	cfg := config.Merge(&a.cfg, projCfg)

	opts := project.Options{
		Evaluator: a.engine,
		Windows:   a,
		Open:      a.open,
		Config:    cfg,
	}
	if a.settings != nil {
		opts.Settings = a.settings
	}
	p := project.New(root, opts)
	w := &Window{
		ID:       uuid.New().String(),
		Project:  p,
		OpenedAt: time.Now(),
	}
	if err := a.serve(w, cfg.ListenHost); err != nil {
		return nil, err
	}
	if err := p.LoadProject(ctx); err != nil {
		p.Close()
		_ = w.server.Close()
		return nil, fmt.Errorf("loading project %s: %w", root, err)
	}

	a.mu.Lock()
	a.windows[w.ID] = w
	a.mu.Unlock()
	logging.Logger.Info("window opened", "id", w.ID, "root", root, "url", w.url)

	a.saveOpenProjects()
	if err := a.AddRecentProject(p); err != nil {
		logging.Logger.Warn("failed to record recent project", "root", root, "error", err)
	}
	return w, nil
}

func (a *App) serve(w *Window, host string) error {
	if host == "" {
		host = "127.0.0.1"
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return fmt.Errorf("starting resource server: %w", err)
	}
	w.server = &http.Server{
		Handler:           resource.NewHandler(w.Project, a.engine),
		ReadHeaderTimeout: 10 * time.Second,
	}
	w.url = "http://" + ln.Addr().String() + "/"
	go func() {
		if err := w.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Logger.Error("resource server stopped", "id", w.ID, "error", err)
		}
	}()
	return nil
}

// OpenFile opens the project containing path and makes path its active
// file.
func (a *App) OpenFile(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := a.OpenProject(ctx, abs)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return err
	}
	return w.Project.LoadFile(ctx, abs)
}

// AddRecentProject records p in the recent projects list.
func (a *App) AddRecentProject(p *project.Project) error {
	if a.settings == nil {
		return nil
	}
	return a.settings.AddRecentProject(settings.RecentProject{Path: p.Root(), Name: p.Name()})
}

// CloseWindow closes the window with id and forgets it from the open
// projects list.
func (a *App) CloseWindow(ctx context.Context, id string) error {
	a.mu.Lock()
	w, ok := a.windows[id]
	delete(a.windows, id)
	a.mu.Unlock()
	if !ok {
		return ErrNoWindow
	}

	w.Project.Close()
	err := w.server.Shutdown(ctx)
	logging.Logger.Info("window closed", "id", id, "root", w.Project.Root())
	a.saveOpenProjects()
	return err
}

// RestoreOpenProjects reopens the projects that were open at last exit.
// Projects whose folders are gone are dropped from the list.
func (a *App) RestoreOpenProjects(ctx context.Context) ([]*Window, error) {
	if a.settings == nil {
		return nil, nil
	}
	roots, err := a.settings.OpenProjects()
	if err != nil {
		return nil, err
	}
	var windows []*Window
	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			logging.Logger.Info("dropping missing project", "root", root)
			continue
		}
		w, err := a.OpenProject(ctx, root)
		if err != nil {
			logging.Logger.Warn("failed to restore project", "root", root, "error", err)
			continue
		}
		windows = append(windows, w)
	}
	a.saveOpenProjects()
	return windows, nil
}

// Close closes every window. The open projects list is kept so the next
// run can restore it.
func (a *App) Close(ctx context.Context) error {
	a.mu.Lock()
	windows := a.windows
	a.windows = make(map[string]*Window)
	a.mu.Unlock()

	var errs []error
	for _, w := range windows {
		w.Project.Close()
		if err := w.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) saveOpenProjects() {
	if a.settings == nil {
		return
	}
	windows := a.Windows()
	roots := make([]string, len(windows))
	for i, w := range windows {
		roots[i] = w.Project.Root()
	}
	if err := a.settings.SetOpenProjects(roots); err != nil {
		logging.Logger.Error("failed to save open projects", "error", err)
	}
}
