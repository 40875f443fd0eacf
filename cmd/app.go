package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fakeyudi/projector/internal/app"
	"github.com/fakeyudi/projector/internal/ipc"
	"github.com/fakeyudi/projector/internal/logging"
	"github.com/fakeyudi/projector/internal/settings"
	"github.com/fakeyudi/projector/internal/tui"
)

// shutdownTimeout bounds closing every window on exit.
const shutdownTimeout = 5 * time.Second

// openSettings opens the application settings in the configured backend.
func openSettings() (*settings.Manager, error) {
	store, err := settings.Open(cfg.SettingsBackend, "")
	if err != nil {
		return nil, fmt.Errorf("opening settings: %w", err)
	}
	return settings.NewManager(store, cfg.MaxRecentProjects), nil
}

// newApp returns an App over the user's settings and a func that closes
// both.
func newApp() (*app.App, func(), error) {
	mgr, err := openSettings()
	if err != nil {
		return nil, nil, err
	}
	a := app.New(app.Options{
		Config:   cfg,
		Settings: mgr,
		Open:     externalOpener(activeProfile.Opener),
	})
	closeAll := func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Close(ctx); err != nil {
			logging.Logger.Warn("failed to close windows", "error", err)
		}
		if err := mgr.Close(); err != nil {
			logging.Logger.Warn("failed to close settings", "error", err)
		}
	}
	return a, closeAll, nil
}

// externalOpener returns a func that shows a URL with the opener command.
func externalOpener(opener string) func(ctx context.Context, url string) error {
	if opener == "" {
		return nil
	}
	return func(_ context.Context, url string) error {
		c := exec.Command(opener, url)
		if err := c.Start(); err != nil {
			return fmt.Errorf("running %s: %w", opener, err)
		}
		go func() { _ = c.Wait() }()
		return nil
	}
}

// openWindow opens the project or file named by args, or with no args,
// restores the last session when the profile asks for it and falls back to
// the current directory.
func openWindow(ctx context.Context, a *app.App, args []string) (*app.Window, error) {
	if len(args) == 0 && activeProfile.RestoreProjects {
		windows, err := a.RestoreOpenProjects(ctx)
		if err != nil {
			return nil, fmt.Errorf("restoring projects: %w", err)
		}
		if len(windows) > 0 {
			return windows[0], nil
		}
	}

	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return a.OpenProject(ctx, path)
	}
	if err := a.OpenFile(ctx, path); err != nil {
		return nil, err
	}
	// The file's window is open now; this returns it.
	return a.OpenProject(ctx, path)
}

// windowInfo describes w to a display surface.
func windowInfo(w *app.Window) ipc.WindowInfo {
	return ipc.WindowInfo{Root: w.Project.Root(), URL: w.URL()}
}

// display runs the terminal display for w in-process, connected over an
// in-memory pipe, until the user quits.
func display(ctx context.Context, w *app.Window) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverSide, clientSide := net.Pipe()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ipc.Serve(ctx, serverSide, w.Project, windowInfo(w))
	})
	g.Go(func() error {
		defer cancel()
		return tui.Run(ctx, clientSide)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
