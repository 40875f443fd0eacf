package project

import (
	"context"

	"github.com/fakeyudi/projector/internal/logging"
	"github.com/fakeyudi/projector/internal/navigation"
	"github.com/fakeyudi/projector/internal/runner"
	"github.com/fakeyudi/projector/internal/state"
)

// Run evaluates the current command. A pending refresh is dropped since this
// run supersedes it. Evaluation errors are recorded in state and returned.
func (p *Project) Run(ctx context.Context) error {
	p.refresh.Cancel()
	return p.run(ctx)
}

func (p *Project) run(ctx context.Context) error {
	err := p.runner.Run(ctx, p)
	if err != nil {
		logging.Logger.Info("run failed", "root", p.rootPath, "command", p.Command(), "error", err)
	}
	return err
}

// RunTool applies the named tool to the site.
func (p *Project) RunTool(ctx context.Context, name string) error {
	sitePath, _ := p.Snapshot().Nullable(state.SitePath)
	command := runner.ToolCommand(name, sitePath)
	if command == p.Command() {
		return p.Run(ctx)
	}
	return p.NavigateAndRun(ctx, command)
}

func (p *Project) history() navigation.History {
	return navigation.NewHistory(p.currentConfig().MaxHistory)
}

func stacksOf(snap state.Snapshot) navigation.Stacks {
	return navigation.Stacks{
		Back:    snap.Strings(state.BackStack),
		Forward: snap.Strings(state.ForwardStack),
	}
}

func stackChanges(s navigation.Stacks, command string) state.Changes {
	return state.Changes{
		state.Command:        command,
		state.BackStack:      s.Back,
		state.ForwardStack:   s.Forward,
		state.BackEnabled:    s.BackEnabled(),
		state.ForwardEnabled: s.ForwardEnabled(),
	}
}

// NavigateAndRun makes command current, recording the previous command in
// the back history, and runs it.
func (p *Project) NavigateAndRun(ctx context.Context, command string) error {
	h := p.history()
	p.update(func(snap state.Snapshot) state.Changes {
		next := h.Navigate(stacksOf(snap), snap.String(state.Command))
		return stackChanges(next, command)
	})
	return p.Run(ctx)
}

// GoBack returns to the previous command and runs it.
func (p *Project) GoBack(ctx context.Context) error {
	return p.step(ctx, p.history().GoBack)
}

// GoForward moves to the next command in the forward history and runs it.
func (p *Project) GoForward(ctx context.Context) error {
	return p.step(ctx, p.history().GoForward)
}

func (p *Project) step(ctx context.Context, move func(navigation.Stacks, string) (navigation.Stacks, string, bool)) error {
	moved := false
	p.update(func(snap state.Snapshot) state.Changes {
		next, command, ok := move(stacksOf(snap), snap.String(state.Command))
		if !ok {
			return nil
		}
		moved = true
		return stackChanges(next, command)
	})
	if !moved {
		return nil
	}
	return p.Run(ctx)
}

// GoHome navigates to the site unless it is already showing.
func (p *Project) GoHome(ctx context.Context) error {
	sitePath, _ := p.Snapshot().Nullable(state.SitePath)
	home := navigation.HomeCommand(sitePath)
	if home == "" || home == p.Command() {
		return nil
	}
	return p.NavigateAndRun(ctx, home)
}

// NavigateToHref follows a link clicked in the rendered result. External
// links go to the configured opener.
func (p *Project) NavigateToHref(ctx context.Context, href string) error {
	snap := p.Snapshot()
	sitePath, _ := snap.Nullable(state.SitePath)
	next, internal := navigation.ResolveHref(href, snap.String(state.Command), sitePath, p.opts.Evaluator.IsTraversal)
	if !internal {
		logging.Logger.Debug("opening external link", "href", href)
		return p.opts.Open(ctx, href)
	}
	return p.NavigateAndRun(ctx, next)
}

// NextCommand moves the command input one entry forward through the recent
// commands. Past the newest, or from a command not in the list, it clears
// the input. It doesn't run.
func (p *Project) NextCommand() {
	p.update(func(snap state.Snapshot) state.Changes {
		recent := snap.Strings(state.RecentCommands)
		i := indexOf(recent, snap.String(state.Command))
		next := ""
		if i >= 0 && i+1 < len(recent) {
			next = recent[i+1]
		}
		return state.Changes{state.Command: next}
	})
}

// PreviousCommand moves the command input one entry back through the recent
// commands. From an empty command it recalls the newest. It doesn't run.
func (p *Project) PreviousCommand() {
	p.update(func(snap state.Snapshot) state.Changes {
		recent := snap.Strings(state.RecentCommands)
		command := snap.String(state.Command)
		if command == "" {
			if len(recent) == 0 {
				return nil
			}
			return state.Changes{state.Command: recent[len(recent)-1]}
		}
		if i := indexOf(recent, command); i > 0 {
			return state.Changes{state.Command: recent[i-1]}
		}
		return nil
	})
}

func indexOf(items []string, item string) int {
	for i, s := range items {
		if s == item {
			return i
		}
	}
	return -1
}

// FocusCommand asks the display surface to focus the command input.
func (p *Project) FocusCommand(ctx context.Context) error {
	return p.currentSurface().FocusCommand(ctx)
}

// Refresh saves pending edits and reruns the current command, keeping the
// result's scroll position. It does nothing for an unsaved file.
func (p *Project) Refresh(ctx context.Context) error {
	if p.FilePath() == "" {
		return nil
	}
	if p.Snapshot().Bool(state.Dirty) && !p.Save(ctx) {
		return nil
	}
	scroll, err := p.currentSurface().ScrollPosition(ctx)
	if err != nil {
		logging.Logger.Debug("no scroll position", "root", p.rootPath, "error", err)
	} else {
		p.SetState(state.Changes{state.LastScroll: scroll})
	}
	return p.run(ctx)
}

func (p *Project) restartRefresh() {
	p.refresh.Restart(func() {
		if err := p.Refresh(context.Background()); err != nil {
			logging.Logger.Debug("refresh failed", "root", p.rootPath, "error", err)
		}
	}, p.currentConfig().RefreshDelay())
}
