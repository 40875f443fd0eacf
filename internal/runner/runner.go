// Package runner evaluates a project's current command and records the
// outcome in the project's state.
package runner

import (
	"context"
	"strings"
	"sync"

	"github.com/fakeyudi/projector/internal/evaluator"
	"github.com/fakeyudi/projector/internal/logging"
	"github.com/fakeyudi/projector/internal/recent"
	"github.com/fakeyudi/projector/internal/state"
	"github.com/fakeyudi/projector/internal/tree"
)

// Session is the project a run reads from and reports to.
type Session interface {
	Snapshot() state.Snapshot
	SetState(changes state.Changes) state.Changed
	// Parent returns the tree that unqualified keys resolve against.
	Parent(ctx context.Context) (tree.Tree, error)
}

// Controller runs commands one version at a time. A run whose version has
// been overtaken by a later run is discarded when it completes.
type Controller struct {
	eval   evaluator.Evaluator
	recent recent.List[string]

	mu      sync.Mutex
	version int
	result  any
}

// New returns a Controller that keeps up to maxRecent recent commands.
func New(eval evaluator.Evaluator, maxRecent int) *Controller {
	return &Controller{eval: eval, recent: recent.New[string](maxRecent)}
}

// Version returns the most recently started run version.
func (c *Controller) Version() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Result returns the value produced by the last successful run, or nil if
// the last completed run failed.
func (c *Controller) Result() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Run evaluates the session's command. The evaluation error, if any, is
// recorded in state and also returned.
func (c *Controller) Run(ctx context.Context, s Session) error {
	command := s.Snapshot().String(state.Command)
	if command == "" {
		return nil
	}

	c.mu.Lock()
	c.version++
	v := c.version
	c.mu.Unlock()

	s.SetState(state.Changes{
		state.RunVersion:     v,
		state.LastRunCrashed: true,
	})
	logging.Logger.Debug("run started", "command", command, "version", v)

	parent, err := s.Parent(ctx)
	var result any
	if err == nil {
		result, err = c.eval.Evaluate(ctx, command, parent)
	}

	c.mu.Lock()
	if v != c.version {
		c.mu.Unlock()
		logging.Logger.Debug("discarding stale run", "command", command, "version", v)
		return nil
	}
	if err != nil {
		c.result = nil
	} else {
		c.result = result
	}
	c.mu.Unlock()

	if err != nil {
		logging.Logger.Debug("run failed", "command", command, "version", v, "error", err)
		s.SetState(state.Changes{
			state.Error:          evaluator.FormatError(err),
			state.LastRunCrashed: false,
		})
		return err
	}

	logging.Logger.Debug("run finished", "command", command, "version", v)
	s.SetState(state.Changes{
		state.Error:          nil,
		state.ResultVersion:  v,
		state.RecentCommands: c.recent.Add(s.Snapshot().Strings(state.RecentCommands), command),
		state.LastRunCrashed: false,
	})
	return nil
}

// ToolCommand builds the command that applies tool to the site.
func ToolCommand(tool, sitePath string) string {
	return strings.TrimSpace(tool + " " + sitePath)
}
