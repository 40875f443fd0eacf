package project

import (
	"context"

	"github.com/fakeyudi/projector/internal/evaluator"
	"github.com/fakeyudi/projector/internal/logging"
	"github.com/fakeyudi/projector/internal/state"
	"github.com/fakeyudi/projector/internal/tree"
)

// Site returns the tree served at the root of the resource protocol: the
// project's site layered over the project folder. It is computed on first
// use and again after resetSite.
func (p *Project) Site(ctx context.Context) (any, error) {
	p.mu.Lock()
	root := p.root
	p.mu.Unlock()
	if root == nil {
		return nil, ErrNotLoaded
	}

	p.siteMu.Lock()
	defer p.siteMu.Unlock()
	if p.siteLoaded {
		return p.site, nil
	}

	p.site = root
	if sitePath, ok := p.Snapshot().Nullable(state.SitePath); ok {
		if site := p.loadSite(ctx, root, sitePath); tree.IsMaplike(site) {
			p.site = tree.Merge(p.opts.Evaluator, site, root)
		}
	}
	p.siteLoaded = true
	return p.site, nil
}

func (p *Project) loadSite(ctx context.Context, root tree.Tree, sitePath string) any {
	value, err := tree.Traverse(ctx, p.opts.Evaluator, root, tree.KeysFromPath(sitePath)...)
	if err == nil {
		value, err = tree.Unpack(ctx, p.opts.Evaluator, value)
	}
	if err != nil {
		logging.Logger.Warn("failed to load site", "root", p.rootPath, "site", sitePath, "error", err)
		return nil
	}
	return value
}

func (p *Project) resetSite() {
	p.siteMu.Lock()
	defer p.siteMu.Unlock()
	p.site, p.siteLoaded = nil, false
}

// Result returns the value of the last successful run.
func (p *Project) Result() any { return p.runner.Result() }

// Command returns the current command.
func (p *Project) Command() string { return p.Snapshot().String(state.Command) }

// SetError records a resource error unless an error is already showing.
func (p *Project) SetError(message string) {
	p.update(func(snap state.Snapshot) state.Changes {
		if _, ok := snap.Nullable(state.Error); ok {
			return nil
		}
		return state.Changes{state.Error: message}
	})
}

// Evaluator returns the evaluator commands run with.
func (p *Project) Evaluator() Evaluator { return p.opts.Evaluator }

var _ Evaluator = (*evaluator.Engine)(nil)
