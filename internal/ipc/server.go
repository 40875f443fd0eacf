package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/fakeyudi/projector/internal/logging"
	"github.com/fakeyudi/projector/internal/project"
	"github.com/fakeyudi/projector/internal/state"
)

// scrollTimeout bounds the wait for the display's scroll position; a refresh
// goes ahead without it.
const scrollTimeout = time.Second

// Serve attaches the display surface on the other end of rwc to p, and
// serves its requests until ctx is done or the peer hangs up.
func Serve(ctx context.Context, rwc io.ReadWriteCloser, p *project.Project, info WindowInfo) error {
	s := &server{project: p, info: info}
	conn, q := newConn(ctx, jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}), s.handler())
	defer q.stop()

	surface := &remoteSurface{conn: conn}
	p.Attach(surface)
	defer p.Detach(surface)
	q.start()
	logging.Logger.Info("display attached", "root", p.Root())

	select {
	case <-ctx.Done():
		_ = conn.Close()
		return ctx.Err()
	case <-conn.DisconnectNotify():
		logging.Logger.Info("display detached", "root", p.Root())
		return nil
	}
}

type server struct {
	project *project.Project
	info    WindowInfo
}

func (s *server) handler() jsonrpc2.Handler {
	p := s.project
	return routingHandler(map[string]method{
		MethodWindow:   s.window,
		MethodSetState: s.setState,

		MethodRun:            runs(p.Run),
		MethodGoBack:         runs(p.GoBack),
		MethodGoForward:      runs(p.GoForward),
		MethodGoHome:         runs(p.GoHome),
		MethodRefresh:        runs(p.Refresh),
		MethodNavigateAndRun: s.navigateAndRun,
		MethodNavigateToHref: s.navigateToHref,
		MethodRunTool:        s.runTool,

		MethodNextCommand:     action(p.NextCommand),
		MethodPreviousCommand: action(p.PreviousCommand),
		MethodFocusCommand: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return nil, p.FocusCommand(ctx)
		},

		MethodLoadFile: s.loadFile,
		MethodFileOpen: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return nil, p.FileOpen(ctx)
		},
		MethodSave: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return p.Save(ctx), nil
		},
		MethodSaveAs: s.saveAs,
	})
}

// runs adapts a project operation that evaluates a command. Evaluation
// errors are already in the project's state, so the caller only sees
// success.
func runs(fn func(context.Context) error) method {
	return func(ctx context.Context, _ json.RawMessage) (any, error) {
		if err := fn(ctx); err != nil {
			logging.Logger.Debug("run from display failed", "error", err)
		}
		return nil, nil
	}
}

func action(fn func()) method {
	return func(context.Context, json.RawMessage) (any, error) {
		fn()
		return nil, nil
	}
}

func (s *server) window(context.Context, json.RawMessage) (any, error) {
	return s.info, nil
}

func (s *server) setState(_ context.Context, params json.RawMessage) (any, error) {
	var p stateParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := s.project.ApplySurfaceChanges(p.Changes); err != nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil, nil
}

func (s *server) navigateAndRun(ctx context.Context, params json.RawMessage) (any, error) {
	var p commandParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return runs(func(ctx context.Context) error { return s.project.NavigateAndRun(ctx, p.Command) })(ctx, nil)
}

func (s *server) navigateToHref(ctx context.Context, params json.RawMessage) (any, error) {
	var p hrefParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return runs(func(ctx context.Context) error { return s.project.NavigateToHref(ctx, p.Href) })(ctx, nil)
}

func (s *server) runTool(ctx context.Context, params json.RawMessage) (any, error) {
	var p toolParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return runs(func(ctx context.Context) error { return s.project.RunTool(ctx, p.Name) })(ctx, nil)
}

func (s *server) loadFile(ctx context.Context, params json.RawMessage) (any, error) {
	var p pathParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return nil, s.project.LoadFile(ctx, p.Path)
}

func (s *server) saveAs(ctx context.Context, params json.RawMessage) (any, error) {
	var p pathParams
	if err := decode(params, &p); err != nil || p.Path == "" {
		return nil, errInvalidParams
	}
	return s.project.SaveAs(ctx, p.Path)
}

// remoteSurface is the project.Surface of a display on the far side of a
// connection.
type remoteSurface struct {
	conn *jsonrpc2.Conn
}

func (r *remoteSurface) SetState(ctx context.Context, snap state.Snapshot) error {
	return r.conn.Notify(ctx, NotifySetState, snap)
}

func (r *remoteSurface) SetWindowState(ctx context.Context, title string, edited bool) error {
	return r.conn.Notify(ctx, NotifySetWindowState, windowStateParams{Title: title, Edited: edited})
}

func (r *remoteSurface) ClearCache(ctx context.Context) error {
	return r.conn.Notify(ctx, NotifyClearCache, nil)
}

func (r *remoteSurface) FocusCommand(ctx context.Context) error {
	return r.conn.Notify(ctx, NotifyInvokePage, invokePageParams{Method: MethodFocusCommand})
}

func (r *remoteSurface) ScrollPosition(ctx context.Context) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, scrollTimeout)
	defer cancel()
	var pos any
	if err := r.conn.Call(ctx, CallGetScrollPosition, nil, &pos); err != nil {
		return nil, err
	}
	return pos, nil
}

func (r *remoteSurface) ShowError(ctx context.Context, title, detail string) error {
	var ack any
	return r.conn.Call(ctx, CallShowError, errorParams{Title: title, Detail: detail}, &ack)
}

func (r *remoteSurface) PromptSaveChanges(ctx context.Context) (project.Choice, error) {
	var answer string
	if err := r.conn.Call(ctx, CallPromptSaveChanges, nil, &answer); err != nil {
		return project.ChoiceCancel, err
	}
	return parseChoice(answer)
}

func (r *remoteSurface) ChooseFile(ctx context.Context) (string, error) {
	var path string
	err := r.conn.Call(ctx, CallChooseFile, nil, &path)
	return path, err
}

func parseChoice(s string) (project.Choice, error) {
	for _, c := range []project.Choice{project.ChoiceSave, project.ChoiceDiscard, project.ChoiceCancel} {
		if c.String() == s {
			return c, nil
		}
	}
	return project.ChoiceCancel, fmt.Errorf("unknown choice %q", s)
}
