// Package ipc connects a project to its display surface with JSON-RPC 2.0
// over any byte stream. The control side serves project methods and drives
// the display with notifications; the display side answers a few calls that
// need the user, such as save prompts.
package ipc

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sourcegraph/jsonrpc2"
)

// Methods served by the control side.
const (
	MethodWindow          = "window"
	MethodSetState        = "setState"
	MethodRun             = "run"
	MethodNavigateAndRun  = "navigateAndRun"
	MethodGoBack          = "goBack"
	MethodGoForward       = "goForward"
	MethodGoHome          = "goHome"
	MethodNextCommand     = "nextCommand"
	MethodPreviousCommand = "previousCommand"
	MethodLoadFile        = "loadFile"
	MethodFileOpen        = "fileOpen"
	MethodNavigateToHref  = "navigateToHref"
	MethodFocusCommand    = "focusCommand"
	MethodSave            = "save"
	MethodSaveAs          = "saveAs"
	MethodRunTool         = "runTool"
	MethodRefresh         = "refresh"
)

// Methods served by the display side.
const (
	NotifySetState        = "setState"
	NotifySetWindowState  = "setWindowState"
	NotifyClearCache      = "clearCache"
	NotifyInvokePage      = "invokePage"
	CallGetScrollPosition = "getScrollPosition"
	CallShowError         = "showError"
	CallPromptSaveChanges = "promptSaveChanges"
	CallChooseFile        = "chooseFile"
)

// WindowInfo describes the window a display surface is attached to.
type WindowInfo struct {
	Root string `json:"root"`
	// URL is the base URL of the resource server.
	URL string `json:"url"`
}

type commandParams struct {
	Command string `json:"command"`
}

type pathParams struct {
	Path string `json:"path"`
}

type hrefParams struct {
	Href string `json:"href"`
}

type toolParams struct {
	Name string `json:"name"`
}

type stateParams struct {
	Changes map[string]any `json:"changes"`
}

type windowStateParams struct {
	Title  string `json:"title"`
	Edited bool   `json:"edited"`
}

type invokePageParams struct {
	Method string `json:"method"`
}

type errorParams struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

var (
	errMethodNotFound = &jsonrpc2.Error{
		Code: jsonrpc2.CodeMethodNotFound, Message: "method not found"}
	errInvalidParams = &jsonrpc2.Error{
		Code: jsonrpc2.CodeInvalidParams, Message: "invalid params"}
)

type method func(ctx context.Context, params json.RawMessage) (any, error)

func routingHandler(methods map[string]method) jsonrpc2.Handler {
	return jsonrpc2.HandlerWithError(func(ctx context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
		fn, ok := methods[req.Method]
		if !ok {
			return nil, errMethodNotFound
		}
		var params json.RawMessage
		if req.Params != nil {
			params = *req.Params
		}
		return fn(ctx, params)
	})
}

// decode unmarshals params into v, mapping failures to an invalid params
// error.
func decode(params json.RawMessage, v any) error {
	if len(params) == 0 || json.Unmarshal(params, v) != nil {
		return errInvalidParams
	}
	return nil
}

func newConn(ctx context.Context, rwc jsonrpc2.ObjectStream, h jsonrpc2.Handler) (*jsonrpc2.Conn, *queue) {
	q := newQueue(h)
	return jsonrpc2.NewConn(ctx, rwc, q), q
}

// queue handles requests one at a time in arrival order, off the
// connection's read loop, so a handler can wait on a call to the peer.
type queue struct {
	h    jsonrpc2.Handler
	jobs chan job
	done chan struct{}
	once sync.Once
}

type job struct {
	ctx  context.Context
	conn *jsonrpc2.Conn
	req  *jsonrpc2.Request
}

func newQueue(h jsonrpc2.Handler) *queue {
	q := &queue{
		h:    h,
		jobs: make(chan job, 128),
		done: make(chan struct{}),
	}
	return q
}

func (q *queue) start() { go q.loop() }

func (q *queue) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	select {
	case q.jobs <- job{ctx, conn, req}:
	case <-q.done:
	}
}

func (q *queue) loop() {
	for {
		select {
		case j := <-q.jobs:
			q.h.Handle(j.ctx, j.conn, j.req)
		case <-q.done:
			return
		}
	}
}

func (q *queue) stop() { q.once.Do(func() { close(q.done) }) }
