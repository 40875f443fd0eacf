package ipc

import (
	"context"
	"encoding/json"
	"io"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/fakeyudi/projector/internal/project"
)

// Display is implemented by a display surface to receive updates from its
// project.
type Display interface {
	SetState(snap map[string]any)
	SetWindowState(title string, edited bool)
	ClearCache()
	// InvokePage runs a named page action, such as "focusCommand".
	InvokePage(method string)
	ScrollPosition() any
	// The remaining methods wait for the user.
	ShowError(ctx context.Context, title, detail string)
	PromptSaveChanges(ctx context.Context) project.Choice
	ChooseFile(ctx context.Context) string
}

// Client is the display side of a connection.
type Client struct {
	conn *jsonrpc2.Conn
	q    *queue
}

// Dial connects d to the project serving on the other end of rwc.
func Dial(ctx context.Context, rwc io.ReadWriteCloser, d Display) *Client {
	conn, q := newConn(ctx, jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}), displayHandler(d))
	q.start()
	return &Client{conn: conn, q: q}
}

func displayHandler(d Display) jsonrpc2.Handler {
	return routingHandler(map[string]method{
		NotifySetState: func(_ context.Context, params json.RawMessage) (any, error) {
			var snap map[string]any
			if err := decode(params, &snap); err != nil {
				return nil, err
			}
			d.SetState(snap)
			return nil, nil
		},
		NotifySetWindowState: func(_ context.Context, params json.RawMessage) (any, error) {
			var p windowStateParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			d.SetWindowState(p.Title, p.Edited)
			return nil, nil
		},
		NotifyClearCache: func(context.Context, json.RawMessage) (any, error) {
			d.ClearCache()
			return nil, nil
		},
		NotifyInvokePage: func(_ context.Context, params json.RawMessage) (any, error) {
			var p invokePageParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			d.InvokePage(p.Method)
			return nil, nil
		},
		CallGetScrollPosition: func(context.Context, json.RawMessage) (any, error) {
			return d.ScrollPosition(), nil
		},
		CallShowError: func(ctx context.Context, params json.RawMessage) (any, error) {
			var p errorParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			d.ShowError(ctx, p.Title, p.Detail)
			return nil, nil
		},
		CallPromptSaveChanges: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return d.PromptSaveChanges(ctx).String(), nil
		},
		CallChooseFile: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return d.ChooseFile(ctx), nil
		},
	})
}

// Close hangs up.
func (c *Client) Close() error {
	c.q.stop()
	return c.conn.Close()
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.conn.DisconnectNotify() }

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	if result == nil {
		var ignored any
		result = &ignored
	}
	return c.conn.Call(ctx, method, params, result)
}

// Window returns the window the client is attached to.
func (c *Client) Window(ctx context.Context) (WindowInfo, error) {
	var info WindowInfo
	err := c.call(ctx, MethodWindow, nil, &info)
	return info, err
}

// SetState sends edits owned by the display, such as the command input or
// the editor text.
func (c *Client) SetState(ctx context.Context, changes map[string]any) error {
	return c.call(ctx, MethodSetState, stateParams{Changes: changes}, nil)
}

func (c *Client) Run(ctx context.Context) error       { return c.call(ctx, MethodRun, nil, nil) }
func (c *Client) GoBack(ctx context.Context) error    { return c.call(ctx, MethodGoBack, nil, nil) }
func (c *Client) GoForward(ctx context.Context) error { return c.call(ctx, MethodGoForward, nil, nil) }
func (c *Client) GoHome(ctx context.Context) error    { return c.call(ctx, MethodGoHome, nil, nil) }
func (c *Client) Refresh(ctx context.Context) error   { return c.call(ctx, MethodRefresh, nil, nil) }

func (c *Client) NextCommand(ctx context.Context) error {
	return c.call(ctx, MethodNextCommand, nil, nil)
}

func (c *Client) PreviousCommand(ctx context.Context) error {
	return c.call(ctx, MethodPreviousCommand, nil, nil)
}

func (c *Client) FocusCommand(ctx context.Context) error {
	return c.call(ctx, MethodFocusCommand, nil, nil)
}

func (c *Client) FileOpen(ctx context.Context) error {
	return c.call(ctx, MethodFileOpen, nil, nil)
}

func (c *Client) NavigateAndRun(ctx context.Context, command string) error {
	return c.call(ctx, MethodNavigateAndRun, commandParams{Command: command}, nil)
}

func (c *Client) NavigateToHref(ctx context.Context, href string) error {
	return c.call(ctx, MethodNavigateToHref, hrefParams{Href: href}, nil)
}

func (c *Client) RunTool(ctx context.Context, name string) error {
	return c.call(ctx, MethodRunTool, toolParams{Name: name}, nil)
}

func (c *Client) LoadFile(ctx context.Context, path string) error {
	return c.call(ctx, MethodLoadFile, pathParams{Path: path}, nil)
}

// Save saves the active file and reports whether it was written.
func (c *Client) Save(ctx context.Context) (bool, error) {
	var ok bool
	err := c.call(ctx, MethodSave, nil, &ok)
	return ok, err
}

// SaveAs saves the text to path and reports whether it was written.
func (c *Client) SaveAs(ctx context.Context, path string) (bool, error) {
	var ok bool
	err := c.call(ctx, MethodSaveAs, pathParams{Path: path}, &ok)
	return ok, err
}
