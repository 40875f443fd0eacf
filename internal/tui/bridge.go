package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fakeyudi/projector/internal/logging"
	"github.com/fakeyudi/projector/internal/project"
)

// scrollWait bounds how long the project waits for the scroll position.
const scrollWait = 500 * time.Millisecond

// Bridge turns calls from the project into Bubble Tea messages. It
// implements ipc.Display.
type Bridge struct {
	msgs chan tea.Msg
}

// NewBridge returns a Bridge whose messages are read by Model.
func NewBridge() *Bridge {
	return &Bridge{msgs: make(chan tea.Msg, 64)}
}

// next waits for the next message from the project.
func (b *Bridge) next() tea.Cmd {
	return func() tea.Msg { return <-b.msgs }
}

type (
	stateMsg       struct{ snap map[string]any }
	windowStateMsg struct {
		title  string
		edited bool
	}
	clearCacheMsg  struct{}
	invokePageMsg  struct{ method string }
	disconnectMsg  struct{}
	scrollQueryMsg struct{ reply chan any }
	promptMsg      struct{ reply chan project.Choice }
	errorDialogMsg struct {
		title, detail string
		done          chan struct{}
	}
)

func (b *Bridge) SetState(snap map[string]any) { b.msgs <- stateMsg{snap} }

func (b *Bridge) SetWindowState(title string, edited bool) {
	b.msgs <- windowStateMsg{title: title, edited: edited}
}

func (b *Bridge) ClearCache() { b.msgs <- clearCacheMsg{} }

func (b *Bridge) InvokePage(method string) { b.msgs <- invokePageMsg{method} }

// Disconnected tells the model the project has gone away.
func (b *Bridge) Disconnected() { b.msgs <- disconnectMsg{} }

func (b *Bridge) ScrollPosition() any {
	reply := make(chan any, 1)
	b.msgs <- scrollQueryMsg{reply}
	select {
	case pos := <-reply:
		return pos
	case <-time.After(scrollWait):
		return nil
	}
}

func (b *Bridge) ShowError(ctx context.Context, title, detail string) {
	done := make(chan struct{})
	b.msgs <- errorDialogMsg{title: title, detail: detail, done: done}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (b *Bridge) PromptSaveChanges(ctx context.Context) project.Choice {
	reply := make(chan project.Choice, 1)
	b.msgs <- promptMsg{reply}
	select {
	case c := <-reply:
		return c
	case <-ctx.Done():
		return project.ChoiceCancel
	}
}

// ChooseFile has no picker in a terminal; files are opened with the open
// command instead.
func (b *Bridge) ChooseFile(context.Context) string {
	logging.Logger.Debug("file chooser not available in terminal display")
	return ""
}
