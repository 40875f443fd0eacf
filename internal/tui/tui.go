// Package tui is a terminal display surface for a project window. It shows
// the command line, the active file and the latest result, and drives the
// project over an ipc connection.
package tui

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/projector/internal/ipc"
	"github.com/fakeyudi/projector/internal/project"
	"github.com/fakeyudi/projector/internal/resource"
	"github.com/fakeyudi/projector/internal/state"
)

// ── Styles ────────────

var (
	// Title bar at the very top
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	editedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Background(lipgloss.Color("62"))

	// Pane borders; the focused pane is highlighted
	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238"))

	focusedPaneStyle = paneStyle.
				BorderForeground(lipgloss.Color("62"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)
)

// Control is the part of an ipc.Client the model drives.
type Control interface {
	SetState(ctx context.Context, changes map[string]any) error
	Run(ctx context.Context) error
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error
	GoHome(ctx context.Context) error
	NextCommand(ctx context.Context) error
	PreviousCommand(ctx context.Context) error
	NavigateAndRun(ctx context.Context, command string) error
	Save(ctx context.Context) (bool, error)
}

// ── Focus ─────────────────

type pane int

const (
	paneCommand pane = iota
	paneEditor
	paneResult
	paneCount
)

var paneNames = [paneCount]string{"Command", "Editor", "Result"}

// callTimeout bounds each request the model makes of the project.
const callTimeout = 30 * time.Second

type (
	callDoneMsg struct {
		what string
		err  error
	}
	resultMsg struct {
		version int
		body    string
		err     error
	}
)

// Model is the Bubble Tea model for one window.
type Model struct {
	control   Control
	bridge    *Bridge
	resultURL string
	client    *http.Client

	state  map[string]any
	title  string
	edited bool

	command textinput.Model
	editor  textarea.Model
	result  viewport.Model
	focus   pane

	// fetching is the result version being loaded, 0 when idle.
	fetching int
	loaded   int
	notice   string

	prompt *promptMsg
	dialog *errorDialogMsg

	width, height int
	ready         bool
	quitting      bool
}

// New returns a model for the window described by info.
func New(control Control, bridge *Bridge, info ipc.WindowInfo) Model {
	cmd := textinput.New()
	cmd.Prompt = "› "
	cmd.Placeholder = "expression or path"
	cmd.Focus()

	ed := textarea.New()
	ed.ShowLineNumbers = true
	ed.Placeholder = "no file"

	return Model{
		control:   control,
		bridge:    bridge,
		resultURL: strings.TrimSuffix(info.URL, "/") + "/" + resource.ResultNamespace,
		client:    &http.Client{Timeout: callTimeout},
		state:     map[string]any{},
		title:     info.Root,
		command:   cmd,
		editor:    ed,
		result:    viewport.New(0, 0),
	}
}

// Init starts listening to the project.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.bridge.next())
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case stateMsg:
		m = m.applyState(msg.snap)
		cmds := []tea.Cmd{m.bridge.next()}
		if v, ok := m.needsResult(); ok {
			cmds = append(cmds, m.fetch(v))
		}
		return m, tea.Batch(cmds...)

	case windowStateMsg:
		m.title, m.edited = msg.title, msg.edited
		return m, m.bridge.next()

	case clearCacheMsg:
		m.fetching = 0
		fetch := m.fetch(m.intField(state.ResultVersion))
		return m, tea.Batch(fetch, m.bridge.next())

	case invokePageMsg:
		if msg.method == ipc.MethodFocusCommand {
			m.setFocus(paneCommand)
		}
		return m, m.bridge.next()

	case scrollQueryMsg:
		msg.reply <- map[string]any{"y": m.result.YOffset}
		return m, m.bridge.next()

	case promptMsg:
		m.prompt = &msg
		return m, m.bridge.next()

	case errorDialogMsg:
		m.dialog = &msg
		return m, m.bridge.next()

	case disconnectMsg:
		m.quitting = true
		return m, tea.Quit

	case resultMsg:
		return m.showResult(msg)

	case callDoneMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("%s: %v", msg.what, msg.err)
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case paneCommand:
		m.command, cmd = m.command.Update(msg)
	case paneEditor:
		m.editor, cmd = m.editor.Update(msg)
	}
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.dialog != nil {
		close(m.dialog.done)
		m.dialog = nil
		return m, nil
	}
	if m.prompt != nil {
		var choice project.Choice
		switch msg.String() {
		case "y", "s":
			choice = project.ChoiceSave
		case "n", "d":
			choice = project.ChoiceDiscard
		case "esc", "c", "ctrl+c":
			choice = project.ChoiceCancel
		default:
			return m, nil
		}
		m.prompt.reply <- choice
		m.prompt = nil
		return m, nil
	}

	m.notice = ""
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		m.setFocus((m.focus + 1) % paneCount)
		return m, nil
	case "shift+tab":
		m.setFocus((m.focus + paneCount - 1) % paneCount)
		return m, nil
	case "ctrl+r":
		return m, m.call("run", m.control.Run)
	case "alt+left":
		return m, m.call("back", m.control.GoBack)
	case "alt+right":
		return m, m.call("forward", m.control.GoForward)
	case "alt+h":
		return m, m.call("home", m.control.GoHome)
	case "ctrl+s":
		return m, m.call("save", func(ctx context.Context) error {
			_, err := m.control.Save(ctx)
			return err
		})
	}

	switch m.focus {
	case paneCommand:
		return m.commandKey(msg)
	case paneEditor:
		return m.editorKey(msg)
	default:
		var cmd tea.Cmd
		m.result, cmd = m.result.Update(msg)
		return m, cmd
	}
}

func (m Model) commandKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		command := strings.TrimSpace(m.command.Value())
		return m, m.call("run", func(ctx context.Context) error {
			return m.control.NavigateAndRun(ctx, command)
		})
	case "up":
		return m, m.call("previous command", m.control.PreviousCommand)
	case "down":
		return m, m.call("next command", m.control.NextCommand)
	}
	var cmd tea.Cmd
	m.command, cmd = m.command.Update(msg)
	return m, cmd
}

func (m Model) editorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	before := m.editor.Value()
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	if after := m.editor.Value(); after != before {
		m.state[string(state.Text)] = after
		m.state[string(state.Dirty)] = true
		return m, tea.Batch(cmd, m.send(map[string]any{
			string(state.Text):  after,
			string(state.Dirty): true,
		}))
	}
	return m, cmd
}

// applyState takes a full snapshot from the project. The command input
// follows the project only when the project changed the command, and the
// editor only while the user is not mid-edit.
func (m Model) applyState(snap map[string]any) Model {
	previous := m.stringField(state.Command)
	m.state = snap
	if v := m.stringField(state.Command); v != previous && v != m.command.Value() {
		m.command.SetValue(v)
		m.command.CursorEnd()
	}
	dirty, _ := snap[string(state.Dirty)].(bool)
	if v := m.stringField(state.Text); v != m.editor.Value() && (!dirty || m.focus != paneEditor) {
		m.editor.SetValue(v)
	}
	return m
}

// needsResult reports whether the result pane is behind the project.
func (m Model) needsResult() (int, bool) {
	v := m.intField(state.ResultVersion)
	return v, v > 0 && v != m.loaded && v != m.fetching
}

func (m Model) showResult(msg resultMsg) (tea.Model, tea.Cmd) {
	if msg.version != m.fetching {
		return m, nil
	}
	m.fetching = 0
	m.loaded = msg.version
	if msg.err != nil {
		m.result.SetContent(errorStyle.Render(msg.err.Error()))
	} else {
		m.result.SetContent(msg.body)
	}
	m.result.SetYOffset(m.lastScroll())
	return m, m.send(map[string]any{string(state.LoadedVersion): msg.version})
}

func (m Model) lastScroll() int {
	pos, ok := m.state[string(state.LastScroll)].(map[string]any)
	if !ok {
		return 0
	}
	y, _ := pos["y"].(float64)
	return int(y)
}

func (m *Model) setFocus(p pane) {
	m.focus = p
	m.command.Blur()
	m.editor.Blur()
	switch p {
	case paneCommand:
		m.command.Focus()
	case paneEditor:
		m.editor.Focus()
	}
}

func (m *Model) layout() {
	bodyHeight := max(m.height-6, 3)
	half := max(m.width/2-2, 10)
	m.command.Width = max(m.width-4, 10)
	m.editor.SetWidth(half)
	m.editor.SetHeight(bodyHeight)
	m.result.Width = half
	m.result.Height = bodyHeight
}

// call runs fn against the project off the update loop.
func (m Model) call(what string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		return callDoneMsg{what: what, err: fn(ctx)}
	}
}

func (m Model) send(changes map[string]any) tea.Cmd {
	return m.call("update", func(ctx context.Context) error {
		return m.control.SetState(ctx, changes)
	})
}

// fetch loads the current result from the window's resource server.
func (m *Model) fetch(version int) tea.Cmd {
	if version == 0 {
		return nil
	}
	m.fetching = version
	url, client := m.resultURL, m.client
	return func() tea.Msg {
		resp, err := client.Get(url)
		if err != nil {
			return resultMsg{version: version, err: err}
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err == nil && resp.StatusCode != http.StatusOK {
			err = fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
		}
		return resultMsg{version: version, body: string(body), err: err}
	}
}

func (m Model) stringField(f state.Field) string {
	s, _ := m.state[string(f)].(string)
	return s
}

func (m Model) intField(f state.Field) int {
	switch v := m.state[string(f)].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// ── View ──────────────────

// View renders the window.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "\n  Loading…"
	}

	title := titleStyle.Render(m.title)
	if m.edited {
		title += editedStyle.Render(" ● ")
	}

	commandBox := m.pane(paneCommand, m.command.View())
	errLine := ""
	if e := m.stringField(state.Error); e != "" {
		errLine = errorStyle.Render(firstLine(e))
	} else if m.notice != "" {
		errLine = dimStyle.Render(m.notice)
	}

	fileName := m.stringField(state.FileName)
	if fileName == "" {
		fileName = "Untitled"
	}
	editorBox := m.pane(paneEditor, labelStyle.Render(fileName)+"\n"+m.editor.View())
	resultBox := m.pane(paneResult, labelStyle.Render(m.stringField(state.Command))+"\n"+m.result.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, editorBox, resultBox)

	parts := []string{title, commandBox, errLine, body, m.statusBar()}
	switch {
	case m.dialog != nil:
		parts = append(parts, dialogStyle.Render(
			labelStyle.Render(m.dialog.title)+"\n"+m.dialog.detail+"\n"+hintStyle.Render("press any key")))
	case m.prompt != nil:
		parts = append(parts, dialogStyle.Render(
			"Save changes to "+fileName+"?\n"+hintStyle.Render("y save · n discard · esc cancel")))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) pane(p pane, content string) string {
	style := paneStyle
	if m.focus == p {
		style = focusedPaneStyle
	}
	return style.Render(content)
}

func (m Model) statusBar() string {
	nav := ""
	if b, _ := m.state[string(state.BackEnabled)].(bool); b {
		nav += "◀"
	}
	if f, _ := m.state[string(state.ForwardEnabled)].(bool); f {
		nav += "▶"
	}
	left := fmt.Sprintf("%s  %s", paneNames[m.focus], nav)
	right := hintStyle.Render("tab focus · enter run · ^r rerun · alt+←/→ history · alt+h home · ^s save · ^c quit")
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Run attaches a terminal display to the project serving on rwc and runs
// until the user quits or the project hangs up.
func Run(ctx context.Context, rwc io.ReadWriteCloser, opts ...tea.ProgramOption) error {
	bridge := NewBridge()
	client := ipc.Dial(ctx, rwc, bridge)
	defer client.Close()

	info, err := client.Window(ctx)
	if err != nil {
		return fmt.Errorf("querying window: %w", err)
	}
	go func() {
		select {
		case <-client.Done():
			bridge.Disconnected()
		case <-ctx.Done():
		}
	}()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	_, err = tea.NewProgram(New(client, bridge, info), opts...).Run()
	return err
}
