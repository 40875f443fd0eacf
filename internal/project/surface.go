package project

import (
	"context"
	"fmt"

	"github.com/fakeyudi/projector/internal/logging"
	"github.com/fakeyudi/projector/internal/state"
)

// Choice is the answer to a save-changes prompt.
type Choice int

const (
	ChoiceSave Choice = iota
	ChoiceDiscard
	ChoiceCancel
)

func (c Choice) String() string {
	switch c {
	case ChoiceSave:
		return "save"
	case ChoiceDiscard:
		return "discard"
	default:
		return "cancel"
	}
}

// Surface is the display side of a window: the process that shows the
// editor, the command input and the rendered result.
type Surface interface {
	// SetState sends a full state snapshot.
	SetState(ctx context.Context, snap state.Snapshot) error
	SetWindowState(ctx context.Context, title string, edited bool) error
	// ClearCache drops any responses the surface has cached.
	ClearCache(ctx context.Context) error
	FocusCommand(ctx context.Context) error
	// ScrollPosition returns the result view's scroll position, in whatever
	// form the surface wants it back through lastScroll.
	ScrollPosition(ctx context.Context) (any, error)
	ShowError(ctx context.Context, title, detail string) error
	PromptSaveChanges(ctx context.Context) (Choice, error)
	// ChooseFile asks the user for a file to open. "" means cancelled.
	ChooseFile(ctx context.Context) (string, error)
}

// NopSurface is the surface of a window with no display attached.
type NopSurface struct{}

func (NopSurface) SetState(context.Context, state.Snapshot) error     { return nil }
func (NopSurface) SetWindowState(context.Context, string, bool) error { return nil }
func (NopSurface) ClearCache(context.Context) error                   { return nil }
func (NopSurface) FocusCommand(context.Context) error                 { return nil }
func (NopSurface) ScrollPosition(context.Context) (any, error)        { return nil, nil }
func (NopSurface) ShowError(context.Context, string, string) error    { return nil }
func (NopSurface) PromptSaveChanges(context.Context) (Choice, error)  { return ChoiceCancel, nil }
func (NopSurface) ChooseFile(context.Context) (string, error)         { return "", nil }

// surfaceFields are the fields a display surface may set directly.
var surfaceFields = map[state.Field]func(v any) (any, bool){
	state.Command:       asString,
	state.Text:          asString,
	state.Dirty:         asBool,
	state.LoadedVersion: asInt,
	state.PageTitle:     asString,
	state.LastScroll:    func(v any) (any, bool) { return v, true },
}

func asString(v any) (any, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (any, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (any, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		if n != float64(int(n)) {
			return nil, false
		}
		return int(n), true
	}
	return nil, false
}

// ApplySurfaceChanges applies state changes sent by the display surface.
// Fields the surface doesn't own are ignored; a value of the wrong type is
// an error and nothing is applied.
func (p *Project) ApplySurfaceChanges(changes map[string]any) error {
	accepted := make(state.Changes, len(changes))
	for name, v := range changes {
		field := state.Field(name)
		convert, ok := surfaceFields[field]
		if !ok {
			logging.Logger.Debug("ignoring surface change", "field", name)
			continue
		}
		value, ok := convert(v)
		if !ok {
			return fmt.Errorf("invalid value for %s: %v", name, v)
		}
		accepted[field] = value
	}
	p.SetState(accepted)
	return nil
}
