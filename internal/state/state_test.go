package state_test

import (
	"encoding/json"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/fakeyudi/projector/internal/state"
)

var fieldNames = []state.Field{"command", "text", "dirty", "recentCommands", "runVersion", "loadedAt"}

// generateValue produces an arbitrary value of the kind stored for f.
func generateValue(t *rapid.T, f state.Field) any {
	switch f {
	case "dirty":
		return rapid.Bool().Draw(t, string(f))
	case "runVersion":
		return rapid.IntRange(0, 1000).Draw(t, string(f))
	case "recentCommands":
		return rapid.SliceOfN(rapid.StringN(0, 10, -1), 0, 5).Draw(t, string(f))
	case "loadedAt":
		sec := rapid.Int64Range(0, 1_700_000_000).Draw(t, string(f))
		return time.Unix(sec, 0).UTC()
	case "text":
		if rapid.Bool().Draw(t, "text_null") {
			return nil
		}
		return rapid.String().Draw(t, string(f))
	}
	return rapid.String().Draw(t, string(f))
}

func generateSnapshot(t *rapid.T) state.Snapshot {
	initial := state.Changes{}
	for _, f := range fieldNames {
		initial[f] = generateValue(t, f)
	}
	return state.New(initial)
}

// Feature: projector, Property: identical changes produce no changed fields.
func TestSetWithEqualValuesReportsNoChange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := generateSnapshot(t)

		changes := state.Changes{}
		for _, f := range rapid.SliceOfDistinct(rapid.SampledFrom(fieldNames), func(f state.Field) state.Field { return f }).Draw(t, "fields") {
			v := s.Get(f)
			// Time values denoting the same instant in another zone are still equal.
			if tm, ok := v.(time.Time); ok {
				v = tm.In(time.FixedZone("x", 3600))
			}
			changes[f] = v
		}

		next, changed := state.Set(s, changes)
		if !changed.Empty() {
			t.Fatalf("expected no changes, got %v", changed.Fields())
		}
		for _, f := range fieldNames {
			if !state.Equal(next.Get(f), s.Get(f)) {
				t.Fatalf("field %s: got %v, want %v", f, next.Get(f), s.Get(f))
			}
		}
	})
}

// Feature: projector, Property: a differing value is always reported.
func TestSetReportsDifferingValue(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := generateSnapshot(t)
		f := rapid.SampledFrom(fieldNames).Draw(t, "field")
		v := generateValue(t, f)

		next, changed := state.Set(s, state.Changes{f: v})
		if changed[f] == state.Equal(s.Get(f), v) {
			t.Fatalf("field %s: changed=%v but equal=%v", f, changed[f], state.Equal(s.Get(f), v))
		}
		if !state.Equal(next.Get(f), v) {
			t.Fatalf("field %s not applied", f)
		}
	})
}

func TestNilAndEmptySlicesAreEqual(t *testing.T) {
	s := state.New(state.Changes{"recentCommands": []string(nil)})
	_, changed := state.Set(s, state.Changes{"recentCommands": []string{}})
	if changed.Has("recentCommands") {
		t.Error("nil and empty slice should compare equal")
	}
}

func TestSnapshotIsIsolatedFromCallerMutation(t *testing.T) {
	commands := []string{"a", "b"}
	s := state.New(state.Changes{"recentCommands": commands})
	commands[0] = "mutated"

	if got := s.Strings("recentCommands"); got[0] != "a" {
		t.Errorf("snapshot changed through caller slice: %v", got)
	}

	out := s.Strings("recentCommands")
	out[1] = "mutated"
	if got := s.Strings("recentCommands"); got[1] != "b" {
		t.Errorf("snapshot changed through accessor slice: %v", got)
	}
}

func TestSetLeavesOriginalUntouched(t *testing.T) {
	s := state.New(state.Changes{"command": "a"})
	next, changed := state.Set(s, state.Changes{"command": "b", "dirty": true})

	if s.String("command") != "a" || s.Has("dirty") {
		t.Errorf("original snapshot modified: %v", s.Map())
	}
	if next.String("command") != "b" || !next.Bool("dirty") {
		t.Errorf("unexpected new snapshot: %v", next.Map())
	}
	if !changed.Has("command") || !changed.Has("dirty") {
		t.Errorf("unexpected changed set: %v", changed.Fields())
	}
}

func TestNullableAndMarshal(t *testing.T) {
	s := state.New(state.Changes{"text": nil, "error": "boom", "runVersion": 3})

	if _, ok := s.Nullable("text"); ok {
		t.Error("text should be null")
	}
	if msg, ok := s.Nullable("error"); !ok || msg != "boom" {
		t.Errorf("error = %q, %v", msg, ok)
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["text"] != nil || decoded["error"] != "boom" || decoded["runVersion"] != float64(3) {
		t.Errorf("unexpected JSON: %s", data)
	}
}
