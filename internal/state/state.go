// Package state holds immutable snapshots of named fields and computes which
// fields a change actually modifies.
//
// A Snapshot is never mutated after construction. Set returns a new Snapshot
// together with the set of fields whose new value is not deep-equal to the old
// one; callers key their side effects (persistence, broadcast, re-render) off
// that set, so writing identical values is a no-op downstream.
package state

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Field names one entry in a Snapshot.
type Field string

// Changes maps fields to their proposed new values.
type Changes map[Field]any

// Changed is the set of fields whose value differs after a Set.
type Changed map[Field]bool

// Has reports whether any of the given fields changed.
func (c Changed) Has(fields ...Field) bool {
	for _, f := range fields {
		if c[f] {
			return true
		}
	}
	return false
}

// Empty reports whether nothing changed.
func (c Changed) Empty() bool { return len(c) == 0 }

// Fields returns the changed field names in sorted order.
func (c Changed) Fields() []Field {
	out := make([]Field, 0, len(c))
	for f := range c {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot is an immutable mapping of fields to values.
type Snapshot struct {
	fields map[Field]any
}

// New returns a snapshot holding a private copy of initial.
func New(initial Changes) Snapshot {
	s, _ := Set(Snapshot{}, initial)
	return s
}

// Set merges changes over current and reports which fields changed. A field is
// changed only when its new value is not deep-equal to the current one; nil and
// empty slices or maps compare equal, as do time values denoting the same
// instant.
func Set(current Snapshot, changes Changes) (Snapshot, Changed) {
	changed := Changed{}
	for f, v := range changes {
		old, present := current.fields[f]
		if !present || !Equal(old, v) {
			changed[f] = true
		}
	}

	merged := make(map[Field]any, len(current.fields)+len(changes))
	for f, v := range current.fields {
		merged[f] = v
	}
	for f, v := range changes {
		merged[f] = clone(v)
	}
	return Snapshot{fields: merged}, changed
}

// Equal reports whether a and b are deep-equal under the snapshot rules.
func Equal(a, b any) bool {
	return cmp.Equal(a, b, cmpopts.EquateEmpty(), cmp.Comparer(func(x, y time.Time) bool {
		return x.Equal(y)
	}))
}

// Get returns the raw value of f, or nil.
func (s Snapshot) Get(f Field) any { return s.fields[f] }

// Has reports whether f has been set.
func (s Snapshot) Has(f Field) bool {
	_, ok := s.fields[f]
	return ok
}

// String returns f as a string; nil and non-string values yield "".
func (s Snapshot) String(f Field) string {
	v, _ := s.fields[f].(string)
	return v
}

// Nullable returns f as a string and whether it is non-nil.
func (s Snapshot) Nullable(f Field) (string, bool) {
	v, ok := s.fields[f].(string)
	return v, ok
}

// Bool returns f as a bool.
func (s Snapshot) Bool(f Field) bool {
	v, _ := s.fields[f].(bool)
	return v
}

// Int returns f as an int.
func (s Snapshot) Int(f Field) int {
	switch v := s.fields[f].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Strings returns a copy of f as a string slice.
func (s Snapshot) Strings(f Field) []string {
	v, _ := s.fields[f].([]string)
	if v == nil {
		return []string{}
	}
	out := make([]string, len(v))
	copy(out, v)
	return out
}

// Len returns the number of fields set.
func (s Snapshot) Len() int { return len(s.fields) }

// Map returns a deep copy of the snapshot suitable for handing to another
// process.
func (s Snapshot) Map() map[string]any {
	out := make(map[string]any, len(s.fields))
	for f, v := range s.fields {
		out[string(f)] = clone(v)
	}
	return out
}

// MarshalJSON encodes the snapshot as a JSON object.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

// clone copies the container types a snapshot may hold so later mutation by
// the caller cannot reach into the snapshot.
func clone(v any) any {
	switch v := v.(type) {
	case []string:
		if v == nil {
			return []string(nil)
		}
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = clone(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = clone(e)
		}
		return out
	}
	return v
}
