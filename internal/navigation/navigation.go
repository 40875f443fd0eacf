// Package navigation implements back/forward history over commands and the
// mapping from a clicked hyperlink to the next command.
package navigation

import (
	"net/url"
	"strings"

	"github.com/fakeyudi/projector/internal/recent"
)

// Stacks holds the back and forward history, most recent last.
type Stacks struct {
	Back    []string
	Forward []string
}

// BackEnabled reports whether Back has anything to pop.
func (s Stacks) BackEnabled() bool { return len(s.Back) > 0 }

// ForwardEnabled reports whether Forward has anything to pop.
func (s Stacks) ForwardEnabled() bool { return len(s.Forward) > 0 }

// History moves commands between the back and forward stacks. Its methods
// return new Stacks and never modify their input.
type History struct {
	stack recent.List[string]
}

// NewHistory returns a History whose stacks hold at most max commands each.
func NewHistory(max int) History {
	return History{stack: recent.New[string](max)}
}

// Navigate records a direct move away from current: current is pushed onto
// Back and Forward is cleared.
func (h History) Navigate(s Stacks, current string) Stacks {
	back := s.Back
	if current != "" {
		back = h.stack.Add(back, current)
	}
	return Stacks{Back: clone(back), Forward: []string{}}
}

// GoBack pops the most recent Back entry. current moves onto Forward. ok is
// false when Back is empty.
func (h History) GoBack(s Stacks, current string) (next Stacks, command string, ok bool) {
	if len(s.Back) == 0 {
		return s, current, false
	}
	forward := s.Forward
	if current != "" {
		forward = h.stack.Add(forward, current)
	}
	command = s.Back[len(s.Back)-1]
	return Stacks{Back: clone(s.Back[:len(s.Back)-1]), Forward: clone(forward)}, command, true
}

// GoForward pops the most recent Forward entry. current moves onto Back. ok is
// false when Forward is empty.
func (h History) GoForward(s Stacks, current string) (next Stacks, command string, ok bool) {
	if len(s.Forward) == 0 {
		return s, current, false
	}
	back := s.Back
	if current != "" {
		back = h.stack.Add(back, current)
	}
	command = s.Forward[len(s.Forward)-1]
	return Stacks{Back: clone(back), Forward: clone(s.Forward[:len(s.Forward)-1])}, command, true
}

// HomeCommand returns the command that shows the site, or "" without one.
func HomeCommand(sitePath string) string {
	if sitePath == "" {
		return ""
	}
	return strings.TrimSuffix(sitePath, "/") + "/"
}

// TraversalFunc reports whether a command denotes a path-based descent that
// can be extended by appending keys.
type TraversalFunc func(command string) (bool, error)

// ResolveHref maps a link clicked in a rendered result to the next command.
// internal is false when href is an external URL that should be opened outside
// the project instead.
func ResolveHref(href, command, sitePath string, isTraversal TraversalFunc) (next string, internal bool) {
	if u, err := url.Parse(href); err == nil && u.Scheme != "" {
		return "", false
	}

	if strings.HasPrefix(href, "/") {
		if sitePath == "" {
			return strings.TrimPrefix(href, "/"), true
		}
		return strings.TrimSuffix(sitePath, "/") + href, true
	}

	traversal := false
	if isTraversal != nil {
		// A parse failure just means the command can't be extended in place.
		if ok, err := isTraversal(command); err == nil {
			traversal = ok
		}
	}

	base := command
	if !traversal {
		base = "(" + command + ")/"
	}
	return resolveRelative(base, href), true
}

// resolveRelative applies URL reference resolution to path-like strings that
// may contain characters url.Parse would reject.
func resolveRelative(base, href string) string {
	if strings.HasPrefix(base, "(") {
		// Keep the grouped prefix verbatim; only the part after it is a path.
		closing := strings.LastIndex(base, ")")
		prefix, rest := base[:closing+1], base[closing+1:]
		return prefix + "/" + strings.TrimPrefix(resolveRelative(strings.TrimPrefix(rest, "/"), href), "/")
	}

	b := &url.URL{Path: "/" + base}
	ref := &url.URL{Path: href}
	if parsed, err := url.Parse(href); err == nil {
		ref = parsed
	}
	resolved := b.ResolveReference(ref)
	return strings.TrimPrefix(resolved.Path, "/")
}

func clone(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	return out
}
