// Package recent maintains bounded most-recent-last lists: recent commands,
// recent files, navigation stacks, open projects.
package recent

// List adds and removes items in a slice ordered from oldest to most recent.
// Max bounds the length; zero means unbounded. Neither operation modifies its
// input slice.
type List[T comparable] struct {
	Max int
}

// New returns a List bounded to max items.
func New[T comparable](max int) List[T] {
	return List[T]{Max: max}
}

// Add removes any existing occurrence of item, appends it, and drops the oldest
// entries beyond Max.
func (l List[T]) Add(items []T, item T) []T {
	out := l.Remove(items, item)
	out = append(out, item)
	if l.Max > 0 && len(out) > l.Max {
		out = out[len(out)-l.Max:]
	}
	return out
}

// Remove returns items without any occurrence of item.
func (l List[T]) Remove(items []T, item T) []T {
	out := make([]T, 0, len(items)+1)
	for _, i := range items {
		if i != item {
			out = append(out, i)
		}
	}
	return out
}
