// Package invalidate decides which caches a file change makes stale.
package invalidate

import (
	"path/filepath"
	"strings"
)

// Action is a set of invalidation steps.
type Action uint8

const (
	// ResetModules drops compiled script modules so they are re-read.
	ResetModules Action = 1 << iota
	// ReloadSite marks the project's cached site tree stale.
	ReloadSite
	// ClearDisplayCache tells the display surface to drop its response cache.
	ClearDisplayCache
)

// None means the change needs no invalidation.
const None Action = 0

var (
	scriptExts     = []string{".js", ".mjs", ".cjs", ".ts"}
	siteExts       = []string{".ori", ".yaml", ".yml", ".json"}
	stylesheetExts = []string{".css", ".scss", ".sass", ".less"}
)

// Has reports whether every step in want is part of a.
func (a Action) Has(want Action) bool { return a&want == want }

func (a Action) String() string {
	if a == None {
		return "none"
	}
	var parts []string
	if a.Has(ResetModules) {
		parts = append(parts, "reset-modules")
	}
	if a.Has(ReloadSite) {
		parts = append(parts, "reload-site")
	}
	if a.Has(ClearDisplayCache) {
		parts = append(parts, "clear-display-cache")
	}
	return strings.Join(parts, "|")
}

// Actions returns the invalidation steps for a change to path.
func Actions(path string) Action {
	ext := strings.ToLower(filepath.Ext(path))
	var a Action
	if contains(scriptExts, ext) {
		a |= ResetModules | ClearDisplayCache
	}
	if contains(siteExts, ext) {
		a |= ReloadSite | ClearDisplayCache
	}
	if contains(stylesheetExts, ext) {
		a |= ClearDisplayCache
	}
	return a
}

func contains(exts []string, ext string) bool {
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}
