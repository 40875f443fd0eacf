// Package settings persists application-wide and per-project settings: the
// open and recent project lists, and each project's recent commands, recent
// files and crash flag.
package settings

import (
	"errors"
	"sync"

	"github.com/fakeyudi/projector/internal/logging"
	"github.com/fakeyudi/projector/internal/recent"
	"github.com/fakeyudi/projector/internal/state"
)

const (
	keyOpenProjects   = "openProjects"
	keyRecentProjects = "recentProjects"
	projectKeyPrefix  = "project:"
)

// RecentProject is an entry in the recent projects list.
type RecentProject struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// ProjectSettings are the settings persisted for one project root.
type ProjectSettings struct {
	RecentCommands []string `json:"recentCommands"`
	RecentFiles    []string `json:"recentFiles"`
	LastRunCrashed bool     `json:"lastRunCrashed"`
}

// Manager caches settings in memory and writes them through to a Store only
// when they change.
type Manager struct {
	store     Store
	maxRecent int

	mu       sync.Mutex
	open     []string
	recent   []RecentProject
	projects map[string]ProjectSettings
	loaded   bool
}

// NewManager returns a Manager over store keeping up to maxRecent recent
// projects.
func NewManager(store Store, maxRecent int) *Manager {
	return &Manager{
		store:     store,
		maxRecent: maxRecent,
		projects:  make(map[string]ProjectSettings),
	}
}

// Close closes the underlying store.
func (m *Manager) Close() error { return m.store.Close() }

func (m *Manager) loadLocked() error {
	if m.loaded {
		return nil
	}
	if err := m.store.Get(keyOpenProjects, &m.open); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := m.store.Get(keyRecentProjects, &m.recent); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	m.loaded = true
	return nil
}

// ProjectSettings returns the settings stored for root, or zero settings.
func (m *Manager) ProjectSettings(root string) (ProjectSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ps, ok := m.projects[root]; ok {
		return ps, nil
	}
	var ps ProjectSettings
	if err := m.store.Get(projectKeyPrefix+root, &ps); err != nil && !errors.Is(err, ErrNotFound) {
		return ProjectSettings{}, err
	}
	m.projects[root] = ps
	return ps, nil
}

// SetProjectSettings stores ps for root. Empty recent-file placeholders are
// dropped, and nothing is written if the settings are unchanged.
func (m *Manager) SetProjectSettings(root string, ps ProjectSettings) error {
	if root == "" {
		return nil
	}
	files := make([]string, 0, len(ps.RecentFiles))
	for _, f := range ps.RecentFiles {
		if f != "" {
			files = append(files, f)
		}
	}
	ps.RecentFiles = files

	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.projects[root]
	if !ok {
		if err := m.store.Get(projectKeyPrefix+root, &old); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	if state.Equal(old, ps) {
		m.projects[root] = old
		return nil
	}
	if err := m.store.Put(projectKeyPrefix+root, ps); err != nil {
		return err
	}
	m.projects[root] = ps
	logging.Logger.Debug("project settings saved", "root", root)
	return nil
}

// OpenProjects returns the roots of the projects open at last save, most
// recently focused last.
func (m *Manager) OpenProjects() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(); err != nil {
		return nil, err
	}
	return append([]string(nil), m.open...), nil
}

// SetOpenProjects replaces the open projects list.
func (m *Manager) SetOpenProjects(roots []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(); err != nil {
		return err
	}
	if state.Equal(m.open, roots) {
		return nil
	}
	if err := m.store.Put(keyOpenProjects, roots); err != nil {
		return err
	}
	m.open = append([]string(nil), roots...)
	return nil
}

// RecentProjects returns recently opened projects, most recent last.
func (m *Manager) RecentProjects() ([]RecentProject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(); err != nil {
		return nil, err
	}
	return append([]RecentProject(nil), m.recent...), nil
}

// AddRecentProject moves p to the end of the recent projects list, replacing
// any entry with the same path. Entries are keyed by path since a project's
// name can change.
func (m *Manager) AddRecentProject(p RecentProject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(); err != nil {
		return err
	}
	byPath := make(map[string]RecentProject, len(m.recent)+1)
	paths := make([]string, 0, len(m.recent))
	for _, r := range m.recent {
		byPath[r.Path] = r
		paths = append(paths, r.Path)
	}
	byPath[p.Path] = p
	paths = recent.New[string](m.maxRecent).Add(paths, p.Path)

	next := make([]RecentProject, 0, len(paths))
	for _, path := range paths {
		next = append(next, byPath[path])
	}
	if state.Equal(m.recent, next) {
		return nil
	}
	if err := m.store.Put(keyRecentProjects, next); err != nil {
		return err
	}
	m.recent = next
	return nil
}

// Clear forgets the open and recent project lists.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Delete(keyOpenProjects); err != nil {
		return err
	}
	if err := m.store.Delete(keyRecentProjects); err != nil {
		return err
	}
	m.open, m.recent, m.loaded = nil, nil, true
	return nil
}
