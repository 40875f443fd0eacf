package settings_test

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"pgregory.net/rapid"

	"github.com/fakeyudi/projector/internal/recent"
	"github.com/fakeyudi/projector/internal/settings"
)

func backends(t *testing.T) map[string]func(dir string) settings.Store {
	t.Helper()
	return map[string]func(dir string) settings.Store{
		settings.BackendJSON: func(dir string) settings.Store {
			s, err := settings.Open(settings.BackendJSON, dir)
			if err != nil {
				t.Fatalf("Open json: %v", err)
			}
			return s
		},
		settings.BackendBolt: func(dir string) settings.Store {
			s, err := settings.Open(settings.BackendBolt, dir)
			if err != nil {
				t.Fatalf("Open bolt: %v", err)
			}
			return s
		},
	}
}

func TestStoreGetPutDelete(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t.TempDir())
			defer s.Close()

			var got []string
			if err := s.Get("missing", &got); !errors.Is(err, settings.ErrNotFound) {
				t.Fatalf("Get missing: want ErrNotFound, got %v", err)
			}

			want := []string{"/a", "/b"}
			if err := s.Put("openProjects", want); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := s.Get("openProjects", &got); err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !slices.Equal(got, want) {
				t.Errorf("Get = %q, want %q", got, want)
			}

			if err := s.Delete("openProjects"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := s.Get("openProjects", &got); !errors.Is(err, settings.ErrNotFound) {
				t.Errorf("Get after delete: want ErrNotFound, got %v", err)
			}
			if err := s.Delete("never-set"); err != nil {
				t.Errorf("Delete of absent key: %v", err)
			}
		})
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			s := open(dir)
			if err := s.Put("k", map[string]int{"n": 1}); err != nil {
				t.Fatal(err)
			}
			if err := s.Close(); err != nil {
				t.Fatal(err)
			}

			s = open(dir)
			defer s.Close()
			var got map[string]int
			if err := s.Get("k", &got); err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got["n"] != 1 {
				t.Errorf("got %v", got)
			}
		})
	}
}

func TestOpenDefaultsToDataDir(t *testing.T) {
	dataHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)

	s, err := settings.Open("", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if err := s.Put("k", true); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dataHome, "projector", "settings.json")); err != nil {
		t.Errorf("expected settings file in data dir: %v", err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := settings.Open("sqlite", t.TempDir()); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := settings.NewFileStore(path)
	var v any
	if err := s.Get("k", &v); err == nil || errors.Is(err, settings.ErrNotFound) {
		t.Errorf("expected parse error, got %v", err)
	}
}

// countingStore records how many writes reach the underlying store.
type countingStore struct {
	settings.Store
	puts int
}

func (c *countingStore) Put(key string, v any) error {
	c.puts++
	return c.Store.Put(key, v)
}

func TestManagerProjectSettings(t *testing.T) {
	store := &countingStore{Store: settings.NewFileStore(filepath.Join(t.TempDir(), "settings.json"))}
	m := settings.NewManager(store, 10)

	ps, err := m.ProjectSettings("/proj")
	if err != nil {
		t.Fatal(err)
	}
	if ps.LastRunCrashed || len(ps.RecentCommands) != 0 {
		t.Errorf("expected zero settings, got %+v", ps)
	}

	in := settings.ProjectSettings{
		RecentCommands: []string{"site/"},
		RecentFiles:    []string{"/proj/a.ori", ""},
		LastRunCrashed: true,
	}
	if err := m.SetProjectSettings("/proj", in); err != nil {
		t.Fatal(err)
	}
	if err := m.SetProjectSettings("/proj", in); err != nil {
		t.Fatal(err)
	}
	if store.puts != 1 {
		t.Errorf("puts = %d, want 1 (unchanged settings are not rewritten)", store.puts)
	}

	// A fresh manager reads what the first one wrote.
	got, err := settings.NewManager(store, 10).ProjectSettings("/proj")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got.RecentFiles, []string{"/proj/a.ori"}) {
		t.Errorf("RecentFiles = %q, placeholder should be dropped", got.RecentFiles)
	}
	if !got.LastRunCrashed || !slices.Equal(got.RecentCommands, []string{"site/"}) {
		t.Errorf("got %+v", got)
	}
}

func TestManagerRecentProjects(t *testing.T) {
	m := settings.NewManager(settings.NewFileStore(filepath.Join(t.TempDir(), "settings.json")), 2)

	for _, p := range []settings.RecentProject{
		{Path: "/a", Name: "a"},
		{Path: "/b", Name: "b"},
		{Path: "/a", Name: "renamed"},
		{Path: "/c", Name: "c"},
	} {
		if err := m.AddRecentProject(p); err != nil {
			t.Fatal(err)
		}
	}
	got, err := m.RecentProjects()
	if err != nil {
		t.Fatal(err)
	}
	want := []settings.RecentProject{{Path: "/a", Name: "renamed"}, {Path: "/c", Name: "c"}}
	if !slices.Equal(got, want) {
		t.Errorf("RecentProjects = %+v, want %+v", got, want)
	}
}

// Feature: projector, Property: recent projects order like any recent list,
// keyed by path, with the latest name kept.
func TestManagerRecentProjectsFollowRecentList(t *testing.T) {
	dir := t.TempDir()
	rapid.Check(t, func(rt *rapid.T) {
		path := filepath.Join(dir, "settings.json")
		_ = os.Remove(path)
		limit := rapid.IntRange(1, 5).Draw(rt, "max")
		m := settings.NewManager(settings.NewFileStore(path), limit)
		l := recent.New[string](limit)

		var paths []string
		names := map[string]string{}
		adds := rapid.SliceOfN(rapid.IntRange(0, 6), 1, 20).Draw(rt, "adds")
		for i, n := range adds {
			p := settings.RecentProject{Path: "/p" + string(rune('0'+n)), Name: "v" + string(rune('a'+i))}
			if err := m.AddRecentProject(p); err != nil {
				rt.Fatal(err)
			}
			paths = l.Add(paths, p.Path)
			names[p.Path] = p.Name
		}

		got, err := m.RecentProjects()
		if err != nil {
			rt.Fatal(err)
		}
		if len(got) != len(paths) {
			rt.Fatalf("RecentProjects = %+v, want paths %q", got, paths)
		}
		for i, r := range got {
			if r.Path != paths[i] || r.Name != names[r.Path] {
				rt.Fatalf("entry %d = %+v, want %s named %s", i, r, paths[i], names[paths[i]])
			}
		}
	})
}

func TestManagerOpenProjectsAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	m := settings.NewManager(settings.NewFileStore(path), 10)

	if err := m.SetOpenProjects([]string{"/a", "/b"}); err != nil {
		t.Fatal(err)
	}
	if err := m.AddRecentProject(settings.RecentProject{Path: "/a", Name: "a"}); err != nil {
		t.Fatal(err)
	}

	reopened := settings.NewManager(settings.NewFileStore(path), 10)
	open, err := reopened.OpenProjects()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(open, []string{"/a", "/b"}) {
		t.Errorf("OpenProjects = %q", open)
	}

	if err := reopened.Clear(); err != nil {
		t.Fatal(err)
	}
	open, _ = reopened.OpenProjects()
	recent, _ := reopened.RecentProjects()
	if len(open) != 0 || len(recent) != 0 {
		t.Errorf("after Clear: open=%q recent=%+v", open, recent)
	}
}
