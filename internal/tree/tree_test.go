package tree_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"testing/fstest"

	"github.com/fakeyudi/projector/internal/tree"
)

// lineUnpacker unpacks .list files into one entry per line.
type lineUnpacker struct{}

func (lineUnpacker) Unpack(_ context.Context, f *tree.File) (any, bool, error) {
	if filepath.Ext(f.Path) != ".list" {
		return nil, false, nil
	}
	var out []any
	start := 0
	for i, b := range f.Data {
		if b == '\n' {
			out = append(out, string(f.Data[start:i]))
			start = i + 1
		}
	}
	return out, true, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestKeysFromPath(t *testing.T) {
	tests := map[string][]string{
		"":            nil,
		"/":           nil,
		"/a/b":        {"a", "b"},
		"site/index/": {"site", "index", ""},
	}
	for in, want := range tests {
		if got := tree.KeysFromPath(in); !slices.Equal(got, want) {
			t.Errorf("KeysFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTraverseDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "site", "index.html"), "<h1>hi</h1>")
	writeFile(t, filepath.Join(dir, "names.list"), "a\nb\n")
	ctx := context.Background()
	root := tree.NewDir(dir)

	v, err := tree.Traverse(ctx, lineUnpacker{}, root, "site", "index.html")
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	f, ok := v.(*tree.File)
	if !ok || f.String() != "<h1>hi</h1>" {
		t.Fatalf("got %#v", v)
	}

	v, err = tree.Traverse(ctx, lineUnpacker{}, root, "names.list", "1")
	if err != nil {
		t.Fatalf("Traverse into unpacked file: %v", err)
	}
	if v != "b" {
		t.Errorf("got %v, want b", v)
	}

	v, err = tree.Traverse(ctx, lineUnpacker{}, root, "names.list", "")
	if err != nil {
		t.Fatalf("Traverse with trailing slash: %v", err)
	}
	if list, ok := v.([]any); !ok || len(list) != 2 {
		t.Errorf("trailing slash did not unpack: %#v", v)
	}
}

func TestTraverseMissingKey(t *testing.T) {
	root := tree.NewDir(t.TempDir())
	_, err := tree.Traverse(context.Background(), nil, root, "missing", "deeper")
	if !tree.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	var nf *tree.NotFoundError
	errors.As(err, &nf)
	if !slices.Equal(nf.Keys, []string{"missing"}) {
		t.Errorf("Keys = %v", nf.Keys)
	}
}

func TestTraverseFuncErrorIsNotNotFound(t *testing.T) {
	boom := errors.New("boom")
	fn := tree.Func(func(context.Context, ...any) (any, error) { return nil, boom })
	_, err := tree.Traverse(context.Background(), nil, map[string]any{"fn": fn}, "fn", "key")
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if tree.IsNotFound(err) {
		t.Error("evaluation error reported as not found")
	}
}

func TestTraverseFuncReceivesKey(t *testing.T) {
	fn := tree.Func(func(_ context.Context, args ...any) (any, error) { return "hello " + args[0].(string), nil })
	v, err := tree.Traverse(context.Background(), nil, fn, "world")
	if err != nil || v != "hello world" {
		t.Fatalf("got %v, %v", v, err)
	}
}

func TestFSTree(t *testing.T) {
	fsys := fstest.MapFS{
		"index.html":  {Data: []byte("<html></html>")},
		"css/app.css": {Data: []byte("body{}")},
	}
	ctx := context.Background()
	v, err := tree.Traverse(ctx, nil, tree.NewFS(fsys), "css", "app.css")
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	if f := v.(*tree.File); f.String() != "body{}" {
		t.Errorf("got %q", f.String())
	}

	keys, err := tree.Keys(ctx, tree.NewFS(fsys))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(keys, []string{"css", "index.html"}) {
		t.Errorf("keys = %v", keys)
	}
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "index.html"), "root index")
	writeFile(t, filepath.Join(dir, "style.css"), "body {}")

	site := map[string]any{"index.html": "site index", "about": "about page"}
	m := tree.Merge(lineUnpacker{}, site, tree.NewDir(dir))
	ctx := context.Background()

	v, err := m.Get(ctx, "index.html")
	if err != nil || v != "site index" {
		t.Errorf("index.html = %v, %v; want first layer", v, err)
	}
	v, err = m.Get(ctx, "style.css")
	if f, ok := v.(*tree.File); err != nil || !ok || f.String() != "body {}" {
		t.Errorf("style.css = %v, %v; want second layer", v, err)
	}
	if v, _ := m.Get(ctx, "missing"); v != nil {
		t.Errorf("missing = %v", v)
	}

	keys, err := m.Keys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"about", "index.html", "style.css"}
	if !slices.Equal(keys, want) {
		t.Errorf("Keys = %q, want %q", keys, want)
	}
}
