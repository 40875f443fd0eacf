package evaluator_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fakeyudi/projector/internal/evaluator"
	"github.com/fakeyudi/projector/internal/tree"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newProject(t *testing.T) *tree.Dir {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "site", "index.html"), "<h1>Home</h1>")
	writeFile(t, filepath.Join(dir, "site", "about.html"), "<h1>About</h1>")
	writeFile(t, filepath.Join(dir, "config.yaml"), "title: Projector\ntags:\n  - a\n  - b\n")
	writeFile(t, filepath.Join(dir, "greet.js"), "module.exports = (name) => 'hello ' + (name || 'world');\n")
	writeFile(t, filepath.Join(dir, "add.js"), "module.exports = (a, b) => a + b;\n")
	return tree.NewDir(dir)
}

func TestEvaluateTraversal(t *testing.T) {
	e := evaluator.New()
	root := newProject(t)

	v, err := e.Evaluate(context.Background(), "site/index.html", root)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	f, ok := v.(*tree.File)
	if !ok || f.String() != "<h1>Home</h1>" {
		t.Errorf("got %#v, want index.html contents", v)
	}
}

func TestEvaluateTrailingSlashUnpacks(t *testing.T) {
	e := evaluator.New()
	root := newProject(t)

	v, err := e.Evaluate(context.Background(), "config.yaml/", root)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok || m["title"] != "Projector" {
		t.Errorf("got %#v, want parsed yaml", v)
	}

	v, err = e.Evaluate(context.Background(), "config.yaml/tags/1", root)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v != "b" {
		t.Errorf("tags/1 = %#v, want b", v)
	}
}

func TestEvaluateGroup(t *testing.T) {
	e := evaluator.New()
	root := newProject(t)

	v, err := e.Evaluate(context.Background(), "(site)/about.html", root)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if f, ok := v.(*tree.File); !ok || f.String() != "<h1>About</h1>" {
		t.Errorf("got %#v, want about.html contents", v)
	}
}

func TestEvaluateFunctionResultIsInvoked(t *testing.T) {
	e := evaluator.New()
	root := newProject(t)

	v, err := e.Evaluate(context.Background(), "greet.js/", root)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v != "hello world" {
		t.Errorf("got %#v, want hello world", v)
	}

	v, err = e.Evaluate(context.Background(), "greet.js/Ada", root)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v != "hello Ada" {
		t.Errorf("got %#v, want hello Ada", v)
	}
}

func TestEvaluateExpression(t *testing.T) {
	e := evaluator.New()
	root := newProject(t)

	tests := []struct {
		command string
		want    string
	}{
		{"1 + 2", "3"},
		{`load("config.yaml").title`, "Projector"},
		{`len(load("config.yaml").tags)`, "2"},
		{`js("add.js", 2, 3)`, "5"},
		{`len(list(site))`, "2"},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			v, err := e.Evaluate(context.Background(), tt.command, root)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got := fmt.Sprint(v); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEvaluateNotFound(t *testing.T) {
	e := evaluator.New()
	root := newProject(t)

	_, err := e.Evaluate(context.Background(), "site/missing.html", root)
	if !tree.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	var evalErr *evaluator.Error
	if !errors.As(err, &evalErr) || evalErr.Command != "site/missing.html" {
		t.Errorf("expected *evaluator.Error for the command, got %T", err)
	}
}

func TestEvaluateParseError(t *testing.T) {
	e := evaluator.New()
	for _, cmd := range []string{"(site", "site)", `("unterminated`, "   "} {
		if _, err := e.Evaluate(context.Background(), cmd, nil); err == nil {
			t.Errorf("Evaluate(%q): expected error", cmd)
		}
	}
}

func TestModuleCacheIsStaleUntilReset(t *testing.T) {
	e := evaluator.New()
	root := newProject(t)
	ctx := context.Background()

	v, err := e.Evaluate(ctx, `js("add.js", 2, 3)`, root)
	if err != nil || fmt.Sprint(v) != "5" {
		t.Fatalf("first run = %v, %v", v, err)
	}

	writeFile(t, filepath.Join(root.Path, "add.js"), "module.exports = (a, b) => a * b;\n")
	v, err = e.Evaluate(ctx, `js("add.js", 2, 3)`, root)
	if err != nil || fmt.Sprint(v) != "5" {
		t.Fatalf("cached run = %v, %v; want stale 5", v, err)
	}
	if e.Modules().Len() == 0 {
		t.Fatal("expected a cached module")
	}

	e.ResetModules()
	if n := e.Modules().Len(); n != 0 {
		t.Fatalf("Len after reset = %d", n)
	}
	v, err = e.Evaluate(ctx, `js("add.js", 2, 3)`, root)
	if err != nil || fmt.Sprint(v) != "6" {
		t.Fatalf("after reset = %v, %v; want 6", v, err)
	}
}

func TestIsTraversal(t *testing.T) {
	e := evaluator.New()
	tests := []struct {
		command string
		want    bool
		wantErr bool
	}{
		{"src/site.ori", true, false},
		{"site/index/", true, false},
		{"fn.js data", false, false},
		{"(site)/index.html", false, false},
		{"1 + 2", false, false},
		{"(site", false, true},
	}
	for _, tt := range tests {
		got, err := e.IsTraversal(tt.command)
		if (err != nil) != tt.wantErr {
			t.Errorf("IsTraversal(%q) err = %v, wantErr %v", tt.command, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("IsTraversal(%q) = %v, want %v", tt.command, got, tt.want)
		}
	}
}

func TestFormatError(t *testing.T) {
	err := errors.New("\x1b[31mboom\x1b[0m in <b>site</b> & co\x07")
	got := evaluator.FormatError(err)
	want := "boom in &lt;b&gt;site&lt;/b&gt; &amp; co"
	if got != want {
		t.Errorf("FormatError = %q, want %q", got, want)
	}
	if evaluator.FormatError(nil) != "" {
		t.Error("FormatError(nil) should be empty")
	}
	if !strings.Contains(evaluator.FormatMessage("a\nb\tc"), "\n") {
		t.Error("newlines should survive formatting")
	}
}
