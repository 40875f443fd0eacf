// Package evaluator runs commands against a project tree.
//
// A command is one of three forms:
//
//	site/index/          traversal: keys separated by '/'
//	(expr)/key           group: evaluate expr, then traverse into the result
//	len(load("a.yaml"))  expression: anything else, evaluated by expr-lang
//
// A trailing '/' unpacks the final value (parses a data file, loads a module).
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"

	"github.com/fakeyudi/projector/internal/logging"
	"github.com/fakeyudi/projector/internal/tree"
)

// Evaluator runs a command with parent as the tree that unqualified keys are
// resolved against.
type Evaluator interface {
	Evaluate(ctx context.Context, command string, parent tree.Tree) (any, error)
}

// ErrEmptyCommand is returned when asked to evaluate a blank command.
var ErrEmptyCommand = errors.New("empty command")

const maxCachedPrograms = 256

var (
	pathChars  = regexp.MustCompile(`^[A-Za-z0-9_.\-~@$/]+$`)
	identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Engine is the default Evaluator. It is safe for concurrent use and is meant
// to be shared by every project in the process.
type Engine struct {
	modules *Modules

	mu       sync.Mutex
	programs map[string]*vm.Program
}

// New returns an Engine with an empty module cache.
func New() *Engine {
	return &Engine{
		modules:  NewModules(),
		programs: make(map[string]*vm.Program),
	}
}

// Modules returns the engine's JavaScript module cache.
func (e *Engine) Modules() *Modules { return e.modules }

// ResetModules drops every cached JavaScript module.
func (e *Engine) ResetModules() { e.modules.Reset() }

// IsTraversal reports whether command is a plain traversal that can be
// extended by appending keys.
func (e *Engine) IsTraversal(command string) (bool, error) {
	p, err := parse(command)
	if err != nil {
		return false, err
	}
	return p.kind == kindTraversal, nil
}

// Evaluate runs command. Function results are invoked with no arguments.
func (e *Engine) Evaluate(ctx context.Context, command string, parent tree.Tree) (any, error) {
	v, err := e.eval(ctx, command, parent)
	if err == nil {
		if fn, ok := v.(tree.Func); ok {
			v, err = fn(ctx)
		}
	}
	if err != nil {
		var evalErr *Error
		if errors.As(err, &evalErr) {
			return nil, err
		}
		return nil, &Error{Command: command, Err: err}
	}
	return v, nil
}

func (e *Engine) eval(ctx context.Context, command string, parent tree.Tree) (any, error) {
	p, err := parse(command)
	if err != nil {
		return nil, err
	}
	switch p.kind {
	case kindTraversal:
		return tree.Traverse(ctx, e, parent, p.keys...)
	case kindGroup:
		v, err := e.eval(ctx, p.inner, parent)
		if err != nil {
			return nil, err
		}
		return tree.Traverse(ctx, e, v, p.keys...)
	}

	program, err := e.compile(p.source)
	if err != nil {
		return nil, err
	}
	env, err := e.env(ctx, parent)
	if err != nil {
		return nil, err
	}
	return expr.Run(program, env)
}

func (e *Engine) compile(source string) (*vm.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.programs[source]; ok {
		return p, nil
	}
	p, err := expr.Compile(source, expr.Env(builtins(context.Background(), e, nil)), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	if len(e.programs) >= maxCachedPrograms {
		e.programs = make(map[string]*vm.Program)
	}
	e.programs[source] = p
	return p, nil
}

// env exposes the parent's identifier-named entries alongside the builtins.
func (e *Engine) env(ctx context.Context, parent tree.Tree) (map[string]any, error) {
	env := builtins(ctx, e, parent)
	if parent == nil {
		return env, nil
	}
	keys, err := parent.Keys(ctx)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if !identifier.MatchString(k) {
			continue
		}
		if _, taken := env[k]; taken {
			continue
		}
		v, err := parent.Get(ctx, k)
		if err != nil {
			logging.Logger.Debug("skipping env entry", "key", k, "error", err)
			continue
		}
		if v, err = tree.Unpack(ctx, e, v); err == nil {
			env[k] = v
		}
	}
	return env, nil
}

func builtins(ctx context.Context, e *Engine, parent tree.Tree) map[string]any {
	load := func(path string) (any, error) {
		v, err := tree.Traverse(ctx, e, parent, tree.KeysFromPath(path)...)
		if err != nil {
			return nil, err
		}
		return tree.Unpack(ctx, e, v)
	}
	return map[string]any{
		"load": load,
		"js": func(path string, args ...any) (any, error) {
			v, err := load(path)
			if err != nil {
				return nil, err
			}
			if fn, ok := v.(tree.Func); ok {
				return fn(ctx, args...)
			}
			return v, nil
		},
		"list": func(v any) ([]string, error) {
			return tree.Keys(ctx, v)
		},
	}
}

// Unpack parses data files and loads script modules.
func (e *Engine) Unpack(_ context.Context, f *tree.File) (any, bool, error) {
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".yaml", ".yml", ".json":
		var v any
		if err := yaml.Unmarshal(f.Data, &v); err != nil {
			return nil, false, err
		}
		return normalizeYAML(v), true, nil
	case ".js", ".mjs", ".cjs":
		v, err := e.modules.Load(f.Path, f.Data)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	}
	return nil, false, nil
}

func normalizeYAML(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, e := range v {
			v[k] = normalizeYAML(e)
		}
		return v
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[fmt.Sprint(k)] = normalizeYAML(e)
		}
		return out
	case []any:
		for i, e := range v {
			v[i] = normalizeYAML(e)
		}
		return v
	}
	return v
}

type kind int

const (
	kindTraversal kind = iota
	kindGroup
	kindExpression
)

type parsed struct {
	kind   kind
	keys   []string
	inner  string
	source string
}

func parse(command string) (parsed, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return parsed{}, ErrEmptyCommand
	}
	if pathChars.MatchString(command) {
		return parsed{kind: kindTraversal, keys: splitKeys(command), source: command}, nil
	}

	closing, err := matchParens(command)
	if err != nil {
		return parsed{}, err
	}
	if command[0] == '(' {
		rest := command[closing+1:]
		if rest == "" || (rest[0] == '/' && pathChars.MatchString(rest)) {
			var keys []string
			if rest != "" {
				keys = splitKeys(rest[1:])
				if len(keys) == 0 {
					keys = []string{""}
				}
			}
			return parsed{kind: kindGroup, inner: command[1:closing], keys: keys, source: command}, nil
		}
	}
	return parsed{kind: kindExpression, source: command}, nil
}

// splitKeys splits a traversal into keys, dropping "." segments.
func splitKeys(p string) []string {
	var keys []string
	parts := strings.Split(p, "/")
	for i, k := range parts {
		if k == "." {
			if i == len(parts)-1 {
				keys = append(keys, "")
			}
			continue
		}
		if k == "" && i != len(parts)-1 {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// matchParens checks that parentheses outside string literals balance and
// returns the index of the parenthesis closing the first one (or -1).
func matchParens(s string) (int, error) {
	depth, first := 0, -1
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return -1, fmt.Errorf("unexpected ')' at offset %d", i)
			}
			if depth == 0 && first < 0 {
				first = i
			}
		}
	}
	if quote != 0 {
		return -1, errors.New("unterminated string literal")
	}
	if depth != 0 {
		return -1, errors.New("unbalanced parentheses")
	}
	return first, nil
}
