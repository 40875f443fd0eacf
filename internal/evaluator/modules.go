package evaluator

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/dop251/goja"

	"github.com/fakeyudi/projector/internal/logging"
	"github.com/fakeyudi/projector/internal/tree"
)

// Modules caches compiled JavaScript modules by absolute path. A cached module
// is not re-read from disk until Reset is called, so edits to a script only
// take effect after the cache is invalidated.
type Modules struct {
	mu       sync.Mutex
	programs map[string]*goja.Program
}

// NewModules returns an empty module cache.
func NewModules() *Modules {
	return &Modules{programs: make(map[string]*goja.Program)}
}

// Reset drops every cached module.
func (m *Modules) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := len(m.programs); n > 0 {
		logging.Logger.Debug("module cache reset", "modules", n)
	}
	m.programs = make(map[string]*goja.Program)
}

// Len returns the number of cached modules.
func (m *Modules) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.programs)
}

// program returns the compiled module at path, reading src from disk (or
// using src when non-nil) on a cache miss.
func (m *Modules) program(path string, src []byte) (*goja.Program, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.programs[path]; ok {
		return p, nil
	}
	if src == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		src = data
	}
	wrapped := "(function(exports, module) {\n" + string(src) + "\n})"
	p, err := goja.Compile(path, wrapped, false)
	if err != nil {
		return nil, err
	}
	m.programs[path] = p
	return p, nil
}

// Load runs the module at path and returns its exports. A function export
// becomes a tree.Func; an object export becomes a map whose function members
// are tree.Funcs.
func (m *Modules) Load(path string, src []byte) (any, error) {
	p, err := m.program(path, src)
	if err != nil {
		return nil, fmt.Errorf("loading module %s: %w", path, err)
	}

	rt := goja.New()
	wrapper, err := rt.RunProgram(p)
	if err != nil {
		return nil, fmt.Errorf("loading module %s: %w", path, err)
	}
	call, ok := goja.AssertFunction(wrapper)
	if !ok {
		return nil, fmt.Errorf("loading module %s: wrapper is not callable", path)
	}

	exports := rt.NewObject()
	module := rt.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, err
	}
	if _, err := call(goja.Undefined(), exports, module); err != nil {
		return nil, fmt.Errorf("loading module %s: %w", path, err)
	}

	var mu sync.Mutex
	return exportValue(rt, &mu, module.Get("exports")), nil
}

// exportValue converts a goja value to a Go value. Runtimes are not safe for
// concurrent use, so every call back into rt holds mu.
func exportValue(rt *goja.Runtime, mu *sync.Mutex, v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	if fn, ok := goja.AssertFunction(v); ok {
		return tree.Func(func(ctx context.Context, args ...any) (any, error) {
			mu.Lock()
			defer mu.Unlock()
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			vals := make([]goja.Value, len(args))
			for i, a := range args {
				vals[i] = rt.ToValue(a)
			}
			res, err := fn(goja.Undefined(), vals...)
			if err != nil {
				return nil, err
			}
			return exportValue(rt, mu, res), nil
		})
	}
	if obj, ok := v.(*goja.Object); ok && obj.ClassName() == "Object" {
		out := make(map[string]any)
		for _, k := range obj.Keys() {
			out[k] = exportValue(rt, mu, obj.Get(k))
		}
		return out
	}
	return normalize(v.Export())
}

// normalize converts exported containers to the shapes traversal understands.
func normalize(v any) any {
	switch v := v.(type) {
	case map[string]interface{}:
		for k, e := range v {
			v[k] = normalize(e)
		}
		return v
	case []interface{}:
		for i, e := range v {
			v[i] = normalize(e)
		}
		return v
	}
	return v
}
