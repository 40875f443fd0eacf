// Package tree models the addressable values a command can descend into:
// directories, embedded asset trees, parsed data, and callable functions.
package tree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Tree is a lazily evaluated keyed structure.
type Tree interface {
	// Get returns the value for key, or nil if there is none.
	Get(ctx context.Context, key string) (any, error)
	// Keys lists the tree's keys in a stable order.
	Keys(ctx context.Context) ([]string, error)
}

// Func is a value that computes its result on demand. Traversing into a Func
// with a key calls it with that key.
type Func func(ctx context.Context, args ...any) (any, error)

// File is the raw contents of a file together with the path it was read from.
// The path's extension decides how the file unpacks.
type File struct {
	Path string
	Data []byte
}

// String returns the file contents.
func (f *File) String() string { return string(f.Data) }

// Unpacker turns a file into structured data, such as parsed YAML or a
// JavaScript module's exports. ok is false when the file has no structured
// form.
type Unpacker interface {
	Unpack(ctx context.Context, f *File) (value any, ok bool, err error)
}

// NotFoundError reports a missing key during traversal.
type NotFoundError struct {
	Keys  []string // keys traversed so far, including the missing one
	Cause error
}

func (e *NotFoundError) Error() string {
	msg := "not found: " + strings.Join(e.Keys, "/")
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *NotFoundError) Unwrap() error { return e.Cause }

// IsNotFound reports whether err is or wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// KeysFromPath splits a slash-separated path into keys. A trailing slash
// yields a final empty key, which asks traversal to unpack the last value.
func KeysFromPath(p string) []string {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Traverse descends from v through keys. Empty keys in the middle of a path
// are skipped; a trailing empty key unpacks the final value.
func Traverse(ctx context.Context, u Unpacker, v any, keys ...string) (any, error) {
	cur := v
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if key == "" {
			if i == len(keys)-1 {
				return Unpack(ctx, u, cur)
			}
			continue
		}

		next, err := get(ctx, u, cur, key)
		if err != nil {
			if IsNotFound(err) {
				return nil, err
			}
			return nil, fmt.Errorf("%s: %w", strings.Join(keys[:i+1], "/"), err)
		}
		if next == nil {
			return nil, &NotFoundError{Keys: keys[:i+1]}
		}
		cur = next
	}
	return cur, nil
}

// Unpack returns the structured form of a file, or v unchanged for anything
// else.
func Unpack(ctx context.Context, u Unpacker, v any) (any, error) {
	f, ok := v.(*File)
	if !ok || u == nil {
		return v, nil
	}
	unpacked, ok, err := u.Unpack(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("unpacking %s: %w", f.Path, err)
	}
	if !ok {
		return v, nil
	}
	return unpacked, nil
}

func get(ctx context.Context, u Unpacker, v any, key string) (any, error) {
	switch v := v.(type) {
	case Tree:
		return v.Get(ctx, key)
	case map[string]any:
		return v[key], nil
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(v) {
			return nil, nil
		}
		return v[i], nil
	case Func:
		return v(ctx, key)
	case *File:
		unpacked, err := Unpack(ctx, u, v)
		if err != nil {
			return nil, err
		}
		if _, still := unpacked.(*File); still {
			return nil, nil
		}
		return get(ctx, u, unpacked, key)
	}
	return nil, nil
}

// Dir is a Tree over a directory on disk. Subdirectories are Dirs; files are
// read into *File values.
type Dir struct {
	Path string
}

// NewDir returns a Tree rooted at the directory p.
func NewDir(p string) *Dir { return &Dir{Path: p} }

func (d *Dir) Get(_ context.Context, key string) (any, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return nil, nil
	}
	p := filepath.Join(d.Path, key)
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if info.IsDir() {
		return &Dir{Path: p}, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	return &File{Path: p, Data: data}, nil
}

func (d *Dir) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Name())
	}
	return keys, nil
}

// FS is a Tree over an fs.FS, used for bundled assets.
type FS struct {
	fsys fs.FS
	dir  string
}

// NewFS returns a Tree over the root of fsys.
func NewFS(fsys fs.FS) *FS { return &FS{fsys: fsys, dir: "."} }

func (t *FS) Get(_ context.Context, key string) (any, error) {
	if key == "" || key == "." || key == ".." || strings.Contains(key, "/") {
		return nil, nil
	}
	p := path.Join(t.dir, key)
	info, err := fs.Stat(t.fsys, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if info.IsDir() {
		return &FS{fsys: t.fsys, dir: p}, nil
	}
	data, err := fs.ReadFile(t.fsys, p)
	if err != nil {
		return nil, err
	}
	return &File{Path: p, Data: data}, nil
}

func (t *FS) Keys(_ context.Context) ([]string, error) {
	entries, err := fs.ReadDir(t.fsys, t.dir)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Name())
	}
	return keys, nil
}

// Keys returns the keys of any keyed value: a Tree, a map, or a slice.
func Keys(ctx context.Context, v any) ([]string, error) {
	switch v := v.(type) {
	case Tree:
		return v.Keys(ctx)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys, nil
	case []any:
		keys := make([]string, len(v))
		for i := range v {
			keys[i] = strconv.Itoa(i)
		}
		return keys, nil
	}
	return nil, nil
}

// IsMaplike reports whether v has keys that can be enumerated.
func IsMaplike(v any) bool {
	switch v.(type) {
	case Tree, map[string]any, []any:
		return true
	}
	return false
}

// Merge returns a Tree whose keys are the union of the layers' keys. Get
// consults the layers in order and returns the first non-nil value.
func Merge(u Unpacker, layers ...any) Tree {
	return &merged{u: u, layers: layers}
}

type merged struct {
	u      Unpacker
	layers []any
}

func (m *merged) Get(ctx context.Context, key string) (any, error) {
	for _, layer := range m.layers {
		v, err := get(ctx, m.u, layer, key)
		if err != nil {
			return nil, err
		}
		if v != nil {
			return v, nil
		}
	}
	return nil, nil
}

func (m *merged) Keys(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var keys []string
	for _, layer := range m.layers {
		ks, err := Keys(ctx, layer)
		if err != nil {
			return nil, err
		}
		for _, k := range ks {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys, nil
}
