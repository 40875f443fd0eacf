// Package resource serves a project's virtual resources over HTTP: the
// display surface's own assets, the latest evaluation result, and the
// project's site.
package resource

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/fakeyudi/projector/internal/evaluator"
	"github.com/fakeyudi/projector/internal/logging"
	"github.com/fakeyudi/projector/internal/tree"
)

// Namespaces recognised in the first path segment.
const (
	RendererNamespace = "_renderer"
	ResultNamespace   = "_result"
	// DefaultMarker may follow ResultNamespace and is ignored.
	DefaultMarker = "_default"
)

//go:embed assets
var embedded embed.FS

// Assets returns the bundled display-surface files.
func Assets() fs.FS {
	sub, err := fs.Sub(embedded, "assets")
	if err != nil {
		panic(err)
	}
	return sub
}

// Source is the project a Handler serves.
type Source interface {
	// Result is the value of the last successful run, or nil.
	Result() any
	// Command is the command that produced Result.
	Command() string
	// Site returns the project's site tree, or nil if it has none.
	Site(ctx context.Context) (any, error)
	// SetError reports a resolution failure to the display surface.
	SetError(message string)
}

// Response is a resolved resource.
type Response struct {
	Status    int
	MediaType string
	Body      []byte
}

// Handler resolves request paths against a Source.
type Handler struct {
	source   Source
	unpacker tree.Unpacker
	assets   tree.Tree
}

// NewHandler returns a Handler for source. u unpacks files met during
// traversal.
func NewHandler(source Source, u tree.Unpacker) *Handler {
	return &Handler{
		source:   source,
		unpacker: u,
		assets:   tree.NewFS(Assets()),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	res := h.Resolve(r.Context(), r.URL.Path)
	if res.MediaType != "" {
		w.Header().Set("Content-Type", res.MediaType)
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Body)))
	w.WriteHeader(res.Status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(res.Body)
	}
}

// Resolve maps a request path to a response. It never fails: missing keys
// yield 404 and any other error yields a 500 error page.
func (h *Handler) Resolve(ctx context.Context, urlPath string) *Response {
	value, effective, err := h.lookup(ctx, urlPath)
	if err == nil && value == nil {
		err = &tree.NotFoundError{Keys: tree.KeysFromPath(urlPath)}
	}
	if err != nil {
		return h.failure(urlPath, err)
	}

	body, mediaType, err := h.preprocess(ctx, value, urlPath)
	if err != nil {
		return h.failure(urlPath, err)
	}
	if mediaType == "" {
		mediaType = mediaTypeFor(effective, body)
	}
	return &Response{Status: http.StatusOK, MediaType: mediaType, Body: body}
}

func (h *Handler) lookup(ctx context.Context, urlPath string) (value any, effective string, err error) {
	keys := tree.KeysFromPath(urlPath)
	effective = urlPath
	first := ""
	if len(keys) > 0 {
		first = keys[0]
	}

	switch first {
	case RendererNamespace:
		rest := keys[1:]
		if len(rest) == 0 || (len(rest) == 1 && rest[0] == "") {
			rest = []string{"index.html"}
		}
		value, err = tree.Traverse(ctx, nil, h.assets, rest...)
		return value, effective, err
	case ResultNamespace:
		rest := keys[1:]
		if len(rest) > 0 && rest[0] == DefaultMarker {
			rest = rest[1:]
		}
		if len(rest) == 0 || (len(rest) == 1 && rest[0] == "") {
			effective = h.source.Command()
		}
		value, err = tree.Traverse(ctx, h.unpacker, h.source.Result(), rest...)
		return value, effective, err
	}

	site, err := h.source.Site(ctx)
	if err != nil {
		return nil, effective, fmt.Errorf("loading site: %w", err)
	}
	value, err = tree.Traverse(ctx, h.unpacker, site, keys...)
	return value, effective, err
}

func (h *Handler) failure(urlPath string, err error) *Response {
	if tree.IsNotFound(err) {
		logging.Logger.Debug("resource not found", "path", urlPath, "error", err)
		return &Response{Status: http.StatusNotFound, MediaType: plainType, Body: []byte("Not found\n")}
	}
	// A dropped or timed-out request is not the project's error.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logging.Logger.Debug("resource request abandoned", "path", urlPath, "error", err)
		return &Response{Status: http.StatusServiceUnavailable, MediaType: plainType, Body: []byte("Request cancelled\n")}
	}
	logging.Logger.Error("resource failed", "path", urlPath, "error", err)
	h.source.SetError(evaluator.FormatError(err))
	return &Response{Status: http.StatusInternalServerError, MediaType: htmlType, Body: ErrorPage(err)}
}

// preprocess turns a resolved value into bytes. An empty media type means the
// caller should infer one.
func (h *Handler) preprocess(ctx context.Context, v any, urlPath string) ([]byte, string, error) {
	if fn, ok := v.(tree.Func); ok {
		out, err := fn(ctx)
		if err != nil {
			return nil, "", err
		}
		v = out
	}

	switch v := v.(type) {
	case nil:
		return nil, "", &tree.NotFoundError{Keys: tree.KeysFromPath(urlPath)}
	case []byte:
		return v, "", nil
	case string:
		return []byte(v), "", nil
	case *tree.File:
		return v.Data, "", nil
	case fmt.Stringer:
		if !tree.IsMaplike(v) {
			return []byte(v.String()), "", nil
		}
	}

	if !tree.IsMaplike(v) {
		return []byte(fmt.Sprint(v)), "", nil
	}

	index, err := tree.Traverse(ctx, h.unpacker, v, "index.html")
	if err != nil && !tree.IsNotFound(err) {
		return nil, "", err
	}
	if index != nil {
		body, _, err := h.preprocess(ctx, index, urlPath)
		return body, htmlType, err
	}
	return rendererFor(v, urlPath).Render(ctx, v)
}

// isSimple reports whether v is plain data: no computed members and no keys
// containing a path separator.
func isSimple(v any) bool {
	switch v := v.(type) {
	case map[string]any:
		for k, e := range v {
			if strings.Contains(k, "/") || !isSimple(e) {
				return false
			}
		}
	case []any:
		for _, e := range v {
			if !isSimple(e) {
				return false
			}
		}
	case tree.Tree, tree.Func, *tree.File:
		return false
	}
	return true
}

// mediaTypeFor infers a media type from the effective URL's extension, then
// from the content itself.
func mediaTypeFor(effective string, body []byte) string {
	if i := strings.IndexAny(effective, "?#"); i >= 0 {
		effective = effective[:i]
	}
	if ext := path.Ext(strings.TrimSuffix(effective, "/")); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return plainType
	}
	return http.DetectContentType(body)
}
