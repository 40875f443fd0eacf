package resource

import (
	"context"
	"fmt"
	"html"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fakeyudi/projector/internal/evaluator"
	"github.com/fakeyudi/projector/internal/tree"
)

const (
	htmlType  = "text/html; charset=utf-8"
	plainType = "text/plain; charset=utf-8"
)

// Renderer serializes a resolved value into a response body.
type Renderer interface {
	Render(ctx context.Context, v any) (body []byte, mediaType string, err error)
}

// rendererFor picks how to list a map-like value with no index.html: plain
// data as YAML, anything else as an HTML index of its keys.
func rendererFor(v any, urlPath string) Renderer {
	if isSimple(v) {
		return YAMLRenderer{}
	}
	return IndexRenderer{Path: urlPath}
}

// YAMLRenderer lists simple data as YAML.
type YAMLRenderer struct{}

func (r YAMLRenderer) Render(_ context.Context, v any) ([]byte, string, error) {
	out, err := yaml.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("marshal listing: %w", err)
	}
	return out, plainType, nil
}

// IndexRenderer renders a map-like value as an HTML page linking to its keys.
type IndexRenderer struct {
	// Path is the request path the links are relative to.
	Path string
}

func (r IndexRenderer) Render(ctx context.Context, v any) ([]byte, string, error) {
	keys, err := tree.Keys(ctx, v)
	if err != nil {
		return nil, "", err
	}
	base := r.Path
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	fmt.Fprintf(&sb, "<title>Index of %s</title>\n", html.EscapeString(base))
	sb.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&sb, "<h1>Index of %s</h1>\n", html.EscapeString(base))
	if len(keys) == 0 {
		sb.WriteString("<p><em>Empty.</em></p>\n")
	} else {
		sb.WriteString("<ul>\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "<li><a href=\"%s\">%s</a></li>\n",
				html.EscapeString(base+k),
				html.EscapeString(k),
			)
		}
		sb.WriteString("</ul>\n")
	}
	sb.WriteString("</body>\n</html>\n")
	return []byte(sb.String()), htmlType, nil
}

// ErrorPage renders err as a minimal HTML document.
func ErrorPage(err error) []byte {
	message := evaluator.FormatError(err)
	title := message
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	fmt.Fprintf(&sb, "<title>Error: %s</title>\n", title)
	sb.WriteString("</head>\n<body>\n<h1>Error</h1>\n<pre><code>\n")
	sb.WriteString(message)
	sb.WriteString("\n</code></pre>\n</body>\n</html>\n")
	return []byte(sb.String())
}
