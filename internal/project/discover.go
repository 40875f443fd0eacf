package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fakeyudi/projector/internal/config"
	"github.com/fakeyudi/projector/internal/tree"
)

// rootMarkers identify a project root, in order of preference.
var rootMarkers = []string{"package.json", config.ProjectFile, ".git"}

// siteInStart finds the site file in a package.json start script, such as
// "ori src/site.ori/index.html".
var siteInStart = regexp.MustCompile(`[A-Za-z0-9/.\-]*\.ori[A-Za-z0-9/.\-]*`)

// FindRoot returns the project root containing path: the nearest ancestor
// with a package.json, project config, or .git folder. Without one, the
// directory of path itself is the root.
func FindRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	start := abs
	if !info.IsDir() {
		start = filepath.Dir(abs)
	}

	for dir := start; ; {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start, nil
		}
		dir = parent
	}
}

type metadata struct {
	Name     string
	SitePath string
}

// readMetadata reads the project name and site path from package.json.
func readMetadata(ctx context.Context, u tree.Unpacker, root string) (metadata, error) {
	meta := metadata{Name: filepath.Base(root)}

	path := filepath.Join(root, "package.json")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return meta, err
	}
	value, ok, err := u.Unpack(ctx, &tree.File{Path: path, Data: data})
	if err != nil {
		return meta, fmt.Errorf("reading package.json: %w", err)
	}
	pkg, _ := value.(map[string]any)
	if !ok || pkg == nil {
		return meta, nil
	}

	if name, _ := pkg["name"].(string); name != "" {
		meta.Name = name
	}
	if site, _ := pkg["site"].(string); site != "" {
		meta.SitePath = strings.TrimPrefix(filepath.ToSlash(site), "./")
		return meta, nil
	}
	scripts, _ := pkg["scripts"].(map[string]any)
	start, _ := scripts["start"].(string)
	if match := siteInStart.FindString(start); match != "" {
		meta.SitePath = strings.TrimPrefix(match, "./")
	}
	return meta, nil
}
