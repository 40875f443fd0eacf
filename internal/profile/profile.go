// Package profile manages the user's persistent projector profile.
// The profile is stored at ~/.config/projector/profile.json and is created
// once via the interactive setup flow, then referenced on every command.
package profile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fakeyudi/projector/internal/config"
	"github.com/fakeyudi/projector/internal/settings"
)

// Profile holds user-level preferences set during first-run setup.
type Profile struct {
	Opener          string `json:"opener"`           // command that opens external links
	SettingsBackend string `json:"settings_backend"` // "json" | "bolt"
	RestoreProjects bool   `json:"restore_projects"` // reopen last session's projects
}

// Default returns the profile used before setup has run.
func Default() *Profile {
	return &Profile{
		Opener:          defaultOpener(),
		SettingsBackend: settings.BackendJSON,
		RestoreProjects: true,
	}
}

// profilePath returns the path to the profile file.
func profilePath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profile.json"), nil
}

// Exists reports whether a profile file is present on disk.
func Exists() bool {
	p, err := profilePath()
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Load reads the profile from disk. Returns an error if the file is missing or malformed.
func Load() (*Profile, error) {
	p, err := profilePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("profile not found, run 'projector setup' to configure: %w", err)
	}
	prof := Default()
	if err := json.Unmarshal(data, prof); err != nil {
		return nil, fmt.Errorf("malformed profile at %s: %w", p, err)
	}
	return prof, nil
}

// Save writes the profile to disk, creating the config directory if needed.
func Save(prof *Profile) error {
	p, err := profilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(prof, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// RunSetup runs the interactive setup wizard and returns the resulting
// profile. If existing is non-nil, it is used as the default for each
// prompt (edit mode).
func RunSetup(existing *Profile, in io.Reader, out io.Writer) (*Profile, error) {
	r := bufio.NewReader(in)

	ask := func(prompt, defaultVal string) (string, error) {
		if defaultVal != "" {
			fmt.Fprintf(out, "%s [%s]: ", prompt, defaultVal)
		} else {
			fmt.Fprintf(out, "%s: ", prompt)
		}
		line, err := r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return defaultVal, nil
		}
		return line, nil
	}

	askBool := func(prompt string, defaultVal bool) (bool, error) {
		def := "n"
		if defaultVal {
			def = "y"
		}
		ans, err := ask(prompt+" (y/n)", def)
		if err != nil {
			return false, err
		}
		return strings.ToLower(ans) == "y" || strings.ToLower(ans) == "yes", nil
	}

	prof := Default()
	if existing != nil {
		*prof = *existing
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "  ┌─────────────────────────────────┐")
	fmt.Fprintln(out, "  │   projector · first-time setup  │")
	fmt.Fprintln(out, "  └─────────────────────────────────┘")
	fmt.Fprintln(out)

	var err error

	prof.Opener, err = ask("  Command to open external links", prof.Opener)
	if err != nil {
		return nil, err
	}

	backend, err := ask("  Settings storage (json/bolt)", prof.SettingsBackend)
	if err != nil {
		return nil, err
	}
	if backend == settings.BackendBolt {
		prof.SettingsBackend = settings.BackendBolt
	} else {
		prof.SettingsBackend = settings.BackendJSON
	}

	prof.RestoreProjects, err = askBool("  Reopen last session's projects on 'projector open'", prof.RestoreProjects)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(out)
	return prof, nil
}

// defaultOpener returns the platform's URL opener.
func defaultOpener() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "windows":
		return "explorer"
	}
	return "xdg-open"
}
