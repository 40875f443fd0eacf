package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectFile is the name of the per-project config file.
const ProjectFile = ".projectorconfig"

// Config holds all configurable Projector settings. Files are YAML; JSON is
// accepted as a subset.
type Config struct {
	RefreshDelayMS    int      `json:"refresh_delay_ms" yaml:"refresh_delay_ms"`
	MaxRecentCommands int      `json:"max_recent_commands" yaml:"max_recent_commands"`
	MaxRecentFiles    int      `json:"max_recent_files" yaml:"max_recent_files"`
	MaxRecentProjects int      `json:"max_recent_projects" yaml:"max_recent_projects"`
	MaxHistory        int      `json:"max_history" yaml:"max_history"`
	SettingsBackend   string   `json:"settings_backend" yaml:"settings_backend"` // "json" | "bolt"
	ListenHost        string   `json:"listen_host" yaml:"listen_host"`
	IgnorePatterns    []string `json:"ignore_patterns" yaml:"ignore_patterns"`
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		RefreshDelayMS:    250,
		MaxRecentCommands: 50,
		MaxRecentFiles:    10,
		MaxRecentProjects: 10,
		MaxHistory:        100,
		SettingsBackend:   "json",
		ListenHost:        "127.0.0.1",
		IgnorePatterns:    []string{},
	}
}

// RefreshDelay is the debounce delay before an automatic re-run.
func (c Config) RefreshDelay() time.Duration {
	return time.Duration(c.RefreshDelayMS) * time.Millisecond
}

// Dir returns the projector config directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "projector"), nil
}

// LoadGlobal reads ~/.config/projector/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return loadFile(filepath.Join(dir, "config.json"), true)
}

// LoadProject reads .projectorconfig in root.
// Returns nil (no error) if the file is absent.
func LoadProject(root string) (*Config, error) {
	return loadFile(filepath.Join(root, ProjectFile), false)
}

// loadFile reads and parses a config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	for _, c := range []*Config{global, project} {
		if c == nil {
			continue
		}
		if c.RefreshDelayMS > 0 {
			result.RefreshDelayMS = c.RefreshDelayMS
		}
		if c.MaxRecentCommands > 0 {
			result.MaxRecentCommands = c.MaxRecentCommands
		}
		if c.MaxRecentFiles > 0 {
			result.MaxRecentFiles = c.MaxRecentFiles
		}
		if c.MaxRecentProjects > 0 {
			result.MaxRecentProjects = c.MaxRecentProjects
		}
		if c.MaxHistory > 0 {
			result.MaxHistory = c.MaxHistory
		}
		if c.SettingsBackend != "" {
			result.SettingsBackend = c.SettingsBackend
		}
		if c.ListenHost != "" {
			result.ListenHost = c.ListenHost
		}
		if len(c.IgnorePatterns) > 0 {
			result.IgnorePatterns = c.IgnorePatterns
		}
	}
	return result
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
