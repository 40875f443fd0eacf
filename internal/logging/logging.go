// Package logging owns the process-wide structured logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// Logger is the logger used by every package. It discards output until
// Initialize is called with debug enabled.
var Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))

var (
	mu      sync.Mutex
	logFile *os.File
)

// Initialize sets up Logger. With debug off and no file, logs are discarded.
// With debug on, logs go to debugFile or to a dated file in the state dir.
// A file opened by an earlier call is closed.
func Initialize(debug bool, debugFile string) (string, error) {
	mu.Lock()
	defer mu.Unlock()

	if os.Getenv("PROJECTOR_DEBUG") == "1" {
		debug = true
	}
	if env := os.Getenv("PROJECTOR_DEBUG_FILE"); env != "" && debugFile == "" {
		debugFile = env
	}

	if !debug && debugFile == "" {
		return "", swapLocked(nil)
	}

	logFilePath := debugFile
	if logFilePath == "" {
		dir, err := logDir()
		if err != nil {
			return "", fmt.Errorf("failed to get log directory: %w", err)
		}
		logFilePath = filepath.Join(dir, "projector-"+time.Now().Format("20060102")+".log")
	}
	if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create log file: %w", err)
	}

	if err := swapLocked(f); err != nil {
		Logger.Warn("previous log file not closed cleanly", "error", err)
	}
	Logger.Info("debug logging initialized", "log_file", logFilePath, "pid", os.Getpid())
	return logFilePath, nil
}

// Close discards further logs and closes the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	return swapLocked(nil)
}

// swapLocked points Logger at f, or discards when f is nil, and closes the
// previous file.
func swapLocked(f *os.File) error {
	prev := logFile
	logFile = f
	if f == nil {
		Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		Logger = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	if prev == nil || prev == f {
		return nil
	}
	if err := prev.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

// logDir returns the OS-specific log directory.
func logDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "projector"), nil
	case "windows":
		local := os.Getenv("LOCALAPPDATA")
		if local == "" {
			local = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(local, "projector", "logs"), nil
	default:
		state := os.Getenv("XDG_STATE_HOME")
		if state == "" {
			state = filepath.Join(home, ".local", "state")
		}
		return filepath.Join(state, "projector"), nil
	}
}
