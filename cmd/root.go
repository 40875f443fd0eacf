package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/projector/internal/config"
	"github.com/fakeyudi/projector/internal/logging"
	"github.com/fakeyudi/projector/internal/profile"
	"github.com/fakeyudi/projector/internal/settings"
)

// cfg holds the global configuration, populated in PersistentPreRunE.
// Each project merges its own .projectorconfig on top when it opens.
var cfg config.Config

// activeProfile holds the loaded user profile, or defaults.
var activeProfile = profile.Default()

var (
	debug     bool
	debugFile string
)

var rootCmd = &cobra.Command{
	Use:           "projector",
	Short:         "Edit project files and preview what they evaluate to",
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := logging.Initialize(debug, debugFile); err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}

		// First-run: profile missing → run setup wizard automatically.
		// Only do this when stdin is an interactive terminal.
		if !profile.Exists() && term.IsTerminal(os.Stdin.Fd()) {
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "  Welcome to projector! Looks like this is your first time.")
			if err := runSetup(cmd); err != nil {
				return err
			}
		}

		activeProfile = profile.Default()
		if profile.Exists() {
			p, err := profile.Load()
			if err != nil {
				return fmt.Errorf("loading profile: %w", err)
			}
			activeProfile = p
		}

		global, err := config.LoadGlobal()
		if err != nil {
			return fmt.Errorf("loading global config: %w", err)
		}
		cfg = config.Merge(global, nil)

		// Profile values fill in config gaps.
		if cfg.SettingsBackend == settings.BackendJSON && activeProfile.SettingsBackend != "" {
			cfg.SettingsBackend = activeProfile.SettingsBackend
		}

		logging.Logger.Debug("configuration loaded", "settings_backend", cfg.SettingsBackend, "listen_host", cfg.ListenHost)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write debug logs")
	rootCmd.PersistentFlags().StringVar(&debugFile, "debug-file", "", "write debug logs to this file")
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	err := rootCmd.Execute()
	_ = logging.Close()
	if err != nil {
		os.Exit(1)
	}
}

// GetConfig returns the global configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

// GetProfile returns the active user profile.
func GetProfile() *profile.Profile {
	return activeProfile
}
