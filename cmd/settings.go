package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

var clearSettings bool

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or clear the recent and open project lists",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openSettings()
		if err != nil {
			return err
		}
		defer mgr.Close()

		out := cmd.OutOrStdout()
		if clearSettings {
			if err := mgr.Clear(); err != nil {
				return fmt.Errorf("clearing settings: %w", err)
			}
			fmt.Fprintln(out, "✓ Recent and open projects cleared.")
			return nil
		}

		recent, err := mgr.RecentProjects()
		if err != nil {
			return fmt.Errorf("reading recent projects: %w", err)
		}
		open, err := mgr.OpenProjects()
		if err != nil {
			return fmt.Errorf("reading open projects: %w", err)
		}

		fmt.Fprintln(out, "Recent projects:")
		if len(recent) == 0 {
			fmt.Fprintln(out, "  (none)")
		}
		// Most recent first.
		for _, r := range slices.Backward(recent) {
			fmt.Fprintf(out, "  %-20s %s\n", r.Name, r.Path)
		}
		fmt.Fprintln(out, "Open projects:")
		if len(open) == 0 {
			fmt.Fprintln(out, "  (none)")
		}
		for _, root := range open {
			fmt.Fprintf(out, "  %s\n", root)
		}
		return nil
	},
}

func init() {
	settingsCmd.Flags().BoolVar(&clearSettings, "clear", false, "forget recent and open projects")
	rootCmd.AddCommand(settingsCmd)
}
