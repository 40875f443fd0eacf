package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open [path]",
	Short: "Open a project or file in the terminal display",
	Long: `Open the project containing path and show it in the terminal.
If path is a file it becomes the active file. With no path, the projects
open at the end of the last session are restored, or the current directory
is opened.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, closeApp, err := newApp()
		if err != nil {
			return err
		}
		defer closeApp()

		w, err := openWindow(ctx, a, args)
		if err != nil {
			return err
		}
		return display(ctx, w)
	},
}

func init() {
	rootCmd.AddCommand(openCmd)
}
