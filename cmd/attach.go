package cmd

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/projector/internal/tui"
)

var attachCmd = &cobra.Command{
	Use:   "attach <rpc address>",
	Short: "Show a project started with 'projector serve'",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var d net.Dialer
		d.Timeout = 5 * time.Second
		conn, err := d.DialContext(ctx, "tcp", args[0])
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", args[0], err)
		}
		return tui.Run(ctx, conn)
	},
}

func init() {
	rootCmd.AddCommand(attachCmd)
}
