package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fakeyudi/projector/internal/ipc"
	"github.com/fakeyudi/projector/internal/logging"
)

var rpcAddr string

var serveCmd = &cobra.Command{
	Use:   "serve [path]",
	Short: "Run a project without a display, for 'projector attach'",
	Long: `Open the project containing path and serve it until interrupted.
The resource server URL and the RPC address are printed on start. A display
attaches with 'projector attach <rpc address>'; a new display replaces the
previous one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
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

		ln, err := net.Listen("tcp", rpcAddr)
		if err != nil {
			return fmt.Errorf("listening for displays: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "project  %s\n", w.Project.Root())
		fmt.Fprintf(out, "resource %s\n", w.URL())
		fmt.Fprintf(out, "rpc      %s\n", ln.Addr())

		info := windowInfo(w)
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			<-ctx.Done()
			return ln.Close()
		})
		g.Go(func() error {
			for {
				conn, err := ln.Accept()
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("accepting display: %w", err)
				}
				logging.Logger.Info("display connected", "remote", conn.RemoteAddr().String())
				g.Go(func() error {
					if err := ipc.Serve(ctx, conn, w.Project, info); err != nil && !errors.Is(err, context.Canceled) {
						logging.Logger.Warn("display connection failed", "error", err)
					}
					return nil
				})
			}
		})
		if err := g.Wait(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&rpcAddr, "rpc", "127.0.0.1:0", "address to accept display connections on")
	rootCmd.AddCommand(serveCmd)
}
