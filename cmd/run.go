package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/projector/internal/config"
	"github.com/fakeyudi/projector/internal/evaluator"
	"github.com/fakeyudi/projector/internal/project"
	"github.com/fakeyudi/projector/internal/resource"
	"github.com/fakeyudi/projector/internal/state"
)

var runCmd = &cobra.Command{
	Use:   "run <path> <command>",
	Short: "Evaluate a command in a project and print the result",
	Long: `Evaluate command against the project containing path and write the
result to stdout, rendered the way the display would load it. Recent
commands and files are not recorded.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		root, err := project.FindRoot(args[0])
		if err != nil {
			return fmt.Errorf("finding project root: %w", err)
		}
		projCfg, err := config.LoadProject(root)
		if err != nil {
			return fmt.Errorf("loading project config: %w", err)
		}

		engine := evaluator.New()
		p := project.New(root, project.Options{
			Evaluator: engine,
			Config:    config.Merge(&cfg, projCfg),
		})
		defer p.Close()
		if err := p.LoadProject(ctx); err != nil {
			return fmt.Errorf("loading project %s: %w", root, err)
		}

		// Errors land in the snapshot as well as being returned.
		if err := p.NavigateAndRun(ctx, args[1]); err != nil {
			msg, _ := p.Snapshot().Nullable(state.Error)
			if msg == "" {
				msg = evaluator.FormatError(err)
			}
			return fmt.Errorf("%s", msg)
		}

		resp := resource.NewHandler(p, engine).Resolve(ctx, "/"+resource.ResultNamespace)
		if resp.Status != http.StatusOK {
			return fmt.Errorf("rendering result: %s", http.StatusText(resp.Status))
		}
		_, err = cmd.OutOrStdout().Write(resp.Body)
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
