package cli

import (
	"fmt"
	"os"

	"github.com/re-cinq/burl/internal/burlctx"
	"github.com/re-cinq/burl/internal/engine"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the burl workflow in the current repository",
	Long: `Creates the burl branch and its .burl worktree, the five bucket
directories (READY, DOING, QA, DONE, BLOCKED), the events/locks/agent-logs/
prompts directories, and a default config.yaml and agents.yaml.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		ctx, err := burlctx.Resolve(cwd)
		if err != nil {
			return engine.UserError("%v", err)
		}

		if _, err := engine.Init(ctx); err != nil {
			return err
		}

		fmt.Printf("initialized burl workflow in %s\n", ctx.WorkflowWorktree)
		return nil
	},
}
