package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cleanYes   bool
	cleanForce bool
)

func init() {
	cleanCmd.Flags().BoolVar(&cleanYes, "yes", false, "Actually remove the planned worktrees (default is a dry run)")
	cleanCmd.Flags().BoolVar(&cleanForce, "force", false, "Remove worktrees even if they have uncommitted changes")
	rootCmd.AddCommand(cleanCmd)
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove DONE-task worktrees and orphan worktrees under .worktrees",
	Long: `Prints a plan of what would be removed. Pass --yes to actually remove
it. Never touches anything outside .worktrees, and never deletes an
orphan's branch (only a completed task's own branch is deleted).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := resolveEngine()
		if err != nil {
			return err
		}

		plan, err := eng.PlanClean()
		if err != nil {
			return err
		}
		if plan.Empty() {
			fmt.Println("nothing to clean")
			return nil
		}

		for _, c := range plan.Completed {
			fmt.Printf("  done     %s  %s (%s)\n", c.TaskID, c.Path, c.Branch)
		}
		for _, c := range plan.Orphans {
			fmt.Printf("  orphan   %s (%s)\n", c.Path, c.Branch)
		}

		if !cleanYes {
			fmt.Println("\ndry run; pass --yes to remove these")
			return nil
		}

		removed, err := eng.Clean(plan, cleanForce)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d worktree(s)\n", removed)
		return nil
	},
}
