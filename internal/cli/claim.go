package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(claimCmd)
}

var claimCmd = &cobra.Command{
	Use:   "claim [task-id]",
	Short: "Claim a READY task into DOING, setting up its worktree",
	Long: `With a task ID, claims that specific task. With no argument, picks
the first READY task (by ascending ID) whose dependencies are all DONE.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := resolveEngine()
		if err != nil {
			return err
		}

		var taskID string
		if len(args) > 0 {
			taskID = args[0]
		}

		f, err := eng.Claim(taskID, true)
		if err != nil {
			return err
		}

		fmt.Printf("claimed %s: %s\n", f.Frontmatter.ID, f.Frontmatter.Title)
		fmt.Printf("  branch:   %s\n", f.Frontmatter.Branch)
		fmt.Printf("  worktree: %s\n", f.Frontmatter.Worktree)
		return nil
	},
}
