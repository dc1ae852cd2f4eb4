package cli

import (
	"fmt"

	"github.com/re-cinq/burl/internal/config"
	"github.com/spf13/cobra"
)

var approveStrategy string

func init() {
	approveCmd.Flags().StringVar(&approveStrategy, "strategy", "", "Override approve_strategy for this call (rebase_ff_only, ff_only, manual)")
	rootCmd.AddCommand(approveCmd)
}

var approveCmd = &cobra.Command{
	Use:   "approve <task-id>",
	Short: "Merge a QA task into main and move it to DONE",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := resolveEngine()
		if err != nil {
			return err
		}

		f, err := eng.Approve(args[0], config.ApproveStrategy(approveStrategy))
		if err != nil {
			return err
		}

		fmt.Printf("approved %s\n", f.Frontmatter.ID)
		return nil
	},
}
