package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(submitCmd)
}

var submitCmd = &cobra.Command{
	Use:   "submit <task-id>",
	Short: "Submit a DOING task for QA",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := resolveEngine()
		if err != nil {
			return err
		}

		f, err := eng.Submit(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("submitted %s for QA\n", f.Frontmatter.ID)
		return nil
	},
}
