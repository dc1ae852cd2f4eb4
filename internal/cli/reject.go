package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var rejectReason string

func init() {
	rejectCmd.Flags().StringVar(&rejectReason, "reason", "", "Why the task is being rejected (required)")
	rootCmd.AddCommand(rejectCmd)
}

var rejectCmd = &cobra.Command{
	Use:   "reject <task-id>",
	Short: "Send a QA task back to READY (or BLOCKED, past the attempt limit)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := resolveEngine()
		if err != nil {
			return err
		}

		f, err := eng.Reject(args[0], rejectReason)
		if err != nil {
			return err
		}

		fmt.Printf("rejected %s -> %s\n", f.Frontmatter.ID, filepath.Base(filepath.Dir(f.Path)))
		return nil
	},
}
