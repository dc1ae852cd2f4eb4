package cli

import (
	"fmt"

	"github.com/re-cinq/burl/internal/engine"
	"github.com/spf13/cobra"
)

var doctorRepair bool

func init() {
	doctorCmd.Flags().BoolVar(&doctorRepair, "repair", false, "Clear stale locks instead of only reporting them")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check workflow state for stale locks, bucket mismatches, and orphan worktrees",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := resolveEngine()
		if err != nil {
			return err
		}

		report, err := eng.Doctor(doctorRepair)
		if err != nil {
			return err
		}

		for _, r := range report.Repairs {
			fmt.Printf("repaired: %s\n", r)
		}
		for _, issue := range report.Issues {
			fmt.Printf("[%s] %s: %s\n", issue.Severity, issue.Category, issue.Description)
			if issue.Remediation != "" {
				fmt.Printf("    %s\n", issue.Remediation)
			}
		}

		if !report.HasIssues() && len(report.Repairs) == 0 {
			fmt.Println("no issues found")
			return nil
		}

		var errCount int
		for _, issue := range report.Issues {
			if issue.Severity == engine.SeverityError {
				errCount++
			}
		}
		if errCount > 0 {
			return engine.UserError("doctor found %d error(s), %d warning(s)", errCount, len(report.Issues)-errCount)
		}
		return nil
	},
}
