package cli

import (
	"fmt"

	"github.com/re-cinq/burl/internal/engine"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate <task-id>",
	Short: "Run scope, stub, and command-step checks on a QA task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := resolveEngine()
		if err != nil {
			return err
		}

		_, verr := eng.Validate(args[0])
		if verr == nil {
			fmt.Printf("%s: validation passed\n", args[0])
			return nil
		}
		if engine.ExitCode(verr) == 2 {
			fmt.Printf("%s: validation failed\n", args[0])
		}
		return verr
	},
}
