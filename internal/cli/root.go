// Package cli implements burl's command surface: one Cobra subcommand per
// engine transition or observation, each resolving context and config,
// calling exactly one internal/engine operation, and mapping its error to
// an exit code.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "burl",
	Short: "A file-based task workflow orchestrator built on git worktrees",
	Long: `burl tracks tasks as markdown files moving through READY, DOING, QA,
DONE, and BLOCKED buckets on a dedicated workflow branch, while each
claimed task gets its own git worktree and branch to work in.

Every mutation (add, claim, submit, validate, approve, reject) is a single
locked, committed transition recorded in an append-only event log.`,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("burl %s\n", Version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
