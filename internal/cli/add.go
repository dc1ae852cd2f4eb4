package cli

import (
	"fmt"
	"strings"

	"github.com/re-cinq/burl/internal/task"
	"github.com/spf13/cobra"
)

var (
	addPriority string
	addTags     string
)

func init() {
	addCmd.Flags().StringVar(&addPriority, "priority", "", "Priority: high, medium, or low (default medium)")
	addCmd.Flags().StringVar(&addTags, "tags", "", "Comma-separated tags")
	rootCmd.AddCommand(addCmd)
}

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a new task to READY",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := resolveEngine()
		if err != nil {
			return err
		}

		var tags []string
		if addTags != "" {
			for _, t := range strings.Split(addTags, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tags = append(tags, t)
				}
			}
		}

		f, err := eng.Add(args[0], task.Priority(addPriority), tags)
		if err != nil {
			return err
		}

		fmt.Printf("added %s: %s\n", f.Frontmatter.ID, f.Frontmatter.Title)
		return nil
	},
}
