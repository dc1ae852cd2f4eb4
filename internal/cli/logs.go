package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/re-cinq/burl/internal/engine"
	"github.com/re-cinq/burl/internal/fileutil"
	"github.com/re-cinq/burl/internal/task"
	"github.com/spf13/cobra"
)

var (
	logsFollow bool
	logsTail   int
)

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of lines to show")
	rootCmd.AddCommand(logsCmd)
}

var logsCmd = &cobra.Command{
	Use:   "logs <task-id> [step]",
	Short: "Show validation step logs for a task",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := resolveEngine()
		if err != nil {
			return err
		}

		taskID, err := task.ValidateTaskID(args[0])
		if err != nil {
			return engine.UserError("%v", err)
		}
		logDir := filepath.Join(fileutil.AgentLogsDir(eng.Ctx.WorkflowState), taskID)

		var logPath string
		if len(args) == 2 {
			matches, err := filepath.Glob(filepath.Join(logDir, "*-"+args[1]+".log"))
			if err != nil || len(matches) == 0 {
				return engine.UserError("no log found for %s step %q", taskID, args[1])
			}
			logPath = matches[0]
		} else {
			matches, err := filepath.Glob(filepath.Join(logDir, "*.log"))
			if err != nil || len(matches) == 0 {
				return engine.UserError("no logs found for %s (expected under %s)", taskID, logDir)
			}
			logPath = matches[len(matches)-1]
		}

		tailArgs := []string{"-n", fmt.Sprintf("%d", logsTail)}
		if logsFollow {
			tailArgs = append(tailArgs, "-f")
		}
		tailArgs = append(tailArgs, logPath)

		tailCmd := exec.Command("tail", tailArgs...)
		tailCmd.Stdout = os.Stdout
		tailCmd.Stderr = os.Stderr
		return tailCmd.Run()
	},
}
