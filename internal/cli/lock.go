package cli

import (
	"fmt"
	"time"

	"github.com/re-cinq/burl/internal/engine"
	"github.com/re-cinq/burl/internal/events"
	"github.com/re-cinq/burl/internal/fileutil"
	"github.com/re-cinq/burl/internal/lock"
	"github.com/spf13/cobra"
)

var lockClearForce bool

func init() {
	lockClearCmd.Flags().BoolVar(&lockClearForce, "force", false, "Clear the lock even if it isn't stale yet")
	lockCmd.AddCommand(lockListCmd)
	lockCmd.AddCommand(lockClearCmd)
	rootCmd.AddCommand(lockCmd)
}

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Inspect or clear workflow locks",
}

var lockListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every held lock",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := resolveEngine()
		if err != nil {
			return err
		}

		locks, err := lock.List(eng.Ctx.LocksDir)
		if err != nil {
			return engine.UserError("%v", err)
		}
		if len(locks) == 0 {
			fmt.Println("no locks held")
			return nil
		}
		for _, l := range locks {
			staleTag := ""
			if l.Stale {
				staleTag = " (stale)"
			}
			fmt.Printf("%-30s owner=%-20s action=%-10s age=%s%s\n",
				l.Name, l.Meta.Owner, l.Meta.Action, time.Since(l.Meta.CreatedAt).Round(time.Second), staleTag)
		}
		return nil
	},
}

var lockClearCmd = &cobra.Command{
	Use:   "clear <lock-name>",
	Short: "Remove a lock file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := resolveEngine()
		if err != nil {
			return err
		}

		locks, err := lock.List(eng.Ctx.LocksDir)
		if err != nil {
			return engine.UserError("%v", err)
		}
		var target *lock.Info
		for i := range locks {
			if locks[i].Name == args[0] || locks[i].Name == args[0]+".lock" {
				target = &locks[i]
				break
			}
		}
		if target == nil {
			return engine.UserError("no lock named %s", args[0])
		}
		if !target.Stale && !lockClearForce {
			return engine.UserError("lock %s is not stale; pass --force to clear it anyway", target.Name)
		}

		if err := lock.Clear(eng.Ctx.LocksDir, target.Name); err != nil {
			return engine.UserError("%v", err)
		}

		ev := events.New(events.ActionLockClear, lock.Actor(), "", map[string]any{
			"lock": target.Name, "owner": target.Meta.Owner, "forced": lockClearForce,
		})
		if err := events.Append(fileutil.EventsLogPath(eng.Ctx.WorkflowState), ev); err != nil {
			return engine.UserError("recording lock_clear event: %v", err)
		}

		fmt.Printf("cleared %s\n", target.Name)
		return nil
	},
}
