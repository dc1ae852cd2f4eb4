package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/re-cinq/burl/internal/watch"
	"github.com/spf13/cobra"
)

var watchOnce bool

func init() {
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Run a single poll iteration and exit")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll: claim READY work and drive QA work through validate/approve",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cfg, err := resolveEngine()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			if sig, ok := <-sigCh; ok {
				fmt.Printf("\nreceived %s, stopping watch loop...\n", sig)
				cancel()
			}
		}()

		if !watchOnce {
			fmt.Printf("burl watch started (polling every %s)\n", cfg.PollInterval.Duration())
		}

		return watch.Run(ctx, eng, cfg, watch.Options{Once: watchOnce})
	},
}
