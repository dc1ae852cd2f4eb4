package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/re-cinq/burl/internal/engine"
	"github.com/re-cinq/burl/internal/fileutil"
	"github.com/re-cinq/burl/internal/task"
	"github.com/spf13/cobra"
)

var (
	statusFollow   bool
	statusInterval float64
)

func init() {
	statusCmd.Flags().BoolVarP(&statusFollow, "follow", "f", false, "Live-update status")
	statusCmd.Flags().Float64VarP(&statusInterval, "interval", "n", 2.0, "Seconds between updates (with --follow)")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show task counts per bucket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := resolveEngine()
		if err != nil {
			return err
		}
		if statusFollow {
			return followStatus(eng)
		}
		return renderStatus(os.Stdout, eng)
	},
}

func followStatus(eng *engine.Engine) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	interval := time.Duration(statusInterval * float64(time.Second))
	var lastOutput string

	for {
		var buf bytes.Buffer
		if err := renderStatus(&buf, eng); err != nil {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		output := buf.String()

		if output != lastOutput {
			fmt.Print("\033[H\033[2J")
			fmt.Printf("Every %.1fs: burl status\n\n", statusInterval)
			fmt.Print(output)
			lastOutput = output
		}

		select {
		case <-sigCh:
			fmt.Println()
			return nil
		case <-time.After(interval):
		}
	}
}

func renderStatus(w io.Writer, eng *engine.Engine) error {
	idx, err := task.Build(eng.Ctx.WorkflowState)
	if err != nil {
		return engine.UserError("building task index: %v", err)
	}

	fmt.Fprintln(w, "Task Status")
	fmt.Fprintln(w, "──────────────────────────────────────")

	for _, bucket := range fileutil.Buckets {
		entries := idx.ByBucket(bucket)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Number < entries[j].Number })
		symbol, _ := bucketDisplay(bucket)
		fmt.Fprintf(w, "  %s  %-8s %d\n", symbol, bucket, len(entries))
		for _, e := range entries {
			f, err := task.Load(e.Path)
			title := "?"
			if err == nil {
				title = f.Frontmatter.Title
			}
			fmt.Fprintf(w, "        %-10s %s\n", e.ID, title)
		}
	}
	return nil
}
