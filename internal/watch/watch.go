// Package watch implements the polling driver behind `burl watch`: it
// repeatedly claims READY work and pushes QA work through validate/approve,
// without any state of its own beyond a persisted last-seen-SHA map used to
// skip branches that haven't moved since the previous iteration.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/re-cinq/burl/internal/config"
	"github.com/re-cinq/burl/internal/engine"
	"github.com/re-cinq/burl/internal/fileutil"
	"github.com/re-cinq/burl/internal/git"
	"github.com/re-cinq/burl/internal/task"
)

// State maps a task ID to the task-branch HEAD sha the loop last acted on.
type State map[string]string

func loadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return nil, fmt.Errorf("reading watch state %s: %w", path, err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing watch state %s: %w", path, err)
	}
	if s == nil {
		s = State{}
	}
	return s, nil
}

func saveState(path string, s State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling watch state: %w", err)
	}
	return fileutil.AtomicWrite(path, data, 0644)
}

// Options configures a Run call.
type Options struct {
	// Once runs a single iteration and returns instead of polling forever.
	Once bool
}

// Run drives the engine once per cfg.PollInterval until ctx is canceled (or,
// with Options.Once, exactly once): each iteration claims one READY task if
// any is claimable, then runs validate (and, on a pass, approve) over every
// QA task whose branch HEAD has moved since the last iteration that touched
// it. Errors from an individual task are logged to stderr and do not stop
// the loop. Only a failure to load the state file at startup is fatal; a
// failure to save it after an iteration is logged and the loop goes on.
func Run(ctx context.Context, eng *engine.Engine, cfg *config.Config, opts Options) error {
	statePath := fileutil.WatchStatePath(eng.Ctx.WorkflowState)
	state, err := loadState(statePath)
	if err != nil {
		return err
	}

	tick := func() {
		state = runTick(eng, state)
		if err := saveState(statePath, state); err != nil {
			fmt.Fprintf(os.Stderr, "watch: saving state: %v\n", err)
		}
	}

	tick()
	if opts.Once {
		return nil
	}

	interval := cfg.PollInterval.Duration()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tick()
		}
	}
}

// runTick performs one pass: claim, then drive every QA task whose branch
// head has changed since state was last updated for it.
func runTick(eng *engine.Engine, state State) State {
	if _, err := eng.Claim("", true); err != nil {
		logTaskErr("claim", "", err)
	}

	idx, err := task.Build(eng.Ctx.WorkflowState)
	if err != nil {
		fmt.Fprintf(os.Stderr, "watch: building task index: %v\n", err)
		return state
	}

	next := State{}
	for _, entry := range idx.ByBucket("QA") {
		f, err := task.Load(entry.Path)
		if err != nil {
			logTaskErr("load", entry.ID, err)
			continue
		}
		if f.Frontmatter.Worktree == "" {
			continue
		}
		head, err := git.NewRepo(f.Frontmatter.Worktree).HeadCommit("HEAD")
		if err != nil {
			logTaskErr("resolving HEAD", entry.ID, err)
			continue
		}
		next[entry.ID] = head

		if state[entry.ID] == head {
			continue
		}

		if _, err := eng.Validate(entry.ID); err != nil {
			logTaskErr("validate", entry.ID, err)
			continue
		}
		if _, err := eng.Approve(entry.ID, ""); err != nil {
			logTaskErr("approve", entry.ID, err)
		}
	}

	return next
}

func logTaskErr(step, taskID string, err error) {
	if taskID == "" {
		fmt.Fprintf(os.Stderr, "watch: %s: %v\n", step, err)
		return
	}
	fmt.Fprintf(os.Stderr, "watch: %s %s: %v\n", step, taskID, err)
}
