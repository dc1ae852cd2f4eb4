package engine

import (
	"fmt"
	"time"

	"github.com/re-cinq/burl/internal/events"
	"github.com/re-cinq/burl/internal/git"
	"github.com/re-cinq/burl/internal/lock"
	"github.com/re-cinq/burl/internal/task"
)

// Validate implements §4.13.4: QA → QA, no bucket move. It runs scope,
// stubs, and the task's configured command-step validation profile,
// appends a human-readable report to the task body, and records a
// `validate` event carrying `passed`. A failed run still completes the
// transition (the report is recorded) but returns a validation error so
// the CLI exits nonzero.
func (e *Engine) Validate(taskID string) (*task.File, error) {
	if err := RequireInitialized(e.Ctx); err != nil {
		return nil, err
	}

	idx, err := e.buildIndex()
	if err != nil {
		return nil, err
	}
	entry, err := e.resolveTask(idx, taskID)
	if err != nil {
		return nil, err
	}
	if err := requireBucket(entry, "QA"); err != nil {
		return nil, err
	}

	guard, err := lock.TaskLock(e.Ctx.LocksDir, entry.ID, "validate")
	if err != nil {
		return nil, wrapLockErr("validate", err)
	}
	defer guard.Release()

	f, err := task.Load(entry.Path)
	if err != nil {
		return nil, UserError("loading task file: %v", err)
	}
	if err := requireBucket(entry, "QA"); err != nil {
		return nil, err
	}
	if err := f.Frontmatter.ValidateBucketInvariants("QA"); err != nil {
		return nil, UserError("%v", err)
	}

	taskRepo := git.NewRepo(f.Frontmatter.Worktree)
	result, err := e.runChecks(taskRepo, f, f.Frontmatter.BaseSHA)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updated, err := e.mutateAndCommit(f, entry.ID, "", func() {
		f.Body += qaReportBlock(now, result)
	}, events.ActionValidate, map[string]any{"passed": result.Passed}, fmt.Sprintf("validate %s", entry.ID))
	if err != nil {
		return nil, err
	}

	if !result.Passed {
		return updated, ValidationError("validation failed for %s", entry.ID)
	}
	return updated, nil
}
