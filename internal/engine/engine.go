// Package engine implements the transition engine: the six task-lifecycle
// transactions (add, claim, submit, validate, approve, reject) that move a
// task file between bucket directories while keeping its frontmatter,
// worktree, and the event log consistent. Every transaction follows the
// same spine: resolve, lock, precheck, mutate under the workflow lock,
// record, commit.
package engine

import (
	"os"
	"path/filepath"

	"github.com/re-cinq/burl/internal/burlctx"
	"github.com/re-cinq/burl/internal/config"
	"github.com/re-cinq/burl/internal/events"
	"github.com/re-cinq/burl/internal/fileutil"
	"github.com/re-cinq/burl/internal/git"
	"github.com/re-cinq/burl/internal/lock"
	"github.com/re-cinq/burl/internal/task"
)

// Engine bundles the resolved workflow context and loaded configuration
// every transition needs. It carries no other state: the filesystem and
// the task index it builds on demand are the only source of truth.
type Engine struct {
	Ctx    *burlctx.Context
	Config *config.Config
}

// New constructs an Engine for an already-resolved context and config.
func New(ctx *burlctx.Context, cfg *config.Config) *Engine {
	return &Engine{Ctx: ctx, Config: cfg}
}

// RequireInitialized fails with a user error unless `burl init` has already
// set up the workflow worktree and state directory.
func RequireInitialized(ctx *burlctx.Context) error {
	info, err := os.Stat(ctx.WorkflowState)
	if err != nil || !info.IsDir() {
		return UserError("workflow is not initialized in %s; run `burl init` first", ctx.RepoRoot)
	}
	return nil
}

func (e *Engine) workflowRepo() *git.Repo {
	return git.NewRepo(e.Ctx.WorkflowWorktree)
}

func (e *Engine) buildIndex() (*task.Index, error) {
	idx, err := task.Build(e.Ctx.WorkflowState)
	if err != nil {
		return nil, UserError("building task index: %v", err)
	}
	return idx, nil
}

// resolveTask normalizes and looks up a task ID in idx.
func (e *Engine) resolveTask(idx *task.Index, id string) (task.Entry, error) {
	norm, err := task.ValidateTaskID(id)
	if err != nil {
		return task.Entry{}, UserError("%v", err)
	}
	entry, ok := idx.Find(norm)
	if !ok {
		return task.Entry{}, UserError("task %s not found", norm)
	}
	return entry, nil
}

func requireBucket(entry task.Entry, bucket string) error {
	if entry.Bucket != bucket {
		return UserError("task %s is in %s, not %s", entry.ID, entry.Bucket, bucket)
	}
	return nil
}

// requireWorkflowClean verifies the workflow worktree has no dirty tracked
// files before a mutation window begins (spine step 7).
func (e *Engine) requireWorkflowClean() error {
	dirty, err := e.workflowRepo().HasChanges()
	if err != nil {
		return GitError("checking workflow worktree status", err)
	}
	if dirty {
		return UserError("workflow worktree %s has uncommitted changes; commit them or run `burl doctor`", e.Ctx.WorkflowWorktree)
	}
	return nil
}

func (e *Engine) appendEvent(action events.Action, actor, taskID string, details map[string]any) error {
	ev := events.New(action, actor, taskID, details)
	if err := events.Append(fileutil.EventsLogPath(e.Ctx.WorkflowState), ev); err != nil {
		return UserError("recording event: %v", err)
	}
	return nil
}

// commitWorkflow stages and commits every change in the workflow worktree,
// honoring the configured auto_commit/auto_push flags. With auto_commit
// disabled it is a no-op; with nothing staged after a mutation (should not
// happen in practice, but defends against a mutate closure that changed
// nothing) it skips the commit rather than erroring on "nothing to commit".
func (e *Engine) commitWorkflow(message string) error {
	if !e.Config.AutoCommit() {
		return nil
	}
	repo := e.workflowRepo()
	repo.EnsureIdentity()
	if err := repo.StageAll(); err != nil {
		return GitError("staging workflow worktree", err)
	}
	dirty, err := repo.HasChanges()
	if err != nil {
		return GitError("checking workflow worktree status", err)
	}
	if !dirty {
		return nil
	}
	if err := repo.Commit(message); err != nil {
		return GitError("committing workflow worktree", err)
	}
	if e.Config.AutoPush() {
		if err := repo.Push(e.Config.Remote, e.Config.Workflow.Branch); err != nil {
			return GitError("pushing workflow branch", err)
		}
	}
	return nil
}

// moveTask relocates f's file (already saved at its current path) into
// toBucket, updating f.Path in place.
func (e *Engine) moveTask(f *task.File, toBucket string) error {
	dstDir := fileutil.BucketDir(e.Ctx.WorkflowState, toBucket)
	if err := fileutil.EnsureDir(dstDir); err != nil {
		return UserError("ensuring bucket dir %s: %v", dstDir, err)
	}
	dst := filepath.Join(dstDir, filepath.Base(f.Path))
	if err := fileutil.MoveFile(f.Path, dst); err != nil {
		return UserError("moving task file to %s: %v", toBucket, err)
	}
	f.Path = dst
	return nil
}

// mutateAndCommit implements spine steps 7-12: verify the workflow worktree
// is clean, take the workflow lock, apply mutate (which is expected to
// modify f.Frontmatter and/or f.Body in place), save the file, optionally
// move it to toBucket, append the event, and commit. The caller is
// responsible for everything before this point: resolving and locking the
// task, loading it fresh, and running side-effect-free preconditions.
func (e *Engine) mutateAndCommit(f *task.File, taskID, toBucket string, mutate func(), action events.Action, details map[string]any, commitMsg string) (*task.File, error) {
	if err := e.requireWorkflowClean(); err != nil {
		return nil, err
	}

	guard, err := lock.WorkflowLock(e.Ctx.LocksDir, string(action))
	if err != nil {
		return nil, wrapLockErr(string(action), err)
	}
	defer guard.Release()

	mutate()

	if err := f.Save(); err != nil {
		return nil, UserError("writing task file %s: %v", f.Path, err)
	}

	if toBucket != "" {
		if err := e.moveTask(f, toBucket); err != nil {
			return nil, err
		}
	}

	if err := e.appendEvent(action, lock.Actor(), taskID, details); err != nil {
		return nil, err
	}

	if err := e.commitWorkflow(commitMsg); err != nil {
		return nil, err
	}

	return f, nil
}
