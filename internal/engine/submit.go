package engine

import (
	"fmt"
	"time"

	"github.com/re-cinq/burl/internal/diff"
	"github.com/re-cinq/burl/internal/events"
	"github.com/re-cinq/burl/internal/git"
	"github.com/re-cinq/burl/internal/lock"
	"github.com/re-cinq/burl/internal/scope"
	"github.com/re-cinq/burl/internal/stub"
	"github.com/re-cinq/burl/internal/task"
)

// Submit implements §4.13.3: DOING → QA. Preconditions run before any lock
// on workflow state: the git triple must be valid, at least one commit
// must exist since base_sha, and both the scope and stub validators must
// pass over the worktree's changes. Only scope and stubs run here — the
// command-step validation pipeline is reserved for `validate`/`approve`.
func (e *Engine) Submit(taskID string) (*task.File, error) {
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
	if err := requireBucket(entry, "DOING"); err != nil {
		return nil, err
	}

	guard, err := lock.TaskLock(e.Ctx.LocksDir, entry.ID, "submit")
	if err != nil {
		return nil, wrapLockErr("submit", err)
	}
	defer guard.Release()

	f, err := task.Load(entry.Path)
	if err != nil {
		return nil, UserError("loading task file: %v", err)
	}
	if err := requireBucket(entry, "DOING"); err != nil {
		return nil, err
	}
	if err := f.Frontmatter.ValidateBucketInvariants("DOING"); err != nil {
		return nil, UserError("%v", err)
	}

	mainRepo := git.NewRepo(e.Ctx.RepoRoot)
	existing, err := mainRepo.ListWorktrees()
	if err != nil {
		return nil, GitError("listing worktrees", err)
	}
	found := false
	for _, w := range existing {
		if w.Branch == f.Frontmatter.Branch {
			found = true
			break
		}
	}
	if !found {
		return nil, UserError("task %s's recorded worktree for branch %s is missing; run `burl doctor`", entry.ID, f.Frontmatter.Branch)
	}

	taskRepo := git.NewRepo(f.Frontmatter.Worktree)
	commitCount, err := taskRepo.RevListCount(f.Frontmatter.BaseSHA, "HEAD")
	if err != nil {
		return nil, GitError("counting commits since base_sha", err)
	}
	if commitCount == 0 {
		return nil, UserError("task %s has no commits on branch %s since base_sha %s", entry.ID, f.Frontmatter.Branch, f.Frontmatter.BaseSHA)
	}

	changedOut, err := taskRepo.DiffNameOnly(f.Frontmatter.BaseSHA, "HEAD")
	if err != nil {
		return nil, GitError("diffing changed files", err)
	}
	changedFiles := diff.ParseChangedFiles(changedOut)

	scopeResult := scope.Validate(f.Frontmatter.Affects, f.Frontmatter.AffectsGlobs, f.Frontmatter.MustNotTouch, changedFiles)
	if !scopeResult.Pass {
		return nil, ValidationError("scope violation: %s", formatScopeViolations(scopeResult.Violations))
	}

	unifiedOut, err := taskRepo.DiffUnified0(f.Frontmatter.BaseSHA, "HEAD")
	if err != nil {
		return nil, GitError("diffing added lines", err)
	}
	addedLines := diff.ParseAddedLines(unifiedOut)

	stubValidator, err := stub.NewValidator(e.Config.StubPatterns, e.Config.StubCheckExts)
	if err != nil {
		return nil, UserError("invalid stub_patterns configuration: %v", err)
	}
	stubViolations := stubValidator.Check(addedLines)
	if len(stubViolations) > 0 {
		return nil, ValidationError("stub markers found: %s", formatStubViolations(stubViolations))
	}

	if e.Config.AutoPush() {
		if err := taskRepo.Push(e.Config.Remote, f.Frontmatter.Branch); err != nil {
			return nil, GitError("pushing task branch", err)
		}
	}

	return e.mutateAndCommit(f, entry.ID, "QA", func() {
		now := time.Now().UTC()
		f.Frontmatter.SubmittedAt = &now
	}, events.ActionSubmit, map[string]any{"commit_count": commitCount}, fmt.Sprintf("submit %s", entry.ID))
}
