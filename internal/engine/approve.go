package engine

import (
	"fmt"
	"os"
	"time"

	"github.com/re-cinq/burl/internal/config"
	"github.com/re-cinq/burl/internal/events"
	"github.com/re-cinq/burl/internal/git"
	"github.com/re-cinq/burl/internal/lock"
	"github.com/re-cinq/burl/internal/task"
	"github.com/re-cinq/burl/internal/worktree"
)

// Approve implements §4.13.5: QA → DONE. strategyOverride, if nonempty,
// overrides the configured approve_strategy for this one call.
func (e *Engine) Approve(taskID string, strategyOverride config.ApproveStrategy) (*task.File, error) {
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

	guard, err := lock.TaskLock(e.Ctx.LocksDir, entry.ID, "approve")
	if err != nil {
		return nil, wrapLockErr("approve", err)
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

	strategy := strategyOverride
	if strategy == "" {
		strategy = e.Config.ApproveStrategy
	}

	mainRepo := git.NewRepo(e.Ctx.RepoRoot)
	taskRepo := git.NewRepo(f.Frontmatter.Worktree)
	remoteRef := e.Config.Remote + "/" + e.Config.MainBranch

	if strategy != config.ApproveManual {
		if err := mainRepo.Fetch(e.Config.Remote, e.Config.MainBranch); err != nil {
			return nil, GitError("fetching "+remoteRef, err)
		}
	}

	switch strategy {
	case config.ApproveRebaseFFOnly, "":
		if err := taskRepo.RebaseOnto(remoteRef); err != nil {
			return e.failApprove(KindGit, f, entry, "rebase conflict")
		}
		result, err := e.runChecks(taskRepo, f, remoteRef)
		if err != nil {
			return nil, err
		}
		if !result.Passed {
			return e.failApprove(KindValidation, f, entry, "validation failed after rebase")
		}
		if err := e.mergeIntoMain(mainRepo, f); err != nil {
			return e.failApprove(KindGit, f, entry, "non-fast-forward merge required")
		}

	case config.ApproveFFOnly:
		if !taskRepo.IsAncestor(remoteRef, "HEAD") {
			return e.failApprove(KindGit, f, entry, fmt.Sprintf("task branch %s is not a descendant of %s; rebase required", f.Frontmatter.Branch, remoteRef))
		}
		result, err := e.runChecks(taskRepo, f, f.Frontmatter.BaseSHA)
		if err != nil {
			return nil, err
		}
		if !result.Passed {
			return e.failApprove(KindValidation, f, entry, "validation failed")
		}
		if err := e.mergeIntoMain(mainRepo, f); err != nil {
			return e.failApprove(KindGit, f, entry, "non-fast-forward merge required")
		}

	case config.ApproveManual:
		// No automatic merge: the operator is trusted to have already
		// merged the task branch into main themselves.

	default:
		return nil, UserError("unknown approve strategy %q", strategy)
	}

	if strategy != config.ApproveManual {
		if cleanupErr := worktree.Cleanup(mainRepo, f.Frontmatter.Worktree, f.Frontmatter.Branch, false); cleanupErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not clean up worktree for %s: %v\n", entry.ID, cleanupErr)
		}
	}

	return e.mutateAndCommit(f, entry.ID, "DONE", func() {
		now := time.Now().UTC()
		f.Frontmatter.CompletedAt = &now
	}, events.ActionApprove, map[string]any{"strategy": string(strategy)}, fmt.Sprintf("approve %s", entry.ID))
}

func (e *Engine) mergeIntoMain(mainRepo *git.Repo, f *task.File) error {
	if err := mainRepo.CheckoutBranch(e.Config.MainBranch); err != nil {
		return GitError("checking out "+e.Config.MainBranch, err)
	}
	if err := mainRepo.MergeFFOnly(f.Frontmatter.Branch); err != nil {
		return GitError("fast-forward merging "+f.Frontmatter.Branch, err)
	}
	if e.Config.AutoPush() {
		if err := mainRepo.Push(e.Config.Remote, e.Config.MainBranch); err != nil {
			return GitError("pushing "+e.Config.MainBranch, err)
		}
	}
	return nil
}

// failApprove rejects the task back to READY/BLOCKED with reason, then
// reports the approve call itself as failed with the given error kind. If
// the reject mutation fails, that error is surfaced instead.
func (e *Engine) failApprove(kind Kind, f *task.File, entry task.Entry, reason string) (*task.File, error) {
	rejected, err := e.applyReject(f, entry, reason)
	if err != nil {
		return nil, err
	}
	return rejected, &Error{Kind: kind, Message: fmt.Sprintf("approve failed: %s (task rejected)", reason)}
}
