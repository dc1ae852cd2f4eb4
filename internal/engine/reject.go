package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/re-cinq/burl/internal/events"
	"github.com/re-cinq/burl/internal/lock"
	"github.com/re-cinq/burl/internal/task"
)

// Reject implements §4.13.6: QA → READY or BLOCKED. A nonempty reason is
// mandatory. branch/worktree/base_sha are preserved so the task can be
// reworked in place without a fresh worktree.
func (e *Engine) Reject(taskID, reason string) (*task.File, error) {
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

	guard, err := lock.TaskLock(e.Ctx.LocksDir, entry.ID, "reject")
	if err != nil {
		return nil, wrapLockErr("reject", err)
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

	return e.applyReject(f, entry, reason)
}

// applyReject performs the READY/BLOCKED mutation itself, assuming the
// caller already holds the task lock (and, for Reject, already verified
// the source bucket). It is also called by Approve when a post-QA check
// fails, without acquiring a second task lock.
func (e *Engine) applyReject(f *task.File, entry task.Entry, reason string) (*task.File, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, UserError("reject requires a non-empty reason")
	}

	qaAttempts := f.Frontmatter.QAAttempts + 1
	toBucket := "READY"
	if e.Config.Workflow.QAMaxAttempts > 0 && qaAttempts >= e.Config.Workflow.QAMaxAttempts {
		toBucket = "BLOCKED"
	}

	now := time.Now().UTC()
	actor := lock.Actor()
	return e.mutateAndCommit(f, entry.ID, toBucket, func() {
		f.Frontmatter.QAAttempts = qaAttempts
		f.Frontmatter.SubmittedAt = nil
		if toBucket == "READY" && e.Config.Workflow.BoostPriorityOnReject {
			f.Frontmatter.Priority = task.PriorityHigh
		}
		f.Body += rejectionBlock(now, actor, qaAttempts, reason)
	}, events.ActionReject, map[string]any{
		"reason":        reason,
		"qa_attempts":   qaAttempts,
		"target_bucket": toBucket,
	}, fmt.Sprintf("reject %s", entry.ID))
}
