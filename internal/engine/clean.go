package engine

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/re-cinq/burl/internal/events"
	"github.com/re-cinq/burl/internal/git"
	"github.com/re-cinq/burl/internal/lock"
	"github.com/re-cinq/burl/internal/task"
)

// CleanCandidate names one worktree Clean would remove.
type CleanCandidate struct {
	Path   string
	Branch string
	TaskID string // empty for an orphan not referenced by any task
}

// CleanPlan is what a Clean dry run (or the prelude to a real one) found.
type CleanPlan struct {
	Completed []CleanCandidate // worktrees belonging to a DONE task
	Orphans   []CleanCandidate // worktrees not referenced by any task
}

func (p *CleanPlan) Empty() bool { return len(p.Completed) == 0 && len(p.Orphans) == 0 }

// PlanClean builds the cleanup plan without deleting anything: worktrees
// still present for DONE tasks, plus worktrees under the task worktree root
// that no task references at all. It never touches anything outside
// Ctx.TaskWorktreeRoot.
func (e *Engine) PlanClean() (*CleanPlan, error) {
	if err := RequireInitialized(e.Ctx); err != nil {
		return nil, err
	}

	idx, err := e.buildIndex()
	if err != nil {
		return nil, err
	}

	mainRepo := git.NewRepo(e.Ctx.RepoRoot)
	existing, err := mainRepo.ListWorktrees()
	if err != nil {
		return nil, GitError("listing worktrees", err)
	}

	byWorktree := make(map[string]task.Entry, len(idx.All()))
	for _, entry := range idx.All() {
		f, err := task.Load(entry.Path)
		if err != nil {
			continue
		}
		if f.Frontmatter.Worktree != "" {
			byWorktree[filepath.Clean(f.Frontmatter.Worktree)] = entry
		}
	}

	plan := &CleanPlan{}
	root := filepath.Clean(e.Ctx.TaskWorktreeRoot)
	for _, w := range existing {
		clean := filepath.Clean(w.Path)
		rel, err := filepath.Rel(root, clean)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue // never touches anything outside the task worktree root
		}

		entry, isTask := byWorktree[clean]
		switch {
		case isTask && entry.Bucket == "DONE":
			plan.Completed = append(plan.Completed, CleanCandidate{Path: w.Path, Branch: w.Branch, TaskID: entry.ID})
		case !isTask:
			plan.Orphans = append(plan.Orphans, CleanCandidate{Path: w.Path, Branch: w.Branch})
		}
	}
	return plan, nil
}

// Clean removes every candidate in plan: the worktree (refusing a dirty one
// unless force) and, for orphans only, leaves the branch alone (an orphan's
// branch may still be wanted; only a task's own approve/reject lifecycle
// decides to delete a task branch). Completed-task worktrees have their
// branch deleted too, mirroring what Approve's own best-effort cleanup does.
// Appends a single `clean` event recording what was removed.
func (e *Engine) Clean(plan *CleanPlan, force bool) (removed int, err error) {
	if plan.Empty() {
		return 0, nil
	}

	if err := e.requireWorkflowClean(); err != nil {
		return 0, err
	}

	guard, err := lock.WorkflowLock(e.Ctx.LocksDir, "clean")
	if err != nil {
		return 0, wrapLockErr("clean", err)
	}
	defer guard.Release()

	mainRepo := git.NewRepo(e.Ctx.RepoRoot)
	var removedPaths []string
	var skipped []string

	removeOne := func(c CleanCandidate, deleteBranch bool) {
		if err := mainRepo.RemoveWorktree(c.Path, force); err != nil {
			skipped = append(skipped, fmt.Sprintf("%s: %v", c.Path, err))
			return
		}
		if deleteBranch && c.Branch != "" {
			_ = mainRepo.DeleteBranch(c.Branch, force)
		}
		removedPaths = append(removedPaths, c.Path)
	}

	for _, c := range plan.Completed {
		removeOne(c, true)
	}
	for _, c := range plan.Orphans {
		removeOne(c, false)
	}

	if len(removedPaths) == 0 {
		if len(skipped) > 0 {
			return 0, UserError("clean: nothing removed; %d item(s) skipped: %v", len(skipped), skipped)
		}
		return 0, nil
	}

	if err := e.appendEvent(events.ActionClean, lock.Actor(), "", map[string]any{
		"removed": removedPaths,
		"skipped": skipped,
	}); err != nil {
		return 0, err
	}

	if err := e.commitWorkflow(fmt.Sprintf("clean: remove %d worktree(s)", len(removedPaths))); err != nil {
		return 0, err
	}

	return len(removedPaths), nil
}
