package engine

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/re-cinq/burl/internal/git"
	"github.com/re-cinq/burl/internal/lock"
	"github.com/re-cinq/burl/internal/task"
)

// IssueSeverity distinguishes a problem that should be looked at from one
// that breaks an invariant outright.
type IssueSeverity string

const (
	SeverityWarning IssueSeverity = "WARNING"
	SeverityError   IssueSeverity = "ERROR"
)

// Issue is one thing Doctor found wrong with workflow state.
type Issue struct {
	Severity    IssueSeverity
	Category    string
	Description string
	Path        string
	Remediation string
}

// DoctorReport aggregates every issue a Doctor run found, plus any repairs
// performed (repair mode clears stale locks only; every other issue needs a
// human to decide the fix).
type DoctorReport struct {
	Issues  []Issue
	Repairs []string
}

func (r *DoctorReport) HasIssues() bool { return len(r.Issues) > 0 }

// Doctor implements the read-only (default) and repair (Repair=true)
// workflow health check: stale locks, tasks whose bucket invariants
// don't hold, missing worktrees/branches for in-flight tasks, and orphan
// worktree directories not referenced by any task. Repair mode performs
// exactly one safe fix: clearing locks already past the staleness
// threshold. Everything else is reported only, since fixing a bucket
// mismatch or a missing worktree requires a judgment call about which side
// (frontmatter or filesystem) is the truth.
func (e *Engine) Doctor(repair bool) (*DoctorReport, error) {
	if err := RequireInitialized(e.Ctx); err != nil {
		return nil, err
	}

	report := &DoctorReport{}

	idx, err := e.buildIndex()
	if err != nil {
		return nil, err
	}

	staleAfter := lock.StaleAfter
	if e.Config.Workflow.LockStaleThreshold > 0 {
		staleAfter = e.Config.Workflow.LockStaleThreshold.Duration()
	}

	locks, err := lock.List(e.Ctx.LocksDir)
	if err != nil {
		return nil, GitError("listing locks", err)
	}
	for _, l := range locks {
		age := time.Since(l.Meta.CreatedAt)
		if age > staleAfter {
			if repair {
				name := l.Name
				if err := lock.Clear(e.Ctx.LocksDir, name); err != nil {
					report.Issues = append(report.Issues, Issue{
						Severity:    SeverityError,
						Category:    "lock",
						Description: fmt.Sprintf("failed to clear stale lock %s: %v", name, err),
						Path:        l.Path,
					})
				} else {
					report.Repairs = append(report.Repairs, fmt.Sprintf("cleared stale lock %s (age %s)", name, age.Round(time.Second)))
				}
				continue
			}
			report.Issues = append(report.Issues, Issue{
				Severity:    SeverityWarning,
				Category:    "lock",
				Description: fmt.Sprintf("lock %s held by %s is stale (age %s)", l.Name, l.Meta.Owner, age.Round(time.Second)),
				Path:        l.Path,
				Remediation: "burl lock clear --force " + l.Name,
			})
		}
	}

	mainRepo := git.NewRepo(e.Ctx.RepoRoot)
	existingWorktrees, err := mainRepo.ListWorktrees()
	if err != nil {
		return nil, GitError("listing worktrees", err)
	}
	knownWorktrees := make(map[string]bool, len(existingWorktrees))
	for _, w := range existingWorktrees {
		knownWorktrees[filepath.Clean(w.Path)] = true
	}

	for _, entry := range idx.All() {
		f, err := task.Load(entry.Path)
		if err != nil {
			report.Issues = append(report.Issues, Issue{
				Severity:    SeverityError,
				Category:    "task",
				Description: fmt.Sprintf("%s: could not load task file: %v", entry.ID, err),
				Path:        entry.Path,
			})
			continue
		}

		if err := f.Frontmatter.ValidateBucketInvariants(entry.Bucket); err != nil {
			report.Issues = append(report.Issues, Issue{
				Severity:    SeverityError,
				Category:    "bucket",
				Description: fmt.Sprintf("%s: %v", entry.ID, err),
				Path:        entry.Path,
			})
		}

		if f.Frontmatter.Worktree == "" || entry.Bucket == "DONE" {
			continue
		}
		if !knownWorktrees[filepath.Clean(f.Frontmatter.Worktree)] {
			report.Issues = append(report.Issues, Issue{
				Severity:    SeverityError,
				Category:    "worktree",
				Description: fmt.Sprintf("%s: recorded worktree %s is missing", entry.ID, f.Frontmatter.Worktree),
				Path:        f.Frontmatter.Worktree,
				Remediation: "burl doctor cannot recreate a worktree; reclaim or manually recreate it",
			})
		}
		if f.Frontmatter.Branch != "" && !mainRepo.BranchExists(f.Frontmatter.Branch) {
			report.Issues = append(report.Issues, Issue{
				Severity:    SeverityError,
				Category:    "branch",
				Description: fmt.Sprintf("%s: recorded branch %s does not exist", entry.ID, f.Frontmatter.Branch),
				Remediation: "git branch " + f.Frontmatter.Branch + " <base_sha>",
			})
		}
	}

	knownByTask := make(map[string]bool, len(idx.All()))
	for _, entry := range idx.All() {
		f, err := task.Load(entry.Path)
		if err != nil {
			continue
		}
		if f.Frontmatter.Worktree != "" {
			knownByTask[filepath.Clean(f.Frontmatter.Worktree)] = true
		}
	}
	for _, w := range existingWorktrees {
		clean := filepath.Clean(w.Path)
		if clean == filepath.Clean(e.Ctx.RepoRoot) || clean == filepath.Clean(e.Ctx.WorkflowWorktree) {
			continue
		}
		if !knownByTask[clean] {
			report.Issues = append(report.Issues, Issue{
				Severity:    SeverityWarning,
				Category:    "worktree",
				Description: fmt.Sprintf("orphan worktree %s (branch %s) is not referenced by any task", w.Path, w.Branch),
				Path:        w.Path,
				Remediation: "burl clean",
			})
		}
	}

	sort.Slice(report.Issues, func(i, j int) bool {
		if report.Issues[i].Category != report.Issues[j].Category {
			return report.Issues[i].Category < report.Issues[j].Category
		}
		return report.Issues[i].Description < report.Issues[j].Description
	})

	return report, nil
}
