package engine

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/re-cinq/burl/internal/config"
	"github.com/re-cinq/burl/internal/diff"
	"github.com/re-cinq/burl/internal/events"
	"github.com/re-cinq/burl/internal/git"
	"github.com/re-cinq/burl/internal/lock"
	"github.com/re-cinq/burl/internal/task"
	"github.com/re-cinq/burl/internal/worktree"
)

// Claim implements §4.13.2: READY → DOING. With an empty taskID it picks
// the first READY task (by ascending numeric ID) whose dependencies are
// all DONE, optionally serialized by the global claim lock so two
// concurrent auto-picks never choose the same task.
func (e *Engine) Claim(taskID string, useClaimLock bool) (*task.File, error) {
	if err := RequireInitialized(e.Ctx); err != nil {
		return nil, err
	}

	var claimGuard *lock.Guard
	if taskID == "" && useClaimLock {
		g, err := lock.ClaimLock(e.Ctx.LocksDir, "claim")
		if err != nil {
			return nil, wrapLockErr("claim", err)
		}
		claimGuard = g
		defer claimGuard.Release()
	}

	idx, err := e.buildIndex()
	if err != nil {
		return nil, err
	}

	var entry task.Entry
	if taskID != "" {
		entry, err = e.resolveTask(idx, taskID)
		if err != nil {
			return nil, err
		}
		if err := requireBucket(entry, "READY"); err != nil {
			return nil, err
		}
	} else {
		picked, ok, err := pickNextReady(idx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, UserError("no claimable READY task found (all are blocked on dependencies, or READY is empty)")
		}
		entry = picked
	}

	guard, err := lock.TaskLock(e.Ctx.LocksDir, entry.ID, "claim")
	if err != nil {
		return nil, wrapLockErr("claim", err)
	}
	defer guard.Release()

	f, err := task.Load(entry.Path)
	if err != nil {
		return nil, UserError("loading task file: %v", err)
	}
	if err := requireBucket(entry, "READY"); err != nil {
		return nil, err
	}
	// A rejected task keeps its git triple and started_at so it can be
	// reworked in place; those fields are checked by the re-claim safety
	// step below rather than by the READY invariants.
	readyFM := f.Frontmatter
	if readyFM.QAAttempts > 0 && readyFM.Branch != "" && readyFM.Worktree != "" && readyFM.BaseSHA != "" {
		readyFM.Branch, readyFM.Worktree, readyFM.BaseSHA, readyFM.StartedAt = "", "", "", nil
	}
	if err := readyFM.ValidateBucketInvariants("READY"); err != nil {
		return nil, UserError("%v", err)
	}

	if err := e.checkDependencies(idx, f); err != nil {
		return nil, err
	}

	if err := e.checkClaimConflicts(idx, entry, f); err != nil {
		return nil, err
	}

	mainRepo := git.NewRepo(e.Ctx.RepoRoot)
	if f.Frontmatter.Branch != "" {
		if err := verifyReclaimSafety(mainRepo, f.Frontmatter.Branch); err != nil {
			return nil, err
		}
	}

	slug := task.Slugify(f.Frontmatter.Title)
	result, err := worktree.Setup(mainRepo, worktree.Options{
		Remote:     e.Config.Remote,
		MainBranch: e.Config.MainBranch,
		RepoRoot:   e.Ctx.RepoRoot,
	}, entry.Number, slug, f.Frontmatter.Branch, f.Frontmatter.Worktree)
	if err != nil {
		var noRemote *worktree.ErrNoRemote
		var notWt *worktree.ErrPathNotWorktree
		if errors.As(err, &noRemote) || errors.As(err, &notWt) {
			return nil, UserError("%v", err)
		}
		return nil, GitError("setting up task worktree", err)
	}

	baseSHA := result.BaseSHA
	if result.Reused && f.Frontmatter.BaseSHA != "" {
		baseSHA = f.Frontmatter.BaseSHA
	}

	return e.mutateAndCommit(f, entry.ID, "DOING", func() {
		now := time.Now().UTC()
		f.Frontmatter.AssignedTo = lock.Actor()
		f.Frontmatter.StartedAt = &now
		f.Frontmatter.Branch = result.Branch
		f.Frontmatter.Worktree = result.Path
		f.Frontmatter.BaseSHA = baseSHA
	}, events.ActionClaim, map[string]any{
		"branch":   result.Branch,
		"worktree": result.Path,
		"base_sha": baseSHA,
		"reused":   result.Reused,
	}, fmt.Sprintf("claim %s", entry.ID))
}

// pickNextReady returns the first READY task (by ascending numeric ID)
// whose declared dependencies are all DONE.
func pickNextReady(idx *task.Index) (task.Entry, bool, error) {
	candidates := idx.ByBucket("READY")
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Number < candidates[j].Number })
	for _, c := range candidates {
		f, err := task.Load(c.Path)
		if err != nil {
			return task.Entry{}, false, UserError("loading task file %s: %v", c.Path, err)
		}
		if dependenciesSatisfied(idx, f) {
			return c, true, nil
		}
	}
	return task.Entry{}, false, nil
}

func dependenciesSatisfied(idx *task.Index, f *task.File) bool {
	for _, dep := range f.Frontmatter.DependsOn {
		depEntry, ok := idx.Find(dep)
		if !ok || depEntry.Bucket != "DONE" {
			return false
		}
	}
	return true
}

func (e *Engine) checkDependencies(idx *task.Index, f *task.File) error {
	for _, dep := range f.Frontmatter.DependsOn {
		depEntry, ok := idx.Find(dep)
		if !ok {
			return UserError("task %s depends on %s, which does not exist", f.Frontmatter.ID, dep)
		}
		if depEntry.Bucket != "DONE" {
			return UserError("task %s depends on %s, which is in %s (not DONE)", f.Frontmatter.ID, dep, depEntry.Bucket)
		}
	}
	return nil
}

func verifyReclaimSafety(mainRepo *git.Repo, branch string) error {
	if !mainRepo.BranchExists(branch) {
		return UserError("task's previously recorded branch %s no longer exists; run `burl doctor`", branch)
	}
	existing, err := mainRepo.ListWorktrees()
	if err != nil {
		return GitError("listing worktrees", err)
	}
	for _, w := range existing {
		if w.Branch == branch {
			return nil
		}
	}
	return UserError("task's previously recorded worktree for branch %s is missing; run `burl doctor`", branch)
}

// checkClaimConflicts implements the scope-conflict half of §4.13.2: it
// compares the candidate task's declared scope against every currently
// DOING task under the configured detection mode, and applies the
// configured policy to any overlap found.
func (e *Engine) checkClaimConflicts(idx *task.Index, entry task.Entry, candidate *task.File) error {
	if e.Config.ConflictPolicy == config.ConflictIgnore {
		return nil
	}

	var conflicts []string
	for _, other := range idx.ByBucket("DOING") {
		if other.ID == entry.ID {
			continue
		}
		otherFile, err := task.Load(other.Path)
		if err != nil {
			return UserError("loading task file %s: %v", other.Path, err)
		}

		var overlap []string
		switch e.Config.ConflictDetection {
		case config.ConflictDiff:
			overlap, err = e.diffConflict(candidate, otherFile)
		case config.ConflictHybrid:
			declared := declaredOverlap(candidate.Frontmatter, otherFile.Frontmatter)
			var diffOv []string
			diffOv, err = e.diffConflict(candidate, otherFile)
			overlap = unionStrings(declared, diffOv)
		default: // config.ConflictDeclared and unset
			overlap = declaredOverlap(candidate.Frontmatter, otherFile.Frontmatter)
		}
		if err != nil {
			return err
		}
		if len(overlap) > 0 {
			conflicts = append(conflicts, fmt.Sprintf("%s (%s)", other.ID, strings.Join(overlap, ", ")))
		}
	}

	if len(conflicts) == 0 {
		return nil
	}

	message := fmt.Sprintf("task %s overlaps in-progress scope: %s", entry.ID, strings.Join(conflicts, "; "))
	switch e.Config.ConflictPolicy {
	case config.ConflictFail:
		return UserError("%s", message)
	default: // warn
		fmt.Fprintf(os.Stderr, "warning: %s\n", message)
		return nil
	}
}

func (e *Engine) diffConflict(candidate, other *task.File) ([]string, error) {
	if other.Frontmatter.Worktree == "" || other.Frontmatter.BaseSHA == "" {
		return nil, nil
	}
	repo := git.NewRepo(other.Frontmatter.Worktree)
	out, err := repo.DiffNameOnly(other.Frontmatter.BaseSHA, "HEAD")
	if err != nil {
		return nil, GitError(fmt.Sprintf("diffing in-progress worktree for %s", other.Frontmatter.ID), err)
	}
	changed := diff.ParseChangedFiles(out)
	var overlap []string
	for _, path := range changed {
		if matchesScope(candidate.Frontmatter.Affects, candidate.Frontmatter.AffectsGlobs, path) {
			overlap = append(overlap, path)
		}
	}
	sort.Strings(overlap)
	return overlap, nil
}

// matchesScope reports whether path is within a declared affects/globs set.
func matchesScope(affects, affectsGlobs []string, path string) bool {
	norm := strings.ReplaceAll(path, "\\", "/")
	for _, a := range affects {
		if strings.ReplaceAll(a, "\\", "/") == norm {
			return true
		}
	}
	if len(affectsGlobs) > 0 {
		if ignore.CompileIgnoreLines(affectsGlobs...).MatchesPath(norm) {
			return true
		}
	}
	return false
}

// declaredOverlap finds declared paths of either task that fall within the
// other task's declared scope. Glob-versus-glob overlap (two pattern sets
// that could someday match the same file without either side declaring an
// exact path today) is not computed, since deciding it in general requires
// enumerating the working tree; declared-mode conflict detection is
// therefore a conservative approximation, not an exhaustive one.
func declaredOverlap(a, b task.Frontmatter) []string {
	seen := make(map[string]bool)
	var overlap []string
	add := func(paths []string, affects, globs []string) {
		for _, p := range paths {
			if matchesScope(affects, globs, p) && !seen[p] {
				seen[p] = true
				overlap = append(overlap, p)
			}
		}
	}
	add(a.Affects, b.Affects, b.AffectsGlobs)
	add(b.Affects, a.Affects, a.AffectsGlobs)
	sort.Strings(overlap)
	return overlap
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
