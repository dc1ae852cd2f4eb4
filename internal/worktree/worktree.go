// Package worktree implements the task worktree lifecycle: deciding on
// and creating a task's branch and linked worktree at a freshly fetched
// base commit, and tearing both down again once a task is done.
package worktree

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/re-cinq/burl/internal/fileutil"
	"github.com/re-cinq/burl/internal/git"
)

// slugPattern matches the slug component of a task branch name.
var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// BranchName builds "task-<NNN>[-<slug>]" for a task number and optional
// human title, sanitized into a branch-safe slug.
func BranchName(number int, slug string) string {
	slug = SanitizeSlug(slug)
	if slug == "" {
		return fmt.Sprintf("task-%03d", number)
	}
	return fmt.Sprintf("task-%03d-%s", number, slug)
}

// SanitizeSlug lowercases title and keeps only alphanumerics and hyphens,
// collapsing runs of other characters into a single hyphen.
func SanitizeSlug(title string) string {
	var b strings.Builder
	prevDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// ErrNoRemote is returned when the configured remote is not configured in
// the repository.
type ErrNoRemote struct{ Remote string }

func (e *ErrNoRemote) Error() string {
	return fmt.Sprintf("remote %q is not configured; add it with `git remote add %s <url>`", e.Remote, e.Remote)
}

// ErrPathNotWorktree is returned when the decided worktree path already
// exists on disk but is not a Git worktree.
type ErrPathNotWorktree struct{ Path string }

func (e *ErrPathNotWorktree) Error() string {
	return fmt.Sprintf("%s already exists and is not a git worktree; remove it or choose a different path", e.Path)
}

// Options configures a Setup call.
type Options struct {
	Remote     string
	MainBranch string
	RepoRoot   string
}

// Result describes the branch and worktree a Setup call produced.
type Result struct {
	Branch  string
	Path    string
	BaseSHA string
	Reused  bool
}

// Setup implements §4.12: verify remote, fetch, resolve base_sha, decide
// branch/worktree, create or reuse them.
//
// recordedBranch/recordedWorktree are the task's previously recorded git
// triple, if any (nonempty on a re-claim after rejection); when present
// they take precedence over the conventional name/path.
func Setup(repo *git.Repo, opts Options, number int, slug, recordedBranch, recordedWorktree string) (Result, error) {
	if !repo.RemoteExists(opts.Remote) {
		return Result{}, &ErrNoRemote{Remote: opts.Remote}
	}
	if err := repo.Fetch(opts.Remote, opts.MainBranch); err != nil {
		return Result{}, fmt.Errorf("fetching %s/%s: %w", opts.Remote, opts.MainBranch, err)
	}

	remoteRef := opts.Remote + "/" + opts.MainBranch
	baseSHA, err := repo.HeadCommit(remoteRef + "^{commit}")
	if err != nil {
		return Result{}, fmt.Errorf("resolving %s: %w", remoteRef, err)
	}

	branch := recordedBranch
	if branch == "" {
		branch = BranchName(number, slug)
	}

	path := remapOrDefault(recordedWorktree, opts.RepoRoot, branch)

	existing, err := repo.ListWorktrees()
	if err != nil {
		return Result{}, fmt.Errorf("listing worktrees: %w", err)
	}
	for _, w := range existing {
		if w.Branch == branch {
			return Result{Branch: branch, Path: w.Path, BaseSHA: baseSHA, Reused: true}, nil
		}
	}

	if pathOccupiedByForeignDir(path, existing) {
		return Result{}, &ErrPathNotWorktree{Path: path}
	}

	branchCreated := false
	if !repo.BranchExists(branch) {
		if err := repo.CreateBranch(branch, baseSHA); err != nil {
			return Result{}, fmt.Errorf("creating branch %s at %s: %w", branch, baseSHA, err)
		}
		branchCreated = true
	}

	if err := fileutil.EnsureDir(filepath.Dir(path)); err != nil {
		return Result{}, fmt.Errorf("ensuring worktree parent dir: %w", err)
	}
	if err := repo.CreateWorktree(path, branch); err != nil {
		if branchCreated {
			_ = repo.DeleteBranch(branch, true)
		}
		return Result{}, fmt.Errorf("creating worktree %s for branch %s: %w", path, branch, err)
	}

	return Result{Branch: branch, Path: path, BaseSHA: baseSHA, Reused: false}, nil
}

// remapOrDefault returns the recorded worktree path, remapped onto the
// local repo root if it ends with ".worktrees/<branch>" (the documented
// cross-machine portability affordance), or the conventional default path
// when no path was recorded.
func remapOrDefault(recorded, repoRoot, branch string) string {
	suffix := filepath.Join(".worktrees", branch)
	if recorded != "" && strings.HasSuffix(filepath.ToSlash(recorded), filepath.ToSlash(suffix)) {
		return filepath.Join(repoRoot, suffix)
	}
	if recorded != "" {
		return recorded
	}
	return fileutil.TaskWorktreePath(repoRoot, branch)
}

func pathOccupiedByForeignDir(path string, existing []git.ExistingWorktree) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	for _, w := range existing {
		if filepath.Clean(w.Path) == filepath.Clean(path) {
			return false
		}
	}
	return true
}

// Cleanup removes a task's worktree (refusing a dirty one unless force)
// and then deletes its branch.
func Cleanup(repo *git.Repo, path, branch string, force bool) error {
	if !force {
		wtRepo := git.NewRepo(path)
		dirty, err := wtRepo.HasChanges()
		if err == nil && dirty {
			return fmt.Errorf("worktree %s has uncommitted changes; refusing to remove without force", path)
		}
	}
	if err := repo.RemoveWorktree(path, force); err != nil {
		return fmt.Errorf("removing worktree %s: %w", path, err)
	}
	if err := repo.DeleteBranch(branch, force); err != nil {
		return fmt.Errorf("deleting branch %s: %w", branch, err)
	}
	return nil
}

// ValidSlug reports whether s matches the branch slug grammar.
func ValidSlug(s string) bool {
	return s == "" || slugPattern.MatchString(s)
}
