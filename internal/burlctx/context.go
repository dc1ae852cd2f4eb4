// Package burlctx resolves the workflow context: the absolute repo root and
// the canonical paths derived from it. Every other package is handed a
// *Context rather than re-deriving paths from the current working directory.
package burlctx

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/re-cinq/burl/internal/fileutil"
)

// WorkflowBranch is the default name of the long-lived branch the workflow
// worktree is checked out on.
const WorkflowBranch = "burl"

// Context holds every path derived from the repo root. All fields are
// absolute and always inside RepoRoot.
type Context struct {
	RepoRoot         string
	WorkflowWorktree string
	WorkflowState    string
	LocksDir         string
	TaskWorktreeRoot string
}

// NotInRepoError is returned when the cwd is not inside any Git working
// tree. It is a user error, not a git-tool error: the caller never shelled
// out to git to discover this.
type NotInRepoError struct{}

func (NotInRepoError) Error() string { return "not inside a git repository" }

// Resolve walks up from dir looking for a `.git` entry (a directory for a
// normal checkout, or a file containing `gitdir: …` for a linked worktree),
// then derives every other path from the main worktree's root.
//
// Because linked worktrees share object store and refs with the main
// worktree but burl's state must live in exactly one place, a command
// invoked from inside a task worktree (or the workflow worktree itself)
// must resolve back to the same RepoRoot a command invoked from the main
// worktree would.
func Resolve(dir string) (*Context, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path for %s: %w", dir, err)
	}

	gitDir, workTree, err := findGitDir(abs)
	if err != nil {
		return nil, err
	}

	repoRoot, err := mainWorktreeRoot(gitDir, workTree)
	if err != nil {
		return nil, err
	}

	workflowWorktree := fileutil.WorkflowWorktreeDir(repoRoot)
	return &Context{
		RepoRoot:         repoRoot,
		WorkflowWorktree: workflowWorktree,
		WorkflowState:    fileutil.WorkflowStateDir(workflowWorktree),
		LocksDir:         fileutil.LocksDir(fileutil.WorkflowStateDir(workflowWorktree)),
		TaskWorktreeRoot: fileutil.TaskWorktreesRoot(repoRoot),
	}, nil
}

// findGitDir walks up from dir looking for a `.git` entry. It returns the
// resolved git-dir (the directory containing HEAD/refs for this working
// tree) and the working tree root that `.git` entry was found in.
func findGitDir(dir string) (gitDir, workTree string, err error) {
	cur := dir
	for {
		candidate := filepath.Join(cur, ".git")
		info, statErr := os.Stat(candidate)
		if statErr == nil {
			if info.IsDir() {
				return candidate, cur, nil
			}
			resolved, linkErr := resolveGitFile(candidate, cur)
			if linkErr != nil {
				return "", "", linkErr
			}
			return resolved, cur, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", "", NotInRepoError{}
		}
		cur = parent
	}
}

// resolveGitFile parses a linked worktree's `.git` file, which contains a
// single line `gitdir: <path>` pointing at
// `<main-repo>/.git/worktrees/<name>`.
func resolveGitFile(path, base string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if after, ok := strings.CutPrefix(line, "gitdir:"); ok {
			target := strings.TrimSpace(after)
			if !filepath.IsAbs(target) {
				target = filepath.Join(base, target)
			}
			return filepath.Clean(target), nil
		}
	}
	return "", fmt.Errorf("%s: no gitdir: line found", path)
}

// mainWorktreeRoot returns the working tree root of the *main* checkout,
// given a resolved gitDir (which may belong to a linked worktree) and the
// working tree root that was found alongside it.
//
// For a normal checkout, gitDir is `<root>/.git` and workTree is already
// the main root. For a linked worktree, gitDir looks like
// `<main-root>/.git/worktrees/<name>`; its parent's parent's parent is the
// main root's `.git`'s parent, i.e. the main root itself.
func mainWorktreeRoot(gitDir, workTree string) (string, error) {
	if filepath.Base(filepath.Dir(gitDir)) != "worktrees" {
		// Plain checkout: gitDir is workTree/.git.
		return workTree, nil
	}
	worktreesDir := filepath.Dir(gitDir)   // <main-root>/.git/worktrees
	dotGit := filepath.Dir(worktreesDir)   // <main-root>/.git
	mainRoot := filepath.Dir(dotGit)       // <main-root>
	return mainRoot, nil
}
