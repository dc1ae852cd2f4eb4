package acceptance_test

import (
	"os"
	"os/exec"
	"path/filepath"

	. "github.com/onsi/gomega"
)

func runGit(dir string, args ...string) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test",
		"GIT_AUTHOR_EMAIL=test@test.com",
		"GIT_COMMITTER_NAME=Test",
		"GIT_COMMITTER_EMAIL=test@test.com",
	)
	out, err := cmd.CombinedOutput()
	ExpectWithOffset(1, err).NotTo(HaveOccurred(), "git %v: %s", args, string(out))
}

func runGitOutput(dir string, args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	ExpectWithOffset(1, err).NotTo(HaveOccurred(), "git %v: %s", args, string(out))
	return string(out)
}

func writeFile(path, content string) {
	dir := filepath.Dir(path)
	err := os.MkdirAll(dir, 0755)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	err = os.WriteFile(path, []byte(content), 0644)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
}

// burlRepo is a temporary git repository with a bare "origin" remote, a
// "main" branch already pushed, and an initial commit — the shape every
// task workflow scenario needs before `burl init` can run.
type burlRepo struct {
	tmpDir    string
	repoDir   string
	remoteDir string
}

// newBurlRepo creates the repo and its bare remote under a fresh temp dir.
func newBurlRepo() *burlRepo {
	tmpDir, err := os.MkdirTemp("", "burl-test-*")
	ExpectWithOffset(1, err).NotTo(HaveOccurred())

	remoteDir := filepath.Join(tmpDir, "remote.git")
	runGit(tmpDir, "init", "--bare", "--initial-branch=main", remoteDir)

	repoDir := filepath.Join(tmpDir, "repo")
	runGit(tmpDir, "init", "--initial-branch=main", repoDir)
	writeFile(filepath.Join(repoDir, "README.md"), "# test repo\n")
	runGit(repoDir, "add", "README.md")
	runGit(repoDir, "commit", "-m", "initial commit")
	runGit(repoDir, "remote", "add", "origin", remoteDir)
	runGit(repoDir, "push", "origin", "main")

	return &burlRepo{tmpDir: tmpDir, repoDir: repoDir, remoteDir: remoteDir}
}

func (r *burlRepo) cleanup() {
	cleanupTestRepo(r.repoDir, r.tmpDir)
}

// burl runs the burl binary in the repo's working directory.
func (r *burlRepo) burl(args ...string) ([]byte, error) {
	cmd := exec.Command(binaryPath, args...)
	cmd.Dir = r.repoDir
	return cmd.CombinedOutput()
}

// burlIn runs the burl binary with a different working directory, e.g. a
// task worktree under .worktrees/.
func (r *burlRepo) burlIn(dir string, args ...string) ([]byte, error) {
	cmd := exec.Command(binaryPath, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

func (r *burlRepo) path(parts ...string) string {
	all := append([]string{r.repoDir}, parts...)
	return filepath.Join(all...)
}
