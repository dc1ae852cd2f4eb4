package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func initRepo(t *testing.T) *Repo {
	t.Helper()
	dir := t.TempDir()
	run(t, dir, "init", "--initial-branch=main")
	run(t, dir, "config", "user.name", "tester")
	run(t, dir, "config", "user.email", "tester@example.com")
	return NewRepo(dir)
}

func run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %s: %v", args, out, err)
	}
	return string(out)
}

func writeAndCommit(t *testing.T, dir, name, content, msg string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	run(t, dir, "add", "-A")
	run(t, dir, "commit", "--no-verify", "-m", msg)
}

func TestHeadCommitAndBranchExists(t *testing.T) {
	r := initRepo(t)
	writeAndCommit(t, r.Dir, "a.txt", "hello", "first")

	if !r.BranchExists("main") {
		t.Error("expected main branch to exist")
	}
	if r.BranchExists("nonexistent") {
		t.Error("expected nonexistent branch to not exist")
	}

	head, err := r.HeadCommit("main")
	if err != nil {
		t.Fatalf("HeadCommit: %v", err)
	}
	if head == "" {
		t.Error("expected non-empty commit hash")
	}
}

func TestCreateBranchAndCheckout(t *testing.T) {
	r := initRepo(t)
	writeAndCommit(t, r.Dir, "a.txt", "hello", "first")

	if err := r.CreateBranch("feature", "main"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if !r.BranchExists("feature") {
		t.Error("expected feature branch to exist")
	}
	if err := r.CheckoutBranch("feature"); err != nil {
		t.Fatalf("CheckoutBranch: %v", err)
	}
}

func TestCommitsBetweenAndRevListCount(t *testing.T) {
	r := initRepo(t)
	writeAndCommit(t, r.Dir, "a.txt", "v1", "first")
	base, _ := r.HeadCommit("main")
	writeAndCommit(t, r.Dir, "a.txt", "v2", "second")
	writeAndCommit(t, r.Dir, "a.txt", "v3", "third")
	head, _ := r.HeadCommit("main")

	commits, err := r.CommitsBetween(base, head)
	if err != nil {
		t.Fatalf("CommitsBetween: %v", err)
	}
	if len(commits) != 2 {
		t.Errorf("CommitsBetween() = %v, want 2 commits", commits)
	}

	n, err := r.RevListCount(base, head)
	if err != nil {
		t.Fatalf("RevListCount: %v", err)
	}
	if n != 2 {
		t.Errorf("RevListCount() = %d, want 2", n)
	}
}

func TestCommitMessage(t *testing.T) {
	r := initRepo(t)
	writeAndCommit(t, r.Dir, "a.txt", "v1", "finish jump\n\nmore detail")
	head, _ := r.HeadCommit("main")

	msg, err := r.CommitMessage(head)
	if err != nil {
		t.Fatalf("CommitMessage: %v", err)
	}
	if !contains(msg, "finish jump") {
		t.Errorf("CommitMessage() = %q, want to contain 'finish jump'", msg)
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}

func TestHasChangesAndStageAll(t *testing.T) {
	r := initRepo(t)
	writeAndCommit(t, r.Dir, "a.txt", "v1", "first")

	has, err := r.HasChanges()
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if has {
		t.Error("expected no changes after clean commit")
	}

	if err := os.WriteFile(filepath.Join(r.Dir, "b.txt"), []byte("new"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	has, err = r.HasChanges()
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if !has {
		t.Error("expected changes after adding untracked file")
	}

	if err := r.StageAll(); err != nil {
		t.Fatalf("StageAll: %v", err)
	}
	if err := r.Commit("add b"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	has, _ = r.HasChanges()
	if has {
		t.Error("expected no changes after commit")
	}
}

func TestResetSoft(t *testing.T) {
	r := initRepo(t)
	writeAndCommit(t, r.Dir, "a.txt", "v1", "first")
	base, _ := r.HeadCommit("main")
	writeAndCommit(t, r.Dir, "a.txt", "v2", "second")

	if err := r.ResetSoft(base); err != nil {
		t.Fatalf("ResetSoft: %v", err)
	}
	has, _ := r.HasChanges()
	if !has {
		t.Error("expected staged changes preserved after soft reset")
	}
}

func TestDiffNameOnlyAndUnified0(t *testing.T) {
	r := initRepo(t)
	writeAndCommit(t, r.Dir, "a.txt", "v1", "first")
	base, _ := r.HeadCommit("main")
	writeAndCommit(t, r.Dir, "a.txt", "v1\nv2", "second")
	head, _ := r.HeadCommit("main")

	names, err := r.DiffNameOnly(base, head)
	if err != nil {
		t.Fatalf("DiffNameOnly: %v", err)
	}
	if names != "a.txt" {
		t.Errorf("DiffNameOnly() = %q, want a.txt", names)
	}

	udiff, err := r.DiffUnified0(base, head)
	if err != nil {
		t.Fatalf("DiffUnified0: %v", err)
	}
	if !contains(udiff, "+v2") {
		t.Errorf("DiffUnified0() = %q, want to contain +v2", udiff)
	}
}

func TestIsAncestor(t *testing.T) {
	r := initRepo(t)
	writeAndCommit(t, r.Dir, "a.txt", "v1", "first")
	base, _ := r.HeadCommit("main")
	writeAndCommit(t, r.Dir, "a.txt", "v2", "second")
	head, _ := r.HeadCommit("main")

	if !r.IsAncestor(base, head) {
		t.Error("expected base to be ancestor of head")
	}
	if r.IsAncestor(head, base) {
		t.Error("expected head to not be ancestor of base")
	}
}

func TestRemoteExists(t *testing.T) {
	r := initRepo(t)
	writeAndCommit(t, r.Dir, "a.txt", "v1", "first")

	if r.RemoteExists("origin") {
		t.Error("expected no origin remote by default")
	}

	remoteDir := t.TempDir()
	run(t, remoteDir, "init", "--bare", "--initial-branch=main")
	run(t, r.Dir, "remote", "add", "origin", remoteDir)

	if !r.RemoteExists("origin") {
		t.Error("expected origin remote after adding it")
	}
}

func TestFetchPushAndMergeFFOnly(t *testing.T) {
	r := initRepo(t)
	writeAndCommit(t, r.Dir, "a.txt", "v1", "first")

	remoteDir := t.TempDir()
	run(t, remoteDir, "init", "--bare", "--initial-branch=main")
	run(t, r.Dir, "remote", "add", "origin", remoteDir)
	if err := r.Push("origin", "main"); err != nil {
		t.Fatalf("Push: %v", err)
	}

	if err := r.CreateBranch("feature", "main"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	run(t, r.Dir, "checkout", "feature")
	writeAndCommit(t, r.Dir, "b.txt", "hi", "feature commit")
	run(t, r.Dir, "checkout", "main")

	if err := r.MergeFFOnly("feature"); err != nil {
		t.Fatalf("MergeFFOnly: %v", err)
	}
	if _, err := os.Stat(filepath.Join(r.Dir, "b.txt")); err != nil {
		t.Error("expected b.txt present on main after ff-only merge")
	}

	if err := r.Fetch("origin", "main"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
}

func TestDeleteBranch(t *testing.T) {
	r := initRepo(t)
	writeAndCommit(t, r.Dir, "a.txt", "v1", "first")
	if err := r.CreateBranch("throwaway", "main"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.DeleteBranch("throwaway", false); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	if r.BranchExists("throwaway") {
		t.Error("expected throwaway branch removed")
	}
}

func TestCreateWorktreeAndRemoveAndList(t *testing.T) {
	r := initRepo(t)
	writeAndCommit(t, r.Dir, "a.txt", "v1", "first")
	if err := r.CreateBranch("wt-branch", "main"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	wtPath := filepath.Join(t.TempDir(), "wt")
	if err := r.CreateWorktree(wtPath, "wt-branch"); err != nil {
		t.Fatalf("CreateWorktree: %v", err)
	}

	list, err := r.ListWorktrees()
	if err != nil {
		t.Fatalf("ListWorktrees: %v", err)
	}
	found := false
	for _, w := range list {
		if w.Branch == "wt-branch" {
			found = true
		}
	}
	if !found {
		t.Errorf("ListWorktrees() = %+v, want an entry for wt-branch", list)
	}

	if err := r.RemoveWorktree(wtPath, false); err != nil {
		t.Fatalf("RemoveWorktree: %v", err)
	}
	if err := r.PruneWorktrees(); err != nil {
		t.Fatalf("PruneWorktrees: %v", err)
	}
}

func TestFilesChangedInCommit(t *testing.T) {
	r := initRepo(t)
	writeAndCommit(t, r.Dir, "a.txt", "v1", "first")
	head, _ := r.HeadCommit("main")

	files, err := r.FilesChangedInCommit(head)
	if err != nil {
		t.Fatalf("FilesChangedInCommit: %v", err)
	}
	if len(files) != 1 || files[0] != "a.txt" {
		t.Errorf("FilesChangedInCommit() = %v, want [a.txt]", files)
	}
}

func TestEnsureIdentity(t *testing.T) {
	dir := t.TempDir()
	run(t, dir, "init", "--initial-branch=main")
	r := NewRepo(dir)
	r.EnsureIdentity()

	name := run(t, dir, "config", "user.name")
	if name == "" {
		t.Error("expected user.name to be set after EnsureIdentity")
	}
}

func TestRebaseOntoConflictAbortsCleanly(t *testing.T) {
	r := initRepo(t)
	writeAndCommit(t, r.Dir, "a.txt", "base", "first")
	if err := r.CreateBranch("feature", "main"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	run(t, r.Dir, "checkout", "main")
	writeAndCommit(t, r.Dir, "a.txt", "main change", "main edits a")

	run(t, r.Dir, "checkout", "feature")
	writeAndCommit(t, r.Dir, "a.txt", "feature change", "feature edits a")

	headBefore, _ := r.HeadCommit("feature")
	if err := r.RebaseOnto("main"); err == nil {
		t.Fatal("expected conflicting rebase to fail")
	}
	headAfter, _ := r.HeadCommit("feature")
	if headBefore != headAfter {
		t.Error("expected feature branch unchanged after aborted rebase")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"fatal: Unable to create '.git/index.lock': File exists", true},
		{"error: cannot lock ref 'refs/heads/main'", true},
		{"fatal: pathspec 'x' did not match any files", false},
	}
	for _, tt := range tests {
		if got := isTransient(tt.msg); got != tt.want {
			t.Errorf("isTransient(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}
