package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "task.md")

	if err := AtomicWrite(path, []byte("hello"), 0644); err != nil {
		t.Fatalf("AtomicWrite: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("content = %q, want %q", got, "hello")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "task.md" {
			t.Errorf("leftover temp file in directory: %s", e.Name())
		}
	}
}

func TestAtomicWriteOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "task.md")

	if err := AtomicWrite(path, []byte("first"), 0644); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := AtomicWrite(path, []byte("second"), 0644); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("content = %q, want %q", got, "second")
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "READY", "TASK-001.md")
	dst := filepath.Join(dir, "DOING", "TASK-001.md")

	if err := AtomicWrite(src, []byte("frontmatter"), 0644); err != nil {
		t.Fatalf("seeding src: %v", err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("src still exists after move: err = %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile dst: %v", err)
	}
	if string(got) != "frontmatter" {
		t.Errorf("dst content = %q, want %q", got, "frontmatter")
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.md")
	dst := filepath.Join(dir, "dst.md")

	if err := os.WriteFile(src, []byte("copy me"), 0644); err != nil {
		t.Fatalf("seeding src: %v", err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}

	if _, err := os.Stat(src); err != nil {
		t.Errorf("src should still exist after copy: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile dst: %v", err)
	}
	if string(got) != "copy me" {
		t.Errorf("dst content = %q, want %q", got, "copy me")
	}
}

func TestPathHelpers(t *testing.T) {
	repoRoot := "/repo"
	worktree := WorkflowWorktreeDir(repoRoot)
	if worktree != filepath.Join(repoRoot, ".burl") {
		t.Errorf("WorkflowWorktreeDir = %q", worktree)
	}

	state := WorkflowStateDir(worktree)
	if state != filepath.Join(worktree, ".workflow") {
		t.Errorf("WorkflowStateDir = %q", state)
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"BucketDir", BucketDir(state, "READY"), filepath.Join(state, "READY")},
		{"LocksDir", LocksDir(state), filepath.Join(state, "locks")},
		{"EventsDir", EventsDir(state), filepath.Join(state, "events")},
		{"EventsLogPath", EventsLogPath(state), filepath.Join(state, "events", "events.ndjson")},
		{"AgentLogsDir", AgentLogsDir(state), filepath.Join(state, "agent-logs")},
		{"ConfigPath", ConfigPath(state), filepath.Join(state, "config.yaml")},
		{"TaskWorktreesRoot", TaskWorktreesRoot(repoRoot), filepath.Join(repoRoot, ".worktrees")},
		{"TaskWorktreePath", TaskWorktreePath(repoRoot, "task-001"), filepath.Join(repoRoot, ".worktrees", "task-001")},
		{"WatchStatePath", WatchStatePath(state), filepath.Join(state, "locks", "watch.state.json")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}
