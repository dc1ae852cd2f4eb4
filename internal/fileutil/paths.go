package fileutil

import "path/filepath"

// WorkflowWorktreeDir returns the path to the workflow worktree (".burl")
// checked out on the workflow branch, inside the given repo root.
func WorkflowWorktreeDir(repoRoot string) string {
	return filepath.Join(repoRoot, ".burl")
}

// WorkflowStateDir returns the path to the tracked workflow state directory
// inside the workflow worktree.
func WorkflowStateDir(workflowWorktree string) string {
	return filepath.Join(workflowWorktree, ".workflow")
}

// BucketDir returns the path to one of the five bucket directories.
func BucketDir(workflowStateDir, bucket string) string {
	return filepath.Join(workflowStateDir, bucket)
}

// LocksDir returns the (gitignored) locks directory.
func LocksDir(workflowStateDir string) string {
	return filepath.Join(workflowStateDir, "locks")
}

// EventsDir returns the (tracked) events directory.
func EventsDir(workflowStateDir string) string {
	return filepath.Join(workflowStateDir, "events")
}

// EventsLogPath returns the path to the append-only event log.
func EventsLogPath(workflowStateDir string) string {
	return filepath.Join(EventsDir(workflowStateDir), "events.ndjson")
}

// AgentLogsDir returns the (gitignored) per-concern log directory.
func AgentLogsDir(workflowStateDir string) string {
	return filepath.Join(workflowStateDir, "agent-logs")
}

// PromptsDir returns the (tracked) prompts directory.
func PromptsDir(workflowStateDir string) string {
	return filepath.Join(workflowStateDir, "prompts")
}

// ConfigPath returns the path to the workflow's config.yaml.
func ConfigPath(workflowStateDir string) string {
	return filepath.Join(workflowStateDir, "config.yaml")
}

// AgentsPath returns the path to the workflow's agents.yaml.
func AgentsPath(workflowStateDir string) string {
	return filepath.Join(workflowStateDir, "agents.yaml")
}

// TaskWorktreesRoot returns the (gitignored) root under which every task's
// worktree lives.
func TaskWorktreesRoot(repoRoot string) string {
	return filepath.Join(repoRoot, ".worktrees")
}

// TaskWorktreePath returns the conventional worktree path for a task branch.
func TaskWorktreePath(repoRoot, branch string) string {
	return filepath.Join(TaskWorktreesRoot(repoRoot), branch)
}

// WatchStatePath returns the path to the watch loop's persisted
// task-id -> last-seen-sha map.
func WatchStatePath(workflowStateDir string) string {
	return filepath.Join(LocksDir(workflowStateDir), "watch.state.json")
}

// Buckets lists the five bucket directory names in canonical order.
var Buckets = []string{"READY", "DOING", "QA", "DONE", "BLOCKED"}
