package engine

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/re-cinq/burl/internal/events"
	"github.com/re-cinq/burl/internal/fileutil"
	"github.com/re-cinq/burl/internal/lock"
	"github.com/re-cinq/burl/internal/task"
)

// Add implements §4.13.1: none → READY. It chooses the next numeric ID by
// scanning every bucket, derives a filename slug from title, and writes a
// default frontmatter/body template directly into READY. There is no
// worktree or branch work at this stage.
func (e *Engine) Add(title string, priority task.Priority, tags []string) (*task.File, error) {
	if err := RequireInitialized(e.Ctx); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, UserError("title must not be empty")
	}
	switch priority {
	case "", task.PriorityHigh, task.PriorityMedium, task.PriorityLow:
	default:
		return nil, UserError("invalid priority %q", priority)
	}
	if priority == "" {
		priority = task.PriorityMedium
	}

	idx, err := e.buildIndex()
	if err != nil {
		return nil, err
	}
	number := idx.NextNumber()
	id := task.FormatID(number)
	filename := task.Filename(id, title)

	now := time.Now().UTC()
	f := &task.File{
		Path: filepath.Join(fileutil.BucketDir(e.Ctx.WorkflowState, "READY"), filename),
		Frontmatter: task.Frontmatter{
			ID:       id,
			Title:    title,
			Priority: priority,
			Tags:     tags,
			Created:  &now,
		},
		Body: defaultBody(title),
	}

	if err := e.requireWorkflowClean(); err != nil {
		return nil, err
	}

	guard, err := lock.WorkflowLock(e.Ctx.LocksDir, "add")
	if err != nil {
		return nil, wrapLockErr("add", err)
	}
	defer guard.Release()

	if err := fileutil.EnsureDir(filepath.Dir(f.Path)); err != nil {
		return nil, UserError("ensuring READY dir: %v", err)
	}
	if err := f.Save(); err != nil {
		return nil, UserError("writing task file %s: %v", f.Path, err)
	}
	if err := e.appendEvent(events.ActionAdd, lock.Actor(), id, map[string]any{"title": title, "priority": string(priority)}); err != nil {
		return nil, err
	}
	if err := e.commitWorkflow(fmt.Sprintf("add %s: %s", id, title)); err != nil {
		return nil, err
	}
	return f, nil
}

func defaultBody(title string) string {
	return fmt.Sprintf("# %s\n\n## Description\n\n## QA Report\n", title)
}
