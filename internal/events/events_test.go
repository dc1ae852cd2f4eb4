package events

import (
	"path/filepath"
	"testing"
)

func TestNewOmitsTaskWhenEmpty(t *testing.T) {
	e := New(ActionInit, "user@host", "", nil)
	if e.Task != nil {
		t.Errorf("Task = %v, want nil", e.Task)
	}

	e2 := New(ActionClaim, "user@host", "TASK-001", map[string]any{"branch": "task-001"})
	if e2.Task == nil || *e2.Task != "TASK-001" {
		t.Errorf("Task = %v, want TASK-001", e2.Task)
	}
}

func TestAppendAndReadAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events", "events.ndjson")

	events := []Event{
		New(ActionAdd, "a@h", "TASK-001", map[string]any{"title": "first"}),
		New(ActionClaim, "a@h", "TASK-001", map[string]any{"branch": "task-001"}),
		New(ActionSubmit, "a@h", "TASK-001", map[string]any{"commit_count": 2}),
	}
	for _, e := range events {
		if err := Append(path, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("ReadAll returned %d events, want %d", len(got), len(events))
	}
	for i, e := range got {
		if e.Action != events[i].Action {
			t.Errorf("event %d: Action = %q, want %q", i, e.Action, events[i].Action)
		}
	}
}

func TestReadAllMissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	events, err := ReadAll(filepath.Join(dir, "does-not-exist.ndjson"))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if events != nil {
		t.Errorf("events = %v, want nil", events)
	}
}

func TestEventsAreMonotonicInTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.ndjson")

	for i := 0; i < 5; i++ {
		if err := Append(path, New(ActionValidate, "a@h", "TASK-001", nil)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Errorf("event %d timestamp %v is before event %d timestamp %v", i, got[i].Timestamp, i-1, got[i-1].Timestamp)
		}
	}
}
