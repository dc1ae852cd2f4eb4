// Package events implements burl's append-only newline-delimited JSON audit
// trail. Every completed transition appends exactly one record before its
// workflow lock is released, so the log observes transitions in the same
// total order lock serialization imposes on a single machine.
package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/re-cinq/burl/internal/fileutil"
)

// Action identifies the kind of event recorded.
type Action string

const (
	ActionInit           Action = "init"
	ActionAdd            Action = "add"
	ActionClaim          Action = "claim"
	ActionSubmit         Action = "submit"
	ActionValidate       Action = "validate"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionLockClear      Action = "lock_clear"
	ActionClean          Action = "clean"
	ActionAgentDispatch  Action = "agent_dispatch"
	ActionAgentComplete  Action = "agent_complete"
)

// Event is a single audit record. Task is a pointer so that it is omitted
// from the JSON encoding (rather than serialized as an empty string) when
// the event isn't about a specific task, e.g. init.
type Event struct {
	Timestamp time.Time      `json:"ts"`
	Action    Action         `json:"action"`
	Actor     string         `json:"actor"`
	Task      *string        `json:"task,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// New constructs an Event stamped with the current time in UTC.
func New(action Action, actor string, task string, details map[string]any) Event {
	e := Event{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Actor:     actor,
		Details:   details,
	}
	if task != "" {
		e.Task = &task
	}
	return e
}

// Append serializes event as a single JSON line and appends it to the log
// at path, fsyncing before returning. Serialization failure is treated as
// fatal by callers: it must abort the surrounding transition rather than
// let the event log and workflow state drift apart.
func Append(path string, event Event) error {
	if err := fileutil.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("ensuring events dir: %w", err)
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening event log %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing event log %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("fsyncing event log %s: %w", path, err)
	}
	return nil
}

// ReadAll loads every event from path in file order. A missing file is
// treated as an empty log, not an error: a fresh workflow has none yet.
func ReadAll(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening event log %s: %w", path, err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("parsing event log %s: %w", path, err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading event log %s: %w", path, err)
	}
	return events, nil
}
