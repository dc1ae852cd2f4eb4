// Package lock implements burl's exclusive-create lock files. A crashed
// process leaves a visible, inspectable lock file rather than silently
// releasing an OS advisory lock, so staleness is checked explicitly and
// clearing one is always a user decision (burl lock clear --force).
package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/re-cinq/burl/internal/fileutil"
)

// StaleAfter is the default age threshold past which a lock is reported as
// stale. Callers decide what to do about staleness; acquisition always
// fails on an existing lock regardless of age.
const StaleAfter = 15 * time.Minute

// Metadata is the JSON record written into a lock file.
type Metadata struct {
	Owner     string    `json:"owner"`
	PID       int       `json:"pid,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Action    string    `json:"action"`
}

// ContentionError is returned when a lock is already held.
type ContentionError struct {
	Path string
	Meta Metadata
}

func (e *ContentionError) Error() string {
	age := time.Since(e.Meta.CreatedAt).Round(time.Second)
	return fmt.Sprintf(
		"lock %s is held by %s (pid %d, action %q, age %s)",
		e.Path, e.Meta.Owner, e.Meta.PID, e.Meta.Action, age,
	)
}

// Guard represents a held lock. Release deletes the lock file. Failure to
// release produces only a warning to the caller; it never panics or
// returns an error that the caller is required to check, matching the
// "RAII with best-effort drop" behavior this is grounded on.
type Guard struct {
	path     string
	released bool
}

// Release deletes the lock file. It is safe to call more than once.
func (g *Guard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	if err := os.Remove(g.path); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to release lock %s: %v\n", g.path, err)
	}
}

// Path returns the lock file's path, for diagnostics.
func (g *Guard) Path() string { return g.path }

// Acquire creates a lock file named "<kind>.lock" (or "<kind>" if kind
// already ends in ".lock") under locksDir, using O_CREATE|O_EXCL so that
// two concurrent acquisitions can never both succeed. On contention, the
// existing metadata is parsed and returned in a *ContentionError.
func Acquire(locksDir, kind, action string) (*Guard, error) {
	if err := fileutil.EnsureDir(locksDir); err != nil {
		return nil, fmt.Errorf("ensuring locks dir %s: %w", locksDir, err)
	}

	name := kind
	if filepath.Ext(name) != ".lock" {
		name += ".lock"
	}
	path := filepath.Join(locksDir, name)

	meta := Metadata{
		Owner:     Actor(),
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC(),
		Action:    action,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling lock metadata: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			existing, readErr := readMetadata(path)
			if readErr != nil {
				return nil, fmt.Errorf("lock %s is held but its metadata could not be read: %w", path, readErr)
			}
			return nil, &ContentionError{Path: path, Meta: existing}
		}
		return nil, fmt.Errorf("creating lock file %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("writing lock file %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("fsyncing lock file %s: %w", path, err)
	}

	return &Guard{path: path}, nil
}

// WorkflowLock acquires the single workflow-wide lock, which serializes any
// mutation of workflow state.
func WorkflowLock(locksDir, action string) (*Guard, error) {
	return Acquire(locksDir, "workflow", action)
}

// TaskLock acquires the per-task lock, which serializes transitions of one
// task.
func TaskLock(locksDir, taskID, action string) (*Guard, error) {
	return Acquire(locksDir, taskID, action)
}

// ClaimLock acquires the optional global lock that serializes "pick next
// READY".
func ClaimLock(locksDir, action string) (*Guard, error) {
	return Acquire(locksDir, "claim", action)
}

func readMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parsing lock metadata %s: %w", path, err)
	}
	return meta, nil
}

// Info describes one lock file for listing purposes.
type Info struct {
	Name  string
	Path  string
	Meta  Metadata
	Stale bool
}

// List enumerates every lock file in locksDir, annotated with staleness.
func List(locksDir string) ([]Info, error) {
	entries, err := os.ReadDir(locksDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading locks dir %s: %w", locksDir, err)
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".lock" {
			continue
		}
		path := filepath.Join(locksDir, e.Name())
		meta, err := readMetadata(path)
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Name:  e.Name(),
			Path:  path,
			Meta:  meta,
			Stale: time.Since(meta.CreatedAt) > StaleAfter,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Clear removes a lock file by name. The caller is responsible for any
// policy gate (e.g. requiring the lock be stale, or requiring --force).
func Clear(locksDir, name string) error {
	if filepath.Ext(name) != ".lock" {
		name += ".lock"
	}
	path := filepath.Join(locksDir, name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no lock named %s", name)
		}
		return fmt.Errorf("removing lock %s: %w", path, err)
	}
	return nil
}

// Actor returns "user@host", used to identify who holds a lock or recorded
// an event.
func Actor() string {
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}
	if user == "" {
		user = "unknown"
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s@%s", user, host)
}
