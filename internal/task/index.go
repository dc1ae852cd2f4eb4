package task

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/re-cinq/burl/internal/fileutil"
)

// filenamePattern matches "TASK-<digits>(-<slug>)?.md".
var filenamePattern = regexp.MustCompile(`^TASK-(\d{3,})(?:-[a-z0-9-]+)?\.md$`)

// Entry records where one task file lives.
type Entry struct {
	ID     string
	Number int
	Bucket string
	Path   string
}

// Index maps task IDs to their bucket and path, built by scanning every
// bucket directory once. Duplicate IDs across buckets are a data-integrity
// violation the index does not attempt to catch; transitions are the sole
// source of creation and are expected to keep IDs unique in practice.
type Index struct {
	byID map[string]Entry
}

// Build scans every bucket directory under workflowState and returns an
// Index of every well-formed task file found.
func Build(workflowState string) (*Index, error) {
	idx := &Index{byID: make(map[string]Entry)}

	for _, bucket := range fileutil.Buckets {
		dir := fileutil.BucketDir(workflowState, bucket)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading bucket dir %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			m := filenamePattern.FindStringSubmatch(e.Name())
			if m == nil {
				continue
			}
			number, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			id := FormatID(number)
			idx.byID[id] = Entry{
				ID:     id,
				Number: number,
				Bucket: bucket,
				Path:   filepath.Join(dir, e.Name()),
			}
		}
	}
	return idx, nil
}

// Find looks up a task by ID, normalizing case.
func (idx *Index) Find(id string) (Entry, bool) {
	e, ok := idx.byID[NormalizeID(id)]
	return e, ok
}

// ByBucket returns every entry in the given bucket.
func (idx *Index) ByBucket(bucket string) []Entry {
	var out []Entry
	for _, e := range idx.byID {
		if e.Bucket == bucket {
			out = append(out, e)
		}
	}
	return out
}

// All returns every entry in the index.
func (idx *Index) All() []Entry {
	out := make([]Entry, 0, len(idx.byID))
	for _, e := range idx.byID {
		out = append(out, e)
	}
	return out
}

// NextNumber returns one greater than the highest numeric ID seen across
// all buckets, or 1 if the index is empty.
func (idx *Index) NextNumber() int {
	max := 0
	for _, e := range idx.byID {
		if e.Number > max {
			max = e.Number
		}
	}
	return max + 1
}

// ValidateTaskID normalizes and validates a user-supplied task ID string.
func ValidateTaskID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("task id must not be empty")
	}
	if _, err := ParseID(s); err != nil {
		return "", err
	}
	return NormalizeID(s), nil
}
