// Package task implements burl's on-disk task file model: YAML
// frontmatter plus a markdown body, parsed and re-serialized without
// disturbing unknown fields or the body's exact bytes.
package task

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/re-cinq/burl/internal/fileutil"
)

// Priority is one of the three task priorities.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// idPattern matches a task ID: "TASK-" followed by three or more digits.
var idPattern = regexp.MustCompile(`^TASK-(\d{3,})$`)

// slugPattern matches a filename slug: lowercase alphanumerics separated by
// single hyphens.
var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Frontmatter is the parsed YAML header of a task file. Extra holds any
// field not named explicitly below, so round-tripping an unfamiliar task
// file (written by a newer version of burl, or by hand) never drops data.
// yaml.v3 marshals map keys in sorted order, which is what keeps Extra's
// output deterministic across saves.
type Frontmatter struct {
	ID                string         `yaml:"id"`
	Title             string         `yaml:"title"`
	Priority          Priority       `yaml:"priority,omitempty"`
	Tags              []string       `yaml:"tags,omitempty"`
	Created           *time.Time     `yaml:"created,omitempty"`
	StartedAt         *time.Time     `yaml:"started_at,omitempty"`
	SubmittedAt       *time.Time     `yaml:"submitted_at,omitempty"`
	CompletedAt       *time.Time     `yaml:"completed_at,omitempty"`
	AssignedTo        string         `yaml:"assigned_to,omitempty"`
	QAAttempts        int            `yaml:"qa_attempts,omitempty"`
	Branch            string         `yaml:"branch,omitempty"`
	Worktree          string         `yaml:"worktree,omitempty"`
	BaseSHA           string         `yaml:"base_sha,omitempty"`
	Affects           []string       `yaml:"affects,omitempty"`
	AffectsGlobs      []string       `yaml:"affects_globs,omitempty"`
	MustNotTouch      []string       `yaml:"must_not_touch,omitempty"`
	DependsOn         []string       `yaml:"depends_on,omitempty"`
	Agent             string         `yaml:"agent,omitempty"`
	ValidationProfile string         `yaml:"validation_profile,omitempty"`
	Extra             map[string]any `yaml:",inline"`
}

// File is a task file loaded from (or destined for) disk.
type File struct {
	Path        string
	Frontmatter Frontmatter
	Body        string
}

// NormalizeID upper-cases a user-supplied task ID for lookup purposes.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// ParseID validates id against the TASK-NNN pattern and returns its numeric
// component.
func ParseID(id string) (number int, err error) {
	m := idPattern.FindStringSubmatch(NormalizeID(id))
	if m == nil {
		return 0, fmt.Errorf("invalid task id %q: expected TASK-NNN with at least 3 digits", id)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q: %w", id, err)
	}
	return n, nil
}

// FormatID renders a numeric id as "TASK-NNN", zero-padded to 3 digits
// (more digits are used once the counter exceeds 999).
func FormatID(number int) string {
	return fmt.Sprintf("TASK-%03d", number)
}

// Slugify converts a human title into the lowercase hyphenated slug used in
// filenames and branch names.
func Slugify(title string) string {
	var b strings.Builder
	prevDash := true // suppress leading dash
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	s := strings.TrimRight(b.String(), "-")
	if s == "" {
		return "task"
	}
	return s
}

// Filename returns "TASK-NNN-<slug>.md" for a given id and title, or
// "TASK-NNN.md" when the title is blank.
func Filename(id, title string) string {
	n, err := ParseID(id)
	if err != nil {
		return NormalizeID(id) + ".md"
	}
	if strings.TrimSpace(title) == "" {
		return fmt.Sprintf("TASK-%03d.md", n)
	}
	return fmt.Sprintf("TASK-%03d-%s.md", n, Slugify(title))
}

// lineSpan locates one line in data without assuming an ending; it records
// the line's content bounds [start,end) and the offset right after its
// terminator, so callers can tell "\n" from "\r\n" apart and the caller
// never has to reconstruct consumed bytes.
type lineSpan struct {
	start, end, next int
}

func nextLine(data []byte, from int) (lineSpan, bool) {
	if from > len(data) {
		return lineSpan{}, false
	}
	if from == len(data) {
		return lineSpan{start: from, end: from, next: from}, false
	}
	idx := bytes.IndexByte(data[from:], '\n')
	if idx == -1 {
		return lineSpan{start: from, end: len(data), next: len(data)}, true
	}
	end := from + idx
	if end > from && data[end-1] == '\r' {
		end--
	}
	return lineSpan{start: from, end: end, next: from + idx + 1}, true
}

// Parse splits data into frontmatter and body. It requires the file to
// start with a "---" delimiter line and locates the matching closing
// "---" line; everything after the closing delimiter's own line terminator
// is the body, taken verbatim (CRLF or LF, trailing newline or not).
func Parse(data []byte) (Frontmatter, string, error) {
	first, ok := nextLine(data, 0)
	if !ok || strings.TrimSpace(string(data[first.start:first.end])) != "---" {
		return Frontmatter{}, "", fmt.Errorf("task file does not begin with a --- frontmatter delimiter")
	}

	yamlStart := first.next
	pos := yamlStart
	for {
		line, ok := nextLine(data, pos)
		if !ok {
			return Frontmatter{}, "", fmt.Errorf("task file has no closing --- frontmatter delimiter")
		}
		if strings.TrimSpace(string(data[line.start:line.end])) == "---" {
			yamlBytes := data[yamlStart:line.start]
			body := data[line.next:]
			var fm Frontmatter
			if err := yaml.Unmarshal(yamlBytes, &fm); err != nil {
				return Frontmatter{}, "", fmt.Errorf("parsing frontmatter: %w", err)
			}
			return fm, string(body), nil
		}
		if line.start == line.next {
			// No more data and no closing delimiter found.
			return Frontmatter{}, "", fmt.Errorf("task file has no closing --- frontmatter delimiter")
		}
		pos = line.next
	}
}

// Render serializes the task file back to bytes: "---\n<yaml>---\n<body>".
func (f *File) Render() ([]byte, error) {
	yamlBytes, err := yaml.Marshal(f.Frontmatter)
	if err != nil {
		return nil, fmt.Errorf("marshaling frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(yamlBytes)
	buf.WriteString("---\n")
	buf.WriteString(f.Body)
	return buf.Bytes(), nil
}

// Load reads and parses a task file from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task file %s: %w", path, err)
	}
	fm, body, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &File{Path: path, Frontmatter: fm, Body: body}, nil
}

// Save atomically writes the task file back to its recorded Path.
func (f *File) Save() error {
	data, err := f.Render()
	if err != nil {
		return err
	}
	return fileutil.AtomicWrite(f.Path, data, 0644)
}

// BucketInvariantError names a frontmatter field that violates the
// invariants for the bucket the task claims to be in.
type BucketInvariantError struct {
	Bucket string
	Field  string
	Reason string
}

func (e *BucketInvariantError) Error() string {
	return fmt.Sprintf("task in %s violates invariant on %s: %s", e.Bucket, e.Field, e.Reason)
}

// ValidateBucketInvariants checks the §3 bucket/metadata invariants: which
// timestamps and git-ref fields must (or must not) be set for a task
// claiming to be in the given bucket.
func (f *Frontmatter) ValidateBucketInvariants(bucket string) error {
	must := func(set bool, field, reason string) error {
		if !set {
			return &BucketInvariantError{Bucket: bucket, Field: field, Reason: reason}
		}
		return nil
	}
	mustNot := func(set bool, field, reason string) error {
		if set {
			return &BucketInvariantError{Bucket: bucket, Field: field, Reason: reason}
		}
		return nil
	}

	gitTripleSet := f.Branch != "" && f.Worktree != "" && f.BaseSHA != ""
	gitTripleUnset := f.Branch == "" && f.Worktree == "" && f.BaseSHA == ""
	if !gitTripleSet && !gitTripleUnset {
		return &BucketInvariantError{Bucket: bucket, Field: "branch/worktree/base_sha", Reason: "must be all set or all unset"}
	}

	switch bucket {
	case "READY":
		if err := mustNot(f.StartedAt != nil, "started_at", "must be unset in READY"); err != nil {
			return err
		}
		if err := mustNot(gitTripleSet, "branch/worktree/base_sha", "must be unset in READY"); err != nil {
			return err
		}
		if err := mustNot(f.SubmittedAt != nil, "submitted_at", "must be unset in READY"); err != nil {
			return err
		}
		if err := mustNot(f.CompletedAt != nil, "completed_at", "must be unset in READY"); err != nil {
			return err
		}
	case "DOING":
		if err := must(f.StartedAt != nil, "started_at", "must be set in DOING"); err != nil {
			return err
		}
		if err := must(gitTripleSet, "branch/worktree/base_sha", "must be set in DOING"); err != nil {
			return err
		}
		if err := mustNot(f.SubmittedAt != nil, "submitted_at", "must be unset in DOING"); err != nil {
			return err
		}
		if err := mustNot(f.CompletedAt != nil, "completed_at", "must be unset in DOING"); err != nil {
			return err
		}
	case "QA":
		if err := must(f.StartedAt != nil, "started_at", "must be set in QA"); err != nil {
			return err
		}
		if err := must(gitTripleSet, "branch/worktree/base_sha", "must be set in QA"); err != nil {
			return err
		}
		if err := must(f.SubmittedAt != nil, "submitted_at", "must be set in QA"); err != nil {
			return err
		}
		if err := mustNot(f.CompletedAt != nil, "completed_at", "must be unset in QA"); err != nil {
			return err
		}
	case "DONE":
		if err := must(f.StartedAt != nil, "started_at", "must be set in DONE"); err != nil {
			return err
		}
		if err := must(gitTripleSet, "branch/worktree/base_sha", "must be set in DONE"); err != nil {
			return err
		}
		if err := must(f.SubmittedAt != nil, "submitted_at", "must be set in DONE"); err != nil {
			return err
		}
		if err := must(f.CompletedAt != nil, "completed_at", "must be set in DONE"); err != nil {
			return err
		}
	case "BLOCKED":
		// Catch-all, no extra invariants.
	default:
		return fmt.Errorf("unknown bucket %q", bucket)
	}
	return nil
}

// ValidSlug reports whether s is a valid filename/branch slug.
func ValidSlug(s string) bool {
	return s != "" && slugPattern.MatchString(s)
}
