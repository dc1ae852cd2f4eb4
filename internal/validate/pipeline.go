// Package validate runs a task's configured command-step validation
// profile: an ordered list of shell-word-split commands, each gated by an
// optional "only run if changed files match" predicate, executed inside
// the task worktree with output captured through a pseudo-terminal so
// tools behave the way they would for a human running them interactively.
package validate

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/creack/pty"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/re-cinq/burl/internal/fileutil"
)

// MaxTailChars bounds the truncated tail of output shown in a FAIL message.
const MaxTailChars = 4000

// Step is one command in a validation profile.
type Step struct {
	Name                   string
	Command                string
	RunIfChangedExtensions []string
	RunIfChangedGlobs      []string
}

// Profile is a named, ordered list of steps.
type Profile struct {
	Name  string
	Steps []Step
}

// Status is the outcome of running (or skipping) one step.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusSkip Status = "SKIP"
)

// StepResult records one step's outcome.
type StepResult struct {
	Name     string
	Status   Status
	ExitCode int
	Tail     string
	Reason   string
	LogPath  string
}

// ProfileResult aggregates every step's outcome for one profile run.
type ProfileResult struct {
	Profile string
	Steps   []StepResult
	Passed  bool
}

// ErrUnknownProfile names the unknown-profile condition. No code path
// returns it: the transition engine records an unknown profile as a
// failed ProfileResult, not a user error, per §4.11.
var ErrUnknownProfile = errors.New("unknown validation profile")

// RunProfile executes every step of profile inside workDir, gating
// predicated steps on changedFiles, and writes each step's full output to
// logDir/<profile>-<step>.log.
func RunProfile(profile Profile, workDir string, changedFiles []string, logDir string) (ProfileResult, error) {
	if len(profile.Steps) == 0 {
		return ProfileResult{
			Profile: profile.Name,
			Passed:  true,
			Steps: []StepResult{{
				Name:   "(none)",
				Status: StatusSkip,
				Reason: "profile has no steps",
			}},
		}, nil
	}

	if logDir != "" {
		if err := fileutil.EnsureDir(logDir); err != nil {
			return ProfileResult{}, fmt.Errorf("ensuring validation log dir %s: %w", logDir, err)
		}
	}

	result := ProfileResult{Profile: profile.Name, Passed: true}
	for _, step := range profile.Steps {
		sr, err := runStep(step, workDir, changedFiles, logDir, profile.Name)
		if err != nil {
			return ProfileResult{}, err
		}
		if sr.Status == StatusFail {
			result.Passed = false
		}
		result.Steps = append(result.Steps, sr)
	}
	return result, nil
}

func runStep(step Step, workDir string, changedFiles []string, logDir, profileName string) (StepResult, error) {
	if hasPredicate(step) && !predicateMatches(step, changedFiles) {
		return StepResult{Name: step.Name, Status: StatusSkip, Reason: "no matching changed files"}, nil
	}

	args, err := splitCommand(step.Command)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %s: %w", step.Name, err)
	}
	if len(args) == 0 {
		return StepResult{}, fmt.Errorf("step %s: empty command", step.Name)
	}

	output, exitCode, runErr := execCaptured(args, workDir)
	if runErr != nil && exitCode == -1 {
		return StepResult{}, fmt.Errorf("step %s: %w", step.Name, runErr)
	}

	var logPath string
	if logDir != "" {
		logPath = filepath.Join(logDir, fmt.Sprintf("%s-%s.log", sanitizeName(profileName), sanitizeName(step.Name)))
		_ = os.WriteFile(logPath, []byte(output), 0644)
	}

	status := StatusPass
	if exitCode != 0 {
		status = StatusFail
	}
	return StepResult{
		Name:     step.Name,
		Status:   status,
		ExitCode: exitCode,
		Tail:     tail(output, MaxTailChars),
		LogPath:  logPath,
	}, nil
}

func hasPredicate(s Step) bool {
	return len(s.RunIfChangedExtensions) > 0 || len(s.RunIfChangedGlobs) > 0
}

func predicateMatches(s Step, changedFiles []string) bool {
	extSet := make(map[string]bool, len(s.RunIfChangedExtensions))
	for _, e := range s.RunIfChangedExtensions {
		extSet[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}
	var globMatcher *ignore.GitIgnore
	if len(s.RunIfChangedGlobs) > 0 {
		globMatcher = ignore.CompileIgnoreLines(s.RunIfChangedGlobs...)
	}

	for _, f := range changedFiles {
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(f), "."))
		if extSet[ext] {
			return true
		}
		if globMatcher != nil && globMatcher.MatchesPath(f) {
			return true
		}
	}
	return false
}

// execCaptured runs args[0] with args[1:] inside workDir, attaching a PTY
// as stdout/stderr so the child behaves as if run interactively. EIO while
// draining the PTY at process exit is expected (the kernel tears down the
// master side once the last slave fd closes) and is not an error.
func execCaptured(args []string, workDir string) (output string, exitCode int, err error) {
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = workDir

	ptmx, pts, err := pty.Open()
	if err != nil {
		return "", -1, fmt.Errorf("opening pty: %w", err)
	}
	defer ptmx.Close()

	cmd.Stdin = nil
	cmd.Stdout = pts
	cmd.Stderr = pts

	if err := cmd.Start(); err != nil {
		pts.Close()
		return "", -1, fmt.Errorf("starting %s: %w", args[0], err)
	}
	pts.Close()

	var buf strings.Builder
	if _, copyErr := io.Copy(&buf, ptmx); copyErr != nil {
		var pathErr *os.PathError
		if !(errors.As(copyErr, &pathErr) && pathErr.Err == syscall.EIO) {
			_ = cmd.Wait()
			return buf.String(), -1, fmt.Errorf("reading output of %s: %w", args[0], copyErr)
		}
	}

	waitErr := cmd.Wait()
	if waitErr == nil {
		return buf.String(), 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return buf.String(), exitErr.ExitCode(), nil
	}
	return buf.String(), -1, fmt.Errorf("waiting for %s: %w", args[0], waitErr)
}

// splitCommand splits a command string into argv using shell-style word
// splitting (whitespace separated, single/double quoted spans kept
// together) without any shell interpolation: no variable expansion,
// globbing, or pipe/redirect handling.
func splitCommand(s string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
	)
	flush := func() {
		if inWord {
			args = append(args, cur.String())
			cur.Reset()
			inWord = false
		}
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in command: %s", s)
	}
	flush()
	return args, nil
}

func tail(s string, maxChars int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	const maxLines = 40
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	joined := strings.Join(lines, "\n")
	if len(joined) > maxChars {
		joined = joined[len(joined)-maxChars:]
	}
	return joined
}

func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
