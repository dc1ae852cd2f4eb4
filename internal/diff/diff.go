// Package diff parses git diff output into the two shapes the transition
// engine needs: the set of changed file paths, and the set of added lines
// with their file, line number, and text. Both operate purely on strings —
// callers are responsible for invoking git and handing over its output.
package diff

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// AddedLine is one line introduced by a diff, with the line number it
// occupies in the new (post-diff) version of its file.
type AddedLine struct {
	File string
	Line int
	Text string
}

// ParseChangedFiles parses the output of `git diff --name-only base..head`
// into a list of forward-slashed paths, one per non-empty line, in the
// order git printed them.
func ParseChangedFiles(output string) []string {
	var files []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		files = append(files, filepath(line))
	}
	return files
}

// hunkHeader matches a zero-or-more-context hunk header, e.g.
// "@@ -12,0 +13,2 @@ func foo()" or the single-number form "@@ -0,0 +1 @@".
var hunkHeader = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

// ParseAddedLines runs a small state machine over the output of
// `git diff -U0 base..head`, emitting one AddedLine per "+" line in a
// non-deletion file, tracking the new-file line cursor from each hunk
// header. Context lines (rare with -U0, but legal) advance the cursor
// without emitting. Lines in a file whose new side is /dev/null (a
// deletion) are suppressed entirely. Output preserves input order.
func ParseAddedLines(output string) []AddedLine {
	var (
		added       []AddedLine
		currentFile string
		cursor      int
		isDeletion  bool
	)

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "diff --git "):
			currentFile = extractBPath(line)
			isDeletion = false
			cursor = 0

		case strings.HasPrefix(line, "+++ "):
			target := strings.TrimPrefix(line, "+++ ")
			if target == "/dev/null" {
				isDeletion = true
			} else {
				isDeletion = false
				if p, ok := strings.CutPrefix(target, "b/"); ok {
					currentFile = p
				}
			}

		case strings.HasPrefix(line, "@@"):
			if m := hunkHeader.FindStringSubmatch(line); m != nil {
				n, err := strconv.Atoi(m[1])
				if err == nil {
					cursor = n
				}
			}

		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			if !isDeletion && currentFile != "" {
				added = append(added, AddedLine{
					File: currentFile,
					Line: cursor,
					Text: strings.TrimPrefix(line, "+"),
				})
			}
			cursor++

		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			// Removed line: no emission, cursor unaffected (it tracks the
			// new file, which this line does not appear in).

		case strings.HasPrefix(line, " "):
			// Context line (possible even at -U0 for some diff drivers).
			cursor++

		default:
			// Binary markers, index lines, mode changes, etc: ignored.
		}
	}
	return added
}

// extractBPath pulls the "b/..." path out of a "diff --git a/x b/y" header,
// handling renames by preferring the b-side, which is the only side that
// exists for an added-lines listing.
func extractBPath(header string) string {
	idx := strings.Index(header, " b/")
	if idx == -1 {
		return ""
	}
	return header[idx+3:]
}

// filepath normalizes a path separator to forward slashes, since git
// always prints forward-slashed paths regardless of host OS but callers
// may compare against OS-native paths built elsewhere.
func filepath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
