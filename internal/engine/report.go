package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/re-cinq/burl/internal/scope"
	"github.com/re-cinq/burl/internal/stub"
)

// qaReportBlock renders a human-readable QA report appended to a task
// file's body after every `validate` run. Each run appends a new block
// rather than overwriting the previous one, so a task's history of
// validation attempts stays visible in the file itself.
func qaReportBlock(now time.Time, r checksResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n## QA Report (%s)\n\n", now.Format(time.RFC3339))

	if r.Scope.Pass {
		b.WriteString("- scope: PASS\n")
	} else {
		b.WriteString("- scope: FAIL\n")
		for _, v := range r.Scope.Violations {
			fmt.Fprintf(&b, "  - %s: %s\n", v.Path, v.Reason)
		}
	}

	if len(r.StubViolations) == 0 {
		b.WriteString("- stubs: PASS\n")
	} else {
		b.WriteString("- stubs: FAIL\n")
		for _, v := range r.StubViolations {
			fmt.Fprintf(&b, "  - %s:%d: matched `%s`: %s\n", v.File, v.Line, v.Pattern, v.Text)
		}
	}

	fmt.Fprintf(&b, "- profile %s: ", r.Profile.Profile)
	if r.Profile.Passed {
		b.WriteString("PASS\n")
	} else {
		b.WriteString("FAIL\n")
	}
	for _, s := range r.Profile.Steps {
		fmt.Fprintf(&b, "  - %s: %s", s.Name, s.Status)
		if s.Reason != "" {
			fmt.Fprintf(&b, " (%s)", s.Reason)
		}
		if s.Status == "FAIL" {
			fmt.Fprintf(&b, " exit=%d\n", s.ExitCode)
			if s.Tail != "" {
				fmt.Fprintf(&b, "    ```\n    %s\n    ```\n", strings.ReplaceAll(s.Tail, "\n", "\n    "))
			}
		} else {
			b.WriteString("\n")
		}
	}

	return b.String()
}

// rejectionBlock renders the rejection record appended to a task's body on
// every `reject` transition.
func rejectionBlock(now time.Time, actor string, attempt int, reason string) string {
	return fmt.Sprintf("\n## Rejected (%s)\n\nBy: %s\nAttempt: %d\nReason: %s\n", now.Format(time.RFC3339), actor, attempt, reason)
}

func formatScopeViolations(violations []scope.Violation) string {
	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = fmt.Sprintf("%s: %s", v.Path, v.Reason)
	}
	return strings.Join(parts, "; ")
}

func formatStubViolations(violations []stub.Violation) string {
	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = fmt.Sprintf("%s:%d: %s (matched %q)", v.File, v.Line, v.Text, v.Pattern)
	}
	return strings.Join(parts, "; ")
}
