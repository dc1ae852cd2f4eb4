// Package scope validates that the files a task touched lie within its
// declared allow-list and outside its deny-list. Glob matching is
// delegated to the gitignore-pattern matcher so that "**", bracket
// classes, and anchored patterns behave exactly as authors of
// .gitignore-style lists already expect.
package scope

import (
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Violation describes one changed file that failed scope validation.
type Violation struct {
	Path   string
	Reason string
}

// Result is the outcome of validating a changed-file set against a task's
// declared scope.
type Result struct {
	Pass       bool
	Violations []Violation
}

// Validate checks changedFiles against affects (exact paths),
// affectsGlobs, and mustNotTouch. With both affects and affectsGlobs
// empty, no scope is declared and every file is allowed unless it matches
// mustNotTouch, which always overrides.
func Validate(affects, affectsGlobs, mustNotTouch, changedFiles []string) Result {
	exact := make(map[string]bool, len(affects))
	for _, a := range affects {
		exact[normalize(a)] = true
	}

	noScopeDeclared := len(affects) == 0 && len(affectsGlobs) == 0

	var allowMatcher *ignore.GitIgnore
	if len(affectsGlobs) > 0 {
		allowMatcher = ignore.CompileIgnoreLines(affectsGlobs...)
	}
	var denyMatcher *ignore.GitIgnore
	if len(mustNotTouch) > 0 {
		denyMatcher = ignore.CompileIgnoreLines(mustNotTouch...)
	}

	var violations []Violation
	for _, f := range changedFiles {
		path := normalize(f)

		if denyMatcher != nil && denyMatcher.MatchesPath(path) {
			violations = append(violations, Violation{
				Path:   f,
				Reason: "matches must_not_touch pattern",
			})
			continue
		}

		allowed := noScopeDeclared || exact[path] || (allowMatcher != nil && allowMatcher.MatchesPath(path))
		if !allowed {
			violations = append(violations, Violation{
				Path:   f,
				Reason: "not within affects or affects_globs",
			})
		}
	}

	return Result{Pass: len(violations) == 0, Violations: violations}
}

func normalize(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
