// Package stub detects unfinished code (TODO markers, unimplemented!()
// calls, and similar) among a diff's added lines, restricted to a
// configured set of file extensions.
package stub

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/re-cinq/burl/internal/diff"
)

// DefaultPatterns mirrors the original implementation's default stub
// markers: common "not finished" idioms across several languages.
var DefaultPatterns = []string{
	`TODO`,
	`FIXME`,
	`XXX`,
	`unimplemented!\(`,
	`todo!\(`,
	`NotImplementedError`,
	`raise NotImplemented`,
}

// DefaultExtensions mirrors the original implementation's default set of
// extensions that participate in stub checking.
var DefaultExtensions = []string{"go", "rs", "py", "ts", "tsx", "js", "jsx"}

// Violation is one added line that matched a stub pattern.
type Violation struct {
	File    string
	Line    int
	Text    string
	Pattern string
}

// Validator holds compiled patterns and the extension allow-list.
type Validator struct {
	patterns   []*regexp.Regexp
	rawPattern []string
	extensions map[string]bool
}

// NewValidator compiles patterns once; an invalid pattern is a config
// user-error, surfaced immediately rather than at check time.
func NewValidator(patterns, extensions []string) (*Validator, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid stub pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}

	ext := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		ext[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}

	return &Validator{patterns: compiled, rawPattern: patterns, extensions: ext}, nil
}

// participates reports whether a file's lowercased extension is in the
// configured allow-list.
func (v *Validator) participates(file string) bool {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(file), "."))
	return v.extensions[ext]
}

// Check scans addedLines and returns the first matching violation for each
// participating line, iterating configured patterns in order so the
// first-match rule is deterministic.
func (v *Validator) Check(addedLines []diff.AddedLine) []Violation {
	var violations []Violation
	for _, line := range addedLines {
		if !v.participates(line.File) {
			continue
		}
		for i, re := range v.patterns {
			if re.MatchString(line.Text) {
				violations = append(violations, Violation{
					File:    line.File,
					Line:    line.Line,
					Text:    line.Text,
					Pattern: v.rawPattern[i],
				})
				break
			}
		}
	}
	return violations
}
