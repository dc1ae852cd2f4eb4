package stub

import (
	"testing"

	"github.com/re-cinq/burl/internal/diff"
)

func TestNewValidatorRejectsInvalidPattern(t *testing.T) {
	if _, err := NewValidator([]string{"("}, DefaultExtensions); err == nil {
		t.Error("expected error for unbalanced regex pattern")
	}
}

func TestCheckFindsStubInParticipatingExtension(t *testing.T) {
	v, err := NewValidator(DefaultPatterns, DefaultExtensions)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	lines := []diff.AddedLine{
		{File: "src/player.rs", Line: 1, Text: "// TODO: cooldown"},
	}
	violations := v.Check(lines)
	if len(violations) != 1 {
		t.Fatalf("Check() = %+v, want 1 violation", violations)
	}
	if violations[0].File != "src/player.rs" || violations[0].Line != 1 {
		t.Errorf("unexpected violation: %+v", violations[0])
	}
}

func TestCheckIgnoresNonParticipatingExtension(t *testing.T) {
	v, err := NewValidator(DefaultPatterns, []string{"go"})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	lines := []diff.AddedLine{
		{File: "README.md", Line: 1, Text: "TODO: write docs"},
	}
	if violations := v.Check(lines); len(violations) != 0 {
		t.Errorf("Check() = %+v, want none (extension not configured)", violations)
	}
}

func TestCheckIgnoresCleanLines(t *testing.T) {
	v, err := NewValidator(DefaultPatterns, DefaultExtensions)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	lines := []diff.AddedLine{
		{File: "src/player.rs", Line: 1, Text: "fn jump() {}"},
	}
	if violations := v.Check(lines); len(violations) != 0 {
		t.Errorf("Check() = %+v, want none", violations)
	}
}

func TestCheckMultiplePatterns(t *testing.T) {
	v, err := NewValidator(DefaultPatterns, DefaultExtensions)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	lines := []diff.AddedLine{
		{File: "a.go", Line: 1, Text: "// FIXME: leak"},
		{File: "a.py", Line: 2, Text: "raise NotImplemented"},
		{File: "a.ts", Line: 3, Text: "const x = 1"},
	}
	violations := v.Check(lines)
	if len(violations) != 2 {
		t.Fatalf("Check() = %+v, want 2 violations", violations)
	}
}

func TestParticipatesIsCaseInsensitiveOnExtension(t *testing.T) {
	v, err := NewValidator(DefaultPatterns, []string{"RS"})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	if !v.participates("src/player.rs") {
		t.Error("expected .rs to participate when configured as RS")
	}
}
