package engine

import (
	"path/filepath"

	"github.com/re-cinq/burl/internal/diff"
	"github.com/re-cinq/burl/internal/fileutil"
	"github.com/re-cinq/burl/internal/git"
	"github.com/re-cinq/burl/internal/scope"
	"github.com/re-cinq/burl/internal/stub"
	"github.com/re-cinq/burl/internal/task"
	"github.com/re-cinq/burl/internal/validate"
)

// checksResult aggregates every check the validation pipeline (§4.11) and
// the scope/stub validators (§4.9, §4.10) can produce for one task.
type checksResult struct {
	ChangedFiles   []string
	Scope          scope.Result
	StubViolations []stub.Violation
	Profile        validate.ProfileResult
	Passed         bool
}

// runChecks runs scope, stub, and the task's configured validation profile
// against everything changed between base and HEAD in taskRepo. It is
// shared by the `validate` and `approve` transactions; `submit` runs only
// scope and stub checks inline since the command pipeline has no place in
// a submit precondition.
func (e *Engine) runChecks(taskRepo *git.Repo, f *task.File, base string) (checksResult, error) {
	changedOut, err := taskRepo.DiffNameOnly(base, "HEAD")
	if err != nil {
		return checksResult{}, GitError("diffing changed files", err)
	}
	changedFiles := diff.ParseChangedFiles(changedOut)

	scopeResult := scope.Validate(f.Frontmatter.Affects, f.Frontmatter.AffectsGlobs, f.Frontmatter.MustNotTouch, changedFiles)

	unifiedOut, err := taskRepo.DiffUnified0(base, "HEAD")
	if err != nil {
		return checksResult{}, GitError("diffing added lines", err)
	}
	addedLines := diff.ParseAddedLines(unifiedOut)

	stubValidator, err := stub.NewValidator(e.Config.StubPatterns, e.Config.StubCheckExts)
	if err != nil {
		return checksResult{}, UserError("invalid stub_patterns configuration: %v", err)
	}
	stubViolations := stubValidator.Check(addedLines)

	profile, ok := e.Config.Profile(f.Frontmatter.ValidationProfile)
	var profResult validate.ProfileResult
	if !ok {
		profResult = validate.ProfileResult{Profile: f.Frontmatter.ValidationProfile, Passed: false}
	} else {
		steps := make([]validate.Step, len(profile.Steps))
		for i, s := range profile.Steps {
			steps[i] = validate.Step{
				Name:                   s.Name,
				Command:                s.Command,
				RunIfChangedExtensions: s.RunIfChangedExtensions,
				RunIfChangedGlobs:      s.RunIfChangedGlobs,
			}
		}
		logDir := filepath.Join(fileutil.AgentLogsDir(e.Ctx.WorkflowState), f.Frontmatter.ID)
		profResult, err = validate.RunProfile(validate.Profile{Name: profile.Name, Steps: steps}, f.Frontmatter.Worktree, changedFiles, logDir)
		if err != nil {
			return checksResult{}, ValidationError("running validation profile %s: %v", profile.Name, err)
		}
	}

	passed := scopeResult.Pass && len(stubViolations) == 0 && profResult.Passed
	return checksResult{
		ChangedFiles:   changedFiles,
		Scope:          scopeResult,
		StubViolations: stubViolations,
		Profile:        profResult,
		Passed:         passed,
	}, nil
}
