package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/re-cinq/burl/internal/burlctx"
	"github.com/re-cinq/burl/internal/config"
	"github.com/re-cinq/burl/internal/events"
	"github.com/re-cinq/burl/internal/fileutil"
	"github.com/re-cinq/burl/internal/git"
	"github.com/re-cinq/burl/internal/lock"
)

const workflowGitignore = "locks/\nagent-logs/\n"

// Init scaffolds a fresh workflow: the `burl` branch and its worktree at
// `.burl`, the five bucket directories, the events/locks/agent-logs/prompts
// directories, and a default config.yaml/agents.yaml. It is the one
// operation that runs with no *Engine, since there is no config to load
// until this creates one.
//
// Init is idempotent: a second call on an already-initialized repo loads
// and returns the existing config without touching anything on disk.
func Init(ctx *burlctx.Context) (*config.Config, error) {
	if info, err := os.Stat(ctx.WorkflowState); err == nil && info.IsDir() {
		cfg, err := config.Load(fileutil.ConfigPath(ctx.WorkflowState))
		if err != nil {
			return nil, UserError("workflow already initialized in %s but config.yaml could not be read: %v", ctx.RepoRoot, err)
		}
		return cfg, nil
	}

	mainRepo := git.NewRepo(ctx.RepoRoot)
	if !mainRepo.BranchExists(burlctx.WorkflowBranch) {
		if err := mainRepo.CreateBranch(burlctx.WorkflowBranch, "HEAD"); err != nil {
			return nil, GitError("creating "+burlctx.WorkflowBranch+" branch", err)
		}
	}
	if _, err := os.Stat(ctx.WorkflowWorktree); err != nil {
		if err := mainRepo.CreateWorktree(ctx.WorkflowWorktree, burlctx.WorkflowBranch); err != nil {
			return nil, GitError("creating workflow worktree", err)
		}
	}

	// Guards the scaffolding below so two concurrent `burl init` runs can't
	// race on directory/file creation.
	guard, err := lock.WorkflowLock(ctx.LocksDir, "init")
	if err != nil {
		return nil, wrapLockErr("init", err)
	}
	defer guard.Release()

	for _, bucket := range fileutil.Buckets {
		if err := fileutil.EnsureDir(fileutil.BucketDir(ctx.WorkflowState, bucket)); err != nil {
			return nil, UserError("creating bucket dir %s: %v", bucket, err)
		}
	}
	for _, dir := range []string{
		fileutil.EventsDir(ctx.WorkflowState),
		fileutil.LocksDir(ctx.WorkflowState),
		fileutil.AgentLogsDir(ctx.WorkflowState),
		fileutil.PromptsDir(ctx.WorkflowState),
		ctx.TaskWorktreeRoot,
	} {
		if err := fileutil.EnsureDir(dir); err != nil {
			return nil, UserError("creating %s: %v", dir, err)
		}
	}

	cfg := config.Default()
	cfgData, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, UserError("marshaling default config: %v", err)
	}
	if err := fileutil.AtomicWrite(fileutil.ConfigPath(ctx.WorkflowState), cfgData, 0644); err != nil {
		return nil, UserError("writing config.yaml: %v", err)
	}

	agentsData, err := yaml.Marshal(&config.Agents{Agents: map[string]config.AgentConfig{}})
	if err != nil {
		return nil, UserError("marshaling default agents: %v", err)
	}
	if err := fileutil.AtomicWrite(fileutil.AgentsPath(ctx.WorkflowState), agentsData, 0644); err != nil {
		return nil, UserError("writing agents.yaml: %v", err)
	}

	gitignorePath := filepath.Join(ctx.WorkflowState, ".gitignore")
	if err := fileutil.AtomicWrite(gitignorePath, []byte(workflowGitignore), 0644); err != nil {
		return nil, UserError("writing .gitignore: %v", err)
	}

	eng := &Engine{Ctx: ctx, Config: cfg}
	if err := eng.appendEvent(events.ActionInit, lock.Actor(), "", nil); err != nil {
		return nil, err
	}
	if err := eng.commitWorkflow(fmt.Sprintf("initialize %s workflow", burlctx.WorkflowBranch)); err != nil {
		return nil, err
	}

	return cfg, nil
}
