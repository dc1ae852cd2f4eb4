// Package config loads and validates burl's workflow configuration:
// config.yaml (workflow policy, scope defaults, validation profiles) and
// agents.yaml (per-agent command/args).
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/re-cinq/burl/internal/stub"
)

// ApproveStrategy selects how `approve` merges a task branch into main.
type ApproveStrategy string

const (
	ApproveRebaseFFOnly ApproveStrategy = "rebase_ff_only"
	ApproveFFOnly       ApproveStrategy = "ff_only"
	ApproveManual       ApproveStrategy = "manual"
)

// ConflictDetection selects what claim-time scope overlap checking
// compares.
type ConflictDetection string

const (
	ConflictDeclared ConflictDetection = "declared"
	ConflictDiff     ConflictDetection = "diff"
	ConflictHybrid   ConflictDetection = "hybrid"
)

// ConflictPolicy selects what happens when an overlap is found.
type ConflictPolicy string

const (
	ConflictFail   ConflictPolicy = "fail"
	ConflictWarn   ConflictPolicy = "warn"
	ConflictIgnore ConflictPolicy = "ignore"
)

// Duration wraps time.Duration for YAML unmarshaling from strings like
// "15m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Step mirrors validate.Step in its YAML shape.
type Step struct {
	Name                   string   `yaml:"name"`
	Command                string   `yaml:"command"`
	RunIfChangedExtensions []string `yaml:"run_if_changed_extensions,omitempty"`
	RunIfChangedGlobs      []string `yaml:"run_if_changed_globs,omitempty"`
}

// ValidationProfile is a named, ordered list of steps.
type ValidationProfile struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Workflow holds workflow-wide policy knobs.
type Workflow struct {
	Branch                string   `yaml:"branch"`
	AutoCommit            *bool    `yaml:"auto_commit,omitempty"`
	AutoPush              *bool    `yaml:"auto_push,omitempty"`
	LockStaleThreshold    Duration `yaml:"lock_stale_threshold,omitempty"`
	QAMaxAttempts         int      `yaml:"qa_max_attempts,omitempty"`
	DefaultProfile        string   `yaml:"default_validation_profile,omitempty"`
	BoostPriorityOnReject bool     `yaml:"boost_priority_on_reject,omitempty"`
}

// AgentConfig describes one external agent the workflow can dispatch.
type AgentConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
}

// Config is the top-level config.yaml shape.
type Config struct {
	Workflow           Workflow            `yaml:"workflow"`
	Remote             string              `yaml:"remote"`
	MainBranch         string              `yaml:"main_branch"`
	ConflictDetection  ConflictDetection   `yaml:"conflict_detection,omitempty"`
	ConflictPolicy     ConflictPolicy      `yaml:"conflict_policy,omitempty"`
	ApproveStrategy    ApproveStrategy     `yaml:"approve_strategy,omitempty"`
	StubPatterns       []string            `yaml:"stub_patterns,omitempty"`
	StubCheckExts      []string            `yaml:"stub_check_extensions,omitempty"`
	PollInterval       Duration            `yaml:"poll_interval,omitempty"`
	ValidationProfiles []ValidationProfile `yaml:"validation_profiles,omitempty"`
}

// Agents is the top-level agents.yaml shape.
type Agents struct {
	Agents map[string]AgentConfig `yaml:"agents"`
}

// Default returns the configuration written by `burl init`.
func Default() *Config {
	autoCommit := true
	autoPush := false
	return &Config{
		Workflow: Workflow{
			Branch:             "burl",
			AutoCommit:         &autoCommit,
			AutoPush:           &autoPush,
			LockStaleThreshold: Duration(15 * time.Minute),
			QAMaxAttempts:      3,
			DefaultProfile:     "default",
		},
		Remote:            "origin",
		MainBranch:        "main",
		ConflictDetection: ConflictDeclared,
		ConflictPolicy:    ConflictWarn,
		ApproveStrategy:   ApproveRebaseFFOnly,
		StubPatterns:      append([]string(nil), stub.DefaultPatterns...),
		StubCheckExts:     append([]string(nil), stub.DefaultExtensions...),
		PollInterval:      Duration(30 * time.Second),
		ValidationProfiles: []ValidationProfile{
			{Name: "default", Steps: nil},
		},
	}
}

// Load reads and parses config.yaml from path, applying defaults to any
// field the file leaves zero.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	cfg := Default()
	// Unmarshal onto the defaulted struct so unset YAML fields keep their
	// default rather than becoming zero values.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if cfg.Workflow.Branch == "" {
		cfg.Workflow.Branch = "burl"
	}
	if cfg.Remote == "" {
		cfg.Remote = "origin"
	}
	if cfg.MainBranch == "" {
		cfg.MainBranch = "main"
	}
	if cfg.ConflictDetection == "" {
		cfg.ConflictDetection = ConflictDeclared
	}
	if cfg.ConflictPolicy == "" {
		cfg.ConflictPolicy = ConflictWarn
	}
	if cfg.ApproveStrategy == "" {
		cfg.ApproveStrategy = ApproveRebaseFFOnly
	}
	if cfg.Workflow.QAMaxAttempts == 0 {
		cfg.Workflow.QAMaxAttempts = 3
	}
	if len(cfg.StubPatterns) == 0 {
		cfg.StubPatterns = append([]string(nil), stub.DefaultPatterns...)
	}
	if len(cfg.StubCheckExts) == 0 {
		cfg.StubCheckExts = append([]string(nil), stub.DefaultExtensions...)
	}
	return cfg, nil
}

// LoadAgents reads and parses agents.yaml from path.
func LoadAgents(path string) (*Agents, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Agents{Agents: map[string]AgentConfig{}}, nil
		}
		return nil, fmt.Errorf("reading agents %s: %w", path, err)
	}
	var a Agents
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing agents YAML: %w", err)
	}
	if a.Agents == nil {
		a.Agents = map[string]AgentConfig{}
	}
	return &a, nil
}

// AutoCommit reports whether transitions should auto-commit the workflow
// branch, defaulting to true when unset.
func (c *Config) AutoCommit() bool {
	return c.Workflow.AutoCommit == nil || *c.Workflow.AutoCommit
}

// AutoPush reports whether transitions should push after committing,
// defaulting to false when unset.
func (c *Config) AutoPush() bool {
	return c.Workflow.AutoPush != nil && *c.Workflow.AutoPush
}

// Profile looks up a named validation profile.
func (c *Config) Profile(name string) (ValidationProfile, bool) {
	if name == "" {
		name = c.Workflow.DefaultProfile
	}
	for _, p := range c.ValidationProfiles {
		if p.Name == name {
			return p, true
		}
	}
	return ValidationProfile{}, false
}

// Validate checks required fields and internal consistency, aggregating
// every problem found rather than failing on the first.
func Validate(cfg *Config) []error {
	var errs []error

	if cfg.Remote == "" {
		errs = append(errs, fmt.Errorf("remote is required"))
	}
	if cfg.MainBranch == "" {
		errs = append(errs, fmt.Errorf("main_branch is required"))
	}

	switch cfg.ApproveStrategy {
	case ApproveRebaseFFOnly, ApproveFFOnly, ApproveManual:
	default:
		errs = append(errs, fmt.Errorf("approve_strategy: unknown value %q", cfg.ApproveStrategy))
	}

	switch cfg.ConflictDetection {
	case ConflictDeclared, ConflictDiff, ConflictHybrid:
	default:
		errs = append(errs, fmt.Errorf("conflict_detection: unknown value %q", cfg.ConflictDetection))
	}

	switch cfg.ConflictPolicy {
	case ConflictFail, ConflictWarn, ConflictIgnore:
	default:
		errs = append(errs, fmt.Errorf("conflict_policy: unknown value %q", cfg.ConflictPolicy))
	}

	names := make(map[string]bool)
	for i, p := range cfg.ValidationProfiles {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("validation_profiles[%d]: name is required", i))
		} else if names[p.Name] {
			errs = append(errs, fmt.Errorf("validation_profiles[%d]: duplicate name %q", i, p.Name))
		} else {
			names[p.Name] = true
		}
		stepNames := make(map[string]bool)
		for j, s := range p.Steps {
			if s.Name == "" {
				errs = append(errs, fmt.Errorf("validation_profiles[%d].steps[%d]: name is required", i, j))
			} else if stepNames[s.Name] {
				errs = append(errs, fmt.Errorf("validation_profiles[%d].steps[%d]: duplicate step name %q", i, j, s.Name))
			} else {
				stepNames[s.Name] = true
			}
			if s.Command == "" {
				errs = append(errs, fmt.Errorf("validation_profiles[%d].steps[%d] (%s): command is required", i, j, s.Name))
			}
		}
	}

	for _, p := range cfg.StubPatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("stub_patterns: invalid pattern %q: %w", p, err))
		}
	}

	return errs
}
