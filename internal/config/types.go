// Package config loads jenkins2gha settings from YAML.
package config

import (
	"maps"

	"github.com/mattjoyce/jenkins2gha/internal/convert"
)

// Config is the full settings tree.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Include  []string       `yaml:"include,omitempty"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Runner   RunnerConfig   `yaml:"runner"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Output   OutputConfig   `yaml:"output"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	API      APIConfig      `yaml:"api"`

	// SourceFiles lists every file that contributed, root first.
	SourceFiles []string `yaml:"-"`
}

// WorkflowConfig shapes the generated workflow file.
type WorkflowConfig struct {
	Name        string            `yaml:"name"`
	Branches    []string          `yaml:"branches"`
	Permissions map[string]string `yaml:"permissions"`
	File        string            `yaml:"file"`
}

// RunnerConfig maps Jenkins agents onto runners. Labels are merged over
// the built-in label table.
type RunnerConfig struct {
	Default string            `yaml:"default"`
	Labels  map[string]string `yaml:"labels,omitempty"`
}

// JobsConfig holds per-job limits.
type JobsConfig struct {
	TimeoutMinutes         int      `yaml:"timeout_minutes"`
	FallbackTimeoutMinutes int      `yaml:"fallback_timeout_minutes"`
	PostTimeoutMinutes     int      `yaml:"post_timeout_minutes"`
	StepTimeoutMinutes     int      `yaml:"step_timeout_minutes"`
	DeployKeywords         []string `yaml:"deploy_keywords"`
}

// OutputConfig says where files are written.
type OutputConfig struct {
	Dir          string `yaml:"dir"`
	WorkflowsDir string `yaml:"workflows_dir"`
	ActionsDir   string `yaml:"actions_dir"`
}

// LedgerConfig controls the run history database.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// APIConfig configures `serve`.
type APIConfig struct {
	Listen string `yaml:"listen"`
	Token  string `yaml:"token"`
	// CORSOrigins enables cross-origin requests from these origins.
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

// Defaults returns the configuration used when no file is found.
func Defaults() *Config {
	opts := convert.DefaultOptions()
	return &Config{
		LogLevel: "info",
		Workflow: WorkflowConfig{
			Name:        opts.WorkflowName,
			Branches:    opts.Branches,
			Permissions: opts.Permissions,
			File:        "ci.yml",
		},
		Runner: RunnerConfig{
			Default: opts.DefaultRunner,
		},
		Jobs: JobsConfig{
			TimeoutMinutes:         opts.TimeoutMinutes,
			FallbackTimeoutMinutes: opts.FallbackTimeoutMinutes,
			PostTimeoutMinutes:     opts.PostTimeoutMinutes,
			StepTimeoutMinutes:     opts.StepTimeoutMinutes,
			DeployKeywords:         opts.DeployKeywords,
		},
		Output: OutputConfig{
			Dir:          ".",
			WorkflowsDir: ".github/workflows",
			ActionsDir:   opts.ActionsDir,
		},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    "./.jenkins2gha/ledger.db",
		},
		API: APIConfig{
			Listen: "127.0.0.1:8080",
		},
	}
}

// ConvertOptions derives converter settings.
func (c *Config) ConvertOptions() convert.Options {
	opts := convert.DefaultOptions()
	opts.WorkflowName = c.Workflow.Name
	opts.Branches = append([]string(nil), c.Workflow.Branches...)
	opts.Permissions = maps.Clone(c.Workflow.Permissions)
	opts.DefaultRunner = c.Runner.Default
	maps.Copy(opts.Labels, c.Runner.Labels)
	opts.TimeoutMinutes = c.Jobs.TimeoutMinutes
	opts.FallbackTimeoutMinutes = c.Jobs.FallbackTimeoutMinutes
	opts.PostTimeoutMinutes = c.Jobs.PostTimeoutMinutes
	opts.StepTimeoutMinutes = c.Jobs.StepTimeoutMinutes
	opts.DeployKeywords = append([]string(nil), c.Jobs.DeployKeywords...)
	opts.ActionsDir = c.Output.ActionsDir
	return opts
}

// WorkflowPath is the workflow file path relative to the output root.
func (c *Config) WorkflowPath() string {
	return c.Output.WorkflowsDir + "/" + c.Workflow.File
}
