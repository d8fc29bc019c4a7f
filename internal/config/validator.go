package config

import (
	"errors"
	"fmt"
	"net"
	"path"
	"strings"
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("log_level must be one of: debug, info, warn, error (got %q)", c.LogLevel)
	}

	if strings.TrimSpace(c.Workflow.Name) == "" {
		add("workflow.name is required")
	}
	if len(c.Workflow.Branches) == 0 {
		add("workflow.branches must list at least one branch")
	}
	if f := c.Workflow.File; f == "" || strings.Contains(f, "/") || !(strings.HasSuffix(f, ".yml") || strings.HasSuffix(f, ".yaml")) {
		add("workflow.file must be a bare .yml or .yaml file name (got %q)", f)
	}

	if strings.TrimSpace(c.Runner.Default) == "" {
		add("runner.default is required")
	}

	if c.Jobs.TimeoutMinutes <= 0 {
		add("jobs.timeout_minutes must be positive")
	}
	if c.Jobs.FallbackTimeoutMinutes <= 0 {
		add("jobs.fallback_timeout_minutes must be positive")
	}
	if c.Jobs.PostTimeoutMinutes <= 0 {
		add("jobs.post_timeout_minutes must be positive")
	}
	if c.Jobs.StepTimeoutMinutes <= 0 {
		add("jobs.step_timeout_minutes must be positive")
	}

	for name, dir := range map[string]string{"output.workflows_dir": c.Output.WorkflowsDir, "output.actions_dir": c.Output.ActionsDir} {
		if dir == "" || path.IsAbs(dir) || path.Clean(dir) != dir || strings.HasPrefix(dir, "..") {
			add("%s must be a clean relative path (got %q)", name, dir)
		}
	}
	if c.Output.Dir == "" {
		add("output.dir is required")
	}

	if c.Ledger.Enabled && c.Ledger.Path == "" {
		add("ledger.path is required when the ledger is enabled")
	}

	if _, _, err := net.SplitHostPort(c.API.Listen); err != nil {
		add("api.listen %q: %v", c.API.Listen, err)
	}
	if m := envVarPattern.FindStringSubmatch(c.API.Token); m != nil {
		add("api.token: environment variable ${%s} is not set", m[1])
	}
	for i, origin := range c.API.CORSOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			add("api.cors_origins[%d] %q: must be * or an http(s) origin", i, origin)
		}
	}

	return errors.Join(errs...)
}
