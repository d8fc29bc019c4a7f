package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads the file at path over Defaults, then its includes in order,
// verifies checksums when a .checksums file sits next to the config, and
// validates the result.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %q: %w", path, err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	cfg := Defaults()
	if err := overlay(cfg, absPath, map[string]bool{}); err != nil {
		return nil, err
	}
	if err := verifyChecksums(cfg.SourceFiles); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads the discovered config, or validated defaults when
// there is none. The returned path is empty in the latter case.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Discover(explicit)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		cfg := Defaults()
		return cfg, "", cfg.Validate()
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// overlay decodes one file onto cfg. Keys absent from the file keep their
// current value; maps are merged key by key.
func overlay(cfg *Config, absPath string, visited map[string]bool) error {
	if visited[absPath] {
		return fmt.Errorf("include cycle at %s", absPath)
	}
	visited[absPath] = true

	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", absPath, err)
	}
	includes := cfg.Include
	cfg.Include = nil
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return fmt.Errorf("parse %s: %w", absPath, err)
	}
	cfg.SourceFiles = append(cfg.SourceFiles, absPath)

	own := cfg.Include
	cfg.Include = append(includes, own...)
	baseDir := filepath.Dir(absPath)
	for i, inc := range own {
		incPath := inc
		if !filepath.IsAbs(incPath) {
			incPath = filepath.Join(baseDir, incPath)
		}
		if _, err := os.Stat(incPath); err != nil {
			return fmt.Errorf("include[%d]: file not found: %s\n"+
				"Referenced from: %s", i, incPath, absPath)
		}
		if err := overlay(cfg, filepath.Clean(incPath), visited); err != nil {
			return fmt.Errorf("include[%d] (%s): %w", i, inc, err)
		}
	}
	return nil
}

// interpolateEnv replaces ${VAR} with its value. Unset variables are left
// in place so validation can name them.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}

// Files returns the config file at path followed by every file it
// includes. Checksums are not verified, so a changed config can be
// locked again.
func Files(path string) ([]string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %q: %w", path, err)
	}
	cfg := Defaults()
	if err := overlay(cfg, absPath, map[string]bool{}); err != nil {
		return nil, err
	}
	return cfg.SourceFiles, nil
}
