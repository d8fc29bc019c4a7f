package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvConfig names the environment variable that points at a config file.
const EnvConfig = "JENKINS2GHA_CONFIG"

// Discover finds the config file. Priority: explicit flag value,
// $JENKINS2GHA_CONFIG, ./jenkins2gha.yaml, ~/.config/jenkins2gha/config.yaml.
// An explicit or environment path must exist; otherwise a missing file
// yields "" and no error.
func Discover(explicit string) (string, error) {
	if explicit != "" {
		if !fileExists(explicit) {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	if p := os.Getenv(EnvConfig); p != "" {
		if !fileExists(p) {
			return "", fmt.Errorf("$%s points at missing file %s", EnvConfig, p)
		}
		return p, nil
	}
	for _, p := range candidates() {
		if fileExists(p) {
			return p, nil
		}
	}
	return "", nil
}

func candidates() []string {
	out := []string{"jenkins2gha.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		out = append(out, filepath.Join(home, ".config", "jenkins2gha", "config.yaml"))
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
