package convert

import (
	"strings"

	"github.com/mattjoyce/jenkins2gha/internal/gha"
	"github.com/mattjoyce/jenkins2gha/internal/jenkins"
)

// Options tunes workflow synthesis. The zero value is not usable; start
// from DefaultOptions.
type Options struct {
	WorkflowName           string
	Branches               []string
	Permissions            map[string]string
	DefaultRunner          string
	Labels                 map[string]string
	TimeoutMinutes         int
	FallbackTimeoutMinutes int
	PostTimeoutMinutes     int
	StepTimeoutMinutes     int
	DeployKeywords         []string
	ActionsDir             string
}

// DefaultOptions returns the stock settings.
func DefaultOptions() Options {
	return Options{
		WorkflowName:           "CI Pipeline",
		Branches:               []string{"master", "main", "develop"},
		Permissions:            map[string]string{"contents": "read"},
		DefaultRunner:          "ubuntu-latest",
		Labels:                 DefaultLabels(),
		TimeoutMinutes:         60,
		FallbackTimeoutMinutes: 30,
		PostTimeoutMinutes:     30,
		StepTimeoutMinutes:     30,
		DeployKeywords:         []string{"deploy", "release", "publish"},
		ActionsDir:             ".github/actions",
	}
}

// DefaultLabels maps Jenkins agent labels onto hosted runner labels.
func DefaultLabels() map[string]string {
	return map[string]string{
		"ubuntu":         "ubuntu-latest",
		"ubuntu-latest":  "ubuntu-latest",
		"linux":          "ubuntu-latest",
		"ubuntu-20.04":   "ubuntu-20.04",
		"ubuntu-2004":    "ubuntu-20.04",
		"ubuntu-22.04":   "ubuntu-22.04",
		"ubuntu-2204":    "ubuntu-22.04",
		"windows":        "windows-latest",
		"windows-latest": "windows-latest",
		"win":            "windows-latest",
		"windows-2019":   "windows-2019",
		"win2019":        "windows-2019",
		"windows-2022":   "windows-2022",
		"win2022":        "windows-2022",
		"mac":            "macos-latest",
		"macos":          "macos-latest",
		"macos-latest":   "macos-latest",
		"darwin":         "macos-latest",
		"macos-11":       "macos-11",
		"macos11":        "macos-11",
		"macos-12":       "macos-12",
		"macos12":        "macos-12",
	}
}

// RunnerFor maps an agent label onto runs-on labels. Unknown labels run
// on a self-hosted runner carrying the same label.
func (o Options) RunnerFor(label string) gha.RunsOn {
	key := strings.ToLower(strings.TrimSpace(label))
	if r, ok := o.Labels[key]; ok {
		return gha.RunsOn{r}
	}
	if strings.Contains(key, "docker") {
		return gha.RunsOn{"ubuntu-latest"}
	}
	if key == "" {
		return gha.RunsOn{o.DefaultRunner}
	}
	return gha.RunsOn{"self-hosted", label}
}

// placement resolves runs-on and container for an agent. ok is false
// when the agent does not pick a placement and the caller should inherit.
func (o Options) placement(a *jenkins.Agent) (gha.RunsOn, *gha.Container, bool) {
	if a == nil {
		return nil, nil, false
	}
	switch a.Kind {
	case jenkins.AgentAny:
		return gha.RunsOn{o.DefaultRunner}, nil, true
	case jenkins.AgentLabel:
		return o.RunnerFor(a.Label), nil, true
	case jenkins.AgentDocker:
		return gha.RunsOn{"ubuntu-latest"}, &gha.Container{Image: a.Image, Options: a.Args}, true
	}
	return nil, nil, false
}

func (o Options) isDeploy(name string) bool {
	n := strings.ToLower(name)
	for _, kw := range o.DeployKeywords {
		if kw != "" && strings.Contains(n, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
