// Package gha models GitHub Actions workflows and composite actions and
// renders them as YAML with a stable key order.
package gha

// Workflow is one .github/workflows file.
type Workflow struct {
	Name        string
	On          Triggers
	Env         map[string]string
	Permissions map[string]string
	Jobs        []*Job
}

// Job returns the job with id, or nil.
func (w *Workflow) Job(id string) *Job {
	for _, j := range w.Jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

// Triggers is the workflow's `on:` section.
type Triggers struct {
	Push             *BranchFilter
	PullRequest      *BranchFilter
	WorkflowDispatch *Dispatch
}

// BranchFilter restricts a push or pull_request trigger.
type BranchFilter struct {
	Branches []string `yaml:"branches,omitempty"`
}

// Dispatch is the workflow_dispatch trigger with its inputs.
type Dispatch struct {
	Inputs []Input
}

// Input is a workflow_dispatch or composite action input. Secret names the
// repository secret a composite action input must be fed from; it is not
// rendered.
type Input struct {
	Name        string   `yaml:"-"`
	Description string   `yaml:"description"`
	Required    bool     `yaml:"required"`
	Default     *string  `yaml:"default,omitempty"`
	Type        string   `yaml:"type,omitempty"`
	Options     []string `yaml:"options,omitempty"`
	Secret      string   `yaml:"-"`
	Source      string   `yaml:"-"`
}

// RunsOn renders as a scalar for a single label and a list otherwise.
type RunsOn []string

// MarshalYAML implements yaml.Marshaler.
func (r RunsOn) MarshalYAML() (any, error) {
	if len(r) == 1 {
		return r[0], nil
	}
	return []string(r), nil
}

// Container runs a job inside an image.
type Container struct {
	Image   string `yaml:"image"`
	Options string `yaml:"options,omitempty"`
}

// Concurrency serialises jobs sharing a group.
type Concurrency struct {
	Group            string `yaml:"group"`
	CancelInProgress bool   `yaml:"cancel-in-progress"`
}

// Job is one workflow job. IfNote is rendered as a line comment on the
// if: key and marks conditions that need human review.
type Job struct {
	ID              string            `yaml:"-"`
	Name            string            `yaml:"name,omitempty"`
	RunsOn          RunsOn            `yaml:"runs-on"`
	Needs           []string          `yaml:"needs,omitempty"`
	If              string            `yaml:"if,omitempty"`
	IfNote          string            `yaml:"-"`
	Environment     string            `yaml:"environment,omitempty"`
	Container       *Container        `yaml:"container,omitempty"`
	Env             map[string]string `yaml:"env,omitempty"`
	Concurrency     *Concurrency      `yaml:"concurrency,omitempty"`
	TimeoutMinutes  int               `yaml:"timeout-minutes,omitempty"`
	ContinueOnError bool              `yaml:"continue-on-error,omitempty"`
	Steps           []Step            `yaml:"steps"`
}

// Step is one job or composite action step.
type Step struct {
	Name            string            `yaml:"name,omitempty"`
	ID              string            `yaml:"id,omitempty"`
	If              string            `yaml:"if,omitempty"`
	Uses            string            `yaml:"uses,omitempty"`
	With            map[string]string `yaml:"with,omitempty"`
	Run             string            `yaml:"run,omitempty"`
	Shell           string            `yaml:"shell,omitempty"`
	Env             map[string]string `yaml:"env,omitempty"`
	ContinueOnError bool              `yaml:"continue-on-error,omitempty"`
	TimeoutMinutes  int               `yaml:"timeout-minutes,omitempty"`
}

// Action is a composite action.yml.
type Action struct {
	Name        string
	Description string
	Inputs      []Input
	Steps       []Step
}

// Input returns the declared input with name, or nil.
func (a *Action) Input(name string) *Input {
	for i := range a.Inputs {
		if a.Inputs[i].Name == name {
			return &a.Inputs[i]
		}
	}
	return nil
}

// Checkout returns the standard checkout step.
func Checkout() Step {
	return Step{Name: "Checkout code", Uses: "actions/checkout@v4"}
}

// Bash returns a run step executed by bash.
func Bash(name, script string) Step {
	return Step{Name: name, Run: script, Shell: "bash"}
}

// Ptr returns a pointer to s, for optional defaults.
func Ptr(s string) *string { return &s }
