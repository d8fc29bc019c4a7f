// Package convert synthesizes a GitHub Actions workflow and per-stage
// composite actions from a parsed Jenkins declarative pipeline.
package convert

import (
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/mattjoyce/jenkins2gha/internal/actions"
	"github.com/mattjoyce/jenkins2gha/internal/gha"
	"github.com/mattjoyce/jenkins2gha/internal/jenkins"
	"github.com/mattjoyce/jenkins2gha/internal/secrets"
)

// PostJobID is the id of the job that runs pipeline-level post actions.
const PostJobID = "pipeline-post"

// Diagnostic kinds.
const (
	DiagFallback  = "fallback"
	DiagDuplicate = "duplicate-name"
	DiagTruncated = "truncated"
	DiagCondition = "condition"
)

// Diagnostic is a human-visible note about something the converter
// degraded or renamed.
type Diagnostic struct {
	Stage   string `json:"stage,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ActionFile is a composite action and the repository path it belongs at.
type ActionFile struct {
	Path   string      `json:"path"`
	Action *gha.Action `json:"action"`
}

// StageMetadata summarises one converted stage.
type StageMetadata struct {
	Name                   string            `json:"name"`
	JobID                  string            `json:"job_id"`
	Path                   string            `json:"path,omitempty"`
	ParallelGroup          string            `json:"parallel_group,omitempty"`
	Env                    map[string]string `json:"env,omitempty"`
	ApprovalEnvironment    string            `json:"approval_environment,omitempty"`
	RequiredSecrets        []string          `json:"required_secrets"`
	HasDocker              bool              `json:"has_docker"`
	HasKubectl             bool              `json:"has_kubectl"`
	HasSonarQube           bool              `json:"has_sonarqube"`
	HasPostActions         bool              `json:"has_post_actions"`
	ManualConversionNeeded []string          `json:"manual_conversion_needed"`
	ComplexityScore        int               `json:"complexity_score"`
	PluginDependencies     []string          `json:"plugin_dependencies"`
	Fallback               bool              `json:"fallback,omitempty"`
}

// Result is everything one conversion produces.
type Result struct {
	Pipeline    *jenkins.Pipeline `json:"-"`
	Workflow    *gha.Workflow     `json:"-"`
	Actions     []ActionFile      `json:"-"`
	Stages      []StageMetadata   `json:"stages"`
	PostManual  []string          `json:"post_manual,omitempty"`
	Diagnostics []Diagnostic      `json:"diagnostics"`
	Fingerprint string            `json:"fingerprint"`
}

// RequiredSecrets returns every secret the workflow reads, in first-use
// order.
func (r *Result) RequiredSecrets() []string {
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, e := range r.Pipeline.Env {
		if e.Credential != "" {
			add(secrets.TargetName(e.Credential))
		}
	}
	for _, st := range r.Stages {
		for _, s := range st.RequiredSecrets {
			add(s)
		}
	}
	if j := r.Workflow.Job(PostJobID); j != nil {
		for _, s := range secretRefs(j) {
			add(s)
		}
	}
	return out
}

// Converter turns Jenkinsfile text into a Result. It holds no state
// between calls.
type Converter struct {
	opts        Options
	logger      *slog.Logger
	materialize func(id, name string, f jenkins.Features, tools []jenkins.Tool) *actions.Result
}

// New returns a converter. A nil logger discards log output.
func New(opts Options, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Labels == nil {
		opts.Labels = DefaultLabels()
	}
	return &Converter{opts: opts, logger: logger, materialize: actions.Materialize}
}

// Convert parses text and synthesizes the workflow. Only a missing
// pipeline or stages block is an error; per-stage failures become
// fallback jobs.
func (c *Converter) Convert(text string) (*Result, error) {
	p, err := jenkins.Parse(text)
	if err != nil {
		return nil, err
	}
	return c.ConvertPipeline(p)
}

// ConvertPipeline synthesizes the workflow for an already parsed pipeline.
func (c *Converter) ConvertPipeline(p *jenkins.Pipeline) (*Result, error) {
	run := &conversion{
		Converter: c,
		p:         p,
		used:      map[string]bool{},
		res:       &Result{Pipeline: p},
	}
	if len(p.Post) > 0 {
		run.used[PostJobID] = true
	}
	if p.Truncated {
		run.diag("", DiagTruncated, "an unterminated block cut the stage list short; later stages were not converted")
		c.logger.Warn("stage list truncated", "stages", len(p.Stages))
	}

	run.globalRunsOn, run.globalContainer, _ = c.opts.placement(&p.Agent)
	if run.globalRunsOn == nil {
		run.globalRunsOn = gha.RunsOn{c.opts.DefaultRunner}
	}

	wf := &gha.Workflow{
		Name: c.opts.WorkflowName,
		On: gha.Triggers{
			Push:             &gha.BranchFilter{Branches: c.opts.Branches},
			PullRequest:      &gha.BranchFilter{Branches: c.opts.Branches},
			WorkflowDispatch: &gha.Dispatch{Inputs: dispatchInputs(p.Parameters)},
		},
		Env:         run.globalEnv(),
		Permissions: c.opts.Permissions,
	}
	run.res.Workflow = wf

	var cursor []string
	for _, node := range p.Stages {
		if !node.IsParallel() {
			job := run.stage(node.Stage, nil, "", cursor)
			wf.Jobs = append(wf.Jobs, job)
			cursor = []string{job.ID}
			continue
		}
		parent := run.parentFeatures(node.Stage)
		var members []string
		for _, m := range node.Parallel {
			job := run.stage(m, parent, node.Name, cursor)
			wf.Jobs = append(wf.Jobs, job)
			members = append(members, job.ID)
		}
		cursor = members
	}

	if len(p.Post) > 0 {
		wf.Jobs = append(wf.Jobs, run.postJob())
	}

	if err := Validate(wf); err != nil {
		return nil, fmt.Errorf("validate job graph: %w", err)
	}
	fp, err := Fingerprint(wf, run.res.Actions)
	if err != nil {
		return nil, err
	}
	run.res.Fingerprint = fp
	return run.res, nil
}

// conversion is the state of one ConvertPipeline call.
type conversion struct {
	*Converter
	p               *jenkins.Pipeline
	used            map[string]bool
	res             *Result
	globalRunsOn    gha.RunsOn
	globalContainer *gha.Container
	globalVals      map[string]string
}

func (r *conversion) diag(stage, kind, msg string) {
	r.res.Diagnostics = append(r.res.Diagnostics, Diagnostic{Stage: stage, Kind: kind, Message: msg})
}

// allocID derives a unique job id from a stage name, suffixing -2, -3, ...
// on collision.
func (r *conversion) allocID(name string) string {
	base := jenkins.SanitizeName(name)
	id := base
	for n := 2; r.used[id]; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	r.used[id] = true
	if id != base {
		r.diag(name, DiagDuplicate, fmt.Sprintf("job id %q is taken; stage converted as %q", base, id))
		r.logger.Warn("duplicate stage name", "stage", name, "job", id)
	}
	return id
}

func (r *conversion) globalEnv() map[string]string {
	r.globalVals = map[string]string{}
	if len(r.p.Env) == 0 {
		return nil
	}
	for _, e := range r.p.Env {
		r.globalVals[e.Key] = envValue(e)
	}
	out := make(map[string]string, len(r.globalVals))
	for k, v := range r.globalVals {
		out[k] = v
	}
	return out
}

func envValue(e jenkins.EnvVar) string {
	if e.Credential != "" {
		return "${{ secrets." + secrets.TargetName(e.Credential) + " }}"
	}
	return actions.RewriteCommand(e.Value)
}

func (r *conversion) parentFeatures(st jenkins.Stage) *jenkins.Features {
	f := jenkins.ExtractStage(st)
	return &f
}

// inherit merges a parallel group's directives into a member's features.
func inherit(f jenkins.Features, parent *jenkins.Features) jenkins.Features {
	if parent == nil {
		return f
	}
	if f.Agent == nil {
		f.Agent = parent.Agent
	}
	f.Tools = append(append([]jenkins.Tool{}, parent.Tools...), f.Tools...)
	own := map[string]bool{}
	for _, e := range f.Env {
		own[e.Key] = true
	}
	var env []jenkins.EnvVar
	for _, e := range parent.Env {
		if !own[e.Key] {
			env = append(env, e)
		}
	}
	f.Env = append(env, f.Env...)
	if parent.When != nil {
		w := jenkins.WhenCondition{}
		w.Predicates = append(append(w.Predicates, parent.When.Predicates...), whenPreds(f.When)...)
		w.Combinators = append(append(w.Combinators, parent.When.Combinators...), whenCombs(f.When)...)
		f.When = &w
	}
	if f.TimeoutMinutes == 0 {
		f.TimeoutMinutes = parent.TimeoutMinutes
	}
	return f
}

func whenPreds(w *jenkins.WhenCondition) []jenkins.Predicate {
	if w == nil {
		return nil
	}
	return w.Predicates
}

func whenCombs(w *jenkins.WhenCondition) []string {
	if w == nil {
		return nil
	}
	return w.Combinators
}

// stage converts one stage into a job. A panic anywhere in extraction or
// synthesis replaces the job with a manual-conversion fallback.
func (r *conversion) stage(st jenkins.Stage, parent *jenkins.Features, group string, needs []string) (job *gha.Job) {
	id := r.allocID(st.Name)
	log := r.logger.With("stage", st.Name, "job", id)
	defer func() {
		if rec := recover(); rec != nil {
			log.Warn("stage conversion failed", "error", fmt.Sprint(rec))
			job = r.fallback(st.Name, id, group, needs, rec)
		}
	}()

	f := inherit(jenkins.ExtractStage(st), parent)
	job = &gha.Job{
		ID:             id,
		Name:           st.Name,
		Needs:          append([]string(nil), needs...),
		TimeoutMinutes: r.timeout(f.TimeoutMinutes),
	}
	if runsOn, container, ok := r.opts.placement(f.Agent); ok {
		job.RunsOn, job.Container = runsOn, container
	} else {
		job.RunsOn, job.Container = r.globalRunsOn, r.globalContainer
	}

	env := r.stageEnv(f.Env)
	if len(env) > 0 {
		job.Env = env
	}
	job.If, job.IfNote = RenderWhen(f.When)
	if job.IfNote != "" {
		r.diag(st.Name, DiagCondition, job.IfNote)
	}
	if r.opts.isDeploy(st.Name) {
		job.Concurrency = &gha.Concurrency{Group: "deployment-" + id}
	}
	approval := ""
	if len(f.Inputs) > 0 {
		approval = "approval-" + id
		job.Environment = approval
	}

	m := r.materialize(id, st.Name, f, r.p.Tools)
	actionPath := path.Join(r.opts.ActionsDir, id, "action.yml")
	r.res.Actions = append(r.res.Actions, ActionFile{Path: actionPath, Action: m.Action})

	checkout := gha.Checkout()
	if m.HasSonar {
		checkout.With = map[string]string{"fetch-depth": "0"}
	}
	run := gha.Step{Name: "Run " + st.Name, Uses: "./" + path.Join(r.opts.ActionsDir, id)}
	if len(m.With) > 0 {
		run.With = m.With
	}
	if m.HasDocker || m.HasKubectl {
		run.TimeoutMinutes = r.opts.StepTimeoutMinutes
	}
	job.Steps = []gha.Step{checkout, run}
	job.ContinueOnError = len(m.Manual) > 0 && !protected(st.Name)

	r.res.Stages = append(r.res.Stages, StageMetadata{
		Name:                   st.Name,
		JobID:                  id,
		Path:                   actionPath,
		ParallelGroup:          group,
		Env:                    env,
		ApprovalEnvironment:    approval,
		RequiredSecrets:        nonNil(m.RequiredSecrets),
		HasDocker:              m.HasDocker,
		HasKubectl:             m.HasKubectl,
		HasSonarQube:           m.HasSonar,
		HasPostActions:         m.HasPost,
		ManualConversionNeeded: nonNil(m.Manual),
		ComplexityScore:        m.Complexity,
		PluginDependencies:     nonNil(m.Plugins),
	})
	log.Debug("converted stage", "steps", len(m.Action.Steps), "complexity", m.Complexity)
	return job
}

// stageEnv keeps the stage variables that are new or differ from the
// global environment.
func (r *conversion) stageEnv(vars []jenkins.EnvVar) map[string]string {
	out := map[string]string{}
	for _, e := range vars {
		v := envValue(e)
		if g, ok := r.globalVals[e.Key]; ok && g == v {
			continue
		}
		out[e.Key] = v
	}
	return out
}

func (r *conversion) timeout(stage int) int {
	t := r.opts.TimeoutMinutes
	for _, limit := range []int{stage, r.p.TimeoutMinutes} {
		if limit > 0 && (t == 0 || limit < t) {
			t = limit
		}
	}
	return t
}

func protected(name string) bool {
	n := strings.ToLower(name)
	for _, kw := range []string{"deploy", "release", "publish", "production"} {
		if strings.Contains(n, kw) {
			return true
		}
	}
	return false
}

func (r *conversion) fallback(name, id, group string, needs []string, cause any) *gha.Job {
	msg := fmt.Sprintf("stage %q could not be converted automatically: %v", name, cause)
	r.diag(name, DiagFallback, msg)
	// A partially built stage may have registered its action already.
	for i := range r.res.Actions {
		if r.res.Actions[i].Path == path.Join(r.opts.ActionsDir, id, "action.yml") {
			r.res.Actions = append(r.res.Actions[:i], r.res.Actions[i+1:]...)
			break
		}
	}
	r.res.Stages = append(r.res.Stages, StageMetadata{
		Name:                   name,
		JobID:                  id,
		ParallelGroup:          group,
		RequiredSecrets:        []string{},
		ManualConversionNeeded: []string{msg},
		PluginDependencies:     []string{},
		Fallback:               true,
	})
	script := strings.Join([]string{
		fmt.Sprintf("echo %q", "Stage "+name+" requires manual conversion."),
		fmt.Sprintf("echo %q", "::error::"+strings.ReplaceAll(msg, "${{", "$ {{")),
	}, "\n")
	return &gha.Job{
		ID:             id,
		Name:           name,
		RunsOn:         gha.RunsOn{r.opts.DefaultRunner},
		Needs:          append([]string(nil), needs...),
		TimeoutMinutes: r.opts.FallbackTimeoutMinutes,
		Steps:          []gha.Step{gha.Checkout(), gha.Bash("Manual Conversion Required", script)},
	}
}

func (r *conversion) postJob() *gha.Job {
	needs := make([]string, 0, len(r.res.Workflow.Jobs))
	for _, j := range r.res.Workflow.Jobs {
		needs = append(needs, j.ID)
	}
	steps, manual := actions.PostSteps("pipeline", r.p.Post, func(secret, _ string) string {
		return "${{ secrets." + secret + " }}"
	})
	r.res.PostManual = manual
	return &gha.Job{
		ID:             PostJobID,
		Name:           "Pipeline Post Actions",
		RunsOn:         r.globalRunsOn,
		Needs:          needs,
		If:             "always()",
		Container:      r.globalContainer,
		TimeoutMinutes: r.opts.PostTimeoutMinutes,
		Steps:          append([]gha.Step{gha.Checkout()}, steps...),
	}
}

func dispatchInputs(params []jenkins.Parameter) []gha.Input {
	out := make([]gha.Input, 0, len(params))
	for _, p := range params {
		in := gha.Input{Name: p.Name, Description: p.Description, Type: "string"}
		if in.Description == "" {
			in.Description = "Parameter " + p.Name
		}
		switch p.Kind {
		case jenkins.ParamBoolean:
			in.Type = "boolean"
			def := "false"
			if strings.EqualFold(p.Default, "true") {
				def = "true"
			}
			in.Default = gha.Ptr(def)
		case jenkins.ParamChoice:
			in.Type = "choice"
			in.Options = p.Choices
			if p.Default != "" {
				in.Default = gha.Ptr(p.Default)
			}
		default:
			if p.Default != "" {
				in.Default = gha.Ptr(p.Default)
			}
		}
		out = append(out, in)
	}
	return out
}

func secretRefs(j *gha.Job) []string {
	var out []string
	scan := func(vals map[string]string) {
		for _, v := range vals {
			if i := strings.Index(v, "secrets."); i >= 0 {
				name := v[i+len("secrets."):]
				if end := strings.IndexAny(name, " }"); end >= 0 {
					name = name[:end]
				}
				out = append(out, name)
			}
		}
	}
	for _, s := range j.Steps {
		scan(s.With)
		scan(s.Env)
	}
	sort.Strings(out)
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
