// Package simulate plans a dry run of a synthesized workflow: it orders
// jobs into waves and evaluates each job's if: condition against a
// GitHub event context. Nothing is executed.
package simulate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/mattjoyce/jenkins2gha/internal/convert"
	"github.com/mattjoyce/jenkins2gha/internal/gha"
)

// Job states.
const (
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
	StateSkipped   = "skipped"
)

// Context is the event the plan is evaluated against. Failed lists job
// ids to treat as failing when they run.
type Context struct {
	Event  string            `json:"event"`
	Ref    string            `json:"ref"`
	Inputs map[string]string `json:"inputs,omitempty"`
	Env    map[string]string `json:"env,omitempty"`
	Failed []string          `json:"failed,omitempty"`
}

// Decision is the outcome for one job.
type Decision struct {
	Job       string `json:"job"`
	Name      string `json:"name,omitempty"`
	Condition string `json:"condition,omitempty"`
	Run       bool   `json:"run"`
	State     string `json:"state"`
	Reason    string `json:"reason,omitempty"`
}

// Wave is a set of jobs whose needs all lie in earlier waves.
type Wave struct {
	Index int        `json:"index"`
	Jobs  []Decision `json:"jobs"`
}

// Plan is the simulated run.
type Plan struct {
	Context Context `json:"context"`
	Waves   []Wave  `json:"waves"`
}

var (
	statusCall = regexp.MustCompile(`\b(always|success|failure|cancelled)\s*\(`)
	exprWrap   = regexp.MustCompile(`^\$\{\{\s*([\s\S]*?)\s*\}\}$`)
	contextRef = regexp.MustCompile(`\b(env|inputs)\.([A-Za-z_][A-Za-z0-9_]*)`)
	fnRenames  = strings.NewReplacer("startsWith(", "hasPrefix(", "endsWith(", "hasSuffix(", "contains(", "ghContains(")
)

// Simulate evaluates wf against ctx.
func Simulate(wf *gha.Workflow, ctx Context) (*Plan, error) {
	layers, err := convert.Layers(wf)
	if err != nil {
		return nil, fmt.Errorf("order jobs: %w", err)
	}
	if ctx.Event == "" {
		ctx.Event = "push"
	}
	if ctx.Ref == "" {
		ctx.Ref = "refs/heads/main"
	}
	failed := map[string]bool{}
	for _, id := range ctx.Failed {
		failed[id] = true
	}

	base := baseEnv(wf, ctx)
	states := map[string]string{}
	plan := &Plan{Context: ctx}
	for i, layer := range layers {
		wave := Wave{Index: i + 1}
		for _, id := range layer {
			job := wf.Job(id)
			d := decide(job, base, states)
			if d.Run {
				d.State = StateSucceeded
				if failed[id] {
					d.State = StateFailed
				}
			} else {
				d.State = StateSkipped
			}
			states[id] = d.State
			wave.Jobs = append(wave.Jobs, d)
		}
		plan.Waves = append(plan.Waves, wave)
	}
	return plan, nil
}

func decide(job *gha.Job, base map[string]any, states map[string]string) Decision {
	d := Decision{Job: job.ID, Name: job.Name, Condition: job.If}
	var upstreamFailed, upstreamSkipped bool
	for _, n := range job.Needs {
		switch states[n] {
		case StateFailed:
			upstreamFailed = true
		case StateSkipped:
			upstreamSkipped = true
		}
	}
	success := !upstreamFailed && !upstreamSkipped

	cond := strings.TrimSpace(job.If)
	if m := exprWrap.FindStringSubmatch(cond); m != nil {
		cond = m[1]
	}
	if cond == "" {
		d.Run = success
		if !success {
			d.Reason = "a needed job did not succeed"
		}
		return d
	}

	ok, err := Eval(cond, base, success, upstreamFailed)
	if err != nil {
		d.Run = success
		d.Reason = "condition not evaluated: " + err.Error()
		return d
	}
	if !statusCall.MatchString(cond) {
		ok = ok && success
		if !success {
			d.Reason = "a needed job did not succeed"
		}
	}
	d.Run = ok
	if !ok && d.Reason == "" {
		d.Reason = "condition is false"
	}
	if job.IfNote != "" {
		d.Reason = strings.TrimSpace(d.Reason + " " + job.IfNote)
	}
	return d
}

// Eval evaluates a workflow if: expression. success and failure set the
// results of the status-check functions.
func Eval(cond string, env map[string]any, success, failure bool) (bool, error) {
	env = withMissingRefs(cond, env)
	program, err := expr.Compile(fnRenames.Replace(cond),
		expr.Env(env),
		expr.AsBool(),
		expr.Function("always", func(...any) (any, error) { return true, nil }),
		expr.Function("success", func(...any) (any, error) { return success, nil }),
		expr.Function("failure", func(...any) (any, error) { return failure, nil }),
		expr.Function("cancelled", func(...any) (any, error) { return false, nil }),
		expr.Function("ghContains", ghContains),
	)
	if err != nil {
		return false, fmt.Errorf("compile %q: %w", cond, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", cond, err)
	}
	b, _ := out.(bool)
	return b, nil
}

// withMissingRefs returns env with every env.X and inputs.X the condition
// reads set, using the empty string for unknown names as GitHub does.
func withMissingRefs(cond string, env map[string]any) map[string]any {
	out := make(map[string]any, len(env))
	for k, v := range env {
		out[k] = v
	}
	for _, m := range contextRef.FindAllStringSubmatch(cond, -1) {
		scope, _ := out[m[1]].(map[string]any)
		if _, ok := scope[m[2]]; ok {
			continue
		}
		filled := make(map[string]any, len(scope)+1)
		for k, v := range scope {
			filled[k] = v
		}
		filled[m[2]] = ""
		out[m[1]] = filled
	}
	return out
}

func ghContains(params ...any) (any, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("contains expects 2 arguments, got %d", len(params))
	}
	needle := strings.ToLower(fmt.Sprint(params[1]))
	switch hay := params[0].(type) {
	case []any:
		for _, v := range hay {
			if strings.ToLower(fmt.Sprint(v)) == needle {
				return true, nil
			}
		}
		return false, nil
	case nil:
		return false, nil
	default:
		return strings.Contains(strings.ToLower(fmt.Sprint(hay)), needle), nil
	}
}

// baseEnv builds the github, inputs and env contexts.
func baseEnv(wf *gha.Workflow, ctx Context) map[string]any {
	refName := strings.TrimPrefix(strings.TrimPrefix(ctx.Ref, "refs/heads/"), "refs/tags/")
	github := map[string]any{
		"event_name": ctx.Event,
		"ref":        ctx.Ref,
		"ref_name":   refName,
		"sha":        "0000000000000000000000000000000000000000",
		"repository": "owner/repo",
		"workspace":  "/home/runner/work/repo/repo",
	}

	inputs := map[string]any{}
	if ctx.Event == "workflow_dispatch" && wf.On.WorkflowDispatch != nil {
		for _, in := range wf.On.WorkflowDispatch.Inputs {
			v := ""
			if in.Default != nil {
				v = *in.Default
			}
			if given, ok := ctx.Inputs[in.Name]; ok {
				v = given
			}
			inputs[in.Name] = typed(in.Type, v)
		}
	}
	for k, v := range ctx.Inputs {
		if _, ok := inputs[k]; !ok && ctx.Event == "workflow_dispatch" {
			inputs[k] = v
		}
	}

	env := map[string]any{}
	for k, v := range wf.Env {
		env[k] = v
	}
	for k, v := range ctx.Env {
		env[k] = v
	}
	return map[string]any{"github": github, "inputs": inputs, "env": env}
}

func typed(kind, v string) any {
	if kind == "boolean" {
		return strings.EqualFold(v, "true")
	}
	return v
}

// Format renders a plan as text.
func Format(p *Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan for %s on %s\n", p.Context.Event, p.Context.Ref)
	for _, w := range p.Waves {
		fmt.Fprintf(&b, "Wave %d\n", w.Index)
		for _, d := range w.Jobs {
			mark := "run "
			if !d.Run {
				mark = "skip"
			}
			fmt.Fprintf(&b, "  [%s] %-24s %s", mark, d.Job, d.State)
			if d.Condition != "" {
				fmt.Fprintf(&b, "  if: %s", d.Condition)
			}
			if d.Reason != "" {
				fmt.Fprintf(&b, "  (%s)", d.Reason)
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}
