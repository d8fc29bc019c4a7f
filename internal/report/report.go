// Package report renders a conversion summary for migration reviewers.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mattjoyce/jenkins2gha/internal/analyze"
	"github.com/mattjoyce/jenkins2gha/internal/convert"
	"github.com/mattjoyce/jenkins2gha/internal/secrets"
)

// Overall conversion status.
const (
	StatusReady   = "READY"
	StatusReview  = "NEEDS REVIEW"
	StatusBlocked = "BLOCKED"
)

// Report is the structured form of a conversion report.
type Report struct {
	Status       string               `json:"status"`
	Workflow     string               `json:"workflow"`
	WorkflowPath string               `json:"workflow_path"`
	Fingerprint  string               `json:"fingerprint"`
	Confidence   string               `json:"confidence,omitempty"`
	Stats        Stats                `json:"stats"`
	Blockers     []string             `json:"blockers"`
	Warnings     []string             `json:"warnings"`
	Findings     []analyze.Finding    `json:"unsupported_features"`
	Secrets      []Secret             `json:"secrets"`
	Stages       []Stage              `json:"stages"`
	Manual       []ManualItem         `json:"manual_items"`
	PostActions  []PostAction         `json:"post_actions"`
	Approvals    []Approval           `json:"approval_environments"`
	Files        []string             `json:"files"`
	Diagnostics  []convert.Diagnostic `json:"diagnostics"`
}

// Stats counts what the conversion produced.
type Stats struct {
	Stages          int `json:"stages"`
	Jobs            int `json:"jobs"`
	Actions         int `json:"actions"`
	ParallelGroups  int `json:"parallel_groups"`
	ManualItems     int `json:"manual_items"`
	Fallbacks       int `json:"fallbacks"`
	Secrets         int `json:"secrets"`
	ComplexityTotal int `json:"complexity_total"`
}

// Secret is one repository secret the workflow reads.
type Secret struct {
	Name    string       `json:"name"`
	Type    secrets.Type `json:"type"`
	Purpose string       `json:"purpose"`
	UsedBy  []string     `json:"used_by"`
}

// Stage is one row of the stage table.
type Stage struct {
	Name       string   `json:"name"`
	JobID      string   `json:"job_id"`
	Path       string   `json:"path,omitempty"`
	Group      string   `json:"parallel_group,omitempty"`
	Features   []string `json:"features"`
	Complexity int      `json:"complexity_score"`
	Manual     int      `json:"manual_items"`
	Fallback   bool     `json:"fallback,omitempty"`
}

// ManualItem is one thing a human has to finish.
type ManualItem struct {
	Stage string `json:"stage"`
	Item  string `json:"item"`
}

// PostAction lists the effects of one pipeline-level post condition.
type PostAction struct {
	Condition string   `json:"condition"`
	Effects   []string `json:"effects"`
}

// Approval is a GitHub environment that gates a job.
type Approval struct {
	Environment string `json:"environment"`
	Stage       string `json:"stage"`
}

// Build assembles the report for a conversion. analysis may be nil.
func Build(res *convert.Result, analysis *analyze.Report, workflowPath string) *Report {
	r := &Report{
		Workflow:     res.Workflow.Name,
		WorkflowPath: workflowPath,
		Fingerprint:  res.Fingerprint,
		Blockers:     []string{},
		Warnings:     []string{},
		Findings:     []analyze.Finding{},
		Secrets:      []Secret{},
		Stages:       []Stage{},
		Manual:       []ManualItem{},
		PostActions:  []PostAction{},
		Approvals:    []Approval{},
		Files:        []string{workflowPath},
		Diagnostics:  append([]convert.Diagnostic{}, res.Diagnostics...),
	}
	if analysis != nil {
		r.Confidence = analysis.Confidence
		r.Blockers = append(r.Blockers, analysis.Blockers...)
		r.Warnings = append(r.Warnings, analysis.Warnings...)
		r.Findings = append(r.Findings, analysis.Findings...)
	}

	groups := map[string]bool{}
	usedBy := map[string][]string{}
	var order []string
	use := func(secret, stage string) {
		if _, ok := usedBy[secret]; !ok {
			order = append(order, secret)
		}
		usedBy[secret] = append(usedBy[secret], stage)
	}
	for _, e := range res.Pipeline.Env {
		if e.Credential != "" {
			use(secrets.TargetName(e.Credential), "(global)")
		}
	}

	for _, st := range res.Stages {
		row := Stage{
			Name:       st.Name,
			JobID:      st.JobID,
			Path:       st.Path,
			Group:      st.ParallelGroup,
			Features:   features(st),
			Complexity: st.ComplexityScore,
			Manual:     len(st.ManualConversionNeeded),
			Fallback:   st.Fallback,
		}
		r.Stages = append(r.Stages, row)
		r.Stats.ComplexityTotal += st.ComplexityScore
		if st.ParallelGroup != "" {
			groups[st.ParallelGroup] = true
		}
		if st.Fallback {
			r.Stats.Fallbacks++
		}
		for _, item := range st.ManualConversionNeeded {
			r.Manual = append(r.Manual, ManualItem{Stage: st.Name, Item: item})
		}
		for _, s := range st.RequiredSecrets {
			use(s, st.Name)
		}
		if st.ApprovalEnvironment != "" {
			r.Approvals = append(r.Approvals, Approval{Environment: st.ApprovalEnvironment, Stage: st.Name})
		}
	}
	for _, item := range res.PostManual {
		r.Manual = append(r.Manual, ManualItem{Stage: "Pipeline Post Actions", Item: item})
	}
	for _, s := range res.RequiredSecrets() {
		if _, ok := usedBy[s]; !ok {
			use(s, "Pipeline Post Actions")
		}
	}
	for _, s := range order {
		r.Secrets = append(r.Secrets, Secret{
			Name:    s,
			Type:    secrets.Classify(s),
			Purpose: secrets.Purpose(s),
			UsedBy:  usedBy[s],
		})
	}

	for _, c := range res.Pipeline.Post {
		pa := PostAction{Condition: string(c.Condition), Effects: []string{}}
		for _, e := range c.Effects {
			pa.Effects = append(pa.Effects, e.EffectKind())
		}
		r.PostActions = append(r.PostActions, pa)
	}

	actionFiles := make([]string, 0, len(res.Actions))
	for _, a := range res.Actions {
		actionFiles = append(actionFiles, a.Path)
	}
	sort.Strings(actionFiles)
	r.Files = append(r.Files, actionFiles...)

	r.Stats.Stages = len(res.Stages)
	r.Stats.Jobs = len(res.Workflow.Jobs)
	r.Stats.Actions = len(res.Actions)
	r.Stats.ParallelGroups = len(groups)
	r.Stats.ManualItems = len(r.Manual)
	r.Stats.Secrets = len(r.Secrets)

	switch {
	case len(r.Blockers) > 0:
		r.Status = StatusBlocked
	case len(r.Manual) > 0 || r.Stats.Fallbacks > 0 || len(r.Diagnostics) > 0:
		r.Status = StatusReview
	default:
		r.Status = StatusReady
	}
	return r
}

func features(st convert.StageMetadata) []string {
	out := []string{}
	if st.HasDocker {
		out = append(out, "docker")
	}
	if st.HasKubectl {
		out = append(out, "kubernetes")
	}
	if st.HasSonarQube {
		out = append(out, "sonarqube")
	}
	if st.HasPostActions {
		out = append(out, "post")
	}
	if st.ApprovalEnvironment != "" {
		out = append(out, "approval")
	}
	for _, p := range st.PluginDependencies {
		out = append(out, "plugin:"+p)
	}
	return out
}

// Text renders the report for a terminal.
func Text(r *Report) string {
	var out strings.Builder
	fmt.Fprintf(&out, "Conversion Report\n")
	fmt.Fprintf(&out, "Status      : %s\n", r.Status)
	fmt.Fprintf(&out, "Workflow    : %s (%s)\n", r.Workflow, r.WorkflowPath)
	if r.Confidence != "" {
		fmt.Fprintf(&out, "Confidence  : %s\n", r.Confidence)
	}
	fmt.Fprintf(&out, "Fingerprint : %s\n", r.Fingerprint)
	fmt.Fprintf(&out, "Stages      : %d (%d jobs, %d actions, %d parallel groups)\n",
		r.Stats.Stages, r.Stats.Jobs, r.Stats.Actions, r.Stats.ParallelGroups)
	fmt.Fprintf(&out, "Complexity  : %d\n", r.Stats.ComplexityTotal)
	fmt.Fprintf(&out, "\n")

	for _, b := range r.Blockers {
		fmt.Fprintf(&out, "BLOCK  %s\n", b)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&out, "WARN   %s\n", w)
	}
	for _, d := range r.Diagnostics {
		fmt.Fprintf(&out, "NOTE   [%s] %s\n", d.Kind, d.Message)
	}

	if len(r.Stages) > 0 {
		fmt.Fprintf(&out, "\nStages\n")
		for _, st := range r.Stages {
			flag := ""
			if st.Fallback {
				flag = " FALLBACK"
			}
			fmt.Fprintf(&out, "  %-24s %-24s complexity=%d manual=%d%s\n", st.Name, st.JobID, st.Complexity, st.Manual, flag)
		}
	}
	if len(r.Secrets) > 0 {
		fmt.Fprintf(&out, "\nSecrets\n")
		for _, s := range r.Secrets {
			fmt.Fprintf(&out, "  %-28s %-20s %s\n", s.Name, s.Type, s.Purpose)
		}
	}
	if len(r.Manual) > 0 {
		fmt.Fprintf(&out, "\nManual items\n")
		for _, m := range r.Manual {
			fmt.Fprintf(&out, "  - [%s] %s\n", m.Stage, m.Item)
		}
	}
	if len(r.Approvals) > 0 {
		fmt.Fprintf(&out, "\nApproval environments\n")
		for _, a := range r.Approvals {
			fmt.Fprintf(&out, "  %s (%s)\n", a.Environment, a.Stage)
		}
	}
	fmt.Fprintf(&out, "\nFiles\n")
	for _, f := range r.Files {
		fmt.Fprintf(&out, "  %s\n", f)
	}
	return out.String()
}

// JSON renders the report as indented JSON.
func JSON(r *Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json report: %w", err)
	}
	return string(data), nil
}

// Markdown renders the report as a migration document.
func Markdown(r *Report) string {
	var out strings.Builder
	fmt.Fprintf(&out, "# Jenkins to GitHub Actions Conversion Report\n\n")
	fmt.Fprintf(&out, "**Status:** %s  \n", r.Status)
	fmt.Fprintf(&out, "**Workflow:** `%s` (%s)  \n", r.WorkflowPath, r.Workflow)
	if r.Confidence != "" {
		fmt.Fprintf(&out, "**Confidence:** %s  \n", r.Confidence)
	}
	fmt.Fprintf(&out, "**Fingerprint:** `%s`\n\n", r.Fingerprint)

	fmt.Fprintf(&out, "## Statistics\n\n")
	fmt.Fprintf(&out, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&out, "| Stages | %d |\n", r.Stats.Stages)
	fmt.Fprintf(&out, "| Jobs | %d |\n", r.Stats.Jobs)
	fmt.Fprintf(&out, "| Composite actions | %d |\n", r.Stats.Actions)
	fmt.Fprintf(&out, "| Parallel groups | %d |\n", r.Stats.ParallelGroups)
	fmt.Fprintf(&out, "| Manual items | %d |\n", r.Stats.ManualItems)
	fmt.Fprintf(&out, "| Fallback jobs | %d |\n", r.Stats.Fallbacks)
	fmt.Fprintf(&out, "| Secrets | %d |\n", r.Stats.Secrets)
	fmt.Fprintf(&out, "| Total complexity | %d |\n\n", r.Stats.ComplexityTotal)

	if len(r.Blockers)+len(r.Warnings) > 0 {
		fmt.Fprintf(&out, "## Blockers and Warnings\n\n")
		for _, b := range r.Blockers {
			fmt.Fprintf(&out, "- :no_entry: %s\n", b)
		}
		for _, w := range r.Warnings {
			fmt.Fprintf(&out, "- :warning: %s\n", w)
		}
		fmt.Fprintf(&out, "\n")
	}
	if len(r.Findings) > 0 {
		fmt.Fprintf(&out, "## Unsupported Features\n\n")
		fmt.Fprintf(&out, "| Feature | Manual action |\n|---|---|\n")
		for _, f := range r.Findings {
			fmt.Fprintf(&out, "| %s | %s |\n", f.Feature, cell(f.ManualAction))
		}
		fmt.Fprintf(&out, "\n")
	}

	if len(r.Secrets) > 0 {
		fmt.Fprintf(&out, "## Required Secrets\n\n")
		fmt.Fprintf(&out, "| Secret | Type | Purpose | Used by |\n|---|---|---|---|\n")
		for _, s := range r.Secrets {
			fmt.Fprintf(&out, "| `%s` | %s | %s | %s |\n", s.Name, s.Type, cell(s.Purpose), cell(strings.Join(s.UsedBy, ", ")))
		}
		fmt.Fprintf(&out, "\n")
	}

	fmt.Fprintf(&out, "## Stages\n\n")
	fmt.Fprintf(&out, "| Stage | Job | Action | Features | Complexity | Manual |\n|---|---|---|---|---|---|\n")
	for _, st := range r.Stages {
		path := "-"
		if st.Path != "" {
			path = "`" + st.Path + "`"
		}
		if st.Fallback {
			path = "fallback"
		}
		fmt.Fprintf(&out, "| %s | `%s` | %s | %s | %d | %d |\n",
			cell(st.Name), st.JobID, path, cell(strings.Join(st.Features, ", ")), st.Complexity, st.Manual)
	}
	fmt.Fprintf(&out, "\n")

	if len(r.Manual) > 0 {
		fmt.Fprintf(&out, "## Manual Conversion Items\n\n")
		for _, m := range r.Manual {
			fmt.Fprintf(&out, "- [ ] **%s**: %s\n", m.Stage, m.Item)
		}
		fmt.Fprintf(&out, "\n")
	}
	if len(r.PostActions) > 0 {
		fmt.Fprintf(&out, "## Post Actions\n\n")
		for _, p := range r.PostActions {
			fmt.Fprintf(&out, "- `%s`: %s\n", p.Condition, strings.Join(p.Effects, ", "))
		}
		fmt.Fprintf(&out, "\n")
	}
	if len(r.Approvals) > 0 {
		fmt.Fprintf(&out, "## Approval Environments\n\n")
		fmt.Fprintf(&out, "Create these environments under Settings > Environments and add required reviewers.\n\n")
		for _, a := range r.Approvals {
			fmt.Fprintf(&out, "- `%s` gates %s\n", a.Environment, a.Stage)
		}
		fmt.Fprintf(&out, "\n")
	}
	if len(r.Diagnostics) > 0 {
		fmt.Fprintf(&out, "## Diagnostics\n\n")
		for _, d := range r.Diagnostics {
			fmt.Fprintf(&out, "- %s: %s\n", d.Kind, d.Message)
		}
		fmt.Fprintf(&out, "\n")
	}

	fmt.Fprintf(&out, "## File Layout\n\n```\n")
	for _, f := range r.Files {
		fmt.Fprintf(&out, "%s\n", f)
	}
	fmt.Fprintf(&out, "```\n")
	return out.String()
}

func cell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

