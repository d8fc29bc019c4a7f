// Package analyze estimates how much of a Jenkinsfile converts
// automatically and reports constructs that need manual work.
package analyze

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mattjoyce/jenkins2gha/internal/jenkins"
	"github.com/mattjoyce/jenkins2gha/internal/secrets"
)

// Confidence levels.
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
)

// Finding is an unsupported construct with its remediation.
type Finding struct {
	Feature      string `json:"feature"`
	Snippet      string `json:"code_snippet"`
	ManualAction string `json:"manual_action"`
}

// Complexity summarises the pipeline's structure.
type Complexity struct {
	TotalStages       int    `json:"total_stages"`
	HasParallel       bool   `json:"has_parallel"`
	HasMatrix         bool   `json:"has_matrix"`
	ConditionalStages int    `json:"conditional_stages"`
	HasPostActions    bool   `json:"has_post_actions"`
	ScriptBlocks      int    `json:"script_blocks"`
	CredentialUsage   int    `json:"credential_usage"`
	Score             int    `json:"complexity_score"`
	Level             string `json:"complexity_level"`
}

// Metadata describes what the pipeline declares and uses.
type Metadata struct {
	HasParameters  bool     `json:"has_parameters"`
	HasGlobalEnv   bool     `json:"has_global_env"`
	HasGlobalAgent bool     `json:"has_global_agent"`
	HasTools       bool     `json:"has_tools"`
	HasOptions     bool     `json:"has_options"`
	HasTriggers    bool     `json:"has_triggers"`
	HasLibraries   bool     `json:"has_libraries"`
	PostBlocks     int      `json:"total_post_blocks"`
	Languages      []string `json:"languages_detected"`
	Tools          []string `json:"tools_detected"`
}

// Credential is one referenced credential id and its suggested secret.
type Credential struct {
	ID      string       `json:"id"`
	Secret  string       `json:"secret"`
	Type    secrets.Type `json:"type"`
	Purpose string       `json:"purpose"`
}

// Report is the outcome of an analysis run.
type Report struct {
	CanConvert  bool         `json:"can_convert"`
	Confidence  string       `json:"confidence"`
	Blockers    []string     `json:"blockers"`
	Warnings    []string     `json:"warnings"`
	Findings    []Finding    `json:"unsupported_features"`
	Complexity  Complexity   `json:"complexity"`
	Metadata    Metadata     `json:"metadata"`
	Credentials []Credential `json:"credentials"`
}

var (
	stageHeader  = regexp.MustCompile(`stage\s*\([^)]+\)`)
	parallelOpen = regexp.MustCompile(`parallel\s*\{`)
	matrixOpen   = regexp.MustCompile(`matrix\s*\{`)
	whenOpen     = regexp.MustCompile(`when\s*\{`)
	postOpen     = regexp.MustCompile(`post\s*\{`)
	scriptOpen   = regexp.MustCompile(`script\s*\{`)
	credCall     = regexp.MustCompile(`credentials?\s*\(`)
	paramsOpen   = regexp.MustCompile(`parameters\s*\{`)
	envOpen      = regexp.MustCompile(`environment\s*\{`)
	agentDecl    = regexp.MustCompile(`agent\s+`)
	toolsOpen    = regexp.MustCompile(`tools\s*\{`)
	optionsOpen  = regexp.MustCompile(`options\s*\{`)
	triggersOpen = regexp.MustCompile(`triggers\s*\{`)
	libraryRef   = regexp.MustCompile(`@Library`)
)

// Analyze runs rules over a Jenkinsfile. Comments are ignored.
func Analyze(text string, rules Rules) *Report {
	src := jenkins.StripComments(text)
	r := &Report{
		CanConvert: true,
		Confidence: ConfidenceHigh,
		Blockers:   []string{},
		Warnings:   []string{},
		Findings:   []Finding{},
	}

	for _, b := range rules.Blockers {
		if b.Pattern.MatchString(src) {
			r.Blockers = append(r.Blockers, b.Message)
		}
	}
	for _, w := range rules.Warnings {
		if w.Pattern.MatchString(src) {
			r.Warnings = append(r.Warnings, w.Message)
		}
	}
	switch {
	case len(r.Blockers) > 0:
		r.CanConvert = false
		r.Confidence = ConfidenceLow
	case len(r.Warnings) > 3:
		r.Confidence = ConfidenceMedium
	}

	r.Findings = findings(src, rules.Unsupported)
	r.Complexity = complexity(src)
	r.Metadata = metadata(src, rules)
	r.Credentials = credentials(src, rules.Credentials)
	return r
}

func findings(src string, rules []Rule) []Finding {
	out := []Finding{}
	for _, u := range rules {
		for _, m := range u.Pattern.FindAllString(src, -1) {
			if len(m) > 200 {
				m = m[:200] + "..."
			}
			out = append(out, Finding{Feature: u.Name, Snippet: m, ManualAction: u.Message})
		}
	}
	return out
}

func complexity(src string) Complexity {
	c := Complexity{
		TotalStages:       len(stageHeader.FindAllStringIndex(src, -1)),
		HasParallel:       parallelOpen.MatchString(src),
		HasMatrix:         matrixOpen.MatchString(src),
		ConditionalStages: len(whenOpen.FindAllStringIndex(src, -1)),
		HasPostActions:    postOpen.MatchString(src),
		ScriptBlocks:      len(scriptOpen.FindAllStringIndex(src, -1)),
		CredentialUsage:   len(credCall.FindAllStringIndex(src, -1)),
	}
	score := c.TotalStages * 2
	if c.HasParallel {
		score += 10
	}
	if c.HasMatrix {
		score += 15
	}
	score += c.ConditionalStages * 3
	score += c.ScriptBlocks * 5
	score += c.CredentialUsage * 2
	c.Score = score
	c.Level = Level(score)
	return c
}

// Level buckets a pipeline complexity score.
func Level(score int) string {
	switch {
	case score < 20:
		return "Low"
	case score < 50:
		return "Medium"
	case score < 100:
		return "High"
	default:
		return "Very High"
	}
}

func metadata(src string, rules Rules) Metadata {
	return Metadata{
		HasParameters:  paramsOpen.MatchString(src),
		HasGlobalEnv:   envOpen.MatchString(src),
		HasGlobalAgent: agentDecl.MatchString(src),
		HasTools:       toolsOpen.MatchString(src),
		HasOptions:     optionsOpen.MatchString(src),
		HasTriggers:    triggersOpen.MatchString(src),
		HasLibraries:   libraryRef.MatchString(src),
		PostBlocks:     len(postOpen.FindAllStringIndex(src, -1)),
		Languages:      detect(src, rules.Languages),
		Tools:          detect(src, rules.Tools),
	}
}

func detect(src string, detectors []Detector) []string {
	out := []string{}
	for _, d := range detectors {
		for _, p := range d.Patterns {
			if p.MatchString(src) {
				out = append(out, d.Name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func credentials(src string, patterns []*regexp.Regexp) []Credential {
	seen := map[string]bool{}
	var ids []string
	for _, p := range patterns {
		for _, m := range p.FindAllStringSubmatch(src, -1) {
			if id := m[1]; !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	out := make([]Credential, 0, len(ids))
	for _, id := range ids {
		out = append(out, Credential{
			ID:      id,
			Secret:  secrets.TargetName(id),
			Type:    secrets.Classify(id),
			Purpose: secrets.Purpose(id),
		})
	}
	return out
}

// FormatHuman returns a readable analysis report.
func FormatHuman(r *Report) string {
	var b strings.Builder

	if r.CanConvert {
		fmt.Fprintf(&b, "Conversion feasible (confidence %s, complexity %s/%d)\n",
			r.Confidence, r.Complexity.Level, r.Complexity.Score)
	} else {
		fmt.Fprintf(&b, "Conversion blocked (%d blocker(s), %d warning(s))\n", len(r.Blockers), len(r.Warnings))
	}

	for _, msg := range r.Blockers {
		fmt.Fprintf(&b, "  BLOCK  %s\n", msg)
	}
	for _, msg := range r.Warnings {
		fmt.Fprintf(&b, "  WARN   %s\n", msg)
	}
	for _, f := range r.Findings {
		fmt.Fprintf(&b, "  MANUAL [%s] %s\n", f.Feature, f.ManualAction)
	}
	if len(r.Metadata.Languages) > 0 {
		fmt.Fprintf(&b, "Languages: %s\n", strings.Join(r.Metadata.Languages, ", "))
	}
	if len(r.Metadata.Tools) > 0 {
		fmt.Fprintf(&b, "Tools: %s\n", strings.Join(r.Metadata.Tools, ", "))
	}
	for _, c := range r.Credentials {
		fmt.Fprintf(&b, "  SECRET %s -> %s (%s)\n", c.ID, c.Secret, c.Type)
	}

	return b.String()
}

// FormatJSON returns the report as indented JSON.
func FormatJSON(r *Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
