package api

import (
	"github.com/mattjoyce/jenkins2gha/internal/convert"
	"github.com/mattjoyce/jenkins2gha/internal/ledger"
	"github.com/mattjoyce/jenkins2gha/internal/report"
	"github.com/mattjoyce/jenkins2gha/internal/simulate"
)

// SourceRequest carries a Jenkinsfile.
type SourceRequest struct {
	Jenkinsfile string `json:"jenkinsfile"`
	// Source labels the run in the ledger.
	Source string `json:"source,omitempty"`
}

// PlanRequest is the body of POST /v1/plan.
type PlanRequest struct {
	SourceRequest
	Event  string            `json:"event,omitempty"`
	Ref    string            `json:"ref,omitempty"`
	Inputs map[string]string `json:"inputs,omitempty"`
	Env    map[string]string `json:"env,omitempty"`
	Failed []string          `json:"failed,omitempty"`
}

// File is one rendered output file.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ConvertResponse is returned by POST /v1/convert.
type ConvertResponse struct {
	RunID           string                  `json:"run_id,omitempty"`
	Fingerprint     string                  `json:"fingerprint"`
	Files           []File                  `json:"files"`
	Stages          []convert.StageMetadata `json:"stages"`
	RequiredSecrets []string                `json:"required_secrets"`
	Diagnostics     []convert.Diagnostic    `json:"diagnostics"`
	Report          *report.Report          `json:"report"`
}

// PlanResponse is returned by POST /v1/plan.
type PlanResponse struct {
	Fingerprint string         `json:"fingerprint"`
	Plan        *simulate.Plan `json:"plan"`
}

// RunsResponse is returned by GET /v1/runs.
type RunsResponse struct {
	Runs []ledger.Run `json:"runs"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Ledger        bool   `json:"ledger"`
}
