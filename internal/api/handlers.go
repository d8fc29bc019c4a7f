package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/jenkins2gha/internal/analyze"
	"github.com/mattjoyce/jenkins2gha/internal/convert"
	"github.com/mattjoyce/jenkins2gha/internal/jenkins"
	"github.com/mattjoyce/jenkins2gha/internal/ledger"
	"github.com/mattjoyce/jenkins2gha/internal/output"
	"github.com/mattjoyce/jenkins2gha/internal/report"
	"github.com/mattjoyce/jenkins2gha/internal/simulate"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Ledger:        s.ledger != nil,
	})
}

// handleOpenAPI handles GET /openapi.json (no auth).
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc())
}

// handleConvert handles POST /v1/convert.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req SourceRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, ok := s.convert(w, req.Jenkinsfile)
	if !ok {
		return
	}

	files, err := output.Render(res, s.config.WorkflowPath)
	if err != nil {
		s.logger.Error("render conversion", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to render workflow")
		return
	}
	analysis := analyze.Analyze(req.Jenkinsfile, s.rules)
	resp := ConvertResponse{
		Fingerprint:     res.Fingerprint,
		Files:           make([]File, 0, len(files)),
		Stages:          res.Stages,
		RequiredSecrets: res.RequiredSecrets(),
		Diagnostics:     res.Diagnostics,
		Report:          report.Build(res, analysis, s.config.WorkflowPath),
	}
	for _, f := range files {
		resp.Files = append(resp.Files, File{Path: f.Path, Content: string(f.Content)})
	}
	if resp.RequiredSecrets == nil {
		resp.RequiredSecrets = []string{}
	}

	if s.ledger != nil {
		source := req.Source
		if source == "" {
			source = "api"
		}
		run, err := s.ledger.Record(r.Context(), ledger.NewRun(source, req.Jenkinsfile, res, analysis.Confidence))
		if err != nil {
			s.logger.Error("record run", "error", err, "request_id", middleware.GetReqID(r.Context()))
		} else {
			resp.RunID = run.ID
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleAnalyze handles POST /v1/analyze.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req SourceRequest
	if !s.decode(w, r, &req) {
		return
	}
	respondJSON(w, http.StatusOK, analyze.Analyze(req.Jenkinsfile, s.rules))
}

// handlePlan handles POST /v1/plan.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, ok := s.convert(w, req.Jenkinsfile)
	if !ok {
		return
	}
	plan, err := simulate.Simulate(res.Workflow, simulate.Context{
		Event:  req.Event,
		Ref:    req.Ref,
		Inputs: req.Inputs,
		Env:    req.Env,
		Failed: req.Failed,
	})
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, PlanResponse{Fingerprint: res.Fingerprint, Plan: plan})
}

// handleListRuns handles GET /v1/runs?limit=N.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.writeError(w, http.StatusServiceUnavailable, "run ledger is disabled")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	runs, err := s.ledger.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	respondJSON(w, http.StatusOK, RunsResponse{Runs: runs})
}

// jenkinsfileCarrier is satisfied by request bodies holding a Jenkinsfile.
type jenkinsfileCarrier interface {
	text() string
}

func (r *SourceRequest) text() string { return r.Jenkinsfile }

func (s *Server) decode(w http.ResponseWriter, r *http.Request, into jenkinsfileCarrier) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if strings.TrimSpace(into.text()) == "" {
		s.writeError(w, http.StatusBadRequest, "jenkinsfile is required")
		return false
	}
	return true
}

func (s *Server) convert(w http.ResponseWriter, text string) (*convert.Result, bool) {
	res, err := s.converter.Convert(text)
	switch {
	case errors.Is(err, jenkins.ErrNoPipeline), errors.Is(err, jenkins.ErrNoStages):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return nil, false
	case err != nil:
		s.logger.Error("convert", "error", err)
		s.writeError(w, http.StatusInternalServerError, "conversion failed")
		return nil, false
	}
	return res, true
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
