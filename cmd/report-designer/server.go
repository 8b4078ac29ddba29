// cmd/report-designer/server.go
package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alexwday/report-designer/internal/common/errors"
	"github.com/alexwday/report-designer/internal/common/logger"
	"github.com/alexwday/report-designer/internal/generation"
	"github.com/alexwday/report-designer/internal/registry"
)

type server struct {
	orchestrator *generation.Orchestrator
	registry     registry.Registry
	log          logger.Logger
}

func newServer(orchestrator *generation.Orchestrator, reg registry.Registry, log logger.Logger) *server {
	return &server{orchestrator: orchestrator, registry: reg, log: log}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /api/data-sources", s.handleListDataSources)
	mux.HandleFunc("GET /api/templates/{id}/requirements", s.handleRequirements)
	mux.HandleFunc("POST /api/templates/{id}/generate", s.handleStartBatch)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleJobStatus)
	mux.HandleFunc("POST /api/sections/{id}/generate", s.handleGenerateSection)
	mux.HandleFunc("POST /api/subsections/{id}/generate", s.handleGenerateSubsection)

	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleListDataSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.registry.ListDataSources(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data_sources": sources})
}

func (s *server) handleRequirements(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.orchestrator.Requirements(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (s *server) handleStartBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RunInputs map[string]interface{} `json:"run_inputs"`
	}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err.Error() != "EOF" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body must be JSON"})
			return
		}
	}

	start, err := s.orchestrator.StartBatch(r.Context(), r.PathValue("id"), body.RunInputs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, start)
}

func (s *server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.orchestrator.JobStatus(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *server) handleGenerateSection(w http.ResponseWriter, r *http.Request) {
	result, err := s.orchestrator.GenerateSection(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleGenerateSubsection(w http.ResponseWriter, r *http.Request) {
	result, err := s.orchestrator.GenerateSubsection(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeError maps pipeline errors onto HTTP statuses: validation problems
// are 422 with the full issue list, missing resources are 404, everything
// else is 500.
func (s *server) writeError(w http.ResponseWriter, err error) {
	if vErr, ok := err.(*errors.ValidationError); ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":             "Generation blocked: one or more subsections failed validation.",
			"validation_errors": vErr.Issues,
		})
		return
	}

	code := errors.CodeOf(err)
	status := http.StatusInternalServerError
	switch {
	case strings.HasSuffix(string(code), "_NOT_FOUND"):
		status = http.StatusNotFound
	case code == errors.ErrCodeCircularDependency || code == errors.ErrCodeConfigInvalid:
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed", nil)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
		"code":  code,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
