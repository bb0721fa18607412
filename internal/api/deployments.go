package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/agent-haymaker/haymaker/internal/model"
	"github.com/agent-haymaker/haymaker/internal/orchestrator"
	"github.com/agent-haymaker/haymaker/internal/registry"
	"github.com/agent-haymaker/haymaker/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// deployRequest is the JSON body for POST /v1/deployments.
type deployRequest struct {
	Workload      string            `json:"workload"`
	DurationHours *int              `json:"duration_hours"`
	Tags          map[string]string `json:"tags"`
	Config        map[string]any    `json:"config"`
}

// listDeploymentsResponse wraps the deployment list response.
type listDeploymentsResponse struct {
	Deployments []*model.DeploymentRecord `json:"deployments"`
	Limit       int                       `json:"limit"`
}

// actionResponse reports the outcome of a stop or start request. Changed is
// false when the deployment was already in the requested state.
type actionResponse struct {
	DeploymentID string `json:"deployment_id"`
	Changed      bool   `json:"changed"`
	Status       string `json:"status"`
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Workload == "" {
		s.writeError(w, http.StatusBadRequest, "workload is required")
		return
	}

	rec, err := s.orch.Deploy(r.Context(), model.DeploymentConfig{
		WorkloadName:   req.Workload,
		DurationHours:  req.DurationHours,
		Tags:           req.Tags,
		WorkloadConfig: req.Config,
	})

	var verr *orchestrator.ValidationError
	switch {
	case errors.Is(err, registry.ErrUnknownWorkload):
		deploymentsTotal.WithLabelValues(req.Workload, "unknown").Inc()
		s.writeError(w, http.StatusNotFound, "unknown workload "+req.Workload)
		return
	case errors.As(err, &verr):
		deploymentsTotal.WithLabelValues(req.Workload, "invalid").Inc()
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "config validation failed",
			"errors": verr.Errors,
		})
		return
	case err != nil:
		deploymentsTotal.WithLabelValues(req.Workload, "failed").Inc()
		s.logger.Error("deploy", "workload", req.Workload, "error", err)
		s.writeError(w, http.StatusInternalServerError, "deployment failed: "+err.Error())
		return
	}

	deploymentsTotal.WithLabelValues(req.Workload, "success").Inc()
	s.writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := s.orch.Status(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "deployment not found")
		return
	}
	if err != nil {
		s.logger.Error("get deployment", "deployment_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get deployment")
		return
	}

	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}

	filter := store.ListFilter{
		WorkloadName: r.URL.Query().Get("workload"),
		Status:       r.URL.Query().Get("status"),
	}

	records, err := s.orch.List(r.Context(), filter, limit)
	if err != nil {
		s.logger.Error("list deployments", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list deployments")
		return
	}

	if records == nil {
		records = []*model.DeploymentRecord{}
	}

	s.writeJSON(w, http.StatusOK, listDeploymentsResponse{
		Deployments: records,
		Limit:       limit,
	})
}

func (s *Server) handleStopDeployment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	changed, err := s.orch.Stop(r.Context(), id)
	if err != nil {
		s.writeActionError(w, id, "stop", err)
		return
	}

	s.writeJSON(w, http.StatusOK, actionResponse{
		DeploymentID: id,
		Changed:      changed,
		Status:       model.StatusStopped,
	})
}

func (s *Server) handleStartDeployment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	changed, err := s.orch.Start(r.Context(), id)
	if err != nil {
		s.writeActionError(w, id, "start", err)
		return
	}

	s.writeJSON(w, http.StatusOK, actionResponse{
		DeploymentID: id,
		Changed:      changed,
		Status:       model.StatusRunning,
	})
}

func (s *Server) handleCleanupDeployment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))

	report, err := s.orch.Cleanup(r.Context(), id, dryRun)
	if err != nil {
		s.writeActionError(w, id, "cleanup", err)
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

// writeActionError maps lifecycle errors onto HTTP status codes shared by the
// stop, start, and cleanup handlers.
func (s *Server) writeActionError(w http.ResponseWriter, id, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "deployment not found")
	case errors.Is(err, store.ErrInvalidTransition):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error(op+" deployment", "deployment_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, op+" failed: "+err.Error())
	}
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
