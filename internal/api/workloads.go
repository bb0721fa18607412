package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agent-haymaker/haymaker/internal/model"
	"github.com/agent-haymaker/haymaker/internal/registry"
)

// installRequest is the JSON body for POST /v1/workloads/install.
type installRequest struct {
	Source string `json:"source"`
}

type listWorkloadsResponse struct {
	Workloads []model.WorkloadDescriptor `json:"workloads"`
}

func (s *Server) handleListWorkloads(w http.ResponseWriter, r *http.Request) {
	descs := s.registry.List()
	if descs == nil {
		descs = []model.WorkloadDescriptor{}
	}
	s.writeJSON(w, http.StatusOK, listWorkloadsResponse{Workloads: descs})
}

func (s *Server) handleDescribeWorkload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	desc, err := s.registry.Describe(name)
	if errors.Is(err, registry.ErrUnknownWorkload) {
		s.writeError(w, http.StatusNotFound, "unknown workload "+name)
		return
	}
	if err != nil {
		s.logger.Error("describe workload", "workload", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to describe workload")
		return
	}

	s.writeJSON(w, http.StatusOK, desc)
}

func (s *Server) handleInstallWorkload(w http.ResponseWriter, r *http.Request) {
	var req installRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Source == "" {
		s.writeError(w, http.StatusBadRequest, "source is required")
		return
	}

	desc, err := s.registry.Install(r.Context(), req.Source)
	if err != nil {
		s.logger.Error("install workload", "source", req.Source, "error", err)
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.writeJSON(w, http.StatusCreated, desc)
}
