package api

import (
	"net/http"

	"github.com/memophor/synagraph/internal/log"
	"github.com/memophor/synagraph/internal/repository"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	service string
	version string
	nodes   repository.NodeRepository
	logger  log.Logger
}

// NewHealthHandler creates a new health handler.
// nodes is the node repository used for readiness checks.
func NewHealthHandler(service, version string, nodes repository.NodeRepository, logger log.Logger) *HealthHandler {
	return &HealthHandler{service: service, version: version, nodes: nodes, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// HealthResponse is the liveness probe body.
type HealthResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

// ReadyResponse is the readiness probe body. StorageOK distinguishes a
// storage failure from the process merely being up.
type ReadyResponse struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Ready     bool   `json:"ready"`
	StorageOK bool   `json:"storage_ok"`
}

// liveness reports that the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Service: h.service,
		Version: h.version,
		Status:  "ok",
	})
}

// readiness pings storage. The probe stays 200 either way; readiness is
// carried in the body so orchestrators and dashboards read one shape.
func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	storageOK := true
	if err := h.nodes.HealthCheck(r.Context()); err != nil {
		h.logger.Error("repository health check failed", "error", err)
		storageOK = false
	}
	writeJSON(w, http.StatusOK, ReadyResponse{
		Service:   h.service,
		Version:   h.version,
		Ready:     storageOK,
		StorageOK: storageOK,
	})
}
