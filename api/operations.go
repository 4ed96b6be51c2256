package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/memophor/synagraph/internal/config"
	"github.com/memophor/synagraph/internal/dashboard"
	"github.com/memophor/synagraph/internal/graph"
	"github.com/memophor/synagraph/internal/log"
	"github.com/memophor/synagraph/internal/repository"
)

// OperationsHandler exposes raw node operations for tooling and the
// dashboard's manual controls.
type OperationsHandler struct {
	cfg    *config.Config
	repos  repository.Bundle
	dash   *dashboard.Handle
	logger log.Logger
}

// NewOperationsHandler creates the raw-operations handler.
func NewOperationsHandler(cfg *config.Config, repos repository.Bundle, dash *dashboard.Handle, logger log.Logger) *OperationsHandler {
	return &OperationsHandler{cfg: cfg, repos: repos, dash: dash, logger: logger}
}

// RegisterRoutes registers operation routes on the given mux.
func (h *OperationsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/operations/store", h.store)
	mux.HandleFunc("POST /api/operations/lookup", h.lookup)
	mux.HandleFunc("POST /api/operations/purge", h.purge)
}

// StoreRequest is the raw node upsert body. A missing tenant falls back to
// the configured default; a missing node_id gets a fresh identity.
type StoreRequest struct {
	TenantID *uuid.UUID      `json:"tenant_id"`
	NodeID   *uuid.UUID      `json:"node_id"`
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
}

// StoreResponse reports the stored identity and whether it was new.
type StoreResponse struct {
	NodeID  uuid.UUID `json:"node_id"`
	Created bool      `json:"created"`
}

func (h *OperationsHandler) store(w http.ResponseWriter, r *http.Request) {
	var req StoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.Kind == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "kind is required")
		return
	}

	tenant := h.tenantOrDefault(req.TenantID)
	node := graph.NewNode(tenant, req.Kind, req.Payload)
	if req.NodeID != nil {
		node.ID = *req.NodeID
	}

	outcome, err := h.repos.Nodes.Upsert(r.Context(), tenant, node)
	if err != nil {
		h.logger.Error("node store failed", "node_id", node.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to store node")
		return
	}

	created := outcome == repository.Created
	h.dash.RecordStore(tenant, node.Kind, node.ID, created)

	writeJSON(w, http.StatusOK, StoreResponse{NodeID: node.ID, Created: created})
}

// LookupRequest is the raw node fetch body.
type LookupRequest struct {
	TenantID *uuid.UUID `json:"tenant_id"`
	NodeID   uuid.UUID  `json:"node_id"`
}

// LookupResponse carries the node when found.
type LookupResponse struct {
	Found bool                 `json:"found"`
	Node  *graph.KnowledgeNode `json:"node"`
}

func (h *OperationsHandler) lookup(w http.ResponseWriter, r *http.Request) {
	var req LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	tenant := h.tenantOrDefault(req.TenantID)
	node, err := h.repos.Nodes.Get(r.Context(), tenant, req.NodeID)
	if err != nil {
		// A storage failure still records a miss so the dashboard's hit
		// rate reflects what callers observed.
		h.logger.Error("node lookup failed", "node_id", req.NodeID, "error", err)
		h.dash.RecordLookup(tenant, req.NodeID.String(), false)
		writeJSON(w, http.StatusOK, LookupResponse{Found: false})
		return
	}

	h.dash.RecordLookup(tenant, req.NodeID.String(), node != nil)
	writeJSON(w, http.StatusOK, LookupResponse{Found: node != nil, Node: node})
}

// PurgeRequest is the purge acknowledgement body.
type PurgeRequest struct {
	TenantID *uuid.UUID `json:"tenant_id"`
	Reason   *string    `json:"reason"`
}

// ApiMessage is a plain acknowledgement body.
type ApiMessage struct {
	Message string `json:"message"`
}

func (h *OperationsHandler) purge(w http.ResponseWriter, r *http.Request) {
	var req PurgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	tenant := h.tenantOrDefault(req.TenantID)
	detail, _ := json.Marshal(map[string]any{"reason": req.Reason})
	h.dash.RecordPurge(tenant, detail)

	writeJSON(w, http.StatusOK, ApiMessage{Message: "purge acknowledged"})
}

func (h *OperationsHandler) tenantOrDefault(id *uuid.UUID) uuid.UUID {
	if id != nil {
		return *id
	}
	return h.cfg.DefaultTenant()
}
