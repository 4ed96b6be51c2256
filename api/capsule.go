package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/memophor/synagraph/internal/capsule"
	"github.com/memophor/synagraph/internal/config"
	"github.com/memophor/synagraph/internal/log"
)

// CapsuleHandler exposes the capsule ingest/lookup/purge flow.
type CapsuleHandler struct {
	cfg    *config.Config
	svc    *capsule.Service
	logger log.Logger
}

// NewCapsuleHandler creates the capsule handler.
func NewCapsuleHandler(cfg *config.Config, svc *capsule.Service, logger log.Logger) *CapsuleHandler {
	return &CapsuleHandler{cfg: cfg, svc: svc, logger: logger}
}

// RegisterRoutes registers capsule routes on the given mux.
func (h *CapsuleHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/lookup", h.lookup)
	mux.HandleFunc("POST /api/ingest/capsule", h.ingest)
	mux.HandleFunc("POST /api/capsules/purge", h.purge)
}

// lookup serves a capsule by logical key. A missing capsule, an expired-tenant
// mismatch, or an unknown key all surface as the same 404 cache miss.
func (h *CapsuleHandler) lookup(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "key query parameter is required")
		return
	}

	var expectedSlug *string
	if slug := r.URL.Query().Get("tenant"); slug != "" {
		expectedSlug = &slug
	}
	tenant := h.cfg.ResolveTenant(r.URL.Query().Get("tenant"))

	resp, err := h.svc.Lookup(r.Context(), tenant, key, expectedSlug)
	if err != nil {
		h.logger.Error("capsule lookup failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if resp == nil {
		writeError(w, http.StatusNotFound, "cache miss", "")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// IngestBody is the capsule ingest request: the capsule fields plus an
// optional tenant slug that must agree with the embedded policy tenant.
type IngestBody struct {
	Tenant *string `json:"tenant"`
	capsule.IngestRequest
}

func (h *CapsuleHandler) ingest(w http.ResponseWriter, r *http.Request) {
	var body IngestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	if body.Tenant != nil && body.Artifact.Policy.Tenant != *body.Tenant {
		writeError(w, http.StatusBadRequest, "policy.tenant mismatch", "")
		return
	}

	var slug string
	if body.Tenant != nil {
		slug = *body.Tenant
	}
	tenant := h.cfg.ResolveTenant(slug)

	result, err := h.svc.Ingest(r.Context(), tenant, body.IngestRequest)
	switch {
	case errors.Is(err, capsule.ErrMissingTenant) || errors.Is(err, capsule.ErrMissingHash):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	case err != nil:
		h.logger.Error("capsule ingest failed", "key", body.Key, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": result.Outcome.String(),
		"key":    result.Key,
		"hash":   result.Hash,
		"tenant": body.Artifact.Policy.Tenant,
	})
}

// PurgeBody accepts a single key, a key list, or both.
type PurgeBody struct {
	Tenant *string  `json:"tenant"`
	Key    *string  `json:"key"`
	Keys   []string `json:"keys"`
}

func (h *CapsuleHandler) purge(w http.ResponseWriter, r *http.Request) {
	var body PurgeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	var slug string
	if body.Tenant != nil {
		slug = *body.Tenant
	}
	tenant := h.cfg.ResolveTenant(slug)

	var keys []string
	if body.Key != nil {
		keys = append(keys, *body.Key)
	}
	for _, key := range body.Keys {
		if key != "" {
			keys = append(keys, key)
		}
	}

	result, err := h.svc.Purge(r.Context(), tenant, keys)
	if err != nil {
		h.logger.Error("capsule purge failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
