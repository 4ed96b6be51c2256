package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/memophor/synagraph/internal/log"
	"github.com/memophor/synagraph/internal/scedge"
)

// maxProxyBodyBytes bounds request bodies relayed to Scedge.
const maxProxyBodyBytes = 1 << 20

// ScedgeHandler proxies requests to the configured Scedge instance.
type ScedgeHandler struct {
	bridge *scedge.Bridge
	logger log.Logger
}

// NewScedgeHandler creates the Scedge proxy handler.
func NewScedgeHandler(bridge *scedge.Bridge, logger log.Logger) *ScedgeHandler {
	return &ScedgeHandler{bridge: bridge, logger: logger}
}

// RegisterRoutes registers Scedge proxy routes on the given mux.
func (h *ScedgeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/scedge/status", h.status)
	mux.HandleFunc("GET /api/scedge/lookup", h.lookup)
	mux.HandleFunc("POST /api/scedge/store", h.store)
	mux.HandleFunc("POST /api/scedge/purge", h.purge)
}

func (h *ScedgeHandler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.bridge.Status(r.Context()))
}

func (h *ScedgeHandler) lookup(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	tenant := r.URL.Query().Get("tenant")
	status, body, err := h.bridge.Lookup(r.Context(), key, tenant)
	h.relay(w, status, body, err)
}

func (h *ScedgeHandler) store(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return
	}
	status, body, err := h.bridge.Store(r.Context(), payload)
	h.relay(w, status, body, err)
}

func (h *ScedgeHandler) purge(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return
	}
	status, body, err := h.bridge.Purge(r.Context(), payload)
	h.relay(w, status, body, err)
}

// relay writes the upstream's status and body through, mapping bridge
// errors to service-unavailable (not configured) or bad-gateway.
func (h *ScedgeHandler) relay(w http.ResponseWriter, status int, body json.RawMessage, err error) {
	if errors.Is(err, scedge.ErrDisabled) {
		writeError(w, http.StatusServiceUnavailable, "scedge base URL not configured", "")
		return
	}
	if err != nil {
		h.logger.Error("scedge proxy error", "error", err)
		writeError(w, http.StatusBadGateway, err.Error(), "")
		return
	}
	if status < 100 || status > 599 {
		status = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
