package api

import (
	"net/http"

	"github.com/memophor/synagraph/internal/dashboard"
)

// DashboardHandler serves the admin counters and history.
type DashboardHandler struct {
	dash *dashboard.Handle
}

// NewDashboardHandler creates the dashboard handler.
func NewDashboardHandler(dash *dashboard.Handle) *DashboardHandler {
	return &DashboardHandler{dash: dash}
}

// RegisterRoutes registers dashboard routes on the given mux.
func (h *DashboardHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/overview", h.overview)
	mux.HandleFunc("GET /api/history", h.history)
	mux.HandleFunc("POST /api/history/clear", h.clearHistory)
}

func (h *DashboardHandler) overview(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.dash.Overview())
}

func (h *DashboardHandler) history(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.dash.History())
}

func (h *DashboardHandler) clearHistory(w http.ResponseWriter, _ *http.Request) {
	h.dash.ClearHistory()
	writeJSON(w, http.StatusOK, ApiMessage{Message: "history cleared"})
}
