package handler

import (
	"net/http"
	"time"

	"github.com/defiwatchbot/defiwatch/internal/domain"
)

// marketCatalog is the read-side catalog view the handlers use.
type marketCatalog interface {
	Keys() []string
	Get(key string) []domain.Market
}

// StatusHandler reports run mode, uptime, and catalog sizes for the
// dashboard.
type StatusHandler struct {
	mode      string
	startedAt time.Time
	catalog   marketCatalog
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, startedAt time.Time, catalog marketCatalog) *StatusHandler {
	return &StatusHandler{mode: mode, startedAt: startedAt, catalog: catalog}
}

// GetStatus responds with the current backend state.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	catalogs := make(map[string]int)
	for _, key := range h.catalog.Keys() {
		catalogs[key] = len(h.catalog.Get(key))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"started_at":     h.startedAt.UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"catalogs":       catalogs,
	})
}
