package handler

import (
	"net/http"
)

// sweepTrigger requests an out-of-band watcher sweep.
type sweepTrigger interface {
	TriggerSweep()
}

// SweepHandler lets operators kick off a sweep without waiting for the next
// tick.
type SweepHandler struct {
	watcher sweepTrigger
}

// NewSweepHandler creates a SweepHandler.
func NewSweepHandler(watcher sweepTrigger) *SweepHandler {
	return &SweepHandler{watcher: watcher}
}

// TriggerSweep schedules a sweep. The sweep itself runs asynchronously on
// the watcher loop.
// POST /api/sweep/trigger
func (h *SweepHandler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	h.watcher.TriggerSweep()
	writeJSON(w, http.StatusAccepted, map[string]any{"triggered": true})
}
