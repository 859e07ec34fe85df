package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// catalogRefresher re-fetches every catalog partition.
type catalogRefresher interface {
	RefreshAll(ctx context.Context)
}

// MarketHandler serves the market catalogs.
type MarketHandler struct {
	catalog   marketCatalog
	refresher catalogRefresher
	logger    *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(catalog marketCatalog, refresher catalogRefresher, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{catalog: catalog, refresher: refresher, logger: logHandler(logger, "markets")}
}

type marketView struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
	Network  string `json:"network,omitempty"`
}

// ListMarkets returns every catalog partition with its markets.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	partitions := make(map[string][]marketView)
	for _, key := range h.catalog.Keys() {
		markets := h.catalog.Get(key)
		views := make([]marketView, 0, len(markets))
		for _, m := range markets {
			views = append(views, marketView{
				Address:  m.Address,
				Name:     m.Name,
				Protocol: string(m.Protocol),
				Network:  m.Network,
			})
		}
		partitions[key] = views
	}
	writeJSON(w, http.StatusOK, map[string]any{"catalogs": partitions})
}

// RefreshMarkets re-fetches every partition and reports the new sizes.
// POST /api/markets/refresh
func (h *MarketHandler) RefreshMarkets(w http.ResponseWriter, r *http.Request) {
	h.refresher.RefreshAll(r.Context())

	sizes := make(map[string]int)
	for _, key := range h.catalog.Keys() {
		sizes[key] = len(h.catalog.Get(key))
	}
	writeJSON(w, http.StatusOK, map[string]any{"refreshed": true, "catalogs": sizes})
}
