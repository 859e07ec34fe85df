package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/defiwatchbot/defiwatch/internal/domain"
	"github.com/defiwatchbot/defiwatch/internal/risk"
	"github.com/defiwatchbot/defiwatch/internal/scanner"
)

// PositionHandler serves on-demand wallet scans.
type PositionHandler struct {
	scanners *scanner.Registry
	logger   *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(scanners *scanner.Registry, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{scanners: scanners, logger: logHandler(logger, "positions")}
}

type positionView struct {
	Market         string  `json:"market"`
	MarketID       string  `json:"market_id"`
	LTV            string  `json:"ltv"`
	LiquidationLTV string  `json:"liquidation_ltv"`
	HealthFactor   float64 `json:"health_factor"`
	Tier           string  `json:"tier"`
	Borrowed       string  `json:"borrowed,omitempty"`
}

// GetPositions runs a full scan of the wallet and grades each position
// against default thresholds.
// GET /api/positions/{address}
func (h *PositionHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")

	sc, err := h.scanners.ForAddress(address)
	if err != nil {
		if errors.Is(err, domain.ErrBadAddress) {
			writeError(w, http.StatusBadRequest, "unrecognized address shape")
			return
		}
		writeError(w, http.StatusInternalServerError, "scanner unavailable")
		return
	}

	positions, err := sc.FullScan(r.Context(), address, nil)
	if err != nil {
		h.logger.Warn("scan failed",
			slog.String("wallet", address),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "scan failed: "+err.Error())
		return
	}

	thresholds := domain.DefaultThresholds()
	views := make([]positionView, 0, len(positions))
	for _, p := range positions {
		tier := risk.Classify(p.HealthFactor, thresholds)
		view := positionView{
			Market:         p.Market,
			MarketID:       p.MarketID,
			LTV:            p.LTV.StringFixed(2),
			LiquidationLTV: p.LiquidationLTV.StringFixed(2),
			HealthFactor:   p.HealthFactor,
			Tier:           string(tier),
		}
		if p.Borrowed.IsPositive() {
			view.Borrowed = p.Borrowed.StringFixed(2)
		}
		views = append(views, view)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"address":   address,
		"protocol":  string(sc.Protocol()),
		"positions": views,
	})
}
