package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/defiwatchbot/defiwatch/internal/domain"
)

// WalletHandler exposes the subscription roster over HTTP, mirroring the
// /add, /remove, and /list chat commands for the dashboard.
type WalletHandler struct {
	users  domain.UserStore
	logger *slog.Logger
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(users domain.UserStore, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{users: users, logger: logHandler(logger, "wallets")}
}

type walletView struct {
	ChatID   int64    `json:"chat_id"`
	Address  string   `json:"address"`
	Protocol string   `json:"protocol"`
	Markets  []string `json:"markets"`
}

// ListWallets returns every subscription across all users.
// GET /api/wallets
func (h *WalletHandler) ListWallets(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list wallets")
		return
	}

	views := make([]walletView, 0)
	for _, u := range users {
		for _, wallet := range u.Wallets {
			views = append(views, walletView{
				ChatID:   u.ChatID,
				Address:  wallet.Address,
				Protocol: string(wallet.Protocol),
				Markets:  wallet.Markets,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"wallets": views})
}

type addWalletRequest struct {
	ChatID  int64  `json:"chat_id"`
	Address string `json:"address"`
}

// AddWallet subscribes a chat to a wallet. The protocol is inferred from the
// address shape, same as the chat command.
// POST /api/wallets
func (h *WalletHandler) AddWallet(w http.ResponseWriter, r *http.Request) {
	var req addWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ChatID == 0 || req.Address == "" {
		writeError(w, http.StatusBadRequest, "chat_id and address are required")
		return
	}

	protocol, err := domain.DetectProtocol(req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unrecognized address shape")
		return
	}

	sub := domain.WalletSubscription{Address: req.Address, Protocol: protocol}
	if err := h.users.AddWallet(r.Context(), req.ChatID, sub); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "wallet already watched")
			return
		}
		h.logger.Error("add wallet failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to add wallet")
		return
	}

	writeJSON(w, http.StatusCreated, walletView{
		ChatID:   req.ChatID,
		Address:  req.Address,
		Protocol: string(protocol),
		Markets:  []string{},
	})
}

// RemoveWallet drops a subscription.
// DELETE /api/wallets/{address}?chat_id=N
func (h *WalletHandler) RemoveWallet(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	chatID, err := strconv.ParseInt(r.URL.Query().Get("chat_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "chat_id query parameter is required")
		return
	}

	if err := h.users.RemoveWallet(r.Context(), chatID, address); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "wallet not watched")
			return
		}
		h.logger.Error("remove wallet failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to remove wallet")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
