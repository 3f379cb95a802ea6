package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

// DisputeResolver settles a disputed match once arbitration has decided.
type DisputeResolver interface {
	ResolveDispute(ctx context.Context, disputeID string, winner domain.Side) (domain.SettlementReceipt, error)
}

// AdminHandler serves operator routes behind the admin key.
type AdminHandler struct {
	disputes DisputeResolver
	fees     domain.FeeCounter
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(disputes DisputeResolver, fees domain.FeeCounter, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{disputes: disputes, fees: fees, logger: logger}
}

type resolveDisputeRequest struct {
	Winner string `json:"winner"`
}

// ResolveDispute records the arbitrated winner and settles the match.
// POST /api/admin/disputes/{id}/resolve
func (h *AdminHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	var req resolveDisputeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, "resolve dispute", err)
		return
	}
	winner, err := domain.ParseSide(req.Winner)
	if err != nil {
		writeServiceError(w, r, h.logger, "resolve dispute", err)
		return
	}

	disputeID := r.PathValue("id")
	receipt, err := h.disputes.ResolveDispute(r.Context(), disputeID, winner)
	if err != nil {
		writeServiceError(w, r, h.logger, "resolve dispute", err)
		return
	}
	h.logger.InfoContext(r.Context(), "handler: dispute resolved",
		slog.String("dispute_id", disputeID),
		slog.String("battle_id", receipt.BattleID),
		slog.String("winner", string(winner)),
	)
	writeJSON(w, http.StatusOK, receipt)
}

// Fees returns the running total of collected house fees.
// GET /api/admin/fees
func (h *AdminHandler) Fees(w http.ResponseWriter, r *http.Request) {
	total, err := h.fees.Total(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "fee total", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"collected": total})
}
