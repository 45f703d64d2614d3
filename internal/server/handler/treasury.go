package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openpredict/marketd/internal/domain"
)

// TreasuryService defines the methods the treasury handler requires from the
// service layer.
type TreasuryService interface {
	TreasuryStatus() (balance, swept domain.Amount)
	SweepFees(ctx context.Context, credential string) (domain.Amount, common.Address, error)
}

// TreasuryHandler serves fee-treasury HTTP endpoints.
type TreasuryHandler struct {
	treasury TreasuryService
	logger   *slog.Logger
}

// NewTreasuryHandler creates a TreasuryHandler with the given service and
// logger.
func NewTreasuryHandler(treasury TreasuryService, logger *slog.Logger) *TreasuryHandler {
	return &TreasuryHandler{
		treasury: treasury,
		logger:   logger,
	}
}

// treasuryResponse reports the accrued and lifetime-swept fee balances.
type treasuryResponse struct {
	Balance    domain.Amount `json:"balance"`
	TotalSwept domain.Amount `json:"total_swept"`
}

// Status returns the current treasury balances.
// GET /api/treasury
func (h *TreasuryHandler) Status(w http.ResponseWriter, r *http.Request) {
	balance, swept := h.treasury.TreasuryStatus()
	writeJSON(w, http.StatusOK, treasuryResponse{
		Balance:    balance,
		TotalSwept: swept,
	})
}

// sweepResponse is the result of a treasury sweep.
type sweepResponse struct {
	Amount    domain.Amount `json:"amount"`
	Recipient string        `json:"recipient"`
	SweptAt   time.Time     `json:"swept_at"`
}

// Sweep drains the accrued fees to the operator account. Requires the admin
// credential.
// POST /api/treasury/sweep
func (h *TreasuryHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	amount, recipient, err := h.treasury.SweepFees(r.Context(), credential(r))
	if err != nil {
		status := statusForMarketErr(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: sweep failed",
				slog.String("error", err.Error()),
			)
			writeError(w, status, "failed to sweep fees")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sweepResponse{
		Amount:    amount,
		Recipient: recipient.Hex(),
		SweptAt:   time.Now().UTC(),
	})
}
