package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openpredict/marketd/internal/domain"
)

// AccountService defines the methods the account handler requires from the
// service layer.
type AccountService interface {
	Deposit(ctx context.Context, account common.Address, amount domain.Amount) error
	BalanceOf(ctx context.Context, account common.Address) (domain.Amount, error)
}

// AccountHandler serves custody-account HTTP endpoints.
type AccountHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler with the given service and
// logger.
func NewAccountHandler(accounts AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		logger:   logger,
	}
}

type depositRequest struct {
	Amount string `json:"amount"`
}

// Deposit credits spendable funds to an account.
// POST /api/accounts/{account}/deposit
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	account, ok := parseAccount(w, pathParam(r, "account"))
	if !ok {
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount: "+err.Error())
		return
	}

	if err := h.accounts.Deposit(r.Context(), account, amount); err != nil {
		status := statusForMarketErr(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: deposit failed",
				slog.String("account", account.Hex()),
				slog.String("error", err.Error()),
			)
			writeError(w, status, "failed to deposit")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	balance, err := h.accounts.BalanceOf(r.Context(), account)
	if err != nil {
		writeError(w, statusForMarketErr(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		Account: account.Hex(),
		Balance: balance,
	})
}

// balanceResponse reports one account's spendable balance.
type balanceResponse struct {
	Account string        `json:"account"`
	Balance domain.Amount `json:"balance"`
}

// Balance returns an account's spendable balance.
// GET /api/accounts/{account}/balance
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	account, ok := parseAccount(w, pathParam(r, "account"))
	if !ok {
		return
	}

	balance, err := h.accounts.BalanceOf(r.Context(), account)
	if err != nil {
		writeError(w, statusForMarketErr(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		Account: account.Hex(),
		Balance: balance,
	})
}
