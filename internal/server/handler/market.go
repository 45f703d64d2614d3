package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openpredict/marketd/internal/domain"
	"github.com/openpredict/marketd/internal/service"
)

// MarketService defines the methods the market handler requires from the
// service layer. It is declared locally so tests can substitute a fake
// without standing up the full service.
type MarketService interface {
	CreateMarket(ctx context.Context, credential string, in service.CreateMarketInput) (domain.Market, error)
	GetMarket(ctx context.Context, id int64) (domain.Market, error)
	ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, int64)
	PositionOf(ctx context.Context, marketID int64, account common.Address) (domain.Position, error)
	Stake(ctx context.Context, marketID int64, account common.Address, side domain.Side, gross domain.Amount) (domain.StakeReceipt, error)
	Resolve(ctx context.Context, credential string, marketID int64) (domain.Market, error)
	Redeem(ctx context.Context, marketID int64, account common.Address) (domain.RedeemReceipt, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

// marketID parses the {id} path parameter; a second return of false means the
// error response has already been written.
func marketID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := pathParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return 0, false
	}
	return id, true
}

// parseAccount validates and decodes a hex account address; a second return
// of false means the error response has already been written.
func parseAccount(w http.ResponseWriter, raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, "invalid account address")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// statusForMarketErr maps domain errors from market operations to HTTP
// status codes. Unknown errors map to 500 and should be logged by the caller.
func statusForMarketErr(err error) int {
	switch {
	case errors.Is(err, domain.ErrMarketNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrMarketEnded),
		errors.Is(err, domain.ErrResolveTooEarly),
		errors.Is(err, domain.ErrAlreadyResolved),
		errors.Is(err, domain.ErrNotResolved),
		errors.Is(err, domain.ErrSettlementInProgress),
		errors.Is(err, domain.ErrLockHeld):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStakeTooSmall),
		errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, domain.ErrMissingOracle),
		errors.Is(err, domain.ErrNothingToClaim),
		errors.Is(err, domain.ErrNoWinningShares),
		errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type createMarketRequest struct {
	Description     string `json:"description"`
	DurationSeconds int64  `json:"duration_seconds"`
	TargetThreshold int64  `json:"target_threshold"`
	OracleRef       string `json:"oracle_ref"`
}

// CreateMarket opens a new market. Requires the admin credential.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := h.markets.CreateMarket(r.Context(), credential(r), service.CreateMarketInput{
		Description: req.Description,
		Duration:    time.Duration(req.DurationSeconds) * time.Second,
		Threshold:   req.TargetThreshold,
		OracleRef:   req.OracleRef,
	})
	if err != nil {
		status := statusForMarketErr(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: create market failed",
				slog.String("error", err.Error()),
			)
			writeError(w, status, "failed to create market")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, market)
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns markets ordered by ID with pagination.
// GET /api/markets?limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	markets, total := h.markets.ListMarkets(r.Context(), opts)

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}

	market, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrMarketNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.Int64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// GetPosition returns one account's share holdings in a market.
// GET /api/markets/{id}/positions/{account}
func (h *MarketHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	account, ok := parseAccount(w, pathParam(r, "account"))
	if !ok {
		return
	}

	position, err := h.markets.PositionOf(r.Context(), id, account)
	if err != nil {
		writeError(w, statusForMarketErr(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, position)
}

type stakeRequest struct {
	Account string `json:"account"`
	Side    string `json:"side"`
	Amount  string `json:"amount"`
}

// Stake places a stake on one side of a market and returns the receipt.
// POST /api/markets/{id}/stakes
func (h *MarketHandler) Stake(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}

	var req stakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, ok := parseAccount(w, req.Account)
	if !ok {
		return
	}

	side := domain.Side(req.Side)
	if !side.Valid() {
		writeError(w, http.StatusBadRequest, `side must be "yes" or "no"`)
		return
	}

	gross, err := domain.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount: "+err.Error())
		return
	}

	receipt, err := h.markets.Stake(r.Context(), id, account, side, gross)
	if err != nil {
		status := statusForMarketErr(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: stake failed",
				slog.Int64("market_id", id),
				slog.String("account", account.Hex()),
				slog.String("error", err.Error()),
			)
			writeError(w, status, "failed to place stake")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

// Resolve fixes the market outcome from the oracle. Requires the admin
// credential.
// POST /api/markets/{id}/resolve
func (h *MarketHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}

	market, err := h.markets.Resolve(r.Context(), credential(r), id)
	if err != nil {
		status := statusForMarketErr(err)
		if errors.Is(err, domain.ErrOracleFailure) {
			// Retriable: the price feed was unavailable, not a state error.
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: resolve failed",
				slog.Int64("market_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, status, "failed to resolve market")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, market)
}

type redeemRequest struct {
	Account string `json:"account"`
}

// Redeem pays out an account's winning shares and returns the receipt.
// POST /api/markets/{id}/redeem
func (h *MarketHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}

	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, ok := parseAccount(w, req.Account)
	if !ok {
		return
	}

	receipt, err := h.markets.Redeem(r.Context(), id, account)
	if err != nil {
		status := statusForMarketErr(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: redeem failed",
				slog.Int64("market_id", id),
				slog.String("account", account.Hex()),
				slog.String("error", err.Error()),
			)
			writeError(w, status, "failed to redeem")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}
