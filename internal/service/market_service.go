// Package service orchestrates the market registry, fee treasury, and custody
// vault behind authorization, distributed locking, persistence, and event
// publication. Handlers and the background resolver talk to this layer only.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/openpredict/marketd/internal/auth"
	"github.com/openpredict/marketd/internal/domain"
	"github.com/openpredict/marketd/internal/notify"
	"github.com/openpredict/marketd/internal/registry"
	"github.com/openpredict/marketd/internal/treasury"
)

// EventChannel is the pub/sub channel carrying one message per committed
// operation.
const EventChannel = "marketd:events"

// settlementLockTTL bounds how long a crashed holder can block settlement.
const settlementLockTTL = 30 * time.Second

// Funder adds external value to an account's spendable balance. Implemented
// by the custody vault.
type Funder interface {
	Deposit(ctx context.Context, account common.Address, amount domain.Amount) error
}

// SettlementArchiver writes the durable settlement record for a resolved
// market.
type SettlementArchiver interface {
	Archive(ctx context.Context, market domain.Market, reading int64, positions []domain.Position) (string, error)
}

// Notifier delivers operator notifications, filtered by event type.
type Notifier interface {
	Notify(ctx context.Context, event domain.EventType, title, message string) error
}

// Deps bundles the collaborators of a MarketService. Registry, Treasury,
// Vault, Authz, and Logger are required; everything else is optional and
// skipped when nil.
type Deps struct {
	Registry *registry.Registry
	Treasury *treasury.FeeTreasury
	Vault    domain.Vault
	Funder   Funder
	Authz    auth.Authorizer
	Admin    common.Address // sweep recipient

	Locks     domain.LockManager
	Bus       domain.SignalBus
	Audit     domain.AuditStore
	Markets   domain.MarketStore
	Positions domain.PositionStore
	Fees      domain.TreasuryStore
	Archiver  SettlementArchiver
	Notify    Notifier

	Logger *slog.Logger
}

// MarketService is the application-facing facade over the accounting core.
type MarketService struct {
	deps   Deps
	logger *slog.Logger
}

// New creates a MarketService from its dependencies.
func New(deps Deps) *MarketService {
	return &MarketService{
		deps:   deps,
		logger: deps.Logger.With(slog.String("component", "market_service")),
	}
}

// CreateMarketInput carries the parameters of a new market.
type CreateMarketInput struct {
	Description string
	Duration    time.Duration
	Threshold   int64
	OracleRef   string
}

// CreateMarket opens a new market. Requires the market:create capability.
func (s *MarketService) CreateMarket(ctx context.Context, credential string, in CreateMarketInput) (domain.Market, error) {
	if err := s.deps.Authz.Authorize(ctx, credential, auth.CapCreateMarket); err != nil {
		return domain.Market{}, err
	}

	m, err := s.deps.Registry.Create(in.Description, in.Duration, in.Threshold, in.OracleRef)
	if err != nil {
		return domain.Market{}, err
	}

	s.persistMarket(ctx, m)
	s.commit(ctx, domain.EventMarketCreated, m.ID, map[string]any{
		"description": m.Description,
		"end_time":    m.EndTime.UTC().Format(time.RFC3339),
		"threshold":   m.TargetThreshold,
		"oracle_ref":  m.OracleRef,
	})

	s.logger.InfoContext(ctx, "market created",
		slog.Int64("market_id", m.ID),
		slog.Time("end_time", m.EndTime),
		slog.String("oracle_ref", m.OracleRef),
	)
	return m, nil
}

// GetMarket returns the current snapshot of one market.
func (s *MarketService) GetMarket(ctx context.Context, id int64) (domain.Market, error) {
	l, err := s.deps.Registry.Get(id)
	if err != nil {
		return domain.Market{}, err
	}
	return l.Snapshot(), nil
}

// ListMarkets returns market snapshots in identifier order, with the total
// count for pagination.
func (s *MarketService) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, int64) {
	return s.deps.Registry.List(opts), s.deps.Registry.Count()
}

// PositionOf returns one account's holdings in a market.
func (s *MarketService) PositionOf(ctx context.Context, marketID int64, account common.Address) (domain.Position, error) {
	l, err := s.deps.Registry.Get(marketID)
	if err != nil {
		return domain.Position{}, err
	}
	return l.PositionOf(account), nil
}

// Stake places a gross payment on one side of a market.
func (s *MarketService) Stake(ctx context.Context, marketID int64, account common.Address, side domain.Side, gross domain.Amount) (domain.StakeReceipt, error) {
	l, err := s.deps.Registry.Get(marketID)
	if err != nil {
		return domain.StakeReceipt{}, err
	}

	receipt, err := l.Stake(ctx, account, side, gross)
	if err != nil {
		return domain.StakeReceipt{}, err
	}

	s.persistMarket(ctx, l.Snapshot())
	s.persistPosition(ctx, l.PositionOf(account))
	s.persistTreasury(ctx)
	s.commit(ctx, domain.EventStakePlaced, marketID, map[string]any{
		"account": account.Hex(),
		"side":    string(side),
		"gross":   receipt.Gross.String(),
		"fee":     receipt.Fee.String(),
		"shares":  receipt.Shares.String(),
	})

	s.logger.InfoContext(ctx, "stake placed",
		slog.Int64("market_id", marketID),
		slog.String("account", account.Hex()),
		slog.String("side", string(side)),
		slog.String("gross", receipt.Gross.String()),
		slog.String("shares", receipt.Shares.String()),
	)
	return receipt, nil
}

// Resolve fixes a market's outcome from its oracle. Requires the
// market:resolve capability. The settlement record is archived and operators
// notified best-effort after commit.
func (s *MarketService) Resolve(ctx context.Context, credential string, marketID int64) (domain.Market, error) {
	if err := s.deps.Authz.Authorize(ctx, credential, auth.CapResolveMarket); err != nil {
		return domain.Market{}, err
	}

	l, err := s.deps.Registry.Get(marketID)
	if err != nil {
		return domain.Market{}, err
	}

	unlock, err := s.acquire(ctx, fmt.Sprintf("market:%d", marketID))
	if err != nil {
		return domain.Market{}, err
	}
	defer unlock()

	m, reading, err := l.Resolve(ctx)
	if err != nil {
		return domain.Market{}, err
	}

	s.persistMarket(ctx, m)
	s.commit(ctx, domain.EventMarketResolved, marketID, map[string]any{
		"outcome": string(m.WinningSide()),
		"reading": reading,
	})
	s.archiveSettlement(ctx, m, reading, l.Positions())
	s.notify(ctx, domain.EventMarketResolved, m, reading)

	s.logger.InfoContext(ctx, "market resolved",
		slog.Int64("market_id", marketID),
		slog.String("outcome", string(m.WinningSide())),
		slog.Int64("reading", reading),
	)
	return m, nil
}

// Redeem pays out the caller's winning-side holdings.
func (s *MarketService) Redeem(ctx context.Context, marketID int64, account common.Address) (domain.RedeemReceipt, error) {
	l, err := s.deps.Registry.Get(marketID)
	if err != nil {
		return domain.RedeemReceipt{}, err
	}

	unlock, err := s.acquire(ctx, fmt.Sprintf("market:%d", marketID))
	if err != nil {
		return domain.RedeemReceipt{}, err
	}
	defer unlock()

	receipt, err := l.Redeem(ctx, account)
	if err != nil {
		return domain.RedeemReceipt{}, err
	}

	s.persistPosition(ctx, l.PositionOf(account))
	s.commit(ctx, domain.EventRewardRedeemed, marketID, map[string]any{
		"account": account.Hex(),
		"side":    string(receipt.Side),
		"shares":  receipt.Shares.String(),
		"reward":  receipt.Reward.String(),
	})

	s.logger.InfoContext(ctx, "reward redeemed",
		slog.Int64("market_id", marketID),
		slog.String("account", account.Hex()),
		slog.String("reward", receipt.Reward.String()),
	)
	return receipt, nil
}

// SweepFees transfers the accrued fee balance to the administrator account.
// Requires the treasury:sweep capability.
func (s *MarketService) SweepFees(ctx context.Context, credential string) (domain.Amount, common.Address, error) {
	if err := s.deps.Authz.Authorize(ctx, credential, auth.CapSweepFees); err != nil {
		return 0, common.Address{}, err
	}

	unlock, err := s.acquire(ctx, "treasury")
	if err != nil {
		return 0, common.Address{}, err
	}
	defer unlock()

	to := s.deps.Admin
	amount, at, err := s.deps.Treasury.Sweep(ctx, to)
	if err != nil {
		return 0, common.Address{}, err
	}

	s.persistTreasury(ctx)
	if s.deps.Fees != nil && amount > 0 {
		if err := s.deps.Fees.RecordSweep(ctx, to, amount, at); err != nil {
			s.logger.WarnContext(ctx, "record sweep failed", slog.String("error", err.Error()))
		}
	}
	s.commit(ctx, domain.EventFeesSwept, 0, map[string]any{
		"recipient": to.Hex(),
		"amount":    amount.String(),
	})
	s.notifySweep(ctx, to, amount, at)

	s.logger.InfoContext(ctx, "fees swept",
		slog.String("recipient", to.Hex()),
		slog.String("amount", amount.String()),
	)
	return amount, to, nil
}

// TreasuryStatus reports the sweep-eligible balance and the cumulative total
// released by past sweeps.
func (s *MarketService) TreasuryStatus() (balance, swept domain.Amount) {
	return s.deps.Treasury.Balance(), s.deps.Treasury.SweptTotal()
}

// Deposit adds external value to an account's spendable balance.
func (s *MarketService) Deposit(ctx context.Context, account common.Address, amount domain.Amount) error {
	return s.deps.Funder.Deposit(ctx, account, amount)
}

// BalanceOf returns an account's spendable balance.
func (s *MarketService) BalanceOf(ctx context.Context, account common.Address) (domain.Amount, error) {
	return s.deps.Vault.BalanceOf(ctx, account)
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

// acquire takes the distributed settlement lock for the given key, returning
// a release func. With no lock manager configured it degrades to a no-op; the
// in-process guards still hold.
func (s *MarketService) acquire(ctx context.Context, key string) (func(), error) {
	if s.deps.Locks == nil {
		return func() {}, nil
	}
	unlock, err := s.deps.Locks.Acquire(ctx, key, settlementLockTTL)
	if err != nil {
		return nil, fmt.Errorf("service: settlement lock %s: %w", key, err)
	}
	return unlock, nil
}

// persistMarket mirrors a committed market snapshot to the store. The
// in-memory ledger is authoritative; a mirror failure is logged, not
// propagated.
func (s *MarketService) persistMarket(ctx context.Context, m domain.Market) {
	if s.deps.Markets == nil {
		return
	}
	if err := s.deps.Markets.Upsert(ctx, m); err != nil {
		s.logger.WarnContext(ctx, "persist market failed",
			slog.Int64("market_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) persistPosition(ctx context.Context, p domain.Position) {
	if s.deps.Positions == nil {
		return
	}
	if err := s.deps.Positions.Upsert(ctx, p); err != nil {
		s.logger.WarnContext(ctx, "persist position failed",
			slog.Int64("market_id", p.MarketID),
			slog.String("account", p.Account.Hex()),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) persistTreasury(ctx context.Context) {
	if s.deps.Fees == nil {
		return
	}
	if err := s.deps.Fees.SetBalance(ctx, s.deps.Treasury.Balance()); err != nil {
		s.logger.WarnContext(ctx, "persist treasury failed", slog.String("error", err.Error()))
	}
}

// commit records a committed operation in the audit log and publishes it on
// the signal bus. Both are post-commit and best-effort; the operation itself
// has already succeeded.
func (s *MarketService) commit(ctx context.Context, typ domain.EventType, marketID int64, detail map[string]any) {
	if s.deps.Audit != nil {
		if err := s.deps.Audit.Log(ctx, string(typ), detail); err != nil {
			s.logger.WarnContext(ctx, "audit log failed",
				slog.String("event", string(typ)),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.deps.Bus == nil {
		return
	}
	evt := domain.Event{
		ID:       uuid.New().String(),
		Type:     typ,
		MarketID: marketID,
		Detail:   detail,
		At:       time.Now().UTC(),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		s.logger.WarnContext(ctx, "marshal event failed", slog.String("error", err.Error()))
		return
	}
	if err := s.deps.Bus.Publish(ctx, EventChannel, payload); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("event", string(typ)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) archiveSettlement(ctx context.Context, m domain.Market, reading int64, positions []domain.Position) {
	if s.deps.Archiver == nil {
		return
	}
	key, err := s.deps.Archiver.Archive(ctx, m, reading, positions)
	if err != nil {
		s.logger.WarnContext(ctx, "archive settlement failed",
			slog.Int64("market_id", m.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.InfoContext(ctx, "settlement archived",
		slog.Int64("market_id", m.ID),
		slog.String("key", key),
	)
}

func (s *MarketService) notify(ctx context.Context, typ domain.EventType, m domain.Market, reading int64) {
	if s.deps.Notify == nil {
		return
	}
	title, body := notify.MarketResolvedMessage(m, reading)
	if err := s.deps.Notify.Notify(ctx, typ, title, body); err != nil {
		s.logger.WarnContext(ctx, "notify failed", slog.String("error", err.Error()))
	}
}

func (s *MarketService) notifySweep(ctx context.Context, to common.Address, amount domain.Amount, at time.Time) {
	if s.deps.Notify == nil || amount == 0 {
		return
	}
	title, body := notify.FeesSweptMessage(to, amount, at)
	if err := s.deps.Notify.Notify(ctx, domain.EventFeesSwept, title, body); err != nil {
		s.logger.WarnContext(ctx, "notify failed", slog.String("error", err.Error()))
	}
}
