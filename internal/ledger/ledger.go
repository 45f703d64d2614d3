// Package ledger owns the mutable value-accounting state of a single market:
// pool and share totals, per-account balances, and the resolution status.
//
// Every public operation is serialized by the per-market mutex and either
// commits fully or leaves no trace. The only external calls are the oracle
// read during Resolve and the custody vault transfers; value is always
// collected before state is mutated and released only after state is
// committed, with an explicit settlement guard rejecting re-entrant
// redemption while a payout transfer is outstanding.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openpredict/marketd/internal/domain"
	"github.com/openpredict/marketd/internal/pricing"
)

// Clock supplies the current time; injectable so tests can stake and resolve
// around a fixed end time.
type Clock func() time.Time

// FeeSink receives the fee skimmed from every stake.
type FeeSink interface {
	Credit(amount domain.Amount)
}

// Params are the economics shared by all markets.
type Params struct {
	// MinStake is the smallest accepted gross stake.
	MinStake domain.Amount
	// FeeBps is the fee skimmed from every stake, in basis points.
	FeeBps int64
}

// Deps bundles the collaborators a ledger needs.
type Deps struct {
	Params Params
	Vault  domain.Vault
	Fees   FeeSink
	Oracle domain.PriceOracle
	Now    Clock
}

// MarketLedger is the authoritative accounting state of one market.
type MarketLedger struct {
	mu       sync.Mutex
	market   domain.Market
	yes      map[common.Address]domain.Amount
	no       map[common.Address]domain.Amount
	settling bool

	deps Deps
}

// New creates a ledger around an initial market record.
func New(market domain.Market, deps Deps) *MarketLedger {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &MarketLedger{
		market: market,
		yes:    make(map[common.Address]domain.Amount),
		no:     make(map[common.Address]domain.Amount),
		deps:   deps,
	}
}

// Restore rebuilds a ledger from a persisted snapshot and its positions.
// Used only at startup, before any operation flows.
func Restore(market domain.Market, positions []domain.Position, deps Deps) *MarketLedger {
	l := New(market, deps)
	for _, p := range positions {
		if p.YesShares > 0 {
			l.yes[p.Account] = p.YesShares
		}
		if p.NoShares > 0 {
			l.no[p.Account] = p.NoShares
		}
	}
	return l
}

// Snapshot returns a copy of the current market record.
func (l *MarketLedger) Snapshot() domain.Market {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.market
}

// ID returns the market identifier.
func (l *MarketLedger) ID() int64 {
	return l.Snapshot().ID
}

// PositionOf returns the account's holdings on both sides.
func (l *MarketLedger) PositionOf(account common.Address) domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.Position{
		MarketID:  l.market.ID,
		Account:   account,
		YesShares: l.yes[account],
		NoShares:  l.no[account],
	}
}

// Positions returns every non-empty position in the market.
func (l *MarketLedger) Positions() []domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	byAccount := make(map[common.Address]*domain.Position)
	for acct, shares := range l.yes {
		byAccount[acct] = &domain.Position{MarketID: l.market.ID, Account: acct, YesShares: shares}
	}
	for acct, shares := range l.no {
		p, ok := byAccount[acct]
		if !ok {
			p = &domain.Position{MarketID: l.market.ID, Account: acct}
			byAccount[acct] = p
		}
		p.NoShares = shares
	}

	out := make([]domain.Position, 0, len(byAccount))
	for _, p := range byAccount {
		out = append(out, *p)
	}
	return out
}

// Stake accepts a gross payment on one side. The fee is skimmed into the fee
// sink, the net is priced into shares against the side's running totals, and
// the payment is collected into custody before any state changes. A stake
// small enough to mint zero shares is still accepted; the value enters the
// pool without creating a claim.
func (l *MarketLedger) Stake(ctx context.Context, account common.Address, side domain.Side, gross domain.Amount) (domain.StakeReceipt, error) {
	if !side.Valid() {
		return domain.StakeReceipt{}, fmt.Errorf("ledger: unknown side %q", side)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.market.Resolved {
		return domain.StakeReceipt{}, domain.ErrAlreadyResolved
	}
	now := l.deps.Now()
	if !now.Before(l.market.EndTime) {
		return domain.StakeReceipt{}, domain.ErrMarketEnded
	}
	if gross < l.deps.Params.MinStake {
		return domain.StakeReceipt{}, fmt.Errorf("ledger: stake %s below minimum %s: %w",
			gross, l.deps.Params.MinStake, domain.ErrStakeTooSmall)
	}

	fee := pricing.Fee(gross, l.deps.Params.FeeBps)
	net := gross - fee
	shares := pricing.MintShares(net, l.market.Shares(side), l.market.Pool(side))

	// Pull the attached payment into custody. Nothing has mutated yet, so a
	// collection failure aborts the whole operation.
	if err := l.deps.Vault.Collect(ctx, account, gross); err != nil {
		return domain.StakeReceipt{}, fmt.Errorf("ledger: collect stake: %w", err)
	}

	if side == domain.SideYes {
		l.market.YesPool += net
		l.market.YesShares += shares
		l.yes[account] += shares
	} else {
		l.market.NoPool += net
		l.market.NoShares += shares
		l.no[account] += shares
	}
	l.deps.Fees.Credit(fee)

	return domain.StakeReceipt{
		MarketID: l.market.ID,
		Account:  account,
		Side:     side,
		Gross:    gross,
		Fee:      fee,
		Net:      net,
		Shares:   shares,
		StakedAt: now.UTC(),
	}, nil
}

// Resolve fixes the outcome by reading the oracle and comparing against the
// market's target threshold. It is valid only once, only after the end time.
// An oracle failure aborts the operation with nothing committed; the caller
// may retry once the oracle recovers. The reading that fixed the outcome is
// returned alongside the updated market record.
func (l *MarketLedger) Resolve(ctx context.Context) (domain.Market, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.settling {
		return domain.Market{}, 0, domain.ErrSettlementInProgress
	}
	if l.market.Resolved {
		return domain.Market{}, 0, domain.ErrAlreadyResolved
	}
	now := l.deps.Now()
	if now.Before(l.market.EndTime) {
		return domain.Market{}, 0, domain.ErrResolveTooEarly
	}

	reading, err := l.deps.Oracle.Read(ctx, l.market.OracleRef)
	if err != nil {
		return domain.Market{}, 0, fmt.Errorf("ledger: market %d ref %q: %w: %v",
			l.market.ID, l.market.OracleRef, domain.ErrOracleFailure, err)
	}

	resolvedAt := now.UTC()
	l.market.Resolved = true
	l.market.Outcome = reading >= l.market.TargetThreshold
	l.market.ResolvedAt = &resolvedAt

	return l.market, reading, nil
}

// Redeem pays the caller their proportional share of the combined pool for
// their winning-side holdings and zeroes that balance. The balance is cleared
// and the settlement guard raised before the value transfer, so a re-entrant
// redeem or resolve on this market is rejected while the payout is
// outstanding. If the transfer itself fails the balance is restored and the
// operation reports failure with no state change.
func (l *MarketLedger) Redeem(ctx context.Context, account common.Address) (domain.RedeemReceipt, error) {
	l.mu.Lock()

	if l.settling {
		l.mu.Unlock()
		return domain.RedeemReceipt{}, domain.ErrSettlementInProgress
	}
	if !l.market.Resolved {
		l.mu.Unlock()
		return domain.RedeemReceipt{}, domain.ErrNotResolved
	}

	side := l.market.WinningSide()
	balances := l.yes
	if side == domain.SideNo {
		balances = l.no
	}
	callerShares := balances[account]
	if callerShares == 0 {
		l.mu.Unlock()
		return domain.RedeemReceipt{}, domain.ErrNothingToClaim
	}
	winningShares := l.market.Shares(side)
	if winningShares == 0 {
		// Only reachable through an inconsistent restored snapshot; guards
		// the division below.
		l.mu.Unlock()
		return domain.RedeemReceipt{}, domain.ErrNoWinningShares
	}

	combined := l.market.YesPool + l.market.NoPool
	reward := pricing.Reward(callerShares, combined, winningShares)

	// Clear the claim and raise the guard before any value leaves custody.
	balances[account] = 0
	l.settling = true
	l.mu.Unlock()

	var err error
	if reward > 0 {
		err = l.deps.Vault.Release(ctx, account, reward)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.settling = false
	if err != nil {
		balances[account] = callerShares
		return domain.RedeemReceipt{}, fmt.Errorf("ledger: release reward: %w", err)
	}

	return domain.RedeemReceipt{
		MarketID:   l.market.ID,
		Account:    account,
		Side:       side,
		Shares:     callerShares,
		Reward:     reward,
		RedeemedAt: l.deps.Now().UTC(),
	}, nil
}
