package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists committed market snapshots. The in-memory ledger is
// authoritative; the store is a write-through mirror used for durability and
// queries across restarts.
type MarketStore interface {
	Upsert(ctx context.Context, market Market) error
	GetByID(ctx context.Context, id int64) (Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// PositionStore persists per-account share balances.
type PositionStore interface {
	Upsert(ctx context.Context, pos Position) error
	Get(ctx context.Context, marketID int64, account common.Address) (Position, error)
	ListByMarket(ctx context.Context, marketID int64) ([]Position, error)
}

// TreasuryStore persists the fee treasury balance and its sweep history.
type TreasuryStore interface {
	SetBalance(ctx context.Context, balance Amount) error
	Balance(ctx context.Context) (Amount, error)
	RecordSweep(ctx context.Context, to common.Address, amount Amount, at time.Time) error
}

// AuditStore persists an append-only record of committed operations.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}
