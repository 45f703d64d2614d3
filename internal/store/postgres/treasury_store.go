package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openpredict/marketd/internal/domain"
)

// TreasuryStore implements domain.TreasuryStore using PostgreSQL. The running
// balance lives in a single-row table; sweeps are appended to a history table.
type TreasuryStore struct {
	pool *pgxpool.Pool
}

// NewTreasuryStore creates a new TreasuryStore backed by the given connection pool.
func NewTreasuryStore(pool *pgxpool.Pool) *TreasuryStore {
	return &TreasuryStore{pool: pool}
}

// SetBalance overwrites the persisted treasury balance.
func (s *TreasuryStore) SetBalance(ctx context.Context, balance domain.Amount) error {
	const query = `
		INSERT INTO treasury (id, balance, updated_at) VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET balance = EXCLUDED.balance, updated_at = NOW()`

	if _, err := s.pool.Exec(ctx, query, int64(balance)); err != nil {
		return fmt.Errorf("postgres: set treasury balance: %w", err)
	}
	return nil
}

// Balance returns the persisted treasury balance.
func (s *TreasuryStore) Balance(ctx context.Context) (domain.Amount, error) {
	var balance int64
	err := s.pool.QueryRow(ctx, `SELECT balance FROM treasury WHERE id = 1`).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("postgres: get treasury balance: %w", err)
	}
	return domain.Amount(balance), nil
}

// RecordSweep appends one completed sweep to the history.
func (s *TreasuryStore) RecordSweep(ctx context.Context, to common.Address, amount domain.Amount, at time.Time) error {
	const query = `INSERT INTO treasury_sweeps (recipient, amount, swept_at) VALUES ($1, $2, $3)`
	if _, err := s.pool.Exec(ctx, query, to.Hex(), int64(amount), at); err != nil {
		return fmt.Errorf("postgres: record sweep to %s: %w", to.Hex(), err)
	}
	return nil
}
