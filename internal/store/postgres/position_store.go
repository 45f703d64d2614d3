package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openpredict/marketd/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Upsert inserts or updates one account's share balances in a market.
func (s *PositionStore) Upsert(ctx context.Context, pos domain.Position) error {
	const query = `
		INSERT INTO positions (market_id, account, yes_shares, no_shares, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (market_id, account) DO UPDATE SET
			yes_shares = EXCLUDED.yes_shares,
			no_shares  = EXCLUDED.no_shares,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		pos.MarketID, pos.Account.Hex(),
		int64(pos.YesShares), int64(pos.NoShares),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %d/%s: %w", pos.MarketID, pos.Account.Hex(), err)
	}
	return nil
}

// Get retrieves one account's position in a market. A missing row is an empty
// position, not an error.
func (s *PositionStore) Get(ctx context.Context, marketID int64, account common.Address) (domain.Position, error) {
	const query = `
		SELECT yes_shares, no_shares FROM positions
		WHERE market_id = $1 AND account = $2`

	var yes, no int64
	err := s.pool.QueryRow(ctx, query, marketID, account.Hex()).Scan(&yes, &no)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{MarketID: marketID, Account: account}, nil
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %d/%s: %w", marketID, account.Hex(), err)
	}
	return domain.Position{
		MarketID:  marketID,
		Account:   account,
		YesShares: domain.Amount(yes),
		NoShares:  domain.Amount(no),
	}, nil
}

// ListByMarket returns every non-empty position in a market.
func (s *PositionStore) ListByMarket(ctx context.Context, marketID int64) ([]domain.Position, error) {
	const query = `
		SELECT account, yes_shares, no_shares FROM positions
		WHERE market_id = $1 AND (yes_shares > 0 OR no_shares > 0)
		ORDER BY account`

	rows, err := s.pool.Query(ctx, query, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions for market %d: %w", marketID, err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var account string
		var yes, no int64
		if err := rows.Scan(&account, &yes, &no); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, domain.Position{
			MarketID:  marketID,
			Account:   common.HexToAddress(account),
			YesShares: domain.Amount(yes),
			NoShares:  domain.Amount(no),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list positions rows: %w", err)
	}
	return positions, nil
}
